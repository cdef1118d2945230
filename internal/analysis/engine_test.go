package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore serves canned rows keyed by window start date.
type stubStore struct {
	rowsByStart map[time.Time][]MetricRow
	err         error
}

func (s *stubStore) MetricRows(_ context.Context, _ string, window Window) ([]MetricRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rowsByStart[window.Start], nil
}

func TestNewEngine(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		engine, err := NewEngine(&stubStore{}, DefaultConfig())
		require.NoError(t, err)
		assert.NotNil(t, engine)
	})

	t.Run("nil_store", func(t *testing.T) {
		engine, err := NewEngine(nil, DefaultConfig())
		require.Error(t, err)
		assert.Nil(t, engine)
	})

	t.Run("invalid_config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TopN = 0
		engine, err := NewEngine(&stubStore{}, cfg)
		require.Error(t, err)
		assert.Nil(t, engine)

		var cfgErr *ConfigurationError
		assert.True(t, errors.As(err, &cfgErr))
	})
}

func TestEngine_Analyze_EmptyDataset(t *testing.T) {
	engine, err := NewEngine(&stubStore{}, DefaultConfig())
	require.NoError(t, err)

	// No stored rows is a normal state for a fresh property, not an error
	report, err := engine.Analyze(context.Background(), testProperty, window(2026, 6, 29, 28))
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, testProperty, report.PropertyID)
	assert.Zero(t, report.RowCount)
	assert.Zero(t, report.QueryCount)
	assert.Zero(t, report.ClusterCount)
	assert.Empty(t, report.Opportunities)
	assert.Empty(t, report.Summary)
}

func TestEngine_Analyze_FullRun(t *testing.T) {
	currentWindow := window(2026, 6, 29, 28)
	priorWindow := currentWindow.Previous()

	currentRows := []MetricRow{
		{PropertyID: testProperty, Query: "best running shoes", Page: "/shoes", Date: currentWindow.Start, Clicks: 30, Impressions: 1000, Position: 8},
		{PropertyID: testProperty, Query: "fading query", Page: "/fade", Date: currentWindow.Start, Clicks: 60, Impressions: 1500, Position: 9},
	}
	priorRows := []MetricRow{
		{PropertyID: testProperty, Query: "fading query", Page: "/fade", Date: priorWindow.Start, Clicks: 100, Impressions: 2000, Position: 6},
	}

	store := &stubStore{rowsByStart: map[time.Time][]MetricRow{
		currentWindow.Start: currentRows,
		priorWindow.Start:   priorRows,
	}}

	cfg := DefaultConfig()
	cfg.QuickWinMinImpressions = 500

	engine, err := NewEngine(store, cfg)
	require.NoError(t, err)

	report, err := engine.Analyze(context.Background(), testProperty, currentWindow)
	require.NoError(t, err)

	assert.Equal(t, 2, report.RowCount)
	assert.Equal(t, 2, report.QueryCount)
	assert.Equal(t, 2, report.PageCount)
	assert.Equal(t, 2, report.ClusterCount)
	assert.Equal(t, 500, report.QuickWinFloor)
	assert.Equal(t, priorWindow, report.PriorWindow)

	assert.Equal(t, 2, report.Summary[TypeQuickWin].Count)
	assert.Equal(t, 1, report.Summary[TypeDeclining].Count)

	require.Len(t, report.Opportunities, 3)
	// The decline lost 40 clicks and slipped 3 positions: 40 * 1.3
	top := report.Opportunities[0]
	assert.Equal(t, TypeDeclining, top.Type)
	assert.Equal(t, "fading query", top.Query)
	assert.InDelta(t, 52, top.Score, 1e-9)

	assert.Equal(t, TypeQuickWin, report.Opportunities[1].Type)
	assert.Equal(t, "best running shoes", report.Opportunities[1].Query)
}

func TestEngine_Analyze_StoreFailure(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	engine, err := NewEngine(store, DefaultConfig())
	require.NoError(t, err)

	report, err := engine.Analyze(context.Background(), testProperty, window(2026, 6, 29, 28))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEngine_Analyze_IntegrityFailure(t *testing.T) {
	currentWindow := window(2026, 6, 29, 28)
	store := &stubStore{rowsByStart: map[time.Time][]MetricRow{
		currentWindow.Start: {
			{PropertyID: "sc-domain:wrong.com", Query: "q", Page: "/p", Date: currentWindow.Start, Clicks: 1, Impressions: 10, Position: 5},
		},
	}}

	engine, err := NewEngine(store, DefaultConfig())
	require.NoError(t, err)

	report, err := engine.Analyze(context.Background(), testProperty, currentWindow)
	require.Error(t, err)
	assert.Nil(t, report)

	var integrityErr *DataIntegrityError
	assert.True(t, errors.As(err, &integrityErr))
}

func TestEngine_AnalyzeWithPrior_RejectsOverlap(t *testing.T) {
	engine, err := NewEngine(&stubStore{}, DefaultConfig())
	require.NoError(t, err)

	w := window(2026, 6, 29, 28)
	report, err := engine.AnalyzeWithPrior(context.Background(), testProperty, w, w)
	require.Error(t, err)
	assert.Nil(t, report)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "trend_periods", cfgErr.Field)
}
