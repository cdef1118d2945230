package analysis

import (
	"fmt"
	"time"
)

// ConfigurationError reports invalid or contradictory analysis settings:
// bad thresholds, a non-monotonic benchmark curve, or overlapping trend
// periods. It is always fatal to the run and never silently clamped.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
}

// DataIntegrityError reports a malformed input row: wrong property,
// negative counts, or more clicks than impressions. The engine never
// attempts to repair bad data; the offending row is identified and the
// run fails.
type DataIntegrityError struct {
	PropertyID string
	Query      string
	Page       string
	Date       time.Time
	Reason     string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation for query %q page %q on %s: %s",
		e.Query, e.Page, e.Date.Format("2006-01-02"), e.Reason)
}
