package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/searchlighthq/searchlight/internal/analysis"
	"github.com/searchlighthq/searchlight/internal/db"
	"github.com/searchlighthq/searchlight/internal/observability"
	"github.com/searchlighthq/searchlight/internal/util"
)

// reportingLag is how far behind today the default window ends; the
// reporting API does not finalise the most recent days.
const reportingLag = 3

// Config holds the application configuration loaded from environment variables
type Config struct {
	Env                  string // Environment (development/production)
	SentryDSN            string // Sentry DSN for error tracking
	LogLevel             string // Log level (debug, info, warn, error)
	ObservabilityEnabled bool   // Toggle OpenTelemetry + Prometheus exporters
	MetricsAddr          string // Address for Prometheus metrics endpoint (":9464" style)
	OTLPEndpoint         string // OTLP HTTP endpoint for trace export
	OTLPHeaders          string // Comma separated headers for OTLP exporter
	OTLPInsecure         bool   // Disable TLS verification for OTLP exporter
	RetentionDays        int    // Rows older than this are pruned before the run (0 = keep everything)
}

func main() {
	// Load .env files - .env.local takes priority for development
	godotenv.Load(".env.local", ".env")

	config := &Config{
		Env:                  getEnvWithDefault("APP_ENV", "development"),
		SentryDSN:            os.Getenv("SENTRY_DSN"),
		LogLevel:             getEnvWithDefault("LOG_LEVEL", "info"),
		ObservabilityEnabled: getEnvWithDefault("OBSERVABILITY_ENABLED", "true") == "true",
		MetricsAddr:          getEnvWithDefault("METRICS_ADDR", ""),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:          os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		OTLPInsecure:         getEnvWithDefault("OTEL_EXPORTER_OTLP_INSECURE", "false") == "true",
		RetentionDays:        getEnvInt("RETENTION_DAYS", 0),
	}

	setupLogging(config)

	var (
		property  = flag.String("property", "", "property to analyse (sc-domain:example.com or https://example.com)")
		startFlag = flag.String("start", "", "window start date (YYYY-MM-DD)")
		endFlag   = flag.String("end", "", "window end date (YYYY-MM-DD)")
		days      = flag.Int("days", 28, "window length in days when -start is not given")
		outPath   = flag.String("out", "", "write the JSON report to this file instead of stdout")
	)
	flag.Parse()

	if *property == "" {
		log.Fatal().Msg("-property is required")
	}
	propertyID := util.NormaliseProperty(*property)
	if err := util.ValidateProperty(propertyID); err != nil {
		log.Fatal().Err(err).Str("property", *property).Msg("Invalid property")
	}

	window, err := resolveWindow(*startFlag, *endFlag, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid analysis window")
	}

	// Initialise Sentry for error tracking
	if config.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              config.SentryDSN,
			Environment:      config.Env,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()

	var metricsSrv *http.Server
	if config.ObservabilityEnabled {
		obsProviders, err := observability.Init(ctx, observability.Config{
			Enabled:        true,
			ServiceName:    "searchlight",
			Environment:    config.Env,
			OTLPEndpoint:   strings.TrimSpace(config.OTLPEndpoint),
			OTLPHeaders:    parseOTLPHeaders(config.OTLPHeaders),
			OTLPInsecure:   config.OTLPInsecure,
			MetricsAddress: config.MetricsAddr,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise observability providers")
		} else if obsProviders != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := obsProviders.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("Failed to flush telemetry providers cleanly")
				}
			}()

			if obsProviders.MetricsHandler != nil && config.MetricsAddr != "" {
				metricsSrv = &http.Server{
					Addr:              config.MetricsAddr,
					Handler:           obsProviders.MetricsHandler,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					log.Info().Str("addr", config.MetricsAddr).Msg("Metrics server listening")
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Msg("Metrics server failed")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = metricsSrv.Shutdown(shutdownCtx)
				}()
			}
		}
	}

	// Connect to PostgreSQL
	pgDB, err := db.InitFromEnvWithRetry(ctx)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL database")
	}
	defer pgDB.Close()

	log.Info().Msg("Connected to PostgreSQL database")

	// Retention is the store owner's job, enforced here before analysis.
	if config.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -config.RetentionDays)
		if _, err := pgDB.DeleteRowsBefore(ctx, propertyID, cutoff); err != nil {
			sentry.CaptureException(err)
			log.Warn().Err(err).Msg("Retention cleanup failed, continuing with analysis")
		}
	}

	engine, err := analysis.NewEngine(pgDB, engineConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid analysis configuration")
	}

	report, err := engine.Analyze(ctx, propertyID, window)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Analysis run failed")
	}

	if err := writeReport(report, *outPath); err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Failed to write report")
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("opportunities", len(report.Opportunities)).
		Msg("Report written")
}

// resolveWindow turns flags into an inclusive date window. Without an
// explicit start the window ends a few days back (the API does not
// finalise recent days) and spans the requested day count.
func resolveWindow(startFlag, endFlag string, days int) (analysis.Window, error) {
	if days < 1 {
		return analysis.Window{}, fmt.Errorf("-days must be at least 1")
	}

	end := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -reportingLag)
	if endFlag != "" {
		parsed, err := time.Parse("2006-01-02", endFlag)
		if err != nil {
			return analysis.Window{}, fmt.Errorf("invalid -end date: %w", err)
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -(days - 1))
	if startFlag != "" {
		parsed, err := time.Parse("2006-01-02", startFlag)
		if err != nil {
			return analysis.Window{}, fmt.Errorf("invalid -start date: %w", err)
		}
		start = parsed
	}

	window := analysis.Window{Start: start, End: end}
	return window, window.Validate()
}

// engineConfigFromEnv applies any threshold overrides on top of the
// defaults. Contradictory values are rejected by the engine, not clamped.
func engineConfigFromEnv() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.QuickWinMinImpressions = getEnvInt("QUICK_WIN_MIN_IMPRESSIONS", cfg.QuickWinMinImpressions)
	cfg.QuickWinPercentile = getEnvFloat("QUICK_WIN_PERCENTILE", cfg.QuickWinPercentile)
	cfg.CTRUnderperformanceRatio = getEnvFloat("CTR_UNDERPERFORMANCE_RATIO", cfg.CTRUnderperformanceRatio)
	cfg.ExpansionMinQueries = getEnvInt("EXPANSION_MIN_QUERIES", cfg.ExpansionMinQueries)
	cfg.ClusterSimilarity = getEnvFloat("CLUSTER_SIMILARITY", cfg.ClusterSimilarity)
	cfg.GapMinImpressions = getEnvInt("GAP_MIN_IMPRESSIONS", cfg.GapMinImpressions)
	cfg.GapPoorPosition = getEnvFloat("GAP_POOR_POSITION", cfg.GapPoorPosition)
	cfg.DeclineMinDropRatio = getEnvFloat("DECLINE_MIN_DROP_RATIO", cfg.DeclineMinDropRatio)
	cfg.DeclineMinPriorClicks = getEnvInt("DECLINE_MIN_PRIOR_CLICKS", cfg.DeclineMinPriorClicks)
	cfg.TopN = getEnvInt("TOP_N", cfg.TopN)
	return cfg
}

func writeReport(report *analysis.Report, outPath string) error {
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	return os.WriteFile(outPath, encoded, 0o644)
}

// getEnvWithDefault retrieves an environment variable or returns a default value if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns a default value if not set or invalid
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
		return defaultValue
	}
	return result
}

// getEnvFloat retrieves an environment variable as a float or returns a default value if not set or invalid
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Float64("default", defaultValue).
			Msg("Invalid float in environment variable, using default")
		return defaultValue
	}
	return result
}

func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return headers
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}

		headers[key] = value
	}

	return headers
}

// setupLogging configures the logging system
func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	// Use console writer in development
	if config.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Str("service", "searchlight").
			Logger()
	}
}
