package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "SCRIPTLIB_"

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: SCRIPTLIB_[SECTION]_[KEY] (e.g., SCRIPTLIB_BUILD_TAB_WIDTH).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.Source, "PATHS_SOURCE")
	setEnvString(&cfg.Paths.Destination, "PATHS_DESTINATION")
	setEnvString(&cfg.Paths.DatabaseDir, "PATHS_DATABASE_DIR")

	// Build
	setEnvList(&cfg.Build.Roots, "BUILD_ROOTS")
	setEnvList(&cfg.Build.ReservedRoots, "BUILD_RESERVED_ROOTS")
	setEnvString(&cfg.Build.Strategy, "BUILD_STRATEGY")
	setEnvInt(&cfg.Build.TabWidth, "BUILD_TAB_WIDTH")
	setEnvBoolPtr(&cfg.Build.FoldTabs, "BUILD_FOLD_TABS")
	setEnvBoolPtr(&cfg.Build.VerifyRoundTrip, "BUILD_VERIFY_ROUND_TRIP")
	setEnvBool(&cfg.Build.Strict, "BUILD_STRICT")
	setEnvInt(&cfg.Build.Workers, "BUILD_WORKERS")
	setEnvBool(&cfg.Build.Clean, "BUILD_CLEAN")
	setEnvBool(&cfg.Build.Incremental, "BUILD_INCREMENTAL")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.RebuildRate, "WATCH_REBUILD_RATE")
	setEnvInt(&cfg.Watch.RebuildBurst, "WATCH_REBUILD_BURST")

	// Database
	setEnvBool(&cfg.DB.Enabled, "DB_ENABLED")
	setEnvString(&cfg.DB.Path, "DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "DB_BUSY_TIMEOUT")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "OBSERVABILITY_ENABLE_TRACING")
}

func lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(envPrefix + key)
	if ok {
		slog.Debug("applying env override", "key", envPrefix+key, "value", val)
	}
	return val, ok
}

func setEnvString(target *string, key string) {
	if val, ok := lookup(key); ok {
		*target = val
	}
}

// setEnvList splits a comma separated value.
func setEnvList(target *[]string, key string) {
	if val, ok := lookup(key); ok {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := lookup(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := lookup(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}
