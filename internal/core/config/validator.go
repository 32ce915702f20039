package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// Validate checks every section and joins all problems into one error.
func Validate(cfg *Config) error {
	var errs []error
	for _, check := range []func(*Config) error{
		validateVersion,
		validateBuild,
		validateExclude,
		validateDescriptor,
		validateWatch,
		validateDatabase,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateBuild(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Build.Strategy)) {
	case "substitute", "alias":
	default:
		return fmt.Errorf("build.strategy must be one of: substitute, alias, got %q", cfg.Build.Strategy)
	}
	if cfg.Build.TabWidth < 1 || cfg.Build.TabWidth > 16 {
		return fmt.Errorf("build.tab_width must be between 1 and 16, got %d", cfg.Build.TabWidth)
	}
	if cfg.Build.Workers < 1 {
		return fmt.Errorf("build.workers must be >= 1, got %d", cfg.Build.Workers)
	}
	for _, root := range append(append([]string(nil), cfg.Build.Roots...), cfg.Build.ReservedRoots...) {
		if !isIdentifier(root) {
			return fmt.Errorf("build roots must be plain module names, got %q", root)
		}
	}
	if (cfg.Declaration.Source == "") != (cfg.Declaration.Host == "") {
		return fmt.Errorf("declaration.source and declaration.host must both be set or both be empty")
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for _, pattern := range append(append([]string(nil), cfg.Exclude.Dirs...), cfg.Exclude.Files...) {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateDescriptor(cfg *Config) error {
	if _, err := time.Parse(time.RFC3339, cfg.Descriptor.Timestamp); err != nil {
		return fmt.Errorf("descriptor.timestamp must be RFC 3339: %w", err)
	}
	if cfg.Descriptor.HintScope < 0 {
		return fmt.Errorf("descriptor.hint_scope must be >= 0, got %d", cfg.Descriptor.HintScope)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.RebuildRate < 0 {
		return fmt.Errorf("watch.rebuild_rate must be >= 0, got %v", cfg.Watch.RebuildRate)
	}
	if cfg.Watch.RebuildBurst < 1 {
		return fmt.Errorf("watch.rebuild_burst must be >= 1, got %d", cfg.Watch.RebuildBurst)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Enabled && strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c > 0x7f:
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
