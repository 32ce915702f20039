// # internal/core/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const FileName = "scriptlib.toml"

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Build         Build         `toml:"build"`
	Declaration   Declaration   `toml:"declaration"`
	Exclude       Exclude       `toml:"exclude"`
	Descriptor    Descriptor    `toml:"descriptor"`
	Cache         Cache         `toml:"cache"`
	Watch         Watch         `toml:"watch"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	Source      string `toml:"source"`
	Destination string `toml:"destination"`
	DatabaseDir string `toml:"database_dir"`
}

type Build struct {
	Roots           []string `toml:"roots"`
	ReservedRoots   []string `toml:"reserved_roots"`
	Strategy        string   `toml:"strategy"`
	TabWidth        int      `toml:"tab_width"`
	FoldTabs        *bool    `toml:"fold_tabs"`
	VerifyRoundTrip *bool    `toml:"verify_round_trip"`
	Strict          bool     `toml:"strict"`
	Workers         int      `toml:"workers"`
	Clean           bool     `toml:"clean"`
	Incremental     bool     `toml:"incremental"`
}

// Fold reports whether leading spaces are folded into tabs.
func (b Build) Fold() bool { return b.FoldTabs == nil || *b.FoldTabs }

// Verify reports whether forward output is checked for reversibility.
func (b Build) Verify() bool { return b.VerifyRoundTrip == nil || *b.VerifyRoundTrip }

type Declaration struct {
	Source string `toml:"source"`
	Host   string `toml:"host"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Descriptor struct {
	Actor     string `toml:"actor"`
	Timestamp string `toml:"timestamp"`
	HintScope int    `toml:"hint_scope"`
	Signature string `toml:"signature"`
}

type Cache struct {
	Directives int `toml:"directives"`
}

type Watch struct {
	Debounce     time.Duration `toml:"debounce"`
	RebuildRate  float64       `toml:"rebuild_rate"`
	RebuildBurst int           `toml:"rebuild_burst"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Address       string `toml:"address"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
	ServiceName   string `toml:"service_name"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Discover looks for the config file in ./data/config then ./ under dir.
func Discover(dir string) (string, bool) {
	for _, candidate := range []string{
		filepath.Join(dir, "data", "config", FileName),
		filepath.Join(dir, FileName),
	} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// LoadOrDefault loads path, or the discovered file under dir when path is
// empty, falling back to the defaults when neither exists.
func LoadOrDefault(path, dir string) (*Config, string, error) {
	if strings.TrimSpace(path) == "" {
		found, ok := Discover(dir)
		if !ok {
			cfg := Default()
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
		path = found
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.Source) == "" {
		cfg.Paths.Source = "src"
	}
	if strings.TrimSpace(cfg.Paths.Destination) == "" {
		cfg.Paths.Destination = filepath.Join("build", "script-python")
	}
	if strings.TrimSpace(cfg.Paths.DatabaseDir) == "" {
		cfg.Paths.DatabaseDir = filepath.Join("data", "database")
	}

	if cfg.Build.ReservedRoots == nil {
		cfg.Build.ReservedRoots = []string{"system"}
	}
	if strings.TrimSpace(cfg.Build.Strategy) == "" {
		cfg.Build.Strategy = "substitute"
	}
	if cfg.Build.TabWidth == 0 {
		cfg.Build.TabWidth = 4
	}
	if cfg.Build.Workers == 0 {
		cfg.Build.Workers = 1
	}

	if cfg.Declaration.Source == "" && cfg.Declaration.Host == "" {
		cfg.Declaration.Source = "# coding="
		cfg.Declaration.Host = "# CODING="
	}

	if cfg.Exclude.Dirs == nil {
		cfg.Exclude.Dirs = []string{"__pycache__", ".*"}
	}
	if cfg.Exclude.Files == nil {
		cfg.Exclude.Files = []string{"*.pyc"}
	}

	if strings.TrimSpace(cfg.Descriptor.Actor) == "" {
		cfg.Descriptor.Actor = "external"
	}
	if strings.TrimSpace(cfg.Descriptor.Timestamp) == "" {
		cfg.Descriptor.Timestamp = "2023-01-01T00:00:00Z"
	}
	if cfg.Descriptor.HintScope == 0 {
		cfg.Descriptor.HintScope = 2
	}
	if strings.TrimSpace(cfg.Descriptor.Signature) == "" {
		cfg.Descriptor.Signature = "b0559c76c17737786bda6d382e91f682211c23721930003c538aeef6a42a577d"
	}

	if cfg.Cache.Directives == 0 {
		cfg.Cache.Directives = 1024
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RebuildRate == 0 {
		cfg.Watch.RebuildRate = 2
	}
	if cfg.Watch.RebuildBurst == 0 {
		cfg.Watch.RebuildBurst = 1
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "ledger.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "scriptlib"
	}
}
