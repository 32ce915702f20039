// Package app runs builds: it plans a tree, transforms every module with the
// engine and writes the other layout, optionally recording each write in the
// ledger so later builds can skip unchanged files.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"scriptlib/internal/core/config"
	"scriptlib/internal/core/descriptor"
	coreerrors "scriptlib/internal/core/errors"
	"scriptlib/internal/core/layout"
	"scriptlib/internal/data/ledger"
	"scriptlib/internal/engine/parser"
	"scriptlib/internal/engine/rewrite"
	"scriptlib/internal/engine/transform"
)

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	extractor parser.Extractor
	ledger    *ledger.Store

	mu          sync.RWMutex
	walker      *layout.Walker
	descriptors *descriptor.Generator
	strategy    rewrite.Strategy
	engines     map[string]*transform.Engine

	startedAt time.Time
	builds    atomic.Int64
	lastErrMu sync.Mutex
	lastErr   string
}

// New wires an App for cfg. The ledger is opened when the database is
// enabled or incremental builds are requested.
func New(cfg *config.Config, paths config.ResolvedPaths) (*App, error) {
	if cfg == nil {
		return nil, coreerrors.New(coreerrors.CodeValidationError, "config is required")
	}

	extractor, err := parser.NewCachedExtractor(parser.NewPythonExtractor(), cfg.Cache.Directives)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "create directive cache")
	}

	a := &App{
		Paths:     paths,
		extractor: extractor,
		startedAt: time.Now().UTC(),
	}
	if err := a.apply(cfg); err != nil {
		return nil, err
	}

	if cfg.DB.Enabled || cfg.Build.Incremental {
		store, err := ledger.Open(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeIO, "open build ledger")
		}
		a.ledger = store
		slog.Debug("build ledger opened", "path", store.Path())
	}
	return a, nil
}

// Reload swaps in a new configuration. Paths and the ledger stay as they
// were opened; everything else is rebuilt.
func (a *App) Reload(cfg *config.Config) error {
	if err := a.apply(cfg); err != nil {
		return err
	}
	slog.Info("configuration reloaded", "strategy", a.Strategy())
	return nil
}

func (a *App) apply(cfg *config.Config) error {
	strategy, err := rewrite.ParseStrategy(cfg.Build.Strategy)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeValidationError, "invalid build strategy")
	}
	walker, err := layout.NewWalker(cfg.Exclude.Dirs, cfg.Exclude.Files)
	if err != nil {
		return err
	}
	gen := descriptor.NewGenerator(descriptor.Options{
		Actor:     cfg.Descriptor.Actor,
		Timestamp: cfg.Descriptor.Timestamp,
		HintScope: cfg.Descriptor.HintScope,
		Signature: cfg.Descriptor.Signature,
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Config = cfg
	a.walker = walker
	a.descriptors = gen
	a.strategy = strategy
	a.engines = make(map[string]*transform.Engine)
	return nil
}

func (a *App) Close() error {
	if a == nil || a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}

// Ledger returns the build ledger, nil when disabled.
func (a *App) Ledger() *ledger.Store { return a.ledger }

func (a *App) Strategy() rewrite.Strategy {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.strategy
}

func (a *App) Walker() *layout.Walker {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.walker
}

func (a *App) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Config
}

// engine returns the memoised engine for a root set.
func (a *App) engine(roots []string) *transform.Engine {
	key := strings.Join(roots, ",")

	a.mu.RLock()
	eng, ok := a.engines[key]
	cfg, strategy := a.Config, a.strategy
	a.mu.RUnlock()
	if ok {
		return eng
	}

	eng = transform.New(transform.Options{
		Roots:           rewrite.NewRootSet(roots, cfg.Build.ReservedRoots),
		Strategy:        strategy,
		TabWidth:        cfg.Build.TabWidth,
		FoldTabs:        cfg.Build.Fold(),
		Declaration:     transform.Declaration{Source: cfg.Declaration.Source, Host: cfg.Declaration.Host},
		VerifyRoundTrip: cfg.Build.Verify(),
		Strict:          cfg.Build.Strict,
	}, a.extractor)

	a.mu.Lock()
	if existing, ok := a.engines[key]; ok {
		eng = existing
	} else {
		a.engines[key] = eng
	}
	a.mu.Unlock()
	return eng
}

// Roots returns the configured roots, or the top-level modules of dir when
// none are configured.
func (a *App) Roots(dir string) ([]string, error) {
	cfg := a.config()
	if len(cfg.Build.Roots) > 0 {
		return normalizeRoots(cfg.Build.Roots), nil
	}
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coreerrors.WrapPath(err, "stat", dir)
	}
	roots, err := layout.TopLevelModules(dir)
	if err != nil {
		return nil, err
	}
	return normalizeRoots(roots), nil
}

func normalizeRoots(roots []string) []string {
	seen := make(map[string]bool, len(roots))
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (a *App) recordError(err error) {
	a.lastErrMu.Lock()
	defer a.lastErrMu.Unlock()
	if err == nil {
		a.lastErr = ""
		return
	}
	a.lastErr = err.Error()
}

func (a *App) String() string {
	return fmt.Sprintf("app(strategy=%s, source=%s, destination=%s)", a.Strategy(), a.Paths.Source, a.Paths.Destination)
}
