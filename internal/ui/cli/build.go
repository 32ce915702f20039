package cli

import (
	"fmt"
	"log/slog"
	"strings"

	coreapp "scriptlib/internal/core/app"
	"scriptlib/internal/core/config"
	"scriptlib/internal/core/layout"
	"scriptlib/internal/engine/rewrite"
	"scriptlib/internal/shared/observability"

	"github.com/spf13/cobra"
)

// buildFlags are the options shared by build and watch. Only flags the
// user actually set override the configuration.
type buildFlags struct {
	source      string
	destination string
	roots       []string
	tabWidth    int
	noFold      bool
	strategy    string
	strict      bool
	clean       bool
	incremental bool
	workers     int
}

// register adds the transform flags, and the tree flags when batch is set.
func (f *buildFlags) register(cmd *cobra.Command, batch bool) {
	fl := cmd.Flags()
	fl.StringVarP(&f.source, "source", "s", "", "Project tree (default: paths.source)")
	fl.StringVarP(&f.destination, "destination", "d", "", "Script library tree (default: paths.destination)")
	fl.StringArrayVarP(&f.roots, "root", "l", nil, "Root module name; repeatable (default: top-level entries of the input tree)")
	fl.IntVar(&f.tabWidth, "tab-width", 0, "Spaces per indentation level folded into a tab")
	fl.BoolVar(&f.noFold, "no-fold", false, "Keep leading spaces instead of folding them into tabs")
	fl.StringVar(&f.strategy, "strategy", "", "Reference strategy: substitute or alias")
	fl.BoolVar(&f.strict, "strict", false, "Fail files whose output would not convert back")
	if !batch {
		return
	}
	fl.BoolVar(&f.clean, "clean", false, "Delete the output tree before writing")
	fl.BoolVar(&f.incremental, "incremental", false, "Skip files unchanged since the last build")
	fl.IntVar(&f.workers, "workers", 0, "Files converted in parallel")
}

// apply copies the changed flags into cfg and paths.
func (f *buildFlags) apply(cmd *cobra.Command, rt *runtime, cfg *config.Config, paths *config.ResolvedPaths) error {
	changed := cmd.Flags().Changed
	if changed("strategy") {
		s, err := rewrite.ParseStrategy(strings.ToLower(strings.TrimSpace(f.strategy)))
		if err != nil {
			return usage("--strategy: %v", err)
		}
		cfg.Build.Strategy = string(s)
	}
	if changed("tab-width") {
		if f.tabWidth < 1 || f.tabWidth > 16 {
			return usage("--tab-width must be between 1 and 16, got %d", f.tabWidth)
		}
		cfg.Build.TabWidth = f.tabWidth
	}
	if changed("no-fold") {
		fold := !f.noFold
		cfg.Build.FoldTabs = &fold
	}
	if changed("strict") {
		cfg.Build.Strict = f.strict
	}
	if changed("workers") {
		if f.workers < 1 {
			return usage("--workers must be >= 1, got %d", f.workers)
		}
		cfg.Build.Workers = f.workers
	}
	if changed("clean") {
		cfg.Build.Clean = f.clean
	}
	if changed("incremental") {
		// the ledger is opened only when incremental builds are configured
		cfg.Build.Incremental = f.incremental
	}
	if changed("root") {
		cfg.Build.Roots = append([]string(nil), f.roots...)
	}
	if changed("source") {
		paths.Source = rt.resolveFlagPath(f.source)
	}
	if changed("destination") {
		paths.Destination = rt.resolveFlagPath(f.destination)
	}
	if err := config.Validate(cfg); err != nil {
		return usage("%v", err)
	}
	return nil
}

// prepare loads the configuration, applies the flags and opens the app.
func (f *buildFlags) prepare(cmd *cobra.Command, rt *runtime, args []string) (*coreapp.App, *config.Config, string, error) {
	cfg, paths, used, err := rt.loadConfig()
	if err != nil {
		return nil, nil, "", err
	}
	if len(args) > 0 {
		paths.Source = rt.resolveFlagPath(args[0])
	}
	if len(args) > 1 {
		paths.Destination = rt.resolveFlagPath(args[1])
	}
	if err := f.apply(cmd, rt, cfg, &paths); err != nil {
		return nil, nil, "", err
	}
	a, err := rt.newApp(cfg, paths)
	if err != nil {
		return nil, nil, "", err
	}
	return a, cfg, used, nil
}

func newBuildCmd(rt *runtime) *cobra.Command {
	var (
		flags   buildFlags
		reverse bool
	)
	cmd := &cobra.Command{
		Use:   "build [SOURCE [DESTINATION]]",
		Short: "Convert the project tree into the script library, or back with --reverse",
		Long: `Convert every module of the project tree into a script library folder
holding code.py and resource.json. With --reverse the script library is
read and the project tree is written.

SOURCE is always the project tree and DESTINATION the script library,
whatever the direction.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 2 {
				return usage("build accepts at most 2 arguments, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, _, err := flags.prepare(cmd, rt, args)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			shutdown, err := observability.InitTracing(ctx, tracingConfig(cfg))
			if err != nil {
				slog.Warn("tracing disabled", "error", err)
			} else {
				defer shutdown(ctx)
			}

			direction := layout.Forward
			if reverse {
				direction = layout.Reverse
			}
			summary, err := a.Build(ctx, coreapp.BuildRequest{
				Direction:   direction,
				Clean:       cfg.Build.Clean,
				Incremental: cfg.Build.Incremental,
				Workers:     cfg.Build.Workers,
			})
			if err != nil {
				return failure(err)
			}
			printSummary(rt.stdout, summary)
			if !summary.OK() {
				return failure(fmt.Errorf("%d of %d files failed", len(summary.Failed), summary.Total))
			}
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Convert the script library back into the project tree")
	return cmd
}

func tracingConfig(cfg *config.Config) observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     cfg.Observability.EnableTracing,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		ServiceName: cfg.Observability.ServiceName,
	}
}
