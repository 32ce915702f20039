package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreapp "scriptlib/internal/core/app"
	"scriptlib/internal/shared/observability"

	"github.com/spf13/cobra"
)

func newWatchCmd(rt *runtime) *cobra.Command {
	var flags buildFlags
	cmd := &cobra.Command{
		Use:   "watch [SOURCE [DESTINATION]]",
		Short: "Build the script library, then rebuild modules as they change",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 2 {
				return usage("watch accepts at most 2 arguments, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, used, err := flags.prepare(cmd, rt, args)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := observability.InitTracing(ctx, tracingConfig(cfg))
			if err != nil {
				slog.Warn("tracing disabled", "error", err)
			} else {
				defer shutdown(context.Background())
			}

			if cfg.Observability.Enabled {
				srv := observability.NewServer(cfg.Observability.Address, a.Health)
				if err := srv.Start(ctx); err != nil {
					return failure(err)
				}
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Stop(stopCtx)
				}()
			}

			err = a.Watch(ctx, coreapp.WatchOptions{
				ConfigPath:  used,
				Clean:       cfg.Build.Clean,
				Incremental: cfg.Build.Incremental,
				Workers:     cfg.Build.Workers,
				OnBuild: func(s coreapp.Summary) {
					printSummary(rt.stdout, s)
				},
			})
			if err != nil {
				return failure(err)
			}
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}
