package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd(rt *runtime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent builds recorded in the build ledger",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usage("runs takes no arguments")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return usage("--limit must be >= 1, got %d", limit)
			}
			cfg, paths, _, err := rt.loadConfig()
			if err != nil {
				return err
			}
			cfg.DB.Enabled = true
			a, err := rt.newApp(cfg, paths)
			if err != nil {
				return err
			}
			defer a.Close()

			store := a.Ledger()
			if store == nil {
				return failure(errors.New("build ledger is not available"))
			}
			runs, err := store.RecentRuns(limit)
			if err != nil {
				return failure(err)
			}
			if len(runs) == 0 {
				io.WriteString(rt.stdout, mutedStyle.Render("no builds recorded")+"\n")
				return nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%-36s  %-8s  %-10s  %-19s  %6s  %7s  %7s  %6s\n",
				"RUN", "DIRECTION", "STRATEGY", "STARTED", "TOTAL", "WRITTEN", "SKIPPED", "FAILED")
			for _, r := range runs {
				fmt.Fprintf(&b, "%-36s  %-8s  %-10s  %-19s  %6d  %7d  %7d  %6d\n",
					r.ID, r.Direction, r.Strategy, r.StartedAt.Local().Format(time.DateTime),
					r.Counts.Total, r.Counts.Written, r.Counts.Skipped, r.Counts.Failed)
			}
			io.WriteString(rt.stdout, b.String())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}
