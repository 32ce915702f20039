package cli

import (
	"io"
	"log/slog"

	"scriptlib/internal/core/layout"

	"github.com/spf13/cobra"
)

func newConvertCmd(rt *runtime) *cobra.Command {
	var (
		flags   buildFlags
		reverse bool
	)
	cmd := &cobra.Command{
		Use:   "convert [--reverse] FILE",
		Short: "Convert one file and print the result",
		Long: `Convert one project module to its script library form, or a code.py
back to its project form with --reverse, and print the result. Neither
tree is modified.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usage("convert requires exactly 1 file, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := flags.prepare(cmd, rt, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			direction := layout.Forward
			if reverse {
				direction = layout.Reverse
			}
			path := rt.resolveFlagPath(args[0])
			res, err := a.ConvertFile(direction, path)
			if err != nil {
				return failure(err)
			}
			for _, w := range res.Warnings {
				slog.Warn(w, "file", path)
			}
			if _, err := io.WriteString(rt.stdout, res.Text); err != nil {
				return failure(err)
			}
			return nil
		},
	}
	flags.register(cmd, false)
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Convert from the script library form")
	return cmd
}
