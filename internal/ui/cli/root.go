// Package cli implements the scriptlib command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cwd, err := os.Getwd()
	if err != nil {
		io.WriteString(stderr, "error: detect working directory: "+err.Error()+"\n")
		return ExitFailure
	}
	return execute(ctx, newRuntime(stdout, stderr, cwd), args)
}

func execute(ctx context.Context, rt *runtime, args []string) int {
	cmd := newRootCmd(rt)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	rt.teardown()
	if err != nil {
		io.WriteString(rt.stderr, errorStyle.Render("error:")+" "+err.Error()+"\n")
	}
	return ExitCode(err)
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "scriptlib",
		Short: "Convert Python projects to a flat script library and back",
		Long: `scriptlib converts a hierarchical Python project into the script-library
layout of a scripting host, one folder per module holding code.py and
resource.json, and converts such a library back into a project.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup()
		},
	}
	root.SetOut(rt.stdout)
	root.SetErr(rt.stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usage("%v", err)
	})

	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "Path to config file (default: discover data/config/scriptlib.toml or scriptlib.toml)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&rt.logFile, "log-file", "", "Write logs to this file instead of the terminal")

	root.AddCommand(newBuildCmd(rt))
	root.AddCommand(newWatchCmd(rt))
	root.AddCommand(newConvertCmd(rt))
	root.AddCommand(newRunsCmd(rt))
	root.AddCommand(newVersionCmd(rt))
	return root
}

func newVersionCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			io.WriteString(rt.stdout, "scriptlib v"+Version+"\n")
		},
	}
}
