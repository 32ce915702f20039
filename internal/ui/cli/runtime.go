package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	coreapp "scriptlib/internal/core/app"
	"scriptlib/internal/core/config"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Version is the scriptlib release.
const Version = "1.0.0"

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func failure(err error) error { return &exitError{code: ExitFailure, err: err} }

func usage(format string, args ...any) error {
	return &exitError{code: ExitUsage, err: fmt.Errorf(format, args...)}
}

// ExitCode maps a command error to the process exit code. Errors not
// produced by a command body come from cobra's argument handling.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsage
}

// runtime is the state shared by every command of one invocation.
type runtime struct {
	stdout io.Writer
	stderr io.Writer
	cwd    string

	configPath string
	logFile    string
	verbose    bool

	closeLog func()
}

func newRuntime(stdout, stderr io.Writer, cwd string) *runtime {
	return &runtime{stdout: stdout, stderr: stderr, cwd: cwd, closeLog: func() {}}
}

// setup loads an optional .env file and installs the logger.
func (r *runtime) setup() error {
	envPath := filepath.Join(r.cwd, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(r.stderr, "warning: failed to load %s: %v\n", envPath, err)
		}
	}

	closeFn, err := configureLogging(r.stderr, r.verbose, r.logFile)
	if err != nil {
		return failure(err)
	}
	r.closeLog = closeFn
	return nil
}

func (r *runtime) teardown() {
	if r.closeLog != nil {
		r.closeLog()
	}
}

// configureLogging routes slog through a charmbracelet logger. With a log
// file the output goes there instead of the terminal.
func configureLogging(out io.Writer, verbose bool, logFile string) (func(), error) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	closeFn := func() {}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
			return closeFn, fmt.Errorf("create log dir for %s: %w", logFile, err)
		}
		if fi, err := os.Lstat(logFile); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
			return closeFn, fmt.Errorf("refusing to write logs to symlink path %s", logFile)
		}
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return closeFn, fmt.Errorf("open log file %s: %w", logFile, err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           level,
		ReportTimestamp: verbose || logFile != "",
		TimeFormat:      time.DateTime,
	})
	slog.SetDefault(slog.New(logger))
	return closeFn, nil
}

// loadConfig reads the explicit config file, or the one discovered from
// the working directory, and resolves its paths.
func (r *runtime) loadConfig() (*config.Config, config.ResolvedPaths, string, error) {
	path := r.configPath
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.cwd, path)
	}
	cfg, used, err := config.LoadOrDefault(path, r.cwd)
	if err != nil {
		return nil, config.ResolvedPaths{}, "", failure(fmt.Errorf("load config: %w", err))
	}
	if used != "" {
		slog.Debug("configuration loaded", "path", used)
	} else {
		slog.Debug("no configuration file found; using defaults")
	}

	base := r.cwd
	if used != "" && cfg.Paths.ProjectRoot == "" {
		base = filepath.Dir(used)
		if filepath.Base(base) == "config" && filepath.Base(filepath.Dir(base)) == "data" {
			base = filepath.Dir(filepath.Dir(base))
		}
	}
	paths, err := config.ResolvePaths(cfg, base)
	if err != nil {
		return nil, config.ResolvedPaths{}, "", failure(fmt.Errorf("resolve paths: %w", err))
	}
	return cfg, paths, used, nil
}

func (r *runtime) newApp(cfg *config.Config, paths config.ResolvedPaths) (*coreapp.App, error) {
	a, err := coreapp.New(cfg, paths)
	if err != nil {
		return nil, failure(err)
	}
	return a, nil
}

// resolveFlagPath makes a path given on the command line absolute.
func (r *runtime) resolveFlagPath(value string) string {
	return config.ResolveRelative(r.cwd, value)
}
