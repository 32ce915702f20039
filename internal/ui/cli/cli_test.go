package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	coreapp "scriptlib/internal/core/app"
	"scriptlib/internal/core/layout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var projectFiles = map[string]string{
	"src/pkg/__init__.py": "",
	"src/pkg/util.py":     "def helper():\n    return 1\n",
	"src/pkg/mod.py":      "from pkg.util import helper\n\n\ndef run():\n    return helper()\n",
	"src/main.py":         "# coding=utf-8\nfrom pkg import mod\n\nmod.run()\n",
	"scriptlib.toml":      "version = 1\n",
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range projectFiles {
		writeFile(t, filepath.Join(dir, rel), content)
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func run(t *testing.T, dir string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), newRuntime(&stdout, &stderr, dir), args)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := run(t, t.TempDir(), "version")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "scriptlib v"+Version+"\n", out)
}

func TestBuild_ForwardAndReverse(t *testing.T) {
	dir := newProject(t)

	code, out, stderr := run(t, dir, "build")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, out, "written: 3")
	assert.FileExists(t, filepath.Join(dir, "build", "script-python", "pkg", "mod", "code.py"))
	assert.FileExists(t, filepath.Join(dir, "build", "script-python", "pkg", "mod", "resource.json"))

	code, _, stderr = run(t, dir, "build", "--reverse", "-s", "restored")
	require.Equal(t, ExitOK, code, stderr)
	data, err := os.ReadFile(filepath.Join(dir, "restored", "pkg", "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, projectFiles["src/pkg/mod.py"], string(data))
}

func TestBuild_PositionalTrees(t *testing.T) {
	dir := newProject(t)
	code, _, stderr := run(t, dir, "build", "src", "out")
	require.Equal(t, ExitOK, code, stderr)
	assert.FileExists(t, filepath.Join(dir, "out", "main", "code.py"))
}

func TestBuild_FileFailureExitsOne(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "src", "pkg", "bad.py"), "from pkg.util import *\n")

	code, out, stderr := run(t, dir, "build")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "pkg/bad")
	assert.Contains(t, stderr, "1 of 4 files failed")
	assert.FileExists(t, filepath.Join(dir, "build", "script-python", "pkg", "mod", "code.py"))
}

func TestBuild_UsageErrors(t *testing.T) {
	dir := newProject(t)
	for name, args := range map[string][]string{
		"unknown flag":   {"build", "--nope"},
		"bad strategy":   {"build", "--strategy", "rename"},
		"bad tab width":  {"build", "--tab-width", "0"},
		"bad workers":    {"build", "--workers", "0"},
		"too many trees": {"build", "a", "b", "c"},
		"unknown cmd":    {"frobnicate"},
	} {
		t.Run(name, func(t *testing.T) {
			code, _, _ := run(t, dir, args...)
			assert.Equal(t, ExitUsage, code)
		})
	}
}

func TestBuild_MissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scriptlib.toml"), "version = 1\n")
	code, _, stderr := run(t, dir, "build")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "error:")
}

func TestBuild_StrategyFlag(t *testing.T) {
	dir := newProject(t)
	code, _, stderr := run(t, dir, "build", "--strategy", "alias")
	require.Equal(t, ExitOK, code, stderr)
	data, err := os.ReadFile(filepath.Join(dir, "build", "script-python", "pkg", "mod", "code.py"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "helper = pkg.util.helper")

	// the library is tagged alias, so a substitute reverse build refuses it
	code, out, _ := run(t, dir, "build", "--reverse", "-s", "restored")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "failed: 3")
}

func TestConvert(t *testing.T) {
	dir := newProject(t)

	code, out, stderr := run(t, dir, "convert", filepath.Join("src", "pkg", "mod.py"))
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, out, "# from pkg.util import helper")
	assert.Contains(t, out, "\treturn pkg.util.helper()")

	code, _, _ = run(t, dir, "convert")
	assert.Equal(t, ExitUsage, code)

	code, _, _ = run(t, dir, "convert", "missing.py")
	assert.Equal(t, ExitFailure, code)
}

func TestConvert_Reverse(t *testing.T) {
	dir := newProject(t)
	code, _, stderr := run(t, dir, "build")
	require.Equal(t, ExitOK, code, stderr)

	code, out, stderr := run(t, dir, "convert", "--reverse", filepath.Join("build", "script-python", "pkg", "mod", "code.py"))
	require.Equal(t, ExitOK, code, stderr)
	assert.Equal(t, projectFiles["src/pkg/mod.py"], out)
}

func TestRuns(t *testing.T) {
	dir := newProject(t)

	code, out, stderr := run(t, dir, "runs")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, out, "no builds recorded")

	code, _, stderr = run(t, dir, "build", "--incremental")
	require.Equal(t, ExitOK, code, stderr)

	code, out, stderr = run(t, dir, "runs", "--limit", "5")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, out, "forward")
	assert.Contains(t, out, "substitute")

	code, _, _ = run(t, dir, "runs", "--limit", "0")
	assert.Equal(t, ExitUsage, code)
}

func TestLogFile(t *testing.T) {
	dir := newProject(t)
	logPath := filepath.Join(dir, "logs", "scriptlib.log")

	code, _, stderr := run(t, dir, "build", "--verbose", "--log-file", logPath)
	require.Equal(t, ExitOK, code, stderr)
	assert.FileExists(t, logPath)
}

func TestLogFile_RefusesSymlink(t *testing.T) {
	dir := newProject(t)
	target := filepath.Join(dir, "target.log")
	writeFile(t, target, "")
	link := filepath.Join(dir, "link.log")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	code, _, stderr := run(t, dir, "version", "--log-file", link)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "symlink")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(failure(errors.New("boom"))))
	assert.Equal(t, ExitUsage, ExitCode(usage("bad %s", "flag")))
	assert.Equal(t, ExitUsage, ExitCode(errors.New("unknown command")))
}

func TestFormatSummary(t *testing.T) {
	s := coreapp.Summary{
		Direction:   layout.Forward,
		Strategy:    "substitute",
		Source:      "src",
		Destination: "build",
		Total:       2,
		Written:     1,
		Directives:  4,
		Warnings:    []coreapp.FileWarning{{Rel: "pkg/mod", Message: "unterminated literal block"}},
		Failed:      []coreapp.FileError{{Rel: "pkg/bad", Err: errors.New("malformed")}},
	}
	out := formatSummary(s)
	assert.Contains(t, out, "scriptlib forward")
	assert.Contains(t, out, "src -> build")
	assert.Contains(t, out, "files: 2  written: 1  skipped: 0  failed: 1  directives: 4")
	assert.Contains(t, out, "pkg/mod: unterminated literal block")
	assert.Contains(t, out, "pkg/bad: malformed")
}
