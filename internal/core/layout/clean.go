// # internal/core/layout/clean.go
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	coreerrors "scriptlib/internal/core/errors"
	"scriptlib/internal/shared/util"
)

// Clean removes target and everything below it. It refuses to delete a
// filesystem root or any directory that contains one of the protected
// paths, since that would destroy the other side of the build.
func Clean(target string, protected ...string) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return &coreerrors.DestructiveOperationError{Path: target, Err: err}
	}
	if filepath.Dir(abs) == abs {
		return &coreerrors.DestructiveOperationError{Path: abs, Err: fmt.Errorf("refusing to clean a filesystem root")}
	}
	for _, p := range protected {
		pAbs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if util.HasPathPrefix(filepath.ToSlash(pAbs), filepath.ToSlash(abs)) {
			return &coreerrors.DestructiveOperationError{
				Path: abs,
				Err:  fmt.Errorf("refusing to clean a directory containing %s", pAbs),
			}
		}
	}
	if err := os.RemoveAll(abs); err != nil {
		return &coreerrors.DestructiveOperationError{Path: abs, Err: err}
	}
	return nil
}

// TopLevelModules lists the directories and module files directly under
// source. They are the default roots whose directives get rewritten.
func TopLevelModules(source string) ([]string, error) {
	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, coreerrors.WrapPath(err, "list source", source)
	}
	var roots []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "__") {
			continue
		}
		switch {
		case e.IsDir():
			roots = append(roots, name)
		case strings.HasSuffix(name, sourceExt):
			roots = append(roots, strings.TrimSuffix(name, sourceExt))
		}
	}
	return roots, nil
}
