package app

import (
	"os"
	"path/filepath"

	"scriptlib/internal/core/descriptor"
	coreerrors "scriptlib/internal/core/errors"
	"scriptlib/internal/core/layout"
	"scriptlib/internal/engine/transform"
)

// ConvertFile transforms a single file without touching the trees. A
// reverse conversion honours the descriptor sitting next to the file, if
// there is one.
func (a *App) ConvertFile(direction layout.Direction, path string) (transform.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transform.Result{}, coreerrors.WrapPath(err, "read", path)
	}
	return a.Convert(direction, path, string(data))
}

// Convert transforms text as if it were read from path.
func (a *App) Convert(direction layout.Direction, path, text string) (transform.Result, error) {
	if direction != layout.Reverse {
		roots, err := a.Roots(a.Paths.Source)
		if err != nil {
			return transform.Result{}, err
		}
		return a.engine(roots).Forward(path, text)
	}

	roots, err := a.Roots(a.Paths.Destination)
	if err != nil {
		return transform.Result{}, err
	}
	var tag descriptor.Tag
	meta := filepath.Join(filepath.Dir(path), descriptor.FileName)
	if _, statErr := os.Stat(meta); statErr == nil {
		res, err := descriptor.Read(meta)
		if err != nil {
			return transform.Result{}, err
		}
		if res.Attributes.Scriptlib != nil {
			tag = *res.Attributes.Scriptlib
		}
	}
	if len(a.config().Build.Roots) == 0 && len(tag.Roots) > 0 {
		roots = normalizeRoots(tag.Roots)
	}
	tagged, err := taggedStrategy(meta, tag)
	if err != nil {
		return transform.Result{}, err
	}
	return a.engine(roots).Inverse(path, text, tagged)
}
