// Package layout maps a hierarchical Python project onto the host's script
// library layout and back. It plans the work; it does not transform code.
package layout

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	coreerrors "scriptlib/internal/core/errors"
	"scriptlib/internal/core/descriptor"

	"github.com/gobwas/glob"
)

const (
	sourceExt   = ".py"
	packageInit = "__init__.py"
)

type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Job is one file to transform.
type Job struct {
	// Rel is the module path relative to the source root, slash separated
	// and without extension, e.g. "pkg/mod".
	Rel string
	// Input is the file read; Output the file written.
	Input  string
	Output string
	// Descriptor is the resource.json path: written on forward builds, read
	// on reverse builds.
	Descriptor string
}

// Plan is the full set of work for one build.
type Plan struct {
	Direction Direction
	Dirs      []string // directories to create, parents first
	Packages  []string // __init__.py files to create when missing
	Jobs      []Job
	// Warnings are tree-level problems that do not stop the build.
	Warnings []Warning
}

// Warning concerns one module path of the plan.
type Warning struct {
	Rel     string
	Message string
}

type Walker struct {
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func NewWalker(excludeDirs, excludeFiles []string) (*Walker, error) {
	w := &Walker{}
	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeValidationError, "invalid exclude dir pattern "+pattern)
		}
		w.excludeDirs = append(w.excludeDirs, g)
	}
	for _, pattern := range excludeFiles {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeValidationError, "invalid exclude file pattern "+pattern)
		}
		w.excludeFiles = append(w.excludeFiles, g)
	}
	return w, nil
}

func (w *Walker) ExcludedDir(path string) bool {
	return matchAny(w.excludeDirs, filepath.Base(path))
}

func (w *Walker) ExcludedFile(path string) bool {
	return matchAny(w.excludeFiles, filepath.Base(path))
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// IsModuleSource reports whether a project file becomes a script module.
// Package markers are dropped because the host has no packages.
func (w *Walker) IsModuleSource(path string) bool {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, sourceExt) || strings.Contains(name, "__init__") {
		return false
	}
	return !w.ExcludedFile(path)
}

// PlanForward plans a project -> host build. Every non-excluded directory
// is mirrored, and every module source gets its own folder holding
// code.py and resource.json.
func (w *Walker) PlanForward(source, dest string) (Plan, error) {
	plan := Plan{Direction: Forward}
	packages := make(map[string]bool)
	err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return coreerrors.WrapPath(err, "walk source", path)
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if w.ExcludedDir(path) {
				return filepath.SkipDir
			}
			plan.Dirs = append(plan.Dirs, filepath.Join(dest, rel))
			packages[filepath.ToSlash(rel)] = true
			return nil
		}
		if !w.IsModuleSource(path) {
			return nil
		}
		plan.Jobs = append(plan.Jobs, ForwardJob(source, dest, rel))
		return nil
	})
	if err != nil {
		return Plan{}, err
	}
	for _, job := range plan.Jobs {
		if packages[job.Rel] {
			plan.Warnings = append(plan.Warnings, Warning{
				Rel:     job.Rel,
				Message: "module " + job.Rel + sourceExt + " and package " + job.Rel + "/ share one folder; a reverse build restores only the module",
			})
		}
	}
	plan.sort()
	return plan, nil
}

// ForwardJob builds the job for one project file given relative to source.
func ForwardJob(source, dest, rel string) Job {
	module := strings.TrimSuffix(rel, sourceExt)
	folder := filepath.Join(dest, module)
	return Job{
		Rel:        filepath.ToSlash(module),
		Input:      filepath.Join(source, rel),
		Output:     filepath.Join(folder, descriptor.CodeFile),
		Descriptor: filepath.Join(folder, descriptor.FileName),
	}
}

// PlanReverse plans a host -> project build. A folder holding code.py is a
// module and becomes <name>.py; any other folder becomes a package with an
// __init__.py.
func (w *Walker) PlanReverse(build, project string) (Plan, error) {
	plan := Plan{Direction: Reverse}
	err := filepath.WalkDir(build, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return coreerrors.WrapPath(err, "walk build", path)
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(build, path)
		if err != nil {
			return err
		}
		if rel != "." && w.ExcludedDir(path) {
			return filepath.SkipDir
		}

		code := filepath.Join(path, descriptor.CodeFile)
		if info, statErr := os.Stat(code); statErr == nil && !info.IsDir() && rel != "." {
			plan.Jobs = append(plan.Jobs, Job{
				Rel:        filepath.ToSlash(rel),
				Input:      code,
				Output:     filepath.Join(project, rel+sourceExt),
				Descriptor: filepath.Join(path, descriptor.FileName),
			})
			if nested := w.nestedDirs(path); len(nested) > 0 {
				plan.Warnings = append(plan.Warnings, Warning{
					Rel:     filepath.ToSlash(rel),
					Message: "module folder also holds " + strings.Join(nested, ", ") + "; nested modules are not restored",
				})
			}
			return filepath.SkipDir
		}
		if rel == "." {
			return nil
		}
		dir := filepath.Join(project, rel)
		plan.Dirs = append(plan.Dirs, dir)
		plan.Packages = append(plan.Packages, filepath.Join(dir, packageInit))
		return nil
	})
	if err != nil {
		return Plan{}, err
	}
	plan.sort()
	return plan, nil
}

// nestedDirs lists the non-excluded subdirectories of a module folder.
func (w *Walker) nestedDirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !w.ExcludedDir(filepath.Join(dir, e.Name())) {
			names = append(names, e.Name())
		}
	}
	return names
}

func (p *Plan) sort() {
	sort.Strings(p.Dirs)
	sort.Strings(p.Packages)
	sort.Slice(p.Jobs, func(i, j int) bool { return p.Jobs[i].Rel < p.Jobs[j].Rel })
}

// Prepare creates the planned directories and missing package markers.
// Existing __init__.py files are left untouched.
func (p Plan) Prepare() error {
	for _, dir := range p.Dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return coreerrors.WrapPath(err, "create directory", dir)
		}
	}
	for _, marker := range p.Packages {
		if _, err := os.Stat(marker); err == nil {
			continue
		}
		f, err := os.OpenFile(marker, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return coreerrors.WrapPath(err, "create package marker", marker)
		}
		if err := f.Close(); err != nil {
			return coreerrors.WrapPath(err, "create package marker", marker)
		}
	}
	return nil
}
