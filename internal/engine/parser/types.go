package parser

import (
	"strings"
)

// ImportedName is one entry of a `from X import a, b as c` list.
type ImportedName struct {
	Name  string
	Alias string
}

// Local is the identifier the name is bound to in the importing module.
func (n ImportedName) Local() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// ModuleReference is one parsed module reference. A plain `import a.b.c`
// produces a reference with no Names; `from a.b import x, y as z` produces
// one reference per imported name, each carrying a single ImportedName.
type ModuleReference struct {
	Path  []string
	Alias string // `import a.b as alias`
	Names []ImportedName
}

// Module returns the dotted module path.
func (r ModuleReference) Module() string {
	return strings.Join(r.Path, ".")
}

// Root returns the first path segment.
func (r ModuleReference) Root() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[0]
}

// Binding maps a local identifier to the fully qualified path it stands for.
type Binding struct {
	Local     string
	Qualified string
}

// Bindings lists the local names this reference introduces, in source order.
func (r ModuleReference) Bindings() []Binding {
	module := r.Module()
	if len(r.Names) == 0 {
		local := r.Alias
		if local == "" && len(r.Path) > 0 {
			local = r.Path[len(r.Path)-1]
		}
		return []Binding{{Local: local, Qualified: module}}
	}
	out := make([]Binding, 0, len(r.Names))
	for _, name := range r.Names {
		out = append(out, Binding{Local: name.Local(), Qualified: module + "." + name.Name})
	}
	return out
}

func (r ModuleReference) clone() ModuleReference {
	out := ModuleReference{Alias: r.Alias}
	out.Path = append([]string(nil), r.Path...)
	if len(r.Names) > 0 {
		out.Names = append([]ImportedName(nil), r.Names...)
	}
	return out
}

func cloneReferences(refs []ModuleReference) []ModuleReference {
	out := make([]ModuleReference, len(refs))
	for i, ref := range refs {
		out[i] = ref.clone()
	}
	return out
}

// Extractor turns one logical directive line into module references.
type Extractor interface {
	Extract(path string, line int, directive string) ([]ModuleReference, error)
}
