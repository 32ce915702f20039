// # internal/engine/parser/python.go
package parser

import (
	"errors"
	"strings"

	coreerrors "scriptlib/internal/core/errors"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var (
	ErrParseFailed  = errors.New("parser returned no tree")
	ErrSyntax       = errors.New("syntax error in directive")
	ErrNotDirective = errors.New("statement is not an import directive")
	ErrCompound     = errors.New("directive shares its line with another statement")
	ErrWildcard     = errors.New("wildcard imports cannot be flattened")
	ErrRelative     = errors.New("relative imports cannot be flattened")
	ErrDottedName   = errors.New("imported name must be a single identifier")
)

// PythonExtractor parses directives with the tree-sitter Python grammar.
type PythonExtractor struct {
	pool *ParserPool
}

func NewPythonExtractor() *PythonExtractor {
	return &PythonExtractor{
		pool: NewParserPool(sitter.NewLanguage(tree_sitter_python.Language())),
	}
}

func (e *PythonExtractor) Extract(path string, line int, directive string) ([]ModuleReference, error) {
	refs, err := e.Parse(directive)
	if err != nil {
		return nil, &coreerrors.MalformedReferenceError{Path: path, Line: line, Directive: directive, Err: err}
	}
	return refs, nil
}

// Parse returns the references of a directive or the bare cause of failure.
func (e *PythonExtractor) Parse(directive string) ([]ModuleReference, error) {
	source := []byte(directive)

	sp := e.pool.Get()
	defer e.pool.Put(sp)

	tree := sp.Parse(source, nil)
	if tree == nil {
		return nil, ErrParseFailed
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, ErrSyntax
	}

	var stmt *sitter.Node
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		if child.Kind() == "comment" {
			continue
		}
		if stmt != nil {
			return nil, ErrCompound
		}
		stmt = child
	}
	if stmt == nil {
		return nil, ErrNotDirective
	}

	ctx := &nodeText{source: source}
	switch stmt.Kind() {
	case "import_statement":
		return e.importRefs(ctx, stmt)
	case "import_from_statement":
		return e.fromImportRefs(ctx, stmt)
	default:
		return nil, ErrNotDirective
	}
}

func (e *PythonExtractor) importRefs(ctx *nodeText, node *sitter.Node) ([]ModuleReference, error) {
	var refs []ModuleReference
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)

		switch child.Kind() {
		case "dotted_name":
			refs = append(refs, ModuleReference{Path: ctx.segments(child)})
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name == nil || alias == nil {
				return nil, ErrSyntax
			}
			refs = append(refs, ModuleReference{Path: ctx.segments(name), Alias: ctx.text(alias)})
		}
	}
	if len(refs) == 0 {
		return nil, ErrSyntax
	}
	return refs, nil
}

func (e *PythonExtractor) fromImportRefs(ctx *nodeText, node *sitter.Node) ([]ModuleReference, error) {
	module := node.ChildByFieldName("module_name")
	if module == nil {
		return nil, ErrSyntax
	}
	if module.Kind() == "relative_import" {
		return nil, ErrRelative
	}
	path := ctx.segments(module)

	var names []ImportedName
	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "import" {
			afterImport = true
			continue
		}
		if !afterImport {
			continue
		}
		if err := e.collectNames(ctx, child, &names); err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		return nil, ErrSyntax
	}

	refs := make([]ModuleReference, 0, len(names))
	for _, name := range names {
		refs = append(refs, ModuleReference{
			Path:  append([]string(nil), path...),
			Names: []ImportedName{name},
		})
	}
	return refs, nil
}

func (e *PythonExtractor) collectNames(ctx *nodeText, node *sitter.Node, names *[]ImportedName) error {
	switch node.Kind() {
	case "wildcard_import":
		return ErrWildcard
	case "dotted_name", "identifier":
		name := ctx.compact(node)
		if strings.Contains(name, ".") {
			return ErrDottedName
		}
		*names = append(*names, ImportedName{Name: name})
	case "aliased_import":
		name := node.ChildByFieldName("name")
		alias := node.ChildByFieldName("alias")
		if name == nil || alias == nil {
			return ErrSyntax
		}
		text := ctx.compact(name)
		if strings.Contains(text, ".") {
			return ErrDottedName
		}
		*names = append(*names, ImportedName{Name: text, Alias: ctx.text(alias)})
	case "comment":
	default:
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if err := e.collectNames(ctx, node.NamedChild(i), names); err != nil {
				return err
			}
		}
	}
	return nil
}

type nodeText struct {
	source []byte
}

func (c *nodeText) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.source[node.StartByte():node.EndByte()])
}

// compact drops whitespace that the grammar tolerates inside dotted names.
func (c *nodeText) compact(node *sitter.Node) string {
	return strings.Join(strings.Fields(c.text(node)), "")
}

func (c *nodeText) segments(node *sitter.Node) []string {
	return strings.Split(c.compact(node), ".")
}
