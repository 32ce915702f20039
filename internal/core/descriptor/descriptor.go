// Package descriptor reads and writes the resource.json file the host keeps
// next to every script module.
package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	coreerrors "scriptlib/internal/core/errors"
)

const (
	FileName = "resource.json"
	CodeFile = "code.py"
)

type Resource struct {
	Scope       string     `json:"scope"`
	Version     int        `json:"version"`
	Restricted  bool       `json:"restricted"`
	Overridable bool       `json:"overridable"`
	Files       []string   `json:"files"`
	Attributes  Attributes `json:"attributes"`
}

type Attributes struct {
	LastModification          LastModification `json:"lastModification"`
	HintScope                 int              `json:"hintScope"`
	LastModificationSignature string           `json:"lastModificationSignature"`
	Scriptlib                 *Tag             `json:"scriptlib,omitempty"`
}

type LastModification struct {
	Actor     string `json:"actor"`
	Timestamp string `json:"timestamp"`
}

// Tag records how an artifact was built so a reverse build can refuse to
// undo it with the wrong strategy.
type Tag struct {
	Strategy string   `json:"strategy"`
	Roots    []string `json:"roots,omitempty"`
}

type Options struct {
	Actor     string
	Timestamp string
	HintScope int
	Signature string
}

// Generator renders descriptors with fixed host metadata.
type Generator struct {
	opts Options
}

func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts}
}

// Build returns the descriptor for one module.
func (g *Generator) Build(tag *Tag) Resource {
	return Resource{
		Scope:       "A",
		Version:     1,
		Restricted:  false,
		Overridable: true,
		Files:       []string{CodeFile},
		Attributes: Attributes{
			LastModification: LastModification{
				Actor:     g.opts.Actor,
				Timestamp: g.opts.Timestamp,
			},
			HintScope:                 g.opts.HintScope,
			LastModificationSignature: g.opts.Signature,
			Scriptlib:                 tag,
		},
	}
}

// Render encodes the descriptor with two-space indentation.
func (g *Generator) Render(tag *Tag) ([]byte, error) {
	return json.MarshalIndent(g.Build(tag), "", "  ")
}

// Read loads a descriptor from disk.
func Read(path string) (Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Resource{}, coreerrors.WrapPath(err, "read descriptor", path)
	}
	var res Resource
	if err := json.Unmarshal(data, &res); err != nil {
		return Resource{}, coreerrors.Wrap(fmt.Errorf("%s: %w", path, err), coreerrors.CodeValidationError, "invalid descriptor")
	}
	return res, nil
}

// Strategy returns the strategy recorded in the descriptor, or "" for
// artifacts built without a tag.
func (r Resource) Strategy() string {
	if r.Attributes.Scriptlib == nil {
		return ""
	}
	return strings.TrimSpace(r.Attributes.Scriptlib.Strategy)
}
