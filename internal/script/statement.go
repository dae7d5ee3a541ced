// Package script loads update statements from files and runs them.
//
// A statement names the stores it edits and lists update instructions. Each
// instruction selects target nodes with a path and registers one primitive
// per selected node; the statement ends with a single ValidateAndApply, so
// either every instruction takes effect or none does.
//
// Statements may also declare labeled XML fragments. Instructions can edit
// a fragment (copy-modify-return style; the edited fragment is part of the
// Result) or use it as a payload with nodes: "$label".
package script

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/treeup/internal/update"
)

// Statement is one update statement.
type Statement struct {
	// Name identifies the statement in logs.
	Name string `yaml:"name" json:"name"`

	// Fragments maps labels to XML text parsed into fresh fragments.
	Fragments map[string]string `yaml:"fragments,omitempty" json:"fragments,omitempty"`

	// Updates are registered in order.
	Updates []Instruction `yaml:"updates" json:"updates"`
}

// Instruction plans one kind of edit on every node its target selects.
type Instruction struct {
	// Op is the update kind, e.g. "delete" or "insert-as-last-child".
	Op string `yaml:"op" json:"op"`

	// Store names the target store. Path is evaluated on its snapshot.
	Store string `yaml:"store,omitempty" json:"store,omitempty"`

	// Fragment labels the target fragment. Path, if set, is evaluated
	// inside it; otherwise its top-level nodes are the targets.
	Fragment string `yaml:"fragment,omitempty" json:"fragment,omitempty"`

	// Path selects the target nodes.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Nodes is the XML payload, or "$label" for a declared fragment.
	Nodes string `yaml:"nodes,omitempty" json:"nodes,omitempty"`

	// Attributes is the payload of insert-attributes and of replacing an
	// attribute.
	Attributes []Attribute `yaml:"attributes,omitempty" json:"attributes,omitempty"`

	// Name is the new name for rename.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Value is the new value for replace-value and replace-element-content.
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Resource is the payload of store-binary-resource.
	Resource *Resource `yaml:"resource,omitempty" json:"resource,omitempty"`
}

// Attribute is a name/value pair.
type Attribute struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// Resource is a binary resource payload.
type Resource struct {
	Path string `yaml:"path" json:"path"`
	Data string `yaml:"data" json:"data"`

	// Encoding is "" for literal text or "base64".
	Encoding string `yaml:"encoding,omitempty" json:"encoding,omitempty"`
}

// LoadFile reads a statement from a .yaml, .yml or .cue file.
func LoadFile(path string) (*Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement file: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported statement file %q (want .yaml, .yml or .cue)", path)
	}
}

// ParseYAML parses a statement, rejecting unknown fields.
func ParseYAML(data []byte) (*Statement, error) {
	var stmt Statement
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&stmt); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := stmt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statement: %w", err)
	}
	return &stmt, nil
}

// ParseCUE evaluates a CUE statement. filename is used in error positions.
func ParseCUE(data []byte, filename string) (*Statement, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("statement is not concrete: %w", err)
	}
	var stmt Statement
	if err := v.Decode(&stmt); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	if err := stmt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statement: %w", err)
	}
	return &stmt, nil
}

// Validate checks the statement's shape. Targets are resolved later, by
// Execute.
func (s *Statement) Validate() error {
	if len(s.Updates) == 0 {
		return fmt.Errorf("updates list is required and must be non-empty")
	}
	for i, ins := range s.Updates {
		kind, err := update.ParseKind(ins.Op)
		if err != nil {
			return fmt.Errorf("updates[%d]: %w", i, err)
		}
		switch {
		case ins.Store == "" && ins.Fragment == "":
			return fmt.Errorf("updates[%d]: store or fragment is required", i)
		case ins.Store != "" && ins.Fragment != "":
			return fmt.Errorf("updates[%d]: store and fragment are exclusive", i)
		case ins.Store != "" && ins.Path == "":
			return fmt.Errorf("updates[%d]: path is required for store targets", i)
		}
		if ins.Fragment != "" {
			if _, ok := s.Fragments[ins.Fragment]; !ok {
				return fmt.Errorf("updates[%d]: unknown fragment %q", i, ins.Fragment)
			}
		}
		switch kind {
		case update.Rename:
			if ins.Name == "" {
				return fmt.Errorf("updates[%d]: name is required for %s", i, kind)
			}
		case update.StoreBinary:
			if ins.Resource == nil || ins.Resource.Path == "" {
				return fmt.Errorf("updates[%d]: resource path is required for %s", i, kind)
			}
			if e := ins.Resource.Encoding; e != "" && e != "base64" {
				return fmt.Errorf("updates[%d]: unknown resource encoding %q", i, e)
			}
		case update.InsertAttributes:
			if len(ins.Attributes) == 0 {
				return fmt.Errorf("updates[%d]: attributes are required for %s", i, kind)
			}
		}
	}
	return nil
}
