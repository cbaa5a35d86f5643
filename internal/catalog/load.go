package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ParseError reports a reference data file that could not be understood.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing reference data: %v", e.Err)
	}
	return fmt.Sprintf("parsing reference data %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Format selects the reference data encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Load reads and parses the reference data file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c, err := Parse(data, FormatFromPath(path))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return c, nil
}

// Parse decodes reference data. JSON input may carry comments and trailing
// commas.
func Parse(data []byte, format Format) (*Catalog, error) {
	if format == FormatYAML {
		return parseYAML(data)
	}
	return parseJSON(data)
}

type envelope struct {
	Employees *struct {
		Employee []entry `json:"Employee"`
	} `json:"Employees"`
}

type entry struct {
	Field string    `json:"Field"`
	Value flexValue `json:"Value"`
	Label string    `json:"Label"`
}

// flexValue accepts codes written as JSON strings or numbers.
type flexValue string

func (v *flexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = flexValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("code must be a string or number: %w", err)
	}
	*v = flexValue(n.String())
	return nil
}

func parseJSON(data []byte) (*Catalog, error) {
	stripped := jsonc.ToJSON(data)

	var env envelope
	if err := json.Unmarshal(stripped, &env); err != nil {
		return nil, &ParseError{Err: err}
	}
	if env.Employees == nil {
		return nil, &ParseError{Err: errors.New(`missing "Employees" object`)}
	}

	b := newBuilder()
	for i, e := range env.Employees.Employee {
		if strings.TrimSpace(e.Field) == "" || strings.TrimSpace(string(e.Value)) == "" {
			return nil, &ParseError{Err: fmt.Errorf("entry %d: Field and Value are required", i)}
		}
		b.add(e.Field, string(e.Value), e.Label)
	}
	return b.build(), nil
}

// parseYAML reads the `field: {code: label}` form, keeping file order.
func parseYAML(data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if len(doc.Content) == 0 {
		return nil, &ParseError{Err: errors.New("empty document")}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{Err: fmt.Errorf("line %d: expected a mapping of fields", root.Line)}
	}

	b := newBuilder()
	for i := 0; i+1 < len(root.Content); i += 2 {
		field, codes := root.Content[i], root.Content[i+1]
		if codes.Kind != yaml.MappingNode {
			return nil, &ParseError{Err: fmt.Errorf("line %d: field %q must map codes to labels", codes.Line, field.Value)}
		}
		for j := 0; j+1 < len(codes.Content); j += 2 {
			code, label := codes.Content[j], codes.Content[j+1]
			if label.Kind != yaml.ScalarNode {
				return nil, &ParseError{Err: fmt.Errorf("line %d: label for %s/%s must be a scalar", label.Line, field.Value, code.Value)}
			}
			b.add(field.Value, code.Value, label.Value)
		}
	}
	return b.build(), nil
}
