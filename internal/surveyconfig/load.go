// Package surveyconfig loads survey definitions from JSON or YAML and
// validates them against the embedded CUE schema.
package surveyconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"chatsurvey/internal/model"
)

// ErrInvalidSurvey is returned when a definition fails parsing or schema validation
var ErrInvalidSurvey = errors.New("invalid survey config")

// Format is the encoding of a survey definition
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension, defaulting to sniffing
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	return ""
}

func sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and parses a survey definition file
func Load(path string) (*model.SurveyConfig, *Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read survey config: %w", err)
	}
	return Parse(data, FormatFromPath(path))
}

// Parse decodes, validates and cross-checks a survey definition. Schema
// violations are errors; dangling references are reported as warnings.
func Parse(data []byte, format Format) (*model.SurveyConfig, *Report, error) {
	if format == "" {
		format = sniff(data)
	}

	doc := data
	if format == FormatYAML {
		var err error
		if doc, err = yamlToJSON(data); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSurvey, err)
		}
	}

	report := &Report{}
	report.Errors = append(report.Errors, validateSchema(doc)...)
	if !report.OK() {
		return nil, report, report.Err()
	}

	var cfg model.SurveyConfig
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrInvalidSurvey, err)
	}
	if cfg.Blocks.Len() == 0 {
		report.Errors = append(report.Errors, Issue{Path: "blocks", Message: "at least one block is required"})
		return nil, report, report.Err()
	}

	report.Warnings = CheckReferences(&cfg)
	return &cfg, report, nil
}

// yamlToJSON re-encodes YAML as JSON keeping mapping key order
func yamlToJSON(data []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeNode(&buf, &root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNode(buf, n.Content[0])

	case yaml.AliasNode:
		return writeNode(buf, n.Alias)

	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(data)
		return nil
	}
	return fmt.Errorf("line %d: unsupported yaml node", n.Line)
}
