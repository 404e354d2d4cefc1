package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	jerror "jalert/error"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	allowKey = "allow"
	denyKey  = "deny"
)

// Format selects the decoder of a rule file.
type Format int

const (
	// FormatAuto tries JSON first and TOML only when the text is not JSON.
	FormatAuto Format = iota
	FormatJSON
	FormatTOML
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatJSON:
		return "json"
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat is the inverse of Format.String. "" is FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return FormatAuto, fmt.Errorf("unknown rule format %q", s)
}

// ruleFile is the document shape shared by every format.
type ruleFile struct {
	Match []map[string]any `json:"match" toml:"match" yaml:"match"`
}

// ReadRuleSet reads a rule file. With FormatAuto a .yaml or .yml extension
// selects YAML, anything else is JSON then TOML.
func ReadRuleSet(path string, format Format) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, jerror.JalertConfigError{
			Code:   jerror.ErrConfigRead,
			Origin: err,
			Msg:    fmt.Sprintf("Failed to read config %s", path),
		}
	}
	if format == FormatAuto {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = FormatYAML
		}
	}
	return NewRuleSet(data, format)
}

// NewRuleSet decodes and validates a rule set. Every field name and pattern
// is checked here so that evaluation can only fail on fetching fields.
func NewRuleSet(data []byte, format Format) (*RuleSet, error) {
	var (
		doc ruleFile
		err error
	)

	parser, err := NewParser()
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatAuto:
		jsonErr := json.Unmarshal(data, &doc)
		if jsonErr != nil {
			doc = ruleFile{}
			if _, tomlErr := toml.Decode(string(data), &doc); tomlErr != nil {
				err = errors.Join(jsonErr, tomlErr)
			}
		}
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatTOML:
		_, err = toml.Decode(string(data), &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = fmt.Errorf("unknown rule format %s", format)
	}
	if err != nil {
		return nil, jerror.JalertConfigError{
			Code:   jerror.ErrConfigParse,
			Origin: err,
			Msg:    fmt.Sprintf("Failed to parse config as %s", format),
		}
	}

	b := builder{parser: parser}
	ruleSet := &RuleSet{Matchers: make([]DenyNode, 0, len(doc.Match))}
	for i, obj := range doc.Match {
		deny, err := b.deny(obj, fmt.Sprintf("match[%d]", i))
		if err != nil {
			return nil, err
		}
		ruleSet.Matchers = append(ruleSet.Matchers, deny)
	}
	return ruleSet, nil
}

// NewPattern validates the field name and compiles expr.
func NewPattern(field, expr string) (Pattern, error) {
	parser, err := NewParser()
	if err != nil {
		return Pattern{}, err
	}
	b := builder{parser: parser}
	name, err := b.fieldName(field, "pattern")
	if err != nil {
		return Pattern{}, err
	}
	return b.pattern(name, expr, "pattern")
}

type builder struct {
	parser Parser
}

func (b builder) deny(obj map[string]any, path string) (DenyNode, error) {
	var node DenyNode

	patterns, children, err := b.fields(obj, allowKey, path)
	if err != nil {
		return node, err
	}
	node.Patterns = patterns
	for i, child := range children {
		allow, err := b.allow(child, fmt.Sprintf("%s.%s[%d]", path, allowKey, i))
		if err != nil {
			return node, err
		}
		node.Allow = append(node.Allow, allow)
	}
	return node, nil
}

func (b builder) allow(obj map[string]any, path string) (AllowNode, error) {
	var node AllowNode

	patterns, children, err := b.fields(obj, denyKey, path)
	if err != nil {
		return node, err
	}
	node.Patterns = patterns
	for i, child := range children {
		deny, err := b.deny(child, fmt.Sprintf("%s.%s[%d]", path, denyKey, i))
		if err != nil {
			return node, err
		}
		node.Deny = append(node.Deny, deny)
	}
	return node, nil
}

// fields splits one rule object into its sorted patterns and the objects
// found under overrideKey.
func (b builder) fields(obj map[string]any, overrideKey, path string) ([]Pattern, []map[string]any, error) {
	var (
		patterns []Pattern
		children []map[string]any
		err      error
	)

	if obj == nil {
		return nil, nil, jerror.JalertConfigError{
			Code:   jerror.ErrConfigShape,
			Origin: fmt.Errorf("rule is null"),
			Msg:    fmt.Sprintf("invalid rule at %s", path),
		}
	}
	for key, val := range obj {
		if key == overrideKey {
			children, err = objectList(val)
			if err != nil {
				return nil, nil, jerror.JalertConfigError{
					Code:   jerror.ErrConfigShape,
					Origin: err,
					Msg:    fmt.Sprintf("invalid %q at %s", key, path),
				}
			}
			continue
		}
		field, err := b.fieldName(key, path)
		if err != nil {
			return nil, nil, err
		}
		expr, ok := val.(string)
		if !ok {
			return nil, nil, jerror.JalertConfigError{
				Code:   jerror.ErrConfigShape,
				Origin: fmt.Errorf("expected a pattern string, got %T", val),
				Msg:    fmt.Sprintf("invalid value of %q at %s", key, path),
			}
		}
		p, err := b.pattern(field, expr, path)
		if err != nil {
			return nil, nil, err
		}
		patterns = append(patterns, p)
	}
	slices.SortFunc(patterns, func(x, y Pattern) int {
		return strings.Compare(x.Field, y.Field)
	})
	return patterns, children, nil
}

func (b builder) fieldName(key, path string) (string, error) {
	field, err := ParseFieldName(b.parser.FieldNameParser(), key)
	if err != nil {
		var configErr jerror.JalertConfigError
		if errors.As(err, &configErr) {
			configErr.Msg = fmt.Sprintf("%s at %s", configErr.Msg, path)
			return "", configErr
		}
		return "", err
	}
	return field, nil
}

// pattern compiles expr for an already validated field name.
func (b builder) pattern(field, expr, path string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, jerror.JalertConfigError{
			Code:   jerror.ErrPattern,
			Origin: err,
			Msg:    fmt.Sprintf("invalid pattern %q of %s at %s", expr, field, path),
		}
	}
	return Pattern{Field: field, Regexp: re}, nil
}

// objectList accepts the list shapes the three decoders produce.
func objectList(val any) ([]map[string]any, error) {
	switch list := val.(type) {
	case []map[string]any:
		return list, nil
	case []any:
		objs := make([]map[string]any, 0, len(list))
		for i, elem := range list {
			obj, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, expected an object", i, elem)
			}
			objs = append(objs, obj)
		}
		return objs, nil
	}
	return nil, fmt.Errorf("expected a list of objects, got %T", val)
}
