package filter

import (
	"fmt"

	jerror "jalert/error"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// FieldNameOper is a rule key that names a record field.
// Anything outside [A-Z0-9_] fails in the lexer.
type FieldNameOper struct {
	Name string `parser:"@FieldName"`
}

var fieldNameLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "FieldName", Pattern: `[A-Z0-9_]+`},
})

type Parser interface {
	FieldNameParser() *participle.Parser[FieldNameOper]
}

type parser struct {
	fieldNameParser *participle.Parser[FieldNameOper]
}

func (p *parser) FieldNameParser() *participle.Parser[FieldNameOper] {
	return p.fieldNameParser
}

func NewParser() (Parser, error) {
	var err error

	p := new(parser)

	p.fieldNameParser, err = participle.Build[FieldNameOper](participle.Lexer(fieldNameLexer))
	if err != nil {
		return nil, jerror.JalertConfigError{
			Code:   jerror.ErrFieldName,
			Msg:    "Failed to build parser in NewParser",
			Origin: err,
		}
	}

	return p, nil
}

// ParseFieldName validates a rule key and returns it as a field name.
func ParseFieldName(parser *participle.Parser[FieldNameOper], key string) (string, error) {
	// null check
	if parser == nil {
		return "", jerror.JalertConfigError{
			Code:   jerror.ErrFieldName,
			Origin: fmt.Errorf("parser is nil"),
			Msg:    "error in ParseFieldName",
		}
	}
	if key == "" {
		return "", jerror.JalertConfigError{
			Code:   jerror.ErrFieldName,
			Origin: fmt.Errorf("field name is empty"),
			Msg:    "Must be only uppercase ASCII, digits and underscores: \"\"",
		}
	}
	field, err := parser.ParseString(key, key)
	if err != nil {
		return "", jerror.JalertConfigError{
			Code:   jerror.ErrFieldName,
			Origin: err,
			Msg:    fmt.Sprintf("Must be only uppercase ASCII, digits and underscores: %q", key),
		}
	}
	return field.Name, nil
}
