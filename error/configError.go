package error

import "fmt"

type JalertErrConfig int

const (
	ErrConfigRead JalertErrConfig = iota
	ErrConfigParse
	ErrConfigShape
	ErrFieldName
	ErrPattern
)

func (c JalertErrConfig) String() string {
	switch c {
	case ErrConfigRead:
		return "read"
	case ErrConfigParse:
		return "parse"
	case ErrConfigShape:
		return "shape"
	case ErrFieldName:
		return "field name"
	case ErrPattern:
		return "pattern"
	}
	return fmt.Sprintf("JalertErrConfig(%d)", int(c))
}

// JalertConfigError is returned while building a rule set.
// It never surfaces from evaluation.
type JalertConfigError struct {
	Code   JalertErrConfig
	Origin error
	Msg    string
}

func (e JalertConfigError) Error() string {
	return fmt.Sprintf("Jalert Config Error(%s): %s\n\t: %s", e.Code, e.Msg, origin(e.Origin))
}

func (e JalertConfigError) Unwrap() error {
	return e.Origin
}
