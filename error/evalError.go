package error

import "fmt"

type JalertErrEval int

const (
	ErrFieldFetch JalertErrEval = iota
)

// JalertEvalError aborts the evaluation of a single record.
type JalertEvalError struct {
	Code   JalertErrEval
	Field  string
	Origin error
	Msg    string
}

func (e JalertEvalError) Error() string {
	return fmt.Sprintf("Jalert Eval Error: %s [field %s]\n\t: %s", e.Msg, e.Field, origin(e.Origin))
}

func (e JalertEvalError) Unwrap() error {
	return e.Origin
}
