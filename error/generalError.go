package error

import "fmt"

type JalertErrGeneral int

const (
	ErrInvalidOperation JalertErrGeneral = iota
	SystemError
	InputError
	InvalidOperationError
	InvalidArgumentError
	InvalidStateError
)

type JalertGeneralError struct {
	Code   JalertErrGeneral
	Origin error
	Msg    string
}

func (e JalertGeneralError) Error() string {
	return fmt.Sprintf("Jalert General Error: %s\n\t: %s", e.Msg, origin(e.Origin))
}

func (e JalertGeneralError) Unwrap() error {
	return e.Origin
}

func origin(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
