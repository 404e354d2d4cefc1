package error

import "fmt"

type JalertErrCompose int

const (
	ErrInvalidCompose JalertErrCompose = iota
	ErrInvalidExporterMode
	ErrMissingDestination
	ErrInvalidRuleFormat
)

type JalertComposeError struct {
	Code   JalertErrCompose
	Origin error
	Msg    string
}

func (e JalertComposeError) Error() string {
	return fmt.Sprintf("Jalert Compose Error: %s\n\t: %s", e.Msg, origin(e.Origin))
}

func (e JalertComposeError) Unwrap() error {
	return e.Origin
}
