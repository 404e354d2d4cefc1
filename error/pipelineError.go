package error

import "fmt"

type JalertErrPipeline int

const (
	ErrInvalidSourceName JalertErrPipeline = iota
	ErrSourceExecute
	ErrSourcePanic
	ErrSourceKilled
	ErrExporterCreate
	ErrServiceCreate
)

type JalertPipelineError struct {
	Code   JalertErrPipeline
	Origin error
	Msg    string
}

func (e JalertPipelineError) Error() string {
	return fmt.Sprintf("Jalert Pipeline Error: %s\n\t: %s", e.Msg, origin(e.Origin))
}

func (e JalertPipelineError) Unwrap() error {
	return e.Origin
}
