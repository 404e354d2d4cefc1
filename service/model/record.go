package model

// Record is one structured log entry as seen by the rule engine.
//
// FetchField returns the raw bytes of the named field. A field that the
// record does not carry is reported with present == false and a nil error;
// err is reserved for failures to read a field that may exist.
type Record interface {
	FetchField(name string) (value []byte, present bool, err error)
}
