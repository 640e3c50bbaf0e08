package service

import "fmt"

// ExtractionErrorKind classifies why a product node could not be turned into a record.
type ExtractionErrorKind string

const (
	KindMissingField   ExtractionErrorKind = "missing-field"
	KindMalformedField ExtractionErrorKind = "malformed-field"
	KindMalformedDate  ExtractionErrorKind = "malformed-date"
)

// ExtractionError reports a required field that is missing or malformed on a product node.
type ExtractionError struct {
	Kind  ExtractionErrorKind
	Field string
	Value string
	Err   error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("%s: %s %q", e.Kind, e.Field, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
