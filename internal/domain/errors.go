package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMissingInput
	KindPayloadTooLarge
	KindAnalysisFailed
	KindReportGenerationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingInput:
		return "MissingInput"
	case KindPayloadTooLarge:
		return "PayloadTooLarge"
	case KindAnalysisFailed:
		return "AnalysisFailed"
	case KindReportGenerationFailed:
		return "ReportGenerationFailed"
	default:
		return "Unknown"
	}
}

// Error classifies a failure for the HTTP boundary. Op names the step that
// failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	ErrNoFile        = errors.New("no image file provided")
	ErrEmptyResponse = errors.New("inference service returned no text")
)
