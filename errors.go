package xmlvalidator

import (
	"errors"
	"fmt"
)

// One sentinel per pipeline stage. A failing stage is reported as a
// *StageError wrapping one of these.
var (
	ErrBadArguments  = errors.New("wrong parameters")
	ErrFileNotFound  = errors.New("file does not exist")
	ErrNotXML        = errors.New("not an XML document")
	ErrNotWellFormed = errors.New("not well formed")
	ErrSchemaInvalid = errors.New("not valid against schema")
)

// StageError is the failure of one pipeline stage. Message is the line
// printed to the user.
type StageError struct {
	Stage   error
	Message string
}

func (e *StageError) Error() string {
	return e.Message
}

func (e *StageError) Unwrap() error {
	return e.Stage
}

func stageErrorf(stage error, format string, args ...any) *StageError {
	return &StageError{Stage: stage, Message: fmt.Sprintf(format, args...)}
}
