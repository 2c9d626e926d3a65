package engine

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline step a failed revision died in.
type Stage string

const (
	// StageTransport covers backend dispatch failures, timeouts and
	// cancellation.
	StageTransport Stage = "transport"
	// StageExtract covers streams with no parsable JSON object.
	StageExtract Stage = "extract"
	// StageValidate covers parsed objects that fail structural validation.
	StageValidate Stage = "validate"
)

// ErrRevisionInFlight is returned when a second revision is dispatched
// against a session whose previous revision has not finished.
var ErrRevisionInFlight = errors.New("a revision is already in flight for this session")

// RevisionError reports a failed revision. The caller's form is untouched
// whenever one of these is returned.
type RevisionError struct {
	Stage Stage
	Err   error
}

func (e *RevisionError) Error() string {
	return fmt.Sprintf("revision failed at %s stage: %v", e.Stage, e.Err)
}

func (e *RevisionError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) *RevisionError {
	return &RevisionError{Stage: stage, Err: err}
}
