package core

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step a failure originated from. Transitions are
// strictly sequential; any failure is terminal for that request.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageCompile   Stage = "compile"
	StageCall      Stage = "call"
	StageDecode    Stage = "decode"
)

// StageError tags a pipeline failure with its originating stage so callers
// can differentiate "could not read file" from "could not reach the service"
// from "could not parse the response".
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the originating stage of err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func failAt(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
