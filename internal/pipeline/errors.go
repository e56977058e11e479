package pipeline

import (
	"errors"
	"fmt"
)

var ErrRunAlreadyStarted = errors.New("pipeline run already started")

// ConfigurationError means the run was not set up correctly and must not be retried as is.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("pipeline configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StepExecutionError wraps the store error that made a step fail.
type StepExecutionError struct {
	Step string
	Err  error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// NewStepError wraps err for the step described by desc. Returns nil for a nil err.
func NewStepError(desc string, err error) error {
	if err == nil {
		return nil
	}
	var se *StepExecutionError
	if errors.As(err, &se) {
		return err
	}
	return &StepExecutionError{Step: desc, Err: err}
}

// PipelineError is returned by Runner.Run when a step fails.
type PipelineError struct {
	Step  string
	Index int
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
