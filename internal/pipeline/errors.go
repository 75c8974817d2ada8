package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure for logging and status reporting.
type ErrorKind string

const (
	KindPlanParse       ErrorKind = "plan_parse"
	KindPlanning        ErrorKind = "planning"
	KindMediaGeneration ErrorKind = "media_generation"
	KindRender          ErrorKind = "render"
	KindTimeout         ErrorKind = "timeout"
	KindInternal        ErrorKind = "internal"
)

// PlanParseError means the planner's output could not be used at all.
// Raw holds the offending text verbatim.
type PlanParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *PlanParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plan parse failed: %s: %v", e.Reason, e.Err)
	}
	return "plan parse failed: " + e.Reason
}

func (e *PlanParseError) Unwrap() error { return e.Err }

// StageError is a fatal failure of one pipeline stage. Scene is 1-based and
// zero when the failure is not tied to a scene.
type StageError struct {
	Kind  ErrorKind
	Op    string
	Scene int
	Err   error
}

func (e *StageError) Error() string {
	if e.Scene > 0 {
		return fmt.Sprintf("%s: %s (scene %d): %v", e.Kind, e.Op, e.Scene, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// recoverStage is deferred inside stage goroutines, where a panic cannot be
// recovered by the caller. It reports the panic as a failure of op.
func recoverStage(errp *error, kind ErrorKind, op string, scene int) {
	if r := recover(); r != nil {
		*errp = &StageError{Kind: kind, Op: op, Scene: scene, Err: fmt.Errorf("panic: %v", r)}
	}
}

// KindOf maps any error returned by the pipeline to its kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var pe *PlanParseError
	if errors.As(err, &pe) {
		return KindPlanParse
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// stageErr wraps err as a StageError of the given kind, unless the run's
// deadline has already passed, in which case the failure is a timeout.
// Subprocesses killed by an expired context report "signal: killed", so the
// context is checked rather than err itself.
func stageErr(ctx context.Context, kind ErrorKind, op string, scene int, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &StageError{Kind: KindTimeout, Op: op, Scene: scene, Err: fmt.Errorf("%w: %v", context.DeadlineExceeded, err)}
	}
	return &StageError{Kind: kind, Op: op, Scene: scene, Err: err}
}
