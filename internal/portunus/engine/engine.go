// Package engine talks to the external recognition service.  Each call is a
// single attempt bounded by a timeout; callers decide what to do when the
// engine is unavailable.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrEngineUnavailable is the common parent of every engine failure.
	ErrEngineUnavailable = errors.New("recognition engine unavailable")

	// ErrEngineUnreachable covers connection failures, non-2xx replies and
	// undecodable bodies.
	ErrEngineUnreachable error = &unavailableError{msg: "recognition engine unreachable"}

	// ErrEngineTimeout means the configured deadline passed first.
	ErrEngineTimeout error = &unavailableError{msg: "recognition engine timed out"}
)

type unavailableError struct{ msg string }

func (e *unavailableError) Error() string { return e.msg }
func (e *unavailableError) Unwrap() error { return ErrEngineUnavailable }

// MatchResult is the engine's answer to Verify.  SubjectID and Confidence
// are only meaningful when Matched is true.
type MatchResult struct {
	Matched    bool
	SubjectID  string
	Confidence float64
}

// TemplateResult is the engine's answer to Enroll.  When Enrolled is false
// Reason carries the engine's rejection code (e.g. NO_FACE).
type TemplateResult struct {
	Enrolled       bool
	Template       []float64
	ImageReference string
	Reason         string
}

type Client interface {
	Verify(ctx context.Context, sample []byte) (MatchResult, error)
	Enroll(ctx context.Context, sample []byte, subjectID string) (TemplateResult, error)
	Ping(ctx context.Context) error
}
