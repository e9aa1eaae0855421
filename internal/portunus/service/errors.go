package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalidSubjectID  = errors.New("subjectId is required")
	ErrInvalidSample     = errors.New("sample must be a non-empty image")
	ErrTemplateDimension = errors.New("template dimension mismatch")
)

// RejectedError is returned when the engine was reachable but refused to
// produce a template, e.g. NO_FACE or MULTIPLE_FACES.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "enrollment rejected by recognition engine: " + e.Reason
}

// StoreError wraps a registry or audit log failure.  The request that hit it
// must not complete.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// validateSample accepts anything the content sniffer reports as an image.
func validateSample(sample []byte) error {
	if len(sample) == 0 {
		return ErrInvalidSample
	}
	if !strings.HasPrefix(http.DetectContentType(sample), "image/") {
		return fmt.Errorf("%w: unrecognised content type", ErrInvalidSample)
	}
	return nil
}
