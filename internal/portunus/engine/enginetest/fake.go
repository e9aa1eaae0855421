// Package enginetest provides a scriptable engine.Client for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/engine"
)

// Fake returns whatever it was last told to.  Zero value answers NotMatched
// to Verify, rejects Enroll, and pings healthy.
type Fake struct {
	mu sync.Mutex

	VerifyResult engine.MatchResult
	VerifyErr    error
	EnrollResult engine.TemplateResult
	EnrollErr    error
	PingErr      error

	VerifyCalls int
	EnrollCalls int
	LastSubject string
}

func (f *Fake) Verify(_ context.Context, _ []byte) (engine.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VerifyCalls++
	return f.VerifyResult, f.VerifyErr
}

func (f *Fake) Enroll(_ context.Context, _ []byte, subjectID string) (engine.TemplateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EnrollCalls++
	f.LastSubject = subjectID
	return f.EnrollResult, f.EnrollErr
}

func (f *Fake) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

// Match scripts the next Verify as a match.
func (f *Fake) Match(subjectID string, confidence float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VerifyResult = engine.MatchResult{Matched: true, SubjectID: subjectID, Confidence: confidence}
	f.VerifyErr = nil
}

// NoMatch scripts the next Verify as a definitive non-match.
func (f *Fake) NoMatch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VerifyResult = engine.MatchResult{}
	f.VerifyErr = nil
}

// Enrolled scripts a successful enrollment.
func (f *Fake) Enrolled(template []float64, imageRef string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EnrollResult = engine.TemplateResult{Enrolled: true, Template: template, ImageReference: imageRef}
	f.EnrollErr = nil
}

// Down makes every call fail with err (engine.ErrEngineUnreachable if nil).
func (f *Fake) Down(err error) {
	if err == nil {
		err = engine.ErrEngineUnreachable
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VerifyErr = err
	f.EnrollErr = err
	f.PingErr = err
}

// Template returns a vector of length n filled with v.
func Template(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
