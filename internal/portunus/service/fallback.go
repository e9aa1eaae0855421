package service

import (
	"fmt"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/config"
)

// FallbackPolicy decides what happens to a verification when the engine is
// unavailable.  It is chosen once at startup; the two variants below are the
// only implementations.
type FallbackPolicy interface {
	Name() string
	isFallbackPolicy()
}

// FailClosed denies with a retriable engine_unavailable outcome.
type FailClosed struct{}

// Sandbox grants the most recently created subject at a fixed confidence.
// Intended for offline testing only.
type Sandbox struct {
	Confidence float64
}

func (FailClosed) Name() string { return string(config.FallbackFailClosed) }
func (Sandbox) Name() string    { return string(config.FallbackSandbox) }

func (FailClosed) isFallbackPolicy() {}
func (Sandbox) isFallbackPolicy()    {}

// PolicyFromConfig builds the policy selected in cfg.
func PolicyFromConfig(cfg config.Config) (FallbackPolicy, error) {
	switch cfg.Fallback {
	case config.FallbackFailClosed:
		return FailClosed{}, nil
	case config.FallbackSandbox:
		c := cfg.SandboxConfidence
		if c < 0 || c > 1 {
			return nil, fmt.Errorf("sandbox confidence %v outside [0,1]", c)
		}
		return Sandbox{Confidence: c}, nil
	default:
		return nil, fmt.Errorf("unknown fallback policy %q", cfg.Fallback)
	}
}
