package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/service"
)

type recordingHealth struct {
	mu   sync.Mutex
	seen []bool
}

func (r *recordingHealth) SetEngineServing(up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, up)
}

func (r *recordingHealth) last() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return false, false
	}
	return r.seen[len(r.seen)-1], true
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestEngineProbe_DisabledWhenIntervalZero(t *testing.T) {
	p := service.NewEngineProbe(pingFunc(func(context.Context) error { return nil }), nil, nil, 0, nil)

	p.Start(context.Background())
	p.Stop()
	assert.False(t, p.Up())
}

func TestEngineProbe_PublishesHealthAndGauge(t *testing.T) {
	var mu sync.Mutex
	var pingErr error
	pinger := pingFunc(func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		return pingErr
	})

	h := &recordingHealth{}
	m := metrics.New()
	p := service.NewEngineProbe(pinger, h, m, 10*time.Millisecond, nil)
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { up, ok := h.last(); return ok && up }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineUp))

	mu.Lock()
	pingErr = errors.New("down")
	mu.Unlock()

	require.Eventually(t, func() bool { up, ok := h.last(); return ok && !up }, time.Second, 5*time.Millisecond)
	assert.False(t, p.Up())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EngineUp))
}

func TestEngineProbe_StopIsIdempotent(t *testing.T) {
	p := service.NewEngineProbe(pingFunc(func(context.Context) error { return nil }), nil, nil, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	p.Stop()
	p.Stop()
	<-p.Done()
}
