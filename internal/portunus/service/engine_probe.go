package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/metrics"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter receives the probe's verdict; the gRPC health server
// implements it.
type HealthReporter interface {
	SetEngineServing(up bool)
}

// EngineProbe periodically pings the recognition engine and publishes the
// result to health reporting and metrics.  Verification never consults it.
//
// An interval of 0 disables the probe.
type EngineProbe struct {
	engine   Pinger
	health   HealthReporter
	metrics  *metrics.Metrics
	interval time.Duration
	logger   *zap.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	lastUp *bool
}

func NewEngineProbe(p Pinger, h HealthReporter, m *metrics.Metrics, interval time.Duration, logger *zap.Logger) *EngineProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineProbe{
		engine:   p,
		health:   h,
		metrics:  m,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs one probe immediately and then repeats on the interval until
// ctx is cancelled or Stop is called.
func (p *EngineProbe) Start(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("engine probe disabled (interval=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("engine probe started", zap.Duration("interval", p.interval))
}

// Stop signals the loop to exit and waits for it.  Safe to call repeatedly.
func (p *EngineProbe) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	<-p.done
}

// Done is closed once the loop has exited.
func (p *EngineProbe) Done() <-chan struct{} { return p.done }

func (p *EngineProbe) loop(ctx context.Context) {
	defer close(p.done)

	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *EngineProbe) probe(ctx context.Context) {
	err := p.engine.Ping(ctx)
	if ctx.Err() != nil {
		return
	}
	up := err == nil

	p.metrics.SetEngineUp(up)
	if p.health != nil {
		p.health.SetEngineServing(up)
	}

	p.mu.Lock()
	changed := p.lastUp == nil || *p.lastUp != up
	p.lastUp = &up
	p.mu.Unlock()

	if !changed {
		return
	}
	if up {
		p.logger.Info("recognition engine reachable")
	} else {
		p.logger.Warn("recognition engine unreachable", zap.Error(err))
	}
}

// Up reports the last probe result; false before the first probe.
func (p *EngineProbe) Up() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUp != nil && *p.lastUp
}
