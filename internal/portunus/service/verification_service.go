package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/engine"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

// auditWriteTimeout bounds the access event append.  The append runs on a
// context detached from the caller so a dropped client cannot skip it.
const auditWriteTimeout = 5 * time.Second

const (
	msgGranted      = "Access granted"
	msgNoMatch      = "Face not recognized"
	msgPlaceholder  = "Enrollment incomplete for this subject; re-register with the recognition engine online"
	msgNotEnrolled  = "Subject is not enrolled on this terminal"
	msgUnavailable  = "Recognition service unavailable, please try again"
	msgSandboxGrant = "SANDBOX MODE: recognition engine offline, access granted without verification"
	defaultDeviceID = "terminal_01"
)

type VerificationDeps struct {
	Subjects store.SubjectStore
	Events   store.AccessEventStore
	Engine   engine.Client
	Policy   FallbackPolicy
	Devices  *DeviceRegistry
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	DefaultDeviceID string

	// Optional; tests pin these.
	Now   func() time.Time
	NewID func() string
}

type VerificationService struct {
	subjects store.SubjectStore
	events   store.AccessEventStore
	engine   engine.Client
	policy   FallbackPolicy
	devices  *DeviceRegistry
	metrics  *metrics.Metrics
	logger   *zap.Logger

	defaultDeviceID string
	now             func() time.Time
	newID           func() string
}

func NewVerificationService(d VerificationDeps) *VerificationService {
	s := &VerificationService{
		subjects:        d.Subjects,
		events:          d.Events,
		engine:          d.Engine,
		policy:          d.Policy,
		devices:         d.Devices,
		metrics:         d.Metrics,
		logger:          d.Logger,
		defaultDeviceID: strings.TrimSpace(d.DefaultDeviceID),
		now:             d.Now,
		newID:           d.NewID,
	}
	if s.policy == nil {
		s.policy = FailClosed{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.defaultDeviceID == "" {
		s.defaultDeviceID = defaultDeviceID
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Policy reports the configured fallback policy.
func (s *VerificationService) Policy() FallbackPolicy { return s.policy }

// decision is the pipeline's typed intermediate between the engine result and
// the audit write.
type decision struct {
	outcome    types.Outcome
	reason     string
	subject    *types.Subject
	confidence *float64
	degraded   bool
	message    string
}

// Verify runs one attempt: engine query, decision, audit append.  Engine
// failures never escape; store failures abort with a *StoreError and no
// decision.
func (s *VerificationService) Verify(ctx context.Context, req types.VerifyRequest) (types.VerifyResult, error) {
	if err := validateSample(req.Sample); err != nil {
		return types.VerifyResult{}, err
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		deviceID = s.defaultDeviceID
	}

	s.devices.NoteSeen(ctx, deviceID)

	var (
		d   decision
		err error
	)
	match, engErr := s.engine.Verify(ctx, req.Sample)
	switch {
	case engErr != nil:
		if !errors.Is(engErr, engine.ErrEngineUnavailable) {
			s.logger.Warn("unexpected engine error treated as unavailable", zap.Error(engErr))
		}
		d, err = s.fallback(ctx)
	case match.Matched:
		d, err = s.decideMatch(ctx, match)
	default:
		d = decision{outcome: types.OutcomeDenied, reason: types.ReasonEngineNoMatch, message: msgNoMatch}
	}
	if err != nil {
		return types.VerifyResult{}, err
	}

	ev := types.AccessEvent{
		ID:         s.newID(),
		Outcome:    d.outcome,
		Reason:     d.reason,
		Confidence: d.confidence,
		DeviceID:   deviceID,
		Degraded:   d.degraded,
		CreatedAt:  s.now(),
	}
	if d.subject != nil {
		ev.SubjectID = d.subject.SubjectID
	} else if match.Matched {
		ev.SubjectID = match.SubjectID
	}

	if err := s.appendEvent(ctx, ev); err != nil {
		return types.VerifyResult{}, err
	}
	s.metrics.ObserveVerification(string(d.outcome), d.reason)

	log := s.logger.Info
	if d.degraded {
		log = s.logger.Warn
	}
	log("verification decided",
		zap.String("event_id", ev.ID),
		zap.String("device_id", deviceID),
		zap.String("subject_id", ev.SubjectID),
		zap.String("outcome", string(d.outcome)),
		zap.String("reason", d.reason),
		zap.Bool("degraded", d.degraded))

	return types.VerifyResult{
		Granted:    d.outcome == types.OutcomeGranted,
		Subject:    d.subject,
		Confidence: d.confidence,
		Outcome:    d.outcome,
		Reason:     d.reason,
		Message:    d.message,
		Degraded:   d.degraded,
		Retriable:  d.outcome == types.OutcomeEngineUnavailable,
		EventID:    ev.ID,
		DeviceID:   deviceID,
	}, nil
}

func (s *VerificationService) decideMatch(ctx context.Context, m engine.MatchResult) (decision, error) {
	conf := m.Confidence
	subj, err := s.subjects.FindBySubjectID(ctx, m.SubjectID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return decision{
			outcome:    types.OutcomeDenied,
			reason:     types.ReasonSubjectNotEnrolled,
			confidence: &conf,
			message:    msgNotEnrolled,
		}, nil
	case err != nil:
		return decision{}, storeErr("find subject", err)
	}

	if !subj.Template.Trusted() {
		return decision{
			outcome:    types.OutcomeDenied,
			reason:     types.ReasonPlaceholderTemplate,
			subject:    &subj,
			confidence: &conf,
			message:    msgPlaceholder,
		}, nil
	}
	return decision{
		outcome:    types.OutcomeGranted,
		reason:     types.ReasonEngineMatch,
		subject:    &subj,
		confidence: &conf,
		message:    msgGranted,
	}, nil
}

func (s *VerificationService) fallback(ctx context.Context) (decision, error) {
	failClosed := decision{
		outcome: types.OutcomeEngineUnavailable,
		reason:  types.ReasonEngineUnavailable,
		message: msgUnavailable,
	}

	sb, ok := s.policy.(Sandbox)
	if !ok {
		return failClosed, nil
	}

	subj, err := s.subjects.MostRecentlyCreated(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.logger.Warn("sandbox fallback with empty registry; failing closed")
		return failClosed, nil
	case err != nil:
		return decision{}, storeErr("most recent subject", err)
	}

	conf := sb.Confidence
	return decision{
		outcome:    types.OutcomeGranted,
		reason:     types.ReasonSandboxGrant,
		subject:    &subj,
		confidence: &conf,
		degraded:   true,
		message:    msgSandboxGrant,
	}, nil
}

func (s *VerificationService) appendEvent(ctx context.Context, ev types.AccessEvent) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.events.AppendAccessEvent(ctx, ev); err != nil {
		s.logger.Error("append access event failed", zap.String("event_id", ev.ID), zap.Error(err))
		return storeErr("append access event", err)
	}
	return nil
}
