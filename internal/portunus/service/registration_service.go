package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/engine"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

const DefaultTemplateDimension = 128

type RegistrationDeps struct {
	Subjects          store.SubjectStore
	Engine            engine.Client
	TemplateDimension int
	Metrics           *metrics.Metrics
	Logger            *zap.Logger
	Now               func() time.Time
}

type RegistrationService struct {
	subjects store.SubjectStore
	engine   engine.Client
	dim      int
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewRegistrationService(d RegistrationDeps) *RegistrationService {
	s := &RegistrationService{
		subjects: d.Subjects,
		engine:   d.Engine,
		dim:      d.TemplateDimension,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      d.Now,
	}
	if s.dim <= 0 {
		s.dim = DefaultTemplateDimension
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Register enrolls or re-enrolls a subject.  When the engine is unavailable
// the subject is stored with a zeroed placeholder template that verification
// will never grant on.
func (s *RegistrationService) Register(ctx context.Context, req types.RegisterRequest) (types.RegisterResult, error) {
	subjectID := strings.TrimSpace(req.SubjectID)
	if subjectID == "" {
		return types.RegisterResult{}, ErrInvalidSubjectID
	}
	if err := validateSample(req.Sample); err != nil {
		return types.RegisterResult{}, err
	}

	subj := types.Subject{
		SubjectID: subjectID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Role:      types.ParseRole(strings.ToLower(strings.TrimSpace(req.Role))),
		UpdatedAt: s.now(),
	}
	if subj.Name == "" {
		subj.Name = subjectID
	}
	subj.CreatedAt = subj.UpdatedAt

	res, err := s.engine.Enroll(ctx, req.Sample, subjectID)
	switch {
	case err != nil:
		if !errors.Is(err, engine.ErrEngineUnavailable) {
			s.logger.Warn("unexpected engine error treated as unavailable", zap.Error(err))
		}
		s.logger.Warn("recognition engine unavailable; storing placeholder template",
			zap.String("subject_id", subjectID), zap.Error(err))
		subj.Template = types.Template{Kind: types.TemplatePlaceholder, Vector: make([]float64, s.dim)}

	case !res.Enrolled:
		s.metrics.ObserveRegistration("rejected")
		s.logger.Info("enrollment rejected", zap.String("subject_id", subjectID), zap.String("reason", res.Reason))
		return types.RegisterResult{}, &RejectedError{Reason: res.Reason}

	default:
		if len(res.Template) != s.dim {
			s.metrics.ObserveRegistration("bad_dimension")
			return types.RegisterResult{}, fmt.Errorf("%w: got %d, want %d", ErrTemplateDimension, len(res.Template), s.dim)
		}
		subj.Template = types.Template{Kind: types.TemplateVerified, Vector: res.Template}
		subj.ImageReference = res.ImageReference
	}

	if err := s.subjects.Upsert(ctx, subj); err != nil {
		s.metrics.ObserveRegistration("store_error")
		s.logger.Error("upsert subject failed", zap.String("subject_id", subjectID), zap.Error(err))
		return types.RegisterResult{}, storeErr("upsert subject", err)
	}

	placeholder := subj.Template.Kind == types.TemplatePlaceholder
	result := "ok"
	msg := "Subject registered"
	if placeholder {
		result = "placeholder"
		msg = "Subject registered with a placeholder template; recognition engine was unavailable"
	}
	s.metrics.ObserveRegistration(result)
	s.logger.Info("subject registered",
		zap.String("subject_id", subjectID), zap.String("role", string(subj.Role)), zap.Bool("placeholder", placeholder))

	return types.RegisterResult{
		Success:        true,
		SubjectID:      subjectID,
		ImageReference: subj.ImageReference,
		Placeholder:    placeholder,
		Message:        msg,
	}, nil
}
