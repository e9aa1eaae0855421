package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

// DefaultMaxUploadBytes caps multipart bodies.  Terminal captures are JPEGs
// well under a megabyte.
const DefaultMaxUploadBytes = 8 << 20

type Dependencies struct {
	Logger       *zap.Logger
	Addr         string
	Verification *service.VerificationService
	Registration *service.RegistrationService
	Query        *service.QueryService
	Metrics      *metrics.Metrics

	// AdminJWTSecret guards the read endpoints when non-empty.
	AdminJWTSecret string
	MaxUploadBytes int64
}

type Server struct {
	httpServer   *http.Server
	logger       *zap.Logger
	router       chi.Router
	verification *service.VerificationService
	registration *service.RegistrationService
	query        *service.QueryService
	maxUpload    int64
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	r := chi.NewRouter()
	s := &Server{
		logger:       logger,
		router:       r,
		verification: d.Verification,
		registration: d.Registration,
		query:        d.Query,
		maxUpload:    maxUpload,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Post("/verify", s.handleVerify)
	r.Post("/register", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(adminGuard(d.AdminJWTSecret, logger))
		r.Get("/subjects", s.handleListSubjects)
		r.Get("/subjects/{subjectId}", s.handleGetSubject)
		r.Get("/access-events", s.handleListAccessEvents)
		r.Get("/stats", s.handleStats)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"fallback": s.verification.Policy().Name(),
		"time":     time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// ── Verify ───────────────────────────────────────────────────────────────────

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	sample, err := s.readSample(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_sample", err.Error())
		return
	}

	deviceID := r.FormValue("deviceId")
	res, err := s.verification.Verify(r.Context(), types.VerifyRequest{Sample: sample, DeviceID: deviceID})
	if err != nil {
		if errors.Is(err, service.ErrInvalidSample) {
			writeError(w, http.StatusBadRequest, "invalid_sample", err.Error())
			return
		}
		s.internalError(w, r, "verify", err)
		return
	}

	status := http.StatusOK
	switch res.Outcome {
	case types.OutcomeDenied:
		status = http.StatusUnauthorized
	case types.OutcomeEngineUnavailable:
		status = http.StatusServiceUnavailable
	}
	s.respond(w, r, status, newVerifyResponse(res))
}

// ── Register ─────────────────────────────────────────────────────────────────

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	sample, err := s.readSample(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_sample", err.Error())
		return
	}

	subjectID := r.FormValue("subjectId")
	if strings.TrimSpace(subjectID) == "" {
		subjectID = r.FormValue("employeeId")
	}

	res, err := s.registration.Register(r.Context(), types.RegisterRequest{
		SubjectID: subjectID,
		Name:      r.FormValue("name"),
		Email:     r.FormValue("email"),
		Role:      r.FormValue("role"),
		Sample:    sample,
	})
	if err != nil {
		var rej *service.RejectedError
		switch {
		case errors.Is(err, service.ErrInvalidSubjectID):
			writeError(w, http.StatusBadRequest, "invalid_subject_id", err.Error())
		case errors.Is(err, service.ErrInvalidSample):
			writeError(w, http.StatusBadRequest, "invalid_sample", err.Error())
		case errors.Is(err, service.ErrTemplateDimension):
			writeError(w, http.StatusUnprocessableEntity, "template_dimension", err.Error())
		case errors.As(err, &rej):
			writeError(w, http.StatusUnprocessableEntity, "enrollment_rejected", rej.Reason)
		default:
			s.internalError(w, r, "register", err)
		}
		return
	}

	s.respond(w, r, http.StatusOK, res)
}

// ── Admin reads ──────────────────────────────────────────────────────────────

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.query.Subjects(r.Context())
	if err != nil {
		s.internalError(w, r, "list subjects", err)
		return
	}
	if subjects == nil {
		subjects = []types.Subject{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects, "total": len(subjects)})
}

func (s *Server) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	subj, err := s.query.Subject(r.Context(), chi.URLParam(r, "subjectId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "subject not found")
			return
		}
		s.internalError(w, r, "get subject", err)
		return
	}
	writeJSON(w, http.StatusOK, subj)
}

func (s *Server) handleListAccessEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AccessEventFilter{
		SubjectID: q.Get("subjectId"),
		DeviceID:  q.Get("deviceId"),
		Outcome:   types.Outcome(q.Get("outcome")),
	}
	switch f.Outcome {
	case "", types.OutcomeGranted, types.OutcomeDenied, types.OutcomeEngineUnavailable:
	default:
		writeError(w, http.StatusBadRequest, "invalid_outcome", "outcome must be granted, denied or engine_unavailable")
		return
	}

	p := store.Page{Page: atoiOr(q.Get("page"), 1), Limit: atoiOr(q.Get("limit"), store.DefaultPageLimit)}
	page, err := s.query.AccessEvents(r.Context(), f, p)
	if err != nil {
		s.internalError(w, r, "list access events", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.query.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// readSample pulls the "file" part out of a multipart body.
func (s *Server) readSample(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, errors.New("expected multipart/form-data body")
	}
	return readFormFile(r, "file")
}

// internalError logs the real cause and returns a generic 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op+" failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	if wantsProtobuf(r) {
		writeProto(w, status, body)
		return
	}
	writeJSON(w, status, body)
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
