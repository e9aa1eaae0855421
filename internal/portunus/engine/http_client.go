package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/metrics"
)

// maxResponseBody caps what we read back from the engine.  A 512-d float
// template in JSON is well under 16 KiB.
const maxResponseBody = 1 << 20

type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPClient is the Client implementation for the engine's HTTP API:
//
//	POST {base}/verify  multipart file                -> {matched, subject_id, confidence}
//	POST {base}/enroll  multipart file, subject_id    -> {enrolled, template, image_reference, reason}
//	GET  {base}/health                                -> 2xx
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewHTTPClient(cfg HTTPClientConfig, m *metrics.Metrics, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		// Deadline comes from the per-call context; no client-level timeout.
		http:    &http.Client{},
		metrics: m,
		logger:  logger,
	}
}

type verifyResponse struct {
	Matched    bool    `json:"matched"`
	SubjectID  string  `json:"subject_id"`
	Confidence float64 `json:"confidence"`
}

type enrollResponse struct {
	Enrolled       bool      `json:"enrolled"`
	Template       []float64 `json:"template"`
	ImageReference string    `json:"image_reference"`
	Reason         string    `json:"reason"`
}

func (c *HTTPClient) Verify(ctx context.Context, sample []byte) (MatchResult, error) {
	var out verifyResponse
	if err := c.postMultipart(ctx, "verify", sample, nil, &out); err != nil {
		return MatchResult{}, err
	}
	if !out.Matched {
		return MatchResult{Matched: false}, nil
	}
	if strings.TrimSpace(out.SubjectID) == "" {
		return MatchResult{}, fmt.Errorf("%w: match without subject_id", ErrEngineUnreachable)
	}
	return MatchResult{
		Matched:    true,
		SubjectID:  out.SubjectID,
		Confidence: clamp01(out.Confidence),
	}, nil
}

func (c *HTTPClient) Enroll(ctx context.Context, sample []byte, subjectID string) (TemplateResult, error) {
	var out enrollResponse
	fields := map[string]string{"subject_id": subjectID}
	if err := c.postMultipart(ctx, "enroll", sample, fields, &out); err != nil {
		return TemplateResult{}, err
	}
	if !out.Enrolled {
		reason := out.Reason
		if reason == "" {
			reason = "REJECTED"
		}
		return TemplateResult{Enrolled: false, Reason: reason}, nil
	}
	return TemplateResult{
		Enrolled:       true,
		Template:       out.Template,
		ImageReference: out.ImageReference,
	}, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnreachable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		err = classify(ctx, err)
		c.observe("ping", err, start)
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = fmt.Errorf("%w: health status %d", ErrEngineUnreachable, resp.StatusCode)
	}
	c.observe("ping", err, start)
	return err
}

// postMultipart sends the sample as form field "file" plus any extra fields
// and decodes a 2xx JSON body into out.  Every failure is mapped onto
// ErrEngineUnreachable or ErrEngineTimeout.
func (c *HTTPClient) postMultipart(ctx context.Context, op string, sample []byte, fields map[string]string, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() { c.observe(op, err, start) }()

	body, contentType, err := encodeMultipart(sample, fields)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrEngineUnreachable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnreachable, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return classify(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s status %d", ErrEngineUnreachable, op, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrEngineUnreachable, op, err)
	}
	return nil
}

func encodeMultipart(sample []byte, fields map[string]string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	fw, err := mw.CreateFormFile("file", "sample")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(sample); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

// classify decides between timeout and unreachable.  The caller's own
// cancellation is reported as unreachable: only our deadline is a timeout.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrEngineTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrEngineTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrEngineUnreachable, err)
}

func (c *HTTPClient) observe(op string, err error, start time.Time) {
	d := time.Since(start)
	result := "ok"
	switch {
	case errors.Is(err, ErrEngineTimeout):
		result = "timeout"
	case err != nil:
		result = "unreachable"
	}
	c.metrics.ObserveEngine(op, result, d)
	if err != nil {
		c.logger.Warn("recognition engine call failed",
			zap.String("op", op), zap.String("result", result), zap.Duration("dur", d), zap.Error(err))
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
