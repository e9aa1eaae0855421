package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

// subjectView is a subject without its template, as shown to the terminal.
type subjectView struct {
	SubjectID      string     `json:"subjectId"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	Role           types.Role `json:"role"`
	ImageReference string     `json:"imageReference,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type verifyResponse struct {
	Granted    bool          `json:"granted"`
	Subject    *subjectView  `json:"subject,omitempty"`
	Confidence *float64      `json:"confidence,omitempty"`
	Message    string        `json:"message"`
	Outcome    types.Outcome `json:"outcome"`
	Reason     string        `json:"reason"`
	Degraded   bool          `json:"degraded,omitempty"`
	Retriable  bool          `json:"retriable,omitempty"`
	EventID    string        `json:"eventId"`
	DeviceID   string        `json:"deviceId"`
}

func newVerifyResponse(r types.VerifyResult) verifyResponse {
	out := verifyResponse{
		Granted:    r.Granted,
		Confidence: r.Confidence,
		Message:    r.Message,
		Outcome:    r.Outcome,
		Reason:     r.Reason,
		Degraded:   r.Degraded,
		Retriable:  r.Retriable,
		EventID:    r.EventID,
		DeviceID:   r.DeviceID,
	}
	// Denials never echo subject details back to the terminal.
	if r.Granted && r.Subject != nil {
		out.Subject = &subjectView{
			SubjectID:      r.Subject.SubjectID,
			Name:           r.Subject.Name,
			Email:          r.Subject.Email,
			Role:           r.Subject.Role,
			ImageReference: r.Subject.ImageReference,
			CreatedAt:      r.Subject.CreatedAt,
		}
	}
	return out
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
