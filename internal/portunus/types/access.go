package types

import "time"

type Outcome string

const (
	OutcomeGranted           Outcome = "granted"
	OutcomeDenied            Outcome = "denied"
	OutcomeEngineUnavailable Outcome = "engine_unavailable"
)

// Decision reasons recorded alongside the outcome.
const (
	ReasonEngineMatch         = "engine_match"
	ReasonEngineNoMatch       = "engine_no_match"
	ReasonPlaceholderTemplate = "placeholder_template"
	ReasonSubjectNotEnrolled  = "subject_not_enrolled"
	ReasonEngineUnavailable   = "engine_unavailable"
	ReasonSandboxGrant        = "sandbox_grant"
)

// AccessEvent is one immutable audit record per verification attempt.
type AccessEvent struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subjectId,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason"`
	Confidence *float64  `json:"confidence,omitempty"`
	DeviceID   string    `json:"deviceId"`
	Degraded   bool      `json:"degraded"`
	CreatedAt  time.Time `json:"createdAt"`
}

type VerifyRequest struct {
	Sample   []byte
	DeviceID string
}

// VerifyResult is what the verification pipeline hands back to the HTTP
// layer once the access event has been written.
type VerifyResult struct {
	Granted    bool     `json:"granted"`
	Subject    *Subject `json:"subject,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Outcome    Outcome  `json:"outcome"`
	Reason     string   `json:"reason"`
	Message    string   `json:"message"`
	Degraded   bool     `json:"degraded,omitempty"`
	Retriable  bool     `json:"retriable,omitempty"`
	EventID    string   `json:"eventId"`
	DeviceID   string   `json:"deviceId"`
}

type RegisterRequest struct {
	SubjectID string
	Name      string
	Email     string
	Role      string
	Sample    []byte
}

type RegisterResult struct {
	Success        bool   `json:"success"`
	SubjectID      string `json:"subjectId"`
	ImageReference string `json:"imageReference,omitempty"`
	Placeholder    bool   `json:"placeholder"`
	Message        string `json:"message,omitempty"`
}

// Stats mirrors the admin dashboard counters.
type Stats struct {
	TotalSubjects     int   `json:"totalSubjects"`
	ActiveDevices     int   `json:"activeDevices"`
	GrantedEvents     int64 `json:"grantedEvents"`
	DeniedEvents      int64 `json:"deniedEvents"`
	UnavailableEvents int64 `json:"unavailableEvents"`
}
