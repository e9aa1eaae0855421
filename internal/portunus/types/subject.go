package types

import "time"

type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// ParseRole maps anything other than "admin" to RoleStandard.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleStandard
}

// TemplateKind tags where a stored template came from.  Placeholder templates
// are written when enrollment ran without the recognition engine and must
// never back an access grant.
type TemplateKind string

const (
	TemplateVerified    TemplateKind = "verified"
	TemplatePlaceholder TemplateKind = "placeholder"
)

type Template struct {
	Kind   TemplateKind `json:"kind"`
	Vector []float64    `json:"vector"`
}

func (t Template) Trusted() bool { return t.Kind == TemplateVerified }

// Subject is an enrolled identity.
type Subject struct {
	SubjectID      string    `json:"subjectId"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Role           Role      `json:"role"`
	Template       Template  `json:"template"`
	ImageReference string    `json:"imageReference,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
