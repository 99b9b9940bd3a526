//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const maxAgentNameLen = 255

// VerifiedAgentsModel is the model name of the schema-backed agent registry.
const VerifiedAgentsModel = "verified_agents"

// AgentStatus is the verification state of an agent.
type AgentStatus string

const (
	AgentStatusPending  AgentStatus = "pending"
	AgentStatusVerified AgentStatus = "verified"
	AgentStatusRejected AgentStatus = "rejected"
)

// Valid reports whether the status is supported.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusPending, AgentStatusVerified, AgentStatusRejected:
		return true
	default:
		return false
	}
}

// VerifiedAgent is the typed row behind the verified_agents table.
type VerifiedAgent struct {
	ID               string      `json:"id"                          db:"id"`
	Name             string      `json:"name"                        db:"name"`
	Email            string      `json:"email"                       db:"email"`
	Status           AgentStatus `json:"status"                      db:"status"`
	VerificationDate *time.Time  `json:"verification_date,omitempty" db:"verification_date"`
	Documents        []string    `json:"documents"                   db:"documents"`
	CreatedAt        time.Time   `json:"created_at"                  db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"                  db:"updated_at"`
}

// ToRecord converts the typed row into the storage-neutral record shape.
func (a VerifiedAgent) ToRecord() Record {
	data := map[string]any{
		"name":      a.Name,
		"email":     a.Email,
		"status":    string(a.Status),
		"documents": append([]string{}, a.Documents...),
	}
	if a.VerificationDate != nil {
		data["verification_date"] = a.VerificationDate.UTC().Format(time.RFC3339)
	}
	return Record{
		ID:         a.ID,
		Collection: VerifiedAgentsModel,
		Data:       data,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// CreateVerifiedAgentRequest is the validated input for creating an agent.
type CreateVerifiedAgentRequest struct {
	Name             string
	Email            string
	Status           AgentStatus
	VerificationDate *time.Time
	Documents        []string
}

// Validate checks required fields and normalizes defaults in place.
func (r *CreateVerifiedAgentRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.Name) > maxAgentNameLen {
		return fmt.Errorf("name must be at most %d characters", maxAgentNameLen)
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("email is invalid")
	}
	if r.Status == "" {
		r.Status = AgentStatusPending
	}
	if !r.Status.Valid() {
		return fmt.Errorf("status must be one of pending, verified, rejected")
	}
	if r.Documents == nil {
		r.Documents = []string{}
	}
	return nil
}

// NewCreateVerifiedAgentRequest decodes a loosely typed document into a typed request.
func NewCreateVerifiedAgentRequest(doc map[string]any) (*CreateVerifiedAgentRequest, error) {
	req := &CreateVerifiedAgentRequest{}
	if v, ok := doc["name"].(string); ok {
		req.Name = v
	}
	if v, ok := doc["email"].(string); ok {
		req.Email = v
	}
	if v, ok := doc["status"].(string); ok {
		req.Status = AgentStatus(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := doc["verification_date"].(string); ok && strings.TrimSpace(v) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
		if err != nil {
			return nil, errors.New("verification_date must be RFC3339")
		}
		req.VerificationDate = &t
	}
	if raw, ok := doc["documents"].([]any); ok {
		for _, item := range raw {
			s, isStr := item.(string)
			if !isStr {
				return nil, errors.New("documents must be a list of strings")
			}
			req.Documents = append(req.Documents, s)
		}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
