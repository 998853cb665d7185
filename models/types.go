// ABOUTME: Data models for the contact-to-lead sync
// ABOUTME: Defines Contact, Pipeline, Stage, SyncJob, SyncOutcome and principal records
package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact source constants.
const (
	SourceAPI     = "api"
	SourceFile    = "file"
	SourceUnknown = "unknown"
)

type Contact struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	PhoneNumber string     `json:"phoneNumber"`
	Email       string     `json:"email,omitempty"`
	Source      string     `json:"source"`
	IsValid     bool       `json:"isValid"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
}

// Pipeline is a CRM sales funnel.
type Pipeline struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Stage is a status inside a Pipeline.
type Stage struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Sort  int    `json:"sort"`
	Color string `json:"color"`
}

type AccountInfo struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// OutcomeStatus is the terminal state of a single contact inside a sync job.
type OutcomeStatus string

const (
	OutcomeLeadCreated         OutcomeStatus = "lead_created"
	OutcomeFiltered            OutcomeStatus = "filtered"
	OutcomeContactCreateFailed OutcomeStatus = "contact_create_failed"
	OutcomeLeadCreateFailed    OutcomeStatus = "lead_create_failed"
)

// SyncOutcome records what happened to one contact. Build it with the
// constructors below so the id/error invariants always hold.
type SyncOutcome struct {
	Name      string        `json:"name"`
	Status    OutcomeStatus `json:"stage"`
	Success   bool          `json:"success"`
	ContactID int64         `json:"contactId,omitempty"`
	LeadID    int64         `json:"leadId,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func LeadCreated(name string, contactID, leadID int64) SyncOutcome {
	return SyncOutcome{Name: name, Status: OutcomeLeadCreated, Success: true, ContactID: contactID, LeadID: leadID}
}

func FilteredOut(name, reason string) SyncOutcome {
	return SyncOutcome{Name: name, Status: OutcomeFiltered, Error: reason}
}

func ContactCreateFailed(name, message string) SyncOutcome {
	return SyncOutcome{Name: name, Status: OutcomeContactCreateFailed, Error: message}
}

func LeadCreateFailed(name string, contactID int64, message string) SyncOutcome {
	return SyncOutcome{Name: name, Status: OutcomeLeadCreateFailed, ContactID: contactID, Error: message}
}

// SyncJob is the ephemeral record of one orchestrator invocation.
type SyncJob struct {
	PipelineID int64         `json:"pipeline_id"`
	StatusID   int64         `json:"status_id,omitempty"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Filtered   int           `json:"filtered"`
	Contacts   []SyncOutcome `json:"contacts"`
}

// Failed counts outcomes that were attempted against the CRM and did not
// end with a lead.
func (j *SyncJob) Failed() int {
	n := 0
	for _, o := range j.Contacts {
		if !o.Success && o.Status != OutcomeFiltered {
			n++
		}
	}
	return n
}

type CRMCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	BaseURL      string `json:"base_url"`
	AuthToken    string `json:"auth_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Missing lists the names of required credential fields that are empty.
func (c CRMCredentials) Missing() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "redirect_uri")
	}
	if c.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if c.AuthToken == "" {
		missing = append(missing, "auth_token")
	}
	return missing
}

// User is a principal of the system.
type User struct {
	ID             uuid.UUID      `json:"id"`
	Username       string         `json:"username"`
	PasswordHash   string         `json:"-"`
	CRMCredentials CRMCredentials `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Session is a bearer token issued at login.
type Session struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
