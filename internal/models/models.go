// Package models defines the core data types shared across Shrubb components:
// background jobs, the usage ledger, proposal nudges, and the tenant-scoped
// records the worker needs to resolve billing context.
package models

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle state of a background job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is a final state that no claim may leave.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// JobType tags a job with the handler that executes it. Closed enumeration;
// jobs of an unregistered type fail terminally on their first claim.
type JobType string

const (
	JobTypePlanner           JobType = "planner"
	JobTypeVisualizer        JobType = "visualizer"
	JobTypeClassifier        JobType = "classifier"
	JobTypeChatResponse      JobType = "chat_response"
	JobTypeProvisionPhone    JobType = "provision_phone"
	JobTypeSendProposalNudge JobType = "send_proposal_nudge"
)

// Job is one unit of deferred work tracked through the state machine.
// At most one worker holds a non-empty LockedBy for a given job at any time;
// the claim operation is atomic with respect to concurrent pollers.
type Job struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	TenantID  string          `json:"tenant_id"` // empty until resolved lazily
	Type      JobType         `json:"type"`
	Status    JobStatus       `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	Result    json.RawMessage `json:"result"`
	LastError string          `json:"last_error"`
	Attempts  int             `json:"attempts"` // incremented on each claim
	LockedBy  string          `json:"locked_by"`
	LockedAt  *time.Time      `json:"locked_at"`
	DedupeKey string          `json:"dedupe_key"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UsageEntry is an immutable record of one billable external operation.
// Entries are insert-only; tenant spend totals are aggregates over this table.
type UsageEntry struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	JobID            string    `json:"job_id"`
	Model            string    `json:"model"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	Images           int64     `json:"images"`
	CostCents        int64     `json:"cost_cents"`
	CreatedAt        time.Time `json:"created_at"`
}

// NudgeStatus represents the lifecycle state of a proposal nudge.
type NudgeStatus string

const (
	NudgeStatusPending   NudgeStatus = "pending"
	NudgeStatusSent      NudgeStatus = "sent"
	NudgeStatusCancelled NudgeStatus = "cancelled"
)

// ProposalNudge is a scheduled follow-up reminder that, when due, becomes a
// send_proposal_nudge job.
type ProposalNudge struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	ProposalID  string      `json:"proposal_id"`
	Status      NudgeStatus `json:"status"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ProposalStatus represents the lifecycle state of a customer proposal.
type ProposalStatus string

const (
	ProposalStatusDraft    ProposalStatus = "draft"
	ProposalStatusSent     ProposalStatus = "sent"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusDeclined ProposalStatus = "declined"
)

// Terminal reports whether the proposal no longer needs follow-up.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusAccepted || s == ProposalStatusDeclined
}

// Proposal is the customer-facing quote a nudge follows up on. Owned by the
// surrounding business logic; the worker only reads it.
type Proposal struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	ProjectID    string         `json:"project_id"`
	OwnerID      string         `json:"owner_id"`
	ContactPhone string         `json:"contact_phone"`
	Status       ProposalStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Tenant is the billing/resource-scope entity a job's cost is attributed to.
type Tenant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TwilioNumber  string    `json:"twilio_number"` // empty until provisioned
	SpendCapCents int64     `json:"spend_cap_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

// Project is a landscaping project belonging to a tenant; referenced by job
// payloads for tenant resolution and by the planner/visualizer handlers.
type Project struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	SiteNotes string    `json:"site_notes"`
	CreatedAt time.Time `json:"created_at"`
}
