package models

import (
	"encoding/json"
	"fmt"
)

// Per-type job payload schemas. Payloads are stored as opaque JSON on the job
// row and validated against the schema for the job's type at dispatch time, so
// malformed payloads fail with a clear error instead of inside a handler.

// PlannerPayload is the payload for planner jobs.
type PlannerPayload struct {
	ProjectID   string `json:"project_id"`
	DesignRunID string `json:"design_run_id"`
}

func (p PlannerPayload) Validate() error {
	if p.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if p.DesignRunID == "" {
		return fmt.Errorf("design_run_id is required")
	}
	return nil
}

// VisualizerPayload is the payload for visualizer jobs.
type VisualizerPayload struct {
	ProjectID   string `json:"project_id"`
	DesignRunID string `json:"design_run_id"`
	Prompt      string `json:"prompt,omitempty"`
}

func (p VisualizerPayload) Validate() error {
	if p.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if p.DesignRunID == "" {
		return fmt.Errorf("design_run_id is required")
	}
	return nil
}

// ClassifierPayload is the payload for classifier jobs.
type ClassifierPayload struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

func (p ClassifierPayload) Validate() error {
	if p.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// ChatResponsePayload is the payload for chat_response jobs.
type ChatResponsePayload struct {
	ContactPhone string `json:"contact_phone"`
	Message      string `json:"message"`
}

func (p ChatResponsePayload) Validate() error {
	if p.ContactPhone == "" {
		return fmt.Errorf("contact_phone is required")
	}
	if p.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

// ProvisionPhonePayload is the payload for provision_phone jobs.
type ProvisionPhonePayload struct {
	AreaCode string `json:"area_code"`
}

func (p ProvisionPhonePayload) Validate() error {
	if p.AreaCode == "" {
		return fmt.Errorf("area_code is required")
	}
	return nil
}

// SendProposalNudgePayload is the payload for send_proposal_nudge jobs.
type SendProposalNudgePayload struct {
	NudgeID    string `json:"nudge_id"`
	ProposalID string `json:"proposal_id"`
}

func (p SendProposalNudgePayload) Validate() error {
	if p.NudgeID == "" {
		return fmt.Errorf("nudge_id is required")
	}
	if p.ProposalID == "" {
		return fmt.Errorf("proposal_id is required")
	}
	return nil
}

// payloadValidator is implemented by all job payload types.
type payloadValidator interface {
	Validate() error
}

// ValidatePayload decodes raw payload JSON against the schema for the given
// job type and validates required fields. Unknown types pass through: the
// registry lookup rejects them before validation applies.
func ValidatePayload(jobType JobType, raw json.RawMessage) error {
	var p payloadValidator
	switch jobType {
	case JobTypePlanner:
		p = &PlannerPayload{}
	case JobTypeVisualizer:
		p = &VisualizerPayload{}
	case JobTypeClassifier:
		p = &ClassifierPayload{}
	case JobTypeChatResponse:
		p = &ChatResponsePayload{}
	case JobTypeProvisionPhone:
		p = &ProvisionPhonePayload{}
	case JobTypeSendProposalNudge:
		p = &SendProposalNudgePayload{}
	default:
		return nil
	}
	if len(raw) == 0 {
		return fmt.Errorf("payload is empty")
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return p.Validate()
}

// ProjectRef extracts the project_id field from a raw payload, if present.
// Used by tenant resolution for payloads that reference a project.
func ProjectRef(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var ref struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return ""
	}
	return ref.ProjectID
}
