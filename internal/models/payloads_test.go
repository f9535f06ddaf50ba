package models

import (
	"encoding/json"
	"testing"
)

func TestValidatePayloadPlanner(t *testing.T) {
	valid := json.RawMessage(`{"project_id":"proj_1","design_run_id":"run_1"}`)
	if err := ValidatePayload(JobTypePlanner, valid); err != nil {
		t.Errorf("expected valid planner payload, got %v", err)
	}

	missing := json.RawMessage(`{"project_id":"proj_1"}`)
	if err := ValidatePayload(JobTypePlanner, missing); err == nil {
		t.Error("expected error for planner payload missing design_run_id")
	}
}

func TestValidatePayloadEmpty(t *testing.T) {
	if err := ValidatePayload(JobTypeClassifier, nil); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestValidatePayloadMalformedJSON(t *testing.T) {
	if err := ValidatePayload(JobTypeChatResponse, json.RawMessage(`{not json`)); err == nil {
		t.Error("expected error for malformed JSON payload")
	}
}

func TestValidatePayloadUnknownTypePassesThrough(t *testing.T) {
	// Unknown types are rejected by the registry lookup, not payload validation.
	if err := ValidatePayload(JobType("unknown_widget"), json.RawMessage(`{}`)); err != nil {
		t.Errorf("expected unknown type to pass through validation, got %v", err)
	}
}

func TestValidatePayloadSendProposalNudge(t *testing.T) {
	valid := json.RawMessage(`{"nudge_id":"ndg_1","proposal_id":"prop_1"}`)
	if err := ValidatePayload(JobTypeSendProposalNudge, valid); err != nil {
		t.Errorf("expected valid nudge payload, got %v", err)
	}
	if err := ValidatePayload(JobTypeSendProposalNudge, json.RawMessage(`{"nudge_id":"ndg_1"}`)); err == nil {
		t.Error("expected error for nudge payload missing proposal_id")
	}
}

func TestProjectRef(t *testing.T) {
	if got := ProjectRef(json.RawMessage(`{"project_id":"proj_9","design_run_id":"run_1"}`)); got != "proj_9" {
		t.Errorf("expected proj_9, got %q", got)
	}
	if got := ProjectRef(json.RawMessage(`{"nudge_id":"ndg_1"}`)); got != "" {
		t.Errorf("expected empty project ref, got %q", got)
	}
	if got := ProjectRef(nil); got != "" {
		t.Errorf("expected empty project ref for nil payload, got %q", got)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if !JobStatusSucceeded.Terminal() || !JobStatusFailed.Terminal() {
		t.Error("succeeded and failed should be terminal")
	}
	if JobStatusQueued.Terminal() || JobStatusRunning.Terminal() {
		t.Error("queued and running should not be terminal")
	}
}
