// Package handlers contains the per-type job handlers: AI planning and
// visualization for design runs, inbound message classification, outbound
// chat replies, tenant phone provisioning, and proposal follow-up nudges.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/genai"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/spend"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/store"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/twiliosms"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/worker"
)

// completionBudgetTokens is the completion allowance assumed when estimating
// chat cost for the cap gate.
const completionBudgetTokens = 1024

// ErrSpendCapExceeded marks jobs rejected by the per-tenant spending cap.
var ErrSpendCapExceeded = fmt.Errorf("tenant spending cap exceeded")

// Deps bundles everything the handlers need. All fields are interfaces or
// small structs so tests can swap in doubles.
type Deps struct {
	Store store.Store
	AI    genai.Generator
	SMS   twiliosms.Sender
	Spend *spend.Guard
}

// RegisterAll binds every job type to its handler.
func RegisterAll(r *worker.Registry, d Deps) {
	r.Register(models.JobTypePlanner, d.handlePlanner)
	r.Register(models.JobTypeVisualizer, d.handleVisualizer)
	r.Register(models.JobTypeClassifier, d.handleClassifier)
	r.Register(models.JobTypeChatResponse, d.handleChatResponse)
	r.Register(models.JobTypeProvisionPhone, d.handleProvisionPhone)
	r.Register(models.JobTypeSendProposalNudge, d.handleSendProposalNudge)
}

// gateChat applies the spending cap to an upcoming chat completion.
func (d Deps) gateChat(tenantID, prompt string) error {
	promptTokens, completionTokens := spend.EstimateChatTokens(len(prompt), completionBudgetTokens)
	estimate := spend.ChatCostCents(genai.ChatModel, promptTokens, completionTokens)
	if !d.Spend.CheckCap(tenantID, estimate) {
		return ErrSpendCapExceeded
	}
	return nil
}

// recordUsage writes the realized cost to the ledger. Ledger write failures
// do not fail the job: the work is done and retrying it would redo the
// billable call.
func (d Deps) recordUsage(tenantID, jobID string, usage spend.Usage) {
	if err := d.Spend.RecordSpend(tenantID, jobID, usage); err != nil {
		slog.Error("handlers: failed to record usage", "tenantID", tenantID, "jobID", jobID, "error", err)
	}
}

// handlePlanner produces a planting/layout plan for a design run and chains a
// visualizer job for it.
func (d Deps) handlePlanner(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var p models.PlannerPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode planner payload: %w", err)
	}

	project, err := d.Store.GetProject(p.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", p.ProjectID, err)
	}
	if project == nil {
		return nil, fmt.Errorf("project %s not found", p.ProjectID)
	}

	prompt := fmt.Sprintf("Project: %s.", project.Name)
	if project.SiteNotes != "" {
		prompt += " Site notes: " + project.SiteNotes
	}
	if err := d.gateChat(job.TenantID, prompt); err != nil {
		return nil, err
	}

	plan, usage, err := d.AI.GenerateChat(ctx, plannerSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	d.recordUsage(job.TenantID, job.ID, usage)

	// The visualizer render is a follow-up, not part of this job's contract:
	// a failed enqueue is logged, not retried through this job.
	vizPayload, _ := json.Marshal(models.VisualizerPayload{
		ProjectID:   p.ProjectID,
		DesignRunID: p.DesignRunID,
		Prompt:      plan,
	})
	vizJobID, err := d.Store.EnqueueJob(store.EnqueueJobParams{
		OwnerID:  job.OwnerID,
		TenantID: job.TenantID,
		Type:     models.JobTypeVisualizer,
		Payload:  vizPayload,
	})
	if err != nil {
		slog.Error("handlePlanner: failed to enqueue visualizer job", "jobID", job.ID, "designRunID", p.DesignRunID, "error", err)
		vizJobID = ""
	}

	return json.Marshal(map[string]string{
		"design_run_id":     p.DesignRunID,
		"plan":              plan,
		"visualizer_job_id": vizJobID,
	})
}

// handleVisualizer renders a design image for a design run.
func (d Deps) handleVisualizer(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var p models.VisualizerPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode visualizer payload: %w", err)
	}

	prompt := p.Prompt
	if prompt == "" {
		project, err := d.Store.GetProject(p.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("load project %s: %w", p.ProjectID, err)
		}
		if project == nil {
			return nil, fmt.Errorf("project %s not found", p.ProjectID)
		}
		prompt = fmt.Sprintf("Landscaping design rendering for %s", project.Name)
	}

	estimate := spend.ImageCostCents(genai.ImageModel, 1)
	if !d.Spend.CheckCap(job.TenantID, estimate) {
		return nil, ErrSpendCapExceeded
	}

	imageURL, usage, err := d.AI.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	d.recordUsage(job.TenantID, job.ID, usage)

	return json.Marshal(map[string]string{
		"design_run_id": p.DesignRunID,
		"image_url":     imageURL,
	})
}

// handleClassifier labels an inbound lead message with an intent.
func (d Deps) handleClassifier(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var p models.ClassifierPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode classifier payload: %w", err)
	}

	if err := d.gateChat(job.TenantID, p.Text); err != nil {
		return nil, err
	}

	intent, usage, err := d.AI.GenerateChat(ctx, classifierSystemPrompt, p.Text)
	if err != nil {
		return nil, fmt.Errorf("classify message: %w", err)
	}
	d.recordUsage(job.TenantID, job.ID, usage)

	return json.Marshal(map[string]string{
		"message_id": p.MessageID,
		"intent":     intent,
	})
}

// handleChatResponse generates a reply to a contact and sends it by SMS from
// the tenant's number.
func (d Deps) handleChatResponse(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var p models.ChatResponsePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode chat_response payload: %w", err)
	}

	tenant, err := d.Store.GetTenant(job.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", job.TenantID, err)
	}
	if tenant == nil {
		return nil, fmt.Errorf("tenant %s not found", job.TenantID)
	}
	if tenant.TwilioNumber == "" {
		return nil, fmt.Errorf("tenant %s has no phone number provisioned", job.TenantID)
	}

	if err := d.gateChat(job.TenantID, p.Message); err != nil {
		return nil, err
	}

	reply, usage, err := d.AI.GenerateChat(ctx, chatResponseSystemPrompt, p.Message)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	d.recordUsage(job.TenantID, job.ID, usage)

	if err := d.SMS.SendSMS(ctx, tenant.TwilioNumber, p.ContactPhone, reply); err != nil {
		return nil, fmt.Errorf("send reply: %w", err)
	}

	return json.Marshal(map[string]string{
		"contact_phone": p.ContactPhone,
		"reply":         reply,
	})
}

// handleProvisionPhone buys a Twilio number for the tenant. Idempotent: a
// tenant that already has a number keeps it, so a retry after a crash between
// purchase and persist never buys twice once the number is recorded.
func (d Deps) handleProvisionPhone(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var p models.ProvisionPhonePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode provision_phone payload: %w", err)
	}

	tenant, err := d.Store.GetTenant(job.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", job.TenantID, err)
	}
	if tenant == nil {
		return nil, fmt.Errorf("tenant %s not found", job.TenantID)
	}
	if tenant.TwilioNumber != "" {
		slog.Info("handleProvisionPhone: tenant already provisioned", "tenantID", job.TenantID, "number", tenant.TwilioNumber)
		return json.Marshal(map[string]string{"phone_number": tenant.TwilioNumber, "existing": "true"})
	}

	number, err := d.SMS.SearchAvailableNumber(ctx, p.AreaCode)
	if err != nil {
		return nil, fmt.Errorf("search number: %w", err)
	}
	if err := d.SMS.PurchaseNumber(ctx, number); err != nil {
		return nil, fmt.Errorf("purchase number: %w", err)
	}
	if err := d.Store.SetTenantPhoneNumber(job.TenantID, number); err != nil {
		return nil, fmt.Errorf("persist number: %w", err)
	}

	return json.Marshal(map[string]string{"phone_number": number})
}

// handleSendProposalNudge sends the follow-up SMS for a due nudge. The nudge
// row's status is the idempotency record: anything but pending means the
// reminder was already handled.
func (d Deps) handleSendProposalNudge(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var p models.SendProposalNudgePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode send_proposal_nudge payload: %w", err)
	}

	nudge, err := d.Store.GetNudge(p.NudgeID)
	if err != nil {
		return nil, fmt.Errorf("load nudge %s: %w", p.NudgeID, err)
	}
	if nudge == nil {
		return nil, fmt.Errorf("nudge %s not found", p.NudgeID)
	}
	if nudge.Status != models.NudgeStatusPending {
		slog.Info("handleSendProposalNudge: nudge already handled", "nudgeID", p.NudgeID, "status", nudge.Status)
		return json.Marshal(map[string]string{"nudge_id": p.NudgeID, "skipped": string(nudge.Status)})
	}

	proposal, err := d.Store.GetProposal(p.ProposalID)
	if err != nil {
		return nil, fmt.Errorf("load proposal %s: %w", p.ProposalID, err)
	}
	if proposal == nil || proposal.ContactPhone == "" {
		if cerr := d.Store.CancelNudge(p.NudgeID); cerr != nil {
			return nil, fmt.Errorf("cancel undeliverable nudge: %w", cerr)
		}
		return json.Marshal(map[string]string{"nudge_id": p.NudgeID, "skipped": "no_contact"})
	}
	if proposal.Status.Terminal() {
		if cerr := d.Store.CancelNudge(p.NudgeID); cerr != nil {
			return nil, fmt.Errorf("cancel settled nudge: %w", cerr)
		}
		return json.Marshal(map[string]string{"nudge_id": p.NudgeID, "skipped": "proposal_settled"})
	}

	tenant, err := d.Store.GetTenant(nudge.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", nudge.TenantID, err)
	}
	if tenant == nil || tenant.TwilioNumber == "" {
		if cerr := d.Store.CancelNudge(p.NudgeID); cerr != nil {
			return nil, fmt.Errorf("cancel nudge without sender: %w", cerr)
		}
		return json.Marshal(map[string]string{"nudge_id": p.NudgeID, "skipped": "no_sender_number"})
	}

	body := fmt.Sprintf("Hi! Just following up on the proposal from %s. Reply here with any questions.", tenant.Name)
	if err := d.SMS.SendSMS(ctx, tenant.TwilioNumber, proposal.ContactPhone, body); err != nil {
		return nil, fmt.Errorf("send nudge SMS: %w", err)
	}
	if err := d.Store.MarkNudgeSent(p.NudgeID); err != nil {
		return nil, fmt.Errorf("mark nudge sent: %w", err)
	}

	return json.Marshal(map[string]string{"nudge_id": p.NudgeID, "sent_to": proposal.ContactPhone})
}
