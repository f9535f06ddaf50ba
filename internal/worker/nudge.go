package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/store"
)

const nudgeScanBatchSize = 50

// NudgeScheduler promotes due proposal nudges into send_proposal_nudge jobs.
// It rides the worker's poll loop but runs on its own, slower cadence.
type NudgeScheduler struct {
	store    store.Store
	interval time.Duration
	lastScan time.Time
}

// NewNudgeScheduler builds a scheduler that scans at most once per interval.
func NewNudgeScheduler(st store.Store, interval time.Duration) *NudgeScheduler {
	return &NudgeScheduler{store: st, interval: interval}
}

// MaybeScan runs a scan if the interval has elapsed since the previous one.
// Called from the worker's tick, so it never needs its own goroutine.
func (s *NudgeScheduler) MaybeScan(ctx context.Context, now time.Time) {
	if now.Sub(s.lastScan) < s.interval {
		return
	}
	s.lastScan = now
	s.Scan(ctx, now)
}

// Scan lists due pending nudges and either cancels them (no deliverable
// route) or enqueues jobs for them. The dedupe key keeps a nudge from
// spawning a second job while one is still queued or running.
func (s *NudgeScheduler) Scan(ctx context.Context, now time.Time) {
	nudges, err := s.store.ListDueNudges(now, nudgeScanBatchSize)
	if err != nil {
		slog.Error("NudgeScheduler.Scan: failed to list due nudges", "error", err)
		return
	}
	for _, nudge := range nudges {
		if err := s.promote(nudge); err != nil {
			slog.Error("NudgeScheduler.Scan: failed to promote nudge", "nudgeID", nudge.ID, "error", err)
		}
	}
}

// promote turns one due nudge into a job, or cancels it when it can never be
// delivered.
func (s *NudgeScheduler) promote(nudge models.ProposalNudge) error {
	tenant, err := s.store.GetTenant(nudge.TenantID)
	if err != nil {
		return err
	}
	if tenant == nil || tenant.TwilioNumber == "" {
		slog.Info("NudgeScheduler.promote: cancelling nudge, tenant has no sender number", "nudgeID", nudge.ID, "tenantID", nudge.TenantID)
		return s.store.CancelNudge(nudge.ID)
	}

	proposal, err := s.store.GetProposal(nudge.ProposalID)
	if err != nil {
		return err
	}
	if proposal == nil || proposal.ContactPhone == "" {
		slog.Info("NudgeScheduler.promote: cancelling nudge, proposal has no contact", "nudgeID", nudge.ID, "proposalID", nudge.ProposalID)
		return s.store.CancelNudge(nudge.ID)
	}
	if proposal.Status.Terminal() {
		slog.Info("NudgeScheduler.promote: cancelling nudge, proposal already settled", "nudgeID", nudge.ID, "proposalStatus", proposal.Status)
		return s.store.CancelNudge(nudge.ID)
	}

	payload, err := json.Marshal(models.SendProposalNudgePayload{
		NudgeID:    nudge.ID,
		ProposalID: nudge.ProposalID,
	})
	if err != nil {
		return err
	}
	jobID, err := s.store.EnqueueJob(store.EnqueueJobParams{
		OwnerID:   proposal.OwnerID,
		TenantID:  nudge.TenantID,
		Type:      models.JobTypeSendProposalNudge,
		Payload:   payload,
		DedupeKey: "nudge:" + nudge.ID,
	})
	if err != nil {
		return err
	}
	slog.Debug("NudgeScheduler.promote: nudge job enqueued", "nudgeID", nudge.ID, "jobID", jobID)
	return nil
}
