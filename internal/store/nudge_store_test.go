package store

import (
	"testing"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
)

func TestCreateAndListDueNudges(t *testing.T) {
	s := newTestSQLiteStore(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	dueID, err := s.CreateNudge("tn_1", "prop_1", past)
	if err != nil {
		t.Fatalf("CreateNudge failed: %v", err)
	}
	if _, err := s.CreateNudge("tn_1", "prop_2", future); err != nil {
		t.Fatalf("CreateNudge failed: %v", err)
	}

	due, err := s.ListDueNudges(time.Now(), 10)
	if err != nil {
		t.Fatalf("ListDueNudges failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due nudge, got %d", len(due))
	}
	if due[0].ID != dueID {
		t.Errorf("expected due nudge %s, got %s", dueID, due[0].ID)
	}
	if due[0].Status != models.NudgeStatusPending {
		t.Errorf("expected pending, got %s", due[0].Status)
	}
}

func TestMarkNudgeSentExcludesFromDue(t *testing.T) {
	s := newTestSQLiteStore(t)
	id, err := s.CreateNudge("tn_1", "prop_1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CreateNudge failed: %v", err)
	}
	if err := s.MarkNudgeSent(id); err != nil {
		t.Fatalf("MarkNudgeSent failed: %v", err)
	}

	due, err := s.ListDueNudges(time.Now(), 10)
	if err != nil {
		t.Fatalf("ListDueNudges failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("sent nudge still listed as due: %+v", due)
	}

	n, err := s.GetNudge(id)
	if err != nil {
		t.Fatalf("GetNudge failed: %v", err)
	}
	if n.Status != models.NudgeStatusSent {
		t.Errorf("expected sent, got %s", n.Status)
	}
}

func TestCancelNudge(t *testing.T) {
	s := newTestSQLiteStore(t)
	id, err := s.CreateNudge("tn_1", "prop_1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CreateNudge failed: %v", err)
	}
	if err := s.CancelNudge(id); err != nil {
		t.Fatalf("CancelNudge failed: %v", err)
	}
	n, _ := s.GetNudge(id)
	if n.Status != models.NudgeStatusCancelled {
		t.Errorf("expected cancelled, got %s", n.Status)
	}
}

func TestGetNudgeNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	n, err := s.GetNudge("ndg_missing")
	if err != nil {
		t.Fatalf("GetNudge failed: %v", err)
	}
	if n != nil {
		t.Errorf("expected nil for missing nudge, got %+v", n)
	}
}

func TestGetProposal(t *testing.T) {
	s := newTestSQLiteStore(t)
	err := s.SaveProposal(models.Proposal{
		ID:           "prop_1",
		TenantID:     "tn_1",
		ProjectID:    "proj_1",
		OwnerID:      "user_1",
		ContactPhone: "+15551234567",
		Status:       models.ProposalStatusSent,
	})
	if err != nil {
		t.Fatalf("SaveProposal failed: %v", err)
	}

	p, err := s.GetProposal("prop_1")
	if err != nil {
		t.Fatalf("GetProposal failed: %v", err)
	}
	if p == nil || p.ContactPhone != "+15551234567" || p.Status != models.ProposalStatusSent {
		t.Errorf("unexpected proposal: %+v", p)
	}

	missing, err := s.GetProposal("prop_missing")
	if err != nil {
		t.Fatalf("GetProposal failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing proposal, got %+v", missing)
	}
}
