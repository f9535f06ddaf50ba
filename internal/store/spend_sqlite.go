package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/util"
)

func (s *SQLiteStore) AddUsageEntry(e models.UsageEntry) error {
	if e.ID == "" {
		e.ID = util.GenerateUsageEntryID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO usage_entries (id, tenant_id, job_id, model, prompt_tokens, completion_tokens, images, cost_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, nilIfEmpty(e.JobID), e.Model, e.PromptTokens, e.CompletionTokens, e.Images, e.CostCents, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add usage entry failed: %w", err)
	}
	slog.Debug("SQLiteStore.AddUsageEntry", "id", e.ID, "tenantID", e.TenantID, "costCents", e.CostCents)
	return nil
}

func (s *SQLiteStore) TenantSpendTotalCents(tenantID string) (int64, error) {
	var total int64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(cost_cents), 0) FROM usage_entries WHERE tenant_id = ?`,
		tenantID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("tenant spend total failed: %w", err)
	}
	return total, nil
}
