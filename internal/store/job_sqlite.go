package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/util"
)

// claimRetryLimit bounds the select-then-CAS loop when racing other pollers.
const claimRetryLimit = 5

func (s *SQLiteStore) EnqueueJob(p EnqueueJobParams) (string, error) {
	id := util.GenerateJobID()
	now := time.Now()

	if p.DedupeKey != "" {
		var existingID string
		err := s.db.QueryRow(
			`SELECT id FROM jobs WHERE dedupe_key = ? AND status NOT IN ('succeeded', 'failed')`,
			p.DedupeKey,
		).Scan(&existingID)
		if err == nil {
			slog.Debug("SQLiteStore.EnqueueJob: dedupe hit", "dedupeKey", p.DedupeKey, "existingID", existingID)
			return existingID, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("dedupe check failed: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO jobs (id, owner_id, tenant_id, type, status, payload, attempts, dedupe_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'queued', ?, 0, ?, ?, ?)`,
		id, p.OwnerID, nilIfEmpty(p.TenantID), p.Type, rawOrNil(p.Payload), nilIfEmpty(p.DedupeKey), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue job failed: %w", err)
	}
	slog.Debug("SQLiteStore.EnqueueJob", "id", id, "type", p.Type, "ownerID", p.OwnerID)
	return id, nil
}

// ClaimNextJob selects the oldest eligible job and locks it with a
// compare-and-swap UPDATE whose WHERE clause re-checks eligibility. A poller
// that loses the race affects zero rows and retries on the next candidate.
func (s *SQLiteStore) ClaimNextJob(workerID string, staleCutoff time.Time) (*models.Job, error) {
	for i := 0; i < claimRetryLimit; i++ {
		var id string
		err := s.db.QueryRow(
			`SELECT id FROM jobs
			 WHERE status = 'queued' OR (status = 'running' AND locked_at < ?)
			 ORDER BY created_at ASC, id ASC
			 LIMIT 1`,
			staleCutoff,
		).Scan(&id)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("claim candidate query failed: %w", err)
		}

		now := time.Now()
		result, err := s.db.Exec(
			`UPDATE jobs SET status = 'running', locked_by = ?, locked_at = ?, attempts = attempts + 1, updated_at = ?
			 WHERE id = ? AND (status = 'queued' OR (status = 'running' AND locked_at < ?))`,
			workerID, now, now, id, staleCutoff,
		)
		if err != nil {
			return nil, fmt.Errorf("claim update failed: %w", err)
		}
		n, _ := result.RowsAffected()
		if n == 0 {
			// Lost the race; another poller claimed this row first.
			continue
		}

		j, err := s.GetJob(id)
		if err != nil {
			return nil, err
		}
		if j != nil {
			slog.Debug("SQLiteStore.ClaimNextJob", "id", j.ID, "type", j.Type, "attempt", j.Attempts, "workerID", workerID)
		}
		return j, nil
	}
	return nil, nil
}

func (s *SQLiteStore) MarkJobSucceeded(id string, result json.RawMessage) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'succeeded', result = ?, locked_by = NULL, locked_at = NULL, updated_at = ? WHERE id = ?`,
		rawOrNil(result), now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job succeeded failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RequeueJob(id string, errMsg string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'queued', last_error = ?, locked_by = NULL, locked_at = NULL, updated_at = ? WHERE id = ?`,
		errMsg, now, id,
	)
	if err != nil {
		return fmt.Errorf("requeue job failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkJobFailed(id string, errMsg string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'failed', last_error = ?, locked_by = NULL, locked_at = NULL, updated_at = ? WHERE id = ?`,
		errMsg, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job failed failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetJobTenant(id, tenantID string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET tenant_id = ?, updated_at = ? WHERE id = ?`,
		tenantID, now, id,
	)
	if err != nil {
		return fmt.Errorf("set job tenant failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(id string) (*models.Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &j, nil
}
