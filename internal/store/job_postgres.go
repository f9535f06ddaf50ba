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

func (s *PostgresStore) EnqueueJob(p EnqueueJobParams) (string, error) {
	id := util.GenerateJobID()
	now := time.Now()

	if p.DedupeKey != "" {
		var existingID string
		err := s.db.QueryRow(
			`SELECT id FROM jobs WHERE dedupe_key = $1 AND status NOT IN ('succeeded', 'failed')`,
			p.DedupeKey,
		).Scan(&existingID)
		if err == nil {
			slog.Debug("PostgresStore.EnqueueJob: dedupe hit", "dedupeKey", p.DedupeKey, "existingID", existingID)
			return existingID, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("dedupe check failed: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO jobs (id, owner_id, tenant_id, type, status, payload, attempts, dedupe_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'queued', $5, 0, $6, $7, $8)`,
		id, p.OwnerID, nilIfEmpty(p.TenantID), p.Type, rawOrNil(p.Payload), nilIfEmpty(p.DedupeKey), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue job failed: %w", err)
	}
	slog.Debug("PostgresStore.EnqueueJob", "id", id, "type", p.Type, "ownerID", p.OwnerID)
	return id, nil
}

// ClaimNextJob selects and locks one eligible job in a single statement.
// FOR UPDATE SKIP LOCKED guarantees no two concurrent pollers see the same row.
func (s *PostgresStore) ClaimNextJob(workerID string, staleCutoff time.Time) (*models.Job, error) {
	now := time.Now()
	row := s.db.QueryRow(
		`UPDATE jobs SET status = 'running', locked_by = $1, locked_at = $2, attempts = attempts + 1, updated_at = $2
		 WHERE id = (
		   SELECT id FROM jobs
		   WHERE status = 'queued' OR (status = 'running' AND locked_at < $3)
		   ORDER BY created_at ASC, id ASC
		   LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		workerID, now, staleCutoff,
	)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job failed: %w", err)
	}
	slog.Debug("PostgresStore.ClaimNextJob", "id", j.ID, "type", j.Type, "attempt", j.Attempts, "workerID", workerID)
	return &j, nil
}

func (s *PostgresStore) MarkJobSucceeded(id string, result json.RawMessage) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'succeeded', result = $1, locked_by = NULL, locked_at = NULL, updated_at = $2 WHERE id = $3`,
		rawOrNil(result), now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job succeeded failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) RequeueJob(id string, errMsg string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'queued', last_error = $1, locked_by = NULL, locked_at = NULL, updated_at = $2 WHERE id = $3`,
		errMsg, now, id,
	)
	if err != nil {
		return fmt.Errorf("requeue job failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkJobFailed(id string, errMsg string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET status = 'failed', last_error = $1, locked_by = NULL, locked_at = NULL, updated_at = $2 WHERE id = $3`,
		errMsg, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark job failed failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetJobTenant(id, tenantID string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE jobs SET tenant_id = $1, updated_at = $2 WHERE id = $3`,
		tenantID, now, id,
	)
	if err != nil {
		return fmt.Errorf("set job tenant failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(id string) (*models.Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &j, nil
}
