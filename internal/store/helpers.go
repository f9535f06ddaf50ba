package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// jobColumns is the column list shared by every job SELECT/RETURNING clause.
const jobColumns = `id, owner_id, tenant_id, type, status, payload, result, last_error, attempts, locked_by, locked_at, dedupe_key, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanJob scans a Job from a row using the jobColumns order.
func scanJob(row rowScanner) (models.Job, error) {
	var j models.Job
	var tenantID, payload, result, lastError, lockedBy, dedupeKey sql.NullString
	var lockedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.OwnerID, &tenantID, &j.Type, &j.Status, &payload, &result,
		&lastError, &j.Attempts, &lockedBy, &lockedAt, &dedupeKey, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return j, err
	}
	j.TenantID = tenantID.String
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	j.LastError = lastError.String
	j.LockedBy = lockedBy.String
	j.DedupeKey = dedupeKey.String
	if lockedAt.Valid {
		j.LockedAt = &lockedAt.Time
	}
	return j, nil
}

// scanNudge scans a ProposalNudge from a row.
func scanNudge(row rowScanner) (models.ProposalNudge, error) {
	var n models.ProposalNudge
	err := row.Scan(&n.ID, &n.TenantID, &n.ProposalID, &n.Status, &n.ScheduledAt, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return n, fmt.Errorf("scan nudge failed: %w", err)
	}
	return n, nil
}

// rawOrNil converts a JSON payload to a nullable column value.
func rawOrNil(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
