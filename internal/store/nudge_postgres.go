package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/util"
)

const nudgeColumns = `id, tenant_id, proposal_id, status, scheduled_at, created_at, updated_at`

func (s *PostgresStore) CreateNudge(tenantID, proposalID string, scheduledAt time.Time) (string, error) {
	id := util.GenerateRandomID("ndg_", 32)
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO proposal_nudges (id, tenant_id, proposal_id, status, scheduled_at, created_at, updated_at)
		 VALUES ($1, $2, $3, 'pending', $4, $5, $6)`,
		id, tenantID, proposalID, scheduledAt, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create nudge failed: %w", err)
	}
	slog.Debug("PostgresStore.CreateNudge", "id", id, "proposalID", proposalID, "scheduledAt", scheduledAt)
	return id, nil
}

func (s *PostgresStore) ListDueNudges(now time.Time, limit int) ([]models.ProposalNudge, error) {
	rows, err := s.db.Query(
		`SELECT `+nudgeColumns+` FROM proposal_nudges
		 WHERE status = 'pending' AND scheduled_at <= $1
		 ORDER BY scheduled_at ASC LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due nudges failed: %w", err)
	}
	defer rows.Close()

	var nudges []models.ProposalNudge
	for rows.Next() {
		n, err := scanNudge(rows)
		if err != nil {
			return nil, err
		}
		nudges = append(nudges, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list due nudges iteration failed: %w", err)
	}
	return nudges, nil
}

func (s *PostgresStore) GetNudge(id string) (*models.ProposalNudge, error) {
	row := s.db.QueryRow(`SELECT `+nudgeColumns+` FROM proposal_nudges WHERE id = $1`, id)
	n, err := scanNudge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get nudge failed: %w", err)
	}
	return &n, nil
}

func (s *PostgresStore) MarkNudgeSent(id string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE proposal_nudges SET status = 'sent', updated_at = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("mark nudge sent failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) CancelNudge(id string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE proposal_nudges SET status = 'cancelled', updated_at = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("cancel nudge failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProposal(id string) (*models.Proposal, error) {
	var p models.Proposal
	var projectID, ownerID, contactPhone sql.NullString
	err := s.db.QueryRow(
		`SELECT id, tenant_id, project_id, owner_id, contact_phone, status, created_at FROM proposals WHERE id = $1`, id,
	).Scan(&p.ID, &p.TenantID, &projectID, &ownerID, &contactPhone, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal failed: %w", err)
	}
	p.ProjectID = projectID.String
	p.OwnerID = ownerID.String
	p.ContactPhone = contactPhone.String
	return &p, nil
}
