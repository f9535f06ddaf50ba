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

func (s *SQLiteStore) CreateNudge(tenantID, proposalID string, scheduledAt time.Time) (string, error) {
	id := util.GenerateRandomID("ndg_", 32)
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO proposal_nudges (id, tenant_id, proposal_id, status, scheduled_at, created_at, updated_at)
		 VALUES (?, ?, ?, 'pending', ?, ?, ?)`,
		id, tenantID, proposalID, scheduledAt, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create nudge failed: %w", err)
	}
	slog.Debug("SQLiteStore.CreateNudge", "id", id, "proposalID", proposalID, "scheduledAt", scheduledAt)
	return id, nil
}

func (s *SQLiteStore) ListDueNudges(now time.Time, limit int) ([]models.ProposalNudge, error) {
	rows, err := s.db.Query(
		`SELECT `+nudgeColumns+` FROM proposal_nudges
		 WHERE status = 'pending' AND scheduled_at <= ?
		 ORDER BY scheduled_at ASC LIMIT ?`,
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

func (s *SQLiteStore) GetNudge(id string) (*models.ProposalNudge, error) {
	row := s.db.QueryRow(`SELECT `+nudgeColumns+` FROM proposal_nudges WHERE id = ?`, id)
	n, err := scanNudge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get nudge failed: %w", err)
	}
	return &n, nil
}

func (s *SQLiteStore) MarkNudgeSent(id string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE proposal_nudges SET status = 'sent', updated_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("mark nudge sent failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CancelNudge(id string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE proposal_nudges SET status = 'cancelled', updated_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("cancel nudge failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProposal(id string) (*models.Proposal, error) {
	var p models.Proposal
	var projectID, ownerID, contactPhone sql.NullString
	err := s.db.QueryRow(
		`SELECT id, tenant_id, project_id, owner_id, contact_phone, status, created_at FROM proposals WHERE id = ?`, id,
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
