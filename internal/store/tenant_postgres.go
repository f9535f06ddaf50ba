package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
)

func (s *PostgresStore) GetTenant(id string) (*models.Tenant, error) {
	var t models.Tenant
	var twilioNumber sql.NullString
	err := s.db.QueryRow(
		`SELECT id, name, twilio_number, spend_cap_cents, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &twilioNumber, &t.SpendCapCents, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant failed: %w", err)
	}
	t.TwilioNumber = twilioNumber.String
	return &t, nil
}

func (s *PostgresStore) SetTenantPhoneNumber(id, number string) error {
	_, err := s.db.Exec(`UPDATE tenants SET twilio_number = $1 WHERE id = $2`, number, id)
	if err != nil {
		return fmt.Errorf("set tenant phone number failed: %w", err)
	}
	slog.Debug("PostgresStore.SetTenantPhoneNumber", "tenantID", id, "number", number)
	return nil
}

func (s *PostgresStore) TenantForProject(projectID string) (string, error) {
	var tenantID string
	err := s.db.QueryRow(`SELECT tenant_id FROM projects WHERE id = $1`, projectID).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tenant for project failed: %w", err)
	}
	return tenantID, nil
}

func (s *PostgresStore) FirstTenantForUser(userID string) (string, error) {
	var tenantID string
	err := s.db.QueryRow(
		`SELECT tenant_id FROM memberships WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`,
		userID,
	).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("first tenant for user failed: %w", err)
	}
	return tenantID, nil
}

func (s *PostgresStore) GetProject(id string) (*models.Project, error) {
	var p models.Project
	var siteNotes sql.NullString
	err := s.db.QueryRow(
		`SELECT id, tenant_id, name, site_notes, created_at FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.TenantID, &p.Name, &siteNotes, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project failed: %w", err)
	}
	p.SiteNotes = siteNotes.String
	return &p, nil
}

// Fixture helpers for records owned by the surrounding web application.

// SaveTenant inserts or updates a tenant record.
func (s *PostgresStore) SaveTenant(t models.Tenant) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO tenants (id, name, twilio_number, spend_cap_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		 	name = EXCLUDED.name,
		 	twilio_number = EXCLUDED.twilio_number,
		 	spend_cap_cents = EXCLUDED.spend_cap_cents`,
		t.ID, t.Name, nilIfEmpty(t.TwilioNumber), t.SpendCapCents, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save tenant failed: %w", err)
	}
	return nil
}

// AddMembership records a user belonging to a tenant.
func (s *PostgresStore) AddMembership(userID, tenantID string) error {
	_, err := s.db.Exec(
		`INSERT INTO memberships (user_id, tenant_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, tenant_id) DO NOTHING`,
		userID, tenantID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("add membership failed: %w", err)
	}
	return nil
}

// SaveProject inserts or updates a project record.
func (s *PostgresStore) SaveProject(p models.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO projects (id, tenant_id, name, site_notes, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		 	tenant_id = EXCLUDED.tenant_id,
		 	name = EXCLUDED.name,
		 	site_notes = EXCLUDED.site_notes`,
		p.ID, p.TenantID, p.Name, nilIfEmpty(p.SiteNotes), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save project failed: %w", err)
	}
	return nil
}

// SaveProposal inserts or updates a proposal record.
func (s *PostgresStore) SaveProposal(p models.Proposal) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO proposals (id, tenant_id, project_id, owner_id, contact_phone, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		 	status = EXCLUDED.status,
		 	contact_phone = EXCLUDED.contact_phone`,
		p.ID, p.TenantID, nilIfEmpty(p.ProjectID), nilIfEmpty(p.OwnerID), nilIfEmpty(p.ContactPhone), p.Status, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save proposal failed: %w", err)
	}
	return nil
}
