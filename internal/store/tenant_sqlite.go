package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
)

func (s *SQLiteStore) GetTenant(id string) (*models.Tenant, error) {
	var t models.Tenant
	var twilioNumber sql.NullString
	err := s.db.QueryRow(
		`SELECT id, name, twilio_number, spend_cap_cents, created_at FROM tenants WHERE id = ?`, id,
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

func (s *SQLiteStore) SetTenantPhoneNumber(id, number string) error {
	_, err := s.db.Exec(`UPDATE tenants SET twilio_number = ? WHERE id = ?`, number, id)
	if err != nil {
		return fmt.Errorf("set tenant phone number failed: %w", err)
	}
	slog.Debug("SQLiteStore.SetTenantPhoneNumber", "tenantID", id, "number", number)
	return nil
}

func (s *SQLiteStore) TenantForProject(projectID string) (string, error) {
	var tenantID string
	err := s.db.QueryRow(`SELECT tenant_id FROM projects WHERE id = ?`, projectID).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tenant for project failed: %w", err)
	}
	return tenantID, nil
}

func (s *SQLiteStore) FirstTenantForUser(userID string) (string, error) {
	var tenantID string
	err := s.db.QueryRow(
		`SELECT tenant_id FROM memberships WHERE user_id = ? ORDER BY created_at ASC LIMIT 1`,
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

func (s *SQLiteStore) GetProject(id string) (*models.Project, error) {
	var p models.Project
	var siteNotes sql.NullString
	err := s.db.QueryRow(
		`SELECT id, tenant_id, name, site_notes, created_at FROM projects WHERE id = ?`, id,
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
func (s *SQLiteStore) SaveTenant(t models.Tenant) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO tenants (id, name, twilio_number, spend_cap_cents, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 	name = excluded.name,
		 	twilio_number = excluded.twilio_number,
		 	spend_cap_cents = excluded.spend_cap_cents`,
		t.ID, t.Name, nilIfEmpty(t.TwilioNumber), t.SpendCapCents, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save tenant failed: %w", err)
	}
	return nil
}

// AddMembership records a user belonging to a tenant.
func (s *SQLiteStore) AddMembership(userID, tenantID string) error {
	_, err := s.db.Exec(
		`INSERT INTO memberships (user_id, tenant_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, tenant_id) DO NOTHING`,
		userID, tenantID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("add membership failed: %w", err)
	}
	return nil
}

// SaveProject inserts or updates a project record.
func (s *SQLiteStore) SaveProject(p models.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO projects (id, tenant_id, name, site_notes, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 	tenant_id = excluded.tenant_id,
		 	name = excluded.name,
		 	site_notes = excluded.site_notes`,
		p.ID, p.TenantID, p.Name, nilIfEmpty(p.SiteNotes), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save project failed: %w", err)
	}
	return nil
}

// SaveProposal inserts or updates a proposal record.
func (s *SQLiteStore) SaveProposal(p models.Proposal) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO proposals (id, tenant_id, project_id, owner_id, contact_phone, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 	status = excluded.status,
		 	contact_phone = excluded.contact_phone`,
		p.ID, p.TenantID, nilIfEmpty(p.ProjectID), nilIfEmpty(p.OwnerID), nilIfEmpty(p.ContactPhone), p.Status, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save proposal failed: %w", err)
	}
	return nil
}
