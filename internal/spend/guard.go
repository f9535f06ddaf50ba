package spend

import (
	"log/slog"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
)

// Ledger is the persistence surface the guard needs: the tenant's cap and the
// insert-only usage ledger it aggregates for the running total.
type Ledger interface {
	GetTenant(id string) (*models.Tenant, error)
	TenantSpendTotalCents(tenantID string) (int64, error)
	AddUsageEntry(e models.UsageEntry) error
}

// Guard gates billable operations on a per-tenant spending cap.
type Guard struct {
	ledger          Ledger
	defaultCapCents int64
}

// NewGuard creates a spend guard. defaultCapCents applies to tenants without
// an explicit cap; a cap of zero or below means unlimited.
func NewGuard(ledger Ledger, defaultCapCents int64) *Guard {
	return &Guard{ledger: ledger, defaultCapCents: defaultCapCents}
}

// CheckCap reports whether adding additionalCents keeps the tenant within its
// cap. Infrastructure errors fail open: blocking every tenant during a store
// outage costs more than a transient cap overrun, so the guard allows the
// call and logs loudly.
func (g *Guard) CheckCap(tenantID string, additionalCents int64) bool {
	capCents := g.defaultCapCents
	tenant, err := g.ledger.GetTenant(tenantID)
	if err != nil {
		slog.Error("Guard.CheckCap: tenant lookup failed, failing open", "tenantID", tenantID, "error", err)
		return true
	}
	if tenant != nil && tenant.SpendCapCents > 0 {
		capCents = tenant.SpendCapCents
	}
	if capCents <= 0 {
		return true
	}

	total, err := g.ledger.TenantSpendTotalCents(tenantID)
	if err != nil {
		slog.Error("Guard.CheckCap: spend total query failed, failing open", "tenantID", tenantID, "error", err)
		return true
	}

	within := total+additionalCents <= capCents
	if !within {
		slog.Warn("Guard.CheckCap: spending cap would be exceeded", "tenantID", tenantID, "totalCents", total, "additionalCents", additionalCents, "capCents", capCents)
	}
	return within
}

// RecordSpend writes one immutable usage ledger entry with the actual
// realized cost of a billable call. Called after the call completes; the
// actual cost may differ from the pre-call estimate.
func (g *Guard) RecordSpend(tenantID, jobID string, usage Usage) error {
	entry := models.UsageEntry{
		TenantID:         tenantID,
		JobID:            jobID,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Images:           usage.Images,
		CostCents:        usage.CostCents(),
		CreatedAt:        time.Now(),
	}
	if err := g.ledger.AddUsageEntry(entry); err != nil {
		return err
	}
	slog.Debug("Guard.RecordSpend", "tenantID", tenantID, "jobID", jobID, "model", usage.Model, "costCents", entry.CostCents)
	return nil
}

// Usage describes the consumption of one billable call.
type Usage struct {
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	Images           int64
}

// CostCents prices the usage with the per-model pricing table.
func (u Usage) CostCents() int64 {
	cost := int64(0)
	if u.PromptTokens > 0 || u.CompletionTokens > 0 {
		cost += ChatCostCents(u.Model, u.PromptTokens, u.CompletionTokens)
	}
	if u.Images > 0 {
		cost += ImageCostCents(u.Model, u.Images)
	}
	return cost
}
