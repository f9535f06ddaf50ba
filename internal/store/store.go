// Package store provides the persistence layer for Shrubb's background job
// queue: jobs, proposal nudges, the usage ledger, and the tenant records used
// for billing-context resolution. Two backends are supported, PostgreSQL and
// SQLite, behind the same repository interfaces.
package store

import (
	"encoding/json"
	"time"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// EnqueueJobParams are the caller-supplied fields for a new job row.
type EnqueueJobParams struct {
	OwnerID  string
	TenantID string // optional; resolved lazily by the worker when empty
	Type     models.JobType
	Payload  json.RawMessage
	// DedupeKey, when non-empty, suppresses insertion while a non-terminal
	// job with the same key exists; the existing job's ID is returned.
	DedupeKey string
}

// JobStore defines the persistence operations for job rows. ClaimNextJob is
// the correctness-critical contract: no two concurrent pollers may claim the
// same row.
type JobStore interface {
	// EnqueueJob inserts a new queued job and returns its ID.
	EnqueueJob(p EnqueueJobParams) (string, error)

	// ClaimNextJob atomically selects the oldest eligible job (queued, or
	// running with locked_at older than staleCutoff), marks it running under
	// workerID's lock, increments its attempt count, and returns it.
	// Returns nil when no job is eligible.
	ClaimNextJob(workerID string, staleCutoff time.Time) (*models.Job, error)

	// MarkJobSucceeded stores the result and clears the lock. Terminal.
	MarkJobSucceeded(id string, result json.RawMessage) error

	// RequeueJob records the failure and returns the job to queued with the
	// lock cleared, making it immediately eligible for re-claim.
	RequeueJob(id string, errMsg string) error

	// MarkJobFailed records the failure and clears the lock. Terminal.
	MarkJobFailed(id string, errMsg string) error

	// SetJobTenant persists a lazily resolved tenant ID on the job row.
	SetJobTenant(id, tenantID string) error

	// GetJob retrieves a single job by ID, or nil when absent.
	GetJob(id string) (*models.Job, error)
}

// NudgeStore defines the persistence operations for proposal nudges.
type NudgeStore interface {
	// CreateNudge inserts a pending nudge and returns its ID.
	CreateNudge(tenantID, proposalID string, scheduledAt time.Time) (string, error)

	// ListDueNudges returns up to limit pending nudges with scheduled_at <= now.
	ListDueNudges(now time.Time, limit int) ([]models.ProposalNudge, error)

	// GetNudge retrieves a single nudge by ID, or nil when absent.
	GetNudge(id string) (*models.ProposalNudge, error)

	// MarkNudgeSent transitions a nudge to sent.
	MarkNudgeSent(id string) error

	// CancelNudge transitions a nudge to cancelled.
	CancelNudge(id string) error

	// GetProposal retrieves the proposal a nudge follows up on, or nil.
	GetProposal(id string) (*models.Proposal, error)
}

// SpendStore defines the persistence operations for the usage ledger. Entries
// are immutable; totals are aggregates, so concurrent writers never race on a
// counter.
type SpendStore interface {
	// AddUsageEntry inserts one immutable billable-operation record.
	AddUsageEntry(e models.UsageEntry) error

	// TenantSpendTotalCents returns the accumulated spend for a tenant.
	TenantSpendTotalCents(tenantID string) (int64, error)
}

// TenantStore defines the read/write operations on tenant-scoped records used
// by tenant resolution and the provisioning handler. The surrounding web
// application owns these tables; the worker touches only what it needs.
type TenantStore interface {
	GetTenant(id string) (*models.Tenant, error)
	SetTenantPhoneNumber(id, number string) error

	// TenantForProject returns the tenant owning the project, or "" when the
	// project does not exist.
	TenantForProject(projectID string) (string, error)

	// FirstTenantForUser returns the tenant of the user's oldest membership,
	// or "" when the user has none.
	FirstTenantForUser(userID string) (string, error)

	GetProject(id string) (*models.Project, error)
}

// Store aggregates every repository the worker consumes.
type Store interface {
	JobStore
	NudgeStore
	SpendStore
	TenantStore
	Close() error
}
