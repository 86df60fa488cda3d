package core

import (
	"context"
	"time"

	"dashkeep/internal/model"
)

// SnapshotRepository persists snapshot metadata records.
//
// All listings return snapshots in non-increasing BackupTimestamp order
// (most recent first); the relative order of identical timestamps is
// undefined. Store unavailability surfaces as a StorageUnavailableError;
// the repository never retries.
type SnapshotRepository interface {
	// Create persists a new snapshot record, generating its ID and
	// BackupTimestamp server-side.
	Create(ctx context.Context, in SnapshotInput) (*model.Snapshot, error)

	// FindByID returns the snapshot with the given ID, scoped to the org.
	// A snapshot belonging to another org is never returned, even when the
	// raw identifier is guessed. Returns nil, nil when not found.
	FindByID(ctx context.Context, orgID, snapshotID string) (*model.Snapshot, error)

	// ListByDashboard returns up to limit snapshots of one dashboard.
	ListByDashboard(ctx context.Context, orgID, dashboardGUID string, limit int) ([]*model.Snapshot, error)

	// ListByAccount returns up to limit snapshots captured from one account.
	ListByAccount(ctx context.Context, orgID, accountID string, limit int) ([]*model.Snapshot, error)

	// ListByOrg returns up to maxItems snapshots for the org, transparently
	// paging through the store. maxItems <= 0 means no bound.
	ListByOrg(ctx context.Context, orgID string, maxItems int) ([]*model.Snapshot, error)

	// ListByOrgPaginated materializes one page of the org's history by
	// replaying the store's forward cursor from the start. The returned
	// totals are lower-bound estimates, never exact counts.
	ListByOrgPaginated(ctx context.Context, orgID string, page, limit int) (*model.SnapshotPage, error)

	// CountByOrg returns the exact number of snapshots for the org by fully
	// draining the store. More expensive than the paginated estimate.
	CountByOrg(ctx context.Context, orgID string) (int, error)

	// LatestByDashboard returns the most recent snapshot of a dashboard,
	// or nil, nil when the dashboard has no history.
	LatestByDashboard(ctx context.Context, orgID, dashboardGUID string) (*model.Snapshot, error)

	// Search returns one page of the org's history filtered by a
	// case-insensitive substring match over dashboard name and GUID. The
	// scan is bounded to the most recent records (see SearchScanLimit);
	// this is a documented scale ceiling, not a bug.
	Search(ctx context.Context, orgID, query string, page, limit int) (*model.SnapshotPage, error)
}

// SnapshotInput carries everything the orchestrator knows about a snapshot
// at creation time. The repository generates the snapshot ID and backup
// timestamp itself.
type SnapshotInput struct {
	OrgID              string
	DashboardGUID      string
	DashboardName      string
	AccountID          string
	AccountName        string
	OwnerEmail         string
	ContentLocation    string
	DashboardUpdatedAt time.Time
	SizeBytes          int64
	Checksum           string
}

// CredentialRepository persists credential metadata records. The raw API
// key never passes through this interface.
type CredentialRepository interface {
	// Create persists a new credential record.
	Create(ctx context.Context, cred *model.Credential) error

	// FindByID returns the credential scoped to the org, or nil, nil.
	FindByID(ctx context.Context, orgID, credentialID string) (*model.Credential, error)

	// FindByCredentialID resolves a credential by its own identifier alone,
	// via the reverse-lookup index.
	FindByCredentialID(ctx context.Context, credentialID string) (*model.Credential, error)

	// ListByOrg returns all credentials for the org.
	ListByOrg(ctx context.Context, orgID string) ([]*model.Credential, error)

	// Update replaces the credential record.
	Update(ctx context.Context, cred *model.Credential) error

	// Delete removes the credential record.
	Delete(ctx context.Context, orgID, credentialID string) error
}

// AuditLog records mutating operations per org.
type AuditLog interface {
	// Append persists a new audit entry, generating its ID.
	Append(ctx context.Context, entry *model.AuditEntry) error

	// Finish sets the entry's final status and finish time.
	Finish(ctx context.Context, entry *model.AuditEntry, status string) error

	// List returns the most recent entries for the org, newest first.
	List(ctx context.Context, orgID string, limit int) ([]*model.AuditEntry, error)
}
