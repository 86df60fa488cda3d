package model

import "time"

// Snapshot is one immutable, timestamped capture of a dashboard's full
// configuration. Snapshots are append-only: corrections produce a new
// snapshot, never an update.
type Snapshot struct {
	ID                 string    // UUID, primary handle for all reads
	OrgID              string    // Owning tenant; all access is scoped by this
	DashboardGUID      string    // External identifier of the source dashboard
	DashboardName      string    // Captured at backup time, not kept in sync
	AccountID          string    // Account the dashboard belonged to at capture
	AccountName        string    // Captured at backup time
	OwnerEmail         string    // Captured at backup time
	ContentLocation    string    // Object key in the blob store; the payload never lives here
	BackupTimestamp    time.Time // When the snapshot was created; history sort key
	DashboardUpdatedAt time.Time // Source dashboard's last-modified time at capture
	SizeBytes          int64     // Byte length of the serialized payload
	Checksum           string    // SHA-256 of the exact bytes at ContentLocation
}

// Account is one external account a credential can access.
type Account struct {
	ID   string
	Name string
}

// Credential status values.
const (
	CredentialActive  = "active"
	CredentialInvalid = "invalid"
)

// Credential is the metadata record for a stored third-party API key.
// The secret value itself lives only in the secret store, keyed by SecretID.
type Credential struct {
	ID             string
	OrgID          string
	Name           string
	SecretID       string // Key into the secret store; the raw key is never stored here
	Accounts       []Account
	Status         string // "active" or "invalid"
	DashboardCount int64  // Dashboards captured by the most recent backup run; a single-dashboard backup is a run of one
	LastBackupAt   *time.Time
	CreatedAt      time.Time
}

// BackupResult describes one successful dashboard backup.
type BackupResult struct {
	SnapshotID      string
	DashboardGUID   string
	DashboardName   string
	SizeBytes       int64
	BackupTimestamp time.Time
}

// RestoreResult is the business outcome of a restore attempt. A failed
// restore is a reportable outcome, not an error: Success is false and
// Message carries a human-readable explanation.
type RestoreResult struct {
	Success           bool
	NewDashboardGUID  string // Set when restoring as a new dashboard
	RestoredDashboard string // GUID of the dashboard that was overwritten in place
	Message           string
}

// CompareResult is a non-mutating diff between a snapshot and the
// dashboard's current live state. Both versions are included so a client
// can render the difference.
type CompareResult struct {
	HasChanges     bool
	ChangedFields  []string
	CurrentVersion DashboardDocument // nil when the dashboard no longer exists
	BackupVersion  DashboardDocument
}

// StorageStats summarizes an org's stored snapshots.
type StorageStats struct {
	TotalBackups   int
	TotalSizeBytes int64
	OldestBackup   *time.Time
	NewestBackup   *time.Time
}

// PageInfo describes one page of a paginated listing. Total and TotalPages
// are lower-bound estimates derived from how far the listing had to page to
// satisfy the request plus a one-record lookahead; an exact count requires a
// separate count operation.
type PageInfo struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	HasNext    bool
}

// SnapshotPage is one page of snapshot history.
type SnapshotPage struct {
	Data       []*Snapshot
	Pagination PageInfo
}

// AuditEntry records one mutating operation against an org.
type AuditEntry struct {
	ID         string
	OrgID      string
	Operation  string // e.g. "BackupDashboard", "RestoreDashboard"
	Parameters string
	Status     string // "ok", "failed", or "partial"
	StartedAt  time.Time
	FinishedAt *time.Time
}
