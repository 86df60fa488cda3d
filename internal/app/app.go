package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"dashkeep/internal/blob"
	"dashkeep/internal/config"
	"dashkeep/internal/core"
	"dashkeep/internal/dashboards"
	"dashkeep/internal/encryption"
	"dashkeep/internal/model"
	"dashkeep/internal/repository"
	"dashkeep/internal/secrets"
	"dashkeep/internal/table"
)

// Statuses recorded on the audit entry when an operation finishes.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// App is the application layer between the CLI and the core Service.
// It constructs all dependencies from config, exposes high-level operations,
// records mutating operations in the audit log, and manages the store
// lifecycle on Close.
type App struct {
	cfg       *config.Config
	store     table.Store
	audit     core.AuditLog
	service   *core.Service
	operation string
	entry     *model.AuditEntry
	status    string
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "BackupDashboard",
// "RestoreDashboard"). The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	store, err := table.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating metadata store: %w", err)
	}

	blobs, err := blob.NewStoreFromConfig(ctx, cfg.Blob)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	secretStore, err := secrets.NewStoreFromConfig(cfg.Secrets, enc)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating secret store: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	clock := core.RealClock{}
	idgen := core.UUIDGenerator{}

	snapshotRepo := repository.NewSnapshotRepository(store, clock, idgen)
	credentialRepo := repository.NewCredentialRepository(store)
	auditRepo := repository.NewAuditRepository(store, clock, idgen)
	apiFactory := dashboards.NewFactory(cfg.API)

	svc := core.NewService(snapshotRepo, credentialRepo, blobs, secretStore, apiFactory,
		&slogAdapter{l: logger}, clock, idgen)

	return &App{
		cfg:       cfg,
		store:     store,
		audit:     auditRepo,
		service:   svc,
		operation: operation,
		status:    StatusOK,
		logFile:   logFile,
	}, nil
}

// recordOperation appends an audit entry for the current operation.
// This should only be called for mutating commands, and only once.
func (a *App) recordOperation(ctx context.Context, orgID, parameters string) error {
	if a.entry != nil {
		return nil // already recorded
	}
	entry := &model.AuditEntry{
		OrgID:      orgID,
		Operation:  a.operation,
		Parameters: parameters,
	}
	if err := a.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	a.entry = entry
	return nil
}

// markFailed flags the audit entry so Close finishes it with a failed status.
func (a *App) markFailed() {
	a.status = StatusFailed
}

// Backup captures one dashboard into a new snapshot.
func (a *App) Backup(ctx context.Context, orgID, credentialID, dashboardGUID string) (*model.BackupResult, error) {
	if err := a.recordOperation(ctx, orgID, fmt.Sprintf("credential=%s dashboard=%s", credentialID, dashboardGUID)); err != nil {
		return nil, err
	}
	result, err := a.service.BackupDashboard(ctx, orgID, credentialID, dashboardGUID)
	if err != nil {
		a.markFailed()
		return nil, err
	}
	return result, nil
}

// BackupAll captures every dashboard the credential can reach. When accountID
// is non-empty only that account is processed.
func (a *App) BackupAll(ctx context.Context, orgID, credentialID, accountID string) ([]*model.BackupResult, error) {
	if err := a.recordOperation(ctx, orgID, fmt.Sprintf("credential=%s account=%s", credentialID, accountID)); err != nil {
		return nil, err
	}
	results, err := a.service.BackupAllDashboards(ctx, orgID, credentialID, accountID)
	if err != nil {
		a.markFailed()
		return nil, err
	}
	return results, nil
}

// Restore restores a snapshot as a brand-new dashboard.
func (a *App) Restore(ctx context.Context, orgID, snapshotID, credentialID, targetAccountID, newName string) (*model.RestoreResult, error) {
	if err := a.recordOperation(ctx, orgID, fmt.Sprintf("snapshot=%s credential=%s account=%s", snapshotID, credentialID, targetAccountID)); err != nil {
		return nil, err
	}
	result, err := a.service.RestoreDashboard(ctx, orgID, snapshotID, credentialID, targetAccountID, newName)
	if err != nil {
		a.markFailed()
		return nil, err
	}
	if !result.Success {
		a.markFailed()
	}
	return result, nil
}

// RestoreInPlace overwrites the snapshot's original dashboard with the
// captured state.
func (a *App) RestoreInPlace(ctx context.Context, orgID, snapshotID, credentialID string) (*model.RestoreResult, error) {
	if err := a.recordOperation(ctx, orgID, fmt.Sprintf("snapshot=%s credential=%s", snapshotID, credentialID)); err != nil {
		return nil, err
	}
	result, err := a.service.RestoreInPlace(ctx, orgID, snapshotID, credentialID)
	if err != nil {
		a.markFailed()
		return nil, err
	}
	if !result.Success {
		a.markFailed()
	}
	return result, nil
}

// Compare diffs a snapshot against the dashboard's current live state.
// Non-mutating: no audit entry is recorded.
func (a *App) Compare(ctx context.Context, orgID, snapshotID, credentialID string) (*model.CompareResult, error) {
	return a.service.CompareWithCurrent(ctx, orgID, snapshotID, credentialID)
}

// GetSnapshot returns snapshot metadata.
func (a *App) GetSnapshot(ctx context.Context, orgID, snapshotID string) (*model.Snapshot, error) {
	return a.service.GetSnapshot(ctx, orgID, snapshotID)
}

// GetBackupContent returns a snapshot's raw JSON payload.
func (a *App) GetBackupContent(ctx context.Context, orgID, snapshotID string) ([]byte, error) {
	return a.service.GetBackupContent(ctx, orgID, snapshotID)
}

// ListOrgBackups returns one page of the org's backup history, optionally
// filtered by a search term.
func (a *App) ListOrgBackups(ctx context.Context, orgID string, page, limit int, search string) (*model.SnapshotPage, error) {
	return a.service.ListOrgBackups(ctx, orgID, page, limit, search)
}

// ListDashboardBackups returns one page of a dashboard's backup history.
func (a *App) ListDashboardBackups(ctx context.Context, orgID, dashboardGUID string, page, limit int) (*model.SnapshotPage, error) {
	return a.service.ListDashboardBackups(ctx, orgID, dashboardGUID, page, limit)
}

// GetLatestBackup returns the most recent snapshot of a dashboard.
func (a *App) GetLatestBackup(ctx context.Context, orgID, dashboardGUID string) (*model.Snapshot, error) {
	return a.service.GetLatestBackup(ctx, orgID, dashboardGUID)
}

// GetStorageStats aggregates the org's stored snapshots.
func (a *App) GetStorageStats(ctx context.Context, orgID string) (*model.StorageStats, error) {
	return a.service.GetStorageStats(ctx, orgID)
}

// AddCredential validates and stores a new API key.
func (a *App) AddCredential(ctx context.Context, orgID, name, apiKey string) (*model.Credential, error) {
	if err := a.recordOperation(ctx, orgID, fmt.Sprintf("name=%s", name)); err != nil {
		return nil, err
	}
	cred, err := a.service.CreateCredential(ctx, orgID, name, apiKey)
	if err != nil {
		a.markFailed()
		return nil, err
	}
	return cred, nil
}

// ListCredentials returns all credentials for the org.
func (a *App) ListCredentials(ctx context.Context, orgID string) ([]*model.Credential, error) {
	return a.service.ListCredentials(ctx, orgID)
}

// RevalidateCredential re-checks a stored API key against the external
// platform and refreshes its status and account list.
func (a *App) RevalidateCredential(ctx context.Context, orgID, credentialID string) (*model.Credential, error) {
	if err := a.recordOperation(ctx, orgID, fmt.Sprintf("credential=%s", credentialID)); err != nil {
		return nil, err
	}
	cred, err := a.service.RevalidateCredential(ctx, orgID, credentialID)
	if err != nil {
		a.markFailed()
		return nil, err
	}
	return cred, nil
}

// RemoveCredential deletes a credential record and its stored secret.
func (a *App) RemoveCredential(ctx context.Context, orgID, credentialID string) error {
	if err := a.recordOperation(ctx, orgID, fmt.Sprintf("credential=%s", credentialID)); err != nil {
		return err
	}
	if err := a.service.DeleteCredential(ctx, orgID, credentialID); err != nil {
		a.markFailed()
		return err
	}
	return nil
}

// History returns the most recent audit entries for the org.
func (a *App) History(ctx context.Context, orgID string, limit int) ([]*model.AuditEntry, error) {
	return a.audit.List(ctx, orgID, limit)
}

// Close finalizes the audit entry (for mutating operations) and closes all
// resources.
func (a *App) Close() error {
	var firstErr error

	if a.entry != nil {
		if err := a.audit.Finish(context.Background(), a.entry, a.status); err != nil {
			firstErr = fmt.Errorf("finishing audit entry: %w", err)
		}
	}

	if err := a.store.Close(); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("closing metadata store: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
