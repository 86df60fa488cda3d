package core

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"dashkeep/internal/model"
)

// Service is the orchestration layer that coordinates the snapshot
// repository, blob store, secret store, and external dashboard API to
// perform backup and restore operations.
type Service struct {
	snapshots   SnapshotRepository
	credentials CredentialRepository
	blobs       BlobStore
	secrets     SecretStore
	api         APIClientFactory
	logger      Logger
	clock       Clock
	idgen       IDGenerator
}

// NewService creates a Service with the provided dependencies.
func NewService(snapshots SnapshotRepository, credentials CredentialRepository, blobs BlobStore, secrets SecretStore, api APIClientFactory, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		snapshots:   snapshots,
		credentials: credentials,
		blobs:       blobs,
		secrets:     secrets,
		api:         api,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
	}
}

// resolveClient loads the credential, checks it is usable, reads its secret,
// and returns an API client bound to the raw key.
func (s *Service) resolveClient(ctx context.Context, orgID, credentialID string) (DashboardAPI, *model.Credential, error) {
	cred, err := s.credentials.FindByID(ctx, orgID, credentialID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading credential: %w", err)
	}
	if cred == nil {
		return nil, nil, &NotFoundError{Resource: "credential", ID: credentialID}
	}
	if cred.Status != model.CredentialActive {
		return nil, nil, &InvalidStateError{Reason: fmt.Sprintf("credential %s is %s", credentialID, cred.Status)}
	}

	apiKey, err := s.secrets.Get(ctx, cred.SecretID)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			return nil, nil, &NotFoundError{Resource: "credential secret", ID: cred.SecretID}
		}
		return nil, nil, fmt.Errorf("reading credential secret: %w", err)
	}

	return s.api.ClientForKey(apiKey), cred, nil
}

// GetSnapshot returns snapshot metadata scoped to the org.
func (s *Service) GetSnapshot(ctx context.Context, orgID, snapshotID string) (*model.Snapshot, error) {
	if snapshotID == "" {
		return nil, &InvalidInputError{Reason: "snapshot id is required"}
	}
	snap, err := s.snapshots.FindByID(ctx, orgID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("finding snapshot: %w", err)
	}
	if snap == nil {
		return nil, &NotFoundError{Resource: "snapshot", ID: snapshotID}
	}
	return snap, nil
}

// GetBackupContent returns the raw JSON payload of a snapshot. The fetched
// bytes are re-hashed against the recorded checksum; a mismatch is logged
// but the content is still returned.
func (s *Service) GetBackupContent(ctx context.Context, orgID, snapshotID string) ([]byte, error) {
	snap, err := s.GetSnapshot(ctx, orgID, snapshotID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.blobs.Get(ctx, snap.ContentLocation, &buf); err != nil {
		if errors.Is(err, ErrContentNotFound) {
			// The object was deleted out-of-band; the metadata record alone
			// is not a backup.
			return nil, &NotFoundError{Resource: "backup content", ID: snapshotID}
		}
		return nil, &StorageUnavailableError{Op: "get backup content", Err: err}
	}

	payload := buf.Bytes()
	sum := sha256.Sum256(payload)
	if got := hex.EncodeToString(sum[:]); got != snap.Checksum {
		s.logger.Warn("backup content checksum mismatch",
			"snapshotId", snap.ID, "recorded", snap.Checksum, "actual", got)
	}
	return payload, nil
}

// ListDashboardBackups returns one page of a dashboard's history, most
// recent first. Totals follow the same estimate contract as org listings.
func (s *Service) ListDashboardBackups(ctx context.Context, orgID, dashboardGUID string, page, limit int) (*model.SnapshotPage, error) {
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return nil, err
	}
	if dashboardGUID == "" {
		return nil, &InvalidInputError{Reason: "dashboard guid is required"}
	}

	// Fetch one record past the requested page to decide hasNext.
	want := page*limit + 1
	snaps, err := s.snapshots.ListByDashboard(ctx, orgID, dashboardGUID, want)
	if err != nil {
		return nil, fmt.Errorf("listing dashboard history: %w", err)
	}
	return slicePage(snaps, page, limit), nil
}

// ListOrgBackups returns one page of the org's history. When search is
// non-empty, a bounded scan-and-filter over the most recent records is used
// instead of plain pagination.
func (s *Service) ListOrgBackups(ctx context.Context, orgID string, page, limit int, search string) (*model.SnapshotPage, error) {
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return nil, err
	}
	if search != "" {
		return s.snapshots.Search(ctx, orgID, search, page, limit)
	}
	return s.snapshots.ListByOrgPaginated(ctx, orgID, page, limit)
}

// GetLatestBackup returns the most recent snapshot of a dashboard.
func (s *Service) GetLatestBackup(ctx context.Context, orgID, dashboardGUID string) (*model.Snapshot, error) {
	snap, err := s.snapshots.LatestByDashboard(ctx, orgID, dashboardGUID)
	if err != nil {
		return nil, fmt.Errorf("finding latest backup: %w", err)
	}
	if snap == nil {
		return nil, &NotFoundError{Resource: "backup", ID: dashboardGUID}
	}
	return snap, nil
}

// GetStorageStats aggregates the org's stored snapshots by draining the
// full listing. Intended for reporting, not hot paths.
func (s *Service) GetStorageStats(ctx context.Context, orgID string) (*model.StorageStats, error) {
	snaps, err := s.snapshots.ListByOrg(ctx, orgID, 0)
	if err != nil {
		return nil, fmt.Errorf("listing org snapshots: %w", err)
	}

	stats := &model.StorageStats{TotalBackups: len(snaps)}
	for _, snap := range snaps {
		stats.TotalSizeBytes += snap.SizeBytes
		ts := snap.BackupTimestamp
		if stats.OldestBackup == nil || ts.Before(*stats.OldestBackup) {
			t := ts
			stats.OldestBackup = &t
		}
		if stats.NewestBackup == nil || ts.After(*stats.NewestBackup) {
			t := ts
			stats.NewestBackup = &t
		}
	}
	return stats, nil
}

// normalizePage validates paging inputs and applies defaults.
func normalizePage(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = 20
	}
	if page < 1 {
		return 0, 0, &InvalidInputError{Reason: "page must be >= 1"}
	}
	if limit < 1 {
		return 0, 0, &InvalidInputError{Reason: "limit must be >= 1"}
	}
	return page, limit, nil
}

// slicePage cuts the requested page out of a most-recent-first listing that
// was fetched with a one-record lookahead, and derives the estimate totals.
func slicePage(snaps []*model.Snapshot, page, limit int) *model.SnapshotPage {
	skip := (page - 1) * limit
	hasNext := len(snaps) > page*limit

	var data []*model.Snapshot
	if skip < len(snaps) {
		end := skip + limit
		if end > len(snaps) {
			end = len(snaps)
		}
		data = snaps[skip:end]
	}

	// Total is the number of records observed, including the lookahead
	// record when present. A lower-bound estimate, not an exact count.
	total := len(snaps)
	totalPages := (total + limit - 1) / limit

	return &model.SnapshotPage{
		Data: data,
		Pagination: model.PageInfo{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    hasNext,
		},
	}
}
