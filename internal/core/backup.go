package core

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"dashkeep/internal/model"
)

// BackupDashboard captures one dashboard into a new snapshot.
//
// Ordering matters: the payload is written to the blob store before the
// metadata record is created. If the blob write fails there must be no
// record pointing at missing content; a blob without a record is merely
// orphaned bytes.
func (s *Service) BackupDashboard(ctx context.Context, orgID, credentialID, dashboardGUID string) (*model.BackupResult, error) {
	if dashboardGUID == "" {
		return nil, &InvalidInputError{Reason: "dashboard guid is required"}
	}

	client, cred, err := s.resolveClient(ctx, orgID, credentialID)
	if err != nil {
		return nil, err
	}

	result, err := s.backupOne(ctx, client, orgID, dashboardGUID)
	if err != nil {
		return nil, err
	}

	s.updateCredentialBookkeeping(ctx, cred, 1)
	return result, nil
}

// BackupAllDashboards backs up every dashboard the credential can reach.
// When accountID is non-empty only that account is processed; otherwise
// every account the credential is authorized for is walked.
//
// Dashboards are processed sequentially: the external API has no
// documented concurrency budget, and sequential execution avoids rate-limit
// contention. Per-dashboard failures are logged and skipped; one failing
// dashboard never aborts the batch. The returned slice contains only the
// successful backups.
func (s *Service) BackupAllDashboards(ctx context.Context, orgID, credentialID, accountID string) ([]*model.BackupResult, error) {
	client, cred, err := s.resolveClient(ctx, orgID, credentialID)
	if err != nil {
		return nil, err
	}

	accounts := cred.Accounts
	if accountID != "" {
		accounts = []model.Account{{ID: accountID}}
	}

	var results []*model.BackupResult
	for _, account := range accounts {
		summaries, err := client.ListDashboards(ctx, account.ID)
		if err != nil {
			s.logger.Error("listing dashboards failed", "accountId", account.ID, "error", err.Error())
			continue
		}

		for _, summary := range summaries {
			result, err := s.backupOne(ctx, client, orgID, summary.GUID)
			if err != nil {
				s.logger.Error("dashboard backup failed",
					"dashboardGuid", summary.GUID, "dashboardName", summary.Name, "error", err.Error())
				continue
			}
			results = append(results, result)
		}
	}

	s.updateCredentialBookkeeping(ctx, cred, int64(len(results)))
	return results, nil
}

// backupOne fetches, serializes, stores, and records a single dashboard.
func (s *Service) backupOne(ctx context.Context, client DashboardAPI, orgID, dashboardGUID string) (*model.BackupResult, error) {
	detail, err := client.GetDashboard(ctx, dashboardGUID)
	if err != nil {
		return nil, fmt.Errorf("fetching dashboard: %w", err)
	}
	if detail == nil {
		return nil, &NotFoundError{Resource: "dashboard", ID: dashboardGUID}
	}

	// The checksum and size must describe the exact bytes written to the
	// blob store, so serialize once and reuse the buffer for both.
	payload, err := json.Marshal(detail.Document)
	if err != nil {
		return nil, fmt.Errorf("serializing dashboard: %w", err)
	}
	sum := sha256.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])
	size := int64(len(payload))

	now := s.clock.Now()
	key := buildContentKey(orgID, detail.AccountID, dashboardGUID, now)

	if err := s.blobs.Put(ctx, key, bytes.NewReader(payload), size, "application/json"); err != nil {
		return nil, &StorageUnavailableError{Op: "storing backup payload", Err: err}
	}

	snap, err := s.snapshots.Create(ctx, SnapshotInput{
		OrgID:              orgID,
		DashboardGUID:      dashboardGUID,
		DashboardName:      detail.Name,
		AccountID:          detail.AccountID,
		AccountName:        detail.AccountName,
		OwnerEmail:         detail.OwnerEmail,
		ContentLocation:    key,
		DashboardUpdatedAt: detail.UpdatedAt,
		SizeBytes:          size,
		Checksum:           checksum,
	})
	if err != nil {
		return nil, fmt.Errorf("recording snapshot: %w", err)
	}

	s.logger.Info("dashboard backed up",
		"snapshotId", snap.ID, "dashboardGuid", dashboardGUID, "sizeBytes", size)

	return &model.BackupResult{
		SnapshotID:      snap.ID,
		DashboardGUID:   snap.DashboardGUID,
		DashboardName:   snap.DashboardName,
		SizeBytes:       snap.SizeBytes,
		BackupTimestamp: snap.BackupTimestamp,
	}, nil
}

// updateCredentialBookkeeping records the outcome of the run that just
// finished: count is how many dashboards it captured, and both fields
// describe that run only. A single-dashboard backup is a run of one and
// replaces whatever an earlier bulk run recorded. Best effort: failures are
// logged, never propagated, since the backup itself already succeeded.
func (s *Service) updateCredentialBookkeeping(ctx context.Context, cred *model.Credential, count int64) {
	now := s.clock.Now()
	cred.DashboardCount = count
	cred.LastBackupAt = &now
	if err := s.credentials.Update(ctx, cred); err != nil {
		s.logger.Warn("credential bookkeeping update failed", "credentialId", cred.ID, "error", err.Error())
	}
}

// buildContentKey computes the deterministic blob key for a snapshot
// payload. The timestamp is flattened to a path-safe form and the dashboard
// GUID is percent-encoded, since external GUIDs may contain separators.
func buildContentKey(orgID, accountID, dashboardGUID string, ts time.Time) string {
	stamp := ts.UTC().Format("20060102T150405.000000000Z")
	// Format keeps the fractional dot; drop it for a cleaner path segment.
	stamp = strings.ReplaceAll(stamp, ".", "")
	return fmt.Sprintf("%s/%s/%s/%s.json", orgID, accountID, url.PathEscape(dashboardGUID), stamp)
}
