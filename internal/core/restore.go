package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"dashkeep/internal/model"
)

// RestoreDashboard replays a snapshot into the external API as a brand-new
// dashboard. newName renames the restored copy; targetAccountID retargets
// it to a different account than the one captured. Both are optional.
//
// Failures of the external create call are a business outcome, not a system
// fault: they return a RestoreResult with Success=false and a message the
// end user can act on. Violations of this system's own contracts (snapshot
// missing, credential unusable) are still raised as typed errors.
func (s *Service) RestoreDashboard(ctx context.Context, orgID, snapshotID, credentialID, targetAccountID, newName string) (*model.RestoreResult, error) {
	snap, doc, err := s.loadSnapshotDocument(ctx, orgID, snapshotID)
	if err != nil {
		return nil, err
	}

	client, _, err := s.resolveClient(ctx, orgID, credentialID)
	if err != nil {
		return nil, err
	}

	// A brand-new entity cannot reuse identity fields from the source.
	doc = stripIdentityFields(doc)
	if newName != "" {
		doc["name"] = newName
	}

	accountID := snap.AccountID
	if targetAccountID != "" {
		accountID = targetAccountID
	}

	newGUID, err := client.CreateDashboard(ctx, accountID, doc)
	if err != nil {
		s.logger.Warn("restore failed", "snapshotId", snapshotID, "error", err.Error())
		return &model.RestoreResult{
			Success: false,
			Message: fmt.Sprintf("restore failed: %v", err),
		}, nil
	}

	s.logger.Info("dashboard restored as new",
		"snapshotId", snapshotID, "newDashboardGuid", newGUID, "accountId", accountID)

	return &model.RestoreResult{
		Success:          true,
		NewDashboardGUID: newGUID,
		Message:          "dashboard restored as new copy",
	}, nil
}

// RestoreInPlace overwrites the original source dashboard with a snapshot's
// content. The target is always the dashboard GUID captured in the snapshot
// metadata, never a caller-supplied override: in-place restore can only
// ever overwrite the dashboard it was captured from.
func (s *Service) RestoreInPlace(ctx context.Context, orgID, snapshotID, credentialID string) (*model.RestoreResult, error) {
	snap, doc, err := s.loadSnapshotDocument(ctx, orgID, snapshotID)
	if err != nil {
		return nil, err
	}

	client, _, err := s.resolveClient(ctx, orgID, credentialID)
	if err != nil {
		return nil, err
	}

	if err := client.UpdateDashboard(ctx, snap.DashboardGUID, doc); err != nil {
		s.logger.Warn("in-place restore failed",
			"snapshotId", snapshotID, "dashboardGuid", snap.DashboardGUID, "error", err.Error())
		return &model.RestoreResult{
			Success: false,
			Message: fmt.Sprintf("in-place restore failed: %v", err),
		}, nil
	}

	s.logger.Info("dashboard restored in place",
		"snapshotId", snapshotID, "dashboardGuid", snap.DashboardGUID)

	return &model.RestoreResult{
		Success:           true,
		RestoredDashboard: snap.DashboardGUID,
		Message:           "dashboard restored in place",
	}, nil
}

// Fields compared by CompareWithCurrent, in report order.
var comparedFields = []string{"name", "description", "pages", "variables"}

// CompareWithCurrent diffs a snapshot against the dashboard's current live
// state. This is a shallow structural diff over the top-level fields that
// matter for a restore decision, not a patch or merge.
func (s *Service) CompareWithCurrent(ctx context.Context, orgID, snapshotID, credentialID string) (*model.CompareResult, error) {
	snap, doc, err := s.loadSnapshotDocument(ctx, orgID, snapshotID)
	if err != nil {
		return nil, err
	}

	client, _, err := s.resolveClient(ctx, orgID, credentialID)
	if err != nil {
		return nil, err
	}

	current, err := client.GetDashboard(ctx, snap.DashboardGUID)
	if err != nil {
		return nil, fmt.Errorf("fetching current dashboard: %w", err)
	}
	if current == nil {
		// The dashboard is gone; everything a restore would do is a change.
		return &model.CompareResult{
			HasChanges:    true,
			ChangedFields: []string{"existence (dashboard no longer exists)"},
			BackupVersion: doc,
		}, nil
	}

	var changed []string
	for _, field := range comparedFields {
		if !fieldsEqual(doc[field], current.Document[field]) {
			changed = append(changed, field)
		}
	}

	return &model.CompareResult{
		HasChanges:     len(changed) > 0,
		ChangedFields:  changed,
		CurrentVersion: current.Document,
		BackupVersion:  doc,
	}, nil
}

// loadSnapshotDocument reads a snapshot's metadata and payload and decodes
// the dashboard document.
func (s *Service) loadSnapshotDocument(ctx context.Context, orgID, snapshotID string) (*model.Snapshot, model.DashboardDocument, error) {
	snap, err := s.GetSnapshot(ctx, orgID, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	payload, err := s.GetBackupContent(ctx, orgID, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	var doc model.DashboardDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, nil, fmt.Errorf("decoding snapshot payload: %w", err)
	}
	return snap, doc, nil
}

// stripIdentityFields removes every field the external API treats as
// identity, so the document can be submitted as a new entity. The list is
// exhaustive: dashboard-level guid, accountId, createdAt, updatedAt;
// page-level guid; widget-level id. Leaving any of them in risks the create
// call being rejected for identity-field conflicts.
func stripIdentityFields(doc model.DashboardDocument) model.DashboardDocument {
	out := doc.Clone()
	delete(out, "guid")
	delete(out, "accountId")
	delete(out, "createdAt")
	delete(out, "updatedAt")

	pages, _ := out["pages"].([]any)
	for _, p := range pages {
		page, ok := p.(map[string]any)
		if !ok {
			continue
		}
		delete(page, "guid")

		widgets, _ := page["widgets"].([]any)
		for _, w := range widgets {
			if widget, ok := w.(map[string]any); ok {
				delete(widget, "id")
			}
		}
	}
	return out
}

// fieldsEqual compares two JSON values by canonical serialization.
// encoding/json sorts map keys, so equal structures serialize identically.
func fieldsEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}
