package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dashkeep/internal/core"
	"dashkeep/internal/model"
	"dashkeep/internal/table"
)

// AuditRepository persists per-org records of mutating operations.
type AuditRepository struct {
	store table.Store
	clock core.Clock
	idgen core.IDGenerator
}

// NewAuditRepository creates a repository over the given store.
func NewAuditRepository(store table.Store, clock core.Clock, idgen core.IDGenerator) *AuditRepository {
	return &AuditRepository{store: store, clock: clock, idgen: idgen}
}

// auditAttrs is the JSON document stored in an AUDIT record.
type auditAttrs struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"orgId"`
	Operation  string     `json:"operation"`
	Parameters string     `json:"parameters"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func (r *AuditRepository) put(ctx context.Context, entry *model.AuditEntry) error {
	attrs, err := json.Marshal(auditAttrs(*entry))
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	rec := table.Record{
		PK:         orgPK(entry.OrgID),
		SK:         auditSK(timestampKey(entry.StartedAt), entry.ID),
		EntityType: table.EntityAudit,
		Attributes: attrs,
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return &core.StorageUnavailableError{Op: "write audit entry", Err: err}
	}
	return nil
}

// Append persists a new audit entry, assigning its ID and start time.
func (r *AuditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = r.idgen.New()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = r.clock.Now()
	}
	return r.put(ctx, entry)
}

// Finish stamps the entry with its final status and finish time. The sort
// key is derived from the unchanged start time, so this overwrites the
// record written by Append.
func (r *AuditRepository) Finish(ctx context.Context, entry *model.AuditEntry, status string) error {
	now := r.clock.Now()
	entry.Status = status
	entry.FinishedAt = &now
	return r.put(ctx, entry)
}

// List returns the most recent audit entries for the org, newest first.
func (r *AuditRepository) List(ctx context.Context, orgID string, limit int) ([]*model.AuditEntry, error) {
	q := table.Query{
		Partition:  orgPK(orgID),
		SortPrefix: auditPrefix,
		Descending: true,
	}

	var out []*model.AuditEntry
	for {
		page, err := r.store.Query(ctx, q)
		if err != nil {
			return nil, &core.StorageUnavailableError{Op: "list audit entries", Err: err}
		}
		for _, rec := range page.Records {
			var a auditAttrs
			if err := json.Unmarshal(rec.Attributes, &a); err != nil {
				return nil, fmt.Errorf("decoding audit record %s/%s: %w", rec.PK, rec.SK, err)
			}
			entry := model.AuditEntry(a)
			out = append(out, &entry)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
		if page.NextCursor == "" {
			return out, nil
		}
		q.Cursor = page.NextCursor
	}
}

// Compile-time check that AuditRepository implements the service contract.
var _ core.AuditLog = (*AuditRepository)(nil)
