package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dashkeep/internal/core"
	"dashkeep/internal/model"
	"dashkeep/internal/table"
)

// SearchScanLimit bounds how many recent records a substring search will
// fetch and filter in memory. Records older than the cap are invisible to
// search; this is a documented scale ceiling of the design.
const SearchScanLimit = 1000

// SnapshotRepository persists snapshot metadata as BACKUP records in the
// wide-column table store.
type SnapshotRepository struct {
	store table.Store
	clock core.Clock
	idgen core.IDGenerator
}

// NewSnapshotRepository creates a repository over the given store.
func NewSnapshotRepository(store table.Store, clock core.Clock, idgen core.IDGenerator) *SnapshotRepository {
	return &SnapshotRepository{store: store, clock: clock, idgen: idgen}
}

// snapshotAttrs is the JSON document stored in a BACKUP record.
type snapshotAttrs struct {
	ID                 string    `json:"id"`
	OrgID              string    `json:"orgId"`
	DashboardGUID      string    `json:"dashboardGuid"`
	DashboardName      string    `json:"dashboardName"`
	AccountID          string    `json:"accountId"`
	AccountName        string    `json:"accountName"`
	OwnerEmail         string    `json:"ownerEmail"`
	ContentLocation    string    `json:"contentLocation"`
	BackupTimestamp    time.Time `json:"backupTimestamp"`
	DashboardUpdatedAt time.Time `json:"dashboardUpdatedAt"`
	SizeBytes          int64     `json:"sizeBytes"`
	Checksum           string    `json:"checksum"`
}

func snapshotFromAttrs(a snapshotAttrs) *model.Snapshot {
	return &model.Snapshot{
		ID:                 a.ID,
		OrgID:              a.OrgID,
		DashboardGUID:      a.DashboardGUID,
		DashboardName:      a.DashboardName,
		AccountID:          a.AccountID,
		AccountName:        a.AccountName,
		OwnerEmail:         a.OwnerEmail,
		ContentLocation:    a.ContentLocation,
		BackupTimestamp:    a.BackupTimestamp,
		DashboardUpdatedAt: a.DashboardUpdatedAt,
		SizeBytes:          a.SizeBytes,
		Checksum:           a.Checksum,
	}
}

func decodeSnapshot(rec table.Record) (*model.Snapshot, error) {
	var a snapshotAttrs
	if err := json.Unmarshal(rec.Attributes, &a); err != nil {
		return nil, fmt.Errorf("decoding snapshot record %s/%s: %w", rec.PK, rec.SK, err)
	}
	return snapshotFromAttrs(a), nil
}

// Create persists a new snapshot record. The snapshot ID and backup
// timestamp are generated here; the record is immutable afterwards.
func (r *SnapshotRepository) Create(ctx context.Context, in core.SnapshotInput) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		ID:                 r.idgen.New(),
		OrgID:              in.OrgID,
		DashboardGUID:      in.DashboardGUID,
		DashboardName:      in.DashboardName,
		AccountID:          in.AccountID,
		AccountName:        in.AccountName,
		OwnerEmail:         in.OwnerEmail,
		ContentLocation:    in.ContentLocation,
		BackupTimestamp:    r.clock.Now(),
		DashboardUpdatedAt: in.DashboardUpdatedAt,
		SizeBytes:          in.SizeBytes,
		Checksum:           in.Checksum,
	}

	attrs, err := json.Marshal(snapshotAttrs(*snap))
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	tsKey := timestampKey(snap.BackupTimestamp)
	rec := table.Record{
		PK:         orgPK(snap.OrgID),
		SK:         snapshotSK(snap.DashboardGUID, tsKey),
		EntityType: table.EntityBackup,
		GSI1PK:     accountPK(snap.OrgID, snap.AccountID),
		GSI1SK:     tsKey,
		GSI2PK:     snapshotIDPK(snap.ID),
		GSI3PK:     orgTimePK(snap.OrgID),
		GSI3SK:     tsKey,
		Attributes: attrs,
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return nil, &core.StorageUnavailableError{Op: "create snapshot", Err: err}
	}
	return snap, nil
}

// FindByID resolves a snapshot through the reverse-lookup index, then
// enforces org scoping: a hit belonging to another org is reported as not
// found, never returned.
func (r *SnapshotRepository) FindByID(ctx context.Context, orgID, snapshotID string) (*model.Snapshot, error) {
	page, err := r.store.Query(ctx, table.Query{
		Index:     table.IndexGSI2,
		Partition: snapshotIDPK(snapshotID),
		Limit:     1,
	})
	if err != nil {
		return nil, &core.StorageUnavailableError{Op: "find snapshot", Err: err}
	}
	if len(page.Records) == 0 {
		return nil, nil
	}

	snap, err := decodeSnapshot(page.Records[0])
	if err != nil {
		return nil, err
	}
	if snap.OrgID != orgID {
		return nil, nil
	}
	return snap, nil
}

// ListByDashboard returns up to limit snapshots of one dashboard, most
// recent first, via the base table's sort-key prefix.
func (r *SnapshotRepository) ListByDashboard(ctx context.Context, orgID, dashboardGUID string, limit int) ([]*model.Snapshot, error) {
	return r.drain(ctx, table.Query{
		Partition:  orgPK(orgID),
		SortPrefix: snapshotPrefix(dashboardGUID),
		Descending: true,
	}, limit)
}

// ListByAccount returns up to limit snapshots captured from one account,
// most recent first, via the account index.
func (r *SnapshotRepository) ListByAccount(ctx context.Context, orgID, accountID string, limit int) ([]*model.Snapshot, error) {
	return r.drain(ctx, table.Query{
		Index:      table.IndexGSI1,
		Partition:  accountPK(orgID, accountID),
		Descending: true,
	}, limit)
}

// ListByOrg returns up to maxItems snapshots for the org, most recent
// first, transparently paging through the store. maxItems <= 0 drains the
// entire partition. The org/time index keeps the ordering chronological
// across dashboards; the base table would group by dashboard GUID instead.
func (r *SnapshotRepository) ListByOrg(ctx context.Context, orgID string, maxItems int) ([]*model.Snapshot, error) {
	return r.drain(ctx, table.Query{
		Index:      table.IndexGSI3,
		Partition:  orgTimePK(orgID),
		Descending: true,
	}, maxItems)
}

// ListByOrgPaginated materializes one page of the org's history. The store
// only iterates forward, so reaching page N replays every earlier page,
// skipping (page-1)*limit records, then reads limit records plus one probe
// record for hasNext. The returned total is an estimate: the number of
// records observed, never a full count.
func (r *SnapshotRepository) ListByOrgPaginated(ctx context.Context, orgID string, page, limit int) (*model.SnapshotPage, error) {
	if page < 1 || limit < 1 {
		return nil, &core.InvalidInputError{Reason: "page and limit must be >= 1"}
	}

	snaps, err := r.ListByOrg(ctx, orgID, page*limit+1)
	if err != nil {
		return nil, err
	}
	return paginate(snaps, page, limit), nil
}

// CountByOrg returns the exact number of snapshot records by draining the
// partition in count mode. Reserved for contexts where exactness matters
// more than latency.
func (r *SnapshotRepository) CountByOrg(ctx context.Context, orgID string) (int, error) {
	q := table.Query{
		Partition:  orgPK(orgID),
		SortPrefix: allSnapshotsPrefix,
	}

	count := 0
	for {
		page, err := r.store.Query(ctx, q)
		if err != nil {
			return 0, &core.StorageUnavailableError{Op: "count snapshots", Err: err}
		}
		count += len(page.Records)
		if page.NextCursor == "" {
			return count, nil
		}
		q.Cursor = page.NextCursor
	}
}

// LatestByDashboard returns the most recent snapshot of a dashboard, or
// nil, nil when it has no history.
func (r *SnapshotRepository) LatestByDashboard(ctx context.Context, orgID, dashboardGUID string) (*model.Snapshot, error) {
	snaps, err := r.ListByDashboard(ctx, orgID, dashboardGUID, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[0], nil
}

// Search filters the org's most recent records by a case-insensitive
// substring match over dashboard name and GUID. The fetch is capped at
// SearchScanLimit records; within that window, totals are exact.
func (r *SnapshotRepository) Search(ctx context.Context, orgID, query string, page, limit int) (*model.SnapshotPage, error) {
	if page < 1 || limit < 1 {
		return nil, &core.InvalidInputError{Reason: "page and limit must be >= 1"}
	}

	snaps, err := r.ListByOrg(ctx, orgID, SearchScanLimit)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matched []*model.Snapshot
	for _, snap := range snaps {
		if strings.Contains(strings.ToLower(snap.DashboardName), needle) ||
			strings.Contains(strings.ToLower(snap.DashboardGUID), needle) {
			matched = append(matched, snap)
		}
	}
	return paginate(matched, page, limit), nil
}

// drain follows the store's continuation cursor until max records have been
// collected or the partition is exhausted. Never stops after one page:
// stopping early silently loses records as data grows.
func (r *SnapshotRepository) drain(ctx context.Context, q table.Query, max int) ([]*model.Snapshot, error) {
	var out []*model.Snapshot
	for {
		page, err := r.store.Query(ctx, q)
		if err != nil {
			return nil, &core.StorageUnavailableError{Op: "list snapshots", Err: err}
		}
		for _, rec := range page.Records {
			snap, err := decodeSnapshot(rec)
			if err != nil {
				return nil, err
			}
			out = append(out, snap)
			if max > 0 && len(out) == max {
				return out, nil
			}
		}
		if page.NextCursor == "" {
			return out, nil
		}
		q.Cursor = page.NextCursor
	}
}

// paginate cuts the requested page out of a most-recent-first listing and
// derives the page info. The listing is expected to hold at most
// page*limit+1 records (the +1 being the hasNext probe); totals reflect
// what was observed.
func paginate(snaps []*model.Snapshot, page, limit int) *model.SnapshotPage {
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

// Compile-time check that SnapshotRepository implements the service contract.
var _ core.SnapshotRepository = (*SnapshotRepository)(nil)
