// Package table provides a single-table, wide-column record store with
// secondary indexes and forward-cursor pagination. It deliberately exposes
// no offsets, no counts, and no jump-to-page: higher layers that need
// page-number pagination must replay cursors from the start.
package table

import "context"

// EntityType tags what kind of record occupies a row.
type EntityType string

const (
	EntityOrganization EntityType = "ORGANIZATION"
	EntityMembership   EntityType = "MEMBERSHIP"
	EntityAPIKey       EntityType = "APIKEY"
	EntityBackup       EntityType = "BACKUP"
	EntityAudit        EntityType = "AUDIT"
)

// Record is one row. PK/SK form the primary key; the GSI fields are
// optional secondary-index projections. Attributes holds the entity's
// JSON document.
type Record struct {
	PK         string
	SK         string
	EntityType EntityType
	GSI1PK     string
	GSI1SK     string
	GSI2PK     string
	GSI3PK     string
	GSI3SK     string
	Attributes []byte
}

// Index names a query target.
type Index string

const (
	IndexBase Index = "" // primary key: PK partition, SK sort
	IndexGSI1 Index = "gsi1"
	IndexGSI2 Index = "gsi2" // partition only, no sort key
	IndexGSI3 Index = "gsi3"
)

// Query describes one forward-cursor page request.
type Query struct {
	Index      Index
	Partition  string // partition key value of the chosen index
	SortPrefix string // optional prefix filter on the sort key (sorted indexes only)
	Descending bool
	Limit      int    // records per page; 0 means DefaultPageSize, capped at MaxPageSize
	Cursor     string // continuation token from the previous Page; "" starts over
}

// Page is one page of query results. NextCursor is empty when the
// partition is exhausted; otherwise passing it back resumes the iteration
// with no duplicates and no gaps, as long as no records were written in
// between.
type Page struct {
	Records    []Record
	NextCursor string
}

// Page size bounds. MaxPageSize is intentionally small so that callers
// paging through large partitions genuinely exercise cursor replay.
const (
	DefaultPageSize = 100
	MaxPageSize     = 100
)

// Store is the wide-column record store.
type Store interface {
	// Put creates or replaces the record at (PK, SK).
	Put(ctx context.Context, rec Record) error

	// Get returns the record at (pk, sk), or nil, nil when absent.
	Get(ctx context.Context, pk, sk string) (*Record, error)

	// Delete removes the record at (pk, sk). Missing records are not an error.
	Delete(ctx context.Context, pk, sk string) error

	// Query returns one page of records matching q, ordered by sort key.
	Query(ctx context.Context, q Query) (*Page, error)

	// Close releases the store's resources.
	Close() error
}

// clampLimit applies the page-size bounds to a requested limit.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
