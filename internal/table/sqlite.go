package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dashkeep/internal/table/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements Store on a single SQLite table. Secondary indexes
// are real covering indexes; cursor queries translate to keyed range scans,
// never OFFSET.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store depends on. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Migrate runs all pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (pk, sk, entity_type, gsi1_pk, gsi1_sk, gsi2_pk, gsi3_pk, gsi3_sk, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pk, sk) DO UPDATE SET
			entity_type = excluded.entity_type,
			gsi1_pk     = excluded.gsi1_pk,
			gsi1_sk     = excluded.gsi1_sk,
			gsi2_pk     = excluded.gsi2_pk,
			gsi3_pk     = excluded.gsi3_pk,
			gsi3_sk     = excluded.gsi3_sk,
			attributes  = excluded.attributes`,
		rec.PK, rec.SK, string(rec.EntityType), rec.GSI1PK, rec.GSI1SK, rec.GSI2PK, rec.GSI3PK, rec.GSI3SK, string(rec.Attributes))
	if err != nil {
		return fmt.Errorf("putting record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, pk, sk string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pk, sk, entity_type, gsi1_pk, gsi1_sk, gsi2_pk, gsi3_pk, gsi3_sk, attributes
		FROM records WHERE pk = ? AND sk = ?`, pk, sk)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, pk, sk string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE pk = ? AND sk = ?`, pk, sk); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) (*Page, error) {
	limit := clampLimit(q.Limit)

	var (
		sortCol string
		where   []string
		args    []any
	)

	switch q.Index {
	case IndexBase:
		sortCol = "sk"
		where = append(where, "pk = ?")
		args = append(args, q.Partition)
	case IndexGSI1:
		sortCol = "gsi1_sk"
		where = append(where, "gsi1_pk = ?")
		args = append(args, q.Partition)
	case IndexGSI2:
		sortCol = "sk"
		where = append(where, "gsi2_pk = ?")
		args = append(args, q.Partition)
	case IndexGSI3:
		sortCol = "gsi3_sk"
		where = append(where, "gsi3_pk = ?")
		args = append(args, q.Partition)
	default:
		return nil, fmt.Errorf("unknown index: %q", q.Index)
	}

	// Prefix filters become range bounds rather than LIKE patterns: key
	// material may contain percent-encoded characters that LIKE would
	// misread as wildcards.
	if q.SortPrefix != "" {
		where = append(where, sortCol+" >= ?", sortCol+" < ?")
		args = append(args, q.SortPrefix, prefixUpperBound(q.SortPrefix))
	}

	if curSort, curSK, ok := decodeCursor(q.Cursor); ok {
		if q.Descending {
			where = append(where, "("+sortCol+", sk) < (?, ?)")
		} else {
			where = append(where, "("+sortCol+", sk) > (?, ?)")
		}
		args = append(args, curSort, curSK)
	}

	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	// Fetch one past the page size to learn whether more records remain.
	query := fmt.Sprintf(`
		SELECT pk, sk, entity_type, gsi1_pk, gsi1_sk, gsi2_pk, gsi3_pk, gsi3_sk, attributes
		FROM records
		WHERE %s
		ORDER BY %s %s, sk %s
		LIMIT %d`,
		strings.Join(where, " AND "), sortCol, direction, direction, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	page := &Page{}
	if len(records) > limit {
		page.Records = records[:limit]
		last := page.Records[limit-1]
		page.NextCursor = encodeCursor(sortValueFor(q.Index, last), last.SK)
	} else {
		page.Records = records
	}
	return page, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec        Record
		entityType string
		attributes string
	)
	if err := sc.Scan(&rec.PK, &rec.SK, &entityType, &rec.GSI1PK, &rec.GSI1SK, &rec.GSI2PK, &rec.GSI3PK, &rec.GSI3SK, &attributes); err != nil {
		return nil, err
	}
	rec.EntityType = EntityType(entityType)
	rec.Attributes = []byte(attributes)
	return &rec, nil
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
