package table

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory implementation of Store. It follows the same
// paging contract as the SQLite store, making it useful for tests.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]Record // pk -> sk -> record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]map[string]Record)}
}

func (m *MemoryStore) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	part, ok := m.records[rec.PK]
	if !ok {
		part = make(map[string]Record)
		m.records[rec.PK] = part
	}
	part[rec.SK] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, pk, sk string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[pk][sk]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, pk, sk string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records[pk], sk)
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Collect every record in the partition that matches the prefix.
	var matched []Record
	for _, part := range m.records {
		for _, rec := range part {
			if partitionValueFor(q.Index, rec) != q.Partition {
				continue
			}
			if q.SortPrefix != "" && !strings.HasPrefix(sortValueFor(q.Index, rec), q.SortPrefix) {
				continue
			}
			matched = append(matched, rec)
		}
	}

	// Order by (sort value, SK), flipped when descending.
	sort.Slice(matched, func(i, j int) bool {
		si, sj := sortValueFor(q.Index, matched[i]), sortValueFor(q.Index, matched[j])
		if si != sj {
			if q.Descending {
				return si > sj
			}
			return si < sj
		}
		if q.Descending {
			return matched[i].SK > matched[j].SK
		}
		return matched[i].SK < matched[j].SK
	})

	// Skip past the cursor position.
	if curSort, curSK, ok := decodeCursor(q.Cursor); ok {
		i := sort.Search(len(matched), func(i int) bool {
			si, ki := sortValueFor(q.Index, matched[i]), matched[i].SK
			if q.Descending {
				return si < curSort || (si == curSort && ki < curSK)
			}
			return si > curSort || (si == curSort && ki > curSK)
		})
		matched = matched[i:]
	}

	limit := clampLimit(q.Limit)
	page := &Page{}
	if len(matched) > limit {
		page.Records = matched[:limit]
		last := page.Records[limit-1]
		page.NextCursor = encodeCursor(sortValueFor(q.Index, last), last.SK)
	} else {
		page.Records = matched
	}
	return page, nil
}

func (m *MemoryStore) Close() error { return nil }

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
