package table_test

import (
	"context"
	"fmt"
	"testing"

	"dashkeep/internal/table"
)

func mkRecord(pk, sk string) table.Record {
	return table.Record{
		PK:         pk,
		SK:         sk,
		EntityType: table.EntityBackup,
		Attributes: []byte(`{}`),
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := table.NewMemoryStore()

	rec := mkRecord("ORG#o1", "BACKUP#d1#001")
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "ORG#o1", "BACKUP#d1#001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil, want record")
	}
	if got.SK != rec.SK {
		t.Errorf("Get() SK = %q, want %q", got.SK, rec.SK)
	}

	t.Run("put replaces existing record", func(t *testing.T) {
		updated := rec
		updated.Attributes = []byte(`{"x":1}`)
		if err := store.Put(ctx, updated); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		got, _ := store.Get(ctx, "ORG#o1", "BACKUP#d1#001")
		if string(got.Attributes) != `{"x":1}` {
			t.Errorf("attributes after overwrite = %s, want {\"x\":1}", got.Attributes)
		}
	})

	t.Run("get missing record returns nil", func(t *testing.T) {
		got, err := store.Get(ctx, "ORG#o1", "BACKUP#nope")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != nil {
			t.Errorf("Get() = %+v, want nil", got)
		}
	})

	t.Run("delete removes the record", func(t *testing.T) {
		if err := store.Delete(ctx, "ORG#o1", "BACKUP#d1#001"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		got, _ := store.Get(ctx, "ORG#o1", "BACKUP#d1#001")
		if got != nil {
			t.Errorf("Get() after delete = %+v, want nil", got)
		}
	})

	t.Run("delete missing record is not an error", func(t *testing.T) {
		if err := store.Delete(ctx, "ORG#none", "BACKUP#none"); err != nil {
			t.Errorf("Delete() error = %v, want nil", err)
		}
	})
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	store := table.NewMemoryStore()

	// Five backups plus one credential in the same partition, and one
	// backup in a second partition.
	for i := 1; i <= 5; i++ {
		rec := mkRecord("ORG#o1", fmt.Sprintf("BACKUP#d1#%03d", i))
		rec.GSI1PK = "ACCT#o1#a1"
		rec.GSI1SK = fmt.Sprintf("%03d", i)
		rec.GSI2PK = fmt.Sprintf("SNAP#s%d", i)
		rec.GSI3PK = "ORGTIME#o1"
		// Reversed relative to the SK so gsi3 queries provably sort by
		// their own key, not the primary one.
		rec.GSI3SK = fmt.Sprintf("%03d", 6-i)
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if err := store.Put(ctx, mkRecord("ORG#o1", "APIKEY#c1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, mkRecord("ORG#o2", "BACKUP#d9#001")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	t.Run("prefix filters and ascending order", func(t *testing.T) {
		page, err := store.Query(ctx, table.Query{Partition: "ORG#o1", SortPrefix: "BACKUP#"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(page.Records) != 5 {
			t.Fatalf("len(Records) = %d, want 5", len(page.Records))
		}
		for i, rec := range page.Records {
			want := fmt.Sprintf("BACKUP#d1#%03d", i+1)
			if rec.SK != want {
				t.Errorf("Records[%d].SK = %q, want %q", i, rec.SK, want)
			}
		}
		if page.NextCursor != "" {
			t.Errorf("NextCursor = %q, want empty", page.NextCursor)
		}
	})

	t.Run("descending order", func(t *testing.T) {
		page, err := store.Query(ctx, table.Query{Partition: "ORG#o1", SortPrefix: "BACKUP#", Descending: true})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if got := page.Records[0].SK; got != "BACKUP#d1#005" {
			t.Errorf("first SK = %q, want BACKUP#d1#005", got)
		}
		if got := page.Records[4].SK; got != "BACKUP#d1#001" {
			t.Errorf("last SK = %q, want BACKUP#d1#001", got)
		}
	})

	t.Run("partition isolation", func(t *testing.T) {
		page, err := store.Query(ctx, table.Query{Partition: "ORG#o2"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(page.Records) != 1 || page.Records[0].SK != "BACKUP#d9#001" {
			t.Errorf("Records = %+v, want only ORG#o2's record", page.Records)
		}
	})

	t.Run("cursor replay covers all records without gaps or duplicates", func(t *testing.T) {
		q := table.Query{Partition: "ORG#o1", SortPrefix: "BACKUP#", Limit: 2}
		var seen []string
		pages := 0
		for {
			page, err := store.Query(ctx, q)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			pages++
			for _, rec := range page.Records {
				seen = append(seen, rec.SK)
			}
			if page.NextCursor == "" {
				break
			}
			q.Cursor = page.NextCursor
		}
		if pages != 3 {
			t.Errorf("pages = %d, want 3", pages)
		}
		if len(seen) != 5 {
			t.Fatalf("len(seen) = %d, want 5", len(seen))
		}
		for i, sk := range seen {
			want := fmt.Sprintf("BACKUP#d1#%03d", i+1)
			if sk != want {
				t.Errorf("seen[%d] = %q, want %q", i, sk, want)
			}
		}
	})

	t.Run("cursor replay descending", func(t *testing.T) {
		q := table.Query{Partition: "ORG#o1", SortPrefix: "BACKUP#", Descending: true, Limit: 3}
		var seen []string
		for {
			page, err := store.Query(ctx, q)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			for _, rec := range page.Records {
				seen = append(seen, rec.SK)
			}
			if page.NextCursor == "" {
				break
			}
			q.Cursor = page.NextCursor
		}
		want := []string{"BACKUP#d1#005", "BACKUP#d1#004", "BACKUP#d1#003", "BACKUP#d1#002", "BACKUP#d1#001"}
		if len(seen) != len(want) {
			t.Fatalf("len(seen) = %d, want %d", len(seen), len(want))
		}
		for i := range want {
			if seen[i] != want[i] {
				t.Errorf("seen[%d] = %q, want %q", i, seen[i], want[i])
			}
		}
	})

	t.Run("no next cursor when page exactly holds the remainder", func(t *testing.T) {
		page, err := store.Query(ctx, table.Query{Partition: "ORG#o1", SortPrefix: "BACKUP#", Limit: 5})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(page.Records) != 5 {
			t.Errorf("len(Records) = %d, want 5", len(page.Records))
		}
		if page.NextCursor != "" {
			t.Errorf("NextCursor = %q, want empty", page.NextCursor)
		}
	})

	t.Run("gsi1 query uses the index sort key", func(t *testing.T) {
		page, err := store.Query(ctx, table.Query{
			Index:      table.IndexGSI1,
			Partition:  "ACCT#o1#a1",
			Descending: true,
		})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(page.Records) != 5 {
			t.Fatalf("len(Records) = %d, want 5", len(page.Records))
		}
		if got := page.Records[0].GSI1SK; got != "005" {
			t.Errorf("first GSI1SK = %q, want 005", got)
		}
	})

	t.Run("gsi3 query sorts by its own key, not the primary sort key", func(t *testing.T) {
		page, err := store.Query(ctx, table.Query{
			Index:      table.IndexGSI3,
			Partition:  "ORGTIME#o1",
			Descending: true,
		})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(page.Records) != 5 {
			t.Fatalf("len(Records) = %d, want 5", len(page.Records))
		}
		// GSI3SK descending means SK ascending here.
		if got := page.Records[0].SK; got != "BACKUP#d1#001" {
			t.Errorf("first SK = %q, want BACKUP#d1#001", got)
		}
		if got := page.Records[4].SK; got != "BACKUP#d1#005" {
			t.Errorf("last SK = %q, want BACKUP#d1#005", got)
		}
	})

	t.Run("gsi2 query resolves a single record", func(t *testing.T) {
		page, err := store.Query(ctx, table.Query{
			Index:     table.IndexGSI2,
			Partition: "SNAP#s3",
			Limit:     1,
		})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(page.Records) != 1 {
			t.Fatalf("len(Records) = %d, want 1", len(page.Records))
		}
		if got := page.Records[0].SK; got != "BACKUP#d1#003" {
			t.Errorf("SK = %q, want BACKUP#d1#003", got)
		}
	})

	t.Run("empty partition yields empty page", func(t *testing.T) {
		page, err := store.Query(ctx, table.Query{Partition: "ORG#empty"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(page.Records) != 0 || page.NextCursor != "" {
			t.Errorf("page = %+v, want empty", page)
		}
	})
}
