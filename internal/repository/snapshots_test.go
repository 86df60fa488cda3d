package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dashkeep/internal/core"
	"dashkeep/internal/repository"
	"dashkeep/internal/table"
	"dashkeep/internal/testutil"
)

func newSnapshotRepo(t *testing.T) (*repository.SnapshotRepository, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	repo := repository.NewSnapshotRepository(table.NewMemoryStore(), clock, testutil.NewStubIDGenerator())
	return repo, clock
}

// seedSnapshot creates one snapshot and advances the clock so the next one
// gets a strictly later timestamp.
func seedSnapshot(t *testing.T, repo *repository.SnapshotRepository, clock *testutil.StubClock, orgID, guid, name, accountID string) string {
	t.Helper()
	snap, err := repo.Create(context.Background(), core.SnapshotInput{
		OrgID:         orgID,
		DashboardGUID: guid,
		DashboardName: name,
		AccountID:     accountID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	clock.Advance(time.Second)
	return snap.ID
}

func TestSnapshotRepository_CreateAndFindByID(t *testing.T) {
	ctx := context.Background()
	repo, clock := newSnapshotRepo(t)

	created, err := repo.Create(ctx, core.SnapshotInput{
		OrgID:           "org-1",
		DashboardGUID:   "dash-1",
		DashboardName:   "Sales Overview",
		AccountID:       "acct-1",
		ContentLocation: "org-1/acct-1/dash-1/x.json",
		SizeBytes:       42,
		Checksum:        "abc123",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Error("Create() assigned no ID")
	}
	if !created.BackupTimestamp.Equal(clock.Now()) {
		t.Errorf("BackupTimestamp = %v, want %v", created.BackupTimestamp, clock.Now())
	}

	t.Run("found within the owning org", func(t *testing.T) {
		got, err := repo.FindByID(ctx, "org-1", created.ID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if got == nil {
			t.Fatal("FindByID() = nil, want snapshot")
		}
		if got.DashboardName != "Sales Overview" {
			t.Errorf("DashboardName = %q, want Sales Overview", got.DashboardName)
		}
		if got.Checksum != "abc123" {
			t.Errorf("Checksum = %q, want abc123", got.Checksum)
		}
	})

	t.Run("invisible to another org even with the right ID", func(t *testing.T) {
		got, err := repo.FindByID(ctx, "org-2", created.ID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if got != nil {
			t.Errorf("FindByID() = %+v, want nil for foreign org", got)
		}
	})

	t.Run("unknown ID yields nil", func(t *testing.T) {
		got, err := repo.FindByID(ctx, "org-1", "no-such-snapshot")
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if got != nil {
			t.Errorf("FindByID() = %+v, want nil", got)
		}
	})
}

func TestSnapshotRepository_ListByDashboard(t *testing.T) {
	ctx := context.Background()
	repo, clock := newSnapshotRepo(t)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, seedSnapshot(t, repo, clock, "org-1", "dash-1", "Dash One", "acct-1"))
	}
	seedSnapshot(t, repo, clock, "org-1", "dash-2", "Dash Two", "acct-1")

	snaps, err := repo.ListByDashboard(ctx, "org-1", "dash-1", 0)
	if err != nil {
		t.Fatalf("ListByDashboard() error = %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("len = %d, want 3", len(snaps))
	}

	t.Run("most recent first", func(t *testing.T) {
		for i := 0; i < len(snaps)-1; i++ {
			if snaps[i].BackupTimestamp.Before(snaps[i+1].BackupTimestamp) {
				t.Errorf("snaps[%d] older than snaps[%d]", i, i+1)
			}
		}
		if snaps[0].ID != ids[2] {
			t.Errorf("first ID = %q, want the latest %q", snaps[0].ID, ids[2])
		}
	})

	t.Run("limit caps the listing", func(t *testing.T) {
		snaps, err := repo.ListByDashboard(ctx, "org-1", "dash-1", 2)
		if err != nil {
			t.Fatalf("ListByDashboard() error = %v", err)
		}
		if len(snaps) != 2 {
			t.Errorf("len = %d, want 2", len(snaps))
		}
	})

	t.Run("guid that is a prefix of another never cross-matches", func(t *testing.T) {
		seedSnapshot(t, repo, clock, "org-1", "dash", "Short", "acct-1")
		snaps, err := repo.ListByDashboard(ctx, "org-1", "dash", 0)
		if err != nil {
			t.Fatalf("ListByDashboard() error = %v", err)
		}
		if len(snaps) != 1 {
			t.Errorf("len = %d, want 1", len(snaps))
		}
	})

	t.Run("guid containing key separators round-trips", func(t *testing.T) {
		guid := "MXxWSVp8REFTSEJPQVJEfDE#raw/part"
		seedSnapshot(t, repo, clock, "org-1", guid, "Odd GUID", "acct-1")
		snaps, err := repo.ListByDashboard(ctx, "org-1", guid, 0)
		if err != nil {
			t.Fatalf("ListByDashboard() error = %v", err)
		}
		if len(snaps) != 1 {
			t.Fatalf("len = %d, want 1", len(snaps))
		}
		if snaps[0].DashboardGUID != guid {
			t.Errorf("DashboardGUID = %q, want %q", snaps[0].DashboardGUID, guid)
		}
	})
}

func TestSnapshotRepository_ListByAccount(t *testing.T) {
	ctx := context.Background()
	repo, clock := newSnapshotRepo(t)

	seedSnapshot(t, repo, clock, "org-1", "dash-1", "One", "acct-1")
	seedSnapshot(t, repo, clock, "org-1", "dash-2", "Two", "acct-1")
	seedSnapshot(t, repo, clock, "org-1", "dash-3", "Three", "acct-2")

	snaps, err := repo.ListByAccount(ctx, "org-1", "acct-1", 0)
	if err != nil {
		t.Fatalf("ListByAccount() error = %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("len = %d, want 2", len(snaps))
	}
	if snaps[0].DashboardGUID != "dash-2" {
		t.Errorf("first GUID = %q, want dash-2 (most recent)", snaps[0].DashboardGUID)
	}
}

func TestSnapshotRepository_OrgIsolation(t *testing.T) {
	ctx := context.Background()
	repo, clock := newSnapshotRepo(t)

	seedSnapshot(t, repo, clock, "org-1", "dash-1", "Mine", "acct-1")
	seedSnapshot(t, repo, clock, "org-2", "dash-1", "Theirs", "acct-9")

	snaps, err := repo.ListByOrg(ctx, "org-1", 0)
	if err != nil {
		t.Fatalf("ListByOrg() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("len = %d, want 1", len(snaps))
	}
	if snaps[0].DashboardName != "Mine" {
		t.Errorf("DashboardName = %q, want Mine", snaps[0].DashboardName)
	}
}

// Org-wide listings must order by capture time, not by where the records
// happen to sit in the base table (which groups by dashboard GUID). The
// GUIDs here are chosen so lexicographic order and capture order disagree.
func TestSnapshotRepository_ListByOrgCrossDashboardOrder(t *testing.T) {
	ctx := context.Background()
	repo, clock := newSnapshotRepo(t)

	oldest := seedSnapshot(t, repo, clock, "org-1", "zzz-dash", "Oldest", "acct-1")
	middle := seedSnapshot(t, repo, clock, "org-1", "mmm-dash", "Middle", "acct-1")
	newest := seedSnapshot(t, repo, clock, "org-1", "aaa-dash", "Newest", "acct-1")

	wantIDs := []string{newest, middle, oldest}

	t.Run("ListByOrg is newest first", func(t *testing.T) {
		snaps, err := repo.ListByOrg(ctx, "org-1", 0)
		if err != nil {
			t.Fatalf("ListByOrg() error = %v", err)
		}
		if len(snaps) != 3 {
			t.Fatalf("len = %d, want 3", len(snaps))
		}
		for i, want := range wantIDs {
			if snaps[i].ID != want {
				t.Errorf("snaps[%d].ID = %q, want %q", i, snaps[i].ID, want)
			}
		}
	})

	t.Run("truncated listing keeps the newest records", func(t *testing.T) {
		snaps, err := repo.ListByOrg(ctx, "org-1", 1)
		if err != nil {
			t.Fatalf("ListByOrg() error = %v", err)
		}
		if len(snaps) != 1 || snaps[0].ID != newest {
			t.Errorf("snaps = %+v, want only the newest snapshot %q", snaps, newest)
		}
	})

	t.Run("pages cut along capture time", func(t *testing.T) {
		page1, err := repo.ListByOrgPaginated(ctx, "org-1", 1, 2)
		if err != nil {
			t.Fatalf("ListByOrgPaginated() error = %v", err)
		}
		if len(page1.Data) != 2 || page1.Data[0].ID != newest || page1.Data[1].ID != middle {
			t.Errorf("page 1 = %+v, want [%q %q]", page1.Data, newest, middle)
		}
		page2, err := repo.ListByOrgPaginated(ctx, "org-1", 2, 2)
		if err != nil {
			t.Fatalf("ListByOrgPaginated() error = %v", err)
		}
		if len(page2.Data) != 1 || page2.Data[0].ID != oldest {
			t.Errorf("page 2 = %+v, want [%q]", page2.Data, oldest)
		}
	})

	t.Run("search matches are newest first", func(t *testing.T) {
		result, err := repo.Search(ctx, "org-1", "dash", 1, 10)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(result.Data) != 3 {
			t.Fatalf("len(Data) = %d, want 3", len(result.Data))
		}
		for i, want := range wantIDs {
			if result.Data[i].ID != want {
				t.Errorf("Data[%d].ID = %q, want %q", i, result.Data[i].ID, want)
			}
		}
	})
}

func TestSnapshotRepository_ListByOrgPaginated(t *testing.T) {
	ctx := context.Background()
	repo, clock := newSnapshotRepo(t)

	// 250 records spans multiple store pages (page size 100), so draining
	// genuinely replays cursors.
	const n = 250
	for i := 0; i < n; i++ {
		seedSnapshot(t, repo, clock, "org-1", fmt.Sprintf("dash-%d", i%10), fmt.Sprintf("Dashboard %d", i), "acct-1")
	}

	t.Run("page concatenation equals the full listing", func(t *testing.T) {
		full, err := repo.ListByOrg(ctx, "org-1", 0)
		if err != nil {
			t.Fatalf("ListByOrg() error = %v", err)
		}
		if len(full) != n {
			t.Fatalf("full len = %d, want %d", len(full), n)
		}

		var paged []string
		for page := 1; ; page++ {
			result, err := repo.ListByOrgPaginated(ctx, "org-1", page, 20)
			if err != nil {
				t.Fatalf("ListByOrgPaginated(page %d) error = %v", page, err)
			}
			for _, s := range result.Data {
				paged = append(paged, s.ID)
			}
			if !result.Pagination.HasNext {
				break
			}
		}

		if len(paged) != n {
			t.Fatalf("paged len = %d, want %d", len(paged), n)
		}
		for i, id := range paged {
			if id != full[i].ID {
				t.Fatalf("paged[%d] = %q, want %q: pages must have no gaps or duplicates", i, id, full[i].ID)
			}
		}
	})

	t.Run("totals are observed-record estimates", func(t *testing.T) {
		result, err := repo.ListByOrgPaginated(ctx, "org-1", 1, 20)
		if err != nil {
			t.Fatalf("ListByOrgPaginated() error = %v", err)
		}
		if len(result.Data) != 20 {
			t.Errorf("len(Data) = %d, want 20", len(result.Data))
		}
		// One probe record past the page: 21 observed, not the real 250.
		if result.Pagination.Total != 21 {
			t.Errorf("Total = %d, want 21 (lookahead estimate)", result.Pagination.Total)
		}
		if !result.Pagination.HasNext {
			t.Error("HasNext = false, want true")
		}
	})

	t.Run("count drains the partition for the exact number", func(t *testing.T) {
		count, err := repo.CountByOrg(ctx, "org-1")
		if err != nil {
			t.Fatalf("CountByOrg() error = %v", err)
		}
		if count != n {
			t.Errorf("CountByOrg() = %d, want %d", count, n)
		}
	})

	t.Run("page past the end is empty but well-formed", func(t *testing.T) {
		result, err := repo.ListByOrgPaginated(ctx, "org-1", 100, 20)
		if err != nil {
			t.Fatalf("ListByOrgPaginated() error = %v", err)
		}
		if len(result.Data) != 0 {
			t.Errorf("len(Data) = %d, want 0", len(result.Data))
		}
		if result.Pagination.HasNext {
			t.Error("HasNext = true, want false")
		}
	})

	t.Run("invalid paging inputs are rejected", func(t *testing.T) {
		if _, err := repo.ListByOrgPaginated(ctx, "org-1", 0, 20); err == nil {
			t.Error("page 0: error = nil, want InvalidInputError")
		}
		if _, err := repo.ListByOrgPaginated(ctx, "org-1", 1, 0); err == nil {
			t.Error("limit 0: error = nil, want InvalidInputError")
		}
	})
}

func TestSnapshotRepository_HasNextAtExactBoundary(t *testing.T) {
	ctx := context.Background()
	repo, clock := newSnapshotRepo(t)

	for i := 0; i < 50; i++ {
		seedSnapshot(t, repo, clock, "org-1", "dash-1", "Dash", "acct-1")
	}

	result, err := repo.ListByOrgPaginated(ctx, "org-1", 1, 50)
	if err != nil {
		t.Fatalf("ListByOrgPaginated() error = %v", err)
	}
	if len(result.Data) != 50 {
		t.Errorf("len(Data) = %d, want 50", len(result.Data))
	}
	if result.Pagination.HasNext {
		t.Error("HasNext = true with exactly 50 records, want false")
	}
	if result.Pagination.Total != 50 {
		t.Errorf("Total = %d, want 50", result.Pagination.Total)
	}

	// One more record flips hasNext via the probe.
	seedSnapshot(t, repo, clock, "org-1", "dash-1", "Dash", "acct-1")
	result, err = repo.ListByOrgPaginated(ctx, "org-1", 1, 50)
	if err != nil {
		t.Fatalf("ListByOrgPaginated() error = %v", err)
	}
	if !result.Pagination.HasNext {
		t.Error("HasNext = false with 51 records, want true")
	}
}

func TestSnapshotRepository_LatestByDashboard(t *testing.T) {
	ctx := context.Background()
	repo, clock := newSnapshotRepo(t)

	seedSnapshot(t, repo, clock, "org-1", "dash-1", "Old", "acct-1")
	latest := seedSnapshot(t, repo, clock, "org-1", "dash-1", "New", "acct-1")

	got, err := repo.LatestByDashboard(ctx, "org-1", "dash-1")
	if err != nil {
		t.Fatalf("LatestByDashboard() error = %v", err)
	}
	if got == nil || got.ID != latest {
		t.Errorf("LatestByDashboard() = %+v, want ID %q", got, latest)
	}

	t.Run("no history yields nil", func(t *testing.T) {
		got, err := repo.LatestByDashboard(ctx, "org-1", "dash-never")
		if err != nil {
			t.Fatalf("LatestByDashboard() error = %v", err)
		}
		if got != nil {
			t.Errorf("LatestByDashboard() = %+v, want nil", got)
		}
	})
}

func TestSnapshotRepository_Search(t *testing.T) {
	ctx := context.Background()
	repo, clock := newSnapshotRepo(t)

	seedSnapshot(t, repo, clock, "org-1", "guid-alpha", "Sales Overview", "acct-1")
	seedSnapshot(t, repo, clock, "org-1", "guid-beta", "Ops Dashboard", "acct-1")
	seedSnapshot(t, repo, clock, "org-1", "guid-gamma", "SALES Detail", "acct-1")

	t.Run("matches name case-insensitively", func(t *testing.T) {
		result, err := repo.Search(ctx, "org-1", "sales", 1, 10)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(result.Data) != 2 {
			t.Fatalf("len(Data) = %d, want 2", len(result.Data))
		}
		// Most recent match first.
		if result.Data[0].DashboardName != "SALES Detail" {
			t.Errorf("first match = %q, want SALES Detail", result.Data[0].DashboardName)
		}
	})

	t.Run("matches guid substring", func(t *testing.T) {
		result, err := repo.Search(ctx, "org-1", "beta", 1, 10)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(result.Data) != 1 || result.Data[0].DashboardGUID != "guid-beta" {
			t.Errorf("Data = %+v, want only guid-beta", result.Data)
		}
	})

	t.Run("no matches yields empty page", func(t *testing.T) {
		result, err := repo.Search(ctx, "org-1", "zzz", 1, 10)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(result.Data) != 0 {
			t.Errorf("len(Data) = %d, want 0", len(result.Data))
		}
		if result.Pagination.HasNext {
			t.Error("HasNext = true, want false")
		}
	})
}
