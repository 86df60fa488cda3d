package core_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"dashkeep/internal/blob"
	"dashkeep/internal/core"
	"dashkeep/internal/model"
	"dashkeep/internal/repository"
	"dashkeep/internal/secrets"
	"dashkeep/internal/table"
	"dashkeep/internal/testutil"
)

// fixture wires a Service over in-memory stores with a fake dashboard API.
type fixture struct {
	svc       *core.Service
	snapshots *repository.SnapshotRepository
	creds     *repository.CredentialRepository
	blobs     *blob.MemoryStore
	secrets   core.SecretStore
	api       *testutil.FakeDashboardAPI
	factory   *testutil.FakeAPIFactory
	clock     *testutil.StubClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := testutil.FixedClock()
	idgen := testutil.NewStubIDGenerator()
	store := table.NewMemoryStore()
	api := testutil.NewFakeDashboardAPI()
	factory := testutil.NewFakeAPIFactory(api)

	f := &fixture{
		snapshots: repository.NewSnapshotRepository(store, clock, idgen),
		creds:     repository.NewCredentialRepository(store),
		blobs:     blob.NewMemoryStore(),
		secrets:   secrets.NewMemoryStore(),
		api:       api,
		factory:   factory,
		clock:     clock,
	}
	f.svc = core.NewService(f.snapshots, f.creds, f.blobs, f.secrets, factory,
		core.NewNopLogger(), clock, idgen)
	return f
}

// addCredential stores an active credential for orgID with access to the
// given accounts.
func (f *fixture) addCredential(t *testing.T, orgID string, accounts ...model.Account) *model.Credential {
	t.Helper()

	f.api.Validation = &model.CredentialValidation{Valid: true, Accounts: accounts}
	cred, err := f.svc.CreateCredential(context.Background(), orgID, "main key", "raw-api-key")
	if err != nil {
		t.Fatalf("CreateCredential() error = %v", err)
	}
	return cred
}

// addDashboard registers a dashboard on the fake platform and returns its
// detail.
func (f *fixture) addDashboard(guid, name, accountID string, doc model.DashboardDocument) *model.DashboardDetail {
	d := &model.DashboardDetail{
		GUID:        guid,
		Name:        name,
		AccountID:   accountID,
		AccountName: "Account " + accountID,
		OwnerEmail:  "owner@example.com",
		UpdatedAt:   time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC),
		Document:    doc,
	}
	f.api.AddDashboard(d)
	return d
}

func TestService_GetSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cred := f.addCredential(t, "org-1", model.Account{ID: "acct-1"})
	f.addDashboard("dash-1", "Sales", "acct-1", model.DashboardDocument{"name": "Sales"})

	result, err := f.svc.BackupDashboard(ctx, "org-1", cred.ID, "dash-1")
	if err != nil {
		t.Fatalf("BackupDashboard() error = %v", err)
	}

	t.Run("returns metadata for an existing snapshot", func(t *testing.T) {
		snap, err := f.svc.GetSnapshot(ctx, "org-1", result.SnapshotID)
		if err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if snap.DashboardGUID != "dash-1" {
			t.Errorf("DashboardGUID = %q, want dash-1", snap.DashboardGUID)
		}
	})

	t.Run("unknown snapshot is NotFound", func(t *testing.T) {
		_, err := f.svc.GetSnapshot(ctx, "org-1", "nope")
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("error = %v, want NotFoundError", err)
		}
	})

	t.Run("foreign org is NotFound, not a leak", func(t *testing.T) {
		_, err := f.svc.GetSnapshot(ctx, "org-2", result.SnapshotID)
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("error = %v, want NotFoundError", err)
		}
	})

	t.Run("empty id is invalid input", func(t *testing.T) {
		_, err := f.svc.GetSnapshot(ctx, "org-1", "")
		var ii *core.InvalidInputError
		if !errors.As(err, &ii) {
			t.Errorf("error = %v, want InvalidInputError", err)
		}
	})
}

func TestService_GetBackupContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cred := f.addCredential(t, "org-1", model.Account{ID: "acct-1"})
	f.addDashboard("dash-1", "Sales", "acct-1", model.DashboardDocument{"name": "Sales", "pages": []any{}})

	result, err := f.svc.BackupDashboard(ctx, "org-1", cred.ID, "dash-1")
	if err != nil {
		t.Fatalf("BackupDashboard() error = %v", err)
	}

	t.Run("returns the stored payload", func(t *testing.T) {
		payload, err := f.svc.GetBackupContent(ctx, "org-1", result.SnapshotID)
		if err != nil {
			t.Fatalf("GetBackupContent() error = %v", err)
		}
		if int64(len(payload)) != result.SizeBytes {
			t.Errorf("len(payload) = %d, want %d", len(payload), result.SizeBytes)
		}

		snap, _ := f.svc.GetSnapshot(ctx, "org-1", result.SnapshotID)
		if got := testutil.SHA256Hex(payload); got != snap.Checksum {
			t.Errorf("checksum of payload = %q, want recorded %q", got, snap.Checksum)
		}
	})

	t.Run("content deleted out-of-band is NotFound", func(t *testing.T) {
		snap, _ := f.svc.GetSnapshot(ctx, "org-1", result.SnapshotID)
		f.blobs.Delete(snap.ContentLocation)

		_, err := f.svc.GetBackupContent(ctx, "org-1", result.SnapshotID)
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("error = %v, want NotFoundError", err)
		}
		if nf.Resource != "backup content" {
			t.Errorf("Resource = %q, want backup content", nf.Resource)
		}
	})
}

func TestService_ListOrgBackups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cred := f.addCredential(t, "org-1", model.Account{ID: "acct-1"})

	names := []string{"Sales Overview", "Ops Health", "Sales Detail"}
	for i, name := range names {
		guid := []string{"dash-a", "dash-b", "dash-c"}[i]
		f.addDashboard(guid, name, "acct-1", model.DashboardDocument{"name": name})
		if _, err := f.svc.BackupDashboard(ctx, "org-1", cred.ID, guid); err != nil {
			t.Fatalf("BackupDashboard(%s) error = %v", guid, err)
		}
		f.clock.Advance(time.Second)
	}

	t.Run("plain listing pages most recent first", func(t *testing.T) {
		page, err := f.svc.ListOrgBackups(ctx, "org-1", 1, 2, "")
		if err != nil {
			t.Fatalf("ListOrgBackups() error = %v", err)
		}
		if len(page.Data) != 2 {
			t.Fatalf("len(Data) = %d, want 2", len(page.Data))
		}
		if page.Data[0].DashboardName != "Sales Detail" {
			t.Errorf("first = %q, want Sales Detail", page.Data[0].DashboardName)
		}
		if !page.Pagination.HasNext {
			t.Error("HasNext = false, want true")
		}
	})

	t.Run("search filters by substring", func(t *testing.T) {
		page, err := f.svc.ListOrgBackups(ctx, "org-1", 1, 10, "sales")
		if err != nil {
			t.Fatalf("ListOrgBackups() error = %v", err)
		}
		if len(page.Data) != 2 {
			t.Fatalf("len(Data) = %d, want 2", len(page.Data))
		}
		for _, s := range page.Data {
			if s.DashboardName == "Ops Health" {
				t.Errorf("search returned non-matching %q", s.DashboardName)
			}
		}
	})

	t.Run("defaults applied for zero page and limit", func(t *testing.T) {
		page, err := f.svc.ListOrgBackups(ctx, "org-1", 0, 0, "")
		if err != nil {
			t.Fatalf("ListOrgBackups() error = %v", err)
		}
		if page.Pagination.Page != 1 || page.Pagination.Limit != 20 {
			t.Errorf("pagination = %+v, want page 1 limit 20", page.Pagination)
		}
	})

	t.Run("negative paging is invalid input", func(t *testing.T) {
		_, err := f.svc.ListOrgBackups(ctx, "org-1", -1, 10, "")
		var ii *core.InvalidInputError
		if !errors.As(err, &ii) {
			t.Errorf("error = %v, want InvalidInputError", err)
		}
	})
}

func TestService_GetStorageStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cred := f.addCredential(t, "org-1", model.Account{ID: "acct-1"})

	f.addDashboard("dash-1", "One", "acct-1", model.DashboardDocument{"name": "One"})
	f.addDashboard("dash-2", "Two", "acct-1", model.DashboardDocument{"name": "Two", "pages": []any{}})

	first, err := f.svc.BackupDashboard(ctx, "org-1", cred.ID, "dash-1")
	if err != nil {
		t.Fatalf("BackupDashboard() error = %v", err)
	}
	f.clock.Advance(time.Hour)
	second, err := f.svc.BackupDashboard(ctx, "org-1", cred.ID, "dash-2")
	if err != nil {
		t.Fatalf("BackupDashboard() error = %v", err)
	}

	stats, err := f.svc.GetStorageStats(ctx, "org-1")
	if err != nil {
		t.Fatalf("GetStorageStats() error = %v", err)
	}
	if stats.TotalBackups != 2 {
		t.Errorf("TotalBackups = %d, want 2", stats.TotalBackups)
	}
	if want := first.SizeBytes + second.SizeBytes; stats.TotalSizeBytes != want {
		t.Errorf("TotalSizeBytes = %d, want %d", stats.TotalSizeBytes, want)
	}
	if stats.OldestBackup == nil || !stats.OldestBackup.Equal(first.BackupTimestamp) {
		t.Errorf("OldestBackup = %v, want %v", stats.OldestBackup, first.BackupTimestamp)
	}
	if stats.NewestBackup == nil || !stats.NewestBackup.Equal(second.BackupTimestamp) {
		t.Errorf("NewestBackup = %v, want %v", stats.NewestBackup, second.BackupTimestamp)
	}
}

// readBlob fetches a blob's bytes directly from the store.
func readBlob(t *testing.T, store core.BlobStore, key string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := store.Get(context.Background(), key, &buf); err != nil {
		t.Fatalf("blob Get(%s) error = %v", key, err)
	}
	return buf.Bytes()
}

// failingBlobStore rejects every write.
type failingBlobStore struct {
	*blob.MemoryStore
}

func (f *failingBlobStore) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("blob backend is down")
}
