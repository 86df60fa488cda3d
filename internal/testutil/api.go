package testutil

import (
	"context"
	"fmt"
	"sync"

	"dashkeep/internal/core"
	"dashkeep/internal/model"
)

// FakeDashboardAPI is a configurable in-memory DashboardAPI for testing.
// Populate Dashboards before use; mutations record what they were given.
type FakeDashboardAPI struct {
	mu sync.Mutex

	// Dashboards holds the fake platform state, keyed by GUID.
	Dashboards map[string]*model.DashboardDetail

	// Validation is returned by ValidateCredential. Defaults to valid with
	// no accounts when nil.
	Validation *model.CredentialValidation

	// Error overrides. When set, the corresponding method fails.
	ListErr     error
	GetErr      error
	CreateErr   error
	UpdateErr   error
	ValidateErr error

	// FailGUIDs makes GetDashboard fail for specific dashboards only.
	FailGUIDs map[string]error

	// CreatedDocs records CreateDashboard calls in order.
	CreatedDocs []model.DashboardDocument
	// CreatedAccounts records the account each created dashboard targeted.
	CreatedAccounts []string
	// UpdatedDocs records UpdateDashboard calls by GUID.
	UpdatedDocs map[string]model.DashboardDocument

	created int
}

var _ core.DashboardAPI = (*FakeDashboardAPI)(nil)

// NewFakeDashboardAPI creates an empty FakeDashboardAPI.
func NewFakeDashboardAPI() *FakeDashboardAPI {
	return &FakeDashboardAPI{
		Dashboards:  make(map[string]*model.DashboardDetail),
		UpdatedDocs: make(map[string]model.DashboardDocument),
		FailGUIDs:   make(map[string]error),
	}
}

// AddDashboard registers a dashboard with the fake platform.
func (f *FakeDashboardAPI) AddDashboard(d *model.DashboardDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Dashboards[d.GUID] = d
}

func (f *FakeDashboardAPI) ListDashboards(ctx context.Context, accountID string) ([]*model.DashboardSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	var summaries []*model.DashboardSummary
	for _, d := range f.Dashboards {
		if d.AccountID != accountID {
			continue
		}
		summaries = append(summaries, &model.DashboardSummary{
			GUID:      d.GUID,
			Name:      d.Name,
			AccountID: d.AccountID,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return summaries, nil
}

func (f *FakeDashboardAPI) GetDashboard(ctx context.Context, guid string) (*model.DashboardDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}
	if err, ok := f.FailGUIDs[guid]; ok {
		return nil, err
	}
	d, ok := f.Dashboards[guid]
	if !ok {
		return nil, nil
	}
	return d, nil
}

func (f *FakeDashboardAPI) CreateDashboard(ctx context.Context, accountID string, doc model.DashboardDocument) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return "", f.CreateErr
	}

	f.created++
	guid := fmt.Sprintf("new-guid-%d", f.created)
	f.CreatedDocs = append(f.CreatedDocs, doc)
	f.CreatedAccounts = append(f.CreatedAccounts, accountID)
	return guid, nil
}

func (f *FakeDashboardAPI) UpdateDashboard(ctx context.Context, guid string, doc model.DashboardDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.UpdatedDocs[guid] = doc
	return nil
}

func (f *FakeDashboardAPI) ValidateCredential(ctx context.Context) (*model.CredentialValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ValidateErr != nil {
		return nil, f.ValidateErr
	}
	if f.Validation != nil {
		return f.Validation, nil
	}
	return &model.CredentialValidation{Valid: true}, nil
}

// FakeAPIFactory hands out the same FakeDashboardAPI for every key and
// records the keys it was asked for.
type FakeAPIFactory struct {
	mu   sync.Mutex
	API  *FakeDashboardAPI
	Keys []string
}

var _ core.APIClientFactory = (*FakeAPIFactory)(nil)

// NewFakeAPIFactory creates a factory serving the given fake API.
func NewFakeAPIFactory(api *FakeDashboardAPI) *FakeAPIFactory {
	return &FakeAPIFactory{API: api}
}

func (f *FakeAPIFactory) ClientForKey(apiKey string) core.DashboardAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Keys = append(f.Keys, apiKey)
	return f.API
}
