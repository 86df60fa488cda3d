package core

import (
	"context"

	"dashkeep/internal/model"
)

// DashboardAPI talks to the third-party observability platform on behalf of
// one credential. Every method is a potential wait point: the external
// GraphQL endpoint can be slow for accounts with many dashboards or pages,
// so callers pass a context and enforce their own deadlines.
//
// Transport, protocol, and GraphQL-level failures all surface as
// ExternalServiceError tagged with the service name.
type DashboardAPI interface {
	// ListDashboards enumerates the dashboards in one account.
	ListDashboards(ctx context.Context, accountID string) ([]*model.DashboardSummary, error)

	// GetDashboard fetches a dashboard's full detail.
	// Returns nil, nil when the dashboard does not exist.
	GetDashboard(ctx context.Context, guid string) (*model.DashboardDetail, error)

	// CreateDashboard creates a brand-new dashboard in the given account
	// and returns its new GUID. Not idempotent; callers must never blindly
	// retry this mutation.
	CreateDashboard(ctx context.Context, accountID string, doc model.DashboardDocument) (string, error)

	// UpdateDashboard overwrites an existing dashboard's configuration.
	UpdateDashboard(ctx context.Context, guid string, doc model.DashboardDocument) error

	// ValidateCredential checks the credential and enumerates the accounts
	// it can access. An unauthorized key yields Valid=false, not an error.
	ValidateCredential(ctx context.Context) (*model.CredentialValidation, error)
}

// APIClientFactory builds DashboardAPI clients bound to a raw API key.
type APIClientFactory interface {
	ClientForKey(apiKey string) DashboardAPI
}
