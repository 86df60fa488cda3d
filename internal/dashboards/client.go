// Package dashboards implements the GraphQL client for the external
// observability platform's dashboard API.
package dashboards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dashkeep/internal/core"
	"dashkeep/internal/model"
)

// serviceName tags every error this client produces.
const serviceName = "dashboard-api"

const listDashboardsQuery = `
query ListDashboards($accountId: String!, $cursor: String) {
  actor {
    dashboardSearch(accountId: $accountId, cursor: $cursor) {
      nextCursor
      dashboards {
        guid
        name
        accountId
        updatedAt
      }
    }
  }
}`

const getDashboardQuery = `
query GetDashboard($guid: String!) {
  actor {
    entity(guid: $guid) {
      guid
      name
      accountId
      accountName
      ownerEmail
      updatedAt
      dashboard
    }
  }
}`

const createDashboardMutation = `
mutation CreateDashboard($accountId: String!, $dashboard: DashboardInput!) {
  dashboardCreate(accountId: $accountId, dashboard: $dashboard) {
    entityResult {
      guid
    }
    errors {
      description
    }
  }
}`

const updateDashboardMutation = `
mutation UpdateDashboard($guid: String!, $dashboard: DashboardInput!) {
  dashboardUpdate(guid: $guid, dashboard: $dashboard) {
    errors {
      description
    }
  }
}`

const validateCredentialQuery = `
query ValidateCredential {
  actor {
    accounts {
      id
      name
    }
  }
}`

// Client is a DashboardAPI implementation speaking GraphQL over HTTP.
// Each client is bound to one API key; build clients through the Factory.
type Client struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
}

var _ core.DashboardAPI = (*Client)(nil)

// ListDashboards enumerates all dashboards in one account, following the
// server-side cursor until exhausted.
func (c *Client) ListDashboards(ctx context.Context, accountID string) ([]*model.DashboardSummary, error) {
	var summaries []*model.DashboardSummary
	var cursor *string

	for {
		variables := map[string]any{"accountId": accountID}
		if cursor != nil {
			variables["cursor"] = *cursor
		}

		var resp struct {
			Actor struct {
				DashboardSearch struct {
					NextCursor *string `json:"nextCursor"`
					Dashboards []struct {
						GUID      string    `json:"guid"`
						Name      string    `json:"name"`
						AccountID string    `json:"accountId"`
						UpdatedAt time.Time `json:"updatedAt"`
					} `json:"dashboards"`
				} `json:"dashboardSearch"`
			} `json:"actor"`
		}
		if err := c.do(ctx, listDashboardsQuery, variables, &resp); err != nil {
			return nil, err
		}

		for _, d := range resp.Actor.DashboardSearch.Dashboards {
			summaries = append(summaries, &model.DashboardSummary{
				GUID:      d.GUID,
				Name:      d.Name,
				AccountID: d.AccountID,
				UpdatedAt: d.UpdatedAt,
			})
		}

		cursor = resp.Actor.DashboardSearch.NextCursor
		if cursor == nil || *cursor == "" {
			break
		}
	}

	return summaries, nil
}

// GetDashboard fetches a dashboard's full detail, or nil, nil if the entity
// does not exist.
func (c *Client) GetDashboard(ctx context.Context, guid string) (*model.DashboardDetail, error) {
	var resp struct {
		Actor struct {
			Entity *struct {
				GUID        string                  `json:"guid"`
				Name        string                  `json:"name"`
				AccountID   string                  `json:"accountId"`
				AccountName string                  `json:"accountName"`
				OwnerEmail  string                  `json:"ownerEmail"`
				UpdatedAt   time.Time               `json:"updatedAt"`
				Dashboard   model.DashboardDocument `json:"dashboard"`
			} `json:"entity"`
		} `json:"actor"`
	}
	if err := c.do(ctx, getDashboardQuery, map[string]any{"guid": guid}, &resp); err != nil {
		return nil, err
	}

	entity := resp.Actor.Entity
	if entity == nil {
		return nil, nil
	}

	return &model.DashboardDetail{
		GUID:        entity.GUID,
		Name:        entity.Name,
		AccountID:   entity.AccountID,
		AccountName: entity.AccountName,
		OwnerEmail:  entity.OwnerEmail,
		UpdatedAt:   entity.UpdatedAt,
		Document:    entity.Dashboard,
	}, nil
}

// CreateDashboard creates a new dashboard and returns its GUID.
func (c *Client) CreateDashboard(ctx context.Context, accountID string, doc model.DashboardDocument) (string, error) {
	variables := map[string]any{
		"accountId": accountID,
		"dashboard": doc,
	}

	var resp struct {
		DashboardCreate struct {
			EntityResult *struct {
				GUID string `json:"guid"`
			} `json:"entityResult"`
			Errors []struct {
				Description string `json:"description"`
			} `json:"errors"`
		} `json:"dashboardCreate"`
	}
	if err := c.do(ctx, createDashboardMutation, variables, &resp); err != nil {
		return "", err
	}

	if len(resp.DashboardCreate.Errors) > 0 {
		return "", &core.ExternalServiceError{
			Service: serviceName,
			Err:     fmt.Errorf("dashboard create rejected: %s", resp.DashboardCreate.Errors[0].Description),
		}
	}
	if resp.DashboardCreate.EntityResult == nil || resp.DashboardCreate.EntityResult.GUID == "" {
		return "", &core.ExternalServiceError{
			Service: serviceName,
			Err:     errors.New("dashboard create returned no entity"),
		}
	}

	return resp.DashboardCreate.EntityResult.GUID, nil
}

// UpdateDashboard overwrites an existing dashboard's configuration.
func (c *Client) UpdateDashboard(ctx context.Context, guid string, doc model.DashboardDocument) error {
	variables := map[string]any{
		"guid":      guid,
		"dashboard": doc,
	}

	var resp struct {
		DashboardUpdate struct {
			Errors []struct {
				Description string `json:"description"`
			} `json:"errors"`
		} `json:"dashboardUpdate"`
	}
	if err := c.do(ctx, updateDashboardMutation, variables, &resp); err != nil {
		return err
	}

	if len(resp.DashboardUpdate.Errors) > 0 {
		return &core.ExternalServiceError{
			Service: serviceName,
			Err:     fmt.Errorf("dashboard update rejected: %s", resp.DashboardUpdate.Errors[0].Description),
		}
	}

	return nil
}

// ValidateCredential checks the API key by enumerating the accounts it can
// access. An unauthorized key yields Valid=false, not an error.
func (c *Client) ValidateCredential(ctx context.Context) (*model.CredentialValidation, error) {
	var resp struct {
		Actor struct {
			Accounts []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"accounts"`
		} `json:"actor"`
	}
	if err := c.do(ctx, validateCredentialQuery, nil, &resp); err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && (statusErr.code == http.StatusUnauthorized || statusErr.code == http.StatusForbidden) {
			return &model.CredentialValidation{Valid: false}, nil
		}
		return nil, err
	}

	accounts := make([]model.Account, 0, len(resp.Actor.Accounts))
	for _, a := range resp.Actor.Accounts {
		accounts = append(accounts, model.Account{ID: a.ID, Name: a.Name})
	}

	return &model.CredentialValidation{Valid: true, Accounts: accounts}, nil
}

// statusError is a non-2xx HTTP response from the GraphQL endpoint.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// graphqlRequest is the standard GraphQL-over-HTTP request body.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL-over-HTTP response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do executes one GraphQL request and decodes the data envelope into out.
// Every failure path comes back as an ExternalServiceError.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return &core.ExternalServiceError{Service: serviceName, Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &core.ExternalServiceError{Service: serviceName, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &core.ExternalServiceError{Service: serviceName, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &core.ExternalServiceError{Service: serviceName, Err: &statusError{code: resp.StatusCode}}
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &core.ExternalServiceError{Service: serviceName, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if len(envelope.Errors) > 0 {
		return &core.ExternalServiceError{
			Service: serviceName,
			Err:     fmt.Errorf("graphql error: %s", envelope.Errors[0].Message),
		}
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &core.ExternalServiceError{Service: serviceName, Err: fmt.Errorf("decoding data: %w", err)}
		}
	}

	return nil
}
