package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dashkeep/internal/core"
	"dashkeep/internal/model"
	"dashkeep/internal/table"
)

// CredentialRepository persists credential metadata as APIKEY records.
// The raw API key never appears in a record; only the secret-store
// identifier does.
type CredentialRepository struct {
	store table.Store
}

// NewCredentialRepository creates a repository over the given store.
func NewCredentialRepository(store table.Store) *CredentialRepository {
	return &CredentialRepository{store: store}
}

// credentialAttrs is the JSON document stored in an APIKEY record.
type credentialAttrs struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"orgId"`
	Name           string          `json:"name"`
	SecretID       string          `json:"secretId"`
	Accounts       []model.Account `json:"accounts"`
	Status         string          `json:"status"`
	DashboardCount int64           `json:"dashboardCount"`
	LastBackupAt   *time.Time      `json:"lastBackupAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func decodeCredential(rec table.Record) (*model.Credential, error) {
	var a credentialAttrs
	if err := json.Unmarshal(rec.Attributes, &a); err != nil {
		return nil, fmt.Errorf("decoding credential record %s/%s: %w", rec.PK, rec.SK, err)
	}
	cred := model.Credential(a)
	return &cred, nil
}

func (r *CredentialRepository) put(ctx context.Context, cred *model.Credential, op string) error {
	attrs, err := json.Marshal(credentialAttrs(*cred))
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	rec := table.Record{
		PK:         orgPK(cred.OrgID),
		SK:         credentialSK(cred.ID),
		EntityType: table.EntityAPIKey,
		GSI2PK:     credentialSK(cred.ID),
		Attributes: attrs,
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return &core.StorageUnavailableError{Op: op, Err: err}
	}
	return nil
}

// Create persists a new credential record.
func (r *CredentialRepository) Create(ctx context.Context, cred *model.Credential) error {
	return r.put(ctx, cred, "create credential")
}

// Update replaces the credential record.
func (r *CredentialRepository) Update(ctx context.Context, cred *model.Credential) error {
	return r.put(ctx, cred, "update credential")
}

// FindByID returns the credential scoped to the org, or nil, nil.
func (r *CredentialRepository) FindByID(ctx context.Context, orgID, credentialID string) (*model.Credential, error) {
	rec, err := r.store.Get(ctx, orgPK(orgID), credentialSK(credentialID))
	if err != nil {
		return nil, &core.StorageUnavailableError{Op: "find credential", Err: err}
	}
	if rec == nil {
		return nil, nil
	}
	return decodeCredential(*rec)
}

// FindByCredentialID resolves a credential by its own identifier through
// the reverse-lookup index, without knowing the org up front.
func (r *CredentialRepository) FindByCredentialID(ctx context.Context, credentialID string) (*model.Credential, error) {
	page, err := r.store.Query(ctx, table.Query{
		Index:     table.IndexGSI2,
		Partition: credentialSK(credentialID),
		Limit:     1,
	})
	if err != nil {
		return nil, &core.StorageUnavailableError{Op: "find credential", Err: err}
	}
	if len(page.Records) == 0 {
		return nil, nil
	}
	return decodeCredential(page.Records[0])
}

// ListByOrg returns all credentials for the org.
func (r *CredentialRepository) ListByOrg(ctx context.Context, orgID string) ([]*model.Credential, error) {
	q := table.Query{
		Partition:  orgPK(orgID),
		SortPrefix: credentialPrefix,
	}

	var out []*model.Credential
	for {
		page, err := r.store.Query(ctx, q)
		if err != nil {
			return nil, &core.StorageUnavailableError{Op: "list credentials", Err: err}
		}
		for _, rec := range page.Records {
			cred, err := decodeCredential(rec)
			if err != nil {
				return nil, err
			}
			out = append(out, cred)
		}
		if page.NextCursor == "" {
			return out, nil
		}
		q.Cursor = page.NextCursor
	}
}

// Delete removes the credential record.
func (r *CredentialRepository) Delete(ctx context.Context, orgID, credentialID string) error {
	if err := r.store.Delete(ctx, orgPK(orgID), credentialSK(credentialID)); err != nil {
		return &core.StorageUnavailableError{Op: "delete credential", Err: err}
	}
	return nil
}

// Compile-time check that CredentialRepository implements the service contract.
var _ core.CredentialRepository = (*CredentialRepository)(nil)
