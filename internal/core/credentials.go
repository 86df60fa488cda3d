package core

import (
	"context"
	"fmt"

	"dashkeep/internal/model"
)

// CreateCredential validates an API key against the external platform,
// stores the raw key in the secret store, and persists a credential record
// with the discovered account list. The raw key never reaches the
// repository.
func (s *Service) CreateCredential(ctx context.Context, orgID, name, apiKey string) (*model.Credential, error) {
	if apiKey == "" {
		return nil, &InvalidInputError{Reason: "api key is required"}
	}
	if name == "" {
		return nil, &InvalidInputError{Reason: "credential name is required"}
	}

	validation, err := s.api.ClientForKey(apiKey).ValidateCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("validating api key: %w", err)
	}
	if !validation.Valid {
		return nil, &InvalidInputError{Reason: "api key was rejected by the dashboard service"}
	}

	id := s.idgen.New()
	secretID := "apikey-" + id

	if err := s.secrets.Put(ctx, secretID, apiKey); err != nil {
		return nil, fmt.Errorf("storing api key: %w", err)
	}

	cred := &model.Credential{
		ID:        id,
		OrgID:     orgID,
		Name:      name,
		SecretID:  secretID,
		Accounts:  validation.Accounts,
		Status:    model.CredentialActive,
		CreatedAt: s.clock.Now(),
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		// Don't leave a secret behind without a record pointing at it.
		if derr := s.secrets.Delete(ctx, secretID); derr != nil {
			s.logger.Warn("orphaned secret cleanup failed", "secretId", secretID, "error", derr.Error())
		}
		return nil, fmt.Errorf("recording credential: %w", err)
	}

	s.logger.Info("credential created", "credentialId", id, "accounts", len(validation.Accounts))
	return cred, nil
}

// GetCredential returns a credential record scoped to the org.
func (s *Service) GetCredential(ctx context.Context, orgID, credentialID string) (*model.Credential, error) {
	cred, err := s.credentials.FindByID(ctx, orgID, credentialID)
	if err != nil {
		return nil, fmt.Errorf("loading credential: %w", err)
	}
	if cred == nil {
		return nil, &NotFoundError{Resource: "credential", ID: credentialID}
	}
	return cred, nil
}

// ListCredentials returns all credential records for the org.
func (s *Service) ListCredentials(ctx context.Context, orgID string) ([]*model.Credential, error) {
	creds, err := s.credentials.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	return creds, nil
}

// RevalidateCredential re-checks the stored key against the platform and
// refreshes the credential's account list and status.
func (s *Service) RevalidateCredential(ctx context.Context, orgID, credentialID string) (*model.Credential, error) {
	cred, err := s.GetCredential(ctx, orgID, credentialID)
	if err != nil {
		return nil, err
	}

	apiKey, err := s.secrets.Get(ctx, cred.SecretID)
	if err != nil {
		return nil, &NotFoundError{Resource: "credential secret", ID: cred.SecretID}
	}

	validation, err := s.api.ClientForKey(apiKey).ValidateCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("validating api key: %w", err)
	}

	if validation.Valid {
		cred.Status = model.CredentialActive
		cred.Accounts = validation.Accounts
	} else {
		cred.Status = model.CredentialInvalid
	}
	if err := s.credentials.Update(ctx, cred); err != nil {
		return nil, fmt.Errorf("updating credential: %w", err)
	}

	s.logger.Info("credential revalidated", "credentialId", credentialID, "status", cred.Status)
	return cred, nil
}

// DeleteCredential removes the credential record and its stored secret.
func (s *Service) DeleteCredential(ctx context.Context, orgID, credentialID string) error {
	cred, err := s.GetCredential(ctx, orgID, credentialID)
	if err != nil {
		return err
	}

	if err := s.credentials.Delete(ctx, orgID, credentialID); err != nil {
		return fmt.Errorf("deleting credential record: %w", err)
	}
	if err := s.secrets.Delete(ctx, cred.SecretID); err != nil {
		s.logger.Warn("secret deletion failed", "secretId", cred.SecretID, "error", err.Error())
	}

	s.logger.Info("credential deleted", "credentialId", credentialID)
	return nil
}
