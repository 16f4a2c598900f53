package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/campaign-autopilot/cap/internal/models"
)

// CredentialStore reads store access credentials. Issuance and refresh are
// external; the engine only consumes them.
type CredentialStore struct {
	client *Client
}

// NewCredentialStore creates a new credential store
func NewCredentialStore(client *Client) *CredentialStore {
	return &CredentialStore{client: client}
}

// Get returns the credentials for one store, or ErrCredentialsNotFound.
func (s *CredentialStore) Get(ctx context.Context, storeID string) (models.Credentials, error) {
	query := `
		SELECT store_id, access_token, region
		FROM store_credentials
		WHERE store_id = $1 AND revoked_at IS NULL`

	var creds models.Credentials
	err := s.client.Pool().QueryRow(ctx, query, storeID).Scan(
		&creds.StoreID, &creds.AccessToken, &creds.Region,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.Credentials{}, models.ErrCredentialsNotFound
		}
		return models.Credentials{}, err
	}
	return creds, nil
}
