package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"skillscape/internal/domain"
)

const uniqueViolation = "23505"

const credentialColumns = `uid, COALESCE(email, ''), password_hash, display_name, provider, COALESCE(subject, ''), created_at, updated_at`

// CredentialStore keeps identity provider accounts in the identities table.
type CredentialStore struct {
	pool *pgxpool.Pool
}

func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

func (s *CredentialStore) CreateCredential(ctx context.Context, cred domain.Credential) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO identities (uid, email, password_hash, display_name, provider, subject, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''), $7, $8)`,
		cred.UID, cred.Email, cred.PasswordHash, cred.DisplayName, cred.Provider, cred.Subject, cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrIdentityExists
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *CredentialStore) CredentialByEmail(ctx context.Context, email string) (domain.Credential, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM identities WHERE email=$1`, email)
	return scanCredential(row)
}

func (s *CredentialStore) CredentialBySubject(ctx context.Context, provider, subject string) (domain.Credential, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM identities WHERE provider=$1 AND subject=$2`, provider, subject)
	return scanCredential(row)
}

func (s *CredentialStore) UpdateDisplayName(ctx context.Context, uid, displayName string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE identities SET display_name=$2, updated_at=$3 WHERE uid=$1`, uid, displayName, at)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func scanCredential(row pgx.Row) (domain.Credential, error) {
	var cred domain.Credential
	err := row.Scan(&cred.UID, &cred.Email, &cred.PasswordHash, &cred.DisplayName, &cred.Provider, &cred.Subject, &cred.CreatedAt, &cred.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Credential{}, domain.ErrIdentityNotFound
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("scan identity: %w", err)
	}
	return cred, nil
}
