// Package secrets persists named hashed secrets and named configuration
// documents. Each key holds a single authoritative record; updates are
// upserts and secrets are deactivated rather than deleted.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrSecretNotFound   = errors.New("secret not found")
	ErrDocumentNotFound = errors.New("config document not found")
)

type HashedSecret struct {
	Key    string
	Hash   string
	SetBy  string
	SetAt  time.Time
	Active bool
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) GetSecret(ctx context.Context, key string) (*HashedSecret, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, hash, set_by, set_at, active FROM system_secrets WHERE key = $1`, key)

	var sec HashedSecret
	if err := row.Scan(&sec.Key, &sec.Hash, &sec.SetBy, &sec.SetAt, &sec.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("query secret: %w", err)
	}
	return &sec, nil
}

// UpsertSecret overwrites any previous record for the key. No history is
// retained by design.
func (s *PgStore) UpsertSecret(ctx context.Context, sec HashedSecret) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO system_secrets (key, hash, set_by, set_at, active)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE
		 SET hash = EXCLUDED.hash, set_by = EXCLUDED.set_by,
		     set_at = EXCLUDED.set_at, active = EXCLUDED.active`,
		sec.Key, sec.Hash, sec.SetBy, sec.SetAt, sec.Active)
	if err != nil {
		return fmt.Errorf("upsert secret: %w", err)
	}
	return nil
}

func (s *PgStore) SetSecretActive(ctx context.Context, key string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE system_secrets SET active = $2 WHERE key = $1`, key, active)
	if err != nil {
		return fmt.Errorf("update secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSecretNotFound
	}
	return nil
}

func (s *PgStore) GetDocument(ctx context.Context, name string, out any) error {
	var raw []byte
	row := s.pool.QueryRow(ctx,
		`SELECT doc FROM config_documents WHERE name = $1`, name)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("query document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document %q: %w", name, err)
	}
	return nil
}

func (s *PgStore) UpsertDocument(ctx context.Context, name string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %q: %w", name, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO config_documents (name, doc, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		name, raw)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteDocument(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM config_documents WHERE name = $1`, name); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
