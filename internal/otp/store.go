package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the Postgres-backed CodeStore. Single-use enforcement relies
// on the conditional UPDATE in Consume: under concurrent verifications only
// one statement matches the unconsumed row.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Latest(ctx context.Context, identity string) (*Code, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT identity, code_hash, created_at, expires_at, consumed
		 FROM one_time_codes
		 WHERE identity = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, identity)

	var c Code
	if err := row.Scan(&c.Identity, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.Consumed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("query code: %w", err)
	}
	return &c, nil
}

func (s *PgStore) Insert(ctx context.Context, code Code) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO one_time_codes (identity, code_hash, created_at, expires_at, consumed)
		 VALUES ($1, $2, $3, $4, false)`,
		code.Identity, code.CodeHash, code.CreatedAt, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert code: %w", err)
	}
	return nil
}

func (s *PgStore) ConsumeOutstanding(ctx context.Context, identity string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE one_time_codes SET consumed = true
		 WHERE identity = $1 AND consumed = false`, identity)
	if err != nil {
		return fmt.Errorf("consume outstanding codes: %w", err)
	}
	return nil
}

func (s *PgStore) Consume(ctx context.Context, identity, codeHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE one_time_codes SET consumed = true
		 WHERE identity = $1 AND code_hash = $2 AND consumed = false`,
		identity, codeHash)
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PgStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM one_time_codes WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
