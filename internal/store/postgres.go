package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hautor/secretos/internal/config"
	"github.com/hautor/secretos/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS secrets (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		kind TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		audio_ref TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		delivered BOOLEAN NOT NULL DEFAULT FALSE,
		delivered_to TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS audio_blobs (
		ref TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_secrets_claim ON secrets(delivered, created_at, id);
	CREATE INDEX IF NOT EXISTS idx_secrets_owner ON secrets(owner);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Insert appends a new available secret and returns its id.
func (s *PostgresStore) Insert(ctx context.Context, kind models.Kind, body, audioRef, owner string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO secrets (kind, body, audio_ref, owner)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, string(kind), body, audioRef, owner).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ClaimOldestEligible selects the oldest eligible secret for the
// requester. Under the claim-once policy the inner SELECT takes a row
// lock with SKIP LOCKED, so two racing callers claim distinct rows and
// the loser of a race falls through to the next-oldest eligible secret.
func (s *PostgresStore) ClaimOldestEligible(ctx context.Context, q ClaimQuery) (*models.Secret, error) {
	cutoff := time.Now().Add(-q.MinAge)

	var row pgx.Row
	if q.Policy == config.PolicyPermanent {
		row = s.pool.QueryRow(ctx, `
			SELECT id, kind, body, audio_ref, owner, created_at, delivered, delivered_to
			FROM secrets
			WHERE owner != $1 AND id != $2 AND created_at <= $3
			ORDER BY created_at, id
			LIMIT 1
		`, q.Requester, q.ExcludeID, cutoff)
	} else {
		row = s.pool.QueryRow(ctx, `
			UPDATE secrets
			SET delivered = TRUE, delivered_to = $1
			WHERE id = (
				SELECT id FROM secrets
				WHERE delivered = FALSE AND owner != $2 AND id != $3 AND created_at <= $4
				ORDER BY created_at, id
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			) AND delivered = FALSE
			RETURNING id, kind, body, audio_ref, owner, created_at, delivered, delivered_to
		`, q.Requester, q.Requester, q.ExcludeID, cutoff)
	}

	secret := &models.Secret{}
	var kind string
	err := row.Scan(
		&secret.ID,
		&kind,
		&secret.Body,
		&secret.AudioRef,
		&secret.Owner,
		&secret.CreatedAt,
		&secret.Delivered,
		&secret.DeliveredTo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	secret.Kind = models.Kind(kind)
	return secret, nil
}

// SaveAudio stores an immutable audio payload under the given reference.
func (s *PostgresStore) SaveAudio(ctx context.Context, ref string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audio_blobs (ref, data)
		VALUES ($1, $2)
	`, ref, data)
	return err
}

// FetchAudio retrieves an audio payload by reference.
func (s *PostgresStore) FetchAudio(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM audio_blobs WHERE ref = $1
	`, ref).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("audio %s: %w", ref, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// DeleteAudio removes an audio payload by reference.
func (s *PostgresStore) DeleteAudio(ctx context.Context, ref string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM audio_blobs WHERE ref = $1`, ref)
	return err
}

// CountAvailable returns the number of undelivered secrets not authored
// by the given owner.
func (s *PostgresStore) CountAvailable(ctx context.Context, excludingOwner string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM secrets WHERE delivered = FALSE AND owner != $1
	`, excludingOwner).Scan(&count)
	return count, err
}

// CountTotal returns the total number of secrets ever created.
func (s *PostgresStore) CountTotal(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&count)
	return count, err
}

// CountDelivered returns the number of secrets already delivered.
func (s *PostgresStore) CountDelivered(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM secrets WHERE delivered = TRUE`).Scan(&count)
	return count, err
}
