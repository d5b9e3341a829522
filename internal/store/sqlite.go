package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hautor/secretos/internal/config"
	"github.com/hautor/secretos/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/secretos.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/secretos.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
// created_at is stored as unix milliseconds so that ordering and the
// grace-window comparison never depend on string formatting.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS secrets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		audio_ref TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		delivered INTEGER NOT NULL DEFAULT 0,
		delivered_to TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS audio_blobs (
		ref TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_secrets_claim ON secrets(delivered, created_at, id);
	CREATE INDEX IF NOT EXISTS idx_secrets_owner ON secrets(owner);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert appends a new available secret and returns its id.
func (s *SQLiteStore) Insert(ctx context.Context, kind models.Kind, body, audioRef, owner string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (kind, body, audio_ref, owner, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(kind), body, audioRef, owner, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ClaimOldestEligible selects the oldest eligible secret for the
// requester. Under the claim-once policy the selection and the
// delivered transition are a single UPDATE statement, which SQLite
// executes atomically: of two racing callers, one flips the row and
// the other's subquery no longer sees it.
func (s *SQLiteStore) ClaimOldestEligible(ctx context.Context, q ClaimQuery) (*models.Secret, error) {
	cutoff := time.Now().Add(-q.MinAge).UnixMilli()

	var row *sql.Row
	if q.Policy == config.PolicyPermanent {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, kind, body, audio_ref, owner, created_at, delivered, delivered_to
			FROM secrets
			WHERE owner != ? AND id != ? AND created_at <= ?
			ORDER BY created_at, id
			LIMIT 1
		`, q.Requester, q.ExcludeID, cutoff)
	} else {
		row = s.db.QueryRowContext(ctx, `
			UPDATE secrets
			SET delivered = 1, delivered_to = ?
			WHERE id = (
				SELECT id FROM secrets
				WHERE delivered = 0 AND owner != ? AND id != ? AND created_at <= ?
				ORDER BY created_at, id
				LIMIT 1
			) AND delivered = 0
			RETURNING id, kind, body, audio_ref, owner, created_at, delivered, delivered_to
		`, q.Requester, q.Requester, q.ExcludeID, cutoff)
	}

	return scanSecretRow(row)
}

func scanSecretRow(row *sql.Row) (*models.Secret, error) {
	secret := &models.Secret{}
	var kind string
	var createdAt int64
	var delivered int
	err := row.Scan(
		&secret.ID,
		&kind,
		&secret.Body,
		&secret.AudioRef,
		&secret.Owner,
		&createdAt,
		&delivered,
		&secret.DeliveredTo,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	secret.Kind = models.Kind(kind)
	secret.CreatedAt = time.UnixMilli(createdAt)
	secret.Delivered = delivered == 1
	return secret, nil
}

// SaveAudio stores an immutable audio payload under the given reference.
func (s *SQLiteStore) SaveAudio(ctx context.Context, ref string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audio_blobs (ref, data, created_at)
		VALUES (?, ?, ?)
	`, ref, data, time.Now().UnixMilli())
	return err
}

// FetchAudio retrieves an audio payload by reference.
func (s *SQLiteStore) FetchAudio(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM audio_blobs WHERE ref = ?
	`, ref).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// DeleteAudio removes an audio payload by reference.
func (s *SQLiteStore) DeleteAudio(ctx context.Context, ref string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM audio_blobs WHERE ref = ?`, ref)
	return err
}

// CountAvailable returns the number of undelivered secrets not authored
// by the given owner.
func (s *SQLiteStore) CountAvailable(ctx context.Context, excludingOwner string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM secrets WHERE delivered = 0 AND owner != ?
	`, excludingOwner).Scan(&count)
	return count, err
}

// CountTotal returns the total number of secrets ever created.
func (s *SQLiteStore) CountTotal(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&count)
	return count, err
}

// CountDelivered returns the number of secrets already delivered.
func (s *SQLiteStore) CountDelivered(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets WHERE delivered = 1`).Scan(&count)
	return count, err
}
