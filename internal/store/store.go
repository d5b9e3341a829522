package store

import (
	"context"
	"errors"
	"time"

	"github.com/hautor/secretos/internal/config"
	"github.com/hautor/secretos/internal/models"
)

// ErrNotFound is returned when a payload reference does not resolve.
var ErrNotFound = errors.New("not found")

// NoExclude is the sentinel ExcludeID for poll requests, which have no
// just-inserted secret to exclude.
const NoExclude int64 = 0

// ClaimQuery describes one selection attempt against the store.
type ClaimQuery struct {
	Requester string // author fingerprint of the caller
	ExcludeID int64  // just-inserted secret to skip, NoExclude for polls
	MinAge    time.Duration
	Policy    config.DeliveryPolicy
}

// SecretStore defines the interface for persistent storage of secrets.
// Both PostgresStore and SQLiteStore implement this interface.
//
// ClaimOldestEligible is the coordination point for concurrent callers:
// under the claim-once policy the selection and the Available→Delivered
// transition happen as one atomic operation, so two racing callers can
// never both receive the same secret. No other cross-request locking
// exists anywhere in the engine, and correctness must hold with
// multiple server processes sharing one database.
type SecretStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Secret operations
	Insert(ctx context.Context, kind models.Kind, body, audioRef, owner string) (int64, error)
	ClaimOldestEligible(ctx context.Context, q ClaimQuery) (*models.Secret, error)

	// Audio payloads (immutable once written; DeleteAudio exists only
	// to reclaim a blob whose secret row never got inserted)
	SaveAudio(ctx context.Context, ref string, data []byte) error
	FetchAudio(ctx context.Context, ref string) ([]byte, error)
	DeleteAudio(ctx context.Context, ref string) error

	// Aggregates for the stats surface; recent-snapshot consistency only
	CountAvailable(ctx context.Context, excludingOwner string) (int64, error)
	CountTotal(ctx context.Context) (int64, error)
	CountDelivered(ctx context.Context) (int64, error)
}
