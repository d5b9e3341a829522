package store

import (
	"context"
	"sync"
	"time"

	"github.com/hautor/secretos/internal/config"
	"github.com/hautor/secretos/internal/models"
)

// MemoryStore is an in-process SecretStore used by tests and local
// development. A single mutex stands in for the database's atomicity:
// selection and the delivered transition happen under one lock, so it
// honors the same exactly-once contract as the SQL stores (within one
// process only).
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	secrets []*models.Secret
	audio   map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{audio: make(map[string][]byte)}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Insert appends a new available secret and returns its id.
func (s *MemoryStore) Insert(ctx context.Context, kind models.Kind, body, audioRef, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.secrets = append(s.secrets, &models.Secret{
		ID:        s.nextID,
		Kind:      kind,
		Body:      body,
		AudioRef:  audioRef,
		Owner:     owner,
		CreatedAt: time.Now(),
	})
	return s.nextID, nil
}

// ClaimOldestEligible scans secrets in insertion order, which is also
// (created_at, id) order, and claims the first eligible one.
func (s *MemoryStore) ClaimOldestEligible(ctx context.Context, q ClaimQuery) (*models.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-q.MinAge)
	for _, secret := range s.secrets {
		if secret.Owner == q.Requester || secret.ID == q.ExcludeID {
			continue
		}
		if secret.CreatedAt.After(cutoff) {
			continue
		}
		if q.Policy != config.PolicyPermanent {
			if secret.Delivered {
				continue
			}
			secret.Delivered = true
			secret.DeliveredTo = q.Requester
		}
		copied := *secret
		return &copied, nil
	}
	return nil, nil
}

// SaveAudio stores an audio payload under the given reference.
func (s *MemoryStore) SaveAudio(ctx context.Context, ref string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.audio[ref] = buf
	return nil
}

// FetchAudio retrieves an audio payload by reference.
func (s *MemoryStore) FetchAudio(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.audio[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// DeleteAudio removes an audio payload by reference.
func (s *MemoryStore) DeleteAudio(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.audio, ref)
	return nil
}

// CountAvailable returns the number of undelivered secrets not authored
// by the given owner.
func (s *MemoryStore) CountAvailable(ctx context.Context, excludingOwner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, secret := range s.secrets {
		if !secret.Delivered && secret.Owner != excludingOwner {
			count++
		}
	}
	return count, nil
}

// CountTotal returns the total number of secrets ever created.
func (s *MemoryStore) CountTotal(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.secrets)), nil
}

// CountDelivered returns the number of secrets already delivered.
func (s *MemoryStore) CountDelivered(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, secret := range s.secrets {
		if secret.Delivered {
			count++
		}
	}
	return count, nil
}
