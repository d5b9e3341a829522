package exchange

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hautor/secretos/internal/config"
	"github.com/hautor/secretos/internal/identity"
	"github.com/hautor/secretos/internal/models"
	"github.com/hautor/secretos/internal/store"
	"github.com/hautor/secretos/internal/validate"
)

func newService(t *testing.T, st store.SecretStore, policy config.DeliveryPolicy, minAge time.Duration) *Service {
	t.Helper()
	validator, err := validate.NewRuleValidator(5, 1000, nil)
	if err != nil {
		t.Fatal(err)
	}
	resolver := identity.NewResolver("test-salt", config.StrategySession)
	engine := NewEngine(st, policy, minAge, zerolog.Nop())
	return NewService(st, engine, resolver, validator, policy, zerolog.Nop())
}

func caller(token string) identity.Signals {
	return identity.Signals{SessionToken: token, RemoteIP: "10.0.0.1", UserAgent: "test"}
}

func TestExchangeScenarioClaimOnce(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newService(t, st, config.PolicyClaimOnce, 0)
	ctx := context.Background()

	// A submits the first secret: accepted, nothing to match yet.
	result, err := svc.SubmitText(ctx, caller("a"), "hello1")
	if err != nil {
		t.Fatal(err)
	}
	if result.Matched {
		t.Fatal("first submission has nothing to match against")
	}

	stats, err := svc.Stats(ctx, caller("c"))
	if err != nil {
		t.Fatal(err)
	}
	if stats.AvailableTotal != 1 {
		t.Fatalf("expected 1 available, got %d", stats.AvailableTotal)
	}

	// B submits and receives A's secret.
	result, err = svc.SubmitText(ctx, caller("b"), "hello2")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Matched || result.Body != "hello1" {
		t.Fatalf("B should receive A's secret, got %+v", result)
	}

	// Under claim-once, a third caller cannot receive hello1 again;
	// hello2 is next in line.
	result, err = svc.Poll(ctx, caller("c"))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Matched || result.Body != "hello2" {
		t.Fatalf("hello1 is claimed, expected hello2, got %+v", result)
	}
}

func TestExchangeScenarioPermanent(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newService(t, st, config.PolicyPermanent, 0)
	ctx := context.Background()

	if _, err := svc.SubmitText(ctx, caller("a"), "hello1"); err != nil {
		t.Fatal(err)
	}

	// Every non-author keeps seeing the oldest secret.
	for _, tok := range []string{"b", "c", "b"} {
		result, err := svc.Poll(ctx, caller(tok))
		if err != nil {
			t.Fatal(err)
		}
		if !result.Matched || result.Body != "hello1" {
			t.Fatalf("caller %s should receive hello1, got %+v", tok, result)
		}
	}
}

func TestValidationRejection(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newService(t, st, config.PolicyClaimOnce, 0)
	ctx := context.Background()

	for _, text := range []string{"abcd", strings.Repeat("x", 1001)} {
		_, err := svc.SubmitText(ctx, caller("a"), text)
		var verr *validate.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error for %d chars, got %v", len(text), err)
		}
	}

	// Nothing was inserted.
	total, err := st.CountTotal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("rejected submissions must not be stored, got %d", total)
	}
}

func TestConcurrentMutualExchange(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newService(t, st, config.PolicyClaimOnce, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, tok := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			r, err := svc.SubmitText(ctx, caller(tok), "secret from "+tok)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = r
		}(i, tok)
	}
	wg.Wait()

	// No duplicate delivery and no self-match, whatever the interleaving.
	seen := map[string]bool{}
	for i, tok := range []string{"a", "b"} {
		r := results[i]
		if !r.Matched {
			continue
		}
		if r.Body == "secret from "+tok {
			t.Fatalf("caller %s received their own secret", tok)
		}
		if seen[r.Body] {
			t.Fatalf("secret %q delivered twice", r.Body)
		}
		seen[r.Body] = true
	}
}

func TestAudioRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newService(t, st, config.PolicyClaimOnce, 0)
	ctx := context.Background()

	payload := []byte{0x4f, 0x67, 0x67, 0x53} // ogg magic
	if _, err := svc.SubmitAudio(ctx, caller("a"), payload); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Poll(ctx, caller("b"))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Matched || result.Kind != models.KindAudio || result.AudioRef == "" {
		t.Fatalf("expected an audio reference, got %+v", result)
	}

	data, err := svc.FetchAudio(ctx, result.AudioRef)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(payload) {
		t.Fatal("fetched payload differs from submitted payload")
	}

	if _, err := svc.FetchAudio(ctx, "no-such-ref"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmptyAudioRejected(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newService(t, st, config.PolicyClaimOnce, 0)

	_, err := svc.SubmitAudio(context.Background(), caller("a"), nil)
	var verr *validate.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// insertFailStore accepts audio blobs but refuses secret rows.
type insertFailStore struct {
	*store.MemoryStore
	deletedRefs []string
}

func (s *insertFailStore) Insert(ctx context.Context, kind models.Kind, body, audioRef, owner string) (int64, error) {
	return 0, errors.New("disk full")
}

func (s *insertFailStore) DeleteAudio(ctx context.Context, ref string) error {
	s.deletedRefs = append(s.deletedRefs, ref)
	return s.MemoryStore.DeleteAudio(ctx, ref)
}

func TestFailedAudioInsertReclaimsBlob(t *testing.T) {
	st := &insertFailStore{MemoryStore: store.NewMemoryStore()}
	svc := newService(t, st, config.PolicyClaimOnce, 0)
	ctx := context.Background()

	_, err := svc.SubmitAudio(ctx, caller("a"), []byte("doomed payload"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	if len(st.deletedRefs) != 1 {
		t.Fatalf("expected one blob cleanup, got %d", len(st.deletedRefs))
	}
	if _, err := st.FetchAudio(ctx, st.deletedRefs[0]); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("orphaned blob should have been deleted")
	}
}

// failingStore fails every operation, standing in for an unreachable
// database.
type failingStore struct {
	*store.MemoryStore
}

func (s *failingStore) ClaimOldestEligible(ctx context.Context, q store.ClaimQuery) (*models.Secret, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailureIsTransient(t *testing.T) {
	st := &failingStore{store.NewMemoryStore()}
	svc := newService(t, st, config.PolicyClaimOnce, 0)

	_, err := svc.Poll(context.Background(), caller("a"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if strings.Contains(err.Error(), "connection refused") {
		t.Fatal("internal store detail must not leak to the caller")
	}
}
