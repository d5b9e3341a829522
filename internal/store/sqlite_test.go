package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hautor/secretos/internal/config"
	"github.com/hautor/secretos/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)
	return st
}

func claimOnce(requester string, excludeID int64) ClaimQuery {
	return ClaimQuery{
		Requester: requester,
		ExcludeID: excludeID,
		Policy:    config.PolicyClaimOnce,
	}
}

func TestInsertAssignsMonotonicIDs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 3; i++ {
		id, err := st.Insert(ctx, models.KindText, "a secret", "", "owner-a")
		if err != nil {
			t.Fatal(err)
		}
		if id <= last {
			t.Fatalf("ids must be monotonic, got %d after %d", id, last)
		}
		last = id
	}
}

func TestClaimSkipsOwnSecrets(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Insert(ctx, models.KindText, "mine", "", "owner-a"); err != nil {
		t.Fatal(err)
	}

	got, err := st.ClaimOldestEligible(ctx, claimOnce("owner-a", NoExclude))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("owner must not claim their own secret")
	}
}

func TestClaimSkipsExcludedID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.Insert(ctx, models.KindText, "fresh", "", "owner-a")
	if err != nil {
		t.Fatal(err)
	}

	got, err := st.ClaimOldestEligible(ctx, claimOnce("owner-b", id))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("excluded id must not be claimed")
	}
}

func TestClaimTransitionsExactlyOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Insert(ctx, models.KindText, "only one", "", "owner-a"); err != nil {
		t.Fatal(err)
	}

	first, err := st.ClaimOldestEligible(ctx, claimOnce("owner-b", NoExclude))
	if err != nil {
		t.Fatal(err)
	}
	if first == nil || first.Body != "only one" {
		t.Fatalf("expected a claim, got %+v", first)
	}
	if !first.Delivered || first.DeliveredTo != "owner-b" {
		t.Fatalf("claimed row should carry the delivered transition, got %+v", first)
	}

	second, err := st.ClaimOldestEligible(ctx, claimOnce("owner-c", NoExclude))
	if err != nil {
		t.Fatal(err)
	}
	if second != nil {
		t.Fatal("a claimed secret must not be delivered again")
	}
}

func TestClaimOldestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, body := range []string{"first", "second"} {
		if _, err := st.Insert(ctx, models.KindText, body, "", "owner-a"); err != nil {
			t.Fatal(err)
		}
	}

	got, err := st.ClaimOldestEligible(ctx, claimOnce("owner-b", NoExclude))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Body != "first" {
		t.Fatalf("expected the oldest secret, got %+v", got)
	}
}

func TestMinAgeFiltersFreshSecrets(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Insert(ctx, models.KindText, "fresh", "", "owner-a"); err != nil {
		t.Fatal(err)
	}

	q := claimOnce("owner-b", NoExclude)
	q.MinAge = time.Hour
	got, err := st.ClaimOldestEligible(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("secret younger than min age must not be claimed")
	}
}

func TestPermanentPolicyLeavesStateUntouched(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Insert(ctx, models.KindText, "keepsake", "", "owner-a"); err != nil {
		t.Fatal(err)
	}

	q := ClaimQuery{Requester: "owner-b", ExcludeID: NoExclude, Policy: config.PolicyPermanent}
	for i := 0; i < 2; i++ {
		got, err := st.ClaimOldestEligible(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.Body != "keepsake" {
			t.Fatalf("expected the same secret on every read, got %+v", got)
		}
	}

	delivered, err := st.CountDelivered(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if delivered != 0 {
		t.Fatalf("permanent reads must not mark rows delivered, got %d", delivered)
	}
}

func TestAudioBlobRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	payload := []byte("not really audio")
	if err := st.SaveAudio(ctx, "ref-1", payload); err != nil {
		t.Fatal(err)
	}

	data, err := st.FetchAudio(ctx, "ref-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(payload) {
		t.Fatal("payload mismatch")
	}

	if _, err := st.FetchAudio(ctx, "ref-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCounts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Insert(ctx, models.KindText, "from a", "", "owner-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Insert(ctx, models.KindText, "from b", "", "owner-b"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.ClaimOldestEligible(ctx, claimOnce("owner-b", NoExclude)); err != nil {
		t.Fatal(err)
	}

	total, err := st.CountTotal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("expected 2 total, got %d", total)
	}

	delivered, err := st.CountDelivered(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", delivered)
	}

	// owner-b's own remaining secret is excluded from their view.
	availableForB, err := st.CountAvailable(ctx, "owner-b")
	if err != nil {
		t.Fatal(err)
	}
	if availableForB != 0 {
		t.Fatalf("expected 0 available for owner-b, got %d", availableForB)
	}
}
