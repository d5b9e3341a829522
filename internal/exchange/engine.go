package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hautor/secretos/internal/config"
	"github.com/hautor/secretos/internal/metrics"
	"github.com/hautor/secretos/internal/models"
	"github.com/hautor/secretos/internal/store"
)

// Engine selects at most one eligible secret per call. All concurrent
// coordination is delegated to the store's atomic claim primitive; the
// engine holds no locks of its own and a single attempt is made per
// call: a caller racing for the oldest secret and losing simply gets
// the next-oldest in its own attempt, or nothing.
type Engine struct {
	store  store.SecretStore
	policy config.DeliveryPolicy
	minAge time.Duration
	logger zerolog.Logger
}

// NewEngine creates a matching engine over the given store.
func NewEngine(st store.SecretStore, policy config.DeliveryPolicy, minAge time.Duration, logger zerolog.Logger) *Engine {
	return &Engine{store: st, policy: policy, minAge: minAge, logger: logger}
}

// SelectAndClaim returns the oldest secret eligible for the requester,
// or (nil, nil) when nothing is eligible right now. Pass
// store.NoExclude as excludeID for poll requests.
//
// A secret is eligible when it is not the just-inserted excludeID, not
// authored by the requester, older than the grace window, and (under
// the claim-once policy) not yet delivered. The grace window damps the
// race where two near-simultaneous submissions immediately pair with
// each other; it is a fairness mitigation, not a correctness guarantee.
func (e *Engine) SelectAndClaim(ctx context.Context, requester string, excludeID int64) (*models.Secret, error) {
	secret, err := e.store.ClaimOldestEligible(ctx, store.ClaimQuery{
		Requester: requester,
		ExcludeID: excludeID,
		MinAge:    e.minAge,
		Policy:    e.policy,
	})
	if err != nil {
		return nil, fmt.Errorf("claim oldest eligible: %w", err)
	}
	if secret == nil {
		return nil, nil
	}

	// Post-claim re-check. The store-level predicate already enforces
	// both conditions; if either fires here the filter is broken, and
	// returning no match is better than leaking a self-match.
	if (excludeID != store.NoExclude && secret.ID == excludeID) || secret.Owner == requester {
		metrics.SelfMatchAverted.Inc()
		e.logger.Error().
			Int64("secret_id", secret.ID).
			Int64("exclude_id", excludeID).
			Bool("owner_match", secret.Owner == requester).
			Msg("store returned ineligible secret, discarding claim")
		return nil, nil
	}

	return secret, nil
}
