package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/hautor/secretos/internal/config"
	"github.com/hautor/secretos/internal/identity"
	"github.com/hautor/secretos/internal/metrics"
	"github.com/hautor/secretos/internal/models"
	"github.com/hautor/secretos/internal/store"
	"github.com/hautor/secretos/internal/validate"
)

// ErrStoreUnavailable marks transient persistence failures. The caller
// is expected to retry the whole submit/poll at a higher layer; the
// service performs no internal retry.
var ErrStoreUnavailable = errors.New("secret store unavailable")

// Result is the outcome of a submit or poll. Matched false means
// nothing was eligible right now, which is a valid outcome rather
// than a failure.
type Result struct {
	Matched  bool
	Kind     models.Kind
	Body     string
	AudioRef string
}

// Stats is the read-only observability surface.
type Stats struct {
	AvailableForCaller int64
	AvailableTotal     int64
	DeliveredTotal     int64
	CreatedTotal       int64
}

// Service orchestrates the exchange: validate, resolve the author
// fingerprint, insert, match.
type Service struct {
	store     store.SecretStore
	engine    *Engine
	resolver  *identity.Resolver
	validator validate.Validator
	policy    config.DeliveryPolicy
	logger    zerolog.Logger
}

// NewService wires the exchange service together.
func NewService(st store.SecretStore, engine *Engine, resolver *identity.Resolver, validator validate.Validator, policy config.DeliveryPolicy, logger zerolog.Logger) *Service {
	return &Service{
		store:     st,
		engine:    engine,
		resolver:  resolver,
		validator: validator,
		policy:    policy,
		logger:    logger,
	}
}

// SubmitText validates and stores a text secret, then attempts to match
// the caller with someone else's secret.
func (s *Service) SubmitText(ctx context.Context, sig identity.Signals, text string) (Result, error) {
	if err := s.validator.Validate(text); err != nil {
		metrics.ValidationRejects.Inc()
		return Result{}, err
	}

	owner := s.resolver.Resolve(sig)

	newID, err := s.insert(ctx, models.KindText, text, "", owner)
	if err != nil {
		return Result{}, err
	}
	metrics.SecretsSubmitted.WithLabelValues(string(models.KindText)).Inc()

	return s.match(ctx, owner, newID)
}

// SubmitAudio stores an audio secret under a fresh payload reference,
// then attempts to match. Size bounds are enforced at the HTTP edge;
// an empty payload is rejected here.
func (s *Service) SubmitAudio(ctx context.Context, sig identity.Signals, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, &validate.ValidationError{Reason: "audio payload is empty"}
	}

	owner := s.resolver.Resolve(sig)
	ref := ulid.Make().String()

	start := time.Now()
	if err := s.store.SaveAudio(ctx, ref, data); err != nil {
		return Result{}, s.storeErr("save audio", err)
	}
	metrics.StoreLatency.WithLabelValues("save_audio").Observe(time.Since(start).Seconds())

	newID, err := s.insert(ctx, models.KindAudio, "", ref, owner)
	if err != nil {
		// The blob is unreferenced without its secret row; reclaim it.
		if delErr := s.store.DeleteAudio(ctx, ref); delErr != nil {
			s.logger.Warn().Err(delErr).Str("ref", ref).Msg("orphaned audio blob not cleaned up")
		}
		return Result{}, err
	}
	metrics.SecretsSubmitted.WithLabelValues(string(models.KindAudio)).Inc()

	return s.match(ctx, owner, newID)
}

// Poll attempts a match without submitting anything. Under the
// permanent policy this is a pure read and never mutates state.
func (s *Service) Poll(ctx context.Context, sig identity.Signals) (Result, error) {
	requester := s.resolver.Resolve(sig)
	return s.match(ctx, requester, store.NoExclude)
}

// FetchAudio returns the immutable audio payload for a reference.
// store.ErrNotFound propagates for unknown references.
func (s *Service) FetchAudio(ctx context.Context, ref string) ([]byte, error) {
	data, err := s.store.FetchAudio(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, s.storeErr("fetch audio", err)
	}
	return data, nil
}

// Stats returns recent-snapshot aggregates for the caller.
func (s *Service) Stats(ctx context.Context, sig identity.Signals) (Stats, error) {
	requester := s.resolver.Resolve(sig)

	availableForCaller, err := s.store.CountAvailable(ctx, requester)
	if err != nil {
		return Stats{}, s.storeErr("count available for caller", err)
	}
	availableTotal, err := s.store.CountAvailable(ctx, "")
	if err != nil {
		return Stats{}, s.storeErr("count available", err)
	}
	createdTotal, err := s.store.CountTotal(ctx)
	if err != nil {
		return Stats{}, s.storeErr("count total", err)
	}

	stats := Stats{
		AvailableForCaller: availableForCaller,
		AvailableTotal:     availableTotal,
		CreatedTotal:       createdTotal,
	}

	if s.policy == config.PolicyClaimOnce {
		deliveredTotal, err := s.store.CountDelivered(ctx)
		if err != nil {
			return Stats{}, s.storeErr("count delivered", err)
		}
		stats.DeliveredTotal = deliveredTotal
	}

	return stats, nil
}

func (s *Service) insert(ctx context.Context, kind models.Kind, body, audioRef, owner string) (int64, error) {
	start := time.Now()
	id, err := s.store.Insert(ctx, kind, body, audioRef, owner)
	if err != nil {
		return 0, s.storeErr("insert", err)
	}
	metrics.StoreLatency.WithLabelValues("insert").Observe(time.Since(start).Seconds())
	return id, nil
}

func (s *Service) match(ctx context.Context, requester string, excludeID int64) (Result, error) {
	start := time.Now()
	secret, err := s.engine.SelectAndClaim(ctx, requester, excludeID)
	if err != nil {
		return Result{}, s.storeErr("match", err)
	}
	metrics.StoreLatency.WithLabelValues("claim").Observe(time.Since(start).Seconds())

	if secret == nil {
		metrics.NoMatchTotal.Inc()
		return Result{}, nil
	}

	metrics.MatchesDelivered.Inc()
	return Result{
		Matched:  true,
		Kind:     secret.Kind,
		Body:     secret.Body,
		AudioRef: secret.AudioRef,
	}, nil
}

// storeErr logs the underlying store failure loudly and wraps it in
// the transient taxonomy; internal detail never reaches the caller.
func (s *Service) storeErr(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("store operation failed")
	return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
}
