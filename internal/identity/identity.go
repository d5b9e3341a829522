package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"github.com/hautor/secretos/internal/config"
)

// Signals carries the weak identity signals available on a request.
// Any subset may be empty; the resolver degrades rather than failing.
type Signals struct {
	SessionToken string // long-lived anonymous session cookie
	RemoteIP     string // coarse network origin
	UserAgent    string // client-declared agent string
}

// Resolver derives a stable author fingerprint from request signals.
// The digest is one-way: without the server-held salt it cannot be
// reversed to the raw signals.
type Resolver struct {
	salt     []byte
	strategy config.ExclusionStrategy
}

// NewResolver creates a resolver with the given salt and strategy.
func NewResolver(salt string, strategy config.ExclusionStrategy) *Resolver {
	return &Resolver{salt: []byte(salt), strategy: strategy}
}

// Resolve computes the author fingerprint for the given signals.
// Identical signals under the same salt always produce the same
// fingerprint. Missing signals narrow the input but never fail:
// a weaker identity is acceptable, an absent one is not.
func (r *Resolver) Resolve(sig Signals) string {
	mac := hmac.New(sha256.New, r.salt)

	switch r.strategy {
	case config.StrategyNetwork:
		writeSignal(mac, sig.RemoteIP)
		writeSignal(mac, sig.UserAgent)
	case config.StrategyFingerprint:
		writeSignal(mac, sig.SessionToken)
		writeSignal(mac, sig.RemoteIP)
		writeSignal(mac, sig.UserAgent)
	default: // session
		writeSignal(mac, sig.SessionToken)
		// No session cookie yet: fall back to the network signals so
		// the caller still gets a usable identity this request.
		if sig.SessionToken == "" {
			writeSignal(mac, sig.RemoteIP)
			writeSignal(mac, sig.UserAgent)
		}
	}

	return hex.EncodeToString(mac.Sum(nil))
}

// writeSignal feeds one signal into the digest with a length prefix so
// that adjacent signals cannot collide by concatenation.
func writeSignal(mac hash.Hash, s string) {
	var lenbuf [4]byte
	lenbuf[0] = byte(len(s) >> 24)
	lenbuf[1] = byte(len(s) >> 16)
	lenbuf[2] = byte(len(s) >> 8)
	lenbuf[3] = byte(len(s))
	mac.Write(lenbuf[:])
	mac.Write([]byte(s))
}
