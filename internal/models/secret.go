package models

import "time"

// Kind identifies the payload type of a secret.
type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
)

// Secret represents one submitted item eligible for exchange.
//
// IDs are assigned monotonically by the store and never reused;
// CreatedAt ordering is consistent with ID ordering, which the
// matching engine relies on for oldest-first selection.
type Secret struct {
	ID          int64     `json:"id"`
	Kind        Kind      `json:"kind"`
	Body        string    `json:"body,omitempty"`      // inline text
	AudioRef    string    `json:"audio_ref,omitempty"` // ULID reference into the audio blob table
	Owner       string    `json:"-"`                   // author fingerprint, immutable once set
	CreatedAt   time.Time `json:"created_at"`
	Delivered   bool      `json:"-"`
	DeliveredTo string    `json:"-"`
}
