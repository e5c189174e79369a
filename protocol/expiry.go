package protocol

import "time"

var defaultTTLs = map[string]time.Duration{
	// A stale submission must not land long after the technician pressed
	// the button.
	TypeStageSubmit: 2 * time.Minute,

	TypeStageRecorded: 30 * time.Minute,
	TypeStageRejected: 30 * time.Minute,
	TypeVisitOpened:   60 * time.Minute,
	TypeVisitClosed:   60 * time.Minute,
	TypeVisitsReset:   60 * time.Minute,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

// DefaultTTLFor returns the default TTL for a message type.
func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired returns true if the envelope has passed its expiry time.
func IsExpired(env *Envelope) bool {
	return expired(env.ExpiresAt)
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	return expired(hdr.ExpiresAt)
}

func expired(exp time.Time) bool {
	return !exp.IsZero() && time.Now().UTC().After(exp)
}
