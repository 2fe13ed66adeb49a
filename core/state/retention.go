package state

import "fmt"

// Retention is a storage entry's expiry class.
type Retention uint8

const (
	// RetentionInstance entries hold long-lived configuration and never expire.
	RetentionInstance Retention = iota + 1
	// RetentionPersistent entries hold per-principal data and must be extended
	// periodically or they become archived.
	RetentionPersistent
)

const day = int64(24 * 60 * 60)

// MinPersistentTTL is the minimum window a persistent entry stays readable
// after its last write or extension.
const MinPersistentTTL = 30 * day

// Valid reports whether r is a known class.
func (r Retention) Valid() bool {
	return r == RetentionInstance || r == RetentionPersistent
}

func (r Retention) String() string {
	switch r {
	case RetentionInstance:
		return "instance"
	case RetentionPersistent:
		return "persistent"
	default:
		return fmt.Sprintf("retention(%d)", uint8(r))
	}
}

// TTLPolicy controls persistent entry extension, in seconds.
type TTLPolicy struct {
	// Threshold is the remaining lifetime below which an entry is extended.
	Threshold int64
	// ExtendTo is the lifetime granted on write or extension.
	ExtendTo int64
}

// DefaultTTLPolicy extends entries with under 30 days left to 120 days.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{Threshold: MinPersistentTTL, ExtendTo: 120 * day}
}

// Validate checks the policy honours the minimum retention window.
func (p TTLPolicy) Validate() error {
	if p.ExtendTo < MinPersistentTTL {
		return fmt.Errorf("state: ttl extension %ds below minimum %ds", p.ExtendTo, MinPersistentTTL)
	}
	if p.Threshold <= 0 || p.Threshold > p.ExtendTo {
		return fmt.Errorf("state: ttl threshold must be within (0, %d]", p.ExtendTo)
	}
	return nil
}
