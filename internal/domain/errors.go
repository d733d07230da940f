package domain

import "errors"

// Sentinel errors shared across the scheduling core.
// Check with errors.Is: errors.Is(err, domain.ErrNotFound)
var (
	// ErrInvalidQuality means a quality score outside [0, 5]. The schedule
	// is left untouched and the caller should re-prompt.
	ErrInvalidQuality = errors.New("linguatrack: quality out of range")

	// ErrNotFound covers unknown cards, sessions, and owner mismatches.
	ErrNotFound = errors.New("linguatrack: not found")

	// ErrNoSchedule marks a card whose schedule was administratively
	// deleted. It is surfaced, never auto-healed: recreating the schedule
	// would erase review history.
	ErrNoSchedule = errors.New("linguatrack: card has no schedule")

	// ErrExhausted signals an empty due queue. It is a normal terminal
	// state for a review session, not a failure.
	ErrExhausted = errors.New("linguatrack: no due cards remain")

	// ErrConflict is returned by a compare-and-set save that lost the race
	// to a concurrent writer. The caller re-reads and retries.
	ErrConflict = errors.New("linguatrack: schedule modified concurrently")

	// ErrDuplicateCard means the (owner, word, translation) key already exists.
	ErrDuplicateCard = errors.New("linguatrack: duplicate card")

	// ErrStoreUnavailable wraps transient persistence failures.
	ErrStoreUnavailable = errors.New("linguatrack: store unavailable")
)
