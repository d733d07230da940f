package domain

import "time"

// Level is the difficulty bucket a card is filed under.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Card is a word/translation pair owned by exactly one user.
// (OwnerID, Word, Translation) is a soft-unique key enforced at creation time.
type Card struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Word        string    `json:"word"`
	Translation string    `json:"translation"`
	Example     string    `json:"example,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	Level       Level     `json:"level"`
	CreatedAt   time.Time `json:"created_at"`
}

// Schedule is the spaced-repetition state for exactly one card.
// It is created atomically with its card and mutated only through reviews.
type Schedule struct {
	CardID       int64     `json:"card_id"`
	NextReview   time.Time `json:"next_review"` // calendar date, UTC midnight
	IntervalDays int       `json:"interval_days"`
	Repetition   int       `json:"repetition"` // consecutive successful reviews
	EF           float64   `json:"ef"`
	LastResult   *bool     `json:"last_result"` // nil until the first review
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSchedule returns the initial schedule for a freshly created card:
// due immediately, interval 1 day, EF 2.5, never reviewed.
func NewSchedule(cardID int64, now time.Time) Schedule {
	return Schedule{
		CardID:       cardID,
		NextReview:   DateOf(now),
		IntervalDays: 1,
		Repetition:   0,
		EF:           2.5,
		UpdatedAt:    now,
	}
}

// Due reports whether the schedule is due on or before the given date.
func (s Schedule) Due(asOf time.Time) bool {
	return !s.NextReview.After(DateOf(asOf))
}

// DateOf truncates t to a calendar date: UTC midnight of the same day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ReviewItem is a (card, schedule) pair currently served to a caller.
// It is ephemeral and never persisted.
type ReviewItem struct {
	Card     Card     `json:"card"`
	Schedule Schedule `json:"schedule"`
}

// Outcome is what a caller gets back after answering a review item.
type Outcome struct {
	Correct      bool      `json:"correct"`
	NextReview   time.Time `json:"next_review"`
	IntervalDays int       `json:"interval_days"`
}
