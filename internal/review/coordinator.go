package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/linguatrack/internal/domain"
	"github.com/avolkov/linguatrack/internal/quiz"
	"github.com/avolkov/linguatrack/internal/sm2"
)

// Quality scores the two front ends map answers onto. Both the binary
// knew/forgot UI and the multiple-choice quiz grade a correct answer as 5
// and a wrong one as 2; the finer SM-2 gradation stays available through
// the engine itself.
const (
	qualityCorrect = sm2.QualityPerfect
	qualityWrong   = sm2.QualityFamiliar
)

// saveAttempts bounds the compare-and-set retry loop in apply.
const saveAttempts = 3

// Store is the persistence surface the coordinator needs. *storage.DB
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetCard(ctx context.Context, id, ownerID int64) (domain.Card, error)
	GetSchedule(ctx context.Context, cardID int64) (domain.Schedule, error)
	// SaveSchedule persists s only if the stored row still carries the
	// expected UpdatedAt, returning domain.ErrConflict otherwise.
	SaveSchedule(ctx context.Context, s domain.Schedule, expected time.Time) error
	ListDueSchedules(ctx context.Context, ownerID int64, asOf time.Time) ([]domain.ReviewItem, error)
	ListOtherTranslations(ctx context.Context, ownerID, excludeCardID int64) ([]string, error)
}

// sessionState tracks where a session is in its
// Idle -> Serving -> AwaitingAnswer -> Idle|Exhausted cycle.
type sessionState int

const (
	stateIdle sessionState = iota
	stateAwaitingAnswer
	stateExhausted
)

type session struct {
	ownerID int64
	state   sessionState
	served  map[int64]bool // card ids already handed out this session
	pending int64          // card awaiting an answer, 0 when idle
}

// Coordinator orchestrates review sessions: which cards are due, serving
// them one at a time, and applying answers atomically through the SM-2
// engine. It is safe for concurrent use by independent requests.
type Coordinator struct {
	store Store
	gen   *quiz.Generator
	now   func() time.Time

	locks *cardLocks

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// New creates a Coordinator over the given store and distractor generator.
// now may be nil, defaulting to time.Now; tests pin it.
func New(store Store, gen *quiz.Generator, now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:    store,
		gen:      gen,
		now:      now,
		locks:    newCardLocks(),
		sessions: make(map[uuid.UUID]*session),
	}
}

// DueItems returns every item owned by ownerID due on or before asOf,
// oldest due date first. The ordering is a fairness guarantee: cards that
// have waited longest are always served first.
func (c *Coordinator) DueItems(ctx context.Context, ownerID int64, asOf time.Time) ([]domain.ReviewItem, error) {
	return c.store.ListDueSchedules(ctx, ownerID, domain.DateOf(asOf))
}

// Start opens a review session for ownerID and returns its id.
func (c *Coordinator) Start(ownerID int64) uuid.UUID {
	id := uuid.New()
	c.mu.Lock()
	c.sessions[id] = &session{ownerID: ownerID, served: make(map[int64]bool)}
	c.mu.Unlock()
	return id
}

func (c *Coordinator) session(id uuid.UUID) (*session, error) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// Next advances the session to its next not-yet-served due item. The same
// item is never returned twice within one session. When nothing due
// remains the session moves to its terminal state and domain.ErrExhausted
// is returned.
func (c *Coordinator) Next(ctx context.Context, sessionID uuid.UUID) (domain.ReviewItem, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return domain.ReviewItem{}, err
	}

	c.mu.Lock()
	exhausted := s.state == stateExhausted
	ownerID := s.ownerID
	c.mu.Unlock()
	if exhausted {
		return domain.ReviewItem{}, domain.ErrExhausted
	}

	items, err := c.store.ListDueSchedules(ctx, ownerID, domain.DateOf(c.now()))
	if err != nil {
		return domain.ReviewItem{}, fmt.Errorf("list due: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		if s.served[item.Card.ID] {
			continue
		}
		s.served[item.Card.ID] = true
		s.pending = item.Card.ID
		s.state = stateAwaitingAnswer
		return item, nil
	}
	s.pending = 0
	s.state = stateExhausted
	return domain.ReviewItem{}, domain.ErrExhausted
}

// AnswerBinary records a knew/forgot answer for the card currently served
// by the session. knew maps to quality 5, forgot to quality 2.
func (c *Coordinator) AnswerBinary(ctx context.Context, sessionID uuid.UUID, cardID int64, knew bool) (domain.Outcome, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return domain.Outcome{}, err
	}
	quality := qualityWrong
	if knew {
		quality = qualityCorrect
	}
	return c.answerSession(ctx, s, cardID, quality, knew)
}

// AnswerChoice records a multiple-choice selection for the card currently
// served by the session. The choice is compared to the card's translation
// case-insensitively with surrounding whitespace ignored.
func (c *Coordinator) AnswerChoice(ctx context.Context, sessionID uuid.UUID, cardID int64, choice string) (domain.Outcome, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return domain.Outcome{}, err
	}

	card, err := c.store.GetCard(ctx, cardID, s.ownerID)
	if err != nil {
		return domain.Outcome{}, err
	}

	correct := quiz.Matches(choice, card.Translation)
	quality := qualityWrong
	if correct {
		quality = qualityCorrect
	}
	return c.answerSession(ctx, s, cardID, quality, correct)
}

// answerSession checks the session state machine, applies the quality
// score, and only then advances the session: a persistence failure leaves
// the item pending and re-askable.
func (c *Coordinator) answerSession(ctx context.Context, s *session, cardID int64, quality int, correct bool) (domain.Outcome, error) {
	c.mu.Lock()
	pendingOK := s.state == stateAwaitingAnswer && s.pending == cardID
	ownerID := s.ownerID
	c.mu.Unlock()
	if !pendingOK {
		return domain.Outcome{}, fmt.Errorf("card %d not awaiting an answer: %w", cardID, domain.ErrNotFound)
	}

	updated, err := c.apply(ctx, ownerID, cardID, quality)
	if err != nil {
		return domain.Outcome{}, err
	}

	c.mu.Lock()
	s.pending = 0
	s.state = stateIdle
	c.mu.Unlock()

	return domain.Outcome{
		Correct:      correct,
		NextReview:   updated.NextReview,
		IntervalDays: updated.IntervalDays,
	}, nil
}

// MultipleChoiceItem picks the earliest-due item for ownerID (ties broken
// by lowest card id) and attaches a shuffled option set built from the
// owner's other translations. domain.ErrExhausted means nothing is due.
func (c *Coordinator) MultipleChoiceItem(ctx context.Context, ownerID int64) (domain.ReviewItem, []string, error) {
	items, err := c.store.ListDueSchedules(ctx, ownerID, domain.DateOf(c.now()))
	if err != nil {
		return domain.ReviewItem{}, nil, fmt.Errorf("list due: %w", err)
	}
	if len(items) == 0 {
		return domain.ReviewItem{}, nil, domain.ErrExhausted
	}

	item := items[0]
	pool, err := c.store.ListOtherTranslations(ctx, ownerID, item.Card.ID)
	if err != nil {
		return domain.ReviewItem{}, nil, fmt.Errorf("list translations: %w", err)
	}
	return item, c.gen.Options(item.Card.Translation, pool), nil
}

// AnswerQuiz grades a multiple-choice selection outside any session, the
// way the quiz surface submits answers: each item served by
// MultipleChoiceItem is answered independently.
func (c *Coordinator) AnswerQuiz(ctx context.Context, ownerID, cardID int64, choice string) (domain.Outcome, error) {
	card, err := c.store.GetCard(ctx, cardID, ownerID)
	if err != nil {
		return domain.Outcome{}, err
	}

	correct := quiz.Matches(choice, card.Translation)
	quality := qualityWrong
	if correct {
		quality = qualityCorrect
	}

	updated, err := c.apply(ctx, ownerID, cardID, quality)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{
		Correct:      correct,
		NextReview:   updated.NextReview,
		IntervalDays: updated.IntervalDays,
	}, nil
}

// apply runs the read -> SM-2 -> persist cycle for one card. The cycle is
// serialized per card: the keyed mutex stops in-process callers from
// interleaving, and the store-side compare-and-set catches everything
// else, re-reading and recomputing on a lost race so the second writer
// always builds on the first writer's applied result.
func (c *Coordinator) apply(ctx context.Context, ownerID, cardID int64, quality int) (domain.Schedule, error) {
	if _, err := c.store.GetCard(ctx, cardID, ownerID); err != nil {
		return domain.Schedule{}, err
	}

	c.locks.lock(cardID)
	defer c.locks.unlock(cardID)

	for attempt := 0; ; attempt++ {
		current, err := c.store.GetSchedule(ctx, cardID)
		if err != nil {
			return domain.Schedule{}, err
		}

		updated, err := sm2.Update(current, quality, c.now())
		if err != nil {
			return domain.Schedule{}, err
		}

		err = c.store.SaveSchedule(ctx, updated, current.UpdatedAt)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt+1 >= saveAttempts {
			return domain.Schedule{}, fmt.Errorf("save schedule for card %d: %w", cardID, err)
		}
	}
}
