package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/linguatrack/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w: %w", domain.ErrStoreUnavailable, err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateCard inserts a card together with its initial schedule in one
// transaction, so a card can never exist without its schedule. The
// (owner, word, translation) key is checked inside the same transaction
// and a duplicate returns domain.ErrDuplicateCard.
func (db *DB) CreateCard(ctx context.Context, card domain.Card) (domain.Card, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return domain.Card{}, fmt.Errorf("begin create card: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM cards WHERE owner_id = ? AND word = ? AND translation = ?)
	`, card.OwnerID, card.Word, card.Translation).Scan(&exists)
	if err != nil {
		return domain.Card{}, fmt.Errorf("check duplicate card: %w", err)
	}
	if exists {
		return domain.Card{}, fmt.Errorf("%w: %q / %q", domain.ErrDuplicateCard, card.Word, card.Translation)
	}

	if card.Level == "" {
		card.Level = domain.LevelBeginner
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cards (owner_id, word, translation, example, comment, level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		card.OwnerID,
		card.Word,
		card.Translation,
		card.Example,
		card.Comment,
		string(card.Level),
		card.CreatedAt,
	)
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to insert card %q: %w", card.Word, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to get card id for %q: %w", card.Word, err)
	}
	card.ID = id

	sched := domain.NewSchedule(id, card.CreatedAt)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedules (card_id, next_review, interval_days, repetition, ef, last_result, updated_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?)
	`,
		sched.CardID,
		sched.NextReview,
		sched.IntervalDays,
		sched.Repetition,
		sched.EF,
		sched.UpdatedAt,
	)
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to insert schedule for card %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Card{}, fmt.Errorf("commit create card: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return card, nil
}

// GetCard retrieves a card by id, scoped to its owner. An unknown id or
// an owner mismatch both return domain.ErrNotFound.
func (db *DB) GetCard(ctx context.Context, id, ownerID int64) (domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, word, translation, example, comment, level, created_at
		FROM cards WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	var c domain.Card
	var level string
	err := row.Scan(&c.ID, &c.OwnerID, &c.Word, &c.Translation, &c.Example, &c.Comment, &level, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Card{}, fmt.Errorf("card %d: %w", id, domain.ErrNotFound)
		}
		return domain.Card{}, fmt.Errorf("failed to find card %d: %w", id, err)
	}
	c.Level = domain.Level(level)
	return c, nil
}

// ListCards returns all cards owned by ownerID, newest first, optionally
// filtered by level (empty level means all).
func (db *DB) ListCards(ctx context.Context, ownerID int64, level domain.Level) ([]domain.Card, error) {
	query := `
		SELECT id, owner_id, word, translation, example, comment, level, created_at
		FROM cards WHERE owner_id = ?
	`
	args := []any{ownerID}
	if level != "" {
		query += ` AND level = ?`
		args = append(args, string(level))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		var lvl string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Word, &c.Translation, &c.Example, &c.Comment, &lvl, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		c.Level = domain.Level(lvl)
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetSchedule retrieves the schedule for a card. A card whose schedule
// was administratively deleted returns domain.ErrNoSchedule.
func (db *DB) GetSchedule(ctx context.Context, cardID int64) (domain.Schedule, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT card_id, next_review, interval_days, repetition, ef, last_result, updated_at
		FROM schedules WHERE card_id = ?
	`, cardID)

	s, err := scanSchedule(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Schedule{}, fmt.Errorf("card %d: %w", cardID, domain.ErrNoSchedule)
		}
		return domain.Schedule{}, fmt.Errorf("failed to find schedule for card %d: %w", cardID, err)
	}
	return s, nil
}

// SaveSchedule persists a reviewed schedule with compare-and-set
// semantics: the update only lands if the stored row still carries the
// expected updated_at. A lost race returns domain.ErrConflict so the
// caller can re-read and recompute.
func (db *DB) SaveSchedule(ctx context.Context, s domain.Schedule, expected time.Time) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE schedules
		SET next_review = ?, interval_days = ?, repetition = ?, ef = ?, last_result = ?, updated_at = ?
		WHERE card_id = ? AND updated_at = ?
	`,
		s.NextReview,
		s.IntervalDays,
		s.Repetition,
		s.EF,
		nullBool(s.LastResult),
		s.UpdatedAt,
		s.CardID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule for card %d: %w", s.CardID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for card %d: %w", s.CardID, err)
	}
	if n == 0 {
		// Either the schedule is gone or someone else won the race.
		if _, err := db.GetSchedule(ctx, s.CardID); err != nil {
			return err
		}
		return fmt.Errorf("card %d: %w", s.CardID, domain.ErrConflict)
	}
	return nil
}

// DeleteSchedule removes a card's schedule while keeping the card. This
// is the administrative operation that produces the degraded NoSchedule
// state; the review engine itself never deletes schedules.
func (db *DB) DeleteSchedule(ctx context.Context, cardID int64) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM schedules WHERE card_id = ?`, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule for card %d: %w", cardID, err)
	}
	return nil
}

// ListDueSchedules returns every (card, schedule) pair owned by ownerID
// with next_review on or before asOf, ordered oldest due date first with
// ties broken by lowest card id.
func (db *DB) ListDueSchedules(ctx context.Context, ownerID int64, asOf time.Time) ([]domain.ReviewItem, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.id, c.owner_id, c.word, c.translation, c.example, c.comment, c.level, c.created_at,
		       s.card_id, s.next_review, s.interval_days, s.repetition, s.ef, s.last_result, s.updated_at
		FROM schedules s
		JOIN cards c ON c.id = s.card_id
		WHERE c.owner_id = ? AND s.next_review <= ?
		ORDER BY s.next_review ASC, c.id ASC
	`, ownerID, domain.DateOf(asOf))
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var items []domain.ReviewItem
	for rows.Next() {
		var c domain.Card
		var lvl string
		var s domain.Schedule
		var last sql.NullBool
		err := rows.Scan(
			&c.ID, &c.OwnerID, &c.Word, &c.Translation, &c.Example, &c.Comment, &lvl, &c.CreatedAt,
			&s.CardID, &s.NextReview, &s.IntervalDays, &s.Repetition, &s.EF, &last, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due schedule row: %w", err)
		}
		c.Level = domain.Level(lvl)
		if last.Valid {
			v := last.Bool
			s.LastResult = &v
		}
		items = append(items, domain.ReviewItem{Card: c, Schedule: s})
	}
	return items, rows.Err()
}

// CountDue reports how many of an owner's schedules are due on or before asOf.
func (db *DB) CountDue(ctx context.Context, ownerID int64, asOf time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM schedules s
		JOIN cards c ON c.id = s.card_id
		WHERE c.owner_id = ? AND s.next_review <= ?
	`, ownerID, domain.DateOf(asOf)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count due schedules for owner %d: %w", ownerID, err)
	}
	return n, nil
}

// ListOtherTranslations returns the translations of all of an owner's
// cards except the excluded one, for use as distractor candidates.
func (db *DB) ListOtherTranslations(ctx context.Context, ownerID, excludeCardID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT translation FROM cards WHERE owner_id = ? AND id != ?
	`, ownerID, excludeCardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan translation row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListOwners returns the distinct owner ids that have at least one card,
// feeding the daily reminder scan.
func (db *DB) ListOwners(ctx context.Context) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT owner_id FROM cards ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owner row: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func scanSchedule(scan func(dest ...any) error) (domain.Schedule, error) {
	var s domain.Schedule
	var last sql.NullBool
	err := scan(&s.CardID, &s.NextReview, &s.IntervalDays, &s.Repetition, &s.EF, &last, &s.UpdatedAt)
	if err != nil {
		return domain.Schedule{}, err
	}
	if last.Valid {
		v := last.Bool
		s.LastResult = &v
	}
	return s, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
