package sm2

import (
	"fmt"
	"time"

	"github.com/avolkov/linguatrack/internal/domain"
)

// Quality grades the strength of a recall, following SM-2.
// 0-2 count as failure, 3-5 as success.
const (
	QualityBlackout  = 0
	QualityIncorrect = 1
	QualityFamiliar  = 2
	QualityDifficult = 3
	QualityHesitant  = 4
	QualityPerfect   = 5
)

const (
	// MinEF is the floor of the easiness factor.
	MinEF = 1.3

	// SuccessThreshold is the lowest quality that counts as a successful recall.
	SuccessThreshold = 3

	firstInterval  = 1 // days after the first successful review
	secondInterval = 6 // days after the second successful review
)

// Update applies one SM-2 review step to a schedule and returns the new state.
// quality must be in [0, 5]; today anchors the next review date. The function
// is pure: it never touches storage and leaves its input unmodified.
//
// The easiness factor is adjusted on both the failure and the success branch,
// always from the pre-update EF, and the interval growth for repetition >= 2
// also uses the pre-update EF with integer truncation.
func Update(s domain.Schedule, quality int, today time.Time) (domain.Schedule, error) {
	if quality < 0 || quality > 5 {
		return s, fmt.Errorf("%w: got %d, want 0..5", domain.ErrInvalidQuality, quality)
	}

	out := s
	if quality < SuccessThreshold {
		out.Repetition = 0
		out.IntervalDays = 1
	} else {
		switch {
		case s.Repetition == 0:
			out.IntervalDays = firstInterval
		case s.Repetition == 1:
			out.IntervalDays = secondInterval
		default:
			out.IntervalDays = int(float64(s.IntervalDays) * s.EF)
		}
		out.Repetition = s.Repetition + 1
	}

	// EF' = EF + (0.1 - (5-q) * (0.08 + (5-q)*0.02)), clamped at 1.3.
	q := float64(quality)
	ef := s.EF + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	if ef < MinEF {
		ef = MinEF
	}
	out.EF = ef

	out.NextReview = domain.DateOf(today).AddDate(0, 0, out.IntervalDays)
	success := quality >= SuccessThreshold
	out.LastResult = &success
	out.UpdatedAt = today

	return out, nil
}
