package quiz

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DefaultPlaceholder pads the option set when a user owns too few cards
// to supply enough wrong answers.
const DefaultPlaceholder = "—"

// DefaultOptionCount is the number of wrong answers offered alongside
// the correct one.
const DefaultOptionCount = 3

// Generator produces multiple-choice option sets: the correct translation
// plus a fixed number of plausible wrong ones drawn from the owner's other
// cards. Option count and placeholder are explicit so there is no shared
// mutable configuration.
type Generator struct {
	count       int
	placeholder string

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewGenerator creates a Generator offering count wrong options and padding
// with placeholder. A zero count or empty placeholder falls back to the
// defaults. rng may be nil, in which case a time-seeded source is used;
// tests pass a fixed-seed source for determinism.
func NewGenerator(count int, placeholder string, rng *rand.Rand) *Generator {
	if count <= 0 {
		count = DefaultOptionCount
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{count: count, placeholder: placeholder, rng: rng}
}

// Options returns count+1 shuffled answer options: correct plus count wrong
// translations drawn uniformly without replacement from pool. Pool entries
// that duplicate each other or match the correct answer are dropped first,
// so the correct translation appears exactly once. When the pool is short
// the set is padded with the placeholder to keep a stable option count.
func (g *Generator) Options(correct string, pool []string) []string {
	distinct := make([]string, 0, len(pool))
	seen := map[string]bool{normalize(correct): true}
	for _, p := range pool {
		key := normalize(p)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		distinct = append(distinct, p)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var wrong []string
	if len(distinct) >= g.count {
		idx := g.rng.Perm(len(distinct))[:g.count]
		for _, i := range idx {
			wrong = append(wrong, distinct[i])
		}
	} else {
		wrong = distinct
		for len(wrong) < g.count {
			wrong = append(wrong, g.placeholder)
		}
	}

	options := append(wrong, correct)
	g.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}

// Placeholder returns the padding value used for short pools.
func (g *Generator) Placeholder() string {
	return g.placeholder
}

// Matches reports whether a submitted answer matches the expected
// translation, ignoring case and surrounding whitespace.
func Matches(answer, expected string) bool {
	return normalize(answer) == normalize(expected)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
