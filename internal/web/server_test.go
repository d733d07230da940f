package web

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/avolkov/linguatrack/internal/domain"
	"github.com/avolkov/linguatrack/internal/quiz"
	"github.com/avolkov/linguatrack/internal/reminder"
	"github.com/avolkov/linguatrack/internal/review"
	"github.com/avolkov/linguatrack/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "linguatrack.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	gen := quiz.NewGenerator(3, quiz.DefaultPlaceholder, rand.New(rand.NewSource(1)))
	coord := review.New(db, gen, time.Now)
	trigger := reminder.New(db, nopNotifier{}, time.Now, 1)

	ts := httptest.NewServer(NewServer(db, coord, trigger))
	t.Cleanup(ts.Close)
	return ts, db
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, int64) error { return nil }

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func createCard(t *testing.T, ts *httptest.Server, owner int64, word, translation string) domain.Card {
	t.Helper()
	resp := postJSON(t, ts.URL+"/cards", map[string]any{
		"owner_id":    owner,
		"word":        word,
		"translation": translation,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create card %q: status %d", word, resp.StatusCode)
	}
	return decode[domain.Card](t, resp)
}

func TestCreateCardValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/cards", map[string]any{"owner_id": 1, "word": "dog"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing translation: status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/cards", map[string]any{
		"owner_id": 1, "word": "dog", "translation": "hund", "level": "expert",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad level: status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateCardDuplicateConflict(t *testing.T) {
	ts, _ := newTestServer(t)
	createCard(t, ts, 1, "dog", "hund")

	resp := postJSON(t, ts.URL+"/cards", map[string]any{
		"owner_id": 1, "word": "dog", "translation": "hund",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate: status %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBinaryReviewFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	card := createCard(t, ts, 1, "dog", "hund")
	createCard(t, ts, 1, "cat", "katze")

	// Everything just created is due today.
	due := decode[struct {
		Count int `json:"count"`
	}](t, mustGet(t, ts.URL+"/due?owner_id=1"))
	if due.Count != 2 {
		t.Fatalf("due count = %d, want 2", due.Count)
	}

	sess := decode[struct {
		SessionID string `json:"session_id"`
	}](t, postJSON(t, ts.URL+"/sessions", map[string]any{"owner_id": 1}))

	next := decode[struct {
		Done bool              `json:"done"`
		Item domain.ReviewItem `json:"item"`
	}](t, postJSON(t, ts.URL+"/sessions/"+sess.SessionID+"/next", nil))
	if next.Done {
		t.Fatal("expected a due item")
	}
	if next.Item.Card.ID != card.ID {
		t.Fatalf("first item card = %d, want lowest id %d", next.Item.Card.ID, card.ID)
	}

	outcome := decode[domain.Outcome](t, postJSON(t,
		ts.URL+"/sessions/"+sess.SessionID+"/answer",
		map[string]any{"card_id": next.Item.Card.ID, "knew": true},
	))
	if !outcome.Correct || outcome.IntervalDays != 1 {
		t.Fatalf("outcome = %+v, want correct with 1-day interval", outcome)
	}

	// Second card, answered wrong.
	next = decode[struct {
		Done bool              `json:"done"`
		Item domain.ReviewItem `json:"item"`
	}](t, postJSON(t, ts.URL+"/sessions/"+sess.SessionID+"/next", nil))
	if next.Done {
		t.Fatal("expected a second item")
	}
	outcome = decode[domain.Outcome](t, postJSON(t,
		ts.URL+"/sessions/"+sess.SessionID+"/answer",
		map[string]any{"card_id": next.Item.Card.ID, "knew": false},
	))
	if outcome.Correct {
		t.Fatal("forgot answer graded correct")
	}

	// Queue exhausted.
	done := decode[struct {
		Done bool `json:"done"`
	}](t, postJSON(t, ts.URL+"/sessions/"+sess.SessionID+"/next", nil))
	if !done.Done {
		t.Fatal("expected done after both cards were reviewed")
	}
}

func TestQuizFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	createCard(t, ts, 1, "dog", "hund")
	createCard(t, ts, 1, "cat", "katze")

	item := decode[quizItemResponse](t, mustGet(t, ts.URL+"/quiz?owner_id=1"))
	if item.Done {
		t.Fatal("expected a quiz item")
	}
	if len(item.Options) != 4 {
		t.Fatalf("got %d options, want 4", len(item.Options))
	}

	// The single other translation plus two placeholders pad the set.
	placeholders := 0
	for _, o := range item.Options {
		if o == quiz.DefaultPlaceholder {
			placeholders++
		}
	}
	if placeholders != 2 {
		t.Errorf("got %d placeholders, want 2: %v", placeholders, item.Options)
	}

	outcome := decode[domain.Outcome](t, postJSON(t, ts.URL+"/quiz/answer", map[string]any{
		"owner_id": 1, "card_id": item.CardID, "choice": "hund",
	}))
	if !outcome.Correct {
		t.Fatalf("outcome = %+v, want correct", outcome)
	}
}

func TestQuizExhausted(t *testing.T) {
	ts, _ := newTestServer(t)

	item := decode[quizItemResponse](t, mustGet(t, ts.URL+"/quiz?owner_id=1"))
	if !item.Done {
		t.Fatalf("empty deck should report done, got %+v", item)
	}
}

func TestDueToday(t *testing.T) {
	ts, _ := newTestServer(t)

	res := decode[struct {
		Due bool `json:"due"`
	}](t, mustGet(t, ts.URL+"/due-today?owner_id=1"))
	if res.Due {
		t.Error("no cards yet, nothing can be due")
	}

	createCard(t, ts, 1, "dog", "hund")
	res = decode[struct {
		Due bool `json:"due"`
	}](t, mustGet(t, ts.URL+"/due-today?owner_id=1"))
	if !res.Due {
		t.Error("freshly created card should be due today")
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/sessions/01234567-89ab-cdef-0123-456789abcdef/next", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMissingScheduleSurfacesAsConflict(t *testing.T) {
	ts, db := newTestServer(t)
	card := createCard(t, ts, 1, "dog", "hund")

	if err := db.DeleteSchedule(context.Background(), card.ID); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, ts.URL+"/quiz/answer", map[string]any{
		"owner_id": 1, "card_id": card.ID, "choice": "hund",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409 for missing schedule", resp.StatusCode)
	}
	resp.Body.Close()
}

func mustGet(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	return resp
}
