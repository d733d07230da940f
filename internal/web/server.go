package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/avolkov/linguatrack/internal/domain"
	"github.com/avolkov/linguatrack/internal/review"
)

// CardStore is the card CRUD surface the HTTP layer exposes to the front
// ends. *storage.DB satisfies it.
type CardStore interface {
	CreateCard(ctx context.Context, card domain.Card) (domain.Card, error)
	ListCards(ctx context.Context, ownerID int64, level domain.Level) ([]domain.Card, error)
}

// Reminders answers the "anything due today" question for the notifier
// and the front ends.
type Reminders interface {
	HasDueToday(ctx context.Context, ownerID int64) (bool, error)
}

// Server holds the dependencies for the HTTP server. Both the web front
// end and the chat-bot talk to this same JSON API.
type Server struct {
	store     CardStore
	coord     *review.Coordinator
	reminders Reminders
	router    *http.ServeMux
	validate  *validator.Validate
}

// NewServer creates and configures a new server.
func NewServer(store CardStore, coord *review.Coordinator, reminders Reminders) *Server {
	s := &Server{
		store:     store,
		coord:     coord,
		reminders: reminders,
		router:    http.NewServeMux(),
		validate:  validator.New(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("POST /cards", s.handleCreateCard())
	s.router.HandleFunc("GET /cards", s.handleListCards())
	s.router.HandleFunc("GET /due", s.handleListDue())
	s.router.HandleFunc("GET /due-today", s.handleDueToday())

	s.router.HandleFunc("POST /sessions", s.handleStartSession())
	s.router.HandleFunc("POST /sessions/{id}/next", s.handleNext())
	s.router.HandleFunc("POST /sessions/{id}/answer", s.handleAnswer())

	s.router.HandleFunc("GET /quiz", s.handleQuizItem())
	s.router.HandleFunc("POST /quiz/answer", s.handleQuizAnswer())
}

type createCardRequest struct {
	OwnerID     int64  `json:"owner_id" validate:"required,gt=0"`
	Word        string `json:"word" validate:"required,max=128"`
	Translation string `json:"translation" validate:"required,max=128"`
	Example     string `json:"example"`
	Comment     string `json:"comment"`
	Level       string `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
}

func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		card, err := s.store.CreateCard(r.Context(), domain.Card{
			OwnerID:     req.OwnerID,
			Word:        req.Word,
			Translation: req.Translation,
			Example:     req.Example,
			Comment:     req.Comment,
			Level:       domain.Level(req.Level),
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := ownerParam(w, r)
		if !ok {
			return
		}
		level := domain.Level(r.URL.Query().Get("level"))
		if level != "" && !level.Valid() {
			writeJSONError(w, http.StatusBadRequest, "unknown level")
			return
		}

		cards, err := s.store.ListCards(r.Context(), ownerID, level)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
	}
}

func (s *Server) handleListDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := ownerParam(w, r)
		if !ok {
			return
		}
		items, err := s.coord.DueItems(r.Context(), ownerID, time.Now())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	}
}

func (s *Server) handleDueToday() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := ownerParam(w, r)
		if !ok {
			return
		}
		due, err := s.reminders.HasDueToday(r.Context(), ownerID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"due": due})
	}
}

func (s *Server) handleStartSession() http.HandlerFunc {
	type request struct {
		OwnerID int64 `json:"owner_id" validate:"required,gt=0"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		id := s.coord.Start(req.OwnerID)
		writeJSON(w, http.StatusCreated, map[string]any{"session_id": id})
	}
}

func (s *Server) handleNext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := sessionParam(w, r)
		if !ok {
			return
		}
		item, err := s.coord.Next(r.Context(), sessionID)
		if errors.Is(err, domain.ErrExhausted) {
			writeJSON(w, http.StatusOK, map[string]any{"done": true})
			return
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"done": false, "item": item})
	}
}

type answerRequest struct {
	CardID int64   `json:"card_id" validate:"required,gt=0"`
	Knew   *bool   `json:"knew"`
	Choice *string `json:"choice"`
}

func (s *Server) handleAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := sessionParam(w, r)
		if !ok {
			return
		}
		var req answerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if (req.Knew == nil) == (req.Choice == nil) {
			writeJSONError(w, http.StatusBadRequest, "exactly one of knew or choice is required")
			return
		}

		var outcome domain.Outcome
		var err error
		if req.Knew != nil {
			outcome, err = s.coord.AnswerBinary(r.Context(), sessionID, req.CardID, *req.Knew)
		} else {
			outcome, err = s.coord.AnswerChoice(r.Context(), sessionID, req.CardID, *req.Choice)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	}
}

// quizItemResponse deliberately omits the card's translation: it is one
// of the shuffled options and must not be identifiable.
type quizItemResponse struct {
	Done    bool     `json:"done"`
	CardID  int64    `json:"card_id,omitempty"`
	Word    string   `json:"word,omitempty"`
	Example string   `json:"example,omitempty"`
	Options []string `json:"options,omitempty"`
}

func (s *Server) handleQuizItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := ownerParam(w, r)
		if !ok {
			return
		}
		item, options, err := s.coord.MultipleChoiceItem(r.Context(), ownerID)
		if errors.Is(err, domain.ErrExhausted) {
			writeJSON(w, http.StatusOK, quizItemResponse{Done: true})
			return
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, quizItemResponse{
			CardID:  item.Card.ID,
			Word:    item.Card.Word,
			Example: item.Card.Example,
			Options: options,
		})
	}
}

func (s *Server) handleQuizAnswer() http.HandlerFunc {
	type request struct {
		OwnerID int64  `json:"owner_id" validate:"required,gt=0"`
		CardID  int64  `json:"card_id" validate:"required,gt=0"`
		Choice  string `json:"choice" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		outcome, err := s.coord.AnswerQuiz(r.Context(), req.OwnerID, req.CardID, req.Choice)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	}
}

func ownerParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("owner_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "owner_id is required")
		return 0, false
	}
	return id, true
}

func sessionParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid session id")
		return uuid.UUID{}, false
	}
	return id, true
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidQuality):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDuplicateCard), errors.Is(err, domain.ErrNoSchedule), errors.Is(err, domain.ErrConflict):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("Internal error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
