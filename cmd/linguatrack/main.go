package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/avolkov/linguatrack/internal/config"
	"github.com/avolkov/linguatrack/internal/quiz"
	"github.com/avolkov/linguatrack/internal/reminder"
	"github.com/avolkov/linguatrack/internal/review"
	"github.com/avolkov/linguatrack/internal/storage"
	"github.com/avolkov/linguatrack/internal/web"
)

// logNotifier stands in until a delivery transport (chat-bot push) is
// wired up; the reminder scan itself is fully functional.
type logNotifier struct{}

func (logNotifier) Notify(_ context.Context, ownerID int64) error {
	slog.Info("Cards due today", "owner_id", ownerID)
	return nil
}

func main() {
	cfg := config.LoadOrExit(os.Args[1:])

	db, err := storage.Open(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	log.Printf("Database opened successfully: %s", cfg.DB.DSN)

	gen := quiz.NewGenerator(cfg.Quiz.Options, cfg.Quiz.Placeholder, nil)
	coord := review.New(db, gen, time.Now)
	trigger := reminder.New(db, logNotifier{}, time.Now, cfg.Reminder.Concurrency)

	cronRunner, err := trigger.StartDaily(context.Background(), cfg.Reminder.Cron)
	if err != nil {
		log.Fatalf("Failed to start reminder schedule: %v", err)
	}
	defer cronRunner.Stop()

	server := web.NewServer(db, coord, trigger)
	slog.Info("Listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
