package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config carries everything the binary needs. Values are layered:
// defaults, then the optional yaml file, then LINGUATRACK_* environment
// variables, then command-line flags.
type Config struct {
	ListenAddr string `koanf:"listen_addr" validate:"required"`

	DB struct {
		DSN string `koanf:"dsn" validate:"required"`
	} `koanf:"db"`

	Quiz struct {
		// Options is the number of wrong answers per quiz item.
		Options     int    `koanf:"options" validate:"min=1,max=10"`
		Placeholder string `koanf:"placeholder" validate:"required"`
	} `koanf:"quiz"`

	Reminder struct {
		// Cron is the schedule of the daily due-card scan.
		Cron        string `koanf:"cron" validate:"required"`
		Concurrency int    `koanf:"concurrency" validate:"min=1"`
	} `koanf:"reminder"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	var c Config
	c.ListenAddr = ":8080"
	c.DB.DSN = "linguatrack.db"
	c.Quiz.Options = 3
	c.Quiz.Placeholder = "—"
	c.Reminder.Cron = "0 9 * * *"
	c.Reminder.Concurrency = 4
	return c
}

// Flags declares the command-line flags Load understands. Flag names use
// dots so they map directly onto config keys.
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("linguatrack", pflag.ContinueOnError)
	f.String("config", "", "Path to a yaml config file")
	f.String("listen_addr", "", "HTTP listen address")
	f.String("db.dsn", "", "Path to the SQLite database file")
	f.Int("quiz.options", 0, "Number of wrong answers per quiz item")
	f.String("reminder.cron", "", "Cron schedule for the daily reminder scan")
	return f
}

// Load assembles the configuration from all layers and validates it.
func Load(f *pflag.FlagSet) (Config, error) {
	cfg := Defaults()
	k := koanf.New(".")

	// Seed the defaults so later layers override them key by key and
	// unset flags are not taken at their zero values.
	defaults := map[string]any{
		"listen_addr":          cfg.ListenAddr,
		"db.dsn":               cfg.DB.DSN,
		"quiz.options":         cfg.Quiz.Options,
		"quiz.placeholder":     cfg.Quiz.Placeholder,
		"reminder.cron":        cfg.Reminder.Cron,
		"reminder.concurrency": cfg.Reminder.Concurrency,
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return Config{}, fmt.Errorf("seed default %s: %w", key, err)
		}
	}

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// LINGUATRACK_DB__DSN=... maps onto db.dsn.
	envProvider := env.ProviderWithValue("LINGUATRACK_", ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, "LINGUATRACK_"))
		return strings.ReplaceAll(key, "__", "."), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("load flags: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadOrExit is the main-path helper: parse flags, load, and exit with a
// usage message on failure.
func LoadOrExit(args []string) Config {
	f := Flags()
	if err := f.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := Load(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}
