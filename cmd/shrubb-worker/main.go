package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/config"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/genai"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/handlers"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/spend"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/store"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/twiliosms"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/util"
	"github.com/IntakeDeskAI/Shrubb-sub001/internal/worker"
)

// DefaultDBFileName is the default SQLite database filename under the state
// directory.
const DefaultDBFileName = "shrubb.db"

func main() {
	initializeLogger()

	cfg := loadEnvironmentConfig()
	flags := parseCommandLineFlags(&cfg)

	st, err := buildStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ai, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	sms, err := twiliosms.NewClient(buildTwilioOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize Twilio client", "error", err)
		os.Exit(1)
	}

	registry := worker.NewRegistry()
	handlers.RegisterAll(registry, handlers.Deps{
		Store: st,
		AI:    ai,
		SMS:   sms,
		Spend: spend.NewGuard(st, cfg.DefaultSpendCapCents),
	})

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = defaultWorkerID()
	}
	nudges := worker.NewNudgeScheduler(st, cfg.NudgeInterval())
	w := worker.NewWorker(st, registry,
		worker.WithID(workerID),
		worker.WithPollInterval(cfg.PollInterval()),
		worker.WithLockTimeout(cfg.JobLockTimeout()),
		worker.WithMaxAttempts(cfg.JobMaxAttempts),
		worker.WithNudgeScheduler(nudges),
	)

	slog.Info("Bootstrapping Shrubb worker", "workerID", workerID, "handlers", len(registry.Types()), "postgres", cfg.DatabaseURL != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("Worker failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Shrubb worker exited successfully")
}

// Flags holds command line flag values.
type Flags struct {
	stateDir   *string
	dbDSN      *string
	workerID   *string
	openaiKey  *string
	twilioSID  *string
	twilioAuth *string
}

// initializeLogger sets up structured logging. SHRUBB_DEBUG raises the level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("SHRUBB_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and
// the .env file.
func loadEnvironmentConfig() config.Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Debug("environment configuration loaded",
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"STATE_DIR", cfg.StateDir,
		"POLL_INTERVAL_MS", cfg.PollIntervalMS,
		"JOB_MAX_ATTEMPTS", cfg.JobMaxAttempts,
		"JOB_LOCK_TIMEOUT_SEC", cfg.JobLockTimeoutSec,
		"OPENAI_API_KEY_SET", cfg.OpenAIAPIKey != "",
		"TWILIO_ACCOUNT_SID_SET", cfg.TwilioAccountSID != "")
	return cfg
}

// parseCommandLineFlags parses command line arguments with environment
// defaults and writes overrides back onto cfg.
func parseCommandLineFlags(cfg *config.Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", cfg.StateDir, "state directory for SQLite data (overrides $STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", cfg.DatabaseURL, "PostgreSQL DSN (overrides $DATABASE_URL)"),
		workerID:   flag.String("worker-id", cfg.WorkerID, "worker lock identity (overrides $WORKER_ID)"),
		openaiKey:  flag.String("openai-api-key", cfg.OpenAIAPIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		twilioSID:  flag.String("twilio-account-sid", cfg.TwilioAccountSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioAuth: flag.String("twilio-auth-token", cfg.TwilioAuthToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
	}
	flag.Parse()

	cfg.StateDir = *flags.stateDir
	cfg.DatabaseURL = *flags.dbDSN
	cfg.WorkerID = *flags.workerID
	return flags
}

// buildStore selects PostgreSQL when a DSN is configured, otherwise SQLite
// under the state directory.
func buildStore(cfg config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		slog.Debug("Configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(cfg.DatabaseURL))
	}
	dbPath := filepath.Join(cfg.StateDir, DefaultDBFileName)
	slog.Debug("Configuring SQLite store", "db_path", dbPath)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dbPath))
}

// buildGenAIOptions constructs GenAI configuration options.
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	return opts
}

// buildTwilioOptions constructs Twilio configuration options.
func buildTwilioOptions(flags Flags) []twiliosms.Option {
	var opts []twiliosms.Option
	if *flags.twilioSID != "" {
		opts = append(opts, twiliosms.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioAuth != "" {
		opts = append(opts, twiliosms.WithAuthToken(*flags.twilioAuth))
	}
	return opts
}

// defaultWorkerID builds a stable-ish identity from the hostname plus a
// random suffix so two workers on one host never share a lock identity.
func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
