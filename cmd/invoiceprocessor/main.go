package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/uzair166/invoiceprocessor/internal/invoice"
	"github.com/uzair166/invoiceprocessor/internal/logging"
	"github.com/uzair166/invoiceprocessor/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	fs := ff.NewFlagSet("invoiceprocessor")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		env            = fs.StringLong("env", "development", "Environment name; 'production' hides error details")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		logFormat      = fs.StringLong("log-format", "text", "Log format: text or json")
		mode           = fs.StringLong("mode", "single", "Default extraction mode: 'single' or 'multi'")
		requestTimeout = fs.DurationLong("request-timeout", 60*time.Second, "Deadline for a whole upload request")
		storeType      = fs.StringLong("store", "bolt", "Invoice store: 'bolt', 'sqlite' or 'postgres'")
		dbPath         = fs.StringLong("db", "invoices.db", "BoltDB or SQLite file path")
		postgresDSN    = fs.StringLong("postgres-dsn", "", "PostgreSQL connection string (or set DATABASE_URL env var)")
		provider       = fs.StringLong("provider", "openai", "Extraction provider: 'openai', 'gemini' or 'ollama'")
		openAIKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openAIModel    = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI model name")
		openAIURL      = fs.StringLong("openai-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llama3.1", "Ollama model name")
		parallelism    = fs.IntLong("parallelism", 4, "Concurrent saves per multi-invoice document")
		_              = fs.StringLong("config", "", "Config file path (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICEPROCESSOR"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithConfigAllowMissingFile(),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger := logging.New(os.Stderr, logging.Config{Level: *logLevel, Format: *logFormat})

	defaultMode, err := scanning.ParseMode(*mode, scanning.ModeSingle)
	if err != nil {
		logger.Error("Invalid extraction mode", "mode", *mode, "valid", "single or multi")
		os.Exit(1)
	}

	db, err := openStore(*storeType, *dbPath, *postgresDSN, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "store", *storeType, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	extractor, err := newExtractor(*provider, providerConfig{
		openAIKey:   *openAIKey,
		openAIModel: *openAIModel,
		openAIURL:   *openAIURL,
		geminiKey:   *geminiKey,
		geminiModel: *geminiModel,
		ollamaURL:   *ollamaURL,
		ollamaModel: *ollamaModel,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize extraction provider", "provider", *provider, "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	text := scanning.NewTextExtractor(scanning.FitzConverter{}, logger)
	service := invoice.NewService(db, text, extractor, logger)
	service.SetSaveParallelism(*parallelism)

	server := invoice.NewServer(service, invoice.ServerConfig{
		Production:     *env == "production",
		RequestTimeout: *requestTimeout,
		DefaultMode:    defaultMode,
	}, logger)

	addr := fmt.Sprintf(":%d", *port)
	httpServer := server.HTTPServer(addr)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("Server started",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"version", version,
		"env", *env,
		"provider", *provider,
		"store", *storeType,
		"mode", defaultMode,
	)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}

func openStore(storeType, dbPath, dsn string, logger *slog.Logger) (invoice.DB, error) {
	switch storeType {
	case "bolt":
		logger.Info("Initializing database...", "path", dbPath)
		return invoice.NewBoltDB(dbPath)
	case "sqlite":
		logger.Info("Initializing SQLite database...", "path", dbPath)
		return invoice.NewSQLiteDB(dbPath)
	case "postgres":
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		if dsn == "" {
			return nil, errors.New("postgres DSN is required. Set --postgres-dsn flag or DATABASE_URL environment variable")
		}
		logger.Info("Using PostgreSQL; connecting on first request")
		return invoice.NewPostgresDB(dsn, logger), nil
	default:
		return nil, fmt.Errorf("invalid store type %q, valid: bolt, sqlite or postgres", storeType)
	}
}

type providerConfig struct {
	openAIKey   string
	openAIModel string
	openAIURL   string
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
}

func newExtractor(provider string, cfg providerConfig, logger *slog.Logger) (scanning.Extractor, error) {
	switch provider {
	case "openai":
		apiKey := cfg.openAIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		logger.Info("Initializing OpenAI extractor...", "model", cfg.openAIModel)
		return scanning.NewOpenAI(scanning.OpenAIConfig{
			APIKey:  apiKey,
			BaseURL: cfg.openAIURL,
			Model:   cfg.openAIModel,
		}, logger)
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		logger.Info("Initializing Gemini extractor...", "model", cfg.geminiModel)
		return scanning.NewGemini(apiKey, cfg.geminiModel, logger)
	case "ollama":
		logger.Info("Initializing Ollama extractor...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel, logger)
	default:
		return nil, fmt.Errorf("invalid provider %q, valid: openai, gemini or ollama", provider)
	}
}
