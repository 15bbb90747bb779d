package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jonny/guardian/internal/adapter/inbound/api"
	"github.com/jonny/guardian/internal/adapter/inbound/scanner"
	"github.com/jonny/guardian/internal/adapter/outbound/decision/claude"
	"github.com/jonny/guardian/internal/adapter/outbound/decision/ollama"
	"github.com/jonny/guardian/internal/adapter/outbound/decision/rules"
	"github.com/jonny/guardian/internal/adapter/outbound/effector"
	"github.com/jonny/guardian/internal/adapter/outbound/intel"
	"github.com/jonny/guardian/internal/adapter/outbound/notification"
	slacknotifier "github.com/jonny/guardian/internal/adapter/outbound/notification/slack"
	"github.com/jonny/guardian/internal/adapter/outbound/persistence/sqlite"
	"github.com/jonny/guardian/internal/config"
	"github.com/jonny/guardian/internal/domain/port/outbound"
	"github.com/jonny/guardian/internal/domain/service"
	"github.com/jonny/guardian/internal/eventbus"
	"github.com/jonny/guardian/internal/ingest"
	"github.com/jonny/guardian/pkg/health"
	"github.com/jonny/guardian/pkg/version"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = buildLogger(cfg.Logging)

	// --- Database ---
	store, err := sqlite.NewStore(sqlite.Config{
		Path:              cfg.Database.SQLite.Path,
		MaxOpenConns:      cfg.Database.SQLite.MaxOpenConns,
		PragmaJournalMode: cfg.Database.SQLite.PragmaJournalMode,
		PragmaBusyTimeout: cfg.Database.SQLite.PragmaBusyTimeout,
	})
	if err != nil {
		logger.Error("failed to open sqlite store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// --- Repositories ---
	incidentRepo := sqlite.NewIncidentRepo(store)
	seenRepo := sqlite.NewSeenHashRepo(store)
	sysstateRepo := sqlite.NewSysStateRepo(store)

	// --- Decision provider ---
	provider := buildProvider(cfg.LLM)

	// --- Threat intel ---
	intelRouter := intel.NewRouter(
		intel.NewAbuseIPDBClient(cfg.Intel.AbuseIPDB.APIKey, cfg.Intel.AbuseIPDB.Timeout),
		intel.NewVirusTotalClient(cfg.Intel.VirusTotal.APIKey, cfg.Intel.VirusTotal.Timeout),
		logger,
	)

	// --- Effectors & dispatcher ---
	dispatcher := service.NewDispatcher(sysstateRepo, logger,
		effector.NewFirewall(sysstateRepo, logger),
		effector.NewBlocklist(sysstateRepo, logger),
		effector.NewDirectory(sysstateRepo, logger),
		effector.NewIsolation(sysstateRepo, logger),
		effector.NewAlert(sysstateRepo, logger),
	)

	// --- Notifier ---
	var notifier outbound.Notifier
	if cfg.Slack.Enabled && cfg.Slack.BotToken != "" {
		notifier = slacknotifier.NewNotifier(slacknotifier.Config{
			BotToken:       cfg.Slack.BotToken,
			DefaultChannel: cfg.Slack.DefaultChannel,
			Channels:       cfg.Slack.Channels,
			Environment:    cfg.Slack.Environment,
		})
	} else {
		logger.Info("slack disabled, using noop notifier")
		notifier = notification.NewNoopNotifier(logger)
	}

	// --- Approval gate ---
	var gate service.ApprovalGate
	if cfg.Pipeline.Approval.AutoApprove {
		logger.Warn("auto-approve enabled: high-risk incidents execute without a human decision")
		gate = service.AutoApproveGate{}
	} else {
		gate = service.NewPollingGate(incidentRepo, cfg.Pipeline.Approval.PollInterval)
	}

	// --- Engine ---
	bus := eventbus.New()
	defer bus.Close()

	engine := service.NewEngine(provider, intelRouter, gate, dispatcher,
		incidentRepo, bus, notifier, logger,
		service.EngineConfig{
			MaxConcurrent:   cfg.Pipeline.MaxConcurrent,
			ApprovalTimeout: cfg.Pipeline.Approval.Timeout,
		})

	// --- Health checker ---
	checker := health.NewChecker()
	checker.Register("database", func(ctx context.Context) error {
		return store.DB.PingContext(ctx)
	})
	checker.Register("llm", func(ctx context.Context) error {
		return provider.HealthCheck(ctx)
	})

	// --- Passive log scanner ---
	var sc *scanner.Scanner
	if cfg.Scanner.Enabled {
		sc = scanner.New(scanner.Config{
			Dir:      cfg.Scanner.Dir,
			Interval: cfg.Scanner.Interval,
		}, engine, ingest.NewDeduper(seenRepo), logger)
	}

	// --- API server ---
	var scanCtl api.ScanControl
	if sc != nil {
		scanCtl = sc
	}
	handler := api.NewHandler(engine, engine, incidentRepo, sysstateRepo, bus, scanCtl, logger)
	server := api.NewServer(api.ServerConfig{
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	}, handler, checker, logger)

	// --- Signal handling & startup ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gCtx)
	})

	if sc != nil {
		g.Go(func() error {
			return sc.Run(gCtx)
		})
	} else {
		logger.Info("scanner disabled")
	}

	logger.Info("guardian started", "version", version.String(), "provider", cfg.LLM.Provider)

	err = g.Wait()

	// Let in-flight pipeline runs drain before closing the store.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if closeErr := engine.Close(drainCtx); closeErr != nil {
		logger.Warn("pipeline drain incomplete", "error", closeErr)
	}

	if err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("guardian stopped")
}

// buildProvider selects the decision provider configured for this
// deployment. The rules provider needs no external service and is the
// default for local runs.
func buildProvider(cfg config.LLMConfig) outbound.DecisionProvider {
	switch cfg.Provider {
	case "claude":
		return claude.NewClient(claude.Config{
			APIKey:    cfg.Claude.APIKey,
			Model:     cfg.Claude.Model,
			MaxTokens: cfg.Claude.MaxTokens,
			Timeout:   cfg.Claude.Timeout,
		})
	case "ollama":
		return ollama.NewClient(ollama.Config{
			BaseURL:     cfg.Ollama.BaseURL,
			Model:       cfg.Ollama.Model,
			Timeout:     cfg.Ollama.Timeout,
			Temperature: cfg.Ollama.Temperature,
		})
	default:
		return rules.NewProvider()
	}
}

// buildLogger constructs a slog.Logger based on config.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
