package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/adapters"
	ports "github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/ports"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/tooling"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/chat/tools"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/config"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/db"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/history"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/memory"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/server"
	"github.com/ZanzyTHEbar/sparkchat/sparkchat/sparks"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		startupLogger := zerolog.New(os.Stderr)
		startupLogger.Fatal().Err(err).Msg("load config")
	}

	logger := newLogger(cfg.Logging)

	database, err := db.Connect(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	memStore := memory.NewLibSQLStore(database)

	registry := tooling.NewRegistry()
	mustRegister(logger, registry, tools.SaveMemoryDeclaration(), tools.SaveMemoryProcedure(memStore))
	mustRegister(logger, registry, tools.RecallMemoryDeclaration(), tools.RecallMemoryProcedure(memStore))
	registry.Freeze()

	loc, err := time.LoadLocation(cfg.Sparks.ClaimTimezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Sparks.ClaimTimezone).Msg("load claim timezone")
	}

	ledger := sparks.NewLedger(sparks.NewLibSQLStore(database), sparks.DefaultPricing(), sparks.Grants{
		Daily:          cfg.Sparks.DailyGrant,
		VerifiedDaily:  cfg.Sparks.VerifiedDailyGrant,
		InitialBalance: cfg.Sparks.InitialBalance,
	}, loc)

	var tracer ports.Tracer = ports.NoopTracer{}
	if cfg.Chat.EnableTracing {
		tracer = adapters.NewZerologTracer(logger)
	}

	provider := adapters.NewOpenAIProvider(cfg.Provider.BaseURL, cfg.Provider.APIKey, logger)
	historyStore := history.NewLibSQLStore(database)
	orch := chat.NewOrchestrator(provider, registry, historyStore, ledger, tracer, chat.PolicyFromConfig(cfg.Chat))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(orch, ledger, historyStore, logger).Routes(),
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func mustRegister(logger zerolog.Logger, registry *tooling.Registry, decl tooling.Declaration, proc tooling.Procedure) {
	if err := registry.Register(decl, proc); err != nil {
		logger.Fatal().Err(err).Str("tool", decl.Name).Msg("register tool")
	}
}
