package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ezralim/compere/internal/config"
	"github.com/ezralim/compere/internal/logger"
	"github.com/ezralim/compere/internal/server"
	"github.com/ezralim/compere/internal/tracing"
	"github.com/ezralim/compere/pkg/agent"
	"github.com/ezralim/compere/pkg/rules"
	"github.com/ezralim/compere/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Compere HTTP server",
	Long: `Run the Compere HTTP server in the foreground.
The server answers single-shot turns on /v1/chat, streams over SSE on
/v1/chat/stream and over WebSocket on /v1/chat/ws, and stores every turn
in the conversation database until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// A .env in the working directory is a dev convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetZerolog()

	if err := tracing.InitOpenTelemetry("compere"); err != nil {
		log.Warn().Err(err).Msg("OpenTelemetry init failed, traces disabled")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			log.Warn().Err(err).Msg("OpenTelemetry shutdown failed")
		}
	}()

	st, err := store.New(store.Config{
		Path:          cfg.Database.Path,
		BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	provider, err := agent.NewProvider(agent.ProviderConfig{
		Kind:    cfg.Model.Provider,
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create model provider: %w", err)
	}

	engine, err := rules.New(rules.Config{
		AgentLabel: cfg.Agent.Label,
		Path:       cfg.Agent.RulesFile,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to create rules engine: %w", err)
	}
	defer engine.Stop()

	srv, err := server.NewServer(server.Config{
		HTTP:     cfg.Server,
		Agent:    cfg.Agent,
		Model:    cfg.Model,
		Store:    st,
		Provider: provider,
		Rules:    engine,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	var maint *store.Maintenance
	if cfg.Maintenance.Enabled {
		maint = store.NewMaintenance(st, cfg.Maintenance.Schedule, log)
		if err := maint.Start(); err != nil {
			log.Warn().Err(err).Msg("Store maintenance not started")
			maint = nil
		}
	}

	log.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("provider", provider.Name()).
		Str("model", cfg.Model.Name).
		Msg("Compere is serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	if maint != nil {
		maint.Stop()
	}
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}
