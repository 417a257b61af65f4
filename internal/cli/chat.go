package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ezralim/compere/internal/config"
	"github.com/ezralim/compere/pkg/agent"
	"github.com/ezralim/compere/pkg/rules"
	"github.com/ezralim/compere/pkg/store"
)

var (
	chatSessionKey  string
	chatUserID      string
	chatPersonaID   string
	chatPersonaText string
	chatStream      bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <instruction>",
	Short: "Run one conversation turn from the terminal",
	Long: `Run one conversation turn against the configured model provider.
With --session-key the turn is stored and prior turns in the same session
feed the prompt; without it the turn is ephemeral and nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionKey, "session-key", "", "session key for stored conversations")
	chatCmd.Flags().StringVar(&chatUserID, "user", "", "user id for persona lookup")
	chatCmd.Flags().StringVar(&chatPersonaID, "persona-id", "", "persona id to apply")
	chatCmd.Flags().StringVar(&chatPersonaText, "persona-text", "", "verbatim persona text to apply")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "print the reply as it streams")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Diagnostics go to stderr so the reply on stdout stays pipeable.
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()

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

	deps := agent.Deps{
		Provider: provider,
		Rules:    engine,
		Logger:   log,
	}

	// The store only opens when something needs it: a session key to
	// persist under, or a user/persona to look up.
	if chatSessionKey != "" || chatUserID != "" || chatPersonaID != "" {
		st, err := store.New(store.Config{
			Path:          cfg.Database.Path,
			BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
			Logger:        log,
		})
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()
		deps.Conversations = st
		deps.Personas = st
	}

	ag, err := agent.New(deps, agent.Options{
		AgentLabel:    cfg.Agent.Label,
		UserID:        chatUserID,
		SessionKey:    chatSessionKey,
		PersonaText:   chatPersonaText,
		PersonaID:     chatPersonaID,
		Model:         cfg.Model.Name,
		MaxTokens:     cfg.Model.MaxTokens,
		Temperature:   cfg.Model.Temperature,
		HistoryLimit:  cfg.Agent.HistoryLimit,
		ContextCap:    cfg.Agent.ContextCap,
		RetryAttempts: cfg.Agent.RetryAttempts,
		RetryDelay:    cfg.Agent.RetryDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instruction := args[0]

	if chatStream {
		ch, err := ag.StreamReply(ctx, instruction)
		if err != nil {
			return err
		}
		for chunk := range ch {
			switch chunk.Kind {
			case agent.ChunkDelta:
				fmt.Print(chunk.Delta)
			case agent.ChunkRetry:
				// Deltas printed so far are void; the turn restarts.
				fmt.Fprintf(os.Stderr, "\n[attempt %d failed, retrying]\n", chunk.Attempt)
			case agent.ChunkDone:
				fmt.Println()
			case agent.ChunkError:
				return chunk.Err
			}
		}
		return nil
	}

	reply, err := ag.Reply(ctx, instruction)
	if err != nil {
		return err
	}
	fmt.Println(reply.Text)
	return nil
}
