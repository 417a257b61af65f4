package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ezralim/compere/pkg/store"
)

// Message roles used in prompts and persisted transcripts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PromptMessage is one role-tagged entry in the model prompt. Name
// distinguishes injected context blocks (persona, memory) from real
// conversation turns; it is never persisted.
type PromptMessage struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// TokenUsage carries the provider's token accounting for one completion.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Reply is the completed result of a single-shot turn.
type Reply struct {
	Text    string        `json:"text"`
	Model   string        `json:"model"`
	Usage   TokenUsage    `json:"usage"`
	Elapsed time.Duration `json:"elapsed"`
}

// ChunkKind discriminates streaming events.
type ChunkKind string

const (
	// ChunkDelta carries a partial piece of assistant text.
	ChunkDelta ChunkKind = "delta"
	// ChunkRetry signals that an attempt failed and the turn is restarting;
	// deltas received before it belong to the failed attempt.
	ChunkRetry ChunkKind = "retry"
	// ChunkDone terminates the stream with the full text and usage.
	ChunkDone ChunkKind = "done"
	// ChunkError terminates the stream after retries are exhausted.
	ChunkError ChunkKind = "error"
)

// Chunk is one event on a streaming turn. Exactly one of ChunkDone or
// ChunkError ends every stream.
type Chunk struct {
	Kind    ChunkKind
	Delta   string        // ChunkDelta
	Attempt int           // ChunkRetry: the attempt that failed
	Text    string        // ChunkDone: full assistant text
	Usage   TokenUsage    // ChunkDone
	Elapsed time.Duration // ChunkDone
	Err     error         // ChunkError
}

// ConversationStore is the slice of the store an agent needs for session
// resolution, memory loads and transcript writes. *store.Store satisfies it.
type ConversationStore interface {
	GetOrCreateSession(ctx context.Context, sessionKey, userID string) (*store.Session, error)
	AppendMessage(ctx context.Context, msg store.Message) (*store.Message, error)
	LastMessages(ctx context.Context, sessionID string, limit int) ([]store.Message, error)
}

// PersonaStore is the slice of the store an agent needs to resolve a
// profile. *store.Store satisfies it.
type PersonaStore interface {
	PersonasByUser(ctx context.Context, userID string) ([]store.Persona, error)
	PersonaByID(ctx context.Context, id string) (*store.Persona, error)
}

// RuleSource yields the current system rules text.
type RuleSource interface {
	Current() string
}

// Deps are the collaborators an agent is built from. Provider is always
// required; Conversations only when a session key is set, Personas only when
// a user id or persona id is set. A nil Rules falls back to the built-in
// defaults for the agent label.
type Deps struct {
	Conversations ConversationStore
	Personas      PersonaStore
	Provider      Provider
	Rules         RuleSource
	Logger        zerolog.Logger
}

// Options bind an agent instance to one conversation.
type Options struct {
	// AgentLabel names the agent in the system rules and message metadata.
	AgentLabel string
	// UserID is the owning user, used for default-persona lookup and session
	// ownership. Optional.
	UserID string
	// SessionKey is the opaque client-supplied conversation key. Empty means
	// no persistence and no memory for the life of the instance.
	SessionKey string
	// PersonaText, when set, is used verbatim and no store lookup happens.
	PersonaText string
	// PersonaID selects an explicit persona; it wins over the user's default.
	PersonaID string

	Model       string
	MaxTokens   int
	Temperature float64

	// HistoryLimit is the number of recent messages loaded as memory.
	HistoryLimit int
	// ContextCap bounds persona and memory blocks in runes; the tail is kept.
	ContextCap int

	RetryAttempts int
	RetryDelay    time.Duration
}

func (o *Options) applyDefaults() {
	if o.AgentLabel == "" {
		o.AgentLabel = "Compere"
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 100
	}
	if o.ContextCap <= 0 {
		o.ContextCap = 10000
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1024
	}
}
