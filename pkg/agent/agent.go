package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ezralim/compere/internal/observability"
	"github.com/ezralim/compere/internal/tracing"
	"github.com/ezralim/compere/pkg/persona"
	"github.com/ezralim/compere/pkg/rules"
	"github.com/ezralim/compere/pkg/store"
)

// fallbackNudge stands in for a profile when a persona source was configured
// but nothing usable came back.
const fallbackNudge = "We haven't pulled up your user profile yet. Mind giving a gentle nudge to sign in and fill out your details? The login button is tucked in the top-left corner. 😊"

// Agent runs turns for one conversation. Persona text and the session id are
// resolved lazily and cached on the instance. An Agent is not safe for
// concurrent Reply/StreamReply calls on the same instance; build one per
// conversation (the HTTP layer builds one per request).
type Agent struct {
	opts Options
	deps Deps
	log  zerolog.Logger

	personaLoaded bool
	personaText   string
	sessionID     string
}

// New validates deps against the options and returns a ready agent.
func New(deps Deps, opts Options) (*Agent, error) {
	opts.applyDefaults()

	if deps.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model name is required")
	}
	if opts.SessionKey != "" && deps.Conversations == nil {
		return nil, errors.New("conversation store is required when a session key is set")
	}
	if (opts.UserID != "" || opts.PersonaID != "") && deps.Personas == nil {
		return nil, errors.New("persona store is required when a user id or persona id is set")
	}

	return &Agent{
		opts: opts,
		deps: deps,
		log: deps.Logger.With().
			Str("component", "agent").
			Str("agent", opts.AgentLabel).
			Logger(),
	}, nil
}

// Reply runs one single-shot turn and returns the completed response.
func (a *Agent) Reply(ctx context.Context, instruction string) (*Reply, error) {
	turnID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate turn id: %w", err)
	}
	ctx = tracing.NewTurnContext(ctx, turnID)
	ctx, span := tracing.StartTurnSpan(ctx, "agent.reply",
		attribute.String("model", a.opts.Model),
	)
	defer span.End()

	started := time.Now()
	reply, err := a.withRetry(ctx, turnID, func() (*Reply, error) {
		return a.runTurn(ctx, instruction, turnID, nil)
	}, nil)
	observability.RecordTurn("reply", time.Since(started), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return reply, nil
}

// StreamReply runs one streaming turn. The returned channel yields ChunkDelta
// events as text arrives and always ends with a terminal ChunkDone or
// ChunkError before closing. A failed attempt is announced with ChunkRetry;
// deltas seen before it belong to the abandoned attempt.
func (a *Agent) StreamReply(ctx context.Context, instruction string) (<-chan Chunk, error) {
	turnID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate turn id: %w", err)
	}

	ch := make(chan Chunk, 64)
	go a.streamTurn(ctx, instruction, turnID, ch)
	return ch, nil
}

func (a *Agent) streamTurn(ctx context.Context, instruction, turnID string, ch chan<- Chunk) {
	defer close(ch)

	observability.IncActiveStreams()
	defer observability.DecActiveStreams()

	ctx = tracing.NewTurnContext(ctx, turnID)
	ctx, span := tracing.StartTurnSpan(ctx, "agent.stream_reply",
		attribute.String("model", a.opts.Model),
	)
	defer span.End()

	// Sends must not outlive the caller: give up as soon as ctx is done.
	send := func(c Chunk) bool {
		select {
		case ch <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}
	// The terminal chunk still goes out on a cancelled turn: the channel is
	// buffered, so a caller draining after cancel observes it before close.
	sendTerminal := func(c Chunk) {
		if send(c) {
			return
		}
		select {
		case ch <- c:
		default:
		}
	}

	started := time.Now()
	reply, err := a.withRetry(ctx, turnID, func() (*Reply, error) {
		return a.runTurn(ctx, instruction, turnID, func(delta string) error {
			observability.RecordStreamDelta()
			if !send(Chunk{Kind: ChunkDelta, Delta: delta}) {
				return ctx.Err()
			}
			return nil
		})
	}, func(attempt int, attemptErr error) {
		send(Chunk{Kind: ChunkRetry, Attempt: attempt})
	})
	observability.RecordTurn("stream", time.Since(started), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		sendTerminal(Chunk{Kind: ChunkError, Err: err})
		return
	}
	sendTerminal(Chunk{Kind: ChunkDone, Text: reply.Text, Usage: reply.Usage, Elapsed: reply.Elapsed})
}

// runTurn executes one attempt of the full pipeline: persona, session,
// memory, prompt, user persistence, model call, assistant persistence.
func (a *Agent) runTurn(ctx context.Context, instruction, turnID string, onDelta func(string) error) (*Reply, error) {
	started := time.Now()

	a.ensurePersona(ctx)

	var sessionID string
	if a.opts.SessionKey != "" {
		id, err := a.resolveSession(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = id
	}

	var memoryText string
	if sessionID != "" {
		text, err := a.loadMemory(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		memoryText = text
	}

	prompt := BuildPrompt(a.rulesText(), a.personaText, memoryText, instruction, a.opts.ContextCap)

	if err := a.persistTurn(ctx, sessionID, RoleUser, instruction, turnID+":user", nil, 0); err != nil {
		return nil, err
	}

	req := Request{
		Model:       a.opts.Model,
		Messages:    prompt,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	}
	callStarted := time.Now()
	var resp *Response
	var err error
	if onDelta != nil {
		resp, err = a.deps.Provider.InvokeStream(ctx, req, onDelta)
	} else {
		resp, err = a.deps.Provider.Invoke(ctx, req)
	}
	observability.RecordModelCall(a.deps.Provider.Name(), time.Since(callStarted), err == nil)
	if err != nil {
		return nil, err
	}
	observability.RecordTokens(a.deps.Provider.Name(), resp.Usage.InputTokens, resp.Usage.OutputTokens)

	elapsed := time.Since(started)
	if err := a.persistTurn(ctx, sessionID, RoleAssistant, resp.Text, turnID+":assistant", &resp.Usage, elapsed); err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = a.opts.Model
	}
	return &Reply{Text: resp.Text, Model: model, Usage: resp.Usage, Elapsed: elapsed}, nil
}

// withRetry re-runs the whole turn on any error, up to the configured number
// of attempts with a fixed delay between them. Retried persistence is
// deduplicated by the turn's idempotency keys. Context cancellation stops
// retrying immediately.
func (a *Agent) withRetry(ctx context.Context, turnID string, runOnce func() (*Reply, error), onRetry func(attempt int, err error)) (*Reply, error) {
	var lastErr error
	for attempt := 1; attempt <= a.opts.RetryAttempts; attempt++ {
		reply, err := runOnce()
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		a.log.Warn().
			Err(err).
			Str("turn_id", turnID).
			Str("session_key", a.opts.SessionKey).
			Int("attempt", attempt).
			Int("max_attempts", a.opts.RetryAttempts).
			Msg("turn attempt failed")

		if attempt == a.opts.RetryAttempts {
			break
		}
		observability.RecordTurnRetry(a.deps.Provider.Name())
		if onRetry != nil {
			onRetry(attempt, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.opts.RetryDelay):
		}
	}
	return nil, fmt.Errorf("turn failed after %d attempts: %w", a.opts.RetryAttempts, lastErr)
}

// ensurePersona resolves the persona text at most once per instance. The
// latch is set before any lookup so a failed resolution never re-runs.
// Lookup failures are logged and degrade to the fallback nudge; with no
// persona source configured at all the text stays empty.
func (a *Agent) ensurePersona(ctx context.Context) {
	if a.personaLoaded {
		return
	}
	a.personaLoaded = true

	if a.opts.PersonaText != "" {
		a.personaText = a.opts.PersonaText
		return
	}
	if a.opts.UserID == "" && a.opts.PersonaID == "" {
		return
	}
	if text := a.lookupPersona(ctx); text != "" {
		a.personaText = text
		return
	}
	a.personaText = fallbackNudge
}

// lookupPersona tries the user's default persona, then an explicit persona
// id. Errors are swallowed: persona loading must never fail the turn.
func (a *Agent) lookupPersona(ctx context.Context) string {
	if a.opts.UserID != "" && a.opts.PersonaID == "" {
		personas, err := a.deps.Personas.PersonasByUser(ctx, a.opts.UserID)
		if err != nil {
			a.log.Warn().Err(err).Str("user_id", a.opts.UserID).Msg("persona list failed")
			return ""
		}
		for i := range personas {
			if personas[i].IsDefault {
				return a.compileProfile(&personas[i])
			}
		}
		return ""
	}

	if a.opts.PersonaID != "" {
		p, err := a.deps.Personas.PersonaByID(ctx, a.opts.PersonaID)
		if err != nil || p == nil {
			a.log.Warn().Err(err).Str("persona_id", a.opts.PersonaID).Msg("persona fetch failed")
			return ""
		}
		return a.compileProfile(p)
	}

	return ""
}

func (a *Agent) compileProfile(p *store.Persona) string {
	text, err := persona.CompileProfile(p.Profile)
	observability.RecordPersonaCompile(err == nil)
	if err != nil {
		a.log.Warn().Err(err).Str("persona_id", p.ID).Msg("persona profile failed to compile")
		return ""
	}
	return text
}

// resolveSession maps the opaque session key to a persisted session id,
// caching the id for the life of the instance. Store failures propagate:
// session identity is on the critical path.
func (a *Agent) resolveSession(ctx context.Context) (string, error) {
	if a.sessionID != "" {
		return a.sessionID, nil
	}
	session, err := a.deps.Conversations.GetOrCreateSession(ctx, a.opts.SessionKey, a.opts.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}
	a.sessionID = session.ID
	return a.sessionID, nil
}

// loadMemory renders the most recent history as flat text, oldest first.
// No rows means no memory; a store error propagates into the retry.
func (a *Agent) loadMemory(ctx context.Context, sessionID string) (string, error) {
	msgs, err := a.deps.Conversations.LastMessages(ctx, sessionID, a.opts.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("failed to load memory: %w", err)
	}
	return renderMemory(msgs), nil
}

// persistTurn writes one side of the exchange. No-op without a session or
// with empty content; failures propagate so the retry can re-run the turn.
func (a *Agent) persistTurn(ctx context.Context, sessionID, role, content, idemKey string, usage *TokenUsage, elapsed time.Duration) error {
	if sessionID == "" || content == "" {
		return nil
	}

	msg := store.Message{
		SessionID:      sessionID,
		Role:           role,
		Content:        content,
		IdempotencyKey: idemKey,
		Metadata: map[string]interface{}{
			"agent": a.opts.AgentLabel,
			"model": a.opts.Model,
		},
	}
	if usage != nil {
		msg.InputTokens = usage.InputTokens
		msg.OutputTokens = usage.OutputTokens
	}
	if elapsed > 0 {
		msg.ResponseTime = elapsed.Seconds()
	}

	if _, err := a.deps.Conversations.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist %s message: %w", role, err)
	}
	return nil
}

func (a *Agent) rulesText() string {
	if a.deps.Rules != nil {
		if text := a.deps.Rules.Current(); text != "" {
			return text
		}
	}
	return rules.DefaultRules(a.opts.AgentLabel)
}
