package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ezralim/compere/internal/tracing"
	"github.com/ezralim/compere/pkg/agent"
)

// maxRequestBody bounds chat request bodies (1MB).
const maxRequestBody = 1 << 20

type chatRequest struct {
	Instruction string `json:"instruction"`
	SessionKey  string `json:"session_key"`
	UserID      string `json:"user_id,omitempty"`
	PersonaID   string `json:"persona_id,omitempty"`
}

type chatResponse struct {
	Text       string           `json:"text"`
	Model      string           `json:"model"`
	Usage      agent.TokenUsage `json:"usage"`
	ElapsedMS  int64            `json:"elapsed_ms"`
	SessionKey string           `json:"session_key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// chunkFrame is the wire shape of one stream event, shared by the SSE and
// websocket endpoints.
type chunkFrame struct {
	Kind      string            `json:"kind"`
	Delta     string            `json:"delta,omitempty"`
	Attempt   int               `json:"attempt,omitempty"`
	Text      string            `json:"text,omitempty"`
	Usage     *agent.TokenUsage `json:"usage,omitempty"`
	ElapsedMS int64             `json:"elapsed_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func frameFromChunk(c agent.Chunk) chunkFrame {
	f := chunkFrame{Kind: string(c.Kind)}
	switch c.Kind {
	case agent.ChunkDelta:
		f.Delta = c.Delta
	case agent.ChunkRetry:
		f.Attempt = c.Attempt
	case agent.ChunkDone:
		f.Text = c.Text
		usage := c.Usage
		f.Usage = &usage
		f.ElapsedMS = c.Elapsed.Milliseconds()
	case agent.ChunkError:
		if c.Err != nil {
			f.Error = c.Err.Error()
		}
	}
	return f
}

// newAgent builds the per-request agent bound to this conversation.
func (s *Server) newAgent(sessionKey, userID, personaID string) (*agent.Agent, error) {
	return agent.New(agent.Deps{
		Conversations: s.cfg.Store,
		Personas:      s.cfg.Store,
		Provider:      s.cfg.Provider,
		Rules:         s.cfg.Rules,
		Logger:        s.logger,
	}, agent.Options{
		AgentLabel:    s.cfg.Agent.Label,
		UserID:        userID,
		SessionKey:    sessionKey,
		PersonaID:     personaID,
		Model:         s.cfg.Model.Name,
		MaxTokens:     s.cfg.Model.MaxTokens,
		Temperature:   s.cfg.Model.Temperature,
		HistoryLimit:  s.cfg.Agent.HistoryLimit,
		ContextCap:    s.cfg.Agent.ContextCap,
		RetryAttempts: s.cfg.Agent.RetryAttempts,
		RetryDelay:    s.cfg.Agent.RetryDelay,
	})
}

func (s *Server) requestContext(r *http.Request, req *chatRequest) context.Context {
	ctx := tracing.NewRequestContext(r.Context())
	if req.SessionKey != "" {
		ctx = tracing.WithSessionKey(ctx, req.SessionKey)
	}
	if req.UserID != "" {
		ctx = tracing.WithUserID(ctx, req.UserID)
	}
	return ctx
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*chatRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

// handleChat serves POST /v1/chat: one validated single-shot turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}
	instruction, err := s.validateChatRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ag, err := s.newAgent(req.SessionKey, req.UserID, req.PersonaID)
	if err != nil {
		s.logger.Error().Err(err).Msg("agent construction failed")
		writeError(w, http.StatusInternalServerError, "agent construction failed")
		return
	}

	reply, err := ag.Reply(s.requestContext(r, req), instruction)
	if err != nil {
		s.logger.Error().Err(err).Str("session_key", req.SessionKey).Msg("turn failed")
		writeError(w, http.StatusBadGateway, "turn failed")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Text:       reply.Text,
		Model:      reply.Model,
		Usage:      reply.Usage,
		ElapsedMS:  reply.Elapsed.Milliseconds(),
		SessionKey: req.SessionKey,
	})
}

// handleChatStream serves POST /v1/chat/stream: one validated turn as SSE.
// Every chunk is a `data: {json}` frame; the stream ends with a done or
// error frame followed by `data: [DONE]`.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}
	instruction, err := s.validateChatRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ag, err := s.newAgent(req.SessionKey, req.UserID, req.PersonaID)
	if err != nil {
		s.logger.Error().Err(err).Msg("agent construction failed")
		writeError(w, http.StatusInternalServerError, "agent construction failed")
		return
	}

	ctx, cancel := context.WithCancel(s.requestContext(r, req))
	defer cancel()

	ch, err := ag.StreamReply(ctx, instruction)
	if err != nil {
		s.logger.Error().Err(err).Msg("stream start failed")
		writeError(w, http.StatusInternalServerError, "stream start failed")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range ch {
		data, err := json.Marshal(frameFromChunk(chunk))
		if err != nil {
			s.logger.Error().Err(err).Msg("chunk marshal failed")
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			// Client went away; stop the turn and drain the channel.
			cancel()
			for range ch {
			}
			return
		}
		flusher.Flush()
	}

	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// handleChatWS serves GET /v1/chat/ws. Each JSON message on the socket is
// one chat request; the turn's chunks come back as one JSON frame each.
// Turns run one at a time per connection.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		s.serveWSTurn(r, conn, &req)
	}
}

func (s *Server) serveWSTurn(r *http.Request, conn *websocket.Conn, req *chatRequest) {
	instruction, err := s.validateChatRequest(req)
	if err != nil {
		_ = conn.WriteJSON(chunkFrame{Kind: string(agent.ChunkError), Error: err.Error()})
		return
	}

	ag, err := s.newAgent(req.SessionKey, req.UserID, req.PersonaID)
	if err != nil {
		s.logger.Error().Err(err).Msg("agent construction failed")
		_ = conn.WriteJSON(chunkFrame{Kind: string(agent.ChunkError), Error: "agent construction failed"})
		return
	}

	ctx, cancel := context.WithCancel(s.requestContext(r, req))
	defer cancel()

	ch, err := ag.StreamReply(ctx, instruction)
	if err != nil {
		s.logger.Error().Err(err).Msg("stream start failed")
		_ = conn.WriteJSON(chunkFrame{Kind: string(agent.ChunkError), Error: "stream start failed"})
		return
	}

	for chunk := range ch {
		if err := conn.WriteJSON(frameFromChunk(chunk)); err != nil {
			cancel()
			for range ch {
			}
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
