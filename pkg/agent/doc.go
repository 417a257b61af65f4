// Package agent runs conversational turns against a chat-completion provider.
//
// An Agent is constructed per conversation and resolves its external state
// lazily: the persona text once per instance, the session id once per key.
// Each turn loads recent history, assembles a bounded prompt, persists the
// user message, invokes the model (single-shot or streaming) and persists
// the assistant message with usage counters.
//
// Invariants:
// - Persona resolution runs at most once per instance, whatever the outcome.
// - Memory for a turn never contains that turn's own instruction.
// - The whole turn retries on failure; per-turn idempotency keys keep
//   retried persistence from duplicating rows.
//
// Usage:
//
//	a, _ := agent.New(deps, agent.Options{
//		AgentLabel: "Compere",
//		SessionKey: "session_1756000000000_u42_QUFBQUFBQUE=",
//		UserID:     "u42",
//		Model:      "gpt-4o-mini",
//	})
//	reply, _ := a.Reply(ctx, "What did we cover last time?")
//	_ = reply
package agent
