package agent

import (
	"fmt"
	"strings"

	"github.com/ezralim/compere/pkg/store"
)

// BuildPrompt assembles the ordered prompt for one turn: the system rules,
// an optional persona block, an optional memory block, then the instruction.
// Persona and memory are capped to the last limit runes; the instruction is
// never truncated. The block tags match the wording of the system rules so
// the model can tell injected context from the live conversation. Persona
// and memory content is framed, not escaped; the rules text is what keeps
// the model from treating it as instructions.
func BuildPrompt(rulesText, personaText, memoryText, instruction string, limit int) []PromptMessage {
	prompt := make([]PromptMessage, 0, 4)
	prompt = append(prompt, PromptMessage{Role: RoleSystem, Content: rulesText})

	if personaText != "" {
		prompt = append(prompt, PromptMessage{
			Role:    RoleAssistant,
			Name:    "persona",
			Content: "User [profile]:\n" + tail(personaText, limit),
		})
	}
	if memoryText != "" {
		prompt = append(prompt, PromptMessage{
			Role:    RoleAssistant,
			Name:    "memory",
			Content: "Prior conversation [memory]:\n" + tail(memoryText, limit),
		})
	}

	prompt = append(prompt, PromptMessage{Role: RoleUser, Content: instruction})
	return prompt
}

// renderMemory flattens persisted messages, oldest first, into one
// "[role] content" line each. Rows missing a role or content are dropped
// rather than aborting the render.
func renderMemory(msgs []store.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "" || m.Content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n")
}

// tail keeps the last limit runes of s. Counting runes rather than bytes
// means multi-byte text is never split mid-character. A limit of zero or
// less disables the cap.
func tail(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[len(runes)-limit:])
}
