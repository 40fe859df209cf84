package tplparser

import (
	"fmt"
	"strings"
)

// renderGemma follows the Gemma turn format. Gemma has no system role, so a
// leading system message is folded into the first user turn.
func renderGemma(opts RenderOptions) (string, bool, error) {
	var b strings.Builder
	writeBOS(&b, opts)

	msgs := opts.Messages
	system := ""
	if len(msgs) > 0 && isRole(msgs[0].Role, "system", "developer") {
		system = strings.TrimSpace(msgs[0].Content)
		msgs = msgs[1:]
	}

	for i, m := range msgs {
		role := m.Role
		switch role {
		case "assistant":
			role = "model"
		case "user", "model":
		default:
			return "", false, fmt.Errorf("gemma: unsupported role %q", m.Role)
		}
		b.WriteString("<start_of_turn>")
		b.WriteString(role)
		b.WriteString("\n")
		if i == 0 && system != "" {
			b.WriteString(system)
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("<end_of_turn>\n")
	}

	if opts.AddGenerationPrompt {
		b.WriteString("<start_of_turn>model\n")
	}
	return b.String(), true, nil
}

func isRole(role string, names ...string) bool {
	for _, n := range names {
		if strings.EqualFold(role, n) {
			return true
		}
	}
	return false
}
