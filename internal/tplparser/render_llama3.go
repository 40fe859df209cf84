package tplparser

import "strings"

func renderLlama3(opts RenderOptions) (string, bool, error) {
	var b strings.Builder
	writeBOS(&b, opts)

	for _, m := range opts.Messages {
		writeLlama3Header(&b, m.Role)
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("<|eot_id|>")
	}

	if opts.AddGenerationPrompt {
		writeLlama3Header(&b, "assistant")
	}
	return b.String(), true, nil
}

func writeLlama3Header(b *strings.Builder, role string) {
	b.WriteString("<|start_header_id|>")
	b.WriteString(role)
	b.WriteString("<|end_header_id|>\n\n")
}
