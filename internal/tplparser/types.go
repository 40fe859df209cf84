package tplparser

// Message is a single chat message to render.
type Message struct {
	Role    string
	Content string
}

type RenderOptions struct {
	// Template is either a template name ("chatml", "gemma", "llama3") or
	// the source of a model's chat template, which is matched by signature.
	Template string
	// Arch is used when Template is empty.
	Arch                string
	BOSToken            string
	AddBOS              bool
	AddGenerationPrompt bool
	Messages            []Message
}
