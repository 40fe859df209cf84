// Package tplparser renders chat conversations for the handful of prompt
// formats small chat models use, without a Jinja runtime.
package tplparser

import "strings"

const (
	ChatML = "chatml"
	Gemma  = "gemma"
	Llama3 = "llama3"
)

// Render returns (output, ok). ok=false means the template is unsupported.
func Render(opts RenderOptions) (string, bool, error) {
	if opts.Template == "" {
		return renderByArch(opts)
	}
	if out, ok, err := renderByName(opts); ok || err != nil {
		return out, ok, err
	}
	if out, ok, err := renderByTemplateSignature(opts); ok || err != nil {
		return out, ok, err
	}
	return "", false, nil
}

// Apply renders into buf and returns the full rendered length. If the
// result does not fit, buf is left untouched and the caller retries with a
// buffer of at least the returned size. Unsupported templates and render
// errors return -1.
func Apply(opts RenderOptions, buf []byte) int {
	out, ok, err := Render(opts)
	if !ok || err != nil {
		return -1
	}
	if len(out) <= len(buf) {
		copy(buf, out)
	}
	return len(out)
}

// Supported reports whether tmpl names or looks like a known template.
func Supported(tmpl string) bool {
	_, ok, _ := Render(RenderOptions{Template: tmpl})
	return ok
}

func renderByName(opts RenderOptions) (string, bool, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Template)) {
	case ChatML:
		return renderChatML(opts)
	case Gemma:
		return renderGemma(opts)
	case Llama3:
		return renderLlama3(opts)
	default:
		return "", false, nil
	}
}

func renderByArch(opts RenderOptions) (string, bool, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Arch)) {
	case "lfm2", "qwen2", "qwen3", "toy":
		return renderChatML(opts)
	case "gemma", "gemma2", "gemma3", "gemma3_text":
		return renderGemma(opts)
	case "llama":
		return renderLlama3(opts)
	default:
		return "", false, nil
	}
}

func renderByTemplateSignature(opts RenderOptions) (string, bool, error) {
	tpl := opts.Template
	switch {
	case strings.Contains(tpl, "<start_of_turn>") && strings.Contains(tpl, "<end_of_turn>"):
		return renderGemma(opts)
	case strings.Contains(tpl, "<|start_header_id|>") && strings.Contains(tpl, "<|eot_id|>"):
		return renderLlama3(opts)
	case strings.Contains(tpl, "<|im_start|>") && strings.Contains(tpl, "<|im_end|>"):
		return renderChatML(opts)
	default:
		return "", false, nil
	}
}

func writeBOS(b *strings.Builder, opts RenderOptions) {
	if !opts.AddBOS && opts.BOSToken != "" {
		b.WriteString(opts.BOSToken)
	}
}
