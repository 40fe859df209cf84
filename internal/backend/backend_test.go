package backend

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/logger"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", Auto, false},
		{" TOY ", Toy, false},
		{"llama.cpp", LlamaCpp, false},
		{"llamacpp", LlamaCpp, false},
		{"cuda", "", true},
	}
	for _, tc := range tests {
		got, err := Normalize(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("Normalize(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestResolveByExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, path, want string
		wantErr          bool
	}{
		{"auto", "models/tiny.yaml", Toy, false},
		{"", "models/tiny.YML", Toy, false},
		{"auto", "models/qwen.gguf", LlamaCpp, false},
		{"toy", "models/qwen.gguf", Toy, false},
		{"auto", "models/weights.bin", "", true},
	}
	for _, tc := range tests {
		got, err := Resolve(tc.name, tc.path)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("Resolve(%q, %q) = %q, %v", tc.name, tc.path, got, err)
		}
	}
}

func TestOpenToy(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tiny.yaml")
	if err := os.WriteFile(path, []byte("seed: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	eng, err := Open(Auto, path, engine.Options{ContextSize: 64, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer eng.Close()
	if eng.Info().Backend != Toy || eng.ContextSize() != 64 {
		t.Fatalf("unexpected engine %+v", eng.Info())
	}
}

func TestAvailableListsToy(t *testing.T) {
	t.Parallel()

	if !strings.HasPrefix(Available(), Toy) || !Has(Toy) {
		t.Fatalf("toy backend must always be available, got %q", Available())
	}
}
