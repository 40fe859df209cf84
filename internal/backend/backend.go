// Package backend picks the engine implementation for a model file.
package backend

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/toy"
)

const (
	Toy      = "toy"
	LlamaCpp = "llamacpp"
	Auto     = "auto"
)

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	switch backend {
	case Toy, LlamaCpp, Auto:
		return backend, nil
	case "llama.cpp", "llama", "gguf":
		return LlamaCpp, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, toy, or llamacpp)", backend)
	}
}

// Resolve turns a requested backend into a concrete one for path. Auto
// selects by file extension.
func Resolve(name, path string) (string, error) {
	backend, err := Normalize(name)
	if err != nil {
		return "", err
	}
	if backend != Auto {
		return backend, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Toy, nil
	case ".gguf":
		return LlamaCpp, nil
	default:
		return "", fmt.Errorf("cannot infer backend for %q (expected .gguf or .yaml, or pass --backend)", path)
	}
}

// Open loads the model at path with the selected backend.
func Open(name, path string, opts engine.Options) (engine.Engine, error) {
	backend, err := Resolve(name, path)
	if err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()
	switch backend {
	case Toy:
		return toy.Open(path, opts)
	case LlamaCpp:
		return NewLlamaCpp(path, opts)
	default:
		return nil, fmt.Errorf("backend %q is not supported", backend)
	}
}
