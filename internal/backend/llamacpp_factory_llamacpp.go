//go:build llamacpp

package backend

import (
	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/llamacpp"
)

func NewLlamaCpp(path string, opts engine.Options) (engine.Engine, error) {
	return llamacpp.Open(path, opts)
}
