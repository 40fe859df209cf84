//go:build !llamacpp

package backend

import (
	"fmt"

	"github.com/samcharles93/chatloop/internal/engine"
)

func NewLlamaCpp(string, engine.Options) (engine.Engine, error) {
	return nil, fmt.Errorf("llama.cpp backend is not available in this build (rebuild with -tags llamacpp)")
}
