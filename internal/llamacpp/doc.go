// Package llamacpp runs GGUF models through llama.cpp, loaded at runtime
// via github.com/hybridgroup/yzma. The adapter is compiled only with the
// llamacpp build tag; without it the backend package reports the engine as
// unavailable.
//
// The shared libraries are located from engine.Options.LibPath, then the
// YZMA_LIB environment variable.
package llamacpp
