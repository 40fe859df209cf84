//go:build llamacpp

package backend

func Has(name string) bool {
	switch name {
	case LlamaCpp:
		return true
	default:
		return name == Toy
	}
}
