//go:build !llamacpp

package backend

func Has(name string) bool {
	return name == Toy
}
