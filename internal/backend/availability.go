package backend

import "strings"

// Available returns a comma-separated list of available backends.
func Available() string {
	entries := []string{Toy}
	if Has(LlamaCpp) {
		entries = append(entries, LlamaCpp)
	}
	return strings.Join(entries, ",")
}
