package llamacpp

import "testing"

func TestGrowPieceBuf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		size, n    int
		wantResize int
	}{
		{"fits", 256, 12, 256},
		{"needs more", 256, -300, 300},
		{"negative but fits", 256, -8, 256},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := growPieceBuf(tc.size, tc.n); got != tc.wantResize {
				t.Fatalf("growPieceBuf(%d, %d) = %d, want %d", tc.size, tc.n, got, tc.wantResize)
			}
		})
	}
}
