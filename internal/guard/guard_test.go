package guard

import "testing"

func TestStallTripsAtThreshold(t *testing.T) {
	t.Parallel()

	s := NewStall(0)
	for i := 1; i < DefaultStallThreshold; i++ {
		if run, tripped := s.Observe(7); tripped {
			t.Fatalf("tripped early at repeat %d (run=%d)", i, run)
		}
	}
	run, tripped := s.Observe(7)
	if !tripped || run != DefaultStallThreshold {
		t.Fatalf("expected trip at %d, got run=%d tripped=%v", DefaultStallThreshold, run, tripped)
	}
}

func TestStallResetsOnDifferentToken(t *testing.T) {
	t.Parallel()

	s := NewStall(3)
	s.Observe(1)
	s.Observe(1)
	if run, _ := s.Observe(2); run != 1 {
		t.Fatalf("expected run reset to 1, got %d", run)
	}
	if last, ok := s.Last(); !ok || last != 2 {
		t.Fatalf("expected last=2, got %d (%v)", last, ok)
	}
	s.Reset()
	if _, ok := s.Last(); ok {
		t.Fatalf("expected no last token after reset")
	}
	// Token 0 must not be mistaken for "no previous token".
	s.Observe(0)
	if run, _ := s.Observe(0); run != 2 {
		t.Fatalf("expected run 2 for repeated id 0, got %d", run)
	}
}

func TestAnomalyThreshold(t *testing.T) {
	t.Parallel()

	a := NewAnomaly(nil, 0)
	for i := 1; i < DefaultAnomalyThreshold; i++ {
		if _, tripped := a.Observe("("); tripped {
			t.Fatalf("tripped early at piece %d", i)
		}
	}
	if run, tripped := a.Observe("("); !tripped || run != DefaultAnomalyThreshold {
		t.Fatalf("expected trip at 10th piece, run=%d tripped=%v", run, tripped)
	}
}

func TestAnomalyInterleavedResets(t *testing.T) {
	t.Parallel()

	a := NewAnomaly(nil, 0)
	for i := 0; i < 4; i++ {
		a.Observe("@")
	}
	if run, _ := a.Observe("a"); run != 0 {
		t.Fatalf("expected reset at position 5, got run %d", run)
	}
	for i := 0; i < 9; i++ {
		if _, tripped := a.Observe(")"); tripped {
			t.Fatalf("tripped after reset at piece %d", i+1)
		}
	}
}

func TestDefaultClassifier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		piece string
		want  bool
	}{
		{"(", true},
		{")", true},
		{"@", true},
		{"ó", true},
		{"gó", true},
		{"a", false},
		{" (", false},
		{"((", false},
		{"", false},
		{"hello", false},
	}
	for _, tc := range cases {
		if got := DefaultClassifier.Suspicious(tc.piece); got != tc.want {
			t.Errorf("Suspicious(%q) = %v, want %v", tc.piece, got, tc.want)
		}
	}
}

func TestCustomClassifier(t *testing.T) {
	t.Parallel()

	a := NewAnomaly(ClassifierFunc(func(p string) bool { return p == "�" }), 2)
	a.Observe("�")
	if _, tripped := a.Observe("�"); !tripped {
		t.Fatalf("expected custom classifier to trip at 2")
	}
	a.Reset()
	if a.Run() != 0 {
		t.Fatalf("expected run 0 after reset")
	}
}
