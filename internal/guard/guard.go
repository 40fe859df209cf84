// Package guard detects degenerate model output: long runs of the same
// token id (stalls) and runs of suspicious display pieces that corrupted
// model files tend to produce (anomalies).
package guard

const (
	// DefaultStallThreshold is the number of consecutive identical token
	// ids that ends a turn.
	DefaultStallThreshold = 32
	// DefaultAnomalyThreshold is the number of consecutive suspicious
	// pieces that ends a turn.
	DefaultAnomalyThreshold = 10
)

// QualityWarning is shown when the anomaly guard trips.
const QualityWarning = `
[model quality warning]
The model produced a run of abnormal characters. This usually means:
  - the model file is damaged or poorly quantized
  - try a different GGUF model file
  - or check that the model is supported by this engine
`

// Classifier decides whether a single display piece looks corrupted.
type Classifier interface {
	Suspicious(piece string) bool
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(piece string) bool

func (f ClassifierFunc) Suspicious(piece string) bool { return f(piece) }

// CharsetClassifier flags single-byte pieces drawn from Bytes and
// multi-byte pieces that exactly match one of Glyphs.
type CharsetClassifier struct {
	Bytes  string
	Glyphs []string
}

// DefaultClassifier matches the symptoms seen from broken quantizations:
// bare parentheses, at-signs and stray accented fragments.
var DefaultClassifier = CharsetClassifier{
	Bytes:  "()@",
	Glyphs: []string{"ó", "gó"},
}

func (c CharsetClassifier) Suspicious(piece string) bool {
	if len(piece) == 1 {
		for i := 0; i < len(c.Bytes); i++ {
			if piece[0] == c.Bytes[i] {
				return true
			}
		}
		return false
	}
	for _, g := range c.Glyphs {
		if piece == g {
			return true
		}
	}
	return false
}

// Stall counts consecutive repeats of the same token id.
type Stall struct {
	Threshold int

	last    int32
	hasLast bool
	run     int
}

// NewStall returns a stall guard; threshold <= 0 uses the default.
func NewStall(threshold int) *Stall {
	if threshold <= 0 {
		threshold = DefaultStallThreshold
	}
	return &Stall{Threshold: threshold}
}

// Observe records id and reports the current run length and whether it
// reached the threshold.
func (s *Stall) Observe(id int32) (run int, tripped bool) {
	if s.hasLast && id == s.last {
		s.run++
	} else {
		s.run = 1
		s.last = id
		s.hasLast = true
	}
	return s.run, s.run >= s.Threshold
}

// Last returns the previously observed id, if any.
func (s *Stall) Last() (int32, bool) { return s.last, s.hasLast }

// Run returns the current run length.
func (s *Stall) Run() int { return s.run }

// Reset forgets the previous token.
func (s *Stall) Reset() {
	s.hasLast = false
	s.last = 0
	s.run = 0
}

// Anomaly counts consecutive suspicious pieces.
type Anomaly struct {
	Classifier Classifier
	Threshold  int

	run int
}

// NewAnomaly returns an anomaly guard. A nil classifier uses
// DefaultClassifier; threshold <= 0 uses the default.
func NewAnomaly(c Classifier, threshold int) *Anomaly {
	if c == nil {
		c = DefaultClassifier
	}
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	return &Anomaly{Classifier: c, Threshold: threshold}
}

// Observe classifies piece and reports the current run and whether it
// reached the threshold. Any non-suspicious piece resets the run.
func (a *Anomaly) Observe(piece string) (run int, tripped bool) {
	if a.Classifier.Suspicious(piece) {
		a.run++
	} else {
		a.run = 0
	}
	return a.run, a.run >= a.Threshold
}

// Run returns the current run length.
func (a *Anomaly) Run() int { return a.run }

// Reset clears the run.
func (a *Anomaly) Reset() { a.run = 0 }
