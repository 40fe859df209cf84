package logits

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// DefaultSeed asks the distribution stage to seed itself from the clock.
const DefaultSeed uint32 = 0xFFFFFFFF

// ChainConfig configures the stages of a sampling chain. It is fixed for
// the lifetime of a session.
type ChainConfig struct {
	TopK    int
	TopP    float32
	MinKeep int

	PenaltyLastN     int
	RepeatPenalty    float32
	FrequencyPenalty float32
	PresencePenalty  float32

	Temperature float32
	Seed        uint32
}

// DefaultChainConfig returns conservative chat defaults that reduce looping.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		TopK:             40,
		TopP:             0.95,
		MinKeep:          1,
		PenaltyLastN:     128,
		RepeatPenalty:    1.20,
		FrequencyPenalty: 0.10,
		PresencePenalty:  0.10,
		Temperature:      0.7,
		Seed:             DefaultSeed,
	}
}

// Candidates is the working set a chain narrows down to a single token.
// IDs and Logits are parallel. Probs is only valid after softmax.
type Candidates struct {
	IDs      []int
	Logits   []float32
	Probs    []float64
	Sorted   bool
	Selected int
}

// Len returns the number of remaining candidates.
func (c *Candidates) Len() int { return len(c.IDs) }

func (c *Candidates) truncate(n int) {
	c.IDs = c.IDs[:n]
	c.Logits = c.Logits[:n]
	if len(c.Probs) > n {
		c.Probs = c.Probs[:n]
	}
}

// sortDesc orders candidates by descending logit.
func (c *Candidates) sortDesc() {
	if c.Sorted {
		return
	}
	sort.Stable(byLogitDesc{c})
	c.Sorted = true
}

type byLogitDesc struct{ c *Candidates }

func (b byLogitDesc) Len() int           { return len(b.c.IDs) }
func (b byLogitDesc) Less(i, j int) bool { return b.c.Logits[i] > b.c.Logits[j] }
func (b byLogitDesc) Swap(i, j int) {
	b.c.IDs[i], b.c.IDs[j] = b.c.IDs[j], b.c.IDs[i]
	b.c.Logits[i], b.c.Logits[j] = b.c.Logits[j], b.c.Logits[i]
}

// softmax fills Probs from Logits, subtracting the max for stability.
func (c *Candidates) softmax() {
	if cap(c.Probs) < len(c.Logits) {
		c.Probs = make([]float64, len(c.Logits))
	}
	c.Probs = c.Probs[:len(c.Logits)]
	if len(c.Logits) == 0 {
		return
	}
	maxv := c.Logits[0]
	for _, v := range c.Logits[1:] {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for i, v := range c.Logits {
		e := math.Exp(float64(v - maxv))
		c.Probs[i] = e
		sum += e
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / sum
	for i := range c.Probs {
		c.Probs[i] *= inv
	}
}

// Stage transforms the candidate set in place.
type Stage interface {
	Name() string
	Apply(c *Candidates)
}

// Acceptor is implemented by stages that keep per-sequence history.
type Acceptor interface {
	Accept(id int)
	Reset()
}

// TopK keeps the K highest-logit candidates.
type TopK struct{ K int }

func (TopK) Name() string { return "top-k" }

func (s TopK) Apply(c *Candidates) {
	if s.K <= 0 || s.K >= c.Len() {
		c.sortDesc()
		return
	}
	// Partial selection: maintain the best K at the front in order.
	n := 0
	for i := 0; i < c.Len(); i++ {
		id, v := c.IDs[i], c.Logits[i]
		pos := n
		for pos > 0 && c.Logits[pos-1] < v {
			pos--
		}
		if pos >= s.K {
			continue
		}
		end := min(n, s.K-1)
		copy(c.IDs[pos+1:end+1], c.IDs[pos:end])
		copy(c.Logits[pos+1:end+1], c.Logits[pos:end])
		c.IDs[pos] = id
		c.Logits[pos] = v
		if n < s.K {
			n++
		}
	}
	c.truncate(n)
	c.Sorted = true
}

// TopP keeps the smallest prefix whose probability mass reaches P, never
// fewer than MinKeep candidates.
type TopP struct {
	P       float32
	MinKeep int
}

func (TopP) Name() string { return "top-p" }

func (s TopP) Apply(c *Candidates) {
	if s.P >= 1 || c.Len() == 0 {
		return
	}
	c.sortDesc()
	c.softmax()
	cut := c.Len()
	var cum float64
	for i, p := range c.Probs {
		cum += p
		if cum >= float64(s.P) && i+1 >= s.MinKeep {
			cut = i + 1
			break
		}
	}
	c.truncate(cut)
}

// Penalties down-weights tokens seen in the last LastN accepted tokens.
// Repeat is multiplicative, Frequency scales with the occurrence count and
// Presence is a flat offset.
type Penalties struct {
	LastN     int
	Repeat    float32
	Frequency float32
	Presence  float32

	history []int
	next    int
	full    bool
	counts  map[int]int
}

// NewPenalties returns a penalty stage with an empty history.
func NewPenalties(lastN int, repeat, frequency, presence float32) *Penalties {
	return &Penalties{
		LastN:     lastN,
		Repeat:    repeat,
		Frequency: frequency,
		Presence:  presence,
		history:   make([]int, max(lastN, 0)),
		counts:    make(map[int]int),
	}
}

func (*Penalties) Name() string { return "penalties" }

func (s *Penalties) disabled() bool {
	return s.LastN == 0 || (s.Repeat == 1 && s.Frequency == 0 && s.Presence == 0)
}

func (s *Penalties) Apply(c *Candidates) {
	if s.disabled() || len(s.counts) == 0 {
		return
	}
	for i, id := range c.IDs {
		n, ok := s.counts[id]
		if !ok {
			continue
		}
		v := c.Logits[i]
		if v <= 0 {
			v *= s.Repeat
		} else {
			v /= s.Repeat
		}
		v -= float32(n)*s.Frequency + s.Presence
		c.Logits[i] = v
	}
	c.Sorted = false
}

// Accept records id in the ring of recent tokens.
func (s *Penalties) Accept(id int) {
	if s.LastN <= 0 {
		return
	}
	if s.full {
		old := s.history[s.next]
		if s.counts[old]--; s.counts[old] <= 0 {
			delete(s.counts, old)
		}
	}
	s.history[s.next] = id
	s.counts[id]++
	s.next = (s.next + 1) % s.LastN
	if s.next == 0 {
		s.full = true
	}
}

func (s *Penalties) Reset() {
	s.next = 0
	s.full = false
	clear(s.counts)
}

// Temperature rescales logits. T <= 0 collapses to the single best token.
type Temperature struct{ T float32 }

func (Temperature) Name() string { return "temperature" }

func (s Temperature) Apply(c *Candidates) {
	if c.Len() == 0 {
		return
	}
	if s.T <= 0 {
		best := 0
		for i := 1; i < c.Len(); i++ {
			if c.Logits[i] > c.Logits[best] {
				best = i
			}
		}
		c.IDs[0], c.Logits[0] = c.IDs[best], c.Logits[best]
		c.truncate(1)
		c.Sorted = true
		return
	}
	if s.T == 1 {
		return
	}
	inv := 1 / s.T
	for i := range c.Logits {
		c.Logits[i] *= inv
	}
}

// Dist draws the final token from the softmax of the remaining candidates.
type Dist struct {
	rng *rand.Rand
}

// NewDist seeds the draw. DefaultSeed picks a clock-derived seed.
func NewDist(seed uint32) *Dist {
	s := int64(seed)
	if seed == DefaultSeed {
		s = time.Now().UnixNano()
	}
	return &Dist{rng: rand.New(rand.NewSource(s))}
}

func (*Dist) Name() string { return "dist" }

func (s *Dist) Apply(c *Candidates) {
	if c.Len() == 0 {
		return
	}
	c.softmax()
	r := s.rng.Float64()
	var cum float64
	for i, p := range c.Probs {
		cum += p
		if r <= cum {
			c.Selected = c.IDs[i]
			return
		}
	}
	c.Selected = c.IDs[c.Len()-1]
}

// Chain applies stages in order and returns the token chosen by the last
// stage. The chain owns its scratch buffers and is not safe for concurrent
// use.
type Chain struct {
	stages []Stage
	cand   Candidates
}

// NewChain builds the chat chain: top-k, top-p, penalties, temperature and
// a seeded draw, in that order.
func NewChain(cfg ChainConfig) *Chain {
	if cfg.MinKeep <= 0 {
		cfg.MinKeep = 1
	}
	if cfg.RepeatPenalty <= 0 {
		cfg.RepeatPenalty = 1
	}
	return NewChainOf(
		TopK{K: cfg.TopK},
		TopP{P: cfg.TopP, MinKeep: cfg.MinKeep},
		NewPenalties(cfg.PenaltyLastN, cfg.RepeatPenalty, cfg.FrequencyPenalty, cfg.PresencePenalty),
		Temperature{T: cfg.Temperature},
		NewDist(cfg.Seed),
	)
}

// NewChainOf builds a chain from explicit stages.
func NewChainOf(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Stages returns the stage names in application order.
func (ch *Chain) Stages() []string {
	names := make([]string, len(ch.stages))
	for i, s := range ch.stages {
		names[i] = s.Name()
	}
	return names
}

// Sample selects a token from logits and accepts it into the history of
// every stateful stage. logits is not modified.
func (ch *Chain) Sample(logits []float32) int {
	if len(logits) == 0 {
		panic("logits: empty distribution")
	}
	c := &ch.cand
	if cap(c.IDs) < len(logits) {
		c.IDs = make([]int, len(logits))
		c.Logits = make([]float32, len(logits))
	}
	c.IDs = c.IDs[:len(logits)]
	c.Logits = c.Logits[:len(logits)]
	c.Probs = c.Probs[:0]
	for i, v := range logits {
		c.IDs[i] = i
		c.Logits[i] = v
	}
	c.Sorted = false
	c.Selected = -1

	for _, s := range ch.stages {
		s.Apply(c)
	}
	id := c.Selected
	if id < 0 {
		id = c.IDs[argmax(c.Logits)]
	}
	ch.Accept(id)
	return id
}

// Accept feeds id to every stage that tracks history.
func (ch *Chain) Accept(id int) {
	for _, s := range ch.stages {
		if a, ok := s.(Acceptor); ok {
			a.Accept(id)
		}
	}
}

// Reset clears the history of every stateful stage.
func (ch *Chain) Reset() {
	for _, s := range ch.stages {
		if a, ok := s.(Acceptor); ok {
			a.Reset()
		}
	}
}

// argmax returns the index of the maximum value in the slice. If the slice is empty it panics.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
