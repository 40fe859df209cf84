package toy

import "math/rand"

// ToyLM is a minimal bigram language model: an embedding matrix, a weight
// matrix projecting hidden activations back to vocab logits, and a bias
// vector. Each call to Forward operates on a single token and returns a new
// slice of logits.
type ToyLM struct {
	Vocab  int
	Hidden int

	Emb  []float32 // [Vocab x Hidden] embedding matrix
	W    []float32 // [Hidden x Vocab] projection weights
	Bias []float32 // [Vocab] bias added to logits
	h    []float32 // scratch space [Hidden]
}

// NewToyLM constructs a model with the given vocabulary and hidden size,
// filling the embedding and weight matrices with values in [-1, 1) derived
// from seed. Biases are zeroed.
func NewToyLM(vocab, hidden int, seed int64) *ToyLM {
	m := &ToyLM{
		Vocab:  vocab,
		Hidden: hidden,
		Emb:    make([]float32, vocab*hidden),
		W:      make([]float32, hidden*vocab),
		Bias:   make([]float32, vocab),
		h:      make([]float32, hidden),
	}
	fillRand(m.Emb, seed+11)
	fillRand(m.W, seed+23)
	return m
}

func fillRand(dst []float32, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range dst {
		dst[i] = (rng.Float32() - 0.5) * 2
	}
}

// Row returns the embedding of tok.
func (m *ToyLM) Row(tok int) []float32 {
	return m.Emb[tok*m.Hidden : (tok+1)*m.Hidden]
}

// Forward computes the logits over the vocabulary for a single input token.
// Token indices outside [0, Vocab) are reduced modulo Vocab.
func (m *ToyLM) Forward(tok int) []float32 {
	if tok < 0 || tok >= m.Vocab {
		tok = tok % m.Vocab
		if tok < 0 {
			tok += m.Vocab
		}
	}
	copy(m.h, m.Row(tok))
	logits := make([]float32, m.Vocab)
	for j := 0; j < m.Vocab; j++ {
		var sum float32
		for i := 0; i < m.Hidden; i++ {
			sum += m.h[i] * m.W[i*m.Vocab+j]
		}
		logits[j] = sum + m.Bias[j]
	}
	return logits
}
