package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// DefaultDimension is the length of vectors produced by the default Embed.
const DefaultDimension = 384

// DeterministicVector creates a unit-length embedding from text.
// It uses an FNV hash seed so the same text always produces the same vector.
// Components are signed, so unrelated texts score close to zero.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(int(seed%2001)-1000) / 1000.0
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}

// Vocabulary embeds text as a bag of words. Each distinct lower-cased word
// gets its own dimension, so texts sharing words score above zero and texts
// sharing none score exactly zero. It panics once more than Dim distinct
// words have been seen.
type Vocabulary struct {
	Dim int

	mu    sync.Mutex
	words map[string]int
}

// NewVocabulary creates a vocabulary with room for dim distinct words.
func NewVocabulary(dim int) *Vocabulary {
	return &Vocabulary{Dim: dim, words: make(map[string]int)}
}

// Vector returns the unit-length bag-of-words vector of text.
func (v *Vocabulary) Vector(text string) []float32 {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	vector := make([]float32, v.Dim)
	v.mu.Lock()
	for _, w := range fields {
		i, ok := v.words[w]
		if !ok {
			i = len(v.words)
			if i >= v.Dim {
				v.mu.Unlock()
				panic("mock vocabulary is full")
			}
			v.words[w] = i
		}
		vector[i]++
	}
	v.mu.Unlock()

	var sumSquares float64
	for _, x := range vector {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}

// Embed satisfies the signature of MockProvider.EmbedFunc.
func (v *Vocabulary) Embed(_ context.Context, text string) ([]float32, error) {
	return v.Vector(text), nil
}
