package similarity

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDimensions is the vector length of the hash embedder.
const DefaultHashDimensions = 256

// HashEmbedder is an offline embedder based on feature hashing.
//
// Latin text contributes lower-cased word tokens and adjacent word pairs.
// Han, Kana and Hangul text contributes single runes and rune bigrams, since
// those scripts do not separate words with spaces. Each feature is hashed to
// a signed bucket and the vector is L2-normalized.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a hash embedder with the given dimension, or
// DefaultHashDimensions when dims <= 0.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed never fails; the context is accepted to satisfy Embedder.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, f := range features(text) {
		hf := fnv.New64a()
		_, _ = hf.Write([]byte(f))
		sum := hf.Sum64()
		idx := int(sum % uint64(h.dims))
		if sum&(1<<63) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	normalize(vec)
	return vec, nil
}

func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) Name() string { return fmt.Sprintf("hash:%d", h.dims) }

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// features splits text into hashing features.
func features(text string) []string {
	var (
		out   []string
		words []string
		word  strings.Builder
		cjk   []rune
	)

	flushWord := func() {
		if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}
	flushCJK := func() {
		for i, r := range cjk {
			out = append(out, string(r))
			if i+1 < len(cjk) {
				out = append(out, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case isIdeographic(r):
			flushWord()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			word.WriteRune(r)
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()

	for i, w := range words {
		out = append(out, w)
		if i+1 < len(words) {
			out = append(out, w+" "+words[i+1])
		}
	}
	return out
}
