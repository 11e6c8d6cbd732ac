// Package similarity provides the text embedding backends behind the
// semantic memory store, plus the distance function used to rank entries.
//
// Scores throughout shellagent are cosine distances: 0 is identical, 1 is
// unrelated, 2 is opposite. Lower is always closer.
package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the length of vectors produced by Embed.
	Dimensions() int

	// Name identifies the backend and model, e.g. "ollama:nomic-embed-text".
	Name() string
}

// Provider names accepted by NewEmbedder.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderGenAI  = "genai"
	ProviderOpenAI = "openai"
)

// Config selects and configures an embedding backend.
type Config struct {
	Provider   string
	Model      string
	Endpoint   string
	APIKey     string
	Dimensions int
	TaskType   string
}

// NewEmbedder creates the backend named by cfg.Provider. An empty provider
// selects the offline hash embedder.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	case ProviderOllama:
		return NewOllamaEmbedder(cfg.Endpoint, cfg.Model, cfg.Dimensions), nil
	case ProviderGenAI:
		return NewGenAIEmbedder(ctx, cfg.APIKey, cfg.Model, cfg.TaskType)
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg.APIKey, cfg.Endpoint, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use hash, ollama, genai or openai)", cfg.Provider)
	}
}

// CosineDistance returns 1 - cos(a, b).
// Vectors of different length are an error. A zero vector is treated as
// orthogonal to everything and yields 1.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aMag += x * x
		bMag += y * y
	}

	if aMag == 0 || bMag == 0 {
		return 1, nil
	}

	cos := dot / (math.Sqrt(aMag) * math.Sqrt(bMag))
	// Clamp rounding noise so identical vectors report exactly 0.
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos, nil
}

// normalize scales v to unit length in place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
