package similarity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 0},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: 2},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 1},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineDistance(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(0)
	assert.Equal(t, DefaultHashDimensions, h.Dimensions())
	assert.Equal(t, "hash:256", h.Name())

	t.Run("deterministic", func(t *testing.T) {
		a, err := h.Embed(ctx, "list files in the current directory")
		require.NoError(t, err)
		b, err := h.Embed(ctx, "list files in the current directory")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("closer for related intents", func(t *testing.T) {
		q, _ := h.Embed(ctx, "list files")
		near, _ := h.Embed(ctx, "list all files here")
		far, _ := h.Embed(ctx, "show disk usage of partitions")

		dNear, err := CosineDistance(q, near)
		require.NoError(t, err)
		dFar, err := CosineDistance(q, far)
		require.NoError(t, err)
		assert.Less(t, dNear, dFar)
	})

	t.Run("han text", func(t *testing.T) {
		q, _ := h.Embed(ctx, "列出文件")
		near, _ := h.Embed(ctx, "列出当前目录的文件")
		far, _ := h.Embed(ctx, "查看内存")

		dNear, _ := CosineDistance(q, near)
		dFar, _ := CosineDistance(q, far)
		assert.Less(t, dNear, dFar)
	})

	t.Run("empty text is zero vector", func(t *testing.T) {
		v, err := h.Embed(ctx, "   ")
		require.NoError(t, err)
		for _, x := range v {
			assert.Zero(t, x)
		}
	})
}

func TestOllamaEmbedder(t *testing.T) {
	var got ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "test-model", 2)
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "hello", got.Prompt)
	assert.Equal(t, "ollama:test-model", e.Name())
}

func TestOllamaEmbedder_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "", 0).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNewEmbedder(t *testing.T) {
	ctx := context.Background()

	e, err := NewEmbedder(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	e, err = NewEmbedder(ctx, Config{Provider: "ollama", Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaEmbedder{}, e)

	_, err = NewEmbedder(ctx, Config{Provider: "openai"})
	assert.Error(t, err, "missing api key")

	_, err = NewEmbedder(ctx, Config{Provider: "genai"})
	assert.Error(t, err, "missing api key")

	_, err = NewEmbedder(ctx, Config{Provider: "word2vec"})
	assert.ErrorContains(t, err, "unsupported embedding provider")
}
