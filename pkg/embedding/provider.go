// Package embedding implements the Embedding Gateway (spec component
// C7): the sole component permitted to talk to an external embedding
// service, exposing embed/embedBatch/health with bounded retries.
//
// Adapted directly from brain-core's internal/activities/embedding.go
// EmbeddingProvider abstraction, rewired from a Temporal-activity call
// site into a plain Go gateway.
package embedding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// Provider is the minimal embed API a backend must implement. Gateway
// wraps a Provider with retry, dimension validation, and health.
type Provider interface {
	EmbedText(model string, texts []string) ([][]float32, error)
	ModelName() string
}

// zeroProvider returns zero vectors, matching brain-core's placeholder.
// ingestcore selects it only for EMBEDDING_PROVIDER=zero; an unset
// provider selects localProvider.
type zeroProvider struct{ dim int }

func (p *zeroProvider) EmbedText(_ string, texts []string) ([][]float32, error) {
	if p.dim <= 0 {
		return nil, errors.New("invalid embedding dimension")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dim)
	}
	return out, nil
}

func (p *zeroProvider) ModelName() string { return "zero-vector" }

// NewZeroProvider constructs the always-available zero-vector provider.
func NewZeroProvider(dim int) Provider { return &zeroProvider{dim: dim} }

// openAIProvider is a minimal OpenAI embeddings client with no SDK
// dependency, matching brain-core's own stdlib-only net/http client.
type openAIProvider struct {
	apiKey string
	model  string
	dim    int
	client *http.Client
}

// NewOpenAIProvider constructs a Provider backed by the OpenAI
// embeddings endpoint.
func NewOpenAIProvider(apiKey, model string, dim int) Provider {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &openAIProvider{apiKey: apiKey, model: model, dim: dim, client: &http.Client{Timeout: 30 * time.Second}}
}

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (p *openAIProvider) EmbedText(model string, texts []string) ([][]float32, error) {
	if model == "" {
		model = p.model
	}
	reqBody, err := json.Marshal(openAIRequest{Model: model, Input: texts})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if len(decoded.Data) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}
	out := make([][]float32, len(texts))
	for i, d := range decoded.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

func (p *openAIProvider) ModelName() string { return p.model }

// localProvider produces deterministic hashed embeddings with no
// external services, for tests and offline operation.
type localProvider struct{ dim int }

// NewLocalProvider constructs the deterministic hash-based Provider.
func NewLocalProvider(dim int) Provider { return &localProvider{dim: dim} }

func (p *localProvider) EmbedText(_ string, texts []string) ([][]float32, error) {
	if p.dim <= 0 {
		return nil, errors.New("invalid embedding dimension")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embedOne(t)
	}
	return out, nil
}

func (p *localProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dim)
	words := strings.Fields(text)
	if len(words) == 0 {
		return vec
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		idx := int(h.Sum32()) % p.dim
		if idx < 0 {
			idx = -idx
		}
		vec[idx] += 1.0
	}
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1.0 / math.Sqrt(sumSquares))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec
}

func (p *localProvider) ModelName() string { return "local-fnv-hash" }
