package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/contraq/leakage-engine/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible API (chat completions + embeddings).
// Which provider sits behind the URL is a deployment concern; the engine
// only relies on the wire contract.
type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	dimensions int
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	ChatModel       string
	EmbedModel      string
	Dimensions      int
	RequestTimeout  time.Duration
	ResilienceConfig resilience.Config
}

func New(baseURL, apiKey string, opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	dims := opts.Dimensions
	if dims <= 0 {
		dims = 3072
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
		dimensions: dims,
		httpClient: &http.Client{Timeout: timeout},
		executor:   resilience.NewExecutor(opts.ResilienceConfig),
	}
}

// Embedder adapts the client to the Embedder port.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Dimensions() int { return e.client.dimensions }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model":      e.client.embedModel,
		"input":      texts,
		"dimensions": e.client.dimensions,
	}

	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	err := e.client.executor.Execute(ctx, "embeddings", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/v1/embeddings", request, &response, "embeddings")
	}, classifyTransportError)
	if err != nil {
		return nil, err
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: got %d for %d inputs", len(response.Data), len(texts))
	}

	// The API is allowed to reorder; the index field is authoritative.
	vectors := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if len(v) != e.client.dimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), e.client.dimensions)
		}
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

// Generator adapts the client to the Generator port. Low temperature keeps
// the detector's output consistent across runs.
type Generator struct {
	client      *Client
	temperature float64
	maxTokens   int
}

func NewGenerator(client *Client, temperature float64, maxTokens int) *Generator {
	if temperature <= 0 {
		temperature = 0.2
	}
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &Generator{client: client, temperature: temperature, maxTokens: maxTokens}
}

func (g *Generator) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	request := map[string]any{
		"model": g.client.chatModel,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature":     g.temperature,
		"max_tokens":      g.maxTokens,
		"response_format": map[string]string{"type": "json_object"},
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	err := g.client.executor.Execute(ctx, "chat_completions", func(callCtx context.Context) error {
		return g.client.postJSON(callCtx, "/v1/chat/completions", request, &response, "chat completion")
	}, classifyTransportError)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
