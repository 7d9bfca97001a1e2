package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// ErrNoCredential is returned when no usable AI key is configured.
var ErrNoCredential = errors.New("ai credential missing")

// minKeyLen is the shortest key accepted as real.
const minKeyLen = 10

// Generation parameters.
const (
	DefaultModel    = "gemini-1.5-flash"
	temperature     = 0.7
	topP            = 0.8
	topK            = 40
	maxOutputTokens = 1024
)

// Request is one generation call.
type Request struct {
	Prompt string
	System string
}

// Generator produces a reply for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Gemini is a Generator backed by the Gemini API. The underlying client is
// built on first use and reused for the life of the process.
type Gemini struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini returns a lazily connected Gemini generator. An empty model
// selects DefaultModel.
func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{apiKey: apiKey, model: model}
}

// Enabled reports whether a usable key is configured.
func (g *Gemini) Enabled() bool {
	return len(g.apiKey) >= minKeyLen
}

func (g *Gemini) handle(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// Generate sends req to the model and returns its text.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if !g.Enabled() {
		return "", ErrNoCredential
	}
	client, err := g.handle(ctx)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		TopP:            genai.Ptr[float32](topP),
		TopK:            genai.Ptr[float32](topK),
		MaxOutputTokens: maxOutputTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}
