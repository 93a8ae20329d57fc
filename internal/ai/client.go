package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator is the one contract every tool screen talks to: free text or
// schema-constrained JSON from a prompt.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error
}

// ErrDisabled is returned by the no-op generator used when no API key is set.
var ErrDisabled = errors.New("ai: generator disabled")

// Disabled is a Generator that always fails, pushing every call site onto
// its fallback value.
type Disabled struct{}

func (Disabled) GenerateText(context.Context, string) (string, error) { return "", ErrDisabled }
func (Disabled) GenerateJSON(context.Context, string, *genai.Schema, any) error {
	return ErrDisabled
}

/* ================================ Gemini ================================ */

type Gemini struct {
	client    *genai.Client
	modelName string
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &Gemini{client: cl, modelName: modelName}, nil
}

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return collectText(resp), nil
}

func (g *Gemini) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error {
	m := g.client.GenerativeModel(g.modelName)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = schema

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return fmt.Errorf("gemini generate: %w", err)
	}
	text := collectText(resp)
	if text == "" {
		return errors.New("gemini: empty response")
	}
	return json.Unmarshal([]byte(text), out)
}

func collectText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
