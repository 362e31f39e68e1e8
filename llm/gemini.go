// Package llm wraps Gemini text generation behind a pull-based stream.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github/itish2003/ragqa/config"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrEmptyPrompt is returned before any call when the prompt is blank.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Stream yields text fragments. Next returns io.EOF after the last one.
// Close releases the underlying request and may be called at any point.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Generator produces text from a prompt and an optional context block.
type Generator interface {
	GenerateStream(ctx context.Context, prompt, contextText string) Stream
	Generate(ctx context.Context, prompt, contextText string) (string, error)
}

// Gemini is the Generator backed by the Gemini API.
type Gemini struct {
	client         *genai.Client
	model          string
	relevanceModel string
	genConfig      *genai.GenerateContentConfig
	logger         *zap.Logger
}

// NewGemini builds a generator with the sampling parameters from cfg and
// the given system instruction.
func NewGemini(client *genai.Client, cfg config.GeminiConfig, system *genai.Content, logger *zap.Logger) *Gemini {
	if logger == nil {
		logger = zap.NewNop()
	}
	relevance := cfg.RelevanceModel
	if relevance == "" {
		relevance = cfg.Model
	}
	return &Gemini{
		client:         client,
		model:          cfg.Model,
		relevanceModel: relevance,
		genConfig: &genai.GenerateContentConfig{
			SystemInstruction: system,
			Temperature:       genai.Ptr(cfg.Temperature),
			TopP:              genai.Ptr(cfg.TopP),
			TopK:              genai.Ptr(cfg.TopK),
			MaxOutputTokens:   cfg.MaxOutputTokens,
		},
		logger: logger.Named("llm"),
	}
}

// ComposePrompt lays out the prompt followed by the context block.
func ComposePrompt(prompt, contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return prompt
	}
	return prompt + "\n\nContext from documents:\n" + contextText
}

// GenerateStream starts a streaming request. The request is issued lazily
// on the first Next call.
func (g *Gemini) GenerateStream(ctx context.Context, prompt, contextText string) Stream {
	if strings.TrimSpace(prompt) == "" {
		return &errStream{err: ErrEmptyPrompt}
	}
	seq := g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(ComposePrompt(prompt, contextText)), g.genConfig)
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}
}

type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
	done bool
}

func (s *geminiStream) Next() (string, error) {
	for !s.done {
		resp, err, ok := s.next()
		if !ok {
			s.done = true
			break
		}
		if err != nil {
			s.Close()
			return "", fmt.Errorf("gemini stream failed: %w", err)
		}
		if resp == nil {
			continue
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
	return "", io.EOF
}

func (s *geminiStream) Close() error {
	s.done = true
	s.stop()
	return nil
}

type errStream struct{ err error }

func (s *errStream) Next() (string, error) { return "", s.err }
func (s *errStream) Close() error { return nil }

// Generate returns one complete response.
func (g *Gemini) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(ComposePrompt(prompt, contextText)), g.genConfig)
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	return resp.Text(), nil
}

// relevanceSchema constrains the relevance check to {"relevant": bool}.
func relevanceSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"relevant": {
				Type:        genai.TypeBoolean,
				Description: "Whether the text belongs to the requested domain.",
			},
		},
		Required: []string{"relevant"},
	}
}

const relevanceSample = 4000

// ClassifyRelevance asks whether text belongs to domain. Any failure is
// permissive and returns true.
func (g *Gemini) ClassifyRelevance(ctx context.Context, text, domain string) bool {
	sample := []rune(text)
	if len(sample) > relevanceSample {
		sample = sample[:relevanceSample]
	}
	prompt := fmt.Sprintf("Is the following text about %s? Answer with JSON.\n\n%s", domain, string(sample))

	resp, err := g.client.Models.GenerateContent(ctx, g.relevanceModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   relevanceSchema(),
	})
	if err != nil {
		g.logger.Warn("relevance check failed, allowing", zap.Error(err))
		return true
	}
	relevant, err := parseRelevance(resp.Text())
	if err != nil {
		g.logger.Warn("relevance answer unreadable, allowing", zap.Error(err))
		return true
	}
	return relevant
}

func parseRelevance(raw string) (bool, error) {
	var out struct {
		Relevant *bool `json:"relevant"`
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.Trim(raw, "` \n")
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return true, fmt.Errorf("decoding relevance answer: %w", err)
	}
	if out.Relevant == nil {
		return true, errors.New("relevance answer has no \"relevant\" field")
	}
	return *out.Relevant, nil
}
