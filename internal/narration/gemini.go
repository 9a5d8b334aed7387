package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"soilpulse-sim/internal/config"
	"soilpulse-sim/internal/soil"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Gemini narrates through the generateContent REST endpoint.
// Each call makes a single attempt; there are no retries.
type Gemini struct {
	client    *http.Client
	endpoint  string
	model     string
	apiKey    string
	maxTokens int
	timeout   time.Duration
	limiter   *rate.Limiter
	log       *slog.Logger
}

// NewGemini builds a Gemini provider. A nil client selects the default
// HTTP/2-capable client.
func NewGemini(cfg config.Narration, apiKey string, client *http.Client, log *slog.Logger) *Gemini {
	if client == nil {
		client = buildHTTPClient(cfg.Timeout)
	}
	if log == nil {
		log = slog.Default()
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Gemini{
		client:    client,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		apiKey:    apiKey,
		maxTokens: cfg.MaxOutputTokens,
		timeout:   cfg.Timeout,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		log:       log,
	}
}

// Narrate implements Provider.
func (g *Gemini) Narrate(ctx context.Context, status soil.Status, reading soil.Reading) string {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	text, err := g.generate(ctx, status, reading)
	if err != nil {
		g.log.Warn("gemini narration failed", "status", status, "err", err)
		return FailedMessage
	}
	if strings.TrimSpace(text) == "" {
		return EmptyMessage
	}
	return strings.TrimSpace(text)
}

func (g *Gemini) generate(ctx context.Context, status soil.Status, reading soil.Reading) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit: %v", ErrUnavailable, err)
	}

	body, err := json.Marshal(geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: SystemPrompt(status)}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: UserPrompt(reading)}}}},
		GenerationConfig:  geminiGenerationConfig{MaxOutputTokens: g.maxTokens},
	})
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}
