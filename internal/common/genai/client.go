// Package genai is a minimal client for the Gemini generateContent REST API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	commonhttp "therapy-connect/internal/common/http"
)

const DefaultBase = "https://generativelanguage.googleapis.com/v1beta"

var (
	// ErrNoText means the model answered but returned no text parts.
	ErrNoText = errors.New("model returned no text")

	ErrGenerationTimeout = errors.New("GENERATION_TIMEOUT")
	ErrGenerationFailed  = errors.New("GENERATION_FAILED")
)

type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
	MaxRetries      int
}

type Client struct {
	config *Config
	http   *commonhttp.Client
}

func NewClient(config *Config) *Client {
	return NewClientWithHTTP(config, &http.Client{Timeout: config.Timeout})
}

func NewClientWithHTTP(config *Config, hc *http.Client) *Client {
	return &Client{
		config: config,
		http:   commonhttp.NewClientWithHTTP(hc, config.MaxRetries),
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// Generate sends prompt as a single user turn and returns the concatenated text of the
// first candidate. Timeouts wrap ErrGenerationTimeout; other failures wrap ErrGenerationFailed.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	if c.config.Temperature > 0 || c.config.MaxOutputTokens > 0 {
		gc := &generationConfig{MaxOutputTokens: c.config.MaxOutputTokens}
		if c.config.Temperature > 0 {
			t := c.config.Temperature
			gc.Temperature = &t
		}
		reqBody.GenerationConfig = gc
	}

	var out generateResponse
	err := c.http.PostJSON(ctx, c.url(), map[string]string{"x-goog-api-key": c.config.APIKey}, reqBody, &out)
	if err != nil {
		if commonhttp.IsTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(out.Candidates) == 0 {
		return "", ErrNoText
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", ErrNoText
	}
	return sb.String(), nil
}

func (c *Client) url() string {
	base := c.config.BaseURL
	if base == "" {
		base = DefaultBase
	}
	return fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(base, "/"), c.config.Model)
}
