// Package whisper is a client for OpenAI-compatible /audio/transcriptions endpoints,
// including self-hosted Whisper servers.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	commonhttp "therapy-connect/internal/common/http"
)

const (
	DefaultBase  = "http://localhost:9000/v1"
	DefaultModel = "base"
)

// Client talks to the speech-recognition service.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

type ClientOption func(*Client)

func WithKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithMaxRetries sets how many times a failed upload is repeated.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBase
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

// URL joins relPath onto the base URL.
func (c *Client) URL(relPath string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(relPath, "/")
}

type transcribeConfig struct {
	model    string
	language string
}

type TranscribeOption func(*transcribeConfig)

func WithModel(model string) TranscribeOption {
	return func(tc *transcribeConfig) {
		tc.model = model
	}
}

// WithLanguage pins the spoken language instead of letting the model detect it.
func WithLanguage(lang string) TranscribeOption {
	return func(tc *transcribeConfig) {
		tc.language = lang
	}
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// TranscribeFile uploads the audio file at path and returns the recognized text untrimmed.
func (c *Client) TranscribeFile(ctx context.Context, path string, opts ...TranscribeOption) (string, error) {
	h, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer h.Close()

	return c.Transcribe(ctx, h, filepath.Base(path), opts...)
}

func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string, opts ...TranscribeOption) (string, error) {
	if filename == "" {
		return "", errors.New("filename is not set")
	}

	tc := &transcribeConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(tc)
	}

	body, contentType, err := buildForm(audio, filename, tc)
	if err != nil {
		return "", err
	}

	client := commonhttp.NewClientWithHTTP(c.httpClient, c.maxRetries)
	resp, err := client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL("audio/transcriptions"), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return tr.Text, nil
}

func buildForm(audio io.Reader, filename string, tc *transcribeConfig) ([]byte, string, error) {
	b := &bytes.Buffer{}
	mp := multipart.NewWriter(b)

	fields := [][2]string{
		{"model", tc.model},
		{"response_format", "json"},
	}
	if tc.language != "" {
		fields = append(fields, [2]string{"language", tc.language})
	}
	for _, f := range fields {
		if err := mp.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	fp, err := mp.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fp, audio); err != nil {
		return nil, "", err
	}
	if err := mp.Close(); err != nil {
		return nil, "", err
	}
	return b.Bytes(), mp.FormDataContentType(), nil
}
