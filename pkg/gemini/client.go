// Package gemini turns free-text travel queries into ikyu search inputs using Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// Client calls Gemini with structured JSON responses and caches the answers.
type Client struct {
	gen        generator
	cache      Cache
	logger     *slog.Logger
	apiKey     string
	model      string
	gcpProject string
	mu         sync.Mutex
}

// NewClient creates a Gemini client. With an empty apiKey, Vertex AI and
// Application Default Credentials are used instead.
func NewClient(apiKey, model, gcpProject string, cache Cache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	model = strings.TrimPrefix(model, "models/")
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		gcpProject: gcpProject,
		cache:      cache,
		logger:     logger,
	}
}

func (c *Client) generator(ctx context.Context) (generator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != nil {
		return c.gen, nil
	}

	var config *genai.ClientConfig
	if c.apiKey != "" {
		config = &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  c.apiKey,
		}
		c.logger.Debug("using Gemini API with API key")
	} else {
		project := c.projectID()
		if project == "" {
			return nil, errors.New("gemini: no API key and no GCP project configured")
		}
		config = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  project,
			Location: "us-central1",
		}
		c.logger.Debug("using Vertex AI with Application Default Credentials", "project", project)
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.gen = client.Models
	return c.gen, nil
}

func (c *Client) projectID() string {
	if c.gcpProject != "" {
		return c.gcpProject
	}
	if p := os.Getenv("GCP_PROJECT"); p != "" {
		return p
	}
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}

// generate sends prompt with a system instruction and decodes the JSON answer into v.
func (c *Client) generate(ctx context.Context, kind, system, prompt string, schema *genai.Schema, v any) error {
	key := fmt.Sprintf("genai:%s:%s", c.model, kind)
	payload := []byte(system + "\n" + prompt)
	if c.cache != nil {
		if data, ok := c.cache.APICall(key, payload); ok {
			if err := json.Unmarshal(data, v); err == nil {
				c.logger.Debug("gemini cache hit", "kind", kind)
				return nil
			}
			c.logger.Debug("discarding unreadable cached gemini response", "kind", kind)
		}
	}

	gen, err := c.generator(ctx)
	if err != nil {
		return err
	}

	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       &temperature,
		MaxOutputTokens:   2048,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}

	var text string
	err = retry.Do(
		func() error {
			resp, err := gen.GenerateContent(ctx, c.model, contents, config)
			if err != nil {
				if !isTransient(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			text, err = responseText(resp)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying gemini call", "attempt", n+1, "kind", kind, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("gemini %s: %w", kind, err)
	}
	c.logger.Debug("raw gemini response", "kind", kind, "response_text", text)

	data := []byte(text)
	if err := json.Unmarshal(data, v); err != nil {
		extracted, xerr := extractJSON(text)
		if xerr != nil {
			return fmt.Errorf("parsing gemini %s response: %w", kind, err)
		}
		data = []byte(extracted)
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parsing gemini %s response: %w", kind, err)
		}
	}

	if c.cache != nil {
		if err := c.cache.SetAPICall(key, payload, data); err != nil {
			c.logger.Debug("failed to cache gemini response", "error", err)
		}
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("empty response from Gemini API")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", errors.New("no content in Gemini response")
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", errors.New("empty text in Gemini response")
	}
	return b.String(), nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"rate limit", "quota", "timeout", "deadline", "unavailable",
		"resource_exhausted", "internal server error", "429", "500", "502", "503", "504",
	} {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

// extractJSON pulls a JSON object out of text wrapped in prose or code fences.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return text, nil
	}
	if start := strings.Index(text, "```"); start != -1 {
		body := text[start+3:]
		body = strings.TrimPrefix(body, "json")
		if end := strings.Index(body, "```"); end != -1 {
			if s := strings.TrimSpace(body[:end]); json.Valid([]byte(s)) {
				return s, nil
			}
		}
	}
	if start := strings.Index(text, "{"); start != -1 {
		if end := strings.LastIndex(text, "}"); end > start {
			if s := text[start : end+1]; json.Valid([]byte(s)) {
				return s, nil
			}
		}
	}
	return "", errors.New("no valid JSON found in response")
}
