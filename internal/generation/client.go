// Package generation wraps the Ollama /api/generate endpoint. The client
// forwards the num_predict allowance computed by the assembler and never
// lets a backend failure propagate as a panic into the pipeline cycle.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"arklore/internal/config"
	"arklore/internal/logging"
)

// Generator produces commentary text for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, numPredict int) (string, error)
}

// Client is the Ollama generation backend.
type Client struct {
	url           string
	model         string
	contextWindow int
	temperature   float64
	repeatPenalty float64
	http          *http.Client
}

// NewClient creates an Ollama generation client from configuration.
func NewClient(cfg config.GenerationConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		url:           strings.TrimRight(cfg.URL, "/"),
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
		temperature:   cfg.Temperature,
		repeatPenalty: cfg.RepeatPenalty,
		http:          &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs one non-streaming generation. numPredict caps the output
// length; num_ctx declares the window the budget was computed against.
func (c *Client) Generate(ctx context.Context, prompt string, numPredict int) (string, error) {
	timer := logging.StartTimer(logging.CategoryGeneration, "generation.Generate")
	defer timer.Stop()

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]interface{}{
			"num_ctx":        c.contextWindow,
			"num_predict":    numPredict,
			"temperature":    c.temperature,
			"repeat_penalty": c.repeatPenalty,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation backend returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}

	text := strings.TrimSpace(result.Response)
	if text == "" {
		return "", fmt.Errorf("generation backend returned an empty response")
	}
	logging.Generation("generated %d chars model=%s num_predict=%d", len(text), c.model, numPredict)
	return text, nil
}

// HealthCheck verifies the backend is reachable before a cycle commits.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("generation backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("generation backend health check returned status %d", resp.StatusCode)
	}
	return nil
}
