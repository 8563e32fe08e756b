package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// OpenAICompleter is an OpenAI-compatible chat-completions client. Transient
// failures (429, 5xx, network) are retried with exponential backoff.
type OpenAICompleter struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	temp       float64
	client     *http.Client
	maxRetries int
}

// OpenAIConfig configures the chat client.
type OpenAIConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
	Temp      float64
	Timeout   time.Duration
}

// NewOpenAICompleter creates a chat client from cfg. The API key is read from
// the environment variable named by APIKeyEnv.
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &OpenAICompleter{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		temp:       cfg.Temp,
		client:     &http.Client{Timeout: t},
		maxRetries: 3,
	}, nil
}

// Model returns the chat model identifier.
func (c *OpenAICompleter) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat turn and returns the model's reply.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	url := c.baseURL + "/chat/completions"
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries && ctx.Err() == nil {
				sleep(ctx, retryDelay(attempt))
				continue
			}
			return "", fmt.Errorf("chat request failed: %w", lastErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("chat provider returned %s", resp.Status)
			if attempt < c.maxRetries {
				sleep(ctx, delay)
				continue
			}
			return "", lastErr
		}

		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return "", fmt.Errorf("chat provider returned %s: %s", resp.Status, string(b))
		}

		var parsed chatResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		_ = resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("decode chat response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("chat provider returned no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}
	return "", lastErr
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
