package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatCompleter submits one prompt to a chat-completion model and returns
// the raw text of the first response choice. Implementations perform no
// retries and no fallback handling; failures are the caller's problem.
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ModelGateway talks to an OpenAI-compatible chat completions endpoint.
type ModelGateway struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func newModelGateway() *ModelGateway {
	baseURL := os.Getenv("AI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := os.Getenv("AI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &ModelGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  os.Getenv("AI_API_KEY"),
		model:   model,
		// Explicit timeout so a hung upstream cannot hold requests open
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *ModelGateway) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqID := uuid.NewString()[:8]

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Printf("[ai %s] request failed after %s: %v", reqID, time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[ai %s] upstream returned %d", reqID, resp.StatusCode)
		return "", fmt.Errorf("model endpoint returned status %d", resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("malformed completion response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion response contained no text")
	}

	log.Printf("[ai %s] completion ok in %s", reqID, time.Since(start).Round(time.Millisecond))
	return parsed.Choices[0].Message.Content, nil
}
