package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"subsplit_app_echo/internal/config"
)

// ComposedMessage is the subject and body returned by the text generator
type ComposedMessage struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// GroqService talks to the Groq OpenAI-compatible chat completions API
type GroqService struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewGroqService(cfg config.GroqConfig) *GroqService {
	return &GroqService{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ComposeMessage asks for a JSON object with "subject" and "message"
func (s *GroqService) ComposeMessage(ctx context.Context, prompt string) (ComposedMessage, error) {
	var out ComposedMessage

	content, err := s.complete(ctx, prompt)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, fmt.Errorf("malformed completion json: %w", err)
	}
	if strings.TrimSpace(out.Message) == "" {
		return out, fmt.Errorf("completion has no message")
	}
	return out, nil
}

// complete sends one user prompt in JSON mode and returns the raw answer.
func (s *GroqService) complete(ctx context.Context, prompt string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("GROQ_API_KEY not configured")
	}

	payload := chatRequest{
		Model:          s.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("groq responded with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("malformed groq response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("groq response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
