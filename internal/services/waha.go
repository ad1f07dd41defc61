package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subsplit_app_echo/internal/config"
)

// DefaultCountryCode is prefixed to national numbers (Colombia).
const DefaultCountryCode = "57"

// WahaService sends WhatsApp messages through a WAHA gateway
type WahaService struct {
	baseURL string
	apiKey  string
	session string
	client  *http.Client

	// pauses between the seen/typing/send steps
	seenDelay   time.Duration
	typingDelay time.Duration
	stopDelay   time.Duration
}

func NewWahaService(cfg config.WahaConfig) *WahaService {
	session := cfg.Session
	if session == "" {
		session = "default"
	}
	return &WahaService{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		session:     session,
		client:      &http.Client{Timeout: 15 * time.Second},
		seenDelay:   100 * time.Millisecond,
		typingDelay: 150 * time.Millisecond,
		stopDelay:   50 * time.Millisecond,
	}
}

func (s *WahaService) makeRequest(ctx context.Context, endpoint string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *WahaService) chatRequest(ctx context.Context, endpoint, chatID string) error {
	return s.makeRequest(ctx, endpoint, map[string]string{
		"chatId":  chatID,
		"session": s.session,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NormalizePhone strips formatting from a phone number and prefixes the
// country code to national numbers.
func NormalizePhone(phone, countryCode string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()

	switch {
	case number == "":
		return ""
	case strings.HasPrefix(number, "0"):
		return countryCode + strings.TrimLeft(number, "0")
	case len(number) == 10 && strings.HasPrefix(number, "3"):
		// Colombian mobile numbers are 10 digits starting with 3
		return countryCode + number
	}
	return number
}

// NormalizeChatID normalizes WhatsApp chat IDs by adding required suffixes and standardizing country codes
func NormalizeChatID(chatID string) string {
	chatID = strings.TrimSpace(chatID)

	// If it's already a group ID, it's correct
	if strings.HasSuffix(chatID, "@g.us") {
		return chatID
	}

	chatID = strings.TrimSuffix(chatID, "@c.us")
	return NormalizePhone(chatID, DefaultCountryCode) + "@c.us"
}

// SendMessage sends a message with authentic behavior (seen -> typing -> stop typing -> send)
func (s *WahaService) SendMessage(ctx context.Context, chatID, text string) error {
	chatID = NormalizeChatID(chatID)

	if err := s.chatRequest(ctx, "/api/sendSeen", chatID); err != nil {
		return fmt.Errorf("failed to send seen: %w", err)
	}
	if err := sleepCtx(ctx, s.seenDelay); err != nil {
		return err
	}

	if err := s.chatRequest(ctx, "/api/startTyping", chatID); err != nil {
		return fmt.Errorf("failed to start typing: %w", err)
	}
	if err := sleepCtx(ctx, s.typingDelay); err != nil {
		return err
	}

	if err := s.chatRequest(ctx, "/api/stopTyping", chatID); err != nil {
		return fmt.Errorf("failed to stop typing: %w", err)
	}
	if err := sleepCtx(ctx, s.stopDelay); err != nil {
		return err
	}

	err := s.makeRequest(ctx, "/api/sendText", map[string]string{
		"chatId":  chatID,
		"text":    text,
		"session": s.session,
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}
