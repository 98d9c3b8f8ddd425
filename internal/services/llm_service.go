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

	"github.com/sirupsen/logrus"

	"sputnik/internal/models"
)

// Completer produces one assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, turns []models.HistoryTurn) (string, error)
}

// LLMService talks to an OpenAI-compatible chat completion endpoint.
type LLMService struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewLLMService creates a completion client for the given endpoint.
func NewLLMService(baseURL, apiKey, model string) *LLMService {
	return &LLMService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Completions can be slow
		},
		logger: logrus.WithField("component", "llm"),
	}
}

// Complete sends the system prompt plus conversation turns and returns the
// assistant's reply text.
func (s *LLMService) Complete(ctx context.Context, systemPrompt string, turns []models.HistoryTurn) (string, error) {
	messages := make([]models.HistoryTurn, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, models.HistoryTurn{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, turns...)

	reqBody := models.ChatRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := s.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	if m := GetMetrics(); m != nil {
		m.LLMRequests.Inc()
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.recordError(err)
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	if m := GetMetrics(); m != nil {
		m.LLMRequestLatency.Observe(elapsed.Seconds())
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		s.recordError(err)
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != 200 {
		err := fmt.Errorf("completion API returned status %d: %s", resp.StatusCode, truncateBody(respBody))
		s.recordError(err)
		return "", err
	}

	var chatResp models.ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		s.recordError(err)
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if chatResp.Error != nil {
		err := fmt.Errorf("completion API error: %s", chatResp.Error.Message)
		s.recordError(err)
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		err := fmt.Errorf("completion API returned no choices")
		s.recordError(err)
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"model":      s.model,
		"turns":      len(turns),
		"latency_ms": elapsed.Milliseconds(),
	}).Debug("Completion succeeded")

	return chatResp.Choices[0].Message.Content, nil
}

func (s *LLMService) recordError(err error) {
	if m := GetMetrics(); m != nil {
		m.LLMErrors.Inc()
	}
	s.logger.WithError(err).Warn("Completion request failed")
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
