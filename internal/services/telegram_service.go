package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leonid-shevtsov/telegold"
	cache "github.com/patrickmn/go-cache"
	"github.com/yuin/goldmark"
	"golang.org/x/time/rate"

	"sputnik/internal/models"
)

const telegramMaxMessageSize = 4096

// MessageHandler processes one inbound text message.
type MessageHandler func(userID string, chatID int64, text string)

// TelegramService is the chat transport: it long-polls the Telegram Bot API
// for updates and sends outbound messages. Updates for one chat are handled
// in order; distinct chats are independent.
type TelegramService struct {
	botToken      string
	httpClient    *http.Client
	pollingClient *http.Client // Longer timeout for long polling

	handler    MessageHandler
	handlerMux sync.RWMutex

	// Per-chat send rate limiters, expiring for idle chats
	limiters *cache.Cache

	queues    map[int64]chan *models.TelegramMessage
	queuesMux sync.Mutex

	stopChan   chan struct{}
	stopOnce   sync.Once
	lastOffset int64
}

// NewTelegramService creates the transport for one bot token.
func NewTelegramService(botToken string) *TelegramService {
	return &TelegramService{
		botToken:   botToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pollingClient: &http.Client{
			Timeout: 35 * time.Second, // Long polling timeout
		},
		limiters: cache.New(30*time.Minute, 10*time.Minute),
		queues:   make(map[int64]chan *models.TelegramMessage),
		stopChan: make(chan struct{}),
	}
}

// SetMessageHandler sets the callback invoked for each inbound text message.
func (s *TelegramService) SetMessageHandler(handler MessageHandler) {
	s.handlerMux.Lock()
	defer s.handlerMux.Unlock()
	s.handler = handler
}

// GetMe validates the bot token against the Telegram API and returns the bot
// username.
func (s *TelegramService) GetMe(ctx context.Context) (string, error) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/getMe", s.botToken)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach Telegram API: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK     bool                `json:"ok"`
		Result *models.TelegramUser `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode getMe response: %w", err)
	}
	if !result.OK || result.Result == nil {
		return "", fmt.Errorf("Telegram rejected the bot token")
	}
	return result.Result.Username, nil
}

// StartPolling starts the long polling loop. It returns immediately; updates
// are dispatched to per-chat workers.
func (s *TelegramService) StartPolling() {
	log.Println("📡 [TELEGRAM] Long polling started")
	go s.runPoller()
}

// Stop stops the poller and all per-chat workers.
func (s *TelegramService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	log.Println("📡 [TELEGRAM] Polling stopped")
}

func (s *TelegramService) runPoller() {
	for {
		select {
		case <-s.stopChan:
			return
		default:
			updates, err := s.getUpdates(s.lastOffset)
			if err != nil {
				log.Printf("⚠️ [TELEGRAM] Error getting updates: %v", err)
				time.Sleep(5 * time.Second)
				continue
			}

			for _, update := range updates {
				// Acknowledge the update
				if update.UpdateID >= s.lastOffset {
					s.lastOffset = update.UpdateID + 1
				}

				msg := update.Message
				if msg == nil || msg.Text == "" || msg.From == nil || msg.Chat == nil {
					continue
				}
				s.dispatch(msg)
			}
		}
	}
}

// dispatch hands the message to the chat's ordered worker queue, creating the
// worker on first contact from that chat.
func (s *TelegramService) dispatch(msg *models.TelegramMessage) {
	s.queuesMux.Lock()
	queue, ok := s.queues[msg.Chat.ID]
	if !ok {
		queue = make(chan *models.TelegramMessage, 32)
		s.queues[msg.Chat.ID] = queue
		go s.runChatWorker(queue)
	}
	s.queuesMux.Unlock()

	select {
	case queue <- msg:
	case <-s.stopChan:
	}
}

func (s *TelegramService) runChatWorker(queue chan *models.TelegramMessage) {
	for {
		select {
		case <-s.stopChan:
			return
		case msg := <-queue:
			s.handlerMux.RLock()
			handler := s.handler
			s.handlerMux.RUnlock()
			if handler != nil {
				handler(strconv.FormatInt(msg.From.ID, 10), msg.Chat.ID, msg.Text)
			}
		}
	}
}

// getUpdates fetches updates using long polling.
func (s *TelegramService) getUpdates(offset int64) ([]*models.TelegramUpdate, error) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/getUpdates?timeout=30&allowed_updates=[\"message\"]", s.botToken)
	if offset > 0 {
		url += fmt.Sprintf("&offset=%d", offset)
	}

	req, _ := http.NewRequest("GET", url, nil)

	resp, err := s.pollingClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get updates: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK     bool                     `json:"ok"`
		Result []*models.TelegramUpdate `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.OK {
		return nil, fmt.Errorf("Telegram API returned not OK")
	}

	return result.Result, nil
}

// ============================================================================
// Outbound messages
// ============================================================================

// Telegram Markdown converter using telegold (goldmark with Telegram HTML renderer)
var telegramMarkdownConverter = goldmark.New(goldmark.WithRenderer(telegold.NewRenderer()))

// convertToTelegramHTML converts standard Markdown to Telegram-compatible HTML.
func convertToTelegramHTML(text string) string {
	var buf bytes.Buffer
	if err := telegramMarkdownConverter.Convert([]byte(text), &buf); err != nil {
		log.Printf("⚠️ [TELEGRAM] Markdown conversion failed: %v", err)
		return text
	}
	return buf.String()
}

// limiterFor returns the send rate limiter for a chat. Telegram allows about
// one message per second per chat.
func (s *TelegramService) limiterFor(chatID int64) *rate.Limiter {
	key := strconv.FormatInt(chatID, 10)
	if v, ok := s.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Every(time.Second), 3)
	s.limiters.SetDefault(key, limiter)
	return limiter
}

// SendMessage sends a message, converting Markdown to Telegram HTML and
// falling back to plain text when Telegram rejects the entities. Messages over
// the 4096-character limit are chunked.
func (s *TelegramService) SendMessage(ctx context.Context, chatID int64, text string) error {
	const maxChunkSize = telegramMaxMessageSize - 96 // margin for part headers

	if len(text) <= maxChunkSize {
		return s.sendSingleMessage(ctx, chatID, text)
	}

	chunks := splitMessageIntoChunks(text, maxChunkSize)
	log.Printf("📨 [TELEGRAM] Splitting message (%d chars) into %d chunks", len(text), len(chunks))

	for i, chunk := range chunks {
		if len(chunks) > 1 {
			chunk = fmt.Sprintf("**[%d/%d]**\n\n%s", i+1, len(chunks), chunk)
		}
		if err := s.sendSingleMessage(ctx, chatID, chunk); err != nil {
			return fmt.Errorf("failed to send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (s *TelegramService) sendSingleMessage(ctx context.Context, chatID int64, text string) error {
	if err := s.limiterFor(chatID).Wait(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       convertToTelegramHTML(text),
		"parse_mode": "HTML",
	}
	body, _ := json.Marshal(payload)

	req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		return nil
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	errStr := string(bodyBytes)

	if strings.Contains(errStr, "can't parse entities") {
		// Retry with plain text
		log.Printf("⚠️ [TELEGRAM] HTML parsing failed, retrying without parse_mode")

		payload = map[string]interface{}{
			"chat_id": chatID,
			"text":    stripMarkdown(text),
		}
		body, _ = json.Marshal(payload)

		req, _ = http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp2, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send Telegram message (plain): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != 200 {
			bodyBytes2, _ := io.ReadAll(resp2.Body)
			return fmt.Errorf("Telegram API error (plain): %s", string(bodyBytes2))
		}
		return nil
	}

	return fmt.Errorf("Telegram API error: %s", errStr)
}

// SendTypingAction sends a "typing" chat action so the user sees the bot is
// working on a reply.
func (s *TelegramService) SendTypingAction(ctx context.Context, chatID int64) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendChatAction", s.botToken)

	payload := map[string]interface{}{
		"chat_id": chatID,
		"action":  "typing",
	}
	body, _ := json.Marshal(payload)

	req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// stripMarkdown removes Markdown formatting for the plain text fallback.
func stripMarkdown(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	codeBlockPattern := regexp.MustCompile("```[a-zA-Z]*\\n([\\s\\S]*?)```")
	text = codeBlockPattern.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "`", "")
	text = strings.ReplaceAll(text, "~~", "")
	headerPattern := regexp.MustCompile(`(?m)^#{1,6}\s+`)
	text = headerPattern.ReplaceAllString(text, "")
	linkPattern := regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	text = linkPattern.ReplaceAllString(text, "$1 ($2)")
	return text
}

// splitMessageIntoChunks splits a message into chunks respecting boundaries.
func splitMessageIntoChunks(text string, maxSize int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxSize {
			chunks = append(chunks, remaining)
			break
		}

		chunk := remaining[:maxSize]
		breakPoint := maxSize

		// Prefer paragraph, then line, then sentence, then word boundaries.
		if idx := strings.LastIndex(chunk, "\n\n"); idx > maxSize/2 {
			breakPoint = idx + 2
		} else if idx := strings.LastIndex(chunk, "\n"); idx > maxSize/2 {
			breakPoint = idx + 1
		} else if idx := strings.LastIndex(chunk, ". "); idx > maxSize/2 {
			breakPoint = idx + 2
		} else if idx := strings.LastIndex(chunk, " "); idx > maxSize/2 {
			breakPoint = idx + 1
		}

		chunks = append(chunks, strings.TrimSpace(remaining[:breakPoint]))
		remaining = strings.TrimSpace(remaining[breakPoint:])
	}

	return chunks
}
