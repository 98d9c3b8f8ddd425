package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"sputnik/internal/intent"
	"sputnik/internal/models"
	"sputnik/internal/store"
)

// defaultSystemPrompt is the persona sent with every completion unless a
// persona file overrides it.
const defaultSystemPrompt = `
Ты — личный компаньон и ассистент пользователя.
Общайся тепло, дружелюбно, по-человечески.
Помогай с делами, планированием, мыслями.
Помни, что вы обсуждали раньше, учитывай задачи, заметки и события пользователя.
Говори по-русски, простым языком.
`

const (
	startGreeting = "Привет! Я твой личный ассистент-компаньон 🫶\n" +
		"Я запоминаю диалог, храню задачи, заметки и напоминания.\n\n" +
		"Команды:\n" +
		"• /addtask ТЕКСТ — добавить задачу\n" +
		"• /tasks — показать задачи\n" +
		"• /cleartasks — очистить задачи\n" +
		"• /remember ТЕКСТ — запомнить факт/заметку\n" +
		"• /notes — показать заметки\n" +
		"• /remind ГГГГ-ММ-ДД ЧЧ:ММ ТЕКСТ — создать напоминание\n" +
		"• /reminders — показать будущие напоминания\n\n" +
		"Также я понимаю фразы:\n" +
		"«добавь задачу …», «покажи мои задачи», «очисти задачи»,\n" +
		"«напомни 2 декабря в 15:00…», «напомни через 2 минуты…»,\n" +
		"«что там по напоминаниям?», «ты мне что-то должен напомнить?»,\n" +
		"«запланировал ли я что-то?»."

	explainRemindersReply = "Я запоминаю напоминание и в нужный момент отправляю тебе сообщение прямо сюда, в Telegram 💛\n\n" +
		"Я использую встроенный планировщик, так что можешь рассчитывать, " +
		"что я напомню вовремя — и о задачах, и о важных мелочах."

	apologyReply = "Сейчас у меня технические трудности с сервером, попробуй ещё раз чуть позже."

	remindUsage = "Формат команды:\n" +
		"/remind ГГГГ-ММ-ДД ЧЧ:ММ текст напоминания\n\n" +
		"Например:\n" +
		"/remind 2025-12-02 18:30 позвонить маме"

	remindBadDate = "Не понял дату/время 😔\n" +
		"Нужен формат: /remind ГГГГ-ММ-ДД ЧЧ:ММ текст\n" +
		"Например:\n/remind 2025-12-02 18:30 сходить в зал"
)

// Sender delivers outbound messages; satisfied by TelegramService.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendTypingAction(ctx context.Context, chatID int64)
}

// AssistantService routes inbound messages: slash commands first, then the
// phrase classifier, and free conversation with the model as the fallback.
type AssistantService struct {
	store     store.Store
	llm       Completer
	reminders *ReminderService
	sender    Sender

	historyWindow int

	promptMux    sync.RWMutex
	systemPrompt string

	now func() time.Time
}

// NewAssistantService wires the router. historyWindow is the number of
// trailing history turns (including the current message) sent to the model.
func NewAssistantService(st store.Store, llm Completer, reminders *ReminderService, sender Sender, historyWindow int) *AssistantService {
	return &AssistantService{
		store:         st,
		llm:           llm,
		reminders:     reminders,
		sender:        sender,
		historyWindow: historyWindow,
		systemPrompt:  defaultSystemPrompt,
		now:           time.Now,
	}
}

// SetSystemPrompt replaces the conversation persona, used by the persona file
// hot reload. An empty prompt restores the default.
func (s *AssistantService) SetSystemPrompt(prompt string) {
	s.promptMux.Lock()
	defer s.promptMux.Unlock()
	if strings.TrimSpace(prompt) == "" {
		s.systemPrompt = defaultSystemPrompt
		return
	}
	s.systemPrompt = prompt
}

func (s *AssistantService) getSystemPrompt() string {
	s.promptMux.RLock()
	defer s.promptMux.RUnlock()
	return s.systemPrompt
}

// HandleMessage is the transport entry point: it computes the reply and sends
// it back to the chat.
func (s *AssistantService) HandleMessage(userID string, chatID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	s.sender.SendTypingAction(ctx, chatID)

	reply := s.Respond(ctx, userID, text)
	if reply == "" {
		return
	}
	if err := s.sender.SendMessage(ctx, chatID, reply); err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to send reply to chat %d: %v", chatID, err)
	}
}

// Respond routes one message to its handler and returns the reply text.
func (s *AssistantService) Respond(ctx context.Context, userID, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if strings.HasPrefix(text, "/") {
		if reply, handled := s.handleCommand(userID, text); handled {
			s.countMessage("command")
			return reply
		}
		// Unknown commands fall through to the classifier
	}

	now := s.now()
	res := intent.Classify(text, now)

	// A bare task prefix with no payload is not a task
	if res.Intent == intent.IntentAddTask && res.Payload == "" {
		res = intent.Result{Intent: intent.IntentConverse}
	}

	s.countMessage(string(res.Intent))

	switch res.Intent {
	case intent.IntentExplainReminders:
		return explainRemindersReply

	case intent.IntentRelativeReminder:
		if _, err := s.reminders.Schedule(userID, res.When, res.Text); err != nil {
			log.Printf("⚠️ [ASSISTANT] Failed to schedule reminder for user %s: %v", userID, err)
			return apologyReply
		}
		return fmt.Sprintf("Хорошо, напомню %s:\n• %s", relativeWhen(res.When, now), res.Text)

	case intent.IntentAbsoluteReminder:
		if _, err := s.reminders.Schedule(userID, res.When, res.Text); err != nil {
			log.Printf("⚠️ [ASSISTANT] Failed to schedule reminder for user %s: %v", userID, err)
			return apologyReply
		}
		return fmt.Sprintf("Хорошо, напомню %s:\n• %s", res.When.Format("02.01.2006 в 15:04"), res.Text)

	case intent.IntentListReminders:
		return s.listReminders(userID)

	case intent.IntentAddTask:
		if err := s.store.AppendTask(userID, res.Payload); err != nil {
			log.Printf("⚠️ [ASSISTANT] Failed to append task for user %s: %v", userID, err)
			return apologyReply
		}
		return fmt.Sprintf("Записал задачу:\n• %s", res.Payload)

	case intent.IntentListTasks:
		return s.listTasks(userID)

	case intent.IntentClearTasks:
		return s.clearTasks(userID)

	default:
		return s.converse(ctx, userID, text)
	}
}

// relativeWhen renders the confirmation delay, minutes first.
func relativeWhen(when, now time.Time) string {
	secs := int(when.Sub(now).Seconds())
	if secs < 0 {
		secs = 0
	}
	if minutes := secs / 60; minutes > 0 {
		return fmt.Sprintf("через %d мин", minutes)
	}
	return fmt.Sprintf("через %d сек", secs%60)
}

// ============================================================================
// Slash commands
// ============================================================================

// handleCommand dispatches /commands. The second return is false for commands
// this bot does not know, which then go through the classifier like any text.
func (s *AssistantService) handleCommand(userID, text string) (string, bool) {
	cmd, args := splitCommand(text)

	switch cmd {
	case "/start":
		if _, err := s.store.GetOrCreate(userID); err != nil {
			log.Printf("⚠️ [ASSISTANT] Failed to create state for user %s: %v", userID, err)
		}
		return startGreeting, true

	case "/addtask":
		if args == "" {
			return "Напиши задачу после команды, например:\n/addtask записаться к врачу", true
		}
		if err := s.store.AppendTask(userID, args); err != nil {
			log.Printf("⚠️ [ASSISTANT] Failed to append task for user %s: %v", userID, err)
			return apologyReply, true
		}
		return fmt.Sprintf("Запомнил задачу:\n• %s", args), true

	case "/tasks":
		return s.listTasks(userID), true

	case "/cleartasks":
		return s.clearTasks(userID), true

	case "/remember":
		if args == "" {
			return "Напиши, что запомнить, например:\n/remember я хочу выучить английский", true
		}
		if err := s.store.AppendNote(userID, args); err != nil {
			log.Printf("⚠️ [ASSISTANT] Failed to append note for user %s: %v", userID, err)
			return apologyReply, true
		}
		return fmt.Sprintf("Запомнил это про тебя:\n• %s", args), true

	case "/notes":
		return s.listNotes(userID), true

	case "/remind":
		return s.commandRemind(userID, args), true

	case "/reminders":
		return s.listReminders(userID), true
	}

	return "", false
}

// splitCommand separates the command word from its arguments and strips the
// @botname suffix Telegram appends in some clients.
func splitCommand(text string) (cmd, args string) {
	parts := strings.SplitN(text, " ", 2)
	cmd = parts[0]
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	if len(parts) == 2 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args
}

// nextField returns the first whitespace-delimited token and the trimmed
// remainder.
func nextField(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// commandRemind handles "/remind ГГГГ-ММ-ДД ЧЧ:ММ текст". Tokens may be
// separated by any amount of whitespace.
func (s *AssistantService) commandRemind(userID, args string) string {
	dateStr, rest := nextField(args)
	timeStr, reminderText := nextField(rest)
	if dateStr == "" || timeStr == "" || reminderText == "" {
		return remindUsage
	}

	when, err := time.ParseInLocation("2006-01-02 15:04", dateStr+" "+timeStr, time.Local)
	if err != nil {
		return remindBadDate
	}

	if _, err := s.reminders.Schedule(userID, when, reminderText); err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to schedule reminder for user %s: %v", userID, err)
		return apologyReply
	}
	return fmt.Sprintf("Ок, напомню %s:\n• %s", when.Format("02.01.2006 в 15:04"), reminderText)
}

// ============================================================================
// Shared handlers
// ============================================================================

func (s *AssistantService) listTasks(userID string) string {
	tasks, err := s.store.Tasks(userID)
	if err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to load tasks for user %s: %v", userID, err)
		return apologyReply
	}
	if len(tasks) == 0 {
		return "У тебя пока нет сохранённых задач 🙂"
	}

	var b strings.Builder
	b.WriteString("Твои задачи:")
	for i, t := range tasks {
		fmt.Fprintf(&b, "\n%d. %s", i+1, t)
	}
	return b.String()
}

func (s *AssistantService) clearTasks(userID string) string {
	if err := s.store.ClearTasks(userID); err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to clear tasks for user %s: %v", userID, err)
		return apologyReply
	}
	return "Я удалил все задачи. Можем начать список заново ✨"
}

func (s *AssistantService) listNotes(userID string) string {
	notes, err := s.store.Notes(userID)
	if err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to load notes for user %s: %v", userID, err)
		return apologyReply
	}
	if len(notes) == 0 {
		return "У меня пока нет сохранённых заметок про тебя 🙂"
	}

	var b strings.Builder
	b.WriteString("Вот что я про тебя помню:")
	for i, n := range notes {
		fmt.Fprintf(&b, "\n%d. %s", i+1, n)
	}
	return b.String()
}

// listReminders shows only reminders still in the future; fired ones stay in
// the store but are filtered out here.
func (s *AssistantService) listReminders(userID string) string {
	reminders, err := s.store.Reminders(userID)
	if err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to load reminders for user %s: %v", userID, err)
		return apologyReply
	}
	if len(reminders) == 0 {
		return "У тебя пока нет запланированных напоминаний 🙂"
	}

	now := s.now()
	var lines []string
	for _, r := range reminders {
		if r.FireAt.Before(now) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s — %s", r.FireAt.Format("02.01.2006 15:04"), r.Text))
	}

	if len(lines) == 0 {
		return "У тебя нет будущих напоминаний."
	}
	return "Твои ближайшие напоминания:\n" + strings.Join(lines, "\n")
}

// converse runs the free-form conversation with the model. Both the user turn
// and the reply (the apology included, when the model is unreachable) are
// appended to history in one mutation.
func (s *AssistantService) converse(ctx context.Context, userID, text string) string {
	userTurn := models.HistoryTurn{Role: "user", Content: text}

	turns := []models.HistoryTurn{userTurn}
	if s.historyWindow > 1 {
		prior, err := s.store.History(userID, s.historyWindow-1)
		if err != nil {
			log.Printf("⚠️ [ASSISTANT] Failed to load history for user %s: %v", userID, err)
		} else {
			turns = append(prior, userTurn)
		}
	}

	reply, err := s.llm.Complete(ctx, s.getSystemPrompt(), turns)
	if err != nil {
		log.Printf("⚠️ [ASSISTANT] Completion failed for user %s: %v", userID, err)
		reply = apologyReply
	}

	if err := s.store.AppendHistory(userID,
		userTurn,
		models.HistoryTurn{Role: "assistant", Content: reply},
	); err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to append history for user %s: %v", userID, err)
	}

	return reply
}

// DeliverReminder is the delivery callback for fired reminders. Failures are
// logged and counted, never retried.
func (s *AssistantService) DeliverReminder(ctx context.Context, userID, text string) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		log.Printf("⚠️ [ASSISTANT] Invalid user ID %q for reminder delivery: %v", userID, err)
		if m := GetMetrics(); m != nil {
			m.ReminderDeliveryErrors.Inc()
		}
		return
	}

	if err := s.sender.SendMessage(ctx, chatID, "🔔 Напоминание:\n"+text); err != nil {
		log.Printf("⚠️ [ASSISTANT] Failed to deliver reminder to user %s: %v", userID, err)
		if m := GetMetrics(); m != nil {
			m.ReminderDeliveryErrors.Inc()
		}
	}
}

func (s *AssistantService) countMessage(intentLabel string) {
	if m := GetMetrics(); m != nil {
		m.MessagesHandled.WithLabelValues(intentLabel).Inc()
	}
}
