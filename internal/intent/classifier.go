package intent

import (
	"strings"
	"time"
)

// Intent is the tagged category of an inbound message.
type Intent string

const (
	IntentExplainReminders Intent = "explain_reminders"
	IntentRelativeReminder Intent = "schedule_relative_reminder"
	IntentAbsoluteReminder Intent = "schedule_absolute_reminder"
	IntentListReminders    Intent = "list_reminders"
	IntentAddTask          Intent = "add_task"
	IntentListTasks        Intent = "list_tasks"
	IntentClearTasks       Intent = "clear_tasks"
	IntentConverse         Intent = "converse"
)

// Result is a classified message. When and Text are set for the two
// reminder-scheduling intents; Payload is set for add_task.
type Result struct {
	Intent  Intent
	When    time.Time
	Text    string
	Payload string
}

// taskPrefixes are the leading phrases that turn a message into a task; the
// payload is whatever follows the prefix.
var taskPrefixes = []string{
	"добавь задачу",
	"запиши задачу",
	"добавь в задачи",
	"добавь в список",
	"запиши в список",
}

var explainReminderPhrases = []string{
	"как ты напомнишь",
	"как ты мне напомнишь",
	"каким образом ты мне напомнишь",
	"как работает напоминание",
	"как работают напоминания",
	"как ты будешь напоминать",
	"как происходит напоминание",
}

var listReminderPhrases = []string{
	"покажи какие есть напоминания",
	"покажи напоминания",
	"какие есть напоминания",
	"какие напоминания у меня есть",
	"какие напоминания у нас есть",
	"что там по напоминаниям",
	"ты мне что-то должен напомнить",
	"ты мне что-то должен был напомнить",
	"запланировал ли я что-то",
	"есть ли у меня напоминания",
	"покажи список напоминаний",
	"покажи мои напоминания",
	"что ты мне напоминаешь",
}

var listTaskPhrases = []string{
	"покажи мои задачи",
	"покажи задачи",
	"список задач",
	"какие у меня задачи",
	"что мне нужно сделать",
	"что я должен сделать",
}

var clearTaskPhrases = []string{
	"очисти задачи",
	"удали задачи",
	"удали все задачи",
	"очисти список задач",
	"сбрось задачи",
}

// rule is one entry of the ordered classification table. Rules are evaluated
// top to bottom and the first match wins, so overlapping phrase sets resolve
// deterministically: a message matching both the reminder grammar and a task
// phrase is always a reminder.
type rule struct {
	intent Intent
	match  func(text, lower string, now time.Time) *Result
}

var rules = []rule{
	{IntentExplainReminders, func(_, lower string, _ time.Time) *Result {
		if containsAny(lower, explainReminderPhrases) {
			return &Result{Intent: IntentExplainReminders}
		}
		return nil
	}},
	{IntentRelativeReminder, func(text, _ string, now time.Time) *Result {
		if p := ParseRelative(text, now); p != nil {
			return &Result{Intent: IntentRelativeReminder, When: p.When, Text: p.Text}
		}
		return nil
	}},
	{IntentAbsoluteReminder, func(text, _ string, now time.Time) *Result {
		if p := ParseAbsolute(text, now); p != nil {
			return &Result{Intent: IntentAbsoluteReminder, When: p.When, Text: p.Text}
		}
		return nil
	}},
	{IntentListReminders, func(_, lower string, _ time.Time) *Result {
		if strings.Contains(lower, "напоминан") &&
			containsAny(lower, []string{"что там", "какие", "есть", "покажи"}) {
			return &Result{Intent: IntentListReminders}
		}
		if strings.Contains(lower, "запланировал") &&
			containsAny(lower, []string{"что-то", "ли я"}) {
			return &Result{Intent: IntentListReminders}
		}
		if containsAny(lower, listReminderPhrases) {
			return &Result{Intent: IntentListReminders}
		}
		return nil
	}},
	{IntentAddTask, func(text, lower string, _ time.Time) *Result {
		for _, prefix := range taskPrefixes {
			if strings.HasPrefix(lower, prefix) {
				payload := strings.Trim(trimPrefixRunes(text, prefix), " :–-")
				return &Result{Intent: IntentAddTask, Payload: payload}
			}
		}
		return nil
	}},
	{IntentListTasks, func(_, lower string, _ time.Time) *Result {
		if strings.Contains(lower, "задач") &&
			containsAny(lower, []string{"покажи", "что мне", "какие"}) {
			return &Result{Intent: IntentListTasks}
		}
		if containsAny(lower, listTaskPhrases) {
			return &Result{Intent: IntentListTasks}
		}
		return nil
	}},
	{IntentClearTasks, func(_, lower string, _ time.Time) *Result {
		if strings.Contains(lower, "задач") &&
			containsAny(lower, []string{"очисти", "удали", "сбрось"}) {
			return &Result{Intent: IntentClearTasks}
		}
		if containsAny(lower, clearTaskPhrases) {
			return &Result{Intent: IntentClearTasks}
		}
		return nil
	}},
}

// Classify maps free-form text to an intent, falling back to converse.
func Classify(text string, now time.Time) Result {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if res := r.match(text, lower, now); res != nil {
			return *res
		}
	}
	return Result{Intent: IntentConverse}
}

func containsAny(haystack string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(haystack, p) {
			return true
		}
	}
	return false
}

// trimPrefixRunes strips the first len([]rune(prefix)) runes from text,
// keeping the payload's original case while the prefix itself was matched
// case-insensitively.
func trimPrefixRunes(text, prefix string) string {
	runes := []rune(text)
	n := len([]rune(prefix))
	if len(runes) <= n {
		return ""
	}
	return string(runes[n:])
}
