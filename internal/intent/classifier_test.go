package intent

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name  string
		input string
		want  Intent
	}{
		{"explain", "как ты мне напомнишь?", IntentExplainReminders},
		{"explain works", "как работают напоминания?", IntentExplainReminders},
		{"relative", "напомни через 2 минуты выпить воды", IntentRelativeReminder},
		{"relative bare", "через 10 минут проверить чайник", IntentRelativeReminder},
		{"absolute", "напомни 2 декабря в 15.00 посмотреть задачи", IntentAbsoluteReminder},
		{"list reminders phrase", "что там по напоминаниям?", IntentListReminders},
		{"list reminders combo", "покажи мои напоминания", IntentListReminders},
		{"list reminders planned", "запланировал ли я что-то?", IntentListReminders},
		{"add task", "добавь задачу записаться к врачу", IntentAddTask},
		{"add task list", "запиши в список купить хлеб", IntentAddTask},
		{"list tasks", "покажи мои задачи", IntentListTasks},
		{"list tasks combo", "какие у меня задачи на сегодня?", IntentListTasks},
		{"clear tasks", "очисти задачи", IntentClearTasks},
		{"clear tasks combo", "удали все задачи пожалуйста", IntentClearTasks},
		{"converse", "как у тебя дела?", IntentConverse},
		{"converse weather", "расскажи про погоду", IntentConverse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input, now)
			if got.Intent != tt.want {
				t.Errorf("Expected intent %s for %q, got %s", tt.want, tt.input, got.Intent)
			}
		})
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.Local)

	// The reminder grammar wins over the task phrases even when both match
	res := Classify("напомни через 5 минут добавь задачу в трекер", now)
	if res.Intent != IntentRelativeReminder {
		t.Errorf("Expected schedule_relative_reminder, got %s", res.Intent)
	}
	if res.Text != "добавь задачу в трекер" {
		t.Errorf("Expected reminder text to keep the task phrase, got %q", res.Text)
	}

	// The explain phrases win over everything, including the reminder grammar
	res = Classify("как ты будешь напоминать, напомни через 5 минут проверить", now)
	if res.Intent != IntentExplainReminders {
		t.Errorf("Expected explain_reminders, got %s", res.Intent)
	}
}

func TestClassifyAddTaskPayload(t *testing.T) {
	now := time.Now()

	tests := []struct {
		input string
		want  string
	}{
		{"добавь задачу записаться к врачу", "записаться к врачу"},
		{"добавь задачу: купить молоко", "купить молоко"},
		{"запиши задачу – позвонить в банк", "позвонить в банк"},
		{"Добавь задачу Записаться к Врачу", "Записаться к Врачу"},
	}

	for _, tt := range tests {
		res := Classify(tt.input, now)
		if res.Intent != IntentAddTask {
			t.Errorf("Expected add_task for %q, got %s", tt.input, res.Intent)
			continue
		}
		if res.Payload != tt.want {
			t.Errorf("Expected payload %q, got %q", tt.want, res.Payload)
		}
	}
}

func TestClassifyEmptyTaskPayload(t *testing.T) {
	res := Classify("добавь задачу", time.Now())
	if res.Intent != IntentAddTask {
		t.Fatalf("Expected add_task, got %s", res.Intent)
	}
	if res.Payload != "" {
		t.Errorf("Expected empty payload, got %q", res.Payload)
	}
}

func TestClassifyRelativeCarriesWhen(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.Local)

	res := Classify("напомни через 2 часа сделать зарядку", now)
	if res.Intent != IntentRelativeReminder {
		t.Fatalf("Expected schedule_relative_reminder, got %s", res.Intent)
	}
	want := now.Add(2 * time.Hour)
	if !res.When.Equal(want) {
		t.Errorf("Expected when %v, got %v", want, res.When)
	}
}
