package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sputnik/internal/models"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return s, path
}

func TestFileStoreMissingFileStartsEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	all, err := s.AllReminders()
	if err != nil {
		t.Fatalf("AllReminders failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected empty store, got %d users", len(all))
	}
}

func TestFileStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("Expected corrupt file to be tolerated, got %v", err)
	}

	tasks, err := s.Tasks("42")
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("Expected no tasks, got %v", tasks)
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)

	fireAt := time.Now().Add(time.Hour).Truncate(time.Second)

	if err := s.AppendTask("42", "записаться к врачу"); err != nil {
		t.Fatalf("AppendTask failed: %v", err)
	}
	if err := s.AppendNote("42", "хочет выучить английский"); err != nil {
		t.Fatalf("AppendNote failed: %v", err)
	}
	if err := s.AppendReminder("42", models.Reminder{ID: "r1", FireAt: fireAt, Text: "позвонить маме"}); err != nil {
		t.Fatalf("AppendReminder failed: %v", err)
	}
	if err := s.AppendHistory("42",
		models.HistoryTurn{Role: "user", Content: "привет"},
		models.HistoryTurn{Role: "assistant", Content: "привет!"},
	); err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	tasks, _ := reopened.Tasks("42")
	if len(tasks) != 1 || tasks[0] != "записаться к врачу" {
		t.Errorf("Expected persisted task, got %v", tasks)
	}

	notes, _ := reopened.Notes("42")
	if len(notes) != 1 || notes[0] != "хочет выучить английский" {
		t.Errorf("Expected persisted note, got %v", notes)
	}

	reminders, _ := reopened.Reminders("42")
	if len(reminders) != 1 {
		t.Fatalf("Expected 1 reminder, got %d", len(reminders))
	}
	if !reminders[0].FireAt.Equal(fireAt) {
		t.Errorf("Expected fire time %v, got %v", fireAt, reminders[0].FireAt)
	}
	if reminders[0].Text != "позвонить маме" {
		t.Errorf("Expected reminder text to survive, got %q", reminders[0].Text)
	}

	history, _ := reopened.History("42", 0)
	if len(history) != 2 {
		t.Fatalf("Expected 2 history turns, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Errorf("Expected user then assistant, got %v", history)
	}
}

func TestFileStoreLoadsZonelessTimestamps(t *testing.T) {
	// State files written by earlier versions carry naive local timestamps
	path := filepath.Join(t.TempDir(), "memory.json")
	content := `{
  "42": {
    "history": [],
    "tasks": [],
    "notes": [],
    "reminders": [
      {"datetime": "2030-12-02T15:00:00", "text": "посмотреть задачи"}
    ]
  }
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	reminders, err := s.Reminders("42")
	if err != nil {
		t.Fatalf("Reminders failed: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("Expected 1 reminder, got %d", len(reminders))
	}

	want := time.Date(2030, time.December, 2, 15, 0, 0, 0, time.Local)
	if !reminders[0].FireAt.Equal(want) {
		t.Errorf("Expected %v, got %v", want, reminders[0].FireAt)
	}
}

func TestFileStoreGetOrCreateIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.AppendTask("42", "первая задача"); err != nil {
		t.Fatal(err)
	}

	state, err := s.GetOrCreate("42")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if len(state.Tasks) != 1 {
		t.Errorf("Expected existing state to survive GetOrCreate, got %v", state.Tasks)
	}

	// The snapshot must not alias store internals
	state.Tasks = append(state.Tasks, "мусор")
	tasks, _ := s.Tasks("42")
	if len(tasks) != 1 {
		t.Errorf("Expected snapshot mutation to be invisible, got %v", tasks)
	}
}

func TestFileStoreClearTasks(t *testing.T) {
	s, _ := newTestStore(t)

	s.AppendTask("42", "одна")
	s.AppendTask("42", "другая")
	if err := s.ClearTasks("42"); err != nil {
		t.Fatalf("ClearTasks failed: %v", err)
	}

	tasks, _ := s.Tasks("42")
	if len(tasks) != 0 {
		t.Errorf("Expected no tasks after clear, got %v", tasks)
	}
}

func TestFileStoreHistoryWindow(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < 10; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		s.AppendHistory("42", models.HistoryTurn{Role: role, Content: string(rune('a' + i))})
	}

	history, err := s.History("42", 3)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 trailing turns, got %d", len(history))
	}
	if history[2].Content != "j" {
		t.Errorf("Expected newest turn last, got %q", history[2].Content)
	}
	if history[0].Content != "h" {
		t.Errorf("Expected window to start at h, got %q", history[0].Content)
	}
}

func TestFileStorePruneReminders(t *testing.T) {
	s, _ := newTestStore(t)

	now := time.Now()
	s.AppendReminder("42", models.Reminder{ID: "old", FireAt: now.Add(-48 * time.Hour), Text: "старое"})
	s.AppendReminder("42", models.Reminder{ID: "new", FireAt: now.Add(time.Hour), Text: "новое"})
	s.AppendReminder("7", models.Reminder{ID: "old2", FireAt: now.Add(-72 * time.Hour), Text: "ещё старое"})

	pruned, err := s.PruneReminders(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneReminders failed: %v", err)
	}
	if pruned != 2 {
		t.Errorf("Expected 2 pruned, got %d", pruned)
	}

	reminders, _ := s.Reminders("42")
	if len(reminders) != 1 || reminders[0].ID != "new" {
		t.Errorf("Expected only the future reminder to remain, got %v", reminders)
	}
}

func TestFileStoreAllReminders(t *testing.T) {
	s, _ := newTestStore(t)

	s.AppendReminder("1", models.Reminder{ID: "a", FireAt: time.Now().Add(time.Hour), Text: "a"})
	s.AppendReminder("2", models.Reminder{ID: "b", FireAt: time.Now().Add(time.Hour), Text: "b"})
	s.AppendTask("3", "задача без напоминаний")

	all, err := s.AllReminders()
	if err != nil {
		t.Fatalf("AllReminders failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected reminders for 2 users, got %d", len(all))
	}
	if _, ok := all["3"]; ok {
		t.Error("Expected users without reminders to be omitted")
	}
}
