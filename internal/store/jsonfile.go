package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sputnik/internal/models"
)

// FileStore keeps every user's state in memory and rewrites one JSON file in
// full on every mutation. A missing or corrupt file is treated as an empty
// store, never a fatal error. The file layout is the memory.json mapping of
// user-id string to state.
type FileStore struct {
	path  string
	mu    sync.Mutex
	users map[string]*models.UserState
}

// NewFileStore loads the state file at path, or starts empty if it is missing
// or unreadable.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		users: make(map[string]*models.UserState),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("⚠️ [STORE] Cannot read state file %s: %v (starting empty)", path, err)
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.users); err != nil {
		log.Printf("⚠️ [STORE] State file %s is corrupt: %v (starting empty)", path, err)
		s.users = make(map[string]*models.UserState)
		return s, nil
	}

	// Older files may miss fields; backfill so every state is fully formed.
	for _, state := range s.users {
		normalize(state)
	}

	log.Printf("✅ [STORE] Loaded state for %d users from %s", len(s.users), path)
	return s, nil
}

func normalize(state *models.UserState) {
	if state.History == nil {
		state.History = []models.HistoryTurn{}
	}
	if state.Tasks == nil {
		state.Tasks = []string{}
	}
	if state.Notes == nil {
		state.Notes = []string{}
	}
	if state.Reminders == nil {
		state.Reminders = []models.Reminder{}
	}
}

// getOrCreateLocked returns the live state for userID, creating it lazily.
// Callers must hold s.mu.
func (s *FileStore) getOrCreateLocked(userID string) *models.UserState {
	state, ok := s.users[userID]
	if !ok {
		state = models.NewUserState()
		s.users[userID] = state
	}
	normalize(state)
	return state
}

// flushLocked rewrites the whole store to disk. Callers must hold s.mu.
// Writes go through a temp file and rename so a crash mid-write never leaves
// a truncated state file.
func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".memory-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// GetOrCreate lazily creates and persists the state for userID. The snapshot
// it returns is a deep copy; mutate through the store methods.
func (s *FileStore) GetOrCreate(userID string) (*models.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.users[userID]
	state := s.getOrCreateLocked(userID)
	if !existed {
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
	}
	return snapshot(state), nil
}

func snapshot(state *models.UserState) *models.UserState {
	copied := models.NewUserState()
	copied.History = append(copied.History, state.History...)
	copied.Tasks = append(copied.Tasks, state.Tasks...)
	copied.Notes = append(copied.Notes, state.Notes...)
	copied.Reminders = append(copied.Reminders, state.Reminders...)
	return copied
}

func (s *FileStore) AppendTask(userID, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(userID)
	state.Tasks = append(state.Tasks, task)
	return s.flushLocked()
}

func (s *FileStore) Tasks(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(userID)
	return append([]string{}, state.Tasks...), nil
}

func (s *FileStore) ClearTasks(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(userID)
	state.Tasks = []string{}
	return s.flushLocked()
}

func (s *FileStore) AppendNote(userID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(userID)
	state.Notes = append(state.Notes, note)
	return s.flushLocked()
}

func (s *FileStore) Notes(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(userID)
	return append([]string{}, state.Notes...), nil
}

func (s *FileStore) AppendReminder(userID string, r models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(userID)
	state.Reminders = append(state.Reminders, r)
	return s.flushLocked()
}

func (s *FileStore) Reminders(userID string) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(userID)
	return append([]models.Reminder{}, state.Reminders...), nil
}

func (s *FileStore) AllReminders() (map[string][]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string][]models.Reminder, len(s.users))
	for userID, state := range s.users {
		if len(state.Reminders) == 0 {
			continue
		}
		all[userID] = append([]models.Reminder{}, state.Reminders...)
	}
	return all, nil
}

func (s *FileStore) PruneReminders(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for _, state := range s.users {
		kept := state.Reminders[:0]
		for _, r := range state.Reminders {
			if r.FireAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, r)
		}
		state.Reminders = kept
	}

	if pruned == 0 {
		return 0, nil
	}
	return pruned, s.flushLocked()
}

func (s *FileStore) AppendHistory(userID string, turns ...models.HistoryTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(userID)
	state.History = append(state.History, turns...)
	return s.flushLocked()
}

func (s *FileStore) History(userID string, n int) ([]models.HistoryTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateLocked(userID)
	history := state.History
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	return append([]models.HistoryTurn{}, history...), nil
}

func (s *FileStore) Close() error {
	return nil
}
