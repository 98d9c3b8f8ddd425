package store

import (
	"time"

	"sputnik/internal/models"
)

// Store is the durable per-user state store. It is the single source of truth
// for history, tasks, notes and reminders; every mutation is flushed before it
// returns. Implementations must serialize all access so that the reminder
// scheduler's recovery scan never observes a partial mutation.
type Store interface {
	// GetOrCreate returns the state for userID, lazily creating an empty one
	// on first contact. It is idempotent. The returned value is a snapshot;
	// callers mutate through the methods below.
	GetOrCreate(userID string) (*models.UserState, error)

	AppendTask(userID, task string) error
	Tasks(userID string) ([]string, error)
	ClearTasks(userID string) error

	AppendNote(userID, note string) error
	Notes(userID string) ([]string, error)

	AppendReminder(userID string, r models.Reminder) error
	Reminders(userID string) ([]models.Reminder, error)

	// AllReminders returns every user's reminders, keyed by user ID. Used by
	// the scheduler's restart recovery.
	AllReminders() (map[string][]models.Reminder, error)

	// PruneReminders deletes reminders whose fire instant is before cutoff and
	// returns how many were removed.
	PruneReminders(cutoff time.Time) (int, error)

	// AppendHistory appends conversation turns as one atomic mutation.
	AppendHistory(userID string, turns ...models.HistoryTurn) error

	// History returns up to n trailing history turns, oldest first.
	History(userID string, n int) ([]models.HistoryTurn, error)

	Close() error
}
