package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"sputnik/internal/models"
)

// SQLiteStore is the sqlite-backed Store implementation, selected with
// STORE_BACKEND=sqlite. Each mutation is a committed transaction, which gives
// the same durability point as the file store's full rewrite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer keeps mutations serialized, matching the file store.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("✅ [STORE] SQLite state store ready at %s", path)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reminder_id TEXT,
			user_id TEXT NOT NULL,
			fire_at TIMESTAMP NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user ON history(user_id)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ensureUser(userID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO users (user_id) VALUES (?)`, userID)
	return err
}

func (s *SQLiteStore) GetOrCreate(userID string) (*models.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUser(userID); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	state := models.NewUserState()
	var err error
	if state.Tasks, err = s.tasksLocked(userID); err != nil {
		return nil, err
	}
	if state.Notes, err = s.notesLocked(userID); err != nil {
		return nil, err
	}
	if state.Reminders, err = s.remindersLocked(userID); err != nil {
		return nil, err
	}
	if state.History, err = s.historyLocked(userID, 0); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *SQLiteStore) AppendTask(userID, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUser(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO tasks (user_id, text) VALUES (?, ?)`, userID, task)
	return err
}

func (s *SQLiteStore) tasksLocked(userID string) ([]string, error) {
	return s.textColumn(`SELECT text FROM tasks WHERE user_id = ? ORDER BY id`, userID)
}

func (s *SQLiteStore) Tasks(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasksLocked(userID)
}

func (s *SQLiteStore) ClearTasks(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM tasks WHERE user_id = ?`, userID)
	return err
}

func (s *SQLiteStore) AppendNote(userID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUser(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO notes (user_id, text) VALUES (?, ?)`, userID, note)
	return err
}

func (s *SQLiteStore) notesLocked(userID string) ([]string, error) {
	return s.textColumn(`SELECT text FROM notes WHERE user_id = ? ORDER BY id`, userID)
}

func (s *SQLiteStore) Notes(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notesLocked(userID)
}

func (s *SQLiteStore) textColumn(query, userID string) ([]string, error) {
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendReminder(userID string, r models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUser(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO reminders (reminder_id, user_id, fire_at, text) VALUES (?, ?, ?, ?)`,
		r.ID, userID, r.FireAt.Format(time.RFC3339Nano), r.Text,
	)
	return err
}

func (s *SQLiteStore) remindersLocked(userID string) ([]models.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT reminder_id, fire_at, text FROM reminders WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

func scanReminders(rows *sql.Rows) ([]models.Reminder, error) {
	out := []models.Reminder{}
	for rows.Next() {
		var r models.Reminder
		var fireAt string
		if err := rows.Scan(&r.ID, &fireAt, &r.Text); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, fireAt)
		if err != nil {
			return nil, fmt.Errorf("invalid fire_at %q: %w", fireAt, err)
		}
		r.FireAt = parsed.Local()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Reminders(userID string) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remindersLocked(userID)
}

func (s *SQLiteStore) AllReminders() (map[string][]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT user_id, reminder_id, fire_at, text FROM reminders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all := make(map[string][]models.Reminder)
	for rows.Next() {
		var userID, fireAt string
		var r models.Reminder
		if err := rows.Scan(&userID, &r.ID, &fireAt, &r.Text); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, fireAt)
		if err != nil {
			return nil, fmt.Errorf("invalid fire_at %q: %w", fireAt, err)
		}
		r.FireAt = parsed.Local()
		all[userID] = append(all[userID], r)
	}
	return all, rows.Err()
}

func (s *SQLiteStore) PruneReminders(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM reminders WHERE fire_at < ?`, cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) AppendHistory(userID string, turns ...models.HistoryTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUser(userID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, turn := range turns {
		if _, err := tx.Exec(
			`INSERT INTO history (user_id, role, content) VALUES (?, ?, ?)`,
			userID, turn.Role, turn.Content,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) historyLocked(userID string, n int) ([]models.HistoryTurn, error) {
	query := `SELECT role, content FROM history WHERE user_id = ? ORDER BY id`
	args := []interface{}{userID}
	if n > 0 {
		// Trailing window: take the newest n, then restore oldest-first order.
		query = `SELECT role, content FROM (
			SELECT id, role, content FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, n)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.HistoryTurn{}
	for rows.Next() {
		var turn models.HistoryTurn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, err
		}
		out = append(out, turn)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) History(userID string, n int) ([]models.HistoryTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked(userID, n)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
