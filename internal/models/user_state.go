package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// HistoryTurn is a single turn of the conversation history, in the role/content
// shape the chat completion API expects.
type HistoryTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Reminder is a one-shot reminder. FireAt is stored as an absolute instant so
// it survives serialization and restarts. Reminders are never deleted after
// firing; "already fired" is inferred by FireAt < now at read time.
type Reminder struct {
	ID     string    `json:"id,omitempty"`
	FireAt time.Time `json:"datetime"`
	Text   string    `json:"text"`
}

// reminderTimeLayouts accepts both RFC3339 and zone-less local timestamps, so
// state files written by earlier versions of the bot load cleanly.
var reminderTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON parses the stored fire instant leniently; timestamps without a
// zone are interpreted in local time.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string `json:"id"`
		DateTime string `json:"datetime"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var fireAt time.Time
	var err error
	for _, layout := range reminderTimeLayouts {
		fireAt, err = time.ParseInLocation(layout, raw.DateTime, time.Local)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("invalid reminder datetime %q: %w", raw.DateTime, err)
	}

	r.ID = raw.ID
	r.FireAt = fireAt
	r.Text = raw.Text
	return nil
}

// UserState holds everything the assistant remembers about one user. Created
// lazily on first contact, never deleted.
type UserState struct {
	History   []HistoryTurn `json:"history"`
	Tasks     []string      `json:"tasks"`
	Notes     []string      `json:"notes"`
	Reminders []Reminder    `json:"reminders"`
}

// NewUserState returns an empty state with all collections initialized.
func NewUserState() *UserState {
	return &UserState{
		History:   []HistoryTurn{},
		Tasks:     []string{},
		Notes:     []string{},
		Reminders: []Reminder{},
	}
}
