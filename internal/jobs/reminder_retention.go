package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"sputnik/internal/store"
)

// ReminderRetentionJob prunes fired reminders older than the retention window.
// Reminders are never deleted when they fire; this job is the only thing that
// removes them, and only when retention is explicitly enabled.
type ReminderRetentionJob struct {
	store         store.Store
	retentionDays int
	schedule      cron.Schedule
}

// NewReminderRetentionJob builds the pruning job. cronExpr is a standard
// five-field cron expression deciding when the prune runs.
func NewReminderRetentionJob(st store.Store, retentionDays int, cronExpr string) (*ReminderRetentionJob, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid retention cron %q: %w", cronExpr, err)
	}

	return &ReminderRetentionJob{
		store:         st,
		retentionDays: retentionDays,
		schedule:      schedule,
	}, nil
}

// Run deletes reminders that fired more than retentionDays ago. Future
// reminders are never touched: the cutoff is always in the past.
func (j *ReminderRetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)

	pruned, err := j.store.PruneReminders(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune reminders: %w", err)
	}

	if pruned > 0 {
		log.Printf("🧹 [RETENTION] Pruned %d reminders fired before %s", pruned, cutoff.Format("2006-01-02"))
	}
	return nil
}

// GetNextRunTime returns the next instant matching the cron schedule.
func (j *ReminderRetentionJob) GetNextRunTime() time.Time {
	return j.schedule.Next(time.Now())
}
