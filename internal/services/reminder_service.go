package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"sputnik/internal/models"
	"sputnik/internal/store"
)

// DeliverFunc sends a fired reminder's message to the user. Delivery failures
// are logged and swallowed; a reminder is never retried.
type DeliverFunc func(ctx context.Context, userID, text string)

// ReminderService owns the one-shot reminder triggers. Persistence lives in
// the store; this service only keeps the in-memory timers, and rebuilds them
// from the store on startup.
type ReminderService struct {
	store     store.Store
	deliver   DeliverFunc
	scheduler gocron.Scheduler

	mu   sync.Mutex
	jobs map[string]gocron.Job // reminder ID -> live trigger
}

// NewReminderService creates the reminder scheduler. Call Start before
// accepting live traffic so restored reminders cannot race new ones.
func NewReminderService(st store.Store, deliver DeliverFunc) (*ReminderService, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &ReminderService{
		store:     st,
		deliver:   deliver,
		scheduler: scheduler,
		jobs:      make(map[string]gocron.Job),
	}, nil
}

// Start restores triggers for every stored reminder that is still in the
// future, then starts the scheduler. Reminders whose fire time already passed
// are left in the store untouched and never fire.
func (s *ReminderService) Start() error {
	all, err := s.store.AllReminders()
	if err != nil {
		return fmt.Errorf("failed to load stored reminders: %w", err)
	}

	now := time.Now()
	restored, stale := 0, 0

	s.mu.Lock()
	for userID, reminders := range all {
		for _, r := range reminders {
			if !r.FireAt.After(now) {
				stale++
				continue
			}
			if err := s.registerLocked(userID, r); err != nil {
				log.Printf("⚠️ [REMINDER] Failed to restore reminder %s for user %s: %v", r.ID, userID, err)
				continue
			}
			restored++
		}
	}
	s.mu.Unlock()

	s.scheduler.Start()
	log.Printf("⏰ [REMINDER] Scheduler started (%d restored, %d already fired)", restored, stale)
	return nil
}

// Stop shuts the scheduler down, waiting for in-flight deliveries.
func (s *ReminderService) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		log.Printf("⚠️ [REMINDER] Scheduler shutdown error: %v", err)
	}
}

// Schedule persists a new reminder and registers its trigger. The reminder is
// durable before it is live: if the process dies between the two steps, the
// trigger is rebuilt on the next start.
func (s *ReminderService) Schedule(userID string, fireAt time.Time, text string) (models.Reminder, error) {
	r := models.Reminder{
		ID:     uuid.New().String(),
		FireAt: fireAt,
		Text:   text,
	}

	if err := s.store.AppendReminder(userID, r); err != nil {
		return models.Reminder{}, fmt.Errorf("failed to persist reminder: %w", err)
	}

	// A fire time already in the past gets no trigger: the reminder is kept
	// for listings but never fires late, same as restart recovery.
	if !fireAt.After(time.Now()) {
		log.Printf("⏰ [REMINDER] Reminder %s for user %s is already due, skipping trigger", r.ID, userID)
		return r, nil
	}

	s.mu.Lock()
	err := s.registerLocked(userID, r)
	s.mu.Unlock()
	if err != nil {
		return models.Reminder{}, fmt.Errorf("failed to register trigger: %w", err)
	}

	if m := GetMetrics(); m != nil {
		m.RemindersScheduled.Inc()
	}
	log.Printf("⏰ [REMINDER] Scheduled %s for user %s at %s", r.ID, userID, fireAt.Format(time.RFC3339))
	return r, nil
}

func (s *ReminderService) registerLocked(userID string, r models.Reminder) error {
	job, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(r.FireAt)),
		gocron.NewTask(func() { s.fire(userID, r) }),
		gocron.WithName(fmt.Sprintf("reminder-%s", r.ID)),
	)
	if err != nil {
		return err
	}
	s.jobs[r.ID] = job
	return nil
}

// fire delivers one reminder. The reminder stays in the store after firing;
// only the in-memory trigger is released.
func (s *ReminderService) fire(userID string, r models.Reminder) {
	s.mu.Lock()
	delete(s.jobs, r.ID)
	s.mu.Unlock()

	if m := GetMetrics(); m != nil {
		m.RemindersFired.Inc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Printf("🔔 [REMINDER] Firing %s for user %s", r.ID, userID)
	s.deliver(ctx, userID, r.Text)
}

// PendingCount returns the number of live triggers, for the health endpoint.
func (s *ReminderService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
