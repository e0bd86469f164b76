package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReminderSender sends the due-day reminders for a date
type ReminderSender interface {
	SendDueReminders(ctx context.Context, date time.Time) (int, error)
}

// Scheduler runs the periodic reminder job
type Scheduler struct {
	cron    *cron.Cron
	sender  ReminderSender
	log     *logrus.Logger
	timeout time.Duration
	now     func() time.Time
}

// New creates a scheduler that triggers the reminders on schedule, a standard
// five field cron expression
func New(schedule string, sender ReminderSender, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sender:  sender,
		log:     log,
		timeout: 5 * time.Minute,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce sends the reminders for today
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.log.Info("Sending daily reminders...")
	sent, err := s.sender.SendDueReminders(ctx, s.now())
	if err != nil {
		s.log.Errorf("Reminder job failed: %v", err)
		return
	}
	s.log.Infof("Reminder job finished, %d sent", sent)
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
