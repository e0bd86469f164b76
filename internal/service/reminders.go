package service

import (
	"context"
	"time"

	"github.com/Dan9191/loan-control/internal/models"
)

// dueDays returns the due days that fall on the given date. On the last day
// of a short month the days that month lacks are due as well.
func dueDays(date time.Time) []int {
	day := date.Day()
	days := []int{day}
	lastDay := time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, date.Location()).Day()
	if day == lastDay {
		for d := day + 1; d <= 31; d++ {
			days = append(days, d)
		}
	}
	return days
}

// SendDueReminders notifies every user about their clients whose payment is
// due on date. It returns the number of reminders delivered.
func (s *Service) SendDueReminders(ctx context.Context, date time.Time) (int, error) {
	clients, err := s.repo.ListDueClients(ctx, dueDays(date))
	if err != nil {
		return 0, err
	}

	var reminders []*models.Reminder
	byUser := make(map[string]*models.Reminder)
	for _, c := range clients {
		r, ok := byUser[c.UserID]
		if !ok {
			r = &models.Reminder{UserID: c.UserID, DueDay: date.Day()}
			byUser[c.UserID] = r
			reminders = append(reminders, r)
		}
		r.Clients = append(r.Clients, c)
	}

	sent := 0
	for _, r := range reminders {
		user, err := s.repo.FindUserByID(ctx, r.UserID)
		if err != nil {
			s.log.Errorf("Failed to load user %s for reminder: %v", r.UserID, err)
			continue
		}
		if user.Email == "" {
			s.log.Infof("User %s has %d clients due today and no email", r.UserID, len(r.Clients))
			continue
		}
		r.Email = user.Email
		if err := s.notifier.SendDueReminder(user.Email, *r); err != nil {
			s.log.Warnf("Reminder for %s not delivered: %v", r.UserID, err)
			continue
		}
		sent++
	}

	s.log.Infof("Due reminders sent: %d of %d", sent, len(reminders))
	return sent, nil
}
