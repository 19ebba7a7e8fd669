package cron

import (
	"context"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/email"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
)

// ReminderSender delivers overdue task digests. email.Service implements it.
type ReminderSender interface {
	SendDueDateReminder(to string, data email.DueDateReminderData) error
}

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron      *cron.Cron
	userRepo  repository.UserRepository
	tasks     service.TaskService
	ownership service.OwnershipRegistry
	reminders ReminderSender // nil disables reminders
	log       *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(
	userRepo repository.UserRepository,
	tasks service.TaskService,
	ownership service.OwnershipRegistry,
	reminders ReminderSender,
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		userRepo:  userRepo,
		tasks:     tasks,
		ownership: ownership,
		reminders: reminders,
		log:       log,
		now:       time.Now,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	// Every hour - expired refresh tokens
	if _, err := s.cron.AddFunc("0 * * * *", func() {
		s.purgeExpiredRefreshTokens(context.Background())
	}); err != nil {
		return err
	}

	// Every day at 9 AM - overdue task reminders
	if s.reminders != nil {
		if _, err := s.cron.AddFunc("0 9 * * *", func() {
			s.sendOverdueReminders(context.Background())
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info("cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron scheduler stopped")
}

func (s *Scheduler) purgeExpiredRefreshTokens(ctx context.Context) {
	n, err := s.userRepo.DeleteExpiredRefreshTokens(ctx, s.now())
	if err != nil {
		s.log.Error("purge expired refresh tokens", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("purged expired refresh tokens", zap.Int("count", n))
	}
}

// sendOverdueReminders mails each active assignee one digest of their
// overdue tasks.
func (s *Scheduler) sendOverdueReminders(ctx context.Context) {
	overdue, err := s.tasks.FindOverdue(ctx, s.now())
	if err != nil {
		s.log.Error("find overdue tasks", zap.Error(err))
		return
	}
	if len(overdue) == 0 {
		return
	}

	byAssignee := make(map[string][]*repository.Task)
	ids := make([]string, 0)
	for _, t := range overdue {
		if t.AssigneeID == nil {
			continue
		}
		if _, ok := byAssignee[*t.AssigneeID]; !ok {
			ids = append(ids, *t.AssigneeID)
		}
		byAssignee[*t.AssigneeID] = append(byAssignee[*t.AssigneeID], t)
	}

	users, err := s.ownership.ResolveMany(ctx, ids)
	if err != nil {
		s.log.Error("resolve reminder recipients", zap.Error(err))
		return
	}

	sort.Strings(ids)
	sent := 0
	for _, id := range ids {
		user, ok := users[id]
		if !ok || !user.IsActive {
			continue
		}

		data := email.DueDateReminderData{UserName: user.Name}
		for _, t := range byAssignee[id] {
			data.Tasks = append(data.Tasks, email.DueDateReminderTask{
				Title:    t.Title,
				Priority: string(t.Priority),
				DueDate:  t.DueDate.Format("Jan 2, 2006"),
			})
		}

		if err := s.reminders.SendDueDateReminder(user.Email, data); err != nil {
			s.log.Warn("overdue reminder failed", zap.String("user_id", id), zap.Error(err))
			continue
		}
		sent++
	}
	s.log.Info("overdue reminders sent", zap.Int("recipients", sent), zap.Int("tasks", len(overdue)))
}
