package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/schedule"
	"github.com/cwinters/pocketmoney/internal/store"
)

const reminderLeadMinutes = 30

// Scheduler periodically checks for tasks approaching their due time and
// nudges the assigned users.
type Scheduler struct {
	mu          sync.RWMutex
	service     *Service
	push        *store.PushStore
	tasks       *store.TaskStore
	completions *store.CompletionStore
	users       *store.UserStore
	settings    *store.SettingsStore
	logger      *slog.Logger
	interval    time.Duration
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewScheduler(svc *Service, pushStore *store.PushStore, taskStore *store.TaskStore, completionStore *store.CompletionStore, userStore *store.UserStore, settingsStore *store.SettingsStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:     svc,
		push:        pushStore,
		tasks:       taskStore,
		completions: completionStore,
		users:       userStore,
		settings:    settingsStore,
		logger:      logger.With("component", "push-scheduler"),
		interval:    60 * time.Second,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(now time.Time) {
	settings, err := s.settings.Get()
	if err != nil {
		s.logger.Error("load settings", "error", err)
		return
	}
	if settings == nil {
		return
	}

	// Old dedupe rows are useless after their day has passed.
	cutoff := now.UTC().AddDate(0, 0, -7).Format("2006-01-02 15:04:05")
	if err := s.push.PruneSentLog(cutoff); err != nil {
		s.logger.Warn("prune sent log", "error", err)
	}

	today, clock := schedule.LocalToday(now, settings.Location())

	weekStart := schedule.WeekStart(today, settings.WeekStartsOn)
	weekCompletions, err := s.completions.ListInRange(weekStart, schedule.WeekEnd(today, settings.WeekStartsOn))
	if err != nil {
		s.logger.Error("load week completions", "error", err)
		return
	}
	monthCompletions, err := s.completions.ListInRange(schedule.MonthStart(today), schedule.MonthEnd(today))
	if err != nil {
		s.logger.Error("load month completions", "error", err)
		return
	}

	assignments, err := s.tasks.ListActiveAssignments()
	if err != nil {
		s.logger.Error("load assignments", "error", err)
		return
	}
	users, err := s.users.ListActive()
	if err != nil {
		s.logger.Error("load users", "error", err)
		return
	}

	day := schedule.DayBit(today.Weekday())
	for _, a := range assignments {
		if a.DueTime == nil || !schedule.InRange(a, today) {
			continue
		}
		due, err := schedule.ParseClock(*a.DueTime)
		if err != nil {
			continue
		}
		// Remind only inside the lead window before the due time.
		if clock > due || due-clock > reminderLeadMinutes {
			continue
		}
		if !schedule.IsDue(a, today, clock, day, weekCompletions, monthCompletions, false) {
			continue
		}
		s.remind(a, today, due-clock, users)
	}
}

func (s *Scheduler) remind(a model.TaskAssignment, today time.Time, minutesLeft int, users []model.User) {
	def, err := s.tasks.GetDefinition(a.TaskDefinitionID)
	if err != nil || def == nil {
		return
	}

	payload := Payload{
		Title: "Task due soon",
		Body:  fmt.Sprintf("%s is due in %d minutes", def.Title, minutesLeft),
		URL:   "/tasks/today",
		Tag:   fmt.Sprintf("due-%d", a.ID),
	}
	ref := fmt.Sprintf("due-%d-%s", a.ID, today.Format("2006-01-02"))

	for _, u := range users {
		if !a.Assignee.Matches(u.ID, u.Role) {
			continue
		}

		fresh, err := s.push.MarkSent(u.ID, ref)
		if err != nil {
			s.logger.Error("mark sent", "error", err)
			continue
		}
		if !fresh {
			continue
		}

		subs, err := s.push.ListForUser(u.ID)
		if err != nil {
			s.logger.Error("list subscriptions", "user_id", u.ID, "error", err)
			continue
		}
		for i := range subs {
			if err := s.service.Send(&subs[i], payload); err != nil {
				if errors.Is(err, ErrExpired) {
					if err := s.push.Unsubscribe(subs[i].Endpoint); err != nil {
						s.logger.Error("drop expired subscription", "error", err)
					}
				} else {
					s.logger.Error("send reminder", "user_id", u.ID, "error", err)
				}
			}
		}
	}
}
