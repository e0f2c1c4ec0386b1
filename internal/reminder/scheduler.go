// Package reminder runs the cron triggers that scan tasks and post deadline
// reminders to class groups.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/roster"
	"github.com/Veraticus/classbot/internal/service"
	"github.com/Veraticus/classbot/internal/storage"
	"github.com/Veraticus/classbot/internal/task"
	"github.com/robfig/cron/v3"
)

// Default cron specs: every day at 08:00 and every four hours.
const (
	DefaultDaily    = "0 8 * * *"
	DefaultInterval = "0 */4 * * *"
)

// ErrNoNotifier is returned when a send is attempted before a notifier is
// bound.
var ErrNoNotifier = errors.New("reminder notifier not set")

// Options configures a Scheduler.
type Options struct {
	Daily    string
	Interval string
	// Dedupe suppresses a second reminder for the same task, offset and day.
	Dedupe bool
}

// DefaultOptions returns the stock schedule with de-duplication on.
func DefaultOptions() Options {
	return Options{Daily: DefaultDaily, Interval: DefaultInterval, Dedupe: true}
}

// ScanResult counts the outcome of one CheckAndSend pass.
type ScanResult struct {
	Matched int
	Sent    int
	Skipped int
	Failed  int
}

// Status describes the scheduler for the testreminder command.
type Status struct {
	Timezone    string
	Schedules   []string
	Running     bool
	HasNotifier bool
}

// Scheduler owns the cron triggers and the reminder log.
type Scheduler struct {
	notifier service.Notifier
	registry *task.Registry
	roster   *roster.Roster
	sent     *storage.Table[model.ReminderLog]
	cron     *cron.Cron
	now      service.Clock
	opts     Options
	mu       sync.Mutex
	scanMu   sync.Mutex
}

// New creates a stopped scheduler.
func New(store service.RecordStore, registry *task.Registry, r *roster.Roster, opts Options, now service.Clock) *Scheduler {
	if opts.Daily == "" {
		opts.Daily = DefaultDaily
	}
	if opts.Interval == "" {
		opts.Interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		registry: registry,
		roster:   r,
		sent:     storage.NewTable[model.ReminderLog](store, model.CollectionReminderLog),
		now:      now,
		opts:     opts,
	}
}

// SetNotifier binds the notifier used by CheckAndSend and TestReminder
// without starting the triggers.
func (s *Scheduler) SetNotifier(n service.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Scheduler) currentNotifier() service.Notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifier
}

// Start binds notifier and schedules both triggers in the registry's
// timezone. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(notifier service.Notifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		slog.Warn("reminder scheduler already running")
		return nil
	}

	c := cron.New(
		cron.WithLocation(s.registry.Location()),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	for _, spec := range []string{s.opts.Daily, s.opts.Interval} {
		if _, err := c.AddFunc(spec, s.runScan); err != nil {
			return fmt.Errorf("%w: cron spec %q: %w", common.ErrInvalidConfig, spec, err)
		}
	}

	s.notifier = notifier
	s.cron = c
	c.Start()

	slog.Info("reminder scheduler started",
		"daily", s.opts.Daily,
		"interval", s.opts.Interval,
		"timezone", s.registry.Location().String())
	return nil
}

// Stop cancels both triggers and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		slog.Info("reminder scheduler not running")
		return
	}
	<-c.Stop().Done()
	slog.Info("reminder scheduler stopped")
}

// Running reports whether the triggers are scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:     s.cron != nil,
		HasNotifier: s.notifier != nil,
		Timezone:    s.registry.Location().String(),
		Schedules:   []string{s.opts.Daily, s.opts.Interval},
	}
}

func (s *Scheduler) runScan() {
	ctx := context.Background()
	res, err := s.CheckAndSend(ctx)
	if err != nil {
		common.LogError(ctx, err, "reminder scan failed", nil)
		return
	}
	common.LogInfo(ctx, "reminder scan finished", common.Fields{
		"matched": res.Matched,
		"sent":    res.Sent,
		"skipped": res.Skipped,
		"failed":  res.Failed,
	})
}

// CheckAndSend posts one reminder for every task due today. Scans are
// serialized, so when both triggers fire at the same minute the second one
// sees the first one's log entries. A failed send is logged and the scan
// moves on to the next task.
func (s *Scheduler) CheckAndSend(ctx context.Context) (ScanResult, error) {
	notifier := s.currentNotifier()
	if notifier == nil {
		return ScanResult{}, ErrNoNotifier
	}

	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	now := s.now()
	today := now.In(s.registry.Location()).Format(model.DeadlineLayout)
	due := s.registry.TasksNeedingReminder(ctx, now)

	res := ScanResult{Matched: len(due)}
	if len(due) == 0 {
		slog.Debug("no reminders due", "date", today)
		return res, nil
	}

	for _, d := range due {
		if s.opts.Dedupe && s.alreadySent(ctx, d, today) {
			res.Skipped++
			continue
		}

		msg := Message(d, s.registry.Location())
		if err := notifier.Send(ctx, d.Class.GroupID, msg); err != nil {
			res.Failed++
			common.LogError(ctx, err, "failed to send reminder", common.Fields{
				"task_id":  d.Task.ID,
				"class":    d.Class.Name,
				"group_id": d.Class.GroupID,
			})
			continue
		}
		res.Sent++
		slog.Info("reminder sent", "task", d.Task.Title, "class", d.Class.Name, "days_left", d.DaysLeft)

		if s.opts.Dedupe {
			s.recordSent(ctx, d, today)
		}
	}
	return res, nil
}

func (s *Scheduler) alreadySent(ctx context.Context, d task.Due, date string) bool {
	_, found := s.sent.Find(ctx, func(l model.ReminderLog) bool {
		return l.TaskID == d.Task.ID && l.Offset == d.DaysLeft && l.Date == date
	})
	return found
}

func (s *Scheduler) recordSent(ctx context.Context, d task.Due, date string) {
	_, err := s.sent.Insert(ctx, func(id int64, _ []model.ReminderLog) (model.ReminderLog, error) {
		return model.ReminderLog{
			ID:     id,
			TaskID: d.Task.ID,
			Offset: d.DaysLeft,
			Date:   date,
			SentAt: s.now(),
		}, nil
	})
	if err != nil {
		common.LogError(ctx, err, "failed to record sent reminder", common.Fields{"task_id": d.Task.ID})
	}
}

// TestReminder sends the class's upcoming-task listing to groupID. It
// never writes.
func (s *Scheduler) TestReminder(ctx context.Context, groupID string) error {
	notifier := s.currentNotifier()
	if notifier == nil {
		return ErrNoNotifier
	}
	if err := notifier.Send(ctx, groupID, s.TestReport(ctx, groupID)); err != nil {
		return fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	return nil
}

// TestReport builds the listing TestReminder sends.
func (s *Scheduler) TestReport(ctx context.Context, groupID string) string {
	class, ok := s.roster.ClassByGroup(ctx, groupID)
	if !ok {
		return "❌ Grup ini belum diinisialisasi sebagai kelas."
	}
	tasks := s.registry.TasksByClass(ctx, class.ID)
	if len(tasks) == 0 {
		return "📝 Belum ada tugas untuk kelas ini."
	}
	return testListing(class, tasks, s.registry, s.now(), []string{s.opts.Daily, s.opts.Interval})
}
