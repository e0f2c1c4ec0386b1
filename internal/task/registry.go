// Package task stores class assignments and derives deadline arithmetic in
// the configured timezone.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/service"
	"github.com/Veraticus/classbot/internal/storage"
)

const minTitleLen = 3

var deadlinePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Due is a task whose reminder fires today.
type Due struct {
	Task     model.Task
	Class    model.Class
	DaysLeft int
}

// ReminderDate is the calendar day on which one reminder offset fires.
type ReminderDate struct {
	Date   time.Time
	Offset int
}

// Registry owns the tasks collection.
type Registry struct {
	tasks   *storage.Table[model.Task]
	classes *storage.Table[model.Class]
	loc     *time.Location
	now     service.Clock
}

// NewRegistry creates a registry. Dates are evaluated in loc.
func NewRegistry(store service.RecordStore, loc *time.Location, now service.Clock) *Registry {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		tasks:   storage.NewTable[model.Task](store, model.CollectionTasks),
		classes: storage.NewTable[model.Class](store, model.CollectionClasses),
		loc:     loc,
		now:     now,
	}
}

// Location returns the timezone deadlines are evaluated in.
func (r *Registry) Location() *time.Location { return r.loc }

// AddTask validates and stores a new task. An empty reminderDays means
// model.DefaultReminderDays.
func (r *Registry) AddTask(ctx context.Context, classID int64, title, deadline, description, reminderDays string) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if len([]rune(title)) < minTitleLen {
		return nil, common.Invalid("Judul tugas minimal 3 karakter.")
	}

	if err := r.ValidateDeadline(deadline); err != nil {
		return nil, err
	}

	if strings.TrimSpace(reminderDays) == "" {
		reminderDays = model.DefaultReminderDays
	}
	days, err := model.ParseReminderDays(reminderDays)
	if err != nil {
		return nil, common.NewUserError("Format reminder harus berupa angka yang dipisah koma.\nContoh: 7,3,1", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}

	created, err := r.tasks.Insert(ctx, func(id int64, _ []model.Task) (model.Task, error) {
		return model.Task{
			ID:           id,
			ClassID:      classID,
			Title:        title,
			Deadline:     deadline,
			Description:  strings.TrimSpace(description),
			ReminderDays: days,
			CreatedAt:    r.now(),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add task: %w", err)
	}
	return &created, nil
}

// ValidateDeadline checks the YYYY-MM-DD format, that the date exists and
// that it is not before today. Today itself is accepted.
func (r *Registry) ValidateDeadline(deadline string) error {
	if !deadlinePattern.MatchString(deadline) {
		return common.Invalid("Format tanggal harus YYYY-MM-DD (contoh: 2025-09-20)")
	}
	if _, err := time.ParseInLocation(model.DeadlineLayout, deadline, r.loc); err != nil {
		return common.Invalid("Tanggal tidak valid")
	}
	days, err := r.DaysUntil(deadline, r.now())
	if err != nil {
		return common.Invalid("Tanggal tidak valid")
	}
	if days < 0 {
		return common.Invalid("Tanggal deadline tidak boleh di masa lalu")
	}
	return nil
}

// DaysUntil returns the number of calendar days from now's date to the
// deadline, both taken in the registry's timezone. Today is 0, tomorrow 1,
// yesterday -1.
func (r *Registry) DaysUntil(deadline string, now time.Time) (int, error) {
	dl, err := time.ParseInLocation(model.DeadlineLayout, deadline, r.loc)
	if err != nil {
		return 0, fmt.Errorf("%w: deadline %q", common.ErrInvalidInput, deadline)
	}
	return calendarDiff(now.In(r.loc), dl), nil
}

// calendarDiff counts whole days between the dates of a and b, ignoring
// time of day and DST shifts. Unix seconds are used because Duration
// saturates at about 292 years.
func calendarDiff(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).Unix()
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).Unix()
	return int((db - da) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// TasksByClass returns a class's tasks in insertion order.
func (r *Registry) TasksByClass(ctx context.Context, classID int64) []model.Task {
	return r.tasks.Filter(ctx, func(t model.Task) bool { return t.ClassID == classID })
}

// TaskByID returns the task with id.
func (r *Registry) TaskByID(ctx context.Context, id int64) (*model.Task, bool) {
	t, ok := r.tasks.Get(ctx, id)
	if !ok {
		return nil, false
	}
	return &t, true
}

// Count returns the number of stored tasks.
func (r *Registry) Count(ctx context.Context) int {
	return r.tasks.Count(ctx)
}

// TasksNeedingReminder returns every task whose days-left at now is one of
// its reminder offsets. Tasks whose class no longer exists are skipped.
func (r *Registry) TasksNeedingReminder(ctx context.Context, now time.Time) []Due {
	classes := make(map[int64]model.Class)
	for _, c := range r.classes.All(ctx) {
		classes[c.ID] = c
	}

	var due []Due
	for _, t := range r.tasks.All(ctx) {
		daysLeft, err := r.DaysUntil(t.Deadline, now)
		if err != nil {
			slog.Warn("skipping task with unparseable deadline", "task_id", t.ID, "deadline", t.Deadline)
			continue
		}
		if !t.ReminderDays.Contains(daysLeft) {
			continue
		}
		class, ok := classes[t.ClassID]
		if !ok {
			slog.Warn("skipping reminder for task without class", "task_id", t.ID, "class_id", t.ClassID)
			continue
		}
		due = append(due, Due{Task: t, Class: class, DaysLeft: daysLeft})
	}
	return due
}

// Upcoming returns the class's tasks whose deadline is today or later,
// paired with their days left.
func (r *Registry) Upcoming(ctx context.Context, classID int64, now time.Time) []Due {
	class, _ := r.classes.Get(ctx, classID)

	var out []Due
	for _, t := range r.TasksByClass(ctx, classID) {
		daysLeft, err := r.DaysUntil(t.Deadline, now)
		if err != nil || daysLeft < 0 {
			continue
		}
		out = append(out, Due{Task: t, Class: class, DaysLeft: daysLeft})
	}
	return out
}

// ReminderDates lists the day each of the task's reminders fires.
func (r *Registry) ReminderDates(t model.Task) ([]ReminderDate, error) {
	dl, err := t.DeadlineIn(r.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: deadline %q", common.ErrInvalidInput, t.Deadline)
	}
	dates := make([]ReminderDate, 0, len(t.ReminderDays))
	for _, offset := range t.ReminderDays {
		dates = append(dates, ReminderDate{Offset: offset, Date: dl.AddDate(0, 0, -offset)})
	}
	return dates, nil
}
