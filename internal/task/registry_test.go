package task

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/roster"
	"github.com/Veraticus/classbot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*3600)

// 2025-09-10 10:00 WIB
var today = time.Date(2025, 9, 10, 10, 0, 0, 0, wib)

func newRegistry(t *testing.T) (*Registry, *model.Class) {
	t.Helper()
	store := storage.NewMemoryStore()
	clock := func() time.Time { return today }
	class, err := roster.New(store, clock).InitClass(context.Background(), "Kelas-3A", "G1")
	require.NoError(t, err)
	return NewRegistry(store, wib, clock), class
}

func TestDaysUntil(t *testing.T) {
	r, _ := newRegistry(t)

	tests := []struct {
		name     string
		deadline string
		now      time.Time
		want     int
	}{
		{name: "today", deadline: "2025-09-10", now: today, want: 0},
		{name: "tomorrow", deadline: "2025-09-11", now: today, want: 1},
		{name: "yesterday", deadline: "2025-09-09", now: today, want: -1},
		{name: "late evening still today", deadline: "2025-09-11", now: time.Date(2025, 9, 10, 23, 59, 0, 0, wib), want: 1},
		{name: "utc instant converted to local date", deadline: "2025-09-11", now: time.Date(2025, 9, 10, 18, 0, 0, 0, time.UTC), want: 0},
		{name: "month boundary", deadline: "2025-10-01", now: today, want: 21},
		{name: "far future", deadline: "9999-12-31", now: today, want: 2912555},
		{name: "beyond duration range", deadline: "2400-01-01", now: today, want: 136713},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.DaysUntil(tt.deadline, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := r.DaysUntil(tt.deadline, tt.now)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}

	_, err := r.DaysUntil("not-a-date", today)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAddTask(t *testing.T) {
	ctx := context.Background()
	r, class := newRegistry(t)

	t.Run("today accepted with default reminders", func(t *testing.T) {
		task, err := r.AddTask(ctx, class.ID, "Quiz", "2025-09-10", "", "")
		require.NoError(t, err)
		assert.Equal(t, model.ReminderDays{7, 3, 1}, task.ReminderDays)
		assert.Equal(t, int64(1), task.ID)
	})

	t.Run("custom reminders", func(t *testing.T) {
		task, err := r.AddTask(ctx, class.ID, "Makalah", "2025-10-15", "Tulis makalah", "10,5,2")
		require.NoError(t, err)
		assert.Equal(t, model.ReminderDays{10, 5, 2}, task.ReminderDays)
		assert.Equal(t, "Tulis makalah", task.Description)
	})

	rejects := []struct {
		name      string
		title     string
		deadline  string
		reminders string
		message   string
	}{
		{name: "yesterday", title: "Quiz", deadline: "2025-09-09", message: "Tanggal deadline tidak boleh di masa lalu"},
		{name: "bad format", title: "Quiz", deadline: "20-09-2025", message: "Format tanggal harus YYYY-MM-DD (contoh: 2025-09-20)"},
		{name: "short year-month", title: "Quiz", deadline: "2025-9-20", message: "Format tanggal harus YYYY-MM-DD (contoh: 2025-09-20)"},
		{name: "impossible date", title: "Quiz", deadline: "2025-02-30", message: "Tanggal tidak valid"},
		{name: "negative reminder", title: "Quiz", deadline: "2025-09-20", reminders: "3,-1"},
		{name: "non numeric reminder", title: "Quiz", deadline: "2025-09-20", reminders: "3,x"},
		{name: "short title", title: "Qu", deadline: "2025-09-20", message: "Judul tugas minimal 3 karakter."},
	}

	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			before := r.Count(ctx)
			_, err := r.AddTask(ctx, class.ID, tt.title, tt.deadline, "", tt.reminders)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
			if tt.message != "" {
				msg, ok := common.UserMessage(err)
				require.True(t, ok)
				assert.Equal(t, tt.message, msg)
			}
			assert.Equal(t, before, r.Count(ctx))
		})
	}
}

func TestTasksNeedingReminder(t *testing.T) {
	ctx := context.Background()
	r, class := newRegistry(t)

	// Deadline three days out with "7,3,1".
	_, err := r.AddTask(ctx, class.ID, "Makalah", "2025-09-13", "", "7,3,1")
	require.NoError(t, err)

	due := r.TasksNeedingReminder(ctx, today)
	require.Len(t, due, 1)
	assert.Equal(t, 3, due[0].DaysLeft)
	assert.Equal(t, "G1", due[0].Class.GroupID)

	// Two days out is not an offset.
	assert.Empty(t, r.TasksNeedingReminder(ctx, today.AddDate(0, 0, 1)))
}

func TestQuizReminderSchedule(t *testing.T) {
	ctx := context.Background()
	r, class := newRegistry(t)

	_, err := r.AddTask(ctx, class.ID, "Quiz", "2025-09-13", "Bab 1-3", "3,1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		offset   int
		matches  bool
		daysLeft int
	}{
		{name: "day 0", offset: 0, matches: true, daysLeft: 3},
		{name: "day +1", offset: 1, matches: false},
		{name: "day +2", offset: 2, matches: true, daysLeft: 1},
		{name: "deadline day", offset: 3, matches: false},
		{name: "after deadline", offset: 4, matches: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due := r.TasksNeedingReminder(ctx, today.AddDate(0, 0, tt.offset))
			if !tt.matches {
				assert.Empty(t, due)
				return
			}
			require.Len(t, due, 1)
			assert.Equal(t, tt.daysLeft, due[0].DaysLeft)
		})
	}
}

func TestTasksNeedingReminderSkipsOrphans(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := func() time.Time { return today }
	r := NewRegistry(store, wib, clock)

	_, err := r.AddTask(ctx, 42, "Orphan", "2025-09-11", "", "1")
	require.NoError(t, err)

	assert.Empty(t, r.TasksNeedingReminder(ctx, today))
}

func TestTaskWithoutOffsetsDoesNotHideOthers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := func() time.Time { return today }
	class, err := roster.New(store, clock).InitClass(ctx, "Kelas-3A", "G1")
	require.NoError(t, err)

	legacy := json.RawMessage(`{"id":1,"class_id":1,"title":"Lama","deadline":"2025-09-11","reminder_days":null}`)
	require.NoError(t, store.Replace(ctx, model.CollectionTasks, []json.RawMessage{legacy}))

	r := NewRegistry(store, wib, clock)
	created, err := r.AddTask(ctx, class.ID, "Makalah", "2025-09-13", "", "3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)

	due := r.TasksNeedingReminder(ctx, today)
	require.Len(t, due, 1)
	assert.Equal(t, "Makalah", due[0].Task.Title)
	assert.Len(t, r.TasksByClass(ctx, class.ID), 2)
}

func TestUpcomingAndLookups(t *testing.T) {
	ctx := context.Background()
	r, class := newRegistry(t)

	_, err := r.AddTask(ctx, class.ID, "Lama", "2025-09-11", "", "")
	require.NoError(t, err)
	_, err = r.AddTask(ctx, class.ID, "Baru", "2025-09-20", "", "")
	require.NoError(t, err)

	upcoming := r.Upcoming(ctx, class.ID, today.AddDate(0, 0, 2))
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Baru", upcoming[0].Task.Title)
	assert.Equal(t, 8, upcoming[0].DaysLeft)

	assert.Len(t, r.TasksByClass(ctx, class.ID), 2)
	assert.Empty(t, r.TasksByClass(ctx, 99))

	got, ok := r.TaskByID(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, "Baru", got.Title)
}

func TestReminderDates(t *testing.T) {
	r, _ := newRegistry(t)
	dates, err := r.ReminderDates(model.Task{Deadline: "2025-10-01", ReminderDays: model.ReminderDays{7, 1}})
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, 7, dates[0].Offset)
	assert.Equal(t, "2025-09-24", dates[0].Date.Format(model.DeadlineLayout))
	assert.Equal(t, "2025-09-30", dates[1].Date.Format(model.DeadlineLayout))
}

func TestUrgencyFor(t *testing.T) {
	tests := []struct {
		days  int
		want  Urgency
		icon  string
		label string
	}{
		{days: -1, want: Overdue, icon: "❌", label: "Terlewat"},
		{days: 0, want: Urgent, icon: "🔴", label: "Urgent"},
		{days: 1, want: Urgent, icon: "🔴", label: "Urgent"},
		{days: 3, want: Pressing, icon: "🟡", label: "Mendesak"},
		{days: 4, want: Normal, icon: "🟢", label: "Normal"},
	}
	for _, tt := range tests {
		got := UrgencyFor(tt.days)
		assert.Equal(t, tt.want, got, tt.days)
		assert.Equal(t, tt.icon, got.Icon())
		assert.Equal(t, tt.label, got.Label())
	}
}
