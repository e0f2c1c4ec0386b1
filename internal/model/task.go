package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DeadlineLayout is the date-only format used for task deadlines.
const DeadlineLayout = "2006-01-02"

// DefaultReminderDays is applied when a task is created without offsets.
const DefaultReminderDays = "7,3,1"

// ErrInvalidReminderDays is returned for malformed reminder offsets.
var ErrInvalidReminderDays = errors.New("invalid reminder days")

// ReminderDays is the ordered set of day offsets before a deadline at which
// a reminder fires. It is persisted as a comma separated string.
type ReminderDays []int

// ParseReminderDays parses "7,3,1" style input. Every entry must be a
// non-negative integer.
func ParseReminderDays(s string) (ReminderDays, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidReminderDays)
	}

	parts := strings.Split(s, ",")
	days := make(ReminderDays, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidReminderDays, part)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: %d is negative", ErrInvalidReminderDays, n)
		}
		days = append(days, n)
	}
	return days, nil
}

// Contains reports whether the offset is part of the set.
func (d ReminderDays) Contains(offset int) bool {
	return slices.Contains(d, offset)
}

func (d ReminderDays) String() string {
	parts := make([]string, len(d))
	for i, n := range d {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// MarshalJSON writes the offsets as "7,3,1", or null when there are none.
func (d ReminderDays) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "7,3,1" or [7,3,1]. null and "" leave the set
// empty so one blank row does not hide the rest of the collection.
func (d *ReminderDays) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			*d = nil
			return nil
		}
		parsed, parseErr := ParseReminderDays(s)
		if parseErr != nil {
			return parseErr
		}
		*d = parsed
		return nil
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidReminderDays, string(data))
	}
	for _, n := range ints {
		if n < 0 {
			return fmt.Errorf("%w: %d is negative", ErrInvalidReminderDays, n)
		}
	}
	*d = ints
	return nil
}

// Task is an assignment with a date-only deadline.
type Task struct {
	CreatedAt    time.Time    `json:"created_at"`
	Title        string       `json:"title"`
	Deadline     string       `json:"deadline"`
	Description  string       `json:"description"`
	ReminderDays ReminderDays `json:"reminder_days"`
	ID           int64        `json:"id"`
	ClassID      int64        `json:"class_id"`
}

// GetID returns the record identifier.
func (t Task) GetID() int64 { return t.ID }

// DeadlineIn parses the deadline as midnight in loc.
func (t Task) DeadlineIn(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DeadlineLayout, t.Deadline, loc)
}

// ReminderLog marks that the reminder for a task at a given offset was
// delivered on a given date.
type ReminderLog struct {
	SentAt time.Time `json:"sent_at"`
	Date   string    `json:"date"`
	ID     int64     `json:"id"`
	TaskID int64     `json:"task_id"`
	Offset int       `json:"offset"`
}

// GetID returns the record identifier.
func (l ReminderLog) GetID() int64 { return l.ID }
