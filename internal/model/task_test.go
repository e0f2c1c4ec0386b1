package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReminderDays(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ReminderDays
		wantErr bool
	}{
		{name: "default", input: "7,3,1", want: ReminderDays{7, 3, 1}},
		{name: "spaces", input: " 3 , 1 ", want: ReminderDays{3, 1}},
		{name: "zero allowed", input: "0", want: ReminderDays{0}},
		{name: "duplicates kept", input: "1,1", want: ReminderDays{1, 1}},
		{name: "negative", input: "3,-1", wantErr: true},
		{name: "not a number", input: "3,x", wantErr: true},
		{name: "trailing comma", input: "3,", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReminderDays(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidReminderDays)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReminderDays_JSON(t *testing.T) {
	task := Task{ID: 1, Title: "Quiz", Deadline: "2025-09-15", ReminderDays: ReminderDays{3, 1}}

	data, err := json.Marshal(task)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reminder_days":"3,1"`)

	var fromString Task
	require.NoError(t, json.Unmarshal([]byte(`{"id":2,"reminder_days":"7,3,1"}`), &fromString))
	assert.Equal(t, ReminderDays{7, 3, 1}, fromString.ReminderDays)

	var fromArray Task
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"reminder_days":[5,2]}`), &fromArray))
	assert.Equal(t, ReminderDays{5, 2}, fromArray.ReminderDays)

	var bad Task
	assert.Error(t, json.Unmarshal([]byte(`{"reminder_days":{"a":1}}`), &bad))
}

func TestReminderDays_JSONEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ReminderDays
		wantErr bool
	}{
		{name: "null", in: `{"id":1,"reminder_days":null}`},
		{name: "blank string", in: `{"id":1,"reminder_days":""}`},
		{name: "missing", in: `{"id":1}`},
		{name: "negative in array", in: `{"id":1,"reminder_days":[-1,3]}`, wantErr: true},
		{name: "negative in string", in: `{"id":1,"reminder_days":"3,-1"}`, wantErr: true},
		{name: "zero in array", in: `{"id":1,"reminder_days":[0]}`, want: ReminderDays{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var task Task
			err := json.Unmarshal([]byte(tt.in), &task)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReminderDays)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, task.ReminderDays)
		})
	}

	data, err := json.Marshal(Task{ID: 4})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reminder_days":null`)

	var back Task
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Empty(t, back.ReminderDays)
}

func TestReminderDays_Contains(t *testing.T) {
	days := ReminderDays{7, 3, 1}
	assert.True(t, days.Contains(3))
	assert.False(t, days.Contains(2))
	assert.Equal(t, "7,3,1", days.String())
}

func TestTask_DeadlineIn(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	task := Task{Deadline: "2025-09-20"}

	got, err := task.DeadlineIn(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 20, 0, 0, 0, 0, loc), got)

	_, err = Task{Deadline: "20-09-2025"}.DeadlineIn(loc)
	assert.Error(t, err)
}
