package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		want string
		size int64
	}{
		{size: 0, want: "0 B"},
		{size: 1023, want: "1023 B"},
		{size: 1024, want: "1.0 KB"},
		{size: 1536, want: "1.5 KB"},
		{size: 5 * 1024 * 1024, want: "5.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFileSize(tt.size))
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{ago: 10 * time.Second, want: "just now"},
		{ago: time.Minute, want: "1 minute ago"},
		{ago: 5 * time.Minute, want: "5 minutes ago"},
		{ago: 3 * time.Hour, want: "3 hours ago"},
		{ago: 30 * time.Hour, want: "yesterday"},
		{ago: 72 * time.Hour, want: "3 days ago"},
		{ago: 10 * 24 * time.Hour, want: "2025-08-31 12:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRelativeTime(now.Add(-tt.ago), now))
	}
}

func TestFormatHelpersKeepText(t *testing.T) {
	assert.Contains(t, FormatSuccess("tersimpan"), "tersimpan")
	assert.Contains(t, FormatError("gagal"), "gagal")
	assert.Contains(t, FormatTitle("classbot"), "classbot")
	assert.Contains(t, RenderBox("Status", "berjalan"), "berjalan")
}

func TestProgressBar(t *testing.T) {
	var out bytes.Buffer
	bar := NewProgressBar(&out, 3, "Copying")
	require.NoError(t, bar.Add(3))
	assert.True(t, bar.IsFinished())
}
