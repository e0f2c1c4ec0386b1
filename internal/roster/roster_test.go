package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoster(t *testing.T) *Roster {
	t.Helper()
	fixed := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	return New(storage.NewMemoryStore(), func() time.Time { return fixed })
}

func TestInitClass(t *testing.T) {
	ctx := context.Background()
	r := newTestRoster(t)

	class, err := r.InitClass(ctx, "  Kelas-3A ", "G1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), class.ID)
	assert.Equal(t, "Kelas-3A", class.Name)

	got, ok := r.ClassByGroup(ctx, "G1")
	require.True(t, ok)
	assert.Equal(t, class.ID, got.ID)

	t.Run("duplicate group", func(t *testing.T) {
		_, err := r.InitClass(ctx, "Kelas-3B", "G1")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)

		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "Kelas-3A", conflict.Existing)
		assert.Len(t, r.AllClasses(ctx), 1)
	})

	t.Run("short name", func(t *testing.T) {
		_, err := r.InitClass(ctx, "A", "G2")
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})

	t.Run("second class gets next id", func(t *testing.T) {
		c, err := r.InitClass(ctx, "Kelas-3B", "G2")
		require.NoError(t, err)
		assert.Equal(t, int64(2), c.ID)
	})
}

func TestRegisterStudent(t *testing.T) {
	ctx := context.Background()
	r := newTestRoster(t)
	class, err := r.InitClass(ctx, "Kelas-3A", "G1")
	require.NoError(t, err)

	andi, err := r.RegisterStudent(ctx, class.ID, "62811", "Andi", "L1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), andi.ID)

	tests := []struct {
		name  string
		phone string
		lid   string
		field string
	}{
		{name: "duplicate phone", phone: "62811", lid: "L2", field: "phone_number"},
		{name: "duplicate lid", phone: "62812", lid: "L1", field: "lid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RegisterStudent(ctx, class.ID, tt.phone, "Budi", tt.lid)
			require.Error(t, err)
			var conflict *ConflictError
			require.True(t, errors.As(err, &conflict))
			assert.Equal(t, tt.field, conflict.Field)
			assert.Equal(t, 1, r.StudentCount(ctx))
		})
	}

	t.Run("short name", func(t *testing.T) {
		_, err := r.RegisterStudent(ctx, class.ID, "62813", "B", "L3")
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})

	t.Run("lookups", func(t *testing.T) {
		s, ok := r.StudentByPhone(ctx, "62811")
		require.True(t, ok)
		assert.Equal(t, "Andi", s.Name)

		s, ok = r.StudentByLID(ctx, "L1")
		require.True(t, ok)
		assert.Equal(t, "62811", s.PhoneNumber)

		_, ok = r.StudentByPhone(ctx, "000")
		assert.False(t, ok)
	})
}

func TestFindByMention(t *testing.T) {
	ctx := context.Background()
	r := newTestRoster(t)
	a, err := r.InitClass(ctx, "Kelas-3A", "G1")
	require.NoError(t, err)
	b, err := r.InitClass(ctx, "Kelas-3B", "G2")
	require.NoError(t, err)

	_, err = r.RegisterStudent(ctx, a.ID, "62811", "Andi", "L1")
	require.NoError(t, err)
	_, err = r.RegisterStudent(ctx, b.ID, "62822", "Budi", "L2")
	require.NoError(t, err)

	tests := []struct {
		name     string
		mentions []string
		want     string
		found    bool
	}{
		{name: "by lid", mentions: []string{"L1"}, want: "Andi", found: true},
		{name: "by phone jid", mentions: []string{"62811@s.whatsapp.net"}, want: "Andi", found: true},
		{name: "by at phone", mentions: []string{"@62811"}, want: "Andi", found: true},
		{name: "other class ignored", mentions: []string{"L2"}},
		{name: "first match wins", mentions: []string{"nobody", "L1"}, want: "Andi", found: true},
		{name: "no mentions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := r.FindByMention(ctx, a.ID, tt.mentions)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, s.Name)
			}
		})
	}
}

func TestSetUsername(t *testing.T) {
	ctx := context.Background()
	r := newTestRoster(t)
	c, err := r.InitClass(ctx, "Kelas-3A", "G1")
	require.NoError(t, err)
	_, err = r.RegisterStudent(ctx, c.ID, "11", "Andi", "uid:11")
	require.NoError(t, err)
	_, err = r.RegisterStudent(ctx, c.ID, "22", "Budi", "uid:22")
	require.NoError(t, err)

	wrote, err := r.SetUsername(ctx, "11", "@andi")
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = r.SetUsername(ctx, "11", "andi")
	require.NoError(t, err)
	assert.False(t, wrote, "unchanged handle is not rewritten")

	s, ok := r.FindByMention(ctx, c.ID, []string{"Andi"})
	require.True(t, ok)
	assert.Equal(t, "Andi", s.Name)

	// Budi takes over the handle Andi gave up.
	wrote, err = r.SetUsername(ctx, "22", "andi")
	require.NoError(t, err)
	assert.True(t, wrote)
	s, ok = r.FindByMention(ctx, c.ID, []string{"andi"})
	require.True(t, ok)
	assert.Equal(t, "Budi", s.Name)
	andi, _ := r.StudentByPhone(ctx, "11")
	assert.Empty(t, andi.Username)

	// An unregistered account reusing the handle still releases it.
	wrote, err = r.SetUsername(ctx, "33", "andi")
	require.NoError(t, err)
	assert.True(t, wrote)
	_, ok = r.FindByMention(ctx, c.ID, []string{"andi"})
	assert.False(t, ok)

	wrote, err = r.SetUsername(ctx, "99", "nobody")
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestPhoneFromJID(t *testing.T) {
	assert.Equal(t, "62811", PhoneFromJID("62811@s.whatsapp.net"))
	assert.Equal(t, "62811", PhoneFromJID("@62811"))
	assert.Equal(t, "62811", PhoneFromJID("62811"))
}
