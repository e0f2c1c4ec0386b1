// Package roster manages classes and student registration.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/service"
	"github.com/Veraticus/classbot/internal/storage"
)

const (
	minClassNameLen   = 2
	minStudentNameLen = 2
)

// ConflictError reports which existing record blocked a create.
type ConflictError struct {
	Field    string
	Existing string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already registered: %s", e.Field, e.Existing)
}

func (e *ConflictError) Unwrap() error { return common.ErrDuplicateEntry }

// Roster owns the classes and students collections.
type Roster struct {
	classes  *storage.Table[model.Class]
	students *storage.Table[model.Student]
	now      service.Clock
}

// New creates a Roster over store.
func New(store service.RecordStore, now service.Clock) *Roster {
	if now == nil {
		now = time.Now
	}
	return &Roster{
		classes:  storage.NewTable[model.Class](store, model.CollectionClasses),
		students: storage.NewTable[model.Student](store, model.CollectionStudents),
		now:      now,
	}
}

// InitClass registers groupID as a class named name.
func (r *Roster) InitClass(ctx context.Context, name, groupID string) (*model.Class, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < minClassNameLen {
		return nil, common.Invalid("Nama kelas minimal 2 karakter.")
	}
	if strings.TrimSpace(groupID) == "" {
		return nil, common.Invalid("Group ID tidak diketahui.")
	}

	class, err := r.classes.Insert(ctx, func(id int64, existing []model.Class) (model.Class, error) {
		for _, c := range existing {
			if c.GroupID == groupID {
				return model.Class{}, &ConflictError{Field: "group_id", Existing: c.Name}
			}
		}
		return model.Class{ID: id, Name: name, GroupID: groupID, CreatedAt: r.now()}, nil
	})
	if err != nil {
		return nil, err
	}
	return &class, nil
}

// ClassByGroup returns the class registered for groupID.
func (r *Roster) ClassByGroup(ctx context.Context, groupID string) (*model.Class, bool) {
	class, ok := r.classes.Find(ctx, func(c model.Class) bool { return c.GroupID == groupID })
	if !ok {
		return nil, false
	}
	return &class, true
}

// ClassByID returns the class with the given id.
func (r *Roster) ClassByID(ctx context.Context, id int64) (*model.Class, bool) {
	class, ok := r.classes.Get(ctx, id)
	if !ok {
		return nil, false
	}
	return &class, true
}

// AllClasses returns every class.
func (r *Roster) AllClasses(ctx context.Context) []model.Class {
	return r.classes.All(ctx)
}

// RegisterStudent adds a student to classID. Phone number and LID must both
// be unused; on conflict nothing is written.
func (r *Roster) RegisterStudent(ctx context.Context, classID int64, phone, name, lid string) (*model.Student, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < minStudentNameLen {
		return nil, common.Invalid("Nama lengkap minimal 2 karakter.")
	}
	if phone == "" || lid == "" {
		return nil, common.Invalid("Tidak dapat mengidentifikasi nomor telepon atau LID Anda.")
	}

	student, err := r.students.Insert(ctx, func(id int64, existing []model.Student) (model.Student, error) {
		for _, s := range existing {
			if s.PhoneNumber == phone {
				return model.Student{}, &ConflictError{Field: "phone_number", Existing: s.Name}
			}
			if s.LID == lid {
				return model.Student{}, &ConflictError{Field: "lid", Existing: s.Name}
			}
		}
		return model.Student{
			ID:          id,
			ClassID:     classID,
			PhoneNumber: phone,
			Name:        name,
			LID:         lid,
			CreatedAt:   r.now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// StudentByPhone finds a student by phone number in any class.
func (r *Roster) StudentByPhone(ctx context.Context, phone string) (*model.Student, bool) {
	return r.findStudent(ctx, func(s model.Student) bool { return s.PhoneNumber == phone })
}

// StudentByLID finds a student by LID in any class.
func (r *Roster) StudentByLID(ctx context.Context, lid string) (*model.Student, bool) {
	return r.findStudent(ctx, func(s model.Student) bool { return s.LID == lid })
}

// StudentByID finds a student by id.
func (r *Roster) StudentByID(ctx context.Context, id int64) (*model.Student, bool) {
	return r.findStudent(ctx, func(s model.Student) bool { return s.ID == id })
}

func (r *Roster) findStudent(ctx context.Context, pred func(model.Student) bool) (*model.Student, bool) {
	s, ok := r.students.Find(ctx, pred)
	if !ok {
		return nil, false
	}
	return &s, true
}

// StudentsInClass returns the students of classID in registration order.
func (r *Roster) StudentsInClass(ctx context.Context, classID int64) []model.Student {
	return r.students.Filter(ctx, func(s model.Student) bool { return s.ClassID == classID })
}

// StudentCount returns the number of registered students across classes.
func (r *Roster) StudentCount(ctx context.Context) int {
	return r.students.Count(ctx)
}

// errUnchanged aborts a Mutate that has nothing to write.
var errUnchanged = errors.New("unchanged")

// SetUsername records username as the mention handle of the student with
// phone and clears it from any other student still holding it, registered
// or not. It reports whether anything was written.
func (r *Roster) SetUsername(ctx context.Context, phone, username string) (bool, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if phone == "" {
		return false, nil
	}

	stale := func(s model.Student) bool {
		if s.PhoneNumber == phone {
			return s.Username != username
		}
		return username != "" && strings.EqualFold(s.Username, username)
	}
	if _, ok := r.students.Find(ctx, stale); !ok {
		return false, nil
	}

	err := r.students.Mutate(ctx, func(rows []model.Student) ([]model.Student, error) {
		changed := false
		for i := range rows {
			if !stale(rows[i]) {
				continue
			}
			if rows[i].PhoneNumber == phone {
				rows[i].Username = username
			} else {
				rows[i].Username = ""
			}
			changed = true
		}
		if !changed {
			return nil, errUnchanged
		}
		return rows, nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update username: %w", err)
	}
	return true, nil
}

// FindByMention resolves the first mention that matches a student of
// classID. A mention matches by LID, by recorded username, or by phone
// number once any "@server" suffix is removed.
func (r *Roster) FindByMention(ctx context.Context, classID int64, mentions []string) (*model.Student, bool) {
	if len(mentions) == 0 {
		return nil, false
	}
	students := r.StudentsInClass(ctx, classID)
	for _, mention := range mentions {
		for _, s := range students {
			if s.LID == mention {
				return &s, true
			}
		}
		handle := strings.TrimPrefix(mention, "@")
		for _, s := range students {
			if s.Username != "" && strings.EqualFold(s.Username, handle) {
				return &s, true
			}
		}
		phone := PhoneFromJID(mention)
		for _, s := range students {
			if s.PhoneNumber == phone {
				return &s, true
			}
		}
	}
	return nil, false
}

// PhoneFromJID strips a leading "@" and any "@server" suffix from a chat
// identifier.
func PhoneFromJID(jid string) string {
	jid = strings.TrimPrefix(jid, "@")
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		return jid[:i]
	}
	return jid
}
