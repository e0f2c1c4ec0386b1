// Package model defines the records the bot persists.
package model

import "time"

// Collection names a persisted record collection.
type Collection string

const (
	// CollectionClasses holds Class records.
	CollectionClasses Collection = "classes"
	// CollectionStudents holds Student records.
	CollectionStudents Collection = "students"
	// CollectionCashRecords holds the signed per-student cash entries.
	CollectionCashRecords Collection = "cash_records"
	// CollectionClassExpenses holds class-level expenses.
	CollectionClassExpenses Collection = "class_expenses"
	// CollectionTasks holds assignments.
	CollectionTasks Collection = "tasks"
	// CollectionReminderLog records reminders already delivered.
	CollectionReminderLog Collection = "reminder_log"
)

// Collections lists every collection in a stable order.
func Collections() []Collection {
	return []Collection{
		CollectionClasses,
		CollectionStudents,
		CollectionCashRecords,
		CollectionClassExpenses,
		CollectionTasks,
		CollectionReminderLog,
	}
}

// Class is a chat group managed as a class.
type Class struct {
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	GroupID   string    `json:"group_id"`
	ID        int64     `json:"id"`
}

// GetID returns the record identifier.
func (c Class) GetID() int64 { return c.ID }

// Student is a self-registered member of a class.
type Student struct {
	CreatedAt   time.Time `json:"created_at"`
	PhoneNumber string    `json:"phone_number"`
	Name        string    `json:"name"`
	LID         string    `json:"lid"`
	// Username is the student's last seen chat handle, used only to resolve
	// @mentions. Handles can change hands, so it is never an identity.
	Username string `json:"username,omitempty"`
	ID       int64  `json:"id"`
	ClassID  int64  `json:"class_id"`
}

// GetID returns the record identifier.
func (s Student) GetID() int64 { return s.ID }
