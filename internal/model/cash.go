package model

import "time"

// CashRecord is a signed ledger entry for one student. Positive amounts are
// deposits, negative amounts debits. Records are never updated.
type CashRecord struct {
	CreatedAt time.Time `json:"created_at"`
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	Amount    int64     `json:"amount"`
}

// GetID returns the record identifier.
func (r CashRecord) GetID() int64 { return r.ID }

// IsDeposit reports whether the record increased the balance.
func (r CashRecord) IsDeposit() bool { return r.Amount > 0 }

// ClassExpense is money spent from the class cash box.
type ClassExpense struct {
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
	ID          int64     `json:"id"`
	ClassID     int64     `json:"class_id"`
	Amount      int64     `json:"amount"`
}

// GetID returns the record identifier.
func (e ClassExpense) GetID() int64 { return e.ID }
