// Package ledger keeps the per-student cash records and the class expense
// account. Balances are always folded from the records, never stored.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/service"
	"github.com/Veraticus/classbot/internal/storage"
)

const minDescriptionLen = 3

// MaxAmount bounds a single cash record or expense, in rupiah.
const MaxAmount int64 = 1_000_000_000_000

// ErrOverflow is returned when stored amounts no longer fit in an int64.
var ErrOverflow = fmt.Errorf("%w: cash total out of range", common.ErrStorage)

// ShortfallError is returned when an expense exceeds the class's remaining
// cash. It carries the totals so callers can explain the refusal.
type ShortfallError struct {
	TotalBalances int64
	TotalExpenses int64
	Remaining     int64
	Requested     int64
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("expense of %d exceeds remaining class cash %d", e.Requested, e.Remaining)
}

func (e *ShortfallError) Unwrap() error { return common.ErrInsufficientFunds }

// Summary aggregates a class's cash position.
type Summary struct {
	TotalBalances int64
	TotalExpenses int64
	Remaining     int64
}

// LedgerEntry is one student's line in the class ledger.
type LedgerEntry struct {
	Records []model.CashRecord
	Student model.Student
	Balance int64
}

// ExpenseResult is returned by a successful AddExpense.
type ExpenseResult struct {
	Expense   model.ClassExpense
	Remaining int64
}

// Engine records cash movements and class expenses.
type Engine struct {
	students *storage.Table[model.Student]
	records  *storage.Table[model.CashRecord]
	expenses *storage.Table[model.ClassExpense]
	now      service.Clock
	mu       sync.Mutex
}

// NewEngine creates a ledger engine over store.
func NewEngine(store service.RecordStore, now service.Clock) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		students: storage.NewTable[model.Student](store, model.CollectionStudents),
		records:  storage.NewTable[model.CashRecord](store, model.CollectionCashRecords),
		expenses: storage.NewTable[model.ClassExpense](store, model.CollectionClassExpenses),
		now:      now,
	}
}

// AddCashRecord appends a signed amount to a student's ledger. Sign and
// positivity checks belong to the caller; only zero is rejected.
func (e *Engine) AddCashRecord(ctx context.Context, studentID, amount int64) (*model.CashRecord, error) {
	if amount == 0 {
		return nil, common.Invalid("Jumlah kas tidak boleh nol.")
	}
	if amount > MaxAmount || amount < -MaxAmount {
		return nil, common.Invalid("Jumlah kas melebihi batas.")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	record, err := e.records.Insert(ctx, func(id int64, rows []model.CashRecord) (model.CashRecord, error) {
		balance, err := sumAmounts(studentRecords(rows, studentID))
		if err != nil {
			return model.CashRecord{}, err
		}
		if _, err = addChecked(balance, amount); err != nil {
			return model.CashRecord{}, common.NewUserError("Saldo mahasiswa melebihi batas.", err)
		}
		return model.CashRecord{ID: id, StudentID: studentID, Amount: amount, CreatedAt: e.now()}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add cash record: %w", err)
	}
	return &record, nil
}

// Balance returns the sum of a student's records, zero if there are none.
func (e *Engine) Balance(ctx context.Context, studentID int64) (int64, error) {
	return sumAmounts(e.StudentRecords(ctx, studentID))
}

// StudentRecords returns a student's records in insertion order.
func (e *Engine) StudentRecords(ctx context.Context, studentID int64) []model.CashRecord {
	return e.records.Filter(ctx, func(r model.CashRecord) bool { return r.StudentID == studentID })
}

func studentRecords(rows []model.CashRecord, studentID int64) []model.CashRecord {
	var out []model.CashRecord
	for _, r := range rows {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out
}

// ClassLedger returns one entry per student of classID, in the order the
// students registered.
func (e *Engine) ClassLedger(ctx context.Context, classID int64) ([]LedgerEntry, error) {
	students := e.students.Filter(ctx, func(s model.Student) bool { return s.ClassID == classID })
	if len(students) == 0 {
		return nil, nil
	}

	byStudent := make(map[int64][]model.CashRecord, len(students))
	for _, r := range e.records.All(ctx) {
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	entries := make([]LedgerEntry, 0, len(students))
	for _, s := range students {
		recs := byStudent[s.ID]
		balance, err := sumAmounts(recs)
		if err != nil {
			return nil, fmt.Errorf("balance of student %d: %w", s.ID, err)
		}
		entries = append(entries, LedgerEntry{Student: s, Balance: balance, Records: recs})
	}
	return entries, nil
}

// ClassExpenses returns a class's expenses in insertion order.
func (e *Engine) ClassExpenses(ctx context.Context, classID int64) []model.ClassExpense {
	return e.expenses.Filter(ctx, func(x model.ClassExpense) bool { return x.ClassID == classID })
}

// Summary computes the class totals.
func (e *Engine) Summary(ctx context.Context, classID int64) (Summary, error) {
	entries, err := e.ClassLedger(ctx, classID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(entries, e.ClassExpenses(ctx, classID))
}

func summarize(entries []LedgerEntry, expenses []model.ClassExpense) (Summary, error) {
	var (
		s   Summary
		err error
	)
	for _, entry := range entries {
		if s.TotalBalances, err = addChecked(s.TotalBalances, entry.Balance); err != nil {
			return Summary{}, err
		}
	}
	for _, x := range expenses {
		if s.TotalExpenses, err = addChecked(s.TotalExpenses, x.Amount); err != nil {
			return Summary{}, err
		}
	}
	if s.TotalExpenses == math.MinInt64 {
		return Summary{}, ErrOverflow
	}
	if s.Remaining, err = addChecked(s.TotalBalances, -s.TotalExpenses); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// AddExpense records a class expense if the class has enough remaining
// cash. The check and the append run under the engine lock.
func (e *Engine) AddExpense(ctx context.Context, classID, amount int64, description string) (*ExpenseResult, error) {
	if amount <= 0 {
		return nil, common.Invalid("Jumlah pengeluaran harus berupa angka positif.")
	}
	if amount > MaxAmount {
		return nil, common.Invalid("Jumlah pengeluaran melebihi batas.")
	}
	description = strings.TrimSpace(description)
	if len([]rune(description)) < minDescriptionLen {
		return nil, common.Invalid("Keterangan pengeluaran harus minimal 3 karakter.")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	summary, err := e.Summary(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to add expense: %w", err)
	}
	if amount > summary.Remaining {
		return nil, &ShortfallError{
			TotalBalances: summary.TotalBalances,
			TotalExpenses: summary.TotalExpenses,
			Remaining:     summary.Remaining,
			Requested:     amount,
		}
	}

	expense, err := e.expenses.Insert(ctx, func(id int64, _ []model.ClassExpense) (model.ClassExpense, error) {
		return model.ClassExpense{
			ID:          id,
			ClassID:     classID,
			Amount:      amount,
			Description: description,
			CreatedAt:   e.now(),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add expense: %w", err)
	}

	return &ExpenseResult{Expense: expense, Remaining: summary.Remaining - amount}, nil
}

// EditExpenseDescription replaces an expense's description. It reports
// false when no expense has that id.
func (e *Engine) EditExpenseDescription(ctx context.Context, expenseID int64, description string) (bool, error) {
	description = strings.TrimSpace(description)
	if len([]rune(description)) < minDescriptionLen {
		return false, common.Invalid("Keterangan pengeluaran harus minimal 3 karakter.")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.expenses.Mutate(ctx, func(rows []model.ClassExpense) ([]model.ClassExpense, error) {
		for i := range rows {
			if rows[i].ID == expenseID {
				rows[i].Description = description
				return rows, nil
			}
		}
		return nil, common.ErrNotFound
	})
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteExpense removes an expense. It reports false when no expense has
// that id. Balances are not re-checked.
func (e *Engine) DeleteExpense(ctx context.Context, expenseID int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.expenses.Mutate(ctx, func(rows []model.ClassExpense) ([]model.ClassExpense, error) {
		for i := range rows {
			if rows[i].ID == expenseID {
				return append(rows[:i], rows[i+1:]...), nil
			}
		}
		return nil, common.ErrNotFound
	})
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExpenseByID returns an expense by id.
func (e *Engine) ExpenseByID(ctx context.Context, expenseID int64) (*model.ClassExpense, bool) {
	x, ok := e.expenses.Get(ctx, expenseID)
	if !ok {
		return nil, false
	}
	return &x, true
}

func sumAmounts(records []model.CashRecord) (int64, error) {
	var (
		total int64
		err   error
	)
	for _, r := range records {
		if total, err = addChecked(total, r.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// addChecked returns a+b, or ErrOverflow when the sum does not fit.
func addChecked(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}
