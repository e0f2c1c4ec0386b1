package ledger

import (
	"context"
	"time"

	"github.com/Veraticus/classbot/internal/model"
)

// ClassReport is a point-in-time view of a class's cash: per-student
// balances, expenses and totals.
type ClassReport struct {
	GeneratedAt time.Time
	Class       model.Class
	Entries     []LedgerEntry
	Expenses    []model.ClassExpense
	Summary     Summary
}

// Report builds the cash report for class.
func (e *Engine) Report(ctx context.Context, class model.Class) (*ClassReport, error) {
	entries, err := e.ClassLedger(ctx, class.ID)
	if err != nil {
		return nil, err
	}
	expenses := e.ClassExpenses(ctx, class.ID)

	summary, err := summarize(entries, expenses)
	if err != nil {
		return nil, err
	}

	return &ClassReport{
		GeneratedAt: e.now(),
		Class:       class,
		Entries:     entries,
		Expenses:    expenses,
		Summary:     summary,
	}, nil
}

// RecentExpenses returns up to n of the latest expenses, oldest first.
func (r *ClassReport) RecentExpenses(n int) []model.ClassExpense {
	if len(r.Expenses) <= n {
		return r.Expenses
	}
	return r.Expenses[len(r.Expenses)-n:]
}

// InDebt returns the students whose balance is negative.
func (r *ClassReport) InDebt() []LedgerEntry {
	var out []LedgerEntry
	for _, entry := range r.Entries {
		if entry.Balance < 0 {
			out = append(out, entry)
		}
	}
	return out
}
