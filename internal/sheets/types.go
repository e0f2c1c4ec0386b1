package sheets

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/classbot/internal/ledger"
)

// StudentRow is one student's line in the Kas tab.
type StudentRow struct {
	Name        string
	PhoneNumber string
	Status      string
	Balance     decimal.Decimal
	Deposits    decimal.Decimal
	Withdrawals decimal.Decimal
	Records     int
}

// ExpenseRow is one class expense.
type ExpenseRow struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	ID          int64
}

// ReportData holds everything written for one class.
type ReportData struct {
	GeneratedAt   time.Time
	ClassName     string
	Students      []StudentRow
	Expenses      []ExpenseRow
	TotalBalances decimal.Decimal
	TotalExpenses decimal.Decimal
	Remaining     decimal.Decimal
}

func rupiah(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount)
}

// BuildReportData converts a class report into spreadsheet rows with
// timestamps in loc.
func BuildReportData(report *ledger.ClassReport, loc *time.Location) ReportData {
	if loc == nil {
		loc = time.UTC
	}

	data := ReportData{
		GeneratedAt:   report.GeneratedAt.In(loc),
		ClassName:     report.Class.Name,
		TotalBalances: rupiah(report.Summary.TotalBalances),
		TotalExpenses: rupiah(report.Summary.TotalExpenses),
		Remaining:     rupiah(report.Summary.Remaining),
		Students:      make([]StudentRow, 0, len(report.Entries)),
		Expenses:      make([]ExpenseRow, 0, len(report.Expenses)),
	}

	for _, entry := range report.Entries {
		row := StudentRow{
			Name:        entry.Student.Name,
			PhoneNumber: entry.Student.PhoneNumber,
			Balance:     rupiah(entry.Balance),
			Deposits:    decimal.Zero,
			Withdrawals: decimal.Zero,
			Records:     len(entry.Records),
			Status:      "Lunas",
		}
		for _, r := range entry.Records {
			if r.IsDeposit() {
				row.Deposits = row.Deposits.Add(rupiah(r.Amount))
			} else {
				row.Withdrawals = row.Withdrawals.Add(rupiah(-r.Amount))
			}
		}
		switch {
		case entry.Balance < 0:
			row.Status = "Hutang"
		case entry.Balance == 0:
			row.Status = "Belum Bayar"
		}
		data.Students = append(data.Students, row)
	}

	for _, x := range report.Expenses {
		data.Expenses = append(data.Expenses, ExpenseRow{
			ID:          x.ID,
			Date:        x.CreatedAt.In(loc),
			Description: x.Description,
			Amount:      rupiah(x.Amount),
		})
	}

	return data
}
