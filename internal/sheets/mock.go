package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/classbot/internal/ledger"
)

// MockWriter is a ReportWriter that records what it was asked to write.
type MockWriter struct {
	WriteFunc     func(ctx context.Context, report *ledger.ClassReport) (string, error)
	Reports       []*ledger.ClassReport
	SpreadsheetID string
	mu            sync.Mutex
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{SpreadsheetID: "mock-spreadsheet"}
}

// Write records report and returns SpreadsheetID, or WriteFunc's result
// when set.
func (m *MockWriter) Write(ctx context.Context, report *ledger.ClassReport) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Reports = append(m.Reports, report)
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, report)
	}
	return m.SpreadsheetID, nil
}

// Written returns a copy of the recorded reports.
func (m *MockWriter) Written() []*ledger.ClassReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ledger.ClassReport, len(m.Reports))
	copy(out, m.Reports)
	return out
}
