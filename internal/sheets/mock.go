package sheets

import (
	"context"
	"sync"
)

// MockExporter is a test double for Exporter.
type MockExporter struct {
	ExportFunc  func(ctx context.Context, report ExportReport) error
	ExportCalls []ExportReport
	mu          sync.Mutex
}

// NewMockExporter creates a new mock exporter.
func NewMockExporter() *MockExporter {
	return &MockExporter{ExportCalls: make([]ExportReport, 0)}
}

// Export records the call and delegates to ExportFunc when set.
func (m *MockExporter) Export(ctx context.Context, report ExportReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExportCalls = append(m.ExportCalls, report)
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, report)
	}
	return nil
}

// CallCount returns how many times Export was called.
func (m *MockExporter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ExportCalls)
}

// Reset clears all recorded calls.
func (m *MockExporter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExportCalls = make([]ExportReport, 0)
}

// Ensure MockExporter implements Exporter.
var _ Exporter = (*MockExporter)(nil)
