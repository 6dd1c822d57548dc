package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryWriter keeps rows in process. Used when no spreadsheet is configured
// and by tests.
type MemoryWriter struct {
	mu   sync.Mutex
	rows []Row
	// Err, when set, fails every Append.
	Err error
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (m *MemoryWriter) Append(_ context.Context, row Row) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.rows = append(m.rows, row)
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

// Rows returns a copy of the appended rows in order.
func (m *MemoryWriter) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Row(nil), m.rows...)
}
