package tabular

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps sheets in process. Used by tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu     sync.RWMutex
	order  []string
	sheets map[string][][]interface{}

	// FailWith, when set, makes every call for the named sheet fail with the given error.
	FailWith map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets:   make(map[string][][]interface{}),
		FailWith: make(map[string]error),
	}
}

// Seed replaces a sheet's contents, creating it when needed.
func (m *MemoryStore) Seed(sheet string, rows ...[]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[sheet]; !ok {
		m.order = append(m.order, sheet)
	}
	m.sheets[sheet] = copyRows(rows)
}

// Fail makes calls touching sheet return err until Recover is called.
func (m *MemoryStore) Fail(sheet string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailWith[sheet] = err
}

func (m *MemoryStore) Recover(sheet string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.FailWith, sheet)
}

func (m *MemoryStore) failure(sheet string) error {
	if err, ok := m.FailWith[sheet]; ok {
		return err
	}
	return nil
}

func (m *MemoryStore) Sheets(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

func (m *MemoryStore) AddSheet(ctx context.Context, sheet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(sheet); err != nil {
		return Wrap("add sheet", sheet, err)
	}
	if _, ok := m.sheets[sheet]; ok {
		return Wrap("add sheet", sheet, fmt.Errorf("sheet %q already exists", sheet))
	}
	m.order = append(m.order, sheet)
	m.sheets[sheet] = nil
	return nil
}

func (m *MemoryStore) DeleteSheet(ctx context.Context, sheet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[sheet]; !ok {
		return Wrap("delete sheet", sheet, ErrSheetNotFound)
	}
	delete(m.sheets, sheet)
	for i, s := range m.order {
		if s == sheet {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) Values(ctx context.Context, sheet string) ([][]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure(sheet); err != nil {
		return nil, Wrap("read", sheet, err)
	}
	rows, ok := m.sheets[sheet]
	if !ok {
		return nil, Wrap("read", sheet, ErrSheetNotFound)
	}
	return copyRows(rows), nil
}

func (m *MemoryStore) AppendRow(ctx context.Context, sheet string, row []interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(sheet); err != nil {
		return Wrap("append", sheet, err)
	}
	rows, ok := m.sheets[sheet]
	if !ok {
		return Wrap("append", sheet, ErrSheetNotFound)
	}
	m.sheets[sheet] = append(rows, append([]interface{}(nil), row...))
	return nil
}

func (m *MemoryStore) UpdateCell(ctx context.Context, sheet string, row, col int, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(sheet); err != nil {
		return Wrap("update", sheet, err)
	}
	rows, ok := m.sheets[sheet]
	if !ok {
		return Wrap("update", sheet, ErrSheetNotFound)
	}
	if row < 1 || col < 1 {
		return Wrap("update", sheet, fmt.Errorf("invalid cell %d:%d", row, col))
	}
	for len(rows) < row {
		rows = append(rows, nil)
	}
	cells := rows[row-1]
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	rows[row-1] = cells
	m.sheets[sheet] = rows
	return nil
}

func copyRows(rows [][]interface{}) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = append([]interface{}(nil), r...)
	}
	return out
}
