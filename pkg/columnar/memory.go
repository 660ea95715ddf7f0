package columnar

import (
	"context"
	"maps"
	"sync"
)

// Memory implements Store in memory for tests and single-process use.
// Inserts are recorded per table; queries are served from canned result sets
// registered with StubQuery, since the package does not embed a SQL engine.
type Memory struct {
	mu       sync.RWMutex
	tables   map[string][]Record
	queries  map[string][]Row
	commands []string
	failNext error
}

// NewMemory creates an empty in-memory columnar store.
func NewMemory() *Memory {
	return &Memory{
		tables:  make(map[string][]Record),
		queries: make(map[string][]Row),
	}
}

// FailNext makes the next Insert return err. Used to exercise retry paths.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *Memory) Insert(ctx context.Context, table string, records []Record) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}

	for _, record := range records {
		copied := make(Record, len(record))
		maps.Copy(copied, record)
		m.tables[table] = append(m.tables[table], copied)
	}
	return nil
}

// StubQuery registers rows to return for an exact query string.
func (m *Memory) StubQuery(query string, rows []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[query] = rows
}

func (m *Memory) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if rows, ok := m.queries[query]; ok {
		return rows, nil
	}
	return nil, nil
}

func (m *Memory) Command(ctx context.Context, stmt string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands = append(m.commands, stmt)
	return nil
}

// Rows returns all records inserted into table, in insertion order.
func (m *Memory) Rows(table string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, len(m.tables[table]))
	copy(out, m.tables[table])
	return out
}

// Commands returns all statements executed through Command.
func (m *Memory) Commands() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.commands))
	copy(out, m.commands)
	return out
}
