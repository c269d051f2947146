package storage

import (
	"context"
	"sync"

	"github.com/Algernon72/PDF2PACS/internal/models"
)

const memoryJournalCap = 100

// MemoryJournal is the in-process journal used when no database is
// configured. It keeps the most recent records only and is safe for
// concurrent use. Records do not survive a restart.
type MemoryJournal struct {
	mu      sync.RWMutex
	records []models.SendRecord
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (m *MemoryJournal) RecordSend(ctx context.Context, rec models.SendRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if len(m.records) > memoryJournalCap {
		m.records = m.records[len(m.records)-memoryJournalCap:]
	}
	return nil
}

func (m *MemoryJournal) ListRecent(ctx context.Context, limit int) ([]models.SendRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.records)
	if limit > n {
		limit = n
	}
	out := make([]models.SendRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryJournal) Ping(ctx context.Context) error {
	return nil
}
