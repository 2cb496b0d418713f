package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/listentome/models"
)

// Memory keeps records in process. Used when no database is configured and
// in tests.
type Memory struct {
	mutex   sync.RWMutex
	records []*models.GameRecord
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func copyRecord(r *models.GameRecord) *models.GameRecord {
	c := *r
	c.Players = append([]models.PlayerInfo(nil), r.Players...)
	c.Log = append([]string(nil), r.Log...)
	return &c
}

func (m *Memory) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.records = append(m.records, copyRecord(record))
	return nil
}

func (m *Memory) LoadGameRecords(ctx context.Context, limit int) ([]*models.GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mutex.RLock()
	records := make([]*models.GameRecord, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, copyRecord(r))
	}
	m.mutex.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FinishedAt.After(records[j].FinishedAt)
	})
	if limit >= 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *Memory) GetPlayerStats(ctx context.Context, name string) (*models.PlayerStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return aggregate(name, m.records)
}

func (m *Memory) Close() error {
	m.mutex.Lock()
	m.closed = true
	m.mutex.Unlock()
	return nil
}
