package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/wfunc/listentome/models"
)

// Database archives finished games.
type Database interface {
	SaveGameRecord(ctx context.Context, record *models.GameRecord) error
	// LoadGameRecords returns up to limit records, most recently finished first.
	LoadGameRecords(ctx context.Context, limit int) ([]*models.GameRecord, error)
	// GetPlayerStats returns ErrRecordNotFound for a name without games.
	GetPlayerStats(ctx context.Context, name string) (*models.PlayerStats, error)
	Close() error
}

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidRecord  = errors.New("invalid game record")
	ErrClosed         = errors.New("database closed")
)

func validate(record *models.GameRecord) error {
	if record == nil || record.RoomID == "" {
		return ErrInvalidRecord
	}
	return nil
}

// participantFilter is the jsonb containment document matching records
// that name a player.
func participantFilter(name string) (string, error) {
	doc, err := json.Marshal([]map[string]string{{"name": name}})
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

func aggregate(name string, records []*models.GameRecord) (*models.PlayerStats, error) {
	stats := &models.PlayerStats{Name: name}
	for _, r := range records {
		stats.Add(r)
	}
	if stats.Games == 0 {
		return nil, ErrRecordNotFound
	}
	return stats, nil
}
