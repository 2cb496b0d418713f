package models

import (
	"time"

	"gorm.io/gorm"
)

// GormGameRecord game_records table
type GormGameRecord struct {
	gorm.Model
	RoomID     string       `gorm:"index;not null"`
	Winner     string       `gorm:"index"`
	Players    []PlayerInfo `gorm:"type:jsonb;serializer:json;not null"`
	Log        []string     `gorm:"type:jsonb;serializer:json"`
	StartedAt  time.Time
	FinishedAt time.Time `gorm:"index"`
}

func (GormGameRecord) TableName() string {
	return "game_records"
}

func NewGormGameRecord(r *GameRecord) *GormGameRecord {
	return &GormGameRecord{
		RoomID:     r.RoomID,
		Winner:     r.Winner,
		Players:    r.Players,
		Log:        r.Log,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func (g *GormGameRecord) Record() *GameRecord {
	return &GameRecord{
		RoomID:     g.RoomID,
		Winner:     g.Winner,
		Players:    g.Players,
		Log:        g.Log,
		StartedAt:  g.StartedAt,
		FinishedAt: g.FinishedAt,
	}
}
