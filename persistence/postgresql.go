package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/wfunc/listentome/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL archives games with plain SQL over lib/pq.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(64) NOT NULL,
            winner VARCHAR(255),
            players JSONB NOT NULL,
            log JSONB NOT NULL DEFAULT '[]',
            started_at TIMESTAMPTZ,
            finished_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_game_records_room_id ON game_records(room_id);
        CREATE INDEX IF NOT EXISTS idx_game_records_finished_at ON game_records(finished_at);
        CREATE INDEX IF NOT EXISTS idx_game_records_players ON game_records USING GIN (players);
    `)
	return err
}

func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}
	log, err := json.Marshal(record.Log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        INSERT INTO game_records (room_id, winner, players, log, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err = p.db.ExecContext(ctx, query,
		record.RoomID,
		record.Winner,
		players,
		log,
		nullTime(record.StartedAt),
		record.FinishedAt)
	return err
}

func (p *PostgreSQL) LoadGameRecords(ctx context.Context, limit int) ([]*models.GameRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT room_id, winner, players, log, started_at, finished_at
        FROM game_records
        ORDER BY finished_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (p *PostgreSQL) GetPlayerStats(ctx context.Context, name string) (*models.PlayerStats, error) {
	filter, err := participantFilter(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT room_id, winner, players, log, started_at, finished_at
        FROM game_records
        WHERE players @> $1::jsonb
    `, filter)
	if err != nil {
		return nil, err
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	return aggregate(name, records)
}

func scanRecords(rows *sql.Rows) ([]*models.GameRecord, error) {
	defer rows.Close()

	var records []*models.GameRecord
	for rows.Next() {
		var (
			r            models.GameRecord
			winner       sql.NullString
			players, log []byte
			started      sql.NullTime
		)
		if err := rows.Scan(&r.RoomID, &winner, &players, &log, &started, &r.FinishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &r.Players); err != nil {
			return nil, fmt.Errorf("decode players of %s: %w", r.RoomID, err)
		}
		if err := json.Unmarshal(log, &r.Log); err != nil {
			return nil, fmt.Errorf("decode log of %s: %w", r.RoomID, err)
		}
		r.Winner = winner.String
		r.StartedAt = started.Time
		records = append(records, &r)
	}
	return records, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
