package services

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/listentome/game"
	"github.com/wfunc/listentome/logger"
	"github.com/wfunc/listentome/models"
	"github.com/wfunc/listentome/persistence"
)

const (
	defaultQueueSize = 64
	saveTimeout      = 5 * time.Second
	maxRecentGames   = 100
)

// RecordService archives finished games on a worker goroutine. It implements
// game.Recorder, so RecordGame never blocks the room that finished.
type RecordService struct {
	db    persistence.Database
	queue chan *models.GameRecord
	done  chan struct{}

	mutex   sync.RWMutex
	stopped bool
	dropped int
}

func NewRecordService(db persistence.Database, queueSize int) *RecordService {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &RecordService{
		db:    db,
		queue: make(chan *models.GameRecord, queueSize),
		done:  make(chan struct{}),
	}
}

// Start runs the worker until Stop is called.
func (s *RecordService) Start() {
	go s.run()
}

func (s *RecordService) run() {
	defer close(s.done)
	for record := range s.queue {
		s.save(record)
	}
}

func (s *RecordService) save(record *models.GameRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.db.SaveGameRecord(ctx, record); err != nil {
		logger.Log.Errorw("failed to archive game", "room", record.RoomID, "error", err)
		return
	}
	logger.Log.Infow("game archived", "room", record.RoomID, "winner", record.Winner, "players", len(record.Players))
}

// RecordGame queues the finished room. A full queue drops the record.
func (s *RecordService) RecordGame(room game.Snapshot) {
	record := NewGameRecord(room)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.queue <- record:
	default:
		s.dropped++
		logger.Log.Warnw("record queue full, dropping game", "room", room.ID)
	}
}

// Dropped is the number of records lost to a full queue.
func (s *RecordService) Dropped() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.dropped
}

// Stop drains the queue and waits for the worker.
func (s *RecordService) Stop() {
	s.mutex.Lock()
	if s.stopped {
		s.mutex.Unlock()
		return
	}
	s.stopped = true
	close(s.queue)
	s.mutex.Unlock()
	<-s.done
}

func (s *RecordService) Stats(ctx context.Context, name string) (*models.PlayerStats, error) {
	return s.db.GetPlayerStats(ctx, name)
}

func (s *RecordService) RecentGames(ctx context.Context, limit int) ([]*models.GameRecord, error) {
	if limit <= 0 || limit > maxRecentGames {
		limit = maxRecentGames
	}
	return s.db.LoadGameRecords(ctx, limit)
}

// NewGameRecord summarises a finished room. Participants are listed by
// name; anyone still alive who did not win lost.
func NewGameRecord(room game.Snapshot) *models.GameRecord {
	record := &models.GameRecord{
		RoomID:  room.ID,
		Winner:  room.WinnerName(),
		Players: make([]models.PlayerInfo, 0, len(room.Players)),
		Log:     append([]string{}, room.Log...),
	}
	if room.StartedAt != nil {
		record.StartedAt = *room.StartedAt
	}
	if room.FinishedAt != nil {
		record.FinishedAt = *room.FinishedAt
	} else {
		record.FinishedAt = time.Now()
	}
	for _, p := range room.Players {
		outcome := models.OutcomeLost
		switch {
		case p.ID == room.Winner:
			outcome = models.OutcomeWinner
		case !p.IsAlive:
			outcome = models.OutcomeEliminated
		}
		record.Players = append(record.Players, models.PlayerInfo{Name: p.Name, Outcome: outcome})
	}
	return record
}
