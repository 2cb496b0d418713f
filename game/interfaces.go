package game

import (
	"math/rand"
	"time"
)

// Scheduler arms one deadline per key. Scheduling a key again replaces the
// pending callback; timer.TimerManager satisfies it.
type Scheduler interface {
	Schedule(key string, delay time.Duration, callback func()) int64
	Cancel(key string)
}

// Notifier receives snapshots for changes no intent caller is waiting on,
// such as phase timeouts.
type Notifier interface {
	NotifyRoom(room Snapshot, event string)
}

// Metrics is implemented by monitor.Monitor.
type Metrics interface {
	RoomOpened()
	RoomClosed()
	GameStarted()
	GameFinished(hasWinner bool)
	PhaseTimedOut(phase string)
}

// Recorder archives finished games. RecordGame is called with the room lock
// held and must not block.
type Recorder interface {
	RecordGame(room Snapshot)
}

type Random interface {
	Intn(n int) int
}

type globalRandom struct{}

func (globalRandom) Intn(n int) int { return rand.Intn(n) }

type nopNotifier struct{}

func (nopNotifier) NotifyRoom(Snapshot, string) {}

type nopMetrics struct{}

func (nopMetrics) RoomOpened()          {}
func (nopMetrics) RoomClosed()          {}
func (nopMetrics) GameStarted()         {}
func (nopMetrics) GameFinished(bool)    {}
func (nopMetrics) PhaseTimedOut(string) {}

type nopRecorder struct{}

func (nopRecorder) RecordGame(Snapshot) {}
