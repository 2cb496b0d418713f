package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/listentome/cards"
)

type fakeTask struct {
	delay    time.Duration
	callback func()
}

// fakeScheduler keeps one task per key like timer.TimerManager, but only
// fires when the test says so.
type fakeScheduler struct {
	mutex     sync.Mutex
	tasks     map[string]fakeTask
	scheduled int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[string]fakeTask)}
}

func (s *fakeScheduler) Schedule(key string, delay time.Duration, callback func()) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tasks[key] = fakeTask{delay: delay, callback: callback}
	s.scheduled++
	return int64(s.scheduled)
}

func (s *fakeScheduler) Cancel(key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tasks, key)
}

func (s *fakeScheduler) Pending(key string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.tasks[key]
	return ok
}

func (s *fakeScheduler) Delay(key string) time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.tasks[key].delay
}

// Callback returns the pending callback for key without firing it.
func (s *fakeScheduler) Callback(key string) func() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.tasks[key].callback
}

// Fire removes the task for key and runs it on the calling goroutine.
func (s *fakeScheduler) Fire(key string) bool {
	s.mutex.Lock()
	task, ok := s.tasks[key]
	delete(s.tasks, key)
	s.mutex.Unlock()
	if ok {
		task.callback()
	}
	return ok
}

// zeroRandom always picks the first option: the bottom cards are p1, l1 and
// e1 and the first joined player starts.
type zeroRandom struct{}

func (zeroRandom) Intn(int) int { return 0 }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type recordingNotifier struct {
	mutex  sync.Mutex
	events []string
	rooms  []Snapshot
}

func (n *recordingNotifier) NotifyRoom(room Snapshot, event string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.events = append(n.events, event)
	n.rooms = append(n.rooms, room)
}

func (n *recordingNotifier) Events() []string {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]string(nil), n.events...)
}

func (n *recordingNotifier) Rooms() []Snapshot {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]Snapshot(nil), n.rooms...)
}

type countingMetrics struct {
	mutex    sync.Mutex
	opened   int
	closed   int
	started  int
	won      int
	lost     int
	timeouts map[string]int
}

func (m *countingMetrics) RoomOpened() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.opened++
}

func (m *countingMetrics) RoomClosed() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed++
}

func (m *countingMetrics) GameStarted() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.started++
}

func (m *countingMetrics) GameFinished(hasWinner bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if hasWinner {
		m.won++
	} else {
		m.lost++
	}
}

func (m *countingMetrics) PhaseTimedOut(phase string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.timeouts == nil {
		m.timeouts = make(map[string]int)
	}
	m.timeouts[phase]++
}

type recordingRecorder struct {
	games []Snapshot
}

func (r *recordingRecorder) RecordGame(room Snapshot) {
	r.games = append(r.games, room)
}

var testNames = []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Frank", "Grace", "Heidi", "Ivan"}

func connID(i int) string {
	return fmt.Sprintf("c%d", i+1)
}

func newTestRegistry(opts ...Option) (*Registry, *fakeScheduler) {
	sched := newFakeScheduler()
	opts = append([]Option{WithRandom(zeroRandom{}), WithClock(fixedClock)}, opts...)
	return NewRegistry(DefaultSettings(), sched, nil, opts...), sched
}

func joinPlayers(t *testing.T, g *Registry, roomID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := g.JoinRoom(roomID, connID(i), testNames[i]); err != nil {
			t.Fatalf("JoinRoom(%s) failed: %v", testNames[i], err)
		}
	}
}

// startedRoom returns a room with n players in the playing phase; c1 holds
// the turn.
func startedRoom(t *testing.T, g *Registry, roomID string, n int) *Room {
	t.Helper()
	joinPlayers(t, g, roomID, n)
	if _, err := g.StartGame(roomID); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	r, ok := g.lookup(roomID)
	if !ok {
		t.Fatalf("Room %s not registered", roomID)
	}
	return r
}

func card(id string) Card {
	if c, ok := cards.Default.Lookup(id); ok {
		return c
	}
	var n int
	if _, err := fmt.Sscanf(id, "w%d", &n); err != nil {
		panic("unknown card " + id)
	}
	return cards.NewWater(n)
}

func hand(ids ...string) []Card {
	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		out = append(out, card(id))
	}
	return out
}

// setHands replaces hands directly; card conservation no longer holds.
func setHands(r *Room, hands map[string][]Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Players {
		if h, ok := hands[p.ID]; ok {
			p.Hand = h
		}
	}
}

var sentence2 = SentenceRequest{PersonID: "p2", PlaceID: "l2", EventID: "e2"}

func deadlines(s Snapshot) int {
	n := 0
	for _, d := range []*time.Time{s.TurnEndsAt, s.RespondingEndsAt, s.ViewingEndsAt} {
		if d != nil {
			n++
		}
	}
	return n
}

// cardCount counts every card a running room holds, including lent ones,
// and fails on duplicates.
func cardCount(t *testing.T, s Snapshot) int {
	t.Helper()
	seen := make(map[string]bool)
	add := func(c Card) {
		if seen[c.ID] {
			t.Errorf("Card %s appears twice", c.ID)
		}
		seen[c.ID] = true
	}
	for _, p := range s.Players {
		for _, c := range p.Hand {
			add(c)
		}
	}
	for _, c := range s.PublicCards {
		add(c)
	}
	for _, c := range s.Deck {
		add(c)
	}
	for _, c := range s.BottomCards {
		add(c)
	}
	for _, resp := range s.Responses {
		if resp.Card != nil {
			add(*resp.Card)
		}
	}
	return len(seen)
}

func snapshotOf(t *testing.T, g *Registry, roomID string) Snapshot {
	t.Helper()
	s, ok := g.GetRoom(roomID)
	if !ok {
		t.Fatalf("Room %s not found", roomID)
	}
	return s
}

func handOf(t *testing.T, s Snapshot, connID string) []Card {
	t.Helper()
	p, ok := s.Player(connID)
	if !ok {
		t.Fatalf("Player %s not in room", connID)
	}
	return p.Hand
}

func hasCard(h []Card, id string) bool {
	for _, c := range h {
		if c.ID == id {
			return true
		}
	}
	return false
}

// legalResponse picks an action checkResponse accepts for the hand.
func legalResponse(h []Card, s Sentence) string {
	if checkResponse(h, s, "") == nil {
		return ""
	}
	for _, c := range h {
		if checkResponse(h, s, c.ID) == nil {
			return c.ID
		}
	}
	return ""
}
