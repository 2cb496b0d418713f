package game

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/listentome/cards"
	"github.com/wfunc/listentome/logger"
)

// Registry owns every live Room. Intents against one room are serialized by
// that room's lock; rooms never share mutable state.
type Registry struct {
	rooms    map[string]*Room
	mutex    sync.RWMutex
	notifier Notifier
	catalog  cards.Catalog
	env      *env
	seq      atomic.Uint64
}

type Option func(*Registry)

func WithRandom(rnd Random) Option {
	return func(g *Registry) { g.env.random = rnd }
}

func WithClock(now func() time.Time) Option {
	return func(g *Registry) { g.env.now = now }
}

func WithMetrics(m Metrics) Option {
	return func(g *Registry) { g.env.metrics = m }
}

func WithRecorder(rec Recorder) Option {
	return func(g *Registry) { g.env.recorder = rec }
}

// WithCatalog replaces the default card catalog. Catalogs with an empty
// category are ignored.
func WithCatalog(c cards.Catalog) Option {
	return func(g *Registry) {
		if len(c.Person) == 0 || len(c.Place) == 0 || len(c.Event) == 0 {
			logger.Log.Warnw("ignoring catalog with an empty category",
				"person", len(c.Person), "place", len(c.Place), "event", len(c.Event))
			return
		}
		g.catalog = c.Clone()
	}
}

func NewRegistry(settings Settings, scheduler Scheduler, notifier Notifier, opts ...Option) *Registry {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	g := &Registry{
		rooms:    make(map[string]*Room),
		notifier: notifier,
		catalog:  cards.Default.Clone(),
		env: &env{
			settings:  settings,
			scheduler: scheduler,
			metrics:   nopMetrics{},
			recorder:  nopRecorder{},
			random:    globalRandom{},
			now:       time.Now,
		},
	}
	g.env.onTimeout = g.handleTimeout
	g.env.onFinished = g.scheduleCleanup
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Registry) Settings() Settings {
	return g.env.settings
}

func (g *Registry) newRoomLocked(id string) *Room {
	key := fmt.Sprintf("%s#%d", id, g.seq.Add(1))
	r := newRoom(id, key, g.catalog, g.env)
	g.rooms[id] = r
	g.env.metrics.RoomOpened()
	logger.Log.Infow("room created", "room", id)
	return r
}

// CreateRoom fails with ErrRoomExists when id is taken.
func (g *Registry) CreateRoom(id string) (Snapshot, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, exists := g.rooms[id]; exists {
		return Snapshot{}, ErrRoomExists
	}
	r := g.newRoomLocked(id)
	return r.snapshot(), nil
}

// NewRoomID returns a short id no live room uses.
func (g *Registry) NewRoomID() string {
	for {
		id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		if _, exists := g.GetRoom(id); !exists {
			return id
		}
	}
}

func (g *Registry) GetRoom(id string) (Snapshot, bool) {
	r, ok := g.lookup(id)
	if !ok {
		return Snapshot{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

func (g *Registry) RoomIDs() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Registry) RoomCount() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.rooms)
}

func (g *Registry) lookup(id string) (*Room, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

func (g *Registry) getOrCreate(id string) *Room {
	if r, ok := g.lookup(id); ok {
		return r
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if r, ok := g.rooms[id]; ok {
		return r
	}
	return g.newRoomLocked(id)
}

// RemoveRoom drops the room and cancels its timers.
func (g *Registry) RemoveRoom(id string) {
	if r, ok := g.lookup(id); ok {
		g.removeRoom(r)
	}
}

// removeRoom is a no-op if id has since been taken by a different room.
func (g *Registry) removeRoom(r *Room) {
	g.mutex.Lock()
	current, ok := g.rooms[r.ID]
	if !ok || current != r {
		g.mutex.Unlock()
		return
	}
	delete(g.rooms, r.ID)
	g.mutex.Unlock()

	r.mu.Lock()
	r.closed = true
	r.disarm()
	g.env.scheduler.Cancel(cleanupKey(r))
	r.mu.Unlock()

	g.env.metrics.RoomClosed()
	logger.Log.Infow("room removed", "room", r.ID)
}

// Close removes every room.
func (g *Registry) Close() {
	g.mutex.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mutex.RUnlock()

	for _, r := range rooms {
		g.removeRoom(r)
	}
}

func cleanupKey(r *Room) string {
	return "cleanup:" + r.timerKey
}

// scheduleCleanup runs with r locked, as the finished phase is entered.
func (g *Registry) scheduleCleanup(r *Room) {
	g.env.scheduler.Schedule(cleanupKey(r), g.env.settings.CleanupDelay, func() {
		g.removeRoom(r)
	})
}

// handleTimeout is the scheduler callback. It re-checks under the room lock
// that the deadline it was armed for is still the live one.
func (g *Registry) handleTimeout(r *Room, epoch uint64, phase Phase) {
	r.mu.Lock()
	if r.closed || r.epoch != epoch || r.GameState != phase {
		r.mu.Unlock()
		logger.Log.Debugw("stale timer ignored", "room", r.ID, "phase", phase)
		return
	}
	logger.Log.Infow("phase timed out", "room", r.ID, "phase", phase)
	event := r.timeout(phase)
	snap := r.publish()
	r.mu.Unlock()

	g.env.metrics.PhaseTimedOut(string(phase))
	g.notifier.NotifyRoom(snap, event)
}

// do runs fn on room id under its lock. A room left empty is removed.
func (g *Registry) do(id string, fn func(r *Room) (Result, error)) (Result, error) {
	r, ok := g.lookup(id)
	if !ok {
		return Result{}, ErrRoomNotFound
	}
	return g.apply(r, fn)
}

func (g *Registry) apply(r *Room, fn func(r *Room) (Result, error)) (Result, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Result{}, ErrRoomNotFound
	}
	res, err := fn(r)
	if err == nil {
		res.Room = r.publish()
	}
	empty := len(r.Players) == 0
	r.mu.Unlock()

	if err != nil {
		logger.Log.Debugw("intent rejected", "room", r.ID, "kind", KindOf(err).String(), "reason", err.Error())
		return Result{}, err
	}
	if empty {
		g.removeRoom(r)
	}
	return res, nil
}

func broadcast(event string) Result {
	if event == "" {
		return Result{Notify: NotifyNone}
	}
	return Result{Notify: NotifyRoom, Event: event}
}

// JoinRoom creates the room on first join. A disconnected player with the
// same name is rebound to connID; joining twice with the same connID is a
// no-op.
func (g *Registry) JoinRoom(id, connID, name string) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, ErrInvalidName
	}
	for {
		r := g.getOrCreate(id)
		res, err := g.apply(r, func(r *Room) (Result, error) {
			event, err := r.join(connID, name)
			return broadcast(event), err
		})
		if err == ErrRoomNotFound {
			// raced with removal of an emptied room; try a fresh one
			continue
		}
		return res, err
	}
}

func (g *Registry) LeaveRoom(id, connID string) (Result, error) {
	return g.do(id, func(r *Room) (Result, error) {
		event, err := r.leave(connID)
		return broadcast(event), err
	})
}

// DisconnectPlayer finds the room connID belongs to and flags the player.
// A waiting room whose members are all gone is removed.
func (g *Registry) DisconnectPlayer(connID string) (Result, error) {
	g.mutex.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mutex.RUnlock()

	for _, r := range rooms {
		r.mu.Lock()
		if r.closed || r.player(connID) == nil {
			r.mu.Unlock()
			continue
		}
		event, abandoned := r.disconnect(connID)
		snap := r.publish()
		r.mu.Unlock()

		if abandoned {
			g.removeRoom(r)
		}
		res := broadcast(event)
		res.Room = snap
		return res, nil
	}
	return Result{}, ErrPlayerNotFound
}

func (g *Registry) StartGame(id string) (Result, error) {
	return g.do(id, func(r *Room) (Result, error) {
		if err := r.start(); err != nil {
			return Result{}, err
		}
		return broadcast(EventGameStarted), nil
	})
}

func (g *Registry) MakeSentence(id, connID string, req SentenceRequest) (Result, error) {
	return g.do(id, func(r *Room) (Result, error) {
		event, err := r.makeSentence(connID, req)
		return broadcast(event), err
	})
}

// RespondToSentence plays cardID, or passes when cardID is empty. A nil
// error means the response was accepted.
func (g *Registry) RespondToSentence(id, connID, cardID string) (Result, error) {
	return g.do(id, func(r *Room) (Result, error) {
		event, err := r.respond(connID, cardID)
		return broadcast(event), err
	})
}

// ViewCard returns the card targetID lent this turn. The result is private
// to the viewer.
func (g *Registry) ViewCard(id, connID, targetID string) (Result, error) {
	return g.do(id, func(r *Room) (Result, error) {
		card, err := r.viewCard(connID, targetID)
		if err != nil {
			return Result{}, err
		}
		return Result{Notify: NotifyPrivate, Event: EventCardViewed, Card: &card}, nil
	})
}

func (g *Registry) FinishViewing(id, connID string) (Result, error) {
	return g.do(id, func(r *Room) (Result, error) {
		event, err := r.finishViewing(connID)
		return broadcast(event), err
	})
}

func (g *Registry) GuessBottomCard(id, connID string, guess GuessRequest) (Result, error) {
	return g.do(id, func(r *Room) (Result, error) {
		correct, err := r.guess(connID, guess)
		if err != nil {
			return Result{}, err
		}
		res := broadcast(r.turnEvent())
		res.Correct = correct
		return res, nil
	})
}

func (g *Registry) SendChat(id, connID, text string) (Result, error) {
	text = strings.TrimSpace(text)
	return g.do(id, func(r *Room) (Result, error) {
		event, err := r.chat(connID, text)
		return broadcast(event), err
	})
}

// UpdateNotebook stores the player's private notes; nobody is notified.
func (g *Registry) UpdateNotebook(id, connID string, nb Notebook) (Result, error) {
	return g.do(id, func(r *Room) (Result, error) {
		if err := r.updateNotebook(connID, nb); err != nil {
			return Result{}, err
		}
		return Result{Notify: NotifyNone, Event: EventNotebook}, nil
	})
}
