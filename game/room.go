package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/listentome/cards"
	"github.com/wfunc/listentome/logger"
	"github.com/wfunc/listentome/state"
)

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhasePlaying    Phase = "playing"
	PhaseResponding Phase = "responding"
	PhaseViewing    Phase = "viewing"
	PhaseFinished   Phase = "finished"
)

type Card = cards.Card

// Settings are the rules shared by every room of a Registry.
type Settings struct {
	MinPlayers      int
	MaxPlayers      int
	TurnTimeout     time.Duration
	ResponseTimeout time.Duration
	ViewTimeout     time.Duration
	CleanupDelay    time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MinPlayers:      3,
		MaxPlayers:      8,
		TurnTimeout:     60 * time.Second,
		ResponseTimeout: 30 * time.Second,
		ViewTimeout:     15 * time.Second,
		CleanupDelay:    10 * time.Second,
	}
}

// Notebook is the player's private scratch pad. The game never reads it.
type Notebook struct {
	Person []string `json:"person"`
	Place  []string `json:"place"`
	Event  []string `json:"event"`
}

func (n Notebook) clone() Notebook {
	return Notebook{
		Person: append([]string(nil), n.Person...),
		Place:  append([]string(nil), n.Place...),
		Event:  append([]string(nil), n.Event...),
	}
}

// Player is keyed by Name across reconnects; ID is the current connection
// and changes only through Room.rebind.
type Player struct {
	ID           string
	Name         string
	Hand         []Card
	IsAlive      bool
	Disconnected bool
	Notebook     Notebook
}

func (p *Player) cardIndex(cardID string) int {
	for i, c := range p.Hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

func (p *Player) takeCard(cardID string) (Card, bool) {
	i := p.cardIndex(cardID)
	if i < 0 {
		return Card{}, false
	}
	card := p.Hand[i]
	p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
	return card, true
}

// Sentence is the active player's claim, one card per category.
type Sentence struct {
	Person Card `json:"person"`
	Place  Card `json:"place"`
	Event  Card `json:"event"`
}

func (s Sentence) matches(c Card) bool {
	switch c.Type {
	case cards.Person:
		return c.Content == s.Person.Content
	case cards.Place:
		return c.Content == s.Place.Content
	case cards.Event:
		return c.Content == s.Event.Content
	}
	return false
}

// Response is a card lent by PlayerID for the current turn.
type Response struct {
	PlayerID string `json:"playerId"`
	Card     Card   `json:"card"`
}

type ChatMessage struct {
	PlayerName string    `json:"playerName"`
	Text       string    `json:"text"`
	At         time.Time `json:"at"`
}

const (
	maxChatMessages = 100
	maxChatRunes    = 200
)

// env is what a Room needs from its Registry.
type env struct {
	settings  Settings
	scheduler Scheduler
	metrics   Metrics
	recorder  Recorder
	random    Random
	now       func() time.Time

	onTimeout  func(r *Room, epoch uint64, phase Phase)
	onFinished func(r *Room)
}

// Room is one game instance. Every field is guarded by mu; callers outside
// this package only ever see Snapshots.
type Room struct {
	ID                  string
	Players             []*Player
	Deck                []Card
	PublicCards         []Card
	BottomCards         []Card
	GameState           Phase
	CurrentTurn         string
	TurnEndsAt          *time.Time
	RespondingEndsAt    *time.Time
	ViewingEndsAt       *time.Time
	CurrentSentence     *Sentence
	Responses           []Response
	PlayersWhoResponded map[string]bool
	Winner              string
	Log                 []string
	Chat                []ChatMessage
	TotalCards          int
	CreatedAt           time.Time
	StartedAt           time.Time
	FinishedAt          time.Time

	mu       sync.Mutex
	env      *env
	catalog  cards.Catalog
	machine  state.Machine
	phases   map[Phase]state.State
	timerKey string
	epoch    uint64
	seq      uint64
	viewed   bool
	closed   bool
}

func newRoom(id, timerKey string, catalog cards.Catalog, e *env) *Room {
	r := &Room{
		ID:                  id,
		Players:             make([]*Player, 0),
		PlayersWhoResponded: make(map[string]bool),
		Log:                 make([]string, 0),
		CreatedAt:           e.now(),
		env:                 e,
		catalog:             catalog,
		timerKey:            timerKey,
	}
	r.initPhases()
	return r
}

func (r *Room) logf(format string, args ...interface{}) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

func (r *Room) player(connID string) *Player {
	for _, p := range r.Players {
		if p.ID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) playerByName(name string) *Player {
	for _, p := range r.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Room) indexOf(connID string) int {
	for i, p := range r.Players {
		if p.ID == connID {
			return i
		}
	}
	return -1
}

func (r *Room) nameOf(connID string) string {
	if p := r.player(connID); p != nil {
		return p.Name
	}
	return connID
}

func (r *Room) aliveCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsAlive {
			n++
		}
	}
	return n
}

func (r *Room) allDisconnected() bool {
	for _, p := range r.Players {
		if !p.Disconnected {
			return false
		}
	}
	return true
}

func (r *Room) inGame() bool {
	switch r.GameState {
	case PhasePlaying, PhaseResponding, PhaseViewing:
		return true
	}
	return false
}

// rebind moves a returning player onto a new connection id and rewrites
// every reference that was keyed by the old one.
func (r *Room) rebind(p *Player, connID string) {
	old := p.ID
	p.ID = connID
	p.Disconnected = false

	if r.CurrentTurn == old {
		r.CurrentTurn = connID
	}
	if r.Winner == old {
		r.Winner = connID
	}
	for i := range r.Responses {
		if r.Responses[i].PlayerID == old {
			r.Responses[i].PlayerID = connID
		}
	}
	if r.PlayersWhoResponded[old] {
		delete(r.PlayersWhoResponded, old)
		r.PlayersWhoResponded[connID] = true
	}
}

func (r *Room) join(connID, name string) (string, error) {
	if p := r.playerByName(name); p != nil && p.Disconnected {
		if cur := r.player(connID); cur != nil && cur != p {
			return "", ErrSeatTaken
		}
		old := p.ID
		r.rebind(p, connID)
		r.logf("%s reconnected.", p.Name)
		logger.Log.Infow("player reconnected", "room", r.ID, "player", p.Name, "old_conn", old, "conn", connID)
		return EventPlayerReconnected, nil
	}
	if r.player(connID) != nil {
		return "", nil
	}
	if r.GameState != PhaseWaiting {
		return "", ErrGameAlreadyStarted
	}
	if len(r.Players) >= r.env.settings.MaxPlayers {
		return "", ErrRoomFull
	}
	if r.playerByName(name) != nil {
		return "", ErrNameTaken
	}

	r.Players = append(r.Players, &Player{
		ID:      connID,
		Name:    name,
		Hand:    make([]Card, 0),
		IsAlive: true,
	})
	r.logf("%s joined the room.", name)
	logger.Log.Infow("player joined", "room", r.ID, "player", name, "conn", connID, "players", len(r.Players))
	return EventPlayerJoined, nil
}

// leave removes the player. Mid-game their cards go face up to the public
// pool so the card count stays whole.
func (r *Room) leave(connID string) (string, error) {
	p := r.player(connID)
	if p == nil {
		return "", ErrPlayerNotFound
	}

	if r.inGame() {
		p.IsAlive = false
		r.PublicCards = append(r.PublicCards, p.Hand...)
		p.Hand = nil
		for i, resp := range r.Responses {
			if resp.PlayerID == connID {
				r.PublicCards = append(r.PublicCards, resp.Card)
				r.Responses = append(r.Responses[:i], r.Responses[i+1:]...)
				break
			}
		}
		delete(r.PlayersWhoResponded, connID)
		r.logf("%s left the game.", p.Name)

		if r.CurrentTurn == connID {
			r.moveToNextTurn()
		}
		r.removePlayer(connID)

		if r.inGame() {
			if r.aliveCount() <= 1 {
				r.finish("", "Not enough players remain. The game ends with no winner.")
			} else if r.GameState == PhaseResponding && r.allResponded() {
				r.enterViewing()
			}
		}
	} else {
		r.removePlayer(connID)
		r.logf("%s left the room.", p.Name)
	}

	logger.Log.Infow("player left", "room", r.ID, "player", p.Name, "phase", r.GameState)
	return EventPlayerLeft, nil
}

func (r *Room) removePlayer(connID string) {
	if i := r.indexOf(connID); i >= 0 {
		r.Players = append(r.Players[:i], r.Players[i+1:]...)
	}
}

// disconnect flags the player and keeps them in rotation. It reports whether
// the room is now abandoned while still waiting.
func (r *Room) disconnect(connID string) (string, bool) {
	p := r.player(connID)
	p.Disconnected = true
	r.logf("%s disconnected.", p.Name)
	logger.Log.Infow("player disconnected", "room", r.ID, "player", p.Name, "phase", r.GameState)

	if r.allDisconnected() {
		if r.inGame() {
			r.finish("", "Everyone disconnected. The game ends with no winner.")
			return EventGameOver, false
		}
		return EventPlayerDisconnected, r.GameState == PhaseWaiting
	}

	if r.inGame() && r.CurrentTurn == connID {
		r.logf("%s's turn is skipped.", p.Name)
		r.moveToNextTurn()
		return r.turnEvent(), false
	}
	return EventPlayerDisconnected, false
}

func (r *Room) chat(connID, text string) (string, error) {
	p := r.player(connID)
	if p == nil {
		return "", ErrPlayerNotFound
	}
	if text == "" {
		return "", ErrEmptyMessage
	}
	if runes := []rune(text); len(runes) > maxChatRunes {
		text = string(runes[:maxChatRunes])
	}

	r.Chat = append(r.Chat, ChatMessage{PlayerName: p.Name, Text: text, At: r.env.now()})
	if len(r.Chat) > maxChatMessages {
		r.Chat = append([]ChatMessage(nil), r.Chat[len(r.Chat)-maxChatMessages:]...)
	}
	return EventChat, nil
}

func (r *Room) updateNotebook(connID string, nb Notebook) error {
	p := r.player(connID)
	if p == nil {
		return ErrPlayerNotFound
	}
	p.Notebook = nb.clone()
	return nil
}
