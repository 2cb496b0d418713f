package game

import "time"

const (
	EventPlayerJoined       = "player_joined"
	EventPlayerReconnected  = "player_reconnected"
	EventPlayerLeft         = "player_left"
	EventPlayerDisconnected = "player_disconnected"
	EventGameStarted        = "game_started"
	EventSentence           = "sentence"
	EventResponded          = "responded"
	EventViewingStarted     = "viewing_started"
	EventCardViewed         = "card_viewed"
	EventNextTurn           = "next_turn"
	EventGameOver           = "game_over"
	EventChat               = "chat"
	EventNotebook           = "notebook"
)

type NotifyKind int

const (
	// NotifyNone means nothing observable changed.
	NotifyNone NotifyKind = iota
	// NotifyRoom means every member should get the new snapshot.
	NotifyRoom
	// NotifyPrivate means only the caller gets Card.
	NotifyPrivate
)

// Result is returned by every Registry intent that succeeded.
type Result struct {
	Room    Snapshot
	Notify  NotifyKind
	Event   string
	Card    *Card
	Correct bool
}

type PlayerView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Hand         []Card    `json:"hand,omitempty"`
	HandSize     int       `json:"handSize"`
	IsAlive      bool      `json:"isAlive"`
	Disconnected bool      `json:"disconnected"`
	Notebook     *Notebook `json:"notebook,omitempty"`
}

type ResponseView struct {
	PlayerID string `json:"playerId"`
	Card     *Card  `json:"card,omitempty"`
}

// Snapshot is a deep copy of a Room, safe to read and encode without locks.
type Snapshot struct {
	ID                  string         `json:"id"`
	Seq                 uint64         `json:"seq"`
	Players             []PlayerView   `json:"players"`
	Deck                []Card         `json:"deck"`
	PublicCards         []Card         `json:"publicCards"`
	BottomCards         []Card         `json:"bottomCards,omitempty"`
	GameState           Phase          `json:"gameState"`
	CurrentTurn         string         `json:"currentTurn,omitempty"`
	TurnEndsAt          *time.Time     `json:"turnEndsAt,omitempty"`
	RespondingEndsAt    *time.Time     `json:"respondingEndsAt,omitempty"`
	ViewingEndsAt       *time.Time     `json:"viewingEndsAt,omitempty"`
	CurrentSentence     *Sentence      `json:"currentSentence,omitempty"`
	Responses           []ResponseView `json:"responses"`
	PlayersWhoResponded []string       `json:"playersWhoResponded"`
	Winner              string         `json:"winner,omitempty"`
	Log                 []string       `json:"log"`
	Chat                []ChatMessage  `json:"chat"`
	TotalCards          int            `json:"totalCards"`
	CreatedAt           time.Time      `json:"createdAt"`
	StartedAt           *time.Time     `json:"startedAt,omitempty"`
	FinishedAt          *time.Time     `json:"finishedAt,omitempty"`
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// publish bumps the room sequence and snapshots the result. Snapshots sent
// to clients go through here so a later change always carries a higher Seq.
func (r *Room) publish() Snapshot {
	r.seq++
	return r.snapshot()
}

func (r *Room) snapshot() Snapshot {
	s := Snapshot{
		ID:                  r.ID,
		Seq:                 r.seq,
		Players:             make([]PlayerView, 0, len(r.Players)),
		Deck:                append([]Card{}, r.Deck...),
		PublicCards:         append([]Card{}, r.PublicCards...),
		BottomCards:         append([]Card(nil), r.BottomCards...),
		GameState:           r.GameState,
		CurrentTurn:         r.CurrentTurn,
		TurnEndsAt:          copyTime(r.TurnEndsAt),
		RespondingEndsAt:    copyTime(r.RespondingEndsAt),
		ViewingEndsAt:       copyTime(r.ViewingEndsAt),
		Responses:           make([]ResponseView, 0, len(r.Responses)),
		PlayersWhoResponded: make([]string, 0, len(r.PlayersWhoResponded)),
		Winner:              r.Winner,
		Log:                 append([]string{}, r.Log...),
		Chat:                append([]ChatMessage{}, r.Chat...),
		TotalCards:          r.TotalCards,
		CreatedAt:           r.CreatedAt,
		StartedAt:           optionalTime(r.StartedAt),
		FinishedAt:          optionalTime(r.FinishedAt),
	}
	if r.CurrentSentence != nil {
		sentence := *r.CurrentSentence
		s.CurrentSentence = &sentence
	}
	for _, p := range r.Players {
		nb := p.Notebook.clone()
		s.Players = append(s.Players, PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			Hand:         append([]Card{}, p.Hand...),
			HandSize:     len(p.Hand),
			IsAlive:      p.IsAlive,
			Disconnected: p.Disconnected,
			Notebook:     &nb,
		})
		if r.PlayersWhoResponded[p.ID] {
			s.PlayersWhoResponded = append(s.PlayersWhoResponded, p.ID)
		}
	}
	for _, resp := range r.Responses {
		card := resp.Card
		s.Responses = append(s.Responses, ResponseView{PlayerID: resp.PlayerID, Card: &card})
	}
	return s
}

// RedactFor strips what viewerID must not see: other hands and notebooks,
// cards lent by others, and the bottom cards until someone has found them.
func (s Snapshot) RedactFor(viewerID string) Snapshot {
	out := s
	out.Players = make([]PlayerView, len(s.Players))
	for i, p := range s.Players {
		if p.ID != viewerID {
			p.Hand = nil
			p.Notebook = nil
		}
		out.Players[i] = p
	}
	out.Responses = make([]ResponseView, len(s.Responses))
	for i, resp := range s.Responses {
		if resp.PlayerID != viewerID {
			resp.Card = nil
		}
		out.Responses[i] = resp
	}
	if s.GameState != PhaseFinished || s.Winner == "" {
		out.BottomCards = nil
	}
	return out
}

func (s Snapshot) Player(connID string) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.ID == connID {
			return p, true
		}
	}
	return PlayerView{}, false
}

func (s Snapshot) WinnerName() string {
	if p, ok := s.Player(s.Winner); ok {
		return p.Name
	}
	return ""
}
