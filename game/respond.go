package game

import (
	"github.com/wfunc/listentome/cards"
	"github.com/wfunc/listentome/logger"
)

// SentenceRequest names the claimed cards by id.
type SentenceRequest struct {
	PersonID string `json:"personId"`
	PlaceID  string `json:"placeId"`
	EventID  string `json:"eventId"`
}

func (r *Room) resolve(id string, t cards.Type) (Card, bool) {
	card, ok := r.catalog.Lookup(id)
	if !ok || card.Type != t {
		return Card{}, false
	}
	return card, true
}

func (r *Room) makeSentence(connID string, req SentenceRequest) (string, error) {
	p := r.player(connID)
	if p == nil {
		return "", ErrPlayerNotFound
	}
	if r.GameState != PhasePlaying {
		return "", ErrWrongPhase
	}
	if r.CurrentTurn != connID {
		return "", ErrNotYourTurn
	}
	if !p.IsAlive {
		return "", ErrPlayerEliminated
	}

	person, ok1 := r.resolve(req.PersonID, cards.Person)
	place, ok2 := r.resolve(req.PlaceID, cards.Place)
	event, ok3 := r.resolve(req.EventID, cards.Event)
	if !ok1 || !ok2 || !ok3 {
		return "", ErrInvalidSentence
	}

	r.CurrentSentence = &Sentence{Person: person, Place: place, Event: event}
	if err := r.changePhase(PhaseResponding); err != nil {
		return "", err
	}
	r.logf("%s says: %s, at the %s, %s.", p.Name, person.Content, place.Content, event.Content)
	logger.Log.Infow("sentence made", "room", r.ID, "player", p.Name,
		"person", person.ID, "place", place.ID, "event", event.ID)

	if r.allResponded() {
		r.enterViewing()
		return EventViewingStarted, nil
	}
	return EventSentence, nil
}

// checkResponse applies the response rule to a hand: a matching card must be
// played if held, otherwise a water card, otherwise the player passes.
// An empty cardID is a pass.
func checkResponse(hand []Card, s Sentence, cardID string) error {
	var matching, water int
	for _, c := range hand {
		switch {
		case c.IsWater():
			water++
		case s.matches(c):
			matching++
		}
	}

	if cardID == "" {
		switch {
		case matching > 0:
			return ErrMustPlayMatching
		case water > 0:
			return ErrMustPlayWater
		}
		return nil
	}

	var card *Card
	for i := range hand {
		if hand[i].ID == cardID {
			card = &hand[i]
			break
		}
	}
	if card == nil {
		return ErrCardNotInHand
	}

	switch {
	case matching > 0:
		if card.IsWater() || !s.matches(*card) {
			return ErrMustPlayMatching
		}
	case water > 0:
		if !card.IsWater() {
			return ErrMustPlayWater
		}
	default:
		return ErrMustPass
	}
	return nil
}

// allResponded reports whether every alive player other than the turn holder
// has played or passed.
func (r *Room) allResponded() bool {
	for _, p := range r.Players {
		if p.IsAlive && p.ID != r.CurrentTurn && !r.PlayersWhoResponded[p.ID] {
			return false
		}
	}
	return true
}

func (r *Room) respond(connID, cardID string) (string, error) {
	p := r.player(connID)
	if p == nil {
		return "", ErrPlayerNotFound
	}
	if r.GameState != PhaseResponding || r.CurrentSentence == nil {
		return "", ErrWrongPhase
	}
	if connID == r.CurrentTurn {
		return "", ErrOwnSentence
	}
	if !p.IsAlive {
		return "", ErrPlayerEliminated
	}
	if r.PlayersWhoResponded[connID] {
		return "", ErrAlreadyResponded
	}
	if err := checkResponse(p.Hand, *r.CurrentSentence, cardID); err != nil {
		return "", err
	}

	if cardID != "" {
		card, _ := p.takeCard(cardID)
		r.Responses = append(r.Responses, Response{PlayerID: connID, Card: card})
		r.logf("%s played a card.", p.Name)
	} else {
		r.logf("%s passed.", p.Name)
	}
	r.PlayersWhoResponded[connID] = true

	if r.allResponded() {
		r.enterViewing()
		return EventViewingStarted, nil
	}
	return EventResponded, nil
}
