package game

import (
	"fmt"

	"github.com/wfunc/listentome/cards"
	"github.com/wfunc/listentome/logger"
)

// GuessRequest names the three cards believed to be at the bottom.
type GuessRequest struct {
	PersonID string `json:"personId"`
	PlaceID  string `json:"placeId"`
	EventID  string `json:"eventId"`
}

func (r *Room) bottomOf(t cards.Type) Card {
	for _, c := range r.BottomCards {
		if c.Type == t {
			return c
		}
	}
	return Card{}
}

func (r *Room) guess(connID string, g GuessRequest) (bool, error) {
	p := r.player(connID)
	if p == nil {
		return false, ErrPlayerNotFound
	}
	if r.GameState != PhasePlaying {
		return false, ErrWrongPhase
	}
	if r.CurrentTurn != connID {
		return false, ErrNotYourTurn
	}
	if !p.IsAlive {
		return false, ErrPlayerEliminated
	}
	if g.PersonID == "" || g.PlaceID == "" || g.EventID == "" {
		return false, ErrInvalidGuess
	}

	person, place, event := r.bottomOf(cards.Person), r.bottomOf(cards.Place), r.bottomOf(cards.Event)
	correct := g.PersonID == person.ID && g.PlaceID == place.ID && g.EventID == event.ID
	logger.Log.Infow("bottom card guess", "room", r.ID, "player", p.Name, "correct", correct)

	if correct {
		r.finish(p.ID, fmt.Sprintf("%s found the bottom cards: %s, %s, %s. %s wins!",
			p.Name, person.Content, place.Content, event.Content, p.Name))
		return true, nil
	}

	p.IsAlive = false
	r.logf("%s guessed wrong and is out of the game.", p.Name)
	r.moveToNextTurn()
	return false, nil
}

func (r *Room) viewCard(connID, targetID string) (Card, error) {
	p := r.player(connID)
	if p == nil {
		return Card{}, ErrPlayerNotFound
	}
	if r.GameState != PhaseViewing {
		return Card{}, ErrWrongPhase
	}
	if r.CurrentTurn != connID {
		return Card{}, ErrNotYourTurn
	}
	if r.viewed {
		return Card{}, ErrAlreadyViewed
	}

	var card *Card
	for i := range r.Responses {
		if r.Responses[i].PlayerID == targetID {
			card = &r.Responses[i].Card
			break
		}
	}
	if card == nil {
		return Card{}, ErrNoResponse
	}

	// the view deadline is replaced by a fresh one for finishing the view
	r.arm(PhaseViewing, r.env.settings.ViewTimeout)
	r.viewed = true
	r.logf("%s looked at %s's card.", p.Name, r.nameOf(targetID))
	return *card, nil
}

func (r *Room) finishViewing(connID string) (string, error) {
	if r.player(connID) == nil {
		return "", ErrPlayerNotFound
	}
	if r.GameState != PhaseViewing {
		return "", ErrWrongPhase
	}
	if r.CurrentTurn != connID {
		return "", ErrNotYourTurn
	}
	r.moveToNextTurn()
	return r.turnEvent(), nil
}
