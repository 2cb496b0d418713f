package game

import (
	"github.com/wfunc/listentome/cards"
	"github.com/wfunc/listentome/logger"
)

// shuffle is an in-place Fisher-Yates shuffle.
func shuffle(deck []Card, rnd Random) {
	for i := len(deck) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// drawBottom removes one uniformly chosen card from each category and
// returns the three bottom cards plus whatever is left.
func drawBottom(catalog cards.Catalog, rnd Random) (bottom []Card, rest []Card) {
	bottom = make([]Card, 0, len(cards.Categories))
	for _, t := range cards.Categories {
		pool := catalog.Of(t)
		i := rnd.Intn(len(pool))
		bottom = append(bottom, pool[i])
		rest = append(rest, pool[:i]...)
		rest = append(rest, pool[i+1:]...)
	}
	return bottom, rest
}

// deal hands the first floor(len/n)*n cards out round-robin and returns the
// remainder, which stays face up for everyone.
func deal(deck []Card, players []*Player) []Card {
	n := len(players)
	cardsToDeal := len(deck) / n * n
	for i := 0; i < cardsToDeal; i++ {
		p := players[i%n]
		p.Hand = append(p.Hand, deck[i])
	}
	return append([]Card(nil), deck[cardsToDeal:]...)
}

func (r *Room) start() error {
	if r.GameState != PhaseWaiting {
		return ErrGameAlreadyStarted
	}
	if len(r.Players) < r.env.settings.MinPlayers {
		return ErrNotEnoughPlayers
	}

	rnd := r.env.random
	bottom, pool := drawBottom(r.catalog.Clone(), rnd)
	for i := range r.Players {
		pool = append(pool, cards.NewWater(i+1))
	}
	shuffle(pool, rnd)

	for _, p := range r.Players {
		p.Hand = make([]Card, 0)
		p.IsAlive = true
	}
	r.BottomCards = bottom
	r.PublicCards = deal(pool, r.Players)
	r.Deck = nil
	r.TotalCards = r.catalog.Size() + len(r.Players)
	r.StartedAt = r.env.now()

	first := r.Players[rnd.Intn(len(r.Players))]
	r.CurrentTurn = first.ID
	if err := r.changePhase(PhasePlaying); err != nil {
		return err
	}
	r.logf("The game has started! %s goes first.", first.Name)

	r.env.metrics.GameStarted()
	logger.Log.Infow("game started", "room", r.ID, "players", len(r.Players),
		"hand_size", len(first.Hand), "public_cards", len(r.PublicCards))
	return nil
}
