package game

import (
	"time"

	"github.com/wfunc/listentome/logger"
	"github.com/wfunc/listentome/state"
)

// phaseState adapts a Phase to state.State. Leaving any phase drops its
// deadline; entering one runs its setup, which arms the next deadline.
type phaseState struct {
	state.Base
	room  *Room
	enter func(r *Room)
}

func (s *phaseState) OnEnter() {
	s.room.GameState = Phase(s.ID)
	if s.enter != nil {
		s.enter(s.room)
	}
}

func (s *phaseState) OnExit() {
	s.room.disarm()
}

var transitions = map[Phase][]Phase{
	PhaseWaiting:    {PhasePlaying},
	PhasePlaying:    {PhasePlaying, PhaseResponding, PhaseFinished},
	PhaseResponding: {PhaseViewing, PhasePlaying, PhaseFinished},
	PhaseViewing:    {PhasePlaying, PhaseFinished},
}

func (r *Room) initPhases() {
	r.phases = map[Phase]state.State{
		PhaseWaiting:    &phaseState{Base: state.Base{ID: string(PhaseWaiting)}, room: r},
		PhasePlaying:    &phaseState{Base: state.Base{ID: string(PhasePlaying)}, room: r, enter: (*Room).enterPlaying},
		PhaseResponding: &phaseState{Base: state.Base{ID: string(PhaseResponding)}, room: r, enter: (*Room).enterResponding},
		PhaseViewing:    &phaseState{Base: state.Base{ID: string(PhaseViewing)}, room: r, enter: (*Room).enterViewingPhase},
		PhaseFinished:   &phaseState{Base: state.Base{ID: string(PhaseFinished)}, room: r, enter: (*Room).enterFinished},
	}

	machine := state.NewBaseStateMachine(r.phases[PhaseWaiting])
	for from, tos := range transitions {
		for _, to := range tos {
			machine.AddTransition(string(from), string(to), nil)
		}
	}
	machine.AddTransition(string(PhaseWaiting), string(PhasePlaying), func() bool {
		return len(r.Players) >= r.env.settings.MinPlayers
	})
	r.machine = machine
}

func (r *Room) changePhase(to Phase) error {
	if err := r.machine.ChangeState(r.phases[to]); err != nil {
		logger.Log.Errorw("illegal phase change", "room", r.ID, "from", r.GameState, "to", to)
		return ErrTransitionNotLegal
	}
	return nil
}

func (r *Room) clearResponses() {
	r.Responses = nil
	r.PlayersWhoResponded = make(map[string]bool)
}

func (r *Room) enterPlaying() {
	r.clearResponses()
	r.CurrentSentence = nil
	r.viewed = false
	r.arm(PhasePlaying, r.env.settings.TurnTimeout)
}

func (r *Room) enterResponding() {
	r.clearResponses()
	r.arm(PhaseResponding, r.env.settings.ResponseTimeout)
}

func (r *Room) enterViewingPhase() {
	r.viewed = false
	r.arm(PhaseViewing, r.env.settings.ViewTimeout)
}

func (r *Room) enterFinished() {
	r.returnLentCards()
	r.CurrentSentence = nil
	r.FinishedAt = r.env.now()

	r.env.metrics.GameFinished(r.Winner != "")
	r.env.recorder.RecordGame(r.snapshot())
	r.env.onFinished(r)
	logger.Log.Infow("game finished", "room", r.ID, "winner", r.nameOf(r.Winner))
}

// arm replaces whatever deadline the room had with one for phase p. The
// epoch lets a callback that already left the scheduler detect it is stale.
func (r *Room) arm(p Phase, d time.Duration) {
	r.clearDeadlines()
	r.epoch++
	epoch := r.epoch

	deadline := r.env.now().Add(d)
	switch p {
	case PhasePlaying:
		r.TurnEndsAt = &deadline
	case PhaseResponding:
		r.RespondingEndsAt = &deadline
	case PhaseViewing:
		r.ViewingEndsAt = &deadline
	}

	r.env.scheduler.Schedule(r.timerKey, d, func() {
		r.env.onTimeout(r, epoch, p)
	})
}

func (r *Room) disarm() {
	r.clearDeadlines()
	r.epoch++
	r.env.scheduler.Cancel(r.timerKey)
}

func (r *Room) clearDeadlines() {
	r.TurnEndsAt = nil
	r.RespondingEndsAt = nil
	r.ViewingEndsAt = nil
}

// returnLentCards gives every response card back to the player who lent it.
func (r *Room) returnLentCards() {
	for _, resp := range r.Responses {
		if p := r.player(resp.PlayerID); p != nil {
			p.Hand = append(p.Hand, resp.Card)
		} else {
			r.PublicCards = append(r.PublicCards, resp.Card)
		}
	}
	r.Responses = nil
}

// nextAlive walks the fixed seating order after connID, wrapping around, and
// returns the first alive player other than connID.
func (r *Room) nextAlive(connID string) *Player {
	n := len(r.Players)
	start := r.indexOf(connID)
	for step := 1; step <= n; step++ {
		p := r.Players[(start+step+n)%n]
		if p.IsAlive && p.ID != connID {
			return p
		}
	}
	return nil
}

func (r *Room) moveToNextTurn() {
	r.disarm()
	r.returnLentCards()

	if r.aliveCount() <= 1 {
		r.finish("", "Not enough players remain. The game ends with no winner.")
		return
	}
	next := r.nextAlive(r.CurrentTurn)
	if next == nil {
		r.finish("", "No one is left to take a turn. The game ends with no winner.")
		return
	}

	r.CurrentTurn = next.ID
	if err := r.changePhase(PhasePlaying); err != nil {
		return
	}
	r.logf("It is now %s's turn.", next.Name)
}

func (r *Room) finish(winnerID, reason string) {
	r.Winner = winnerID
	r.logf("%s", reason)
	_ = r.changePhase(PhaseFinished)
}

func (r *Room) turnEvent() string {
	if r.GameState == PhaseFinished {
		return EventGameOver
	}
	return EventNextTurn
}

func (r *Room) enterViewing() {
	if err := r.changePhase(PhaseViewing); err != nil {
		return
	}
	r.logf("Everyone has responded. %s may view one card.", r.nameOf(r.CurrentTurn))
}

// timeout applies the automatic action for a phase whose deadline passed.
// The caller has already checked the phase and epoch are still current.
func (r *Room) timeout(p Phase) string {
	switch p {
	case PhasePlaying:
		r.logf("%s ran out of time. Turn skipped.", r.nameOf(r.CurrentTurn))
		r.moveToNextTurn()
		return r.turnEvent()

	case PhaseResponding:
		for _, pl := range r.Players {
			if pl.IsAlive && pl.ID != r.CurrentTurn && !r.PlayersWhoResponded[pl.ID] {
				r.PlayersWhoResponded[pl.ID] = true
				r.logf("%s did not respond in time and passes.", pl.Name)
			}
		}
		if r.allResponded() {
			r.enterViewing()
			return EventViewingStarted
		}
		return EventResponded

	case PhaseViewing:
		if r.viewed {
			r.logf("%s's viewing time is over.", r.nameOf(r.CurrentTurn))
		} else {
			r.logf("%s did not view a card in time.", r.nameOf(r.CurrentTurn))
		}
		r.moveToNextTurn()
		return r.turnEvent()
	}
	return ""
}
