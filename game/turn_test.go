package game

import (
	"errors"
	"strings"
	"testing"
)

func TestTransitions_OnlyRegisteredPhasesChange(t *testing.T) {
	g, _ := newTestRegistry()
	joinPlayers(t, g, "R1", 3)
	r, _ := g.lookup("R1")

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.changePhase(PhaseViewing); !errors.Is(err, ErrTransitionNotLegal) {
		t.Errorf("waiting -> viewing should be rejected, got %v", err)
	}
	if r.GameState != PhaseWaiting {
		t.Errorf("Rejected transition changed the phase to %s", r.GameState)
	}
	if r.machine.CanTransition(string(PhaseFinished)) {
		t.Error("waiting -> finished should not be registered")
	}
	if !r.machine.CanTransition(string(PhasePlaying)) {
		t.Error("waiting -> playing should be allowed with enough players")
	}
}

// Scenario: the active player disconnects; the turn moves on at once and the
// old timer can no longer act.
func TestDisconnectPlayer_DuringOwnTurn(t *testing.T) {
	g, sched := newTestRegistry()
	r := startedRoom(t, g, "R1", 3)
	staleTurnTimer := sched.Callback(r.timerKey)
	scheduled := sched.scheduled

	res, err := g.DisconnectPlayer("c1")
	if err != nil {
		t.Fatalf("DisconnectPlayer failed: %v", err)
	}
	s := res.Room
	if s.CurrentTurn != "c2" || s.GameState != PhasePlaying {
		t.Fatalf("Expected c2 to play, got %s in %s", s.CurrentTurn, s.GameState)
	}
	if res.Event != EventNextTurn || res.Notify != NotifyRoom {
		t.Errorf("Expected a %s broadcast, got %s", EventNextTurn, res.Event)
	}
	if sched.scheduled != scheduled+1 {
		t.Errorf("Expected exactly one new timer, got %d", sched.scheduled-scheduled)
	}
	if !sched.Pending(r.timerKey) || s.TurnEndsAt == nil || deadlines(s) != 1 {
		t.Error("The new turn should have exactly one deadline")
	}
	if p, _ := s.Player("c1"); !p.Disconnected || !p.IsAlive {
		t.Error("A disconnected player stays in the game")
	}

	staleTurnTimer()
	if after := snapshotOf(t, g, "R1"); after.CurrentTurn != "c2" {
		t.Errorf("Stale turn timer advanced the turn to %s", after.CurrentTurn)
	}
}

func TestTimeout_PlayingSkipsTurn(t *testing.T) {
	notifier := &recordingNotifier{}
	metrics := &countingMetrics{}
	g := NewRegistry(DefaultSettings(), newFakeScheduler(), notifier,
		WithRandom(zeroRandom{}), WithClock(fixedClock), WithMetrics(metrics))
	r := startedRoom(t, g, "R1", 3)
	sched := g.env.scheduler.(*fakeScheduler)

	if !sched.Fire(r.timerKey) {
		t.Fatal("Turn timer was not armed")
	}
	s := snapshotOf(t, g, "R1")
	if s.CurrentTurn != "c2" || s.GameState != PhasePlaying {
		t.Fatalf("Expected c2 to play after the timeout, got %s in %s", s.CurrentTurn, s.GameState)
	}
	if !strings.Contains(strings.Join(s.Log, "\n"), "ran out of time") {
		t.Error("Timeout should be logged")
	}
	if events := notifier.Events(); len(events) != 1 || events[0] != EventNextTurn {
		t.Errorf("Expected one %s notification, got %v", EventNextTurn, events)
	}
	if metrics.timeouts[string(PhasePlaying)] != 1 {
		t.Errorf("Expected one playing timeout, got %v", metrics.timeouts)
	}
	if !sched.Pending(r.timerKey) {
		t.Error("Next turn should be armed")
	}
}

func TestTimeout_RotationSkipsEliminated(t *testing.T) {
	g, sched := newTestRegistry()
	r := startedRoom(t, g, "R1", 4)
	r.mu.Lock()
	r.Players[1].IsAlive = false
	r.mu.Unlock()

	want := []string{"c3", "c4", "c1", "c3"}
	for _, id := range want {
		sched.Fire(r.timerKey)
		if s := snapshotOf(t, g, "R1"); s.CurrentTurn != id {
			t.Fatalf("Expected %s to play, got %s", id, s.CurrentTurn)
		}
	}
}

// Scenario: the responding deadline passes with one of three responders
// missing; they pass implicitly and viewing starts once.
func TestTimeout_RespondingAutoPass(t *testing.T) {
	notifier := &recordingNotifier{}
	g := NewRegistry(DefaultSettings(), newFakeScheduler(), notifier, WithRandom(zeroRandom{}), WithClock(fixedClock))
	r := startedRoom(t, g, "R1", 4)
	sched := g.env.scheduler.(*fakeScheduler)
	setHands(r, map[string][]Card{
		"c2": hand("p2"),
		"c3": hand("w1"),
		"c4": hand("e2", "p5"),
	})

	if _, err := g.MakeSentence("R1", "c1", sentence2); err != nil {
		t.Fatalf("MakeSentence failed: %v", err)
	}
	if _, err := g.RespondToSentence("R1", "c2", "p2"); err != nil {
		t.Fatalf("Respond(c2) failed: %v", err)
	}
	if _, err := g.RespondToSentence("R1", "c3", "w1"); err != nil {
		t.Fatalf("Respond(c3) failed: %v", err)
	}
	staleResponseTimer := sched.Callback(r.timerKey)

	sched.Fire(r.timerKey)
	s := snapshotOf(t, g, "R1")
	if s.GameState != PhaseViewing {
		t.Fatalf("Expected viewing, got %s", s.GameState)
	}
	if len(s.PlayersWhoResponded) != 3 {
		t.Errorf("Expected all three marked responded, got %v", s.PlayersWhoResponded)
	}
	if h := handOf(t, s, "c4"); len(h) != 2 {
		t.Errorf("Implicit pass must not remove cards, c4 holds %d", len(h))
	}
	if len(s.Responses) != 2 {
		t.Errorf("Expected two lent cards, got %d", len(s.Responses))
	}
	if s.ViewingEndsAt == nil || deadlines(s) != 1 {
		t.Error("Only the viewing deadline should be set")
	}

	staleResponseTimer()
	if events := notifier.Events(); len(events) != 1 || events[0] != EventViewingStarted {
		t.Errorf("Viewing should start exactly once, got %v", events)
	}
	started := 0
	for _, line := range snapshotOf(t, g, "R1").Log {
		if strings.HasPrefix(line, "Everyone has responded") {
			started++
		}
	}
	if started != 1 {
		t.Errorf("Viewing logged %d times", started)
	}
}

func TestTimeout_ViewingMovesOn(t *testing.T) {
	g, sched := newTestRegistry()
	r := startedRoom(t, g, "R1", 3)
	setHands(r, map[string][]Card{"c2": hand("p2", "l7"), "c3": hand("p4")})

	if _, err := g.MakeSentence("R1", "c1", sentence2); err != nil {
		t.Fatalf("MakeSentence failed: %v", err)
	}
	if _, err := g.RespondToSentence("R1", "c2", "p2"); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if _, err := g.RespondToSentence("R1", "c3", ""); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	sched.Fire(r.timerKey)
	s := snapshotOf(t, g, "R1")
	if s.GameState != PhasePlaying || s.CurrentTurn != "c2" {
		t.Fatalf("Expected c2 to play, got %s in %s", s.CurrentTurn, s.GameState)
	}
	if !hasCard(handOf(t, s, "c2"), "p2") {
		t.Error("Lent card should come back after a missed view")
	}
	if !strings.Contains(strings.Join(s.Log, "\n"), "did not view a card in time") {
		t.Error("Missed view should be logged")
	}
}

func TestTimeout_StaleAfterSentence(t *testing.T) {
	g, sched := newTestRegistry()
	r := startedRoom(t, g, "R1", 3)
	staleTurnTimer := sched.Callback(r.timerKey)

	if _, err := g.MakeSentence("R1", "c1", sentence2); err != nil {
		t.Fatalf("MakeSentence failed: %v", err)
	}
	before := snapshotOf(t, g, "R1")

	staleTurnTimer()
	after := snapshotOf(t, g, "R1")
	if after.GameState != PhaseResponding || after.CurrentTurn != "c1" || len(after.Log) != len(before.Log) {
		t.Error("A turn timer that fires after the sentence must do nothing")
	}
}

func TestTimeout_AfterRoomRemoved(t *testing.T) {
	notifier := &recordingNotifier{}
	g := NewRegistry(DefaultSettings(), newFakeScheduler(), notifier, WithRandom(zeroRandom{}))
	r := startedRoom(t, g, "R1", 3)
	sched := g.env.scheduler.(*fakeScheduler)
	timeout := sched.Callback(r.timerKey)

	g.RemoveRoom("R1")
	timeout()
	if len(notifier.Events()) != 0 {
		t.Error("A removed room must not react to its timers")
	}
}

// Drives a whole game and checks that no two deadlines are ever set at once.
func TestDeadlines_AtMostOne(t *testing.T) {
	g, sched := newTestRegistry()
	r := startedRoom(t, g, "R1", 4)

	check := func(step string) {
		t.Helper()
		s := snapshotOf(t, g, "R1")
		if n := deadlines(s); n > 1 {
			t.Fatalf("%s: %d deadlines set", step, n)
		}
		if s.GameState == PhaseFinished && deadlines(s) != 0 {
			t.Fatalf("%s: finished room still has a deadline", step)
		}
	}

	for turn := 0; turn < 6; turn++ {
		s := snapshotOf(t, g, "R1")
		active := s.CurrentTurn
		if _, err := g.MakeSentence("R1", active, sentence2); err != nil {
			t.Fatalf("MakeSentence failed: %v", err)
		}
		check("sentence")

		s = snapshotOf(t, g, "R1")
		for _, p := range s.Players {
			if p.ID == active || !p.IsAlive {
				continue
			}
			choice := legalResponse(p.Hand, *s.CurrentSentence)
			if _, err := g.RespondToSentence("R1", p.ID, choice); err != nil {
				t.Fatalf("Respond failed: %v", err)
			}
			check("respond")
		}

		if turn%2 == 0 {
			sched.Fire(r.timerKey)
			check("view timeout")
		} else {
			if _, err := g.FinishViewing("R1", active); err != nil {
				t.Fatalf("FinishViewing failed: %v", err)
			}
			check("finish viewing")
		}
	}

	next := snapshotOf(t, g, "R1").CurrentTurn
	if _, err := g.GuessBottomCard("R1", next, GuessRequest{PersonID: "p1", PlaceID: "l1", EventID: "e1"}); err != nil {
		t.Fatalf("Guess failed: %v", err)
	}
	check("guess")
}
