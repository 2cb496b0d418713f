package game

import "errors"

// Kind classifies why an intent was rejected.
type Kind int

const (
	KindUnknown Kind = iota
	// KindPrecondition covers wrong phase, wrong turn and membership limits.
	KindPrecondition
	// KindIllegalMove covers plays that break the card rules.
	KindIllegalMove
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindIllegalMove:
		return "illegal_move"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

var (
	ErrRoomNotFound   = notFound("room not found")
	ErrPlayerNotFound = notFound("player not found")

	ErrRoomExists         = precondition("room already exists")
	ErrGameAlreadyStarted = precondition("game has already started")
	ErrRoomFull           = precondition("room is full")
	ErrNotEnoughPlayers   = precondition("not enough players to start the game")
	ErrNameTaken          = precondition("name is already taken in this room")
	ErrSeatTaken          = precondition("connection already holds another seat in this room")
	ErrInvalidName        = precondition("player name must not be empty")
	ErrNotYourTurn        = precondition("it is not your turn")
	ErrWrongPhase         = precondition("action not allowed in the current phase")
	ErrPlayerEliminated   = precondition("player has been eliminated")
	ErrAlreadyResponded   = precondition("player already responded this phase")
	ErrOwnSentence        = precondition("cannot respond to your own sentence")
	ErrAlreadyViewed      = precondition("a card was already viewed this turn")
	ErrNoResponse         = precondition("that player did not respond with a card")
	ErrEmptyMessage       = precondition("message must not be empty")
	ErrTransitionNotLegal = precondition("phase transition not allowed")

	ErrCardNotInHand    = illegalMove("card is not in your hand")
	ErrMustPlayMatching = illegalMove("you hold a matching card and must play it")
	ErrMustPlayWater    = illegalMove("you hold no matching card and must play a water card")
	ErrMustPass         = illegalMove("you hold no matching or water card and must pass")
	ErrInvalidSentence  = illegalMove("sentence must name one person, one place and one event card")
	ErrInvalidGuess     = illegalMove("guess must name one person, one place and one event card")
)

// Error pairs a sentinel with its Kind. errors.Is matches the sentinel.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func notFound(msg string) *Error     { return &Error{Kind: KindNotFound, msg: msg} }
func precondition(msg string) *Error { return &Error{Kind: KindPrecondition, msg: msg} }
func illegalMove(msg string) *Error  { return &Error{Kind: KindIllegalMove, msg: msg} }

// KindOf reports the Kind of a game error, or KindUnknown for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
