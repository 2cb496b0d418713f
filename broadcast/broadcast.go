// Package broadcast delivers room snapshots and private payloads to sessions.
package broadcast

import (
	"errors"

	"github.com/wfunc/listentome/game"
	"github.com/wfunc/listentome/logger"
	"github.com/wfunc/listentome/network"
	"github.com/wfunc/listentome/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// Broadcaster is what the server needs to answer intents and push room
// changes.
type Broadcaster interface {
	game.Notifier
	Deliver(actorID string, res game.Result)
	SendError(sessionID string, err error)
}

// RoomBroadcaster sends every player its own redacted view of a room. It
// implements game.Notifier for timer driven changes.
type RoomBroadcaster struct {
	sessionManager *session.Manager
}

var _ Broadcaster = (*RoomBroadcaster)(nil)

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) SendTo(sessionID string, msgID uint16, v interface{}) error {
	s, exists := b.sessionManager.Get(sessionID)
	if !exists {
		return ErrSessionNotFound
	}
	data, err := network.Encode(v)
	if err != nil {
		return err
	}
	return s.Send(msgID, data)
}

// NotifyRoom sends each connected player the snapshot redacted for them, and
// the game over message once the room is finished.
func (b *RoomBroadcaster) NotifyRoom(room game.Snapshot, event string) {
	for _, p := range room.Players {
		if p.Disconnected {
			continue
		}
		view := room.RedactFor(p.ID)
		if err := b.SendTo(p.ID, network.MsgRoomUpdate, network.RoomUpdate{Event: event, Room: view}); err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				logger.Log.Warnw("room update failed", "room", room.ID, "player", p.Name, "error", err)
			}
			continue
		}
		if event == game.EventGameOver {
			if err := b.SendTo(p.ID, network.MsgGameOver, network.GameOver{Room: view}); err != nil {
				logger.Log.Warnw("game over failed", "room", room.ID, "player", p.Name, "error", err)
			}
		}
	}
}

// Deliver applies an intent's Result: the actor gets the acknowledgement and
// any private payload, the room gets the snapshot if it changed.
func (b *RoomBroadcaster) Deliver(actorID string, res game.Result) {
	ack := network.Result{OK: true, Event: res.Event, Correct: res.Correct, RoomID: res.Room.ID}
	if err := b.SendTo(actorID, network.MsgResult, ack); err != nil && !errors.Is(err, ErrSessionNotFound) {
		logger.Log.Warnw("result delivery failed", "session", actorID, "error", err)
	}

	switch res.Notify {
	case game.NotifyRoom:
		b.NotifyRoom(res.Room, res.Event)
	case game.NotifyPrivate:
		if res.Card == nil {
			return
		}
		if err := b.SendTo(actorID, network.MsgViewResult, network.ViewResult{Card: *res.Card}); err != nil {
			logger.Log.Warnw("view result delivery failed", "session", actorID, "error", err)
		}
	}
}

// SendError reports a rejected intent to the acting session only.
func (b *RoomBroadcaster) SendError(sessionID string, err error) {
	msg := network.Error{Kind: game.KindOf(err).String(), Message: err.Error()}
	if sendErr := b.SendTo(sessionID, network.MsgError, msg); sendErr != nil {
		logger.Log.Debugw("error delivery failed", "session", sessionID, "error", sendErr)
	}
}
