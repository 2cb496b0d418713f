package server

import (
	"fmt"
	"strings"

	"github.com/wfunc/listentome/game"
	"github.com/wfunc/listentome/logger"
	"github.com/wfunc/listentome/network"
	"github.com/wfunc/listentome/session"
)

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	sess.Touch()

	var (
		res game.Result
		err error
	)
	switch packet.MsgID {
	case network.MsgHeartbeat:
		return
	case network.MsgCreateRoom:
		res, err = s.handleCreateRoom(sess, packet)
	case network.MsgJoinRoom:
		res, err = s.handleJoinRoom(sess, packet)
	case network.MsgLeaveRoom:
		res, err = s.handleLeaveRoom(sess)
	default:
		res, err = s.handleGameAction(sess, packet)
	}

	if err != nil {
		s.monitor.IntentRejected(game.KindOf(err).String())
		s.broadcaster.SendError(sess.GetID(), err)
		return
	}
	s.broadcaster.Deliver(sess.GetID(), res)
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) (game.Result, error) {
	var req network.CreateRoomRequest
	if err := network.Decode(packet.Data, &req); err != nil {
		return game.Result{}, fmt.Errorf("decode create room: %w", err)
	}
	if strings.TrimSpace(req.PlayerName) == "" {
		return game.Result{}, game.ErrInvalidName
	}
	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		roomID = s.registry.NewRoomID()
	}
	if _, err := s.registry.CreateRoom(roomID); err != nil {
		return game.Result{}, err
	}
	res, err := s.join(sess, roomID, req.PlayerName)
	if err != nil {
		if room, ok := s.registry.GetRoom(roomID); ok && len(room.Players) == 0 {
			s.registry.RemoveRoom(roomID)
		}
		return game.Result{}, err
	}
	logger.Log.Infow("room created", "room", roomID, "session", sess.GetID())
	return res, nil
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) (game.Result, error) {
	var req network.JoinRoomRequest
	if err := network.Decode(packet.Data, &req); err != nil {
		return game.Result{}, fmt.Errorf("decode join room: %w", err)
	}
	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		return game.Result{}, game.ErrRoomNotFound
	}
	return s.join(sess, roomID, req.PlayerName)
}

// join moves the session into roomID, leaving any other room first.
func (s *GameServer) join(sess *session.Session, roomID, name string) (game.Result, error) {
	if current := sess.RoomID(); current != "" && current != roomID {
		if _, err := s.handleLeaveRoom(sess); err != nil {
			logger.Log.Debugw("leave before join failed", "room", current, "session", sess.GetID(), "error", err)
		}
	}
	res, err := s.registry.JoinRoom(roomID, sess.GetID(), name)
	if err != nil {
		return game.Result{}, err
	}
	if p, ok := res.Room.Player(sess.GetID()); ok {
		sess.Bind(roomID, p.Name)
	}
	return res, nil
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) (game.Result, error) {
	roomID := sess.RoomID()
	if roomID == "" {
		return game.Result{}, game.ErrPlayerNotFound
	}
	res, err := s.registry.LeaveRoom(roomID, sess.GetID())
	sess.Unbind()
	if err != nil {
		return game.Result{}, err
	}
	// the leaver is no longer in the snapshot, so tell the others directly
	if res.Notify == game.NotifyRoom {
		s.broadcaster.NotifyRoom(res.Room, res.Event)
		res.Notify = game.NotifyNone
	}
	return res, nil
}

func (s *GameServer) handleGameAction(sess *session.Session, packet *network.Packet) (game.Result, error) {
	roomID := sess.RoomID()
	if roomID == "" {
		logger.Log.Debugw("game action outside a room", "session", sess.GetID(), "msg", packet.MsgID)
		return game.Result{}, game.ErrPlayerNotFound
	}
	connID := sess.GetID()

	switch packet.MsgID {
	case network.MsgStartGame:
		return s.registry.StartGame(roomID)

	case network.MsgMakeSentence:
		var req game.SentenceRequest
		if err := network.Decode(packet.Data, &req); err != nil {
			return game.Result{}, fmt.Errorf("decode sentence: %w", err)
		}
		return s.registry.MakeSentence(roomID, connID, req)

	case network.MsgRespond:
		var req network.RespondRequest
		if err := network.Decode(packet.Data, &req); err != nil {
			return game.Result{}, fmt.Errorf("decode response: %w", err)
		}
		return s.registry.RespondToSentence(roomID, connID, req.CardID)

	case network.MsgViewCard:
		var req network.ViewCardRequest
		if err := network.Decode(packet.Data, &req); err != nil {
			return game.Result{}, fmt.Errorf("decode view: %w", err)
		}
		return s.registry.ViewCard(roomID, connID, req.TargetPlayerID)

	case network.MsgFinishViewing:
		return s.registry.FinishViewing(roomID, connID)

	case network.MsgGuessBottom:
		var req game.GuessRequest
		if err := network.Decode(packet.Data, &req); err != nil {
			return game.Result{}, fmt.Errorf("decode guess: %w", err)
		}
		return s.registry.GuessBottomCard(roomID, connID, req)

	case network.MsgChat:
		var req network.ChatRequest
		if err := network.Decode(packet.Data, &req); err != nil {
			return game.Result{}, fmt.Errorf("decode chat: %w", err)
		}
		return s.registry.SendChat(roomID, connID, req.Message)

	case network.MsgUpdateNotebook:
		var req network.NotebookRequest
		if err := network.Decode(packet.Data, &req); err != nil {
			return game.Result{}, fmt.Errorf("decode notebook: %w", err)
		}
		return s.registry.UpdateNotebook(roomID, connID, req.Notebook)
	}

	logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	return game.Result{}, fmt.Errorf("unknown message type %d", packet.MsgID)
}
