package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/listentome/broadcast"
	"github.com/wfunc/listentome/game"
	"github.com/wfunc/listentome/logger"
	"github.com/wfunc/listentome/monitor"
	"github.com/wfunc/listentome/network"
	"github.com/wfunc/listentome/session"
)

const defaultHeartbeat = 60 * time.Second

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	registry       *game.Registry
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	monitor        *monitor.Monitor
	heartbeat      time.Duration
	httpServer     *http.Server
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
	connections    sync.WaitGroup
}

func NewGameServer(addr string, registry *game.Registry, sessionManager *session.Manager, broadcaster broadcast.Broadcaster, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:           addr,
		registry:       registry,
		sessionManager: sessionManager,
		broadcaster:    broadcaster,
		monitor:        mon,
		heartbeat:      defaultHeartbeat,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetHeartbeat sets how long a connection may stay silent before it is
// dropped. Zero disables the deadline.
func (s *GameServer) SetHeartbeat(interval time.Duration) {
	s.heartbeat = interval
}

func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every open session and waits
// for their handlers to finish.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		err = s.httpServer.Shutdown(ctx)
		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}

		done := make(chan struct{})
		go func() {
			s.connections.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	})
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.shutdownChan:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.connections.Add(1)
	defer s.connections.Done()
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.heartbeat)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infow("connection opened", "remote", wsConn.RemoteAddr().String(), "session", sess.GetID())

	defer func() {
		logger.Log.Infow("connection closed", "remote", wsConn.RemoteAddr().String(), "session", sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		s.disconnect(sess)
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}
		packet, err := wsConn.ReadPacket()
		if err != nil {
			return
		}
		start := time.Now()
		s.monitor.IncMessagesReceived()
		s.handlePacket(sess, packet)
		s.monitor.ObserveMessageLatency(time.Since(start))
	}
}

// disconnect keeps the player's seat so a reconnect by name can reclaim it.
func (s *GameServer) disconnect(sess *session.Session) {
	if sess.RoomID() == "" {
		return
	}
	res, err := s.registry.DisconnectPlayer(sess.GetID())
	sess.Unbind()
	if err != nil {
		return
	}
	if res.Notify == game.NotifyRoom {
		s.broadcaster.NotifyRoom(res.Room, res.Event)
	}
}
