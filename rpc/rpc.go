package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/listentome/game"
	"github.com/wfunc/listentome/logger"
	"github.com/wfunc/listentome/models"
)

const callTimeout = 5 * time.Second

var ErrRoomNotFound = errors.New("room not found")

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr. Services are added with Register before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

func (s *Server) Register(service interface{}) error {
	return s.rpc.Register(service)
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// Rooms is the read side of game.Registry.
type Rooms interface {
	GetRoom(id string) (game.Snapshot, bool)
	RoomIDs() []string
}

// Records is the read side of services.RecordService.
type Records interface {
	Stats(ctx context.Context, name string) (*models.PlayerStats, error)
	RecentGames(ctx context.Context, limit int) ([]*models.GameRecord, error)
}

// GameService exposes room and archive lookups to operators.
type GameService struct {
	rooms   Rooms
	records Records
}

func NewGameService(rooms Rooms, records Records) *GameService {
	return &GameService{rooms: rooms, records: records}
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room game.Snapshot
}

// GetRoom returns the unredacted snapshot of a room.
func (gs *GameService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	room, ok := gs.rooms.GetRoom(args.RoomID)
	if !ok {
		return ErrRoomNotFound
	}
	reply.Room = room
	return nil
}

// ListRoomsArgs filters by phase; an empty Phase lists every room.
type ListRoomsArgs struct {
	Phase game.Phase
}

type RoomSummary struct {
	ID        string
	GameState game.Phase
	Players   int
	Alive     int
}

type ListRoomsReply struct {
	Rooms []RoomSummary
}

func (gs *GameService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, id := range gs.rooms.RoomIDs() {
		room, ok := gs.rooms.GetRoom(id)
		if !ok || (args.Phase != "" && room.GameState != args.Phase) {
			continue
		}
		summary := RoomSummary{ID: room.ID, GameState: room.GameState, Players: len(room.Players)}
		for _, p := range room.Players {
			if p.IsAlive {
				summary.Alive++
			}
		}
		reply.Rooms = append(reply.Rooms, summary)
	}
	return nil
}

type GetPlayerStatsArgs struct {
	Name string
}

type GetPlayerStatsReply struct {
	Stats models.PlayerStats
}

func (gs *GameService) GetPlayerStats(args *GetPlayerStatsArgs, reply *GetPlayerStatsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	stats, err := gs.records.Stats(ctx, args.Name)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}

type RecentGamesArgs struct {
	Limit int
}

type RecentGamesReply struct {
	Games []models.GameRecord
}

func (gs *GameService) RecentGames(args *RecentGamesArgs, reply *RecentGamesReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	games, err := gs.records.RecentGames(ctx, args.Limit)
	if err != nil {
		return err
	}
	for _, g := range games {
		reply.Games = append(reply.Games, *g)
	}
	return nil
}
