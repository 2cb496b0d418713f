package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wfunc/listentome/game"
	"github.com/wfunc/listentome/logger"
)

type RoomSummary struct {
	ID        string     `json:"id"`
	GameState game.Phase `json:"gameState"`
	Players   []string   `json:"players"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Rooms    int    `json:"rooms"`
	Sessions int    `json:"sessions"`
}

func (s *GameServer) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/rooms", s.listRooms).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{id}", s.getRoom).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", s.monitor.Handler())

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")

		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnw("failed to write response", "error", err)
	}
}

func (s *GameServer) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms := make([]RoomSummary, 0)
	for _, id := range s.registry.RoomIDs() {
		room, ok := s.registry.GetRoom(id)
		if !ok {
			continue
		}
		summary := RoomSummary{ID: room.ID, GameState: room.GameState, Players: make([]string, 0, len(room.Players))}
		for _, p := range room.Players {
			summary.Players = append(summary.Players, p.Name)
		}
		rooms = append(rooms, summary)
	}
	writeJSON(w, http.StatusOK, rooms)
}

// getRoom serves the public view of a room: no hands, notebooks or lent cards.
func (s *GameServer) getRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.registry.GetRoom(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": game.ErrRoomNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, room.RedactFor(""))
}

func (s *GameServer) healthz(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.shutdownChan:
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "shutting_down"})
		return
	default:
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Rooms:    s.registry.RoomCount(),
		Sessions: s.sessionManager.Count(),
	})
}
