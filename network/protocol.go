package network

import (
	"encoding/json"

	"github.com/wfunc/listentome/game"
)

// Client to server.
const (
	MsgHeartbeat      = 1
	MsgJoinRoom       = 101
	MsgLeaveRoom      = 102
	MsgCreateRoom     = 103
	MsgStartGame      = 104
	MsgMakeSentence   = 201
	MsgRespond        = 202
	MsgViewCard       = 203
	MsgFinishViewing  = 204
	MsgGuessBottom    = 205
	MsgChat           = 206
	MsgUpdateNotebook = 207
)

// Server to client.
const (
	MsgRoomUpdate = 301
	MsgViewResult = 302
	MsgGameOver   = 305
	MsgResult     = 310
	MsgError      = 400
)

type JoinRoomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

// CreateRoomRequest may leave RoomID empty to get a generated one.
type CreateRoomRequest struct {
	RoomID     string `json:"roomId,omitempty"`
	PlayerName string `json:"playerName"`
}

type RespondRequest struct {
	CardID string `json:"cardId,omitempty"`
}

type ViewCardRequest struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type NotebookRequest struct {
	Notebook game.Notebook `json:"notebook"`
}

type RoomUpdate struct {
	Event string        `json:"event"`
	Room  game.Snapshot `json:"room"`
}

type ViewResult struct {
	Card game.Card `json:"card"`
}

type GameOver struct {
	Room game.Snapshot `json:"room"`
}

// Result acknowledges an intent to the session that sent it.
type Result struct {
	OK      bool   `json:"ok"`
	Event   string `json:"event,omitempty"`
	Correct bool   `json:"correct,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
