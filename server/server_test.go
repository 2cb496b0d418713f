package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/listentome/broadcast"
	"github.com/wfunc/listentome/game"
	"github.com/wfunc/listentome/monitor"
	"github.com/wfunc/listentome/network"
	"github.com/wfunc/listentome/session"
	"github.com/wfunc/listentome/timer"
)

type testEnv struct {
	server   *GameServer
	http     *httptest.Server
	registry *game.Registry
	monitor  *monitor.Monitor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	timers := timer.NewTimerManager()
	sessions := session.NewManager()
	b := broadcast.NewRoomBroadcaster(sessions)
	mon := monitor.NewMonitor("test")
	registry := game.NewRegistry(game.DefaultSettings(), timers, b, game.WithMetrics(mon))
	s := NewGameServer("127.0.0.1:0", registry, sessions, b, mon)

	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(ctx)
		ts.Close()
		registry.Close()
		timers.Stop()
	})
	return &testEnv{server: s, http: ts, registry: registry, monitor: mon}
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (e *testEnv) dial(t *testing.T) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(msgID uint16, v interface{}) {
	c.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		c.t.Fatalf("Marshal failed: %v", err)
	}
	raw, err := network.EncodePacket(msgID, data)
	if err != nil {
		c.t.Fatalf("EncodePacket failed: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, raw); err != nil {
		c.t.Fatalf("Write failed: %v", err)
	}
}

// expect skips packets until one with msgID arrives.
func (c *testClient) expect(msgID uint16) []byte {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("Waiting for message %d: %v", msgID, err)
		}
		packet, err := network.DecodePacket(raw)
		if err != nil {
			c.t.Fatalf("DecodePacket failed: %v", err)
		}
		if packet.MsgID == msgID {
			return packet.Data
		}
	}
}

func (c *testClient) expectEvent(event string) network.RoomUpdate {
	c.t.Helper()
	for {
		var update network.RoomUpdate
		if err := json.Unmarshal(c.expect(network.MsgRoomUpdate), &update); err != nil {
			c.t.Fatalf("Unmarshal failed: %v", err)
		}
		if update.Event == event {
			return update
		}
	}
}

func (c *testClient) expectError() network.Error {
	c.t.Helper()
	var msg network.Error
	if err := json.Unmarshal(c.expect(network.MsgError), &msg); err != nil {
		c.t.Fatalf("Unmarshal failed: %v", err)
	}
	return msg
}

func (c *testClient) expectResult() network.Result {
	c.t.Helper()
	var res network.Result
	if err := json.Unmarshal(c.expect(network.MsgResult), &res); err != nil {
		c.t.Fatalf("Unmarshal failed: %v", err)
	}
	return res
}

// seatPlayers creates R1 with Alice and joins Bob and Carol.
func seatPlayers(e *testEnv, t *testing.T) []*testClient {
	clients := []*testClient{e.dial(t), e.dial(t), e.dial(t)}

	clients[0].send(network.MsgCreateRoom, network.CreateRoomRequest{RoomID: "R1", PlayerName: "Alice"})
	if res := clients[0].expectResult(); !res.OK || res.RoomID != "R1" {
		t.Fatalf("Create failed: %+v", res)
	}
	for i, name := range []string{"Bob", "Carol"} {
		clients[i+1].send(network.MsgJoinRoom, network.JoinRoomRequest{RoomID: "R1", PlayerName: name})
		if res := clients[i+1].expectResult(); res.Event != game.EventPlayerJoined {
			t.Fatalf("Join failed for %s: %+v", name, res)
		}
	}
	clients[0].expectEvent(game.EventPlayerJoined)
	return clients
}

func TestGameServer_JoinAndStart(t *testing.T) {
	e := newTestEnv(t)
	clients := seatPlayers(e, t)

	clients[0].send(network.MsgStartGame, nil)
	for i, c := range clients {
		update := c.expectEvent(game.EventGameStarted)
		if update.Room.GameState != game.PhasePlaying {
			t.Errorf("Client %d: expected playing, got %s", i, update.Room.GameState)
		}
		visible := 0
		for _, p := range update.Room.Players {
			if len(p.Hand) > 0 {
				visible++
			}
			if p.HandSize == 0 {
				t.Errorf("Client %d: %s should hold cards", i, p.Name)
			}
		}
		if visible != 1 {
			t.Errorf("Client %d should see exactly its own hand, saw %d", i, visible)
		}
		if update.Room.BottomCards != nil {
			t.Errorf("Client %d can see the bottom cards", i)
		}
	}

	clients[1].send(network.MsgStartGame, nil)
	if msg := clients[1].expectError(); msg.Kind != "precondition" {
		t.Errorf("Expected a precondition error, got %+v", msg)
	}
}

func TestGameServer_Rejections(t *testing.T) {
	e := newTestEnv(t)
	c := e.dial(t)

	c.send(network.MsgMakeSentence, game.SentenceRequest{PersonID: "p1"})
	if msg := c.expectError(); msg.Kind != "not_found" {
		t.Errorf("Expected not_found outside a room, got %+v", msg)
	}

	c.send(network.MsgCreateRoom, network.CreateRoomRequest{PlayerName: "  "})
	if msg := c.expectError(); msg.Message != game.ErrInvalidName.Error() {
		t.Errorf("Expected an invalid name error, got %+v", msg)
	}
	if e.registry.RoomCount() != 0 {
		t.Error("A rejected create should not leave a room behind")
	}

	c.send(network.MsgJoinRoom, network.JoinRoomRequest{PlayerName: "Alice"})
	if msg := c.expectError(); msg.Kind != "not_found" {
		t.Errorf("Expected not_found for an empty room id, got %+v", msg)
	}
}

func TestGameServer_CreateWithGeneratedID(t *testing.T) {
	e := newTestEnv(t)
	c := e.dial(t)

	c.send(network.MsgCreateRoom, network.CreateRoomRequest{PlayerName: "Alice"})
	res := c.expectResult()
	if len(res.RoomID) != 6 {
		t.Errorf("Expected a generated 6 character room id, got %q", res.RoomID)
	}
	if _, ok := e.registry.GetRoom(res.RoomID); !ok {
		t.Error("Generated room should exist")
	}
}

func TestGameServer_ChatAndLeave(t *testing.T) {
	e := newTestEnv(t)
	clients := seatPlayers(e, t)

	clients[1].send(network.MsgChat, network.ChatRequest{Message: "hello"})
	update := clients[2].expectEvent(game.EventChat)
	if n := len(update.Room.Chat); n != 1 || update.Room.Chat[0].Text != "hello" {
		t.Errorf("Unexpected chat %+v", update.Room.Chat)
	}

	clients[2].send(network.MsgLeaveRoom, nil)
	if res := clients[2].expectResult(); res.Event != game.EventPlayerLeft {
		t.Errorf("Unexpected leave result %+v", res)
	}
	update = clients[0].expectEvent(game.EventPlayerLeft)
	if len(update.Room.Players) != 2 {
		t.Errorf("Expected 2 players after leaving, got %d", len(update.Room.Players))
	}
}

func TestGameServer_Disconnect(t *testing.T) {
	e := newTestEnv(t)
	clients := seatPlayers(e, t)

	clients[2].conn.Close()

	update := clients[0].expectEvent(game.EventPlayerDisconnected)
	for _, p := range update.Room.Players {
		if p.Name == "Carol" && !p.Disconnected {
			t.Error("Carol should be flagged disconnected")
		}
	}

	// Carol reclaims her seat from a new connection.
	c := e.dial(t)
	c.send(network.MsgJoinRoom, network.JoinRoomRequest{RoomID: "R1", PlayerName: "Carol"})
	if res := c.expectResult(); res.Event != game.EventPlayerReconnected {
		t.Errorf("Expected a reconnect, got %+v", res)
	}
}

func TestGameServer_HTTP(t *testing.T) {
	e := newTestEnv(t)
	seatPlayers(e, t)

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(e.http.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	status, body := get("/rooms")
	var rooms []RoomSummary
	if err := json.Unmarshal([]byte(body), &rooms); err != nil || status != http.StatusOK {
		t.Fatalf("GET /rooms: %d %v", status, err)
	}
	if len(rooms) != 1 || rooms[0].ID != "R1" || len(rooms[0].Players) != 3 {
		t.Errorf("Unexpected rooms %+v", rooms)
	}

	status, body = get("/rooms/R1")
	var room game.Snapshot
	if err := json.Unmarshal([]byte(body), &room); err != nil || status != http.StatusOK {
		t.Fatalf("GET /rooms/R1: %d %v", status, err)
	}
	for _, p := range room.Players {
		if p.Hand != nil || p.Notebook != nil {
			t.Errorf("Public view leaks %s's private state", p.Name)
		}
	}

	if status, _ := get("/rooms/nope"); status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", status)
	}

	status, body = get("/healthz")
	if status != http.StatusOK || !strings.Contains(body, `"rooms":1`) || !strings.Contains(body, `"sessions":3`) {
		t.Errorf("Unexpected health %d %s", status, body)
	}

	status, body = get("/metrics")
	if status != http.StatusOK || !strings.Contains(body, "test_online_players 3") {
		t.Errorf("Metrics should report 3 online players, got %d", status)
	}
}
