// Command client is a line-oriented websocket client for playing by hand.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	"github.com/wfunc/listentome/game"
	"github.com/wfunc/listentome/network"
)

const help = `commands:
  create [room]              create a room (generated id when omitted)
  join <room>                join or reconnect to a room
  start                      deal and start the game
  say <person> <place> <event>
  respond [card]             play a card, or pass without one
  view <playerId>            look at the card a player lent you
  done                       finish viewing
  guess <person> <place> <event>
  chat <message...>
  leave
  quit`

func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	var data []byte
	if v != nil {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func printUpdate(update network.RoomUpdate) {
	room := update.Room
	fmt.Printf("[%s] room %s, phase %s", update.Event, room.ID, room.GameState)
	if room.CurrentTurn != "" {
		if p, ok := room.Player(room.CurrentTurn); ok {
			fmt.Printf(", turn: %s", p.Name)
		}
	}
	fmt.Println()
	for _, p := range room.Players {
		status := ""
		if !p.IsAlive {
			status += " (eliminated)"
		}
		if p.Disconnected {
			status += " (disconnected)"
		}
		fmt.Printf("  %s %s: %d cards%s\n", p.ID, p.Name, p.HandSize, status)
		for _, c := range p.Hand {
			fmt.Printf("      %-4s %-6s %s\n", c.ID, c.Type, c.Content)
		}
	}
	if s := room.CurrentSentence; s != nil {
		fmt.Printf("  sentence: %s / %s / %s\n", s.Person.Content, s.Place.Content, s.Event.Content)
	}
	if len(room.Log) > 0 {
		fmt.Printf("  > %s\n", room.Log[len(room.Log)-1])
	}
}

// lastSeen holds the highest room Seq printed per room. Updates can arrive
// out of order, older ones are dropped.
type lastSeen map[string]uint64

func (l lastSeen) fresh(room game.Snapshot) bool {
	if seq, ok := l[room.ID]; ok && room.Seq <= seq {
		return false
	}
	l[room.ID] = room.Seq
	return true
}

func printPacket(packet *network.Packet, seen lastSeen) {
	switch packet.MsgID {
	case network.MsgRoomUpdate:
		var update network.RoomUpdate
		if err := json.Unmarshal(packet.Data, &update); err == nil {
			if seen.fresh(update.Room) {
				printUpdate(update)
			}
			return
		}
	case network.MsgViewResult:
		var view network.ViewResult
		if err := json.Unmarshal(packet.Data, &view); err == nil {
			fmt.Printf("you saw: %s (%s) %s\n", view.Card.ID, view.Card.Type, view.Card.Content)
			return
		}
	case network.MsgGameOver:
		var over network.GameOver
		if err := json.Unmarshal(packet.Data, &over); err == nil {
			fmt.Printf("game over, winner: %q\n", over.Room.WinnerName())
			for _, c := range over.Room.BottomCards {
				fmt.Printf("  bottom: %s %s\n", c.ID, c.Content)
			}
			return
		}
	case network.MsgResult:
		var res network.Result
		if err := json.Unmarshal(packet.Data, &res); err == nil {
			fmt.Printf("ok %s %s correct=%v\n", res.RoomID, res.Event, res.Correct)
			return
		}
	case network.MsgError:
		var e network.Error
		if err := json.Unmarshal(packet.Data, &e); err == nil {
			fmt.Printf("error (%s): %s\n", e.Kind, e.Message)
			return
		}
	}
	fmt.Printf("<- %d: %s\n", packet.MsgID, packet.Data)
}

// command turns an input line into a message. ok is false for unknown or
// malformed input.
func command(line, name string) (msgID uint16, payload interface{}, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, false
	}
	args := fields[1:]
	switch fields[0] {
	case "create":
		req := network.CreateRoomRequest{PlayerName: name}
		if len(args) > 0 {
			req.RoomID = args[0]
		}
		return network.MsgCreateRoom, req, true
	case "join":
		if len(args) != 1 {
			return 0, nil, false
		}
		return network.MsgJoinRoom, network.JoinRoomRequest{RoomID: args[0], PlayerName: name}, true
	case "start":
		return network.MsgStartGame, nil, true
	case "say":
		if len(args) != 3 {
			return 0, nil, false
		}
		return network.MsgMakeSentence, game.SentenceRequest{PersonID: args[0], PlaceID: args[1], EventID: args[2]}, true
	case "respond":
		req := network.RespondRequest{}
		if len(args) > 0 {
			req.CardID = args[0]
		}
		return network.MsgRespond, req, true
	case "view":
		if len(args) != 1 {
			return 0, nil, false
		}
		return network.MsgViewCard, network.ViewCardRequest{TargetPlayerID: args[0]}, true
	case "done":
		return network.MsgFinishViewing, nil, true
	case "guess":
		if len(args) != 3 {
			return 0, nil, false
		}
		return network.MsgGuessBottom, game.GuessRequest{PersonID: args[0], PlaceID: args[1], EventID: args[2]}, true
	case "chat":
		if len(args) == 0 {
			return 0, nil, false
		}
		return network.MsgChat, network.ChatRequest{Message: strings.Join(args, " ")}, true
	case "leave":
		return network.MsgLeaveRoom, nil, true
	}
	return 0, nil, false
}

func main() {
	addr := pflag.StringP("addr", "a", "localhost:8080", "server address")
	name := pflag.StringP("name", "n", "", "player name")
	heartbeat := pflag.Duration("heartbeat", 20*time.Second, "heartbeat interval")
	pflag.Parse()

	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--name is required")
		os.Exit(2)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	fmt.Printf("Connecting to %s\n", u.String())
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		seen := make(lastSeen)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				fmt.Println("read error:", err)
				return
			}
			packet, err := network.DecodePacket(message)
			if err != nil {
				fmt.Printf("invalid packet of size %d\n", len(message))
				continue
			}
			printPacket(packet, seen)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	ticker := time.NewTicker(*heartbeat)
	defer ticker.Stop()

	fmt.Println(help)
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := send(c, network.MsgHeartbeat, nil); err != nil {
				fmt.Println("heartbeat failed:", err)
				return
			}
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "quit" {
				c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			msgID, payload, valid := command(line, *name)
			if !valid {
				fmt.Println(help)
				continue
			}
			if err := send(c, msgID, payload); err != nil {
				fmt.Println("write error:", err)
				return
			}
		case <-interrupt:
			fmt.Println("interrupt received, closing connection")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				fmt.Println("write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
