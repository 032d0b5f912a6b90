// client/main.go is a small interactive console client for playing a duel
// against a running server. Run two of them with different identities to
// play both seats.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	addr     = flag.String("addr", "localhost:8080", "server host:port")
	identity = flag.String("identity", "", "player identity (default: random)")
)

func main() {
	flag.Parse()

	id := *identity
	if id == "" {
		id = uuid.New().String()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/api/ws/" + id}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	var mutex sync.Mutex
	currentRoom := ""

	// Read loop: print every event and remember which room we are in.
	go func() {
		defer close(done)
		for {
			var event map[string]interface{}
			if err := c.ReadJSON(&event); err != nil {
				log.Println("Read error:", err)
				return
			}
			pretty, _ := json.Marshal(event)
			log.Printf("<- %s", pretty)

			switch event["type"] {
			case "room_created", "joined_room":
				if code, ok := event["room_id"].(string); ok {
					mutex.Lock()
					currentRoom = code
					mutex.Unlock()
				}
			}
		}
	}()

	roomID := func() string {
		mutex.Lock()
		defer mutex.Unlock()
		return currentRoom
	}

	sendAction := func(action map[string]string) {
		if err := c.WriteJSON(action); err != nil {
			log.Println("Write error:", err)
		}
	}

	log.Printf("Playing as %s", id)
	log.Println("Commands: create | join CODE | setup NAME SECRET | start | guess DIGITS | rematch | quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			closeConn(c, done)
			return
		case line, ok := <-lines:
			if !ok {
				closeConn(c, done)
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "create":
				sendAction(map[string]string{"action": "create_room"})
			case "join":
				if len(fields) < 2 {
					log.Println("Usage: join CODE")
					continue
				}
				sendAction(map[string]string{
					"action":  "join_room",
					"room_id": strings.ToUpper(fields[1]),
				})
			case "setup":
				if len(fields) < 3 {
					log.Println("Usage: setup NAME SECRET")
					continue
				}
				sendAction(map[string]string{
					"action":  "set_setup",
					"room_id": roomID(),
					"name":    fields[1],
					"secret":  fields[2],
				})
			case "start":
				sendAction(map[string]string{"action": "start_game"})
			case "guess":
				if len(fields) < 2 {
					log.Println("Usage: guess DIGITS")
					continue
				}
				sendAction(map[string]string{"action": "submit_guess", "guess": fields[1]})
			case "rematch":
				sendAction(map[string]string{"action": "rematch"})
			case "quit":
				closeConn(c, done)
				return
			default:
				log.Printf("Unknown command %q", fields[0])
			}
		}
	}
}

// closeConn sends a clean close frame and waits briefly for the server's
// acknowledgement.
func closeConn(c *websocket.Conn, done chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("Write close error:", err)
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
