package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/numble/archive"
	"github.com/wfunc/numble/config"
	"github.com/wfunc/numble/logger"
	"github.com/wfunc/numble/models"
	"github.com/wfunc/numble/room"
	"github.com/wfunc/numble/services"
)

// One server per process: the monitor registers its prometheus collectors
// globally, so a second GameServer would panic.
var testServer *GameServer

func TestMain(m *testing.M) {
	logger.Init()

	cfg := &config.Config{
		Server: config.ServerConfig{
			HTTPAddress:    ":0",
			RPCAddress:     "127.0.0.1:0",
			MetricsAddress: ":0",
		},
		Game: config.GameConfig{
			DisconnectGrace: time.Second,
			IdleRoomTTL:     time.Hour,
			SweepInterval:   time.Hour,
		},
		Archive: config.ArchiveConfig{Driver: "memory"},
	}

	matches := services.NewMatchService(archive.NewMemoryStore())
	server, err := NewGameServer(cfg, matches)
	if err != nil {
		panic(err)
	}
	testServer = server

	code := m.Run()
	testServer.Shutdown()
	os.Exit(code)
}

func TestBannerEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	rec := httptest.NewRecorder()
	testServer.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["message"] != "NUMBLE API" {
		t.Fatalf("Expected the API banner, got %q", body["message"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	testServer.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
}

func TestRoomSnapshotNotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/room/ZZZZ", nil)
	rec := httptest.NewRecorder()
	testServer.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["error"] != "room not found" {
		t.Fatalf("Expected a room not found error, got %q", body["error"])
	}
}

func TestRoomSnapshotEndpoint(t *testing.T) {
	rm, err := testServer.registry.Create("pull-alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Codes are case-insensitive on the pull side too.
	req := httptest.NewRequest(http.MethodGet, "/api/room/"+strings.ToLower(rm.Code), nil)
	rec := httptest.NewRecorder()
	testServer.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var snapshot models.RoomSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snapshot.RoomID != rm.Code {
		t.Fatalf("Expected room %s, got %s", rm.Code, snapshot.RoomID)
	}
	if snapshot.GameState.Status != room.PhaseWaiting {
		t.Fatalf("Expected a waiting room, got %s", snapshot.GameState.Status)
	}
	if len(snapshot.Players) != 1 || snapshot.Players[0].ID != "pull-alice" {
		t.Fatalf("Expected the owner seated alone, got %+v", snapshot.Players)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("secret")) {
		t.Fatal("The snapshot must never carry secrets")
	}
}

// dialWS connects a websocket client to the shared router.
func dialWS(t *testing.T, httpServer *httptest.Server, identity string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/ws/" + identity
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed for %s: %v", identity, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent decodes the next frame into a generic map.
func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]interface{}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return event
}

func TestWebSocketCreateRoom(t *testing.T) {
	httpServer := httptest.NewServer(testServer.router)
	defer httpServer.Close()

	conn := dialWS(t, httpServer, "ws-creator")
	if err := conn.WriteJSON(map[string]string{"action": "create_room"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	created := readEvent(t, conn)
	if created["type"] != "room_created" {
		t.Fatalf("Expected a room_created event, got %v", created["type"])
	}
	code, _ := created["room_id"].(string)
	if code == "" {
		t.Fatal("Expected a room code in the room_created event")
	}

	// Setup is not open until an opponent arrives.
	if err := conn.WriteJSON(map[string]string{
		"action": "set_setup", "room_id": code, "name": "Solo", "secret": "1234",
	}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	errEvent := readEvent(t, conn)
	if errEvent["type"] != "error" {
		t.Fatalf("Expected an error event, got %v", errEvent["type"])
	}
	if msg, _ := errEvent["message"].(string); msg == "" {
		t.Fatal("Expected an error message")
	}
}

func TestWebSocketJoinOrder(t *testing.T) {
	httpServer := httptest.NewServer(testServer.router)
	defer httpServer.Close()

	alice := dialWS(t, httpServer, "ws-alice")
	if err := alice.WriteJSON(map[string]string{"action": "create_room"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	created := readEvent(t, alice)
	code, _ := created["room_id"].(string)
	if code == "" {
		t.Fatalf("Expected a room code, got %v", created)
	}

	bob := dialWS(t, httpServer, "ws-bob")
	if err := bob.WriteJSON(map[string]string{"action": "join_room", "room_id": code}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	// The joiner sees the broadcast first, then the personal confirmation.
	first := readEvent(t, bob)
	if first["type"] != "player_joined" {
		t.Fatalf("Expected player_joined first, got %v", first["type"])
	}
	second := readEvent(t, bob)
	if second["type"] != "joined_room" {
		t.Fatalf("Expected joined_room second, got %v", second["type"])
	}
	if second["room_id"] != code {
		t.Fatalf("Expected room %s, got %v", code, second["room_id"])
	}

	// The host sees the same broadcast.
	hostView := readEvent(t, alice)
	if hostView["type"] != "player_joined" {
		t.Fatalf("Expected player_joined for the host, got %v", hostView["type"])
	}
	state, _ := hostView["game_state"].(map[string]interface{})
	if state["status"] != room.PhaseSetup {
		t.Fatalf("Expected the room to enter setup, got %v", state["status"])
	}
}

func TestWebSocketRejectsGarbage(t *testing.T) {
	httpServer := httptest.NewServer(testServer.router)
	defer httpServer.Close()

	conn := dialWS(t, httpServer, "ws-garbage")
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	errEvent := readEvent(t, conn)
	if errEvent["type"] != "error" {
		t.Fatalf("Expected an error event, got %v", errEvent["type"])
	}

	// The connection survives a malformed frame.
	if err := conn.WriteJSON(map[string]string{"action": "unknown_thing"}); err != nil {
		t.Fatalf("WriteJSON failed after garbage frame: %v", err)
	}
	next := readEvent(t, conn)
	if next["type"] != "error" {
		t.Fatalf("Expected an error event for an unknown action, got %v", next["type"])
	}
}
