// models/models.go
package models

import (
	"time"

	"github.com/wfunc/numble/game"
)

// Reasons attached to a finished game.
const (
	ReasonNormal       = "normal"
	ReasonDisconnected = "opponent_disconnected"
)

// GameStateView is the game_state object carried by room events and
// snapshots: the coarse phase plus the winner once there is one. WinnerID
// stays null for a draw and while the game is still open.
type GameStateView struct {
	Status   string  `json:"status"`
	WinnerID *string `json:"winner_id"`
}

// GuessRecord is one scored attempt against the opponent's secret. Attempt
// numbers are 1-based and contiguous per player within a sub-session.
type GuessRecord struct {
	Guess    string      `json:"guess"`
	Feedback []game.Mark `json:"feedback"`
	Attempt  int         `json:"attempt"`
}

// PlayerView is the public projection of one seat. Secrets never appear
// here; they are revealed only by the terminal game_over event.
type PlayerView struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	IsHost    bool          `json:"is_host"`
	IsReady   bool          `json:"is_ready"`
	Connected bool          `json:"connected"`
	Guesses   []GuessRecord `json:"guesses"`
}

// RoomSnapshot is the pull-side projection served by GET /api/room/{code}.
// It is computed on demand by the room itself, never cached, so it cannot
// disagree with the pushed event stream.
type RoomSnapshot struct {
	RoomID    string        `json:"room_id"`
	GameState GameStateView `json:"game_state"`
	Players   []PlayerView  `json:"players"`
	Draw      bool          `json:"draw"`
	Reason    string        `json:"reason,omitempty"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Outbound events. Each is a flat tagged record; Type carries one of the
// network.Event* names.

type RoomCreatedEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type JoinedRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type PlayerJoinedEvent struct {
	Type      string        `json:"type"`
	RoomID    string        `json:"room_id"`
	GameState GameStateView `json:"game_state"`
}

type PlayerReadyEvent struct {
	Type       string        `json:"type"`
	GameState  GameStateView `json:"game_state"`
	PlayerID   string        `json:"player_id"`
	PlayerName string        `json:"player_name"`
}

type GameStartedEvent struct {
	Type      string        `json:"type"`
	GameState GameStateView `json:"game_state"`
	Players   []PlayerView  `json:"players"`
}

type GuessMadeEvent struct {
	Type     string      `json:"type"`
	PlayerID string      `json:"player_id"`
	Guess    string      `json:"guess"`
	Feedback []game.Mark `json:"feedback"`
	Attempt  int         `json:"attempt"`
}

// GameOverEvent reveals both secrets. WinnerID is null on a draw.
type GameOverEvent struct {
	Type       string  `json:"type"`
	WinnerID   *string `json:"winner_id"`
	WinnerName string  `json:"winner_name"`
	P1Secret   string  `json:"p1_secret"`
	P2Secret   string  `json:"p2_secret"`
	Reason     string  `json:"reason"`
}

type RematchStartedEvent struct {
	Type      string        `json:"type"`
	GameState GameStateView `json:"game_state"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MatchRecord is the immutable archive row written once per finished
// sub-session.
type MatchRecord struct {
	ID         string        `json:"id"`
	RoomCode   string        `json:"room_code"`
	Players    []MatchPlayer `json:"players"`
	WinnerID   string        `json:"winner_id"` // empty on a draw
	WinnerName string        `json:"winner_name"`
	Draw       bool          `json:"draw"`
	Reason     string        `json:"reason"`
	Rounds     int           `json:"rounds"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// MatchPlayer is one player's line in a MatchRecord. Won means the player
// actually found the opponent's code; a forfeit winner may not have.
type MatchPlayer struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Secret   string `json:"secret"`
	Guesses  int    `json:"guesses"`
	Won      bool   `json:"won"`
}

// PlayerStats aggregates a player's archived results.
type PlayerStats struct {
	Identity string `json:"identity"`
	Matches  int    `json:"matches"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

// ServerStats is the live operational summary served over the admin RPC.
type ServerStats struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	ActiveRooms   int   `json:"active_rooms"`
	OnlinePlayers int   `json:"online_players"`
}
