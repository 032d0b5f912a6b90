package network

// Inbound action names (client -> server).
const (
	ActionCreateRoom  = "create_room"
	ActionJoinRoom    = "join_room"
	ActionSetSetup    = "set_setup"
	ActionStartGame   = "start_game"
	ActionSubmitGuess = "submit_guess"
	ActionRematch     = "rematch"
)

// Outbound event names (server -> client).
const (
	EventRoomCreated    = "room_created"
	EventJoinedRoom     = "joined_room"
	EventPlayerJoined   = "player_joined"
	EventPlayerReady    = "player_ready"
	EventGameStarted    = "game_started"
	EventGuessMade      = "guess_made"
	EventGameOver       = "game_over"
	EventRematchStarted = "rematch_started"
	EventError          = "error"
)

// Action is the tagged record every client frame decodes into. The Action
// field selects the handler; the others are filled per action.
type Action struct {
	Action string `json:"action"`
	RoomID string `json:"room_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Secret string `json:"secret,omitempty"`
	Guess  string `json:"guess,omitempty"`
}
