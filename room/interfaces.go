package room

import "github.com/wfunc/numble/models"

// Broadcaster delivers room events to seated identities. It is defined here
// to break the import cycle between room and broadcast. Implementations
// must deliver the events of one room in call order.
type Broadcaster interface {
	BroadcastToRoom(code string, identities []string, event interface{})
}

// Recorder archives finished matches. Implementations must not block; the
// room actor invokes it inline after emitting game_over.
type Recorder interface {
	RecordMatch(record *models.MatchRecord)
}
