// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/numble/models"
	"github.com/wfunc/numble/monitor"
	"github.com/wfunc/numble/session"
)

// RoomBroadcaster fans room events out to the identities seated in the
// room. Calls for one room arrive in emission order from its actor and
// every connection serializes its writes, so both players observe the same
// event sequence.
type RoomBroadcaster struct {
	sessions *session.Manager
	monitor  *monitor.Monitor
}

func NewRoomBroadcaster(sessions *session.Manager, mon *monitor.Monitor) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessions: sessions,
		monitor:  mon,
	}
}

// BroadcastToRoom delivers the event to every seated identity that has a
// live channel. Delivery is best effort: a dead channel is the read loop's
// problem, not the room's.
func (b *RoomBroadcaster) BroadcastToRoom(code string, identities []string, event interface{}) {
	b.observe(event)
	for _, identity := range identities {
		sess, exists := b.sessions.Get(identity)
		if !exists {
			continue
		}
		_ = sess.Send(event)
	}
}

func (b *RoomBroadcaster) observe(event interface{}) {
	if b.monitor == nil {
		return
	}
	switch event.(type) {
	case *models.GuessMadeEvent:
		b.monitor.IncGuesses()
	case *models.GameOverEvent:
		b.monitor.IncGamesFinished()
	}
}
