// services/match_service.go
package services

import (
	"github.com/google/uuid"

	"github.com/wfunc/numble/archive"
	"github.com/wfunc/numble/logger"
	"github.com/wfunc/numble/models"
)

// MatchService sits between the rooms and the archive. Rooms hand it
// finished matches; the RPC surface queries it for history and stats.
type MatchService struct {
	store archive.Store
}

func NewMatchService(store archive.Store) *MatchService {
	return &MatchService{store: store}
}

// RecordMatch archives the record without blocking the caller. Rooms call
// it from their own goroutine, so the write happens in the background; a
// failed write is logged and dropped, the outcome has already been
// delivered to the players.
func (s *MatchService) RecordMatch(record *models.MatchRecord) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	go func() {
		if err := s.store.SaveMatch(record); err != nil {
			logger.Log.Errorf("Failed to archive match %s (room %s): %v", record.ID, record.RoomCode, err)
		}
	}()
}

// RecentMatches returns up to limit archived matches, newest first.
func (s *MatchService) RecentMatches(limit int) ([]models.MatchRecord, error) {
	return s.store.RecentMatches(limit)
}

// PlayerStats returns the archived results for one identity.
func (s *MatchService) PlayerStats(identity string) (*models.PlayerStats, error) {
	return s.store.PlayerStats(identity)
}
