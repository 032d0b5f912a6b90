// archive/memory.go
package archive

import (
	"sync"

	"github.com/wfunc/numble/models"
)

// MemoryStore keeps the archive in process memory. It is the default
// backend; matches are lost on restart.
type MemoryStore struct {
	mutex   sync.RWMutex
	matches []models.MatchRecord
}

// NewMemoryStore creates an empty in-memory archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveMatch appends the record. Records arrive in finish order, so the
// slice stays oldest-first.
func (m *MemoryStore) SaveMatch(record *models.MatchRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.matches = append(m.matches, *record)
	return nil
}

// RecentMatches returns up to limit records, newest first.
func (m *MemoryStore) RecentMatches(limit int) ([]models.MatchRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	limit = normalizeLimit(limit)
	matches := make([]models.MatchRecord, 0, limit)
	for i := len(m.matches) - 1; i >= 0 && len(matches) < limit; i-- {
		matches = append(matches, m.matches[i])
	}
	return matches, nil
}

// PlayerStats scans the archive for the identity. Unknown players get
// zeroed stats rather than an error.
func (m *MemoryStore) PlayerStats(identity string) (*models.PlayerStats, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := &models.PlayerStats{Identity: identity}
	for i := range m.matches {
		record := &m.matches[i]
		if !matchHasPlayer(record, identity) {
			continue
		}
		stats.Matches++
		switch {
		case record.Draw:
			stats.Draws++
		case record.WinnerID == identity:
			stats.Wins++
		default:
			stats.Losses++
		}
	}
	return stats, nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryStore) Close() error {
	return nil
}

func matchHasPlayer(record *models.MatchRecord, identity string) bool {
	for _, p := range record.Players {
		if p.Identity == identity {
			return true
		}
	}
	return false
}
