// archive/archive.go
package archive

import (
	"fmt"

	"github.com/wfunc/numble/config"
	"github.com/wfunc/numble/models"
)

// defaultHistoryLimit bounds RecentMatches when the caller passes no limit.
const defaultHistoryLimit = 100

// Store is the match archive backend. Implementations persist finished
// matches and answer history and stats queries; all methods are safe for
// concurrent use.
type Store interface {
	SaveMatch(record *models.MatchRecord) error
	RecentMatches(limit int) ([]models.MatchRecord, error)
	PlayerStats(identity string) (*models.PlayerStats, error)
	Close() error
}

// Open builds the store selected by cfg.Driver. An empty driver means
// "memory".
func Open(cfg config.ArchiveConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		pg := cfg.Postgres
		return NewGormPostgres(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "postgres_raw":
		pg := cfg.Postgres
		return NewPostgres(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

// normalizeLimit applies the default when the caller passes no limit.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	return limit
}
