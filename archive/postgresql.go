// archive/postgresql.go
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/wfunc/numble/models"
)

// Postgres archives matches through database/sql without an ORM. It reads
// and writes the same match_records table as the GORM driver.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the database, verifies the connection and creates the
// schema when missing.
func NewPostgres(host string, port int, user, password, dbname string) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &Postgres{db: db}, nil
}

// initTables creates the match_records table and its indexes.
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS match_records (
            id SERIAL PRIMARY KEY,
            record_id VARCHAR(255) UNIQUE NOT NULL,
            room_code VARCHAR(255) NOT NULL,
            players JSONB NOT NULL,
            winner_id VARCHAR(255) NOT NULL DEFAULT '',
            winner_name VARCHAR(255) NOT NULL DEFAULT '',
            draw BOOLEAN NOT NULL DEFAULT FALSE,
            reason VARCHAR(100) NOT NULL DEFAULT '',
            rounds INT NOT NULL DEFAULT 0,
            started_at TIMESTAMP NOT NULL,
            finished_at TIMESTAMP NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_match_records_room_code ON match_records(room_code);
        CREATE INDEX IF NOT EXISTS idx_match_records_winner_id ON match_records(winner_id);
        CREATE INDEX IF NOT EXISTS idx_match_records_finished_at ON match_records(finished_at);
    `)

	return err
}

// SaveMatch inserts one finished match.
func (p *Postgres) SaveMatch(record *models.MatchRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO match_records
            (record_id, room_code, players, winner_id, winner_name, draw, reason, rounds, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `

	_, err = p.db.ExecContext(ctx, query,
		record.ID, record.RoomCode, string(players), record.WinnerID, record.WinnerName,
		record.Draw, record.Reason, record.Rounds, record.StartedAt, record.FinishedAt)
	return err
}

// RecentMatches returns up to limit matches, newest first.
func (p *Postgres) RecentMatches(limit int) ([]models.MatchRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        SELECT record_id, room_code, players, winner_id, winner_name, draw, reason, rounds, started_at, finished_at
        FROM match_records
        ORDER BY finished_at DESC
        LIMIT $1
    `

	rows, err := p.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.MatchRecord
	for rows.Next() {
		var record models.MatchRecord
		var players []byte
		if err := rows.Scan(&record.ID, &record.RoomCode, &players, &record.WinnerID,
			&record.WinnerName, &record.Draw, &record.Reason, &record.Rounds,
			&record.StartedAt, &record.FinishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &record.Players); err != nil {
			return nil, err
		}
		matches = append(matches, record)
	}
	return matches, rows.Err()
}

// PlayerStats aggregates one player's results with a jsonb containment
// match on the players column.
func (p *Postgres) PlayerStats(identity string) (*models.PlayerStats, error) {
	needle, err := json.Marshal([]map[string]string{{"identity": identity}})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN winner_id = $1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN draw THEN 1 ELSE 0 END), 0)
        FROM match_records
        WHERE players @> $2
    `

	stats := &models.PlayerStats{Identity: identity}
	err = p.db.QueryRowContext(ctx, query, identity, string(needle)).
		Scan(&stats.Matches, &stats.Wins, &stats.Draws)
	if err != nil {
		return nil, err
	}

	stats.Losses = stats.Matches - stats.Wins - stats.Draws
	return stats, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
