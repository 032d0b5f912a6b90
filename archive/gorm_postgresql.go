// archive/gorm_postgresql.go
package archive

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/numble/models"
)

// GormPostgres archives matches in PostgreSQL through GORM.
type GormPostgres struct {
	db *gorm.DB
}

// MatchModel is the table mapping of models.MatchRecord. Players is stored
// as a jsonb document so stats can use containment queries.
type MatchModel struct {
	ID         uint                 `gorm:"primaryKey"`
	RecordID   string               `gorm:"uniqueIndex;not null"`
	RoomCode   string               `gorm:"index;not null"`
	Players    []models.MatchPlayer `gorm:"serializer:json;type:jsonb;not null"`
	WinnerID   string               `gorm:"index"`
	WinnerName string
	Draw       bool
	Reason     string
	Rounds     int
	StartedAt  time.Time
	FinishedAt time.Time `gorm:"index"`
	CreatedAt  time.Time
}

// TableName keeps the table shared with the raw database/sql driver.
func (MatchModel) TableName() string {
	return "match_records"
}

// NewGormPostgres opens the database and migrates the schema.
func NewGormPostgres(host string, port int, user, password, dbname string) (*GormPostgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&MatchModel{}); err != nil {
		return nil, err
	}

	return &GormPostgres{db: db}, nil
}

// SaveMatch inserts one finished match.
func (p *GormPostgres) SaveMatch(record *models.MatchRecord) error {
	row := MatchModel{
		RecordID:   record.ID,
		RoomCode:   record.RoomCode,
		Players:    record.Players,
		WinnerID:   record.WinnerID,
		WinnerName: record.WinnerName,
		Draw:       record.Draw,
		Reason:     record.Reason,
		Rounds:     record.Rounds,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
	}
	return p.db.Create(&row).Error
}

// RecentMatches returns up to limit matches, newest first.
func (p *GormPostgres) RecentMatches(limit int) ([]models.MatchRecord, error) {
	var rows []MatchModel
	err := p.db.Order("finished_at DESC").Limit(normalizeLimit(limit)).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	matches := make([]models.MatchRecord, 0, len(rows))
	for i := range rows {
		matches = append(matches, rows[i].toRecord())
	}
	return matches, nil
}

// PlayerStats aggregates one player's results with a jsonb containment
// match on the players column.
func (p *GormPostgres) PlayerStats(identity string) (*models.PlayerStats, error) {
	needle, err := json.Marshal([]map[string]string{{"identity": identity}})
	if err != nil {
		return nil, err
	}

	stats := &models.PlayerStats{Identity: identity}
	err = p.db.Raw(
		`
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN winner_id = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN draw THEN 1 ELSE 0 END), 0)
        FROM match_records
        WHERE players @> ?`,
		identity, string(needle),
	).Row().Scan(&stats.Matches, &stats.Wins, &stats.Draws)
	if err != nil {
		return nil, err
	}

	stats.Losses = stats.Matches - stats.Wins - stats.Draws
	return stats, nil
}

// Close closes the underlying connection pool.
func (p *GormPostgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m *MatchModel) toRecord() models.MatchRecord {
	return models.MatchRecord{
		ID:         m.RecordID,
		RoomCode:   m.RoomCode,
		Players:    m.Players,
		WinnerID:   m.WinnerID,
		WinnerName: m.WinnerName,
		Draw:       m.Draw,
		Reason:     m.Reason,
		Rounds:     m.Rounds,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}
