// archive/redis.go
package archive

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/numble/config"
	"github.com/wfunc/numble/models"
)

const (
	matchesKey     = "numble:matches"
	statsKeyPrefix = "numble:stats:"
)

// RedisStore archives matches in Redis: a capped list of recent matches
// plus one counter hash per player.
type RedisStore struct {
	client       *redis.Client
	historyLimit int
	matchTTL     time.Duration
}

// NewRedisStore connects to the configured server and pings it.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisStoreWithClient(client, cfg), nil
}

// NewRedisStoreWithClient wraps an existing client. Tests use it to point
// the store at an embedded server.
func NewRedisStoreWithClient(client *redis.Client, cfg config.RedisConfig) *RedisStore {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &RedisStore{
		client:       client,
		historyLimit: limit,
		matchTTL:     cfg.MatchTTL,
	}
}

// SaveMatch pushes the record onto the history list and bumps each
// player's counters in a single transaction.
func (r *RedisStore) SaveMatch(record *models.MatchRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, matchesKey, payload)
	pipe.LTrim(ctx, matchesKey, 0, int64(r.historyLimit-1))
	if r.matchTTL > 0 {
		pipe.Expire(ctx, matchesKey, r.matchTTL)
	}

	for _, p := range record.Players {
		key := statsKeyPrefix + p.Identity
		pipe.HIncrBy(ctx, key, "matches", 1)
		switch {
		case record.Draw:
			pipe.HIncrBy(ctx, key, "draws", 1)
		case record.WinnerID == p.Identity:
			pipe.HIncrBy(ctx, key, "wins", 1)
		default:
			pipe.HIncrBy(ctx, key, "losses", 1)
		}
	}

	_, err = pipe.Exec(ctx)
	return err
}

// RecentMatches returns up to limit matches, newest first. The list is
// trimmed on every save, so at most historyLimit entries exist.
func (r *RedisStore) RecentMatches(limit int) ([]models.MatchRecord, error) {
	limit = normalizeLimit(limit)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := r.client.LRange(ctx, matchesKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	matches := make([]models.MatchRecord, 0, len(raw))
	for _, item := range raw {
		var record models.MatchRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, err
		}
		matches = append(matches, record)
	}
	return matches, nil
}

// PlayerStats reads the player's counter hash. A missing hash yields
// zeroed stats.
func (r *RedisStore) PlayerStats(identity string) (*models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, statsKeyPrefix+identity).Result()
	if err != nil {
		return nil, err
	}

	stats := &models.PlayerStats{Identity: identity}
	stats.Matches = hashInt(fields, "matches")
	stats.Wins = hashInt(fields, "wins")
	stats.Losses = hashInt(fields, "losses")
	stats.Draws = hashInt(fields, "draws")
	return stats, nil
}

// Close closes the client connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func hashInt(fields map[string]string, name string) int {
	n, _ := strconv.Atoi(fields[name])
	return n
}
