package archive

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wfunc/numble/config"
)

func newTestRedisStore(t *testing.T, cfg config.RedisConfig) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	store := NewRedisStoreWithClient(client, cfg)
	t.Cleanup(func() { store.Close() })
	return store, mini
}

func TestRedisStore_HistoryCapped(t *testing.T) {
	store, _ := newTestRedisStore(t, config.RedisConfig{HistoryLimit: 2})
	base := time.Now()
	for i := 0; i < 3; i++ {
		record := testRecord(fmt.Sprintf("match-%d", i), "alice", false, base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveMatch(record); err != nil {
			t.Fatalf("SaveMatch failed: %v", err)
		}
	}

	matches, err := store.RecentMatches(10)
	if err != nil {
		t.Fatalf("RecentMatches failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected the history to be capped at 2, got %d", len(matches))
	}
	if matches[0].ID != "match-2" || matches[1].ID != "match-1" {
		t.Fatalf("Expected newest-first order, got %s then %s", matches[0].ID, matches[1].ID)
	}
}

func TestRedisStore_PlayerStats(t *testing.T) {
	store, _ := newTestRedisStore(t, config.RedisConfig{})
	base := time.Now()
	saves := []struct {
		id     string
		winner string
		draw   bool
	}{
		{"m1", "alice", false},
		{"m2", "bob", false},
		{"m3", "", true},
	}
	for i, save := range saves {
		record := testRecord(save.id, save.winner, save.draw, base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveMatch(record); err != nil {
			t.Fatalf("SaveMatch failed: %v", err)
		}
	}

	stats, err := store.PlayerStats("alice")
	if err != nil {
		t.Fatalf("PlayerStats failed: %v", err)
	}
	if stats.Matches != 3 || stats.Wins != 1 || stats.Losses != 1 || stats.Draws != 1 {
		t.Fatalf("Expected matches/wins/losses/draws 3/1/1/1, got %d/%d/%d/%d",
			stats.Matches, stats.Wins, stats.Losses, stats.Draws)
	}

	unknown, err := store.PlayerStats("carol")
	if err != nil {
		t.Fatalf("PlayerStats failed for an unknown player: %v", err)
	}
	if unknown.Matches != 0 {
		t.Fatalf("Expected zeroed stats for an unknown player, got %+v", unknown)
	}
}

func TestRedisStore_MatchTTL(t *testing.T) {
	store, mini := newTestRedisStore(t, config.RedisConfig{MatchTTL: time.Minute})
	if err := store.SaveMatch(testRecord("m1", "alice", false, time.Now())); err != nil {
		t.Fatalf("SaveMatch failed: %v", err)
	}

	if ttl := mini.TTL(matchesKey); ttl != time.Minute {
		t.Fatalf("Expected a %v TTL on the match list, got %v", time.Minute, ttl)
	}
}

func TestRedisStore_RecentMatchesRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t, config.RedisConfig{})
	saved := testRecord("m1", "bob", false, time.Now())
	if err := store.SaveMatch(saved); err != nil {
		t.Fatalf("SaveMatch failed: %v", err)
	}

	matches, err := store.RecentMatches(1)
	if err != nil {
		t.Fatalf("RecentMatches failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	loaded := matches[0]
	if loaded.ID != saved.ID || loaded.WinnerID != "bob" || loaded.WinnerName != "Bob" {
		t.Fatalf("Expected the saved record back, got %+v", loaded)
	}
	if len(loaded.Players) != 2 || loaded.Players[1].Secret != "5678" {
		t.Fatalf("Expected both players with secrets, got %+v", loaded.Players)
	}
}
