package room

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/wfunc/numble/timer"
)

func TestCreateAllocatesUniqueCodes(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 0)

	pattern := regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4,6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r, err := registry.Create(strings.Repeat("x", i+1))
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		if !pattern.MatchString(r.Code) {
			t.Fatalf("Code %q does not match the room code alphabet", r.Code)
		}
		if seen[r.Code] {
			t.Fatalf("Duplicate code %q", r.Code)
		}
		seen[r.Code] = true
	}
	if registry.Count() != 100 {
		t.Errorf("Expected 100 rooms, got %d", registry.Count())
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 0)

	if _, err := registry.Join("ZZZZ", "bob"); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestJoinFullRoomRollsBackClaim(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 0)
	r, err := registry.Create("alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := registry.Join(r.Code, "bob"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	// A third identity is rejected even though bob might be disconnected.
	r.Disconnect("bob")
	if _, err := registry.Join(r.Code, "carol"); err != ErrRoomFull {
		t.Fatalf("Expected ErrRoomFull, got %v", err)
	}

	// The failed join must not leave carol claimed.
	if _, err := registry.Create("carol"); err != nil {
		t.Errorf("Expected carol to be free after a rejected join, got %v", err)
	}
}

func TestOneRoomPerIdentity(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 0)
	r1, err := registry.Create("alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r2, err := registry.Create("bob")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := registry.Create("alice"); err != ErrAlreadyInRoom {
		t.Errorf("Expected ErrAlreadyInRoom on a second create, got %v", err)
	}
	if _, err := registry.Join(r1.Code, "bob"); err != ErrAlreadyInRoom {
		t.Errorf("Expected ErrAlreadyInRoom, got %v", err)
	}

	// Rejoining one's own room stays fine.
	if _, err := registry.Join(r2.Code, "bob"); err != nil {
		t.Errorf("Expected self-rejoin to succeed, got %v", err)
	}
}

func TestJoinNormalizesCode(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 0)
	r, err := registry.Create("alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	typed := "  " + strings.ToLower(r.Code) + " "
	if _, err := registry.Join(typed, "bob"); err != nil {
		t.Fatalf("Expected the code to be normalized, got %v", err)
	}
	if _, exists := registry.Get(strings.ToLower(r.Code)); !exists {
		t.Error("Get should normalize codes too")
	}
}

func TestRoomForIdentity(t *testing.T) {
	registry, _, _ := newTestRegistry(t, 0)
	r, err := registry.Create("alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, seated := registry.RoomFor("alice")
	if !seated || found != r {
		t.Fatal("Expected RoomFor to resolve the creator's room")
	}
	if _, seated := registry.RoomFor("bob"); seated {
		t.Fatal("Expected no room for an unseated identity")
	}

	registry.Remove(r.Code)
	if _, seated := registry.RoomFor("alice"); seated {
		t.Fatal("Expected the identity to be released when the room is removed")
	}
	if _, err := registry.Create("alice"); err != nil {
		t.Errorf("Expected alice to be free after removal, got %v", err)
	}
}

func TestSweepReclaimsIdleRooms(t *testing.T) {
	broadcaster := &MockBroadcaster{}
	timers := timer.NewManager()
	defer timers.Stop()
	registry := NewRegistry(broadcaster, &MockRecorder{}, timers, 0, 30*time.Millisecond)
	defer registry.Close()

	idle, err := registry.Create("alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := registry.Create("bob"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	idle.Disconnect("alice")
	deadline := time.Now().Add(time.Second)
	for idle.ConnectedPlayers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Disconnect never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(60 * time.Millisecond)
	if removed := registry.Sweep(); removed != 1 {
		t.Fatalf("Expected 1 room reclaimed, got %d", removed)
	}
	if _, exists := registry.Get(idle.Code); exists {
		t.Error("Expected the idle room to be gone")
	}
	// bob is still connected; his room survives any number of sweeps.
	if registry.Count() != 1 {
		t.Errorf("Expected the connected room to survive, got %d rooms", registry.Count())
	}
	if _, err := registry.Create("alice"); err != nil {
		t.Errorf("Expected alice to be released by the sweep, got %v", err)
	}
}
