// room/registry.go
package room

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/numble/timer"
)

// codeAlphabet skips 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeMinLength = 4
	codeMaxLength = 6
)

// Registry owns the code -> Room mapping and the reverse identity index.
// It is the only creator and destroyer of rooms; everything else borrows
// them by code.
type Registry struct {
	mutex      sync.RWMutex
	rooms      map[string]*Room
	identities map[string]string // identity -> room code

	broadcaster Broadcaster
	recorder    Recorder
	timers      *timer.Manager
	grace       time.Duration
	idleTTL     time.Duration
}

func NewRegistry(b Broadcaster, rec Recorder, timers *timer.Manager, grace, idleTTL time.Duration) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		identities:  make(map[string]string),
		broadcaster: b,
		recorder:    rec,
		timers:      timers,
		grace:       grace,
		idleTTL:     idleTTL,
	}
}

// NormalizeCode maps client-typed codes onto the canonical form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create allocates a fresh code and a room hosted by the given identity.
func (reg *Registry) Create(identity string) (*Room, error) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	if _, seated := reg.identities[identity]; seated {
		return nil, ErrAlreadyInRoom
	}

	code := reg.allocateCode()
	r := newRoom(code, identity, reg.broadcaster, reg.recorder, reg.timers, reg.grace)
	r.onVacated = reg.release
	reg.rooms[code] = r
	reg.identities[identity] = code
	r.start()
	return r, nil
}

// allocateCode draws codes until one misses the live set, growing the
// length toward codeMaxLength if collisions pile up. The caller never sees
// a failure.
func (reg *Registry) allocateCode() string {
	for attempt := 0; ; attempt++ {
		length := codeMinLength + attempt/8
		if length > codeMaxLength {
			length = codeMaxLength
		}
		code := randomCode(length)
		if _, taken := reg.rooms[code]; !taken {
			return code
		}
	}
}

func randomCode(length int) string {
	code := make([]byte, length)
	for i := range code {
		code[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(code)
}

// Join seats the identity in the room with the given code. Rejoining a room
// the identity already occupies succeeds without side effects; joining
// while seated elsewhere is rejected.
func (reg *Registry) Join(code, identity string) (*Room, error) {
	code = NormalizeCode(code)

	reg.mutex.Lock()
	r, exists := reg.rooms[code]
	if !exists {
		reg.mutex.Unlock()
		return nil, ErrRoomNotFound
	}
	if seated, ok := reg.identities[identity]; ok && seated != code {
		reg.mutex.Unlock()
		return nil, ErrAlreadyInRoom
	}
	// Claim the identity before releasing the lock so a concurrent join
	// cannot seat it twice; the claim is rolled back if the room says no.
	_, alreadySeated := reg.identities[identity]
	reg.identities[identity] = code
	reg.mutex.Unlock()

	if err := r.Join(identity); err != nil {
		if !alreadySeated {
			reg.release(identity)
		}
		return nil, err
	}
	return r, nil
}

func (reg *Registry) Get(code string) (*Room, bool) {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	r, exists := reg.rooms[NormalizeCode(code)]
	return r, exists
}

// RoomFor resolves the room an identity is currently seated in; the hub
// uses it to re-associate reconnecting clients.
func (reg *Registry) RoomFor(identity string) (*Room, bool) {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	code, seated := reg.identities[identity]
	if !seated {
		return nil, false
	}
	r, exists := reg.rooms[code]
	return r, exists
}

func (reg *Registry) Count() int {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	return len(reg.rooms)
}

// release drops an identity's claim; room actors call it when a forfeited
// seat is vacated.
func (reg *Registry) release(identity string) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	delete(reg.identities, identity)
}

// Remove closes the room and forgets everyone seated in it.
func (reg *Registry) Remove(code string) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	reg.removeLocked(NormalizeCode(code))
}

func (reg *Registry) removeLocked(code string) {
	r, exists := reg.rooms[code]
	if !exists {
		return
	}
	r.Close()
	delete(reg.rooms, code)
	for identity, c := range reg.identities {
		if c == code {
			delete(reg.identities, identity)
		}
	}
}

// Sweep reclaims rooms whose seats have held no live channel since before
// the idle TTL. Rooms inside a disconnect grace window are safe: the TTL is
// configured well above the grace period and every disconnect counts as
// activity. Returns the number of rooms removed.
func (reg *Registry) Sweep() int {
	cutoff := time.Now().Add(-reg.idleTTL)

	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	removed := 0
	for code, r := range reg.rooms {
		if r.ConnectedPlayers() == 0 && r.LastActivity().Before(cutoff) {
			reg.removeLocked(code)
			removed++
		}
	}
	return removed
}

// Close shuts every room down.
func (reg *Registry) Close() {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	for code := range reg.rooms {
		reg.removeLocked(code)
	}
}
