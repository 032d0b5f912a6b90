// room/room.go
package room

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wfunc/numble/game"
	"github.com/wfunc/numble/models"
	"github.com/wfunc/numble/network"
	"github.com/wfunc/numble/state"
	"github.com/wfunc/numble/timer"
)

// Phases of a room's lifecycle. A rematch reopens setup on the same room
// instead of creating a new one.
const (
	PhaseWaiting  = "waiting"
	PhaseSetup    = "setup"
	PhasePlaying  = "playing"
	PhaseFinished = "finished"
)

// Guard errors. Each maps to one error event on the wire and leaves room
// state untouched.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full")
	ErrAlreadyInRoom     = errors.New("already in a room")
	ErrNotInRoom         = errors.New("not a player in this room")
	ErrInvalidName       = errors.New("name must be 1-12 characters")
	ErrNotReady          = errors.New("both players must be ready")
	ErrNotHost           = errors.New("only the host can start the game")
	ErrWrongPhase        = errors.New("action not allowed in this phase")
	ErrSetupLocked       = errors.New("setup is locked once both players are ready")
	ErrAttemptsExhausted = errors.New("no attempts left")
	ErrAlreadyFinished   = errors.New("the game is already finished")
	ErrRoomClosed        = errors.New("room closed")
)

const maxNameLength = 12

// Seat is one player's slot. Every field is owned by the room actor.
type Seat struct {
	Identity  string
	Name      string
	Secret    string
	Ready     bool
	Connected bool
	History   []models.GuessRecord

	winRound int   // sequence number of the first all-exact guess, 0 = none
	graceGen int64 // bumped on reconnect so stale timer fires are dropped
	graceID  int64 // pending grace timer id, 0 = none
}

// Result is the explicit outcome sentinel: a nil *Result means "no result
// yet", Draw set means a draw, anything else names the winner.
type Result struct {
	WinnerIdentity string
	WinnerName     string
	Draw           bool
	Reason         string
}

type cmdKind int

const (
	cmdJoin cmdKind = iota
	cmdSetup
	cmdStart
	cmdGuess
	cmdRematch
	cmdDisconnect
	cmdReconnect
	cmdGraceExpired
	cmdSnapshot
)

type command struct {
	kind     cmdKind
	identity string
	name     string
	secret   string
	guess    string
	gen      int64
	reply    chan error
	snap     chan *models.RoomSnapshot
}

// Room is a single duel session. One goroutine (the actor started by the
// registry) owns all mutable state; everything else reaches the room
// through the inbox, so commands from both players serialize in arrival
// order and events go out in a single, well-defined sequence.
type Room struct {
	Code      string
	CreatedAt time.Time

	machine   *state.Machine
	seats     [2]*Seat // seat 0 is the host
	startedAt time.Time
	result    *Result

	inbox chan command
	done  chan struct{}
	once  sync.Once

	broadcaster Broadcaster
	recorder    Recorder
	timers      *timer.Manager
	grace       time.Duration
	onVacated   func(identity string)

	// mirror holds the two fields the registry sweep reads without going
	// through the actor.
	mirror struct {
		sync.RWMutex
		connected    int
		lastActivity time.Time
	}
}

func newRoom(code, owner string, b Broadcaster, rec Recorder, timers *timer.Manager, grace time.Duration) *Room {
	machine := state.NewMachine(PhaseWaiting)
	machine.AddTransition(PhaseWaiting, PhaseSetup)
	machine.AddTransition(PhaseSetup, PhasePlaying)
	machine.AddTransition(PhaseSetup, PhaseFinished)
	machine.AddTransition(PhasePlaying, PhaseFinished)
	machine.AddTransition(PhaseFinished, PhaseSetup)

	r := &Room{
		Code:        code,
		CreatedAt:   time.Now(),
		machine:     machine,
		inbox:       make(chan command, 32),
		done:        make(chan struct{}),
		broadcaster: b,
		recorder:    rec,
		timers:      timers,
		grace:       grace,
	}
	r.seats[0] = &Seat{Identity: owner, Connected: true}
	r.touch()
	return r
}

func (r *Room) start() {
	go r.loop()
}

// Close stops the actor. Pending and future calls fail with ErrRoomClosed.
func (r *Room) Close() {
	r.once.Do(func() { close(r.done) })
}

// Phase is safe to call from any goroutine.
func (r *Room) Phase() string {
	return r.machine.Current()
}

// ConnectedPlayers reports how many seats currently hold a live channel.
func (r *Room) ConnectedPlayers() int {
	r.mirror.RLock()
	defer r.mirror.RUnlock()
	return r.mirror.connected
}

// LastActivity is the time of the last applied mutation; the idle sweep
// measures from it.
func (r *Room) LastActivity() time.Time {
	r.mirror.RLock()
	defer r.mirror.RUnlock()
	return r.mirror.lastActivity
}

// --- command entry points ---

func (r *Room) post(c command) error {
	select {
	case r.inbox <- c:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

func (r *Room) exec(c command) error {
	c.reply = make(chan error, 1)
	if err := r.post(c); err != nil {
		return err
	}
	select {
	case err := <-c.reply:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// Join seats the identity. Rejoining a room the identity already occupies
// is a no-op; use the registry to join, which also maintains the reverse
// index.
func (r *Room) Join(identity string) error {
	return r.exec(command{kind: cmdJoin, identity: identity})
}

// CommitSetup stores the player's display name and secret code and marks
// the seat ready.
func (r *Room) CommitSetup(identity, name, secret string) error {
	return r.exec(command{kind: cmdSetup, identity: identity, name: name, secret: secret})
}

// Start moves the room into playing. Host only, both seats must be ready.
func (r *Room) Start(identity string) error {
	return r.exec(command{kind: cmdStart, identity: identity})
}

// SubmitGuess scores the guess against the opponent's secret.
func (r *Room) SubmitGuess(identity, guess string) error {
	return r.exec(command{kind: cmdGuess, identity: identity, guess: guess})
}

// Rematch reopens setup after a finished game, keeping seats and names.
func (r *Room) Rematch(identity string) error {
	return r.exec(command{kind: cmdRematch, identity: identity})
}

// Disconnect marks the identity's seat as having lost its channel. Fire and
// forget: the hub has nothing to do with the outcome.
func (r *Room) Disconnect(identity string) {
	_ = r.post(command{kind: cmdDisconnect, identity: identity})
}

// Reconnect restores the seat's channel and cancels its forfeit clock.
func (r *Room) Reconnect(identity string) {
	_ = r.post(command{kind: cmdReconnect, identity: identity})
}

// Snapshot returns the pull-side projection of the room. The actor computes
// it between commands, so it is always consistent with the pushed events.
func (r *Room) Snapshot() (*models.RoomSnapshot, error) {
	c := command{kind: cmdSnapshot, snap: make(chan *models.RoomSnapshot, 1)}
	if err := r.post(c); err != nil {
		return nil, err
	}
	select {
	case snap := <-c.snap:
		return snap, nil
	case <-r.done:
		return nil, ErrRoomClosed
	}
}

// --- actor ---

func (r *Room) loop() {
	for {
		select {
		case c := <-r.inbox:
			r.applyPass(r.drain(c))
		case <-r.done:
			return
		}
	}
}

// drain collects every command already queued so that simultaneous
// submissions resolve within a single pass.
func (r *Room) drain(first command) []command {
	pass := []command{first}
	for {
		select {
		case c := <-r.inbox:
			pass = append(pass, c)
		default:
			return pass
		}
	}
}

// applyPass applies the commands in arrival order, then settles the win
// condition once. Deferring the win check to the end of the pass is what
// turns two winning guesses resolved together into a draw instead of a
// delivery-order coin toss.
func (r *Room) applyPass(pass []command) {
	for _, c := range pass {
		r.apply(c)
	}
	r.evaluate()
}

func (r *Room) apply(c command) {
	var err error
	switch c.kind {
	case cmdJoin:
		err = r.handleJoin(c.identity)
	case cmdSetup:
		err = r.handleSetup(c.identity, c.name, c.secret)
	case cmdStart:
		err = r.handleStart(c.identity)
	case cmdGuess:
		err = r.handleGuess(c.identity, c.guess)
	case cmdRematch:
		err = r.handleRematch(c.identity)
	case cmdDisconnect:
		r.handleDisconnect(c.identity)
	case cmdReconnect:
		r.handleReconnect(c.identity)
	case cmdGraceExpired:
		r.handleGraceExpired(c.identity, c.gen)
	case cmdSnapshot:
		c.snap <- r.snapshot()
		return
	}
	if c.reply != nil {
		c.reply <- err
	}
}

// --- handlers, actor goroutine only ---

func (r *Room) seatOf(identity string) *Seat {
	for _, s := range r.seats {
		if s != nil && s.Identity == identity {
			return s
		}
	}
	return nil
}

func (r *Room) opponentOf(identity string) *Seat {
	for _, s := range r.seats {
		if s != nil && s.Identity != identity {
			return s
		}
	}
	return nil
}

func (r *Room) freeSeat() int {
	for i, s := range r.seats {
		if s == nil {
			return i
		}
	}
	return -1
}

func (r *Room) bothReady() bool {
	return r.seats[0] != nil && r.seats[0].Ready && r.seats[1] != nil && r.seats[1].Ready
}

func (r *Room) handleJoin(identity string) error {
	if r.seatOf(identity) != nil {
		// Idempotent rejoin: state untouched, the hub re-sends joined_room.
		return nil
	}

	i := r.freeSeat()
	if i < 0 {
		return ErrRoomFull
	}

	switch r.machine.Current() {
	case PhaseWaiting:
		if err := r.machine.Transition(PhaseSetup); err != nil {
			return err
		}
	case PhaseSetup:
		// A seat freed by a forfeit is re-filled without a transition.
	case PhaseFinished:
		// Taking the seat a forfeiter left behind reopens the room.
		if err := r.machine.Transition(PhaseSetup); err != nil {
			return err
		}
		r.resetSubSession()
	default:
		return ErrWrongPhase
	}

	r.seats[i] = &Seat{Identity: identity, Connected: true}
	r.armGraceTimers()
	r.touch()

	r.broadcast(&models.PlayerJoinedEvent{
		Type:      network.EventPlayerJoined,
		RoomID:    r.Code,
		GameState: r.gameState(),
	})
	return nil
}

func (r *Room) handleSetup(identity, name, secret string) error {
	seat := r.seatOf(identity)
	if seat == nil {
		return ErrNotInRoom
	}
	if !r.machine.Is(PhaseSetup) {
		return ErrWrongPhase
	}
	if r.bothReady() {
		return ErrSetupLocked
	}

	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return ErrInvalidName
	}
	if err := game.ValidateSecret(secret); err != nil {
		return err
	}

	seat.Name = name
	seat.Secret = secret
	seat.Ready = true
	r.touch()

	r.broadcast(&models.PlayerReadyEvent{
		Type:       network.EventPlayerReady,
		GameState:  r.gameState(),
		PlayerID:   identity,
		PlayerName: name,
	})
	return nil
}

func (r *Room) handleStart(identity string) error {
	seat := r.seatOf(identity)
	if seat == nil {
		return ErrNotInRoom
	}
	if !r.machine.Is(PhaseSetup) {
		return ErrWrongPhase
	}
	if seat != r.seats[0] {
		return ErrNotHost
	}
	if !r.bothReady() {
		return ErrNotReady
	}
	if err := r.machine.Transition(PhasePlaying); err != nil {
		return err
	}

	r.startedAt = time.Now()
	for _, s := range r.seats {
		s.History = nil
		s.winRound = 0
	}
	r.touch()

	r.broadcast(&models.GameStartedEvent{
		Type:      network.EventGameStarted,
		GameState: r.gameState(),
		Players:   r.playerViews(),
	})
	return nil
}

func (r *Room) handleGuess(identity, guess string) error {
	seat := r.seatOf(identity)
	if seat == nil {
		return ErrNotInRoom
	}
	if err := game.ValidateGuess(guess); err != nil {
		return err
	}
	if r.machine.Is(PhaseFinished) || seat.winRound > 0 {
		return ErrAlreadyFinished
	}
	if !r.machine.Is(PhasePlaying) {
		return ErrWrongPhase
	}
	if len(seat.History) >= game.MaxAttempts {
		return ErrAttemptsExhausted
	}

	opponent := r.opponentOf(identity)
	if opponent == nil {
		return ErrWrongPhase
	}

	feedback := game.Score(opponent.Secret, guess)
	attempt := len(seat.History) + 1
	seat.History = append(seat.History, models.GuessRecord{
		Guess:    guess,
		Feedback: feedback,
		Attempt:  attempt,
	})
	if game.IsWinning(feedback) {
		seat.winRound = attempt
	}
	r.touch()

	r.broadcast(&models.GuessMadeEvent{
		Type:     network.EventGuessMade,
		PlayerID: identity,
		Guess:    guess,
		Feedback: feedback,
		Attempt:  attempt,
	})
	return nil
}

func (r *Room) handleRematch(identity string) error {
	if r.seatOf(identity) == nil {
		return ErrNotInRoom
	}
	if !r.machine.Is(PhaseFinished) {
		return ErrWrongPhase
	}
	if err := r.machine.Transition(PhaseSetup); err != nil {
		return err
	}

	r.resetSubSession()
	r.armGraceTimers()
	r.touch()

	r.broadcast(&models.RematchStartedEvent{
		Type:      network.EventRematchStarted,
		GameState: r.gameState(),
	})
	return nil
}

func (r *Room) handleDisconnect(identity string) {
	seat := r.seatOf(identity)
	if seat == nil || !seat.Connected {
		return
	}
	seat.Connected = false
	r.armGrace(seat)
	r.touch()
}

func (r *Room) handleReconnect(identity string) {
	seat := r.seatOf(identity)
	if seat == nil {
		return
	}
	seat.Connected = true
	seat.graceGen++
	if seat.graceID != 0 && r.timers != nil {
		r.timers.Cancel(seat.graceID)
		seat.graceID = 0
	}
	r.touch()
}

// handleGraceExpired forfeits the seat whose grace window ran out. Stale
// fires, where a reconnect or a newer window bumped the generation, are
// dropped.
func (r *Room) handleGraceExpired(identity string, gen int64) {
	seat := r.seatOf(identity)
	if seat == nil || seat.graceGen != gen || seat.Connected {
		return
	}
	seat.graceID = 0

	// A winning guess applied earlier in this same pass beats the forfeit.
	r.evaluate()
	if !r.inGracePhase() {
		return
	}

	winner := r.opponentOf(identity)
	if winner == nil {
		r.vacate(seat)
		return
	}
	r.finish(winner, models.ReasonDisconnected)
	r.vacate(seat)
}

// vacate frees a forfeited seat so a later join can take it; a remaining
// player moves up to the host seat.
func (r *Room) vacate(seat *Seat) {
	for i, s := range r.seats {
		if s == seat {
			r.seats[i] = nil
		}
	}
	if r.seats[0] == nil {
		r.seats[0], r.seats[1] = r.seats[1], nil
	}
	if r.onVacated != nil {
		r.onVacated(seat.Identity)
	}
	r.touch()
}

// evaluate settles the outcome of the pass that just applied. Winning
// rounds are compared at sequence-number granularity: the lower round wins
// and equal rounds draw, so the verdict never depends on which winning
// guess happened to arrive first.
func (r *Room) evaluate() {
	if !r.machine.Is(PhasePlaying) {
		return
	}
	a, b := r.seats[0], r.seats[1]
	if a == nil || b == nil {
		return
	}

	switch {
	case a.winRound > 0 && b.winRound > 0:
		switch {
		case a.winRound < b.winRound:
			r.finish(a, models.ReasonNormal)
		case b.winRound < a.winRound:
			r.finish(b, models.ReasonNormal)
		default:
			r.finish(nil, models.ReasonNormal)
		}
	case a.winRound > 0:
		r.finish(a, models.ReasonNormal)
	case b.winRound > 0:
		r.finish(b, models.ReasonNormal)
	case len(a.History) >= game.MaxAttempts && len(b.History) >= game.MaxAttempts:
		r.finish(nil, models.ReasonNormal)
	}
}

// finish closes the sub-session. A nil winner means a draw.
func (r *Room) finish(winner *Seat, reason string) {
	if err := r.machine.Transition(PhaseFinished); err != nil {
		return
	}

	result := &Result{Draw: winner == nil, Reason: reason}
	if winner != nil {
		result.WinnerIdentity = winner.Identity
		result.WinnerName = winner.Name
	}
	r.result = result
	r.cancelGraceTimers()
	r.touch()

	var winnerID *string
	if winner != nil {
		id := winner.Identity
		winnerID = &id
	}
	over := &models.GameOverEvent{
		Type:       network.EventGameOver,
		WinnerID:   winnerID,
		WinnerName: result.WinnerName,
		Reason:     reason,
	}
	if r.seats[0] != nil {
		over.P1Secret = r.seats[0].Secret
	}
	if r.seats[1] != nil {
		over.P2Secret = r.seats[1].Secret
	}
	r.broadcast(over)

	if r.recorder != nil {
		r.recorder.RecordMatch(r.matchRecord(result))
	}
}

// resetSubSession clears everything a fresh sub-session must not inherit:
// secrets, ready flags, histories and the previous result. Identities and
// names survive.
func (r *Room) resetSubSession() {
	for _, s := range r.seats {
		if s == nil {
			continue
		}
		s.Secret = ""
		s.Ready = false
		s.History = nil
		s.winRound = 0
	}
	r.result = nil
	r.startedAt = time.Time{}
}

func (r *Room) inGracePhase() bool {
	return r.machine.Is(PhaseSetup) || r.machine.Is(PhasePlaying)
}

// armGraceTimers starts the forfeit clock for any seat that is already
// disconnected when the room (re)enters setup; a drop during setup or
// playing arms its own timer in handleDisconnect.
func (r *Room) armGraceTimers() {
	for _, s := range r.seats {
		if s != nil && !s.Connected {
			r.armGrace(s)
		}
	}
}

func (r *Room) armGrace(s *Seat) {
	if r.timers == nil || r.grace <= 0 || !r.inGracePhase() {
		return
	}
	if s.graceID != 0 {
		r.timers.Cancel(s.graceID)
	}
	s.graceGen++
	gen := s.graceGen
	identity := s.Identity
	s.graceID = r.timers.Schedule(r.grace, 0, func() {
		_ = r.post(command{kind: cmdGraceExpired, identity: identity, gen: gen})
	})
}

func (r *Room) cancelGraceTimers() {
	for _, s := range r.seats {
		if s == nil {
			continue
		}
		s.graceGen++
		if s.graceID != 0 && r.timers != nil {
			r.timers.Cancel(s.graceID)
			s.graceID = 0
		}
	}
}

// --- projections ---

func (r *Room) gameState() models.GameStateView {
	view := models.GameStateView{Status: r.machine.Current()}
	if r.result != nil && !r.result.Draw {
		id := r.result.WinnerIdentity
		view.WinnerID = &id
	}
	return view
}

func (r *Room) playerViews() []models.PlayerView {
	views := make([]models.PlayerView, 0, 2)
	for i, s := range r.seats {
		if s == nil {
			continue
		}
		views = append(views, models.PlayerView{
			ID:        s.Identity,
			Name:      s.Name,
			IsHost:    i == 0,
			IsReady:   s.Ready,
			Connected: s.Connected,
			Guesses:   append([]models.GuessRecord(nil), s.History...),
		})
	}
	return views
}

func (r *Room) snapshot() *models.RoomSnapshot {
	snap := &models.RoomSnapshot{
		RoomID:    r.Code,
		GameState: r.gameState(),
		Players:   r.playerViews(),
		CreatedAt: r.CreatedAt,
	}
	if r.result != nil {
		snap.Draw = r.result.Draw
		snap.Reason = r.result.Reason
	}
	if !r.startedAt.IsZero() {
		startedAt := r.startedAt
		snap.StartedAt = &startedAt
	}
	return snap
}

func (r *Room) matchRecord(result *Result) *models.MatchRecord {
	record := &models.MatchRecord{
		RoomCode:   r.Code,
		WinnerID:   result.WinnerIdentity,
		WinnerName: result.WinnerName,
		Draw:       result.Draw,
		Reason:     result.Reason,
		StartedAt:  r.startedAt,
		FinishedAt: time.Now(),
	}
	for _, s := range r.seats {
		if s == nil {
			continue
		}
		record.Players = append(record.Players, models.MatchPlayer{
			Identity: s.Identity,
			Name:     s.Name,
			Secret:   s.Secret,
			Guesses:  len(s.History),
			Won:      s.winRound > 0,
		})
		if len(s.History) > record.Rounds {
			record.Rounds = len(s.History)
		}
	}
	return record
}

func (r *Room) broadcast(event interface{}) {
	if r.broadcaster == nil {
		return
	}
	identities := make([]string, 0, 2)
	for _, s := range r.seats {
		if s != nil {
			identities = append(identities, s.Identity)
		}
	}
	r.broadcaster.BroadcastToRoom(r.Code, identities, event)
}

func (r *Room) touch() {
	connected := 0
	for _, s := range r.seats {
		if s != nil && s.Connected {
			connected++
		}
	}
	r.mirror.Lock()
	r.mirror.connected = connected
	r.mirror.lastActivity = time.Now()
	r.mirror.Unlock()
}
