package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wfunc/numble/broadcast"
	"github.com/wfunc/numble/config"
	"github.com/wfunc/numble/logger"
	"github.com/wfunc/numble/models"
	"github.com/wfunc/numble/monitor"
	"github.com/wfunc/numble/network"
	"github.com/wfunc/numble/room"
	numble_rpc "github.com/wfunc/numble/rpc"
	"github.com/wfunc/numble/services"
	"github.com/wfunc/numble/session"
	"github.com/wfunc/numble/timer"
)

var errUnknownAction = errors.New("unknown action")

type GameServer struct {
	cfg       *config.Config
	upgrader  websocket.Upgrader
	router    *mux.Router
	registry  *room.Registry
	sessions  *session.Manager
	matches   *services.MatchService
	timers    *timer.Manager
	monitor   *monitor.Monitor
	rpcServer *numble_rpc.Server
}

func NewGameServer(cfg *config.Config, matches *services.MatchService) (*GameServer, error) {
	s := &GameServer{
		cfg:      cfg,
		sessions: session.NewManager(),
		matches:  matches,
		timers:   timer.NewManager(),
		monitor:  monitor.NewMonitor("numble"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the web client is served from another origin
			},
		},
	}

	broadcaster := broadcast.NewRoomBroadcaster(s.sessions, s.monitor)
	s.registry = room.NewRegistry(broadcaster, matches, s.timers,
		cfg.Game.DisconnectGrace, cfg.Game.IdleRoomTTL)

	rpcServer, err := numble_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		return nil, err
	}
	s.rpcServer = rpcServer

	if err := numble_rpc.Register(numble_rpc.NewNumbleService(matches, s.registry, s.sessions)); err != nil {
		return nil, err
	}

	s.router = s.routes()
	return s, nil
}

func (s *GameServer) routes() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ws/{identity}", s.handleWebSocket)
	api.HandleFunc("/room/{code}", s.handleRoomSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/", s.handleBanner).Methods(http.MethodGet)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return router
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.cfg.Server.MetricsAddress)

	if interval := s.cfg.Game.SweepInterval; interval > 0 {
		s.timers.Schedule(interval, interval, func() {
			if reclaimed := s.registry.Sweep(); reclaimed > 0 {
				logger.Log.Infof("Reclaimed %d idle room(s)", reclaimed)
			}
		})
	}
	s.timers.Schedule(10*time.Second, 10*time.Second, func() {
		s.monitor.SetActiveRooms(s.registry.Count())
	})

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, s.router)
}

func (s *GameServer) Shutdown() {
	s.timers.Stop()
	s.registry.Close()
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(identity, network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(identity string, conn network.Connection) {
	sess := session.NewSession(identity, conn)
	if old := s.sessions.Add(sess); old != nil {
		// Reconnect: the replacement socket supersedes the old one, whose
		// read loop exits on close without touching the new session.
		old.Close()
	} else {
		s.monitor.IncOnlinePlayers()
	}

	if rm, ok := s.registry.RoomFor(identity); ok {
		rm.Reconnect(identity)
	}

	conn.StartKeepalive(network.DefaultKeepalive)
	logger.Log.Infof("Player %s connected from %s", identity, conn.RemoteAddr())

	defer func() {
		conn.Close()
		if s.sessions.RemoveIfCurrent(identity, sess) {
			s.monitor.DecOnlinePlayers()
			if rm, ok := s.registry.RoomFor(identity); ok {
				rm.Disconnect(identity)
			}
			logger.Log.Infof("Player %s disconnected", identity)
		}
	}()

	for {
		action, err := conn.ReadAction()
		if err != nil {
			if errors.Is(err, network.ErrMalformedAction) {
				s.sendError(sess, "malformed action")
				continue
			}
			return
		}
		s.handleAction(sess, action)
	}
}

func (s *GameServer) handleAction(sess *session.Session, action *network.Action) {
	start := time.Now()
	s.monitor.IncMessagesReceived()
	defer func() {
		s.monitor.ObserveMessageLatency(time.Since(start))
	}()

	var err error
	switch action.Action {
	case network.ActionCreateRoom:
		err = s.handleCreateRoom(sess)
	case network.ActionJoinRoom:
		err = s.handleJoinRoom(sess, action.RoomID)
	case network.ActionSetSetup:
		err = s.withRoom(action.RoomID, func(rm *room.Room) error {
			return rm.CommitSetup(sess.Identity, action.Name, action.Secret)
		})
	case network.ActionStartGame:
		err = s.withPlayerRoom(sess, func(rm *room.Room) error {
			return rm.Start(sess.Identity)
		})
	case network.ActionSubmitGuess:
		err = s.withPlayerRoom(sess, func(rm *room.Room) error {
			return rm.SubmitGuess(sess.Identity, action.Guess)
		})
	case network.ActionRematch:
		err = s.withPlayerRoom(sess, func(rm *room.Room) error {
			return rm.Rematch(sess.Identity)
		})
	default:
		logger.Log.Warnf("Unknown action %q from %s", action.Action, sess.Identity)
		err = errUnknownAction
	}

	if err != nil {
		s.sendError(sess, err.Error())
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session) error {
	rm, err := s.registry.Create(sess.Identity)
	if err != nil {
		return err
	}
	s.monitor.IncRoomsCreated()
	logger.Log.Infof("Player %s created room %s", sess.Identity, rm.Code)
	_ = sess.Send(&models.RoomCreatedEvent{Type: network.EventRoomCreated, RoomID: rm.Code})
	return nil
}

func (s *GameServer) handleJoinRoom(sess *session.Session, code string) error {
	rm, err := s.registry.Join(code, sess.Identity)
	if err != nil {
		return err
	}
	logger.Log.Infof("Player %s joined room %s", sess.Identity, rm.Code)
	// The room has already broadcast player_joined; the personal
	// confirmation follows it.
	_ = sess.Send(&models.JoinedRoomEvent{Type: network.EventJoinedRoom, RoomID: rm.Code})
	return nil
}

// withRoom runs fn against an explicitly addressed room.
func (s *GameServer) withRoom(code string, fn func(*room.Room) error) error {
	rm, ok := s.registry.Get(code)
	if !ok {
		return room.ErrRoomNotFound
	}
	return s.callRoom(rm, fn)
}

// withPlayerRoom runs fn against the room the player is seated in.
func (s *GameServer) withPlayerRoom(sess *session.Session, fn func(*room.Room) error) error {
	rm, ok := s.registry.RoomFor(sess.Identity)
	if !ok {
		return room.ErrRoomNotFound
	}
	return s.callRoom(rm, fn)
}

func (s *GameServer) callRoom(rm *room.Room, fn func(*room.Room) error) error {
	if err := fn(rm); err != nil {
		// The room can be swept between lookup and call.
		if errors.Is(err, room.ErrRoomClosed) {
			return room.ErrRoomNotFound
		}
		return err
	}
	return nil
}

func (s *GameServer) sendError(sess *session.Session, message string) {
	_ = sess.Send(&models.ErrorEvent{Type: network.EventError, Message: message})
}

func (s *GameServer) handleBanner(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "NUMBLE API"})
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *GameServer) handleRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.registry.Get(mux.Vars(r)["code"])
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}

	snapshot, err := rm.Snapshot()
	if err != nil {
		// Swept between lookup and snapshot.
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *GameServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.Errorf("Failed to write response: %v", err)
	}
}
