package rpc

import (
	"errors"
	"net"
	netrpc "net/rpc"
	"time"

	"github.com/wfunc/numble/logger"
	"github.com/wfunc/numble/models"
	"github.com/wfunc/numble/room"
	"github.com/wfunc/numble/services"
	"github.com/wfunc/numble/session"
)

// Server manages the RPC listener. Services are registered on the net/rpc
// default server before Start.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer opens the RPC listener.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Register exposes a service on the default RPC server.
func Register(service interface{}) error {
	return netrpc.Register(service)
}

// Start accepts connections until the listener is closed.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go netrpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// NumbleService exposes the admin query methods. Methods follow the
// net/rpc signature: exported args struct, pointer reply, error return.
type NumbleService struct {
	matches   *services.MatchService
	registry  *room.Registry
	sessions  *session.Manager
	startedAt time.Time
}

// NewNumbleService creates the query service.
func NewNumbleService(matches *services.MatchService, registry *room.Registry, sessions *session.Manager) *NumbleService {
	return &NumbleService{
		matches:   matches,
		registry:  registry,
		sessions:  sessions,
		startedAt: time.Now(),
	}
}

type RecentMatchesArgs struct {
	Limit int
}

type RecentMatchesReply struct {
	Matches []models.MatchRecord
}

// RecentMatches returns archived matches, newest first.
func (ns *NumbleService) RecentMatches(args *RecentMatchesArgs, reply *RecentMatchesReply) error {
	matches, err := ns.matches.RecentMatches(args.Limit)
	if err != nil {
		return err
	}
	reply.Matches = matches
	return nil
}

type PlayerStatsArgs struct {
	Identity string
}

type PlayerStatsReply struct {
	Stats models.PlayerStats
}

// PlayerStats returns one player's archived results.
func (ns *NumbleService) PlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := ns.matches.PlayerStats(args.Identity)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}

type ServerStatsArgs struct{}

type ServerStatsReply struct {
	Stats models.ServerStats
}

// ServerStats reports uptime and the live room and player counts.
func (ns *NumbleService) ServerStats(args *ServerStatsArgs, reply *ServerStatsReply) error {
	reply.Stats = models.ServerStats{
		UptimeSeconds: int64(time.Since(ns.startedAt).Seconds()),
		ActiveRooms:   ns.registry.Count(),
		OnlinePlayers: ns.sessions.Count(),
	}
	return nil
}
