// Package server hosts the TCP listener, the per-connection worker
// loop, and the heartbeat/pruner task that together implement the
// wire protocol described by internal/protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tictactoe-server/internal/client"
	"tictactoe-server/internal/config"
	"tictactoe-server/internal/game"
	"tictactoe-server/internal/protocol"
	"tictactoe-server/internal/room"
	"tictactoe-server/pkg/logger"
)

const heartbeatInterval = 5 * time.Second

// Server ties the client and room registries to a TCP listener and
// drives the accept loop and heartbeat sweep as sibling errgroup
// tasks, matching the teacher's background-service-plus-accept-loop
// shape but coordinated with context cancellation instead of a
// isRunning flag.
type Server struct {
	cfg      config.Config
	clients  *client.Registry
	rooms    *room.Registry
	listener net.Listener
}

// New wires a Server from cfg. It does not bind a socket yet.
func New(cfg config.Config) *Server {
	return &Server{
		cfg:     cfg,
		clients: client.NewRegistry(cfg.MaxClients),
		rooms:   room.NewRegistry(cfg.MaxRooms, time.Duration(cfg.DisconnectGrace)*time.Second),
	}
}

// Run binds the configured listener and blocks until ctx is
// cancelled or a fatal accept error occurs, running the accept loop
// and heartbeat sweep concurrently via errgroup so that either
// returning an error tears down the other.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	s.listener = ln
	logger.Server.Info("listening on %s", addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.listener.Close()
	})
	g.Go(func() error { return s.acceptLoop(ctx) })
	g.Go(func() error { return s.heartbeatLoop(ctx) })

	return g.Wait()
}

// acceptLoop admits connections until the listener is closed by
// shutdown, spawning one worker goroutine per client.
func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && !netErr.Timeout() {
				logger.Server.Error("accept: %v", err)
				continue
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.serve(conn)
	}
}

// serve is the per-connection worker: it registers the client, sends
// HELLO, and dispatches lines until the client disconnects, quits, or
// is force-closed for protocol abuse.
func (s *Server) serve(conn net.Conn) {
	c, err := s.clients.Create(conn)
	if err != nil {
		conn.Write([]byte(protocol.Encode("ERROR", "Server full")))
		conn.Close()
		return
	}
	logger.Server.Info("client connected from %s, session %s", conn.RemoteAddr(), c.Session)

	// A panic in one client's handler ends only that client's session.
	defer func() {
		if p := recover(); p != nil {
			logger.Server.Error("worker for %s panicked: %v", c.Session, p)
			s.teardown(c)
		}
	}()

	c.Send("HELLO")

	r := protocol.NewReader(conn)
	for c.Alive() {
		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, protocol.ErrLineTooLong) {
				if s.strike(c) {
					break
				}
				continue
			}
			break
		}

		msg, err := protocol.Parse(line)
		if err != nil {
			if s.strike(c) {
				break
			}
			continue
		}

		if s.dispatch(c, msg) {
			break
		}
	}

	s.teardown(c)
}

// strike registers one invalid-input strike and reports whether the
// client has now hit the 3-strike limit.
func (s *Server) strike(c *client.Client) bool {
	if c.BumpInvalid() {
		c.Send("ERROR", "Too many invalid messages")
		return true
	}
	return false
}

// teardown removes c from both registries and closes its connection,
// routing it through the disconnect handler first if it still holds
// a room. Lock order: client registry, then room registry.
func (s *Server) teardown(c *client.Client) {
	s.clients.Remove(c)
	s.rooms.HandleDisconnect(c)
	c.Conn.Close()
	logger.Server.Info("client %s disconnected", c.Session)
}

// dispatch handles a single inbound line and reports whether the
// worker loop should terminate.
func (s *Server) dispatch(c *client.Client, msg protocol.Message) bool {
	switch msg.Tag {
	case "JOIN":
		c.SetName(msg.Arg(0))
		c.SetState(client.StateLobby)
		c.Send("JOINED", c.Name())
		c.Send("SESSION", c.Session)

	case "RECONNECT":
		name, session := msg.Arg(0), msg.Arg(1)
		if name == "" || session == "" {
			c.Send("ERROR", "Invalid reconnect format")
			return s.strike(c)
		}
		if !s.rooms.Reconnect(name, session, c) {
			c.Send("ERROR", "No reconnect slot")
		}

	case "CREATE":
		if _, err := s.rooms.Create(msg.Arg(0), c); err != nil {
			c.Send("ERROR", err.Error())
		}

	case "JOINROOM":
		id, err := strconv.Atoi(msg.Arg(0))
		if err != nil {
			c.Send("ERROR", "No such room")
			return false
		}
		if _, err := s.rooms.Join(id, c); err != nil {
			c.Send("ERROR", err.Error())
		}

	case "EXIT":
		s.rooms.Leave(c)

	case "LIST":
		s.rooms.List(c)

	case "MOVE":
		return s.handleMove(c, msg)

	case "REPLAY":
		return s.handleReplay(c, msg)

	case "QUIT":
		c.Send("BYE")
		c.Stop()
		return true

	case "PING":
		c.Send("PONG")

	case "PONG":
		c.ResetMissedPong()

	default:
		c.Send("ERROR", "UNKNOWN_CMD")
		return s.strike(c)
	}

	return false
}

func (s *Server) handleMove(c *client.Client, msg protocol.Message) bool {
	x, errX := strconv.Atoi(msg.Arg(0))
	y, errY := strconv.Atoi(msg.Arg(1))
	if len(msg.Args) != 2 || errX != nil || errY != nil || x < 0 || y < 0 {
		c.Send("ERROR", "Invalid MOVE format")
		return s.strike(c)
	}

	if err := s.rooms.Move(c, x, y); err != nil {
		switch {
		case errors.Is(err, room.ErrNotInGameRoom):
			c.Send("ERROR", "Not in game room")
		case errors.Is(err, game.ErrNotYourTurn):
			c.Send("ERROR", "Not your turn")
		case errors.Is(err, game.ErrGameFinished):
			c.Send("ERROR", "Game finished")
		case errors.Is(err, game.ErrOccupied):
			c.Send("ERROR", "Occupied")
		case errors.Is(err, game.ErrOutOfRange):
			c.Send("ERROR", "Invalid MOVE format")
			return s.strike(c)
		default:
			c.Send("ERROR", err.Error())
		}
	}
	return false
}

func (s *Server) handleReplay(c *client.Client, msg protocol.Message) bool {
	var err error
	switch strings.ToUpper(msg.Arg(0)) {
	case "YES":
		err = s.rooms.ReplayYes(c)
	case "NO":
		err = s.rooms.ReplayNo(c)
	default:
		c.Send("ERROR", "UNKNOWN_CMD")
		return s.strike(c)
	}
	if err != nil {
		c.Send("ERROR", err.Error())
	}
	return false
}

// heartbeatLoop wakes every heartbeatInterval, pings every connected
// client under the client registry lock, and then prunes rooms whose
// grace period has lapsed. Client-then-room lock order is preserved
// because Sweep's callback only touches per-client atomics; the
// pruner acquires the room lock on its own afterward.
func (s *Server) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Server) sweepOnce() {
	var timedOut []*client.Client

	s.clients.Sweep(func(c *client.Client) {
		if !c.Connected() {
			timedOut = append(timedOut, c)
			return
		}
		if c.BumpMissedPong() > 3 {
			timedOut = append(timedOut, c)
			return
		}
		c.Send("PING")
	})

	for _, c := range timedOut {
		logger.Heartbeat.Info("client %s unreachable, disconnecting", c.Session)
		s.clients.Remove(c)
		s.rooms.HandleDisconnect(c)
		c.Conn.Close()
	}

	s.rooms.Prune()
}
