// Package client tracks per-connection player records: identity,
// lifecycle state, liveness counters, and the process-wide registry
// that admits and evicts them.
package client

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"tictactoe-server/internal/protocol"
	"tictactoe-server/pkg/logger"
)

// State is where a client sits in the lobby/room lifecycle.
type State int

const (
	StateLobby State = iota
	StateWaiting
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "LOBBY"
	case StateWaiting:
		return "WAITING"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// NoRoom marks a client with no current room association.
const NoRoom = -1

// maxNameBytes is the truncation limit for nicknames (spec: "<=31
// bytes after truncation").
const maxNameBytes = 31

// maxInvalid is the strike count at which a client is force-disconnected.
const maxInvalid = 3

// Client is a single connection's record. Name, State, and RoomID
// change as a side effect of most room operations, but the JOIN
// command mutates Name/State directly from the connection's worker
// before the client ever touches a room, and the heartbeat goroutine
// can concurrently force a disconnect through the room registry at
// the same time — so these three fields share identityMu rather than
// relying on the room registry's lock alone. The liveness counters
// below are different: the heartbeat goroutine and the connection's
// own worker touch them concurrently with no other invariant to
// preserve, so they are atomic instead.
type Client struct {
	Conn    net.Conn
	Session string

	identityMu sync.Mutex
	name       string
	state      State
	roomID     int

	connected    atomic.Bool
	alive        atomic.Bool
	missedPongs  atomic.Int32
	invalidCount atomic.Int32

	writeMu sync.Mutex
}

// newSessionToken mints a 16-hex-character reconnect token from a
// random UUIDv4, matching the length the wire protocol expects while
// avoiding hand-rolled random formatting.
func newSessionToken() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:16]
}

// New creates a client record bound to conn, in state LOBBY with a
// freshly minted session token. It does not register the client
// anywhere; use Registry.Create for that.
func New(conn net.Conn) *Client {
	c := &Client{
		Conn:    conn,
		state:   StateLobby,
		roomID:  NoRoom,
		Session: newSessionToken(),
	}
	c.connected.Store(true)
	c.alive.Store(true)
	return c
}

// Name returns the client's current display name.
func (c *Client) Name() string {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()
	return c.name
}

// SetName truncates and stores name, matching client_set_name's
// snprintf truncation to 31 bytes.
func (c *Client) SetName(name string) {
	if len(name) > maxNameBytes {
		name = name[:maxNameBytes]
	}
	c.identityMu.Lock()
	c.name = name
	c.identityMu.Unlock()
}

// State returns the client's current lobby/room lifecycle state.
func (c *Client) State() State {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()
	return c.state
}

// SetState updates the client's lifecycle state.
func (c *Client) SetState(s State) {
	c.identityMu.Lock()
	c.state = s
	c.identityMu.Unlock()
}

// RoomID returns the ID of the room the client currently occupies, or
// NoRoom.
func (c *Client) RoomID() int {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()
	return c.roomID
}

// SetRoomID updates the client's current room association.
func (c *Client) SetRoomID(id int) {
	c.identityMu.Lock()
	c.roomID = id
	c.identityMu.Unlock()
}

// Send formats and writes a single protocol line. A write failure is
// swallowed here per spec §4.1: the caller never sees an error, and
// the client is marked disconnected so the heartbeat/pruner reaps it
// on the next sweep.
func (c *Client) Send(tag string, args ...interface{}) {
	line := protocol.Encode(tag, args...)

	c.writeMu.Lock()
	_, err := c.Conn.Write([]byte(line))
	c.writeMu.Unlock()

	if err != nil {
		logger.Client.Debug("write to %s failed, marking disconnected: %v", c.Name(), err)
		c.connected.Store(false)
	}
}

// Connected reports whether the client's socket is presumed alive.
func (c *Client) Connected() bool { return c.connected.Load() }

// MarkDisconnected flips the connected flag off, used both by a
// failed write and by the worker's own read-loop on EOF/error.
func (c *Client) MarkDisconnected() { c.connected.Store(false) }

// Alive reports whether the worker's read loop should keep running.
func (c *Client) Alive() bool { return c.alive.Load() }

// Stop clears the alive flag so the worker's read loop exits after
// its current dispatch, the cooperative-termination path QUIT uses.
func (c *Client) Stop() { c.alive.Store(false) }

// BumpMissedPong increments the missed-PONG counter and returns the
// new value.
func (c *Client) BumpMissedPong() int32 { return c.missedPongs.Add(1) }

// ResetMissedPong zeroes the missed-PONG counter, called on PONG.
func (c *Client) ResetMissedPong() { c.missedPongs.Store(0) }

// MissedPongs returns the current missed-PONG count.
func (c *Client) MissedPongs() int32 { return c.missedPongs.Load() }

// BumpInvalid increments the invalid-input strike counter and reports
// whether the client has now hit the 3-strike limit.
func (c *Client) BumpInvalid() bool {
	return c.invalidCount.Add(1) >= maxInvalid
}
