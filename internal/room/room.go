// Package room implements rooms, the room registry, replay/restart
// bookkeeping, disconnect handling, the grace-period pruner, and
// reconnect matching (spec §4.3, §4.5, §4.6).
package room

import (
	"time"

	"tictactoe-server/internal/client"
	"tictactoe-server/internal/game"
)

// State is a room's lifecycle stage.
type State int

const (
	StateEmpty State = iota
	StateWaiting
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StatePlaying:
		return "PLAYING"
	default:
		return "EMPTY"
	}
}

// maxRoomNameBytes truncates room display names (spec: "<=31 bytes").
const maxRoomNameBytes = 31

// slot is one of a room's two player positions. It holds either a
// live client handle or a preserved (name, session) identity kept
// around for a bounded reconnect window.
type slot struct {
	Client         *client.Client
	Name           string
	Session        string
	ReplayVote     bool
	Disconnected   bool
	DisconnectedAt time.Time
}

func (s *slot) clearIdentity() {
	s.Name = ""
	s.Session = ""
	s.Disconnected = false
}

func (s *slot) assign(c *client.Client) {
	s.Client = c
	s.Name = c.Name()
	s.Session = c.Session
	s.Disconnected = false
}

// Room is one active or waiting match.
type Room struct {
	ID    int
	Name  string
	State State

	Game *game.Engine

	p1, p2 slot

	// StartingPlayer alternates across rounds and decides who is sent
	// SYMBOL|X and the first TURN on the next replay. The board mark a
	// slot places does not depend on it.
	StartingPlayer game.Turn
}

func newRoom(id int, name string, creator *client.Client) *Room {
	r := &Room{
		ID:             id,
		Name:           truncate(name, maxRoomNameBytes),
		State:          StateWaiting,
		Game:           game.New(game.NoTurn),
		StartingPlayer: game.P1,
	}
	r.p1.assign(creator)
	return r
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// slotFor returns the slot occupied by c and its Turn identity, or
// (nil, NoTurn) if c does not currently occupy either slot.
func (r *Room) slotFor(c *client.Client) (*slot, game.Turn) {
	if r.p1.Client == c {
		return &r.p1, game.P1
	}
	if r.p2.Client == c {
		return &r.p2, game.P2
	}
	return nil, game.NoTurn
}

func (r *Room) slotByTurn(t game.Turn) *slot {
	if t == game.P1 {
		return &r.p1
	}
	return &r.p2
}

// occupiedCount counts live (connected) slots.
func (r *Room) occupiedCount() int {
	n := 0
	if r.p1.Client != nil {
		n++
	}
	if r.p2.Client != nil {
		n++
	}
	return n
}

// vacant reports whether the slot holds neither a live client nor a
// preserved reconnect identity — "vacant" per spec §3, distinct from
// a slot that's merely disconnected-and-grace-held.
func (s *slot) vacant() bool {
	return s.Client == nil && !s.Disconnected
}

func (r *Room) bothEmpty() bool {
	return r.p1.vacant() && r.p2.vacant()
}
