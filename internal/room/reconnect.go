package room

import (
	"fmt"
	"time"

	"tictactoe-server/internal/client"
	"tictactoe-server/internal/game"
	"tictactoe-server/pkg/logger"
)

// timeNow is a thin indirection so tests can advance the clock
// without sleeping.
var timeNow = time.Now

// HandleDisconnect reacts to a lost connection. If the client holds a
// room, its slot's identity is preserved and the slot goes null;
// disconnected is only set true when the opponent slot is still live
// — a lone occupant vanishing needs no reconnect grace, the room is
// simply reaped. Its callers (the heartbeat sweep and the worker's
// teardown) call it after the client registry's lock is released;
// this method takes only the room registry's own lock.
func (reg *Registry) HandleDisconnect(c *client.Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[c.RoomID()]
	if !ok {
		return
	}
	s, turn := r.slotFor(c)
	if s == nil {
		return
	}

	opponent := r.slotByTurn(turn.Other())
	otherLive := opponent.Client != nil

	s.Client = nil
	s.Disconnected = otherLive
	s.DisconnectedAt = timeNow()

	if r.Game.Turn == turn {
		r.Game.Turn = game.NoTurn
	}

	c.SetRoomID(client.NoRoom)
	c.SetState(client.StateLobby)

	if otherLive {
		opponent.Client.Send("INFO", fmt.Sprintf("Opponent disconnected, waiting %d s to reconnect", int(reg.grace.Seconds())))
		opponent.Client.SetState(client.StateWaiting)
		r.State = StateWaiting
		logger.Room.Info("room %d: %s disconnected mid-game, grace started", r.ID, s.Name)
		return
	}

	s.clearIdentity()
	r.State = StateEmpty
	delete(reg.rooms, r.ID)
	logger.Room.Info("room %d closed, sole occupant disconnected", r.ID)
}

// Prune walks every room and forfeits any match whose disconnected
// slot has outlived the registry's grace window: the remaining player
// is awarded the win and detached to the lobby, and the room is
// removed outright, matching the spec's grace-expiry scenario where
// the room disappears from LIST once the window lapses.
func (reg *Registry) Prune() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	now := timeNow()
	for id, r := range reg.rooms {
		reg.pruneRoom(id, r, now)
	}
}

func (reg *Registry) pruneRoom(id int, r *Room, now time.Time) {
	reg.pruneSlot(id, r, &r.p1, &r.p2, now)
	reg.pruneSlot(id, r, &r.p2, &r.p1, now)
}

func (reg *Registry) pruneSlot(id int, r *Room, s, opponent *slot, now time.Time) {
	if _, stillExists := reg.rooms[id]; !stillExists {
		return
	}
	if !s.Disconnected || now.Sub(s.DisconnectedAt) < reg.grace {
		return
	}

	name := s.Name
	s.clearIdentity()

	if opponent.Client != nil {
		opponent.Client.Send("INFO", "Opponent did not return in time")
		opponent.Client.Send("WIN", "You")
		opponent.Client.SetState(client.StateLobby)
		opponent.Client.SetRoomID(client.NoRoom)
	}
	*opponent = slot{}

	r.State = StateEmpty
	delete(reg.rooms, id)

	logger.Room.Info("room %d: %s's grace period expired, forfeited", id, name)
}

// Reconnect scans every room for a disconnected slot whose preserved
// (name, session) matches the claim, reseats newcomer into that slot,
// and replays the in-flight round: RECONNECTED, START, SYMBOL, one
// MOVE per non-blank cell (scanning rows then columns, attributing
// each to whichever slot currently plays that cell's symbol), and
// finally a bare TURN if the engine's current turn now names the
// rejoiner. Reports false if no matching grace-held slot exists.
func (reg *Registry) Reconnect(name, session string, newcomer *client.Client) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, r := range reg.rooms {
		if r.p1.Disconnected && r.p1.Name == name && r.p1.Session == session {
			reg.reseat(r, &r.p1, game.P1, newcomer)
			return true
		}
		if r.p2.Disconnected && r.p2.Name == name && r.p2.Session == session {
			reg.reseat(r, &r.p2, game.P2, newcomer)
			return true
		}
	}
	return false
}

func (reg *Registry) reseat(r *Room, s *slot, turn game.Turn, newcomer *client.Client) {
	s.Client = newcomer
	s.Disconnected = false
	newcomer.SetName(s.Name)
	newcomer.Session = s.Session
	newcomer.SetRoomID(r.ID)

	opponent := r.slotByTurn(turn.Other())
	if opponent.Client != nil {
		newcomer.SetState(client.StatePlaying)
	} else {
		newcomer.SetState(client.StateWaiting)
	}

	oppName := "Unknown"
	if opponent.Name != "" {
		oppName = opponent.Name
	}
	if opponent.Client != nil {
		opponent.Client.Send("INFO", "Opponent reconnected")
	}

	newcomer.Send("RECONNECTED")
	newcomer.Send("START", "Opponent:"+oppName)

	newcomer.Send("SYMBOL", string(turn.Symbol()))

	xMover, oMover := r.p1.Name, r.p2.Name

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			switch r.Game.Board[y][x] {
			case 'X':
				newcomer.Send("MOVE", xMover, x, y)
			case 'O':
				newcomer.Send("MOVE", oMover, x, y)
			}
		}
	}

	if r.Game.Turn == turn {
		newcomer.Send("TURN")
	}

	logger.Room.Info("room %d: %s reconnected", r.ID, s.Name)
}
