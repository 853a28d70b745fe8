package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"tictactoe-server/internal/client"
	"tictactoe-server/internal/game"
	"tictactoe-server/pkg/logger"
)

var (
	ErrLobbyFull     = errors.New("Lobby full")
	ErrNoSuchRoom    = errors.New("No such room")
	ErrSelfJoin      = errors.New("Cannot join your own room")
	ErrRoomFull      = errors.New("Room full")
	ErrNotInRoom     = errors.New("Not in room")
	ErrNotInGameRoom = errors.New("Not in game room")
)

// Registry owns every room for the process lifetime and the grace
// window applied to disconnected slots. Lock ordering: callers that
// also touch a client.Registry must acquire it first, then this one
// — never the reverse — to avoid deadlock between the heartbeat
// sweep and a connection worker's dispatch.
type Registry struct {
	mu     sync.Mutex
	rooms  map[int]*Room
	nextID int
	max    int
	grace  time.Duration
}

// NewRegistry returns an empty room table admitting at most max
// concurrent rooms, with disconnected slots held open for grace
// before being forfeited.
func NewRegistry(max int, grace time.Duration) *Registry {
	return &Registry{
		rooms: make(map[int]*Room),
		max:   max,
		grace: grace,
	}
}

// Create allocates a new waiting room with creator seated as p1.
func (reg *Registry) Create(name string, creator *client.Client) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(reg.rooms) >= reg.max {
		return nil, ErrLobbyFull
	}

	reg.nextID++
	r := newRoom(reg.nextID, name, creator)
	reg.rooms[r.ID] = r

	creator.SetRoomID(r.ID)
	creator.SetState(client.StateWaiting)

	creator.Send("CREATED", r.ID, r.Name)
	logger.Room.Info("room %d (%s) created by %s", r.ID, r.Name, creator.Name())
	return r, nil
}

// List emits a single ROOMS|<count>|id|name|state|occupied/2... line
// to requester, one group of fields per non-EMPTY room.
func (reg *Registry) List(requester *client.Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	args := make([]interface{}, 0, 1+4*len(reg.rooms))
	count := 0
	for id := 1; id <= reg.nextID; id++ {
		r, ok := reg.rooms[id]
		if !ok || r.State == StateEmpty {
			continue
		}
		count++
		args = append(args, r.ID, r.Name, r.State.String(), fmt.Sprintf("%d/2", r.occupiedCount()))
	}

	requester.Send("ROOMS", append([]interface{}{count}, args...)...)
}

// Join seats joiner into roomID's open slot and starts play once both
// slots are filled. Spec adds a normalization step the original C
// implementation lacks: if the room's sole occupant left p2's slot
// live and p1 empty (this can only happen through a disconnect/leave
// interleaving), the lone remaining occupant is renumbered into p1
// before the newcomer takes p2, so the game always starts with p1
// occupied.
func (reg *Registry) Join(roomID int, joiner *client.Client) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return nil, ErrNoSuchRoom
	}
	if r.p1.Client == joiner || r.p2.Client == joiner {
		return nil, ErrSelfJoin
	}
	if r.State != StateWaiting {
		return nil, ErrRoomFull
	}

	reg.normalizeSlots(r)

	if r.p1.Client == nil {
		r.p1.assign(joiner)
	} else if r.p2.Client == nil {
		r.p2.assign(joiner)
	} else {
		return nil, ErrRoomFull
	}

	joiner.SetRoomID(r.ID)
	joiner.SetState(client.StateWaiting)
	joiner.Send("JOINEDROOM", r.ID)

	if r.p1.Client != nil && r.p2.Client != nil {
		reg.startGame(r)
	}

	return r, nil
}

// normalizeSlots moves a lone p2 occupant into p1 so joins never seat
// a second player into an otherwise-empty room's p2 slot.
func (reg *Registry) normalizeSlots(r *Room) {
	if r.p1.Client == nil && r.p2.Client != nil {
		r.p1 = r.p2
		r.p2 = slot{}
	}
}

// startGame fills the second slot's opening round: resets the
// engine, announces CLEAR, START, and SYMBOL to both slots, and
// TURN|Your move to whichever slot is StartingPlayer. Round 1 always
// starts with p1 (StartingPlayer is initialized to P1 in newRoom), so
// SYMBOL|X lands on p1 exactly as the join operation is specified.
func (reg *Registry) startGame(r *Room) {
	r.resetRound(r.StartingPlayer)

	r.p1.Client.Send("CLEAR")
	r.p2.Client.Send("CLEAR")
	r.p1.Client.Send("START", "Opponent:"+r.p2.Name)
	r.p2.Client.Send("START", "Opponent:"+r.p1.Name)

	starter := reg.dealSymbolsAndTurn(r)

	logger.Room.Info("room %d starting: %s vs %s, %s first", r.ID, r.p1.Name, r.p2.Name, starter.Name)
}

// resetRound puts the engine and both slots' client states into a
// freshly-dealt round with first on move.
func (r *Room) resetRound(first game.Turn) {
	r.State = StatePlaying
	r.Game.Reset(first)
	r.p1.Client.SetState(client.StatePlaying)
	r.p2.Client.SetState(client.StatePlaying)
}

// dealSymbolsAndTurn sends SYMBOL to both slots per StartingPlayer and
// TURN|Your move to the starter alone, returning the starter's slot.
func (reg *Registry) dealSymbolsAndTurn(r *Room) *slot {
	starter := r.slotByTurn(r.StartingPlayer)
	other := r.slotByTurn(r.StartingPlayer.Other())
	starter.Client.Send("SYMBOL", "X")
	other.Client.Send("SYMBOL", "O")
	starter.Client.Send("TURN", "Your move")
	return starter
}

// Leave is a voluntary exit: the slot's preserved identity is cleared
// too, so a voluntary leaver is never eligible for reconnect.
func (reg *Registry) Leave(c *client.Client) {
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

	wasPlaying := r.State == StatePlaying
	opponent := r.slotByTurn(turn.Other())
	*s = slot{}

	c.Send("EXITED")

	if wasPlaying && opponent.Client != nil {
		opponent.Client.Send("INFO", "Opponent left")
		opponent.Client.Send("WIN", "You")
		opponent.Client.SetState(client.StateWaiting)
	}

	reg.closeOrRewait(r)

	c.SetRoomID(client.NoRoom)
	c.SetState(client.StateLobby)
}

// closeOrRewait deletes r once both slots are vacant, otherwise
// returns it to WAITING and clears the board for the next pairing.
func (reg *Registry) closeOrRewait(r *Room) {
	if r.bothEmpty() {
		r.State = StateEmpty
		delete(reg.rooms, r.ID)
		logger.Room.Info("room %d closed", r.ID)
		return
	}
	r.State = StateWaiting
	r.Game.Reset(game.NoTurn)
	r.p1.ReplayVote = false
	r.p2.ReplayVote = false
}

// Move applies (x, y) as c's move in its current room.
func (reg *Registry) Move(c *client.Client, x, y int) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[c.RoomID()]
	if !ok {
		return ErrNotInGameRoom
	}

	s, turn := r.slotFor(c)
	if s == nil {
		return ErrNotInGameRoom
	}

	result, err := r.Game.Move(turn, x, y)
	if err != nil {
		return err
	}

	me := r.slotByTurn(turn)
	opp := r.slotByTurn(turn.Other())

	logger.Room.Info("move: room %s %s (%c) -> %d,%d", r.Name, me.Name, result.Symbol, x, y)

	if opp.Client != nil {
		opp.Client.Send("MOVE", me.Name, x, y)
	}
	me.Client.Send("MOVE", me.Name, x, y)

	switch result.Outcome {
	case game.OutcomeWon:
		reg.finishGame(r, me, opp, "WIN")
	case game.OutcomeDraw:
		reg.finishGame(r, me, opp, "DRAW")
	default:
		// The next slot may be grace-held; its player gets TURN on
		// reconnect instead.
		if next := r.slotByTurn(result.NextTurn).Client; next != nil {
			next.Send("TURN", "Your move")
		}
	}

	return nil
}

// finishGame announces WIN/LOSE or DRAW, resets both replay votes,
// and — if the terminal move left one slot empty (the opponent
// disconnected mid-round) — tells the remaining slot the round ended
// and returns the room to WAITING immediately rather than waiting on
// a REPLAY vote that can never arrive from an empty slot.
func (reg *Registry) finishGame(r *Room, mover, other *slot, kind string) {
	r.p1.ReplayVote = false
	r.p2.ReplayVote = false

	switch kind {
	case "DRAW":
		mover.Client.Send("DRAW")
		if other.Client != nil {
			other.Client.Send("DRAW")
		}
	default:
		mover.Client.Send("WIN", "You")
		if other.Client != nil {
			other.Client.Send("LOSE", mover.Name)
		}
	}

	if mover.Client == nil || other.Client == nil {
		if mover.Client != nil {
			mover.Client.Send("INFO", "Game ended")
		}
		if other.Client != nil {
			other.Client.Send("INFO", "Game ended")
		}
		r.State = StateWaiting
	}

	logger.Room.Info("room %d finished: %s", r.ID, kind)
}

// ReplayYes records c's vote to play again, restarting the round once
// both players have voted.
func (reg *Registry) ReplayYes(c *client.Client) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[c.RoomID()]
	if !ok {
		return ErrNotInRoom
	}
	s, _ := r.slotFor(c)
	if s == nil {
		return ErrNotInRoom
	}

	s.ReplayVote = true
	c.Send("INFO", "Replay confirmed")

	if r.p1.ReplayVote && r.p2.ReplayVote {
		reg.tryRestart(r)
	}
	return nil
}

// ReplayNo is a voluntary exit scoped to the replay point: the
// decliner's slot is cleared without preserving identity, and the
// other slot (if any) stays in the room as WAITING rather than the
// whole pairing being torn down.
func (reg *Registry) ReplayNo(c *client.Client) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[c.RoomID()]
	if !ok {
		return ErrNotInRoom
	}
	s, turn := r.slotFor(c)
	if s == nil {
		return ErrNotInRoom
	}

	opponent := r.slotByTurn(turn.Other())
	*s = slot{}

	c.Send("INFO", "You declined replay")
	c.Send("EXITED")
	c.SetRoomID(client.NoRoom)
	c.SetState(client.StateLobby)

	if opponent.Client != nil {
		opponent.Client.Send("INFO", "Opponent declined replay")
		opponent.Client.SetState(client.StateWaiting)
	}

	if r.bothEmpty() {
		r.State = StateEmpty
		delete(reg.rooms, r.ID)
		logger.Room.Info("room %d closed after replay decline", r.ID)
	} else {
		r.State = StateWaiting
	}

	return nil
}

// tryRestart flips StartingPlayer, resets the engine, and re-deals
// only RESTART/SYMBOL/TURN — not CLEAR/START, which are join-only.
// This faithfully reproduces the quirk that the SYMBOL broadcast
// tracks the new starter rather than staying pinned to p1: a room
// that flips its starter across replays also flips which slot is sent
// SYMBOL|X, while the engine still marks p1's cells 'X' and p2's 'O'.
func (reg *Registry) tryRestart(r *Room) {
	r.StartingPlayer = r.StartingPlayer.Other()
	r.resetRound(r.StartingPlayer)

	r.p1.Client.Send("RESTART")
	r.p2.Client.Send("RESTART")

	starter := reg.dealSymbolsAndTurn(r)
	logger.Room.Info("room %d restarting, %s first", r.ID, starter.Name)
}
