// Package game implements the 3x3 Tic-Tac-Toe board: move legality,
// win/draw detection, and turn alternation. It knows nothing about
// network connections or rooms — callers identify players purely as
// Turn values (P1 or P2) so the engine can be embedded by the room
// registry without an import cycle.
package game

import "errors"

// Turn identifies which slot is on move. The zero value, NoTurn,
// means no one is currently on move (either the game hasn't started
// or the player on move has disconnected).
type Turn int

const (
	NoTurn Turn = iota
	P1
	P2
)

// Other returns the opposing slot; Other(NoTurn) is NoTurn.
func (t Turn) Other() Turn {
	switch t {
	case P1:
		return P2
	case P2:
		return P1
	default:
		return NoTurn
	}
}

// Symbol returns the board mark ('X' for P1, 'O' for P2) a slot plays.
func (t Turn) Symbol() byte {
	if t == P1 {
		return 'X'
	}
	return 'O'
}

// State is the lifecycle stage of a single round.
type State int

const (
	Running State = iota
	Won
	Draw
)

// Outcome describes what a Move produced.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeWon
	OutcomeDraw
)

// MoveResult reports the effect of a successfully applied move.
type MoveResult struct {
	Symbol   byte
	Outcome  Outcome
	NextTurn Turn // meaningful only when Outcome == OutcomeContinue
}

// Sentinel errors surfaced to the wire layer as ERROR| text.
var (
	ErrGameFinished = errors.New("game finished")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrOutOfRange   = errors.New("invalid position")
	ErrOccupied     = errors.New("occupied")
)

const boardSize = 3

// Engine holds one round's board state. The symbol a slot plays is
// fixed to its identity — P1 always plays 'X', P2 always 'O' — and
// does not depend on which slot opens the round.
type Engine struct {
	Board [boardSize][boardSize]byte
	Turn  Turn
	State State
}

// New returns a freshly reset engine with first on move.
func New(first Turn) *Engine {
	e := &Engine{}
	e.Reset(first)
	return e
}

// Reset clears the board, hands the move to first, and returns the
// engine to Running. Required before a new round can accept moves.
func (e *Engine) Reset(first Turn) {
	for y := 0; y < boardSize; y++ {
		for x := 0; x < boardSize; x++ {
			e.Board[y][x] = ' '
		}
	}
	e.Turn = first
	e.State = Running
}

// Move applies who's move at (x, y). On success it reports whether
// the round continues, was won by who, or ended in a draw; the caller
// is responsible for broadcasting the result and, on OutcomeContinue,
// notifying NextTurn.
func (e *Engine) Move(who Turn, x, y int) (MoveResult, error) {
	if e.State != Running {
		return MoveResult{}, ErrGameFinished
	}
	if who != e.Turn {
		return MoveResult{}, ErrNotYourTurn
	}
	if x < 0 || x >= boardSize || y < 0 || y >= boardSize {
		return MoveResult{}, ErrOutOfRange
	}
	if e.Board[y][x] != ' ' {
		return MoveResult{}, ErrOccupied
	}

	sym := who.Symbol()
	e.Board[y][x] = sym

	switch e.check() {
	case Won:
		e.State = Won
		return MoveResult{Symbol: sym, Outcome: OutcomeWon}, nil
	case Draw:
		e.State = Draw
		return MoveResult{Symbol: sym, Outcome: OutcomeDraw}, nil
	default:
		e.Turn = who.Other()
		return MoveResult{Symbol: sym, Outcome: OutcomeContinue, NextTurn: e.Turn}, nil
	}
}

// check evaluates the board for a completed line or a full draw.
func (e *Engine) check() State {
	b := &e.Board

	lines := [][3][2]int{
		{{0, 0}, {1, 0}, {2, 0}}, {{0, 1}, {1, 1}, {2, 1}}, {{0, 2}, {1, 2}, {2, 2}},
		{{0, 0}, {0, 1}, {0, 2}}, {{1, 0}, {1, 1}, {1, 2}}, {{2, 0}, {2, 1}, {2, 2}},
		{{0, 0}, {1, 1}, {2, 2}}, {{2, 0}, {1, 1}, {0, 2}},
	}
	for _, line := range lines {
		a := b[line[0][1]][line[0][0]]
		c := b[line[1][1]][line[1][0]]
		d := b[line[2][1]][line[2][0]]
		if a != ' ' && a == c && c == d {
			return Won
		}
	}

	for y := 0; y < boardSize; y++ {
		for x := 0; x < boardSize; x++ {
			if b[y][x] == ' ' {
				return Running
			}
		}
	}
	return Draw
}
