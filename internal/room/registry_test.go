package room

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tictactoe-server/internal/client"
	"tictactoe-server/internal/game"
)

func newTestClient(t *testing.T, name string) *client.Client {
	t.Helper()
	server, conn := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		conn.Close()
	})
	// Drain the peer side so Send() calls don't block the caller.
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()
	c := client.New(server)
	c.SetName(name)
	return c
}

func TestCreateAndJoinStartsGame(t *testing.T) {
	reg := NewRegistry(4, time.Minute)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	r, err := reg.Create("alice's room", alice)
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, r.State)

	r2, err := reg.Join(r.ID, bob)
	require.NoError(t, err)
	assert.Same(t, r, r2)
	assert.Equal(t, StatePlaying, r.State)
	assert.Equal(t, client.StatePlaying, alice.State())
	assert.Equal(t, client.StatePlaying, bob.State())
}

func TestJoinRejectsUnknownRoom(t *testing.T) {
	reg := NewRegistry(4, time.Minute)
	bob := newTestClient(t, "bob")
	_, err := reg.Join(999, bob)
	assert.ErrorIs(t, err, ErrNoSuchRoom)
}

func TestJoinRejectsFullRoom(t *testing.T) {
	reg := NewRegistry(4, time.Minute)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")
	carol := newTestClient(t, "carol")

	r, err := reg.Create("room", alice)
	require.NoError(t, err)
	_, err = reg.Join(r.ID, bob)
	require.NoError(t, err)

	_, err = reg.Join(r.ID, carol)
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestLeaveDuringLobbyFreesRoom(t *testing.T) {
	reg := NewRegistry(4, time.Minute)
	alice := newTestClient(t, "alice")

	r, err := reg.Create("room", alice)
	require.NoError(t, err)

	reg.Leave(alice)
	assert.Equal(t, client.NoRoom, alice.RoomID())
	assert.Empty(t, reg.rooms)
	_ = r
}

func TestLeaveDuringPlayForfeitsToOpponent(t *testing.T) {
	reg := NewRegistry(4, time.Minute)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	r, err := reg.Create("room", alice)
	require.NoError(t, err)
	_, err = reg.Join(r.ID, bob)
	require.NoError(t, err)

	reg.Leave(alice)
	assert.Equal(t, StateWaiting, r.State)
	assert.Equal(t, client.StateWaiting, bob.State())
	assert.Equal(t, r.ID, bob.RoomID())
	assert.Nil(t, r.p1.Client)
	assert.Same(t, bob, r.p2.Client)
}

func TestMoveSequenceDetectsWin(t *testing.T) {
	reg := NewRegistry(4, time.Minute)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	r, err := reg.Create("room", alice)
	require.NoError(t, err)
	_, err = reg.Join(r.ID, bob)
	require.NoError(t, err)

	// alice is P1/X and starts. Diagonal win for X: (0,0) (1,1) (2,2)
	// with bob taking two off-line cells in between.
	require.NoError(t, reg.Move(alice, 0, 0))
	require.NoError(t, reg.Move(bob, 0, 1))
	require.NoError(t, reg.Move(alice, 1, 1))
	require.NoError(t, reg.Move(bob, 0, 2))
	require.NoError(t, reg.Move(alice, 2, 2))

	assert.Equal(t, StatePlaying, r.State)
	assert.Equal(t, game.Won, r.Game.State)
}

func TestMoveRejectsWrongTurn(t *testing.T) {
	reg := NewRegistry(4, time.Minute)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	r, err := reg.Create("room", alice)
	require.NoError(t, err)
	_, err = reg.Join(r.ID, bob)
	require.NoError(t, err)

	err = reg.Move(bob, 0, 0)
	assert.Error(t, err)
}

func TestReplayBothYesRestartsWithSwappedStarter(t *testing.T) {
	reg := NewRegistry(4, time.Minute)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	r, err := reg.Create("room", alice)
	require.NoError(t, err)
	_, err = reg.Join(r.ID, bob)
	require.NoError(t, err)

	require.NoError(t, reg.Move(alice, 0, 0))
	require.NoError(t, reg.Move(bob, 0, 1))
	require.NoError(t, reg.Move(alice, 1, 1))
	require.NoError(t, reg.Move(bob, 0, 2))
	require.NoError(t, reg.Move(alice, 2, 2)) // alice wins

	require.NoError(t, reg.ReplayYes(alice))
	require.NoError(t, reg.ReplayYes(bob))

	assert.Equal(t, StatePlaying, r.State)
	assert.Equal(t, game.P2, r.StartingPlayer)
	assert.Equal(t, game.P2, r.Game.Turn)
}

func TestReplayNoReturnsOpponentToWaiting(t *testing.T) {
	reg := NewRegistry(4, time.Minute)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	r, err := reg.Create("room", alice)
	require.NoError(t, err)
	_, err = reg.Join(r.ID, bob)
	require.NoError(t, err)

	require.NoError(t, reg.Move(alice, 0, 0))
	require.NoError(t, reg.Move(bob, 0, 1))
	require.NoError(t, reg.Move(alice, 1, 1))
	require.NoError(t, reg.Move(bob, 0, 2))
	require.NoError(t, reg.Move(alice, 2, 2))

	require.NoError(t, reg.ReplayNo(bob))
	assert.Equal(t, client.NoRoom, bob.RoomID())
	assert.Equal(t, StateWaiting, r.State)
	assert.Equal(t, client.StateWaiting, alice.State())
}

func TestDisconnectDuringPlayStartsGraceThenReconnects(t *testing.T) {
	reg := NewRegistry(4, time.Millisecond*50)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	r, err := reg.Create("room", alice)
	require.NoError(t, err)
	_, err = reg.Join(r.ID, bob)
	require.NoError(t, err)

	reg.HandleDisconnect(alice)
	assert.True(t, r.p1.Disconnected)

	newcomer := newTestClient(t, "")
	ok := reg.Reconnect("alice", alice.Session, newcomer)
	require.True(t, ok)
	assert.Equal(t, r.ID, newcomer.RoomID())
	assert.Equal(t, client.StatePlaying, newcomer.State())
}

func TestPruneForfeitsAfterGraceExpires(t *testing.T) {
	reg := NewRegistry(4, time.Millisecond*10)
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	r, err := reg.Create("room", alice)
	require.NoError(t, err)
	_, err = reg.Join(r.ID, bob)
	require.NoError(t, err)

	reg.HandleDisconnect(alice)
	time.Sleep(20 * time.Millisecond)
	reg.Prune()

	assert.Equal(t, client.StateLobby, bob.State())
	assert.Equal(t, client.NoRoom, bob.RoomID())
}
