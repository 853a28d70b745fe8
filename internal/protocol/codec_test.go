package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeArgless(t *testing.T) {
	assert.Equal(t, "##HELLO|\n", Encode("HELLO", ""))
	assert.Equal(t, "##EXITED|\n", Encode("EXITED", ""))
	// Omitting args entirely produces the same trailing-pipe form.
	assert.Equal(t, "##HELLO|\n", Encode("HELLO"))
	assert.Equal(t, "##BYE|\n", Encode("BYE"))
}

func TestEncodeWithArgs(t *testing.T) {
	assert.Equal(t, "##CREATED|0|room1\n", Encode("CREATED", 0, "room1"))
	assert.Equal(t, "##MOVE|alice|0|2\n", Encode("MOVE", "alice", 0, 2))
}

func TestParseBasic(t *testing.T) {
	msg, err := Parse("##JOIN|alice")
	require.NoError(t, err)
	assert.Equal(t, "JOIN", msg.Tag)
	assert.Equal(t, []string{"alice"}, msg.Args)
}

func TestParseTrailingEmptyArg(t *testing.T) {
	msg, err := Parse("##EXIT|")
	require.NoError(t, err)
	assert.Equal(t, "EXIT", msg.Tag)
	assert.Equal(t, []string{""}, msg.Args)
}

func TestParseNoArgs(t *testing.T) {
	msg, err := Parse("##LIST")
	require.NoError(t, err)
	assert.Equal(t, "LIST", msg.Tag)
	assert.Nil(t, msg.Args)
}

func TestParseRejectsMissingPrefix(t *testing.T) {
	_, err := Parse("JOIN|alice")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseMoveArgs(t *testing.T) {
	msg, err := Parse("##MOVE|1|2")
	require.NoError(t, err)
	require.Len(t, msg.Args, 2)
	assert.Equal(t, "1", msg.Arg(0))
	assert.Equal(t, "2", msg.Arg(1))
	assert.Equal(t, "", msg.Arg(5))
}

func TestReaderReadLine(t *testing.T) {
	r := NewReader(strings.NewReader("##JOIN|alice\r\n##LIST|\n"))

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "##JOIN|alice", line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "##LIST|", line)

	_, err = r.ReadLine()
	assert.Error(t, err)
}

func TestReaderRejectsOversizedLine(t *testing.T) {
	oversized := "##JOIN|" + strings.Repeat("a", MaxLineBytes+10) + "\n##PING|\n"
	r := NewReader(strings.NewReader(oversized))

	_, err := r.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)

	// The stream resumes cleanly on the next line.
	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "##PING|", line)
}
