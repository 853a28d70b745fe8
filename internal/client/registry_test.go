package client

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateEnforcesMax(t *testing.T) {
	r := NewRegistry(1)

	s1, c1 := net.Pipe()
	defer s1.Close()
	defer c1.Close()
	_, err := r.Create(s1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	s2, c2 := net.Pipe()
	defer s2.Close()
	defer c2.Close()
	_, err = r.Create(s2)
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(4)
	s1, c1 := net.Pipe()
	defer s1.Close()
	defer c1.Close()

	cl, err := r.Create(s1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	r.Remove(cl)
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySweepVisitsAll(t *testing.T) {
	r := NewRegistry(4)
	for i := 0; i < 3; i++ {
		s, c := net.Pipe()
		defer s.Close()
		defer c.Close()
		_, err := r.Create(s)
		require.NoError(t, err)
	}

	count := 0
	r.Sweep(func(c *Client) { count++ })
	assert.Equal(t, 3, count)
}
