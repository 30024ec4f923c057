package inmemory

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HappyGroupHub/CarTunes/internal/repository/connection"
)

func TestAddRemove(t *testing.T) {
	r := NewRepo()

	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	require.NoError(t, r.Add(conn1, "ABC123", "user1"))
	require.NoError(t, r.Add(conn2, "ABC123", "user2"))
	assert.ErrorIs(t, r.Add(conn1, "ABC123", "user1"), connection.ErrAlreadyExists)

	assert.Equal(t, 2, r.RoomCount("ABC123"))
	assert.Equal(t, 0, r.RoomCount("ZZZ999"))
	assert.Len(t, r.RoomConns("ABC123"), 2)

	info, err := r.Info(conn1)
	require.NoError(t, err)
	assert.Equal(t, connection.Info{RoomId: "ABC123", UserId: "user1"}, info)

	info, err = r.Remove(conn1)
	require.NoError(t, err)
	assert.Equal(t, "user1", info.UserId)
	assert.Equal(t, 1, r.RoomCount("ABC123"))

	_, err = r.Remove(conn1)
	assert.ErrorIs(t, err, connection.ErrNotFound)
}

func TestRoomsWithConns(t *testing.T) {
	r := NewRepo()

	require.NoError(t, r.Add(&websocket.Conn{}, "AAAAAA", "u1"))
	require.NoError(t, r.Add(&websocket.Conn{}, "BBBBBB", "u2"))

	rooms := r.RoomsWithConns()
	assert.ElementsMatch(t, []string{"AAAAAA", "BBBBBB"}, rooms)

	conn := &websocket.Conn{}
	require.NoError(t, r.Add(conn, "CCCCCC", "u3"))
	_, err := r.Remove(conn)
	require.NoError(t, err)

	// Emptied rooms must not linger in the index.
	assert.ElementsMatch(t, []string{"AAAAAA", "BBBBBB"}, r.RoomsWithConns())
}
