package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastIsScopedToRoom(t *testing.T) {
	h := NewHub()
	a, b, other := NewClient(4), NewClient(4), NewClient(4)

	h.Join("c1", a)
	h.Join("c1", b)
	h.Join("c2", other)

	assert.Equal(t, 2, h.Broadcast("c1", []byte("hello")))

	assert.Equal(t, []byte("hello"), <-a.Messages())
	assert.Equal(t, []byte("hello"), <-b.Messages())
	assert.Empty(t, other.Messages())

	assert.Equal(t, 0, h.Broadcast("nobody", []byte("x")))
}

func TestHub_Leave(t *testing.T) {
	h := NewHub()
	c := NewClient(1)

	h.Join("c1", c)
	require.Equal(t, 1, h.Size("c1"))

	h.Leave("c1", c)
	assert.Equal(t, 0, h.Size("c1"))
	assert.Equal(t, 0, h.Broadcast("c1", []byte("x")))

	select {
	case <-c.Done():
	default:
		t.Fatal("left client is not done")
	}

	h.Leave("c1", c)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := NewHub()
	slow, fast := NewClient(1), NewClient(4)

	h.Join("c1", slow)
	h.Join("c1", fast)

	assert.Equal(t, 2, h.Broadcast("c1", []byte("1")))
	assert.Equal(t, 1, h.Broadcast("c1", []byte("2")))

	<-slow.Done()
	assert.Equal(t, 1, h.Size("c1"))
	assert.Len(t, fast.Messages(), 2)
}

func TestHub_CloseAll(t *testing.T) {
	h := NewHub()
	clients := []*Client{NewClient(1), NewClient(1), NewClient(1)}

	h.Join("c1", clients[0])
	h.Join("c1", clients[1])
	h.Join("c2", clients[2])

	h.CloseAll()

	assert.Equal(t, 0, h.Size("c1"))
	assert.Equal(t, 0, h.Size("c2"))
	for _, c := range clients {
		select {
		case <-c.Done():
		default:
			t.Fatal("client not closed")
		}
	}

	// Leaving after CloseAll is a no-op.
	h.Leave("c1", clients[0])

	late := NewClient(1)
	h.Join("c1", late)
	assert.Equal(t, 0, h.Size("c1"))
	select {
	case <-late.Done():
	default:
		t.Fatal("late client not closed")
	}
}
