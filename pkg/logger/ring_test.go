package logger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ts string) func() time.Time {
	t, _ := time.Parse("2006-01-02 15:04:05", ts)
	return func() time.Time { return t }
}

func TestRingBuffer_StampsAndEvicts(t *testing.T) {
	r := NewRingBuffer(3)
	r.now = fixedClock("2024-05-01 09:08:07")

	for i := 1; i <= 5; i++ {
		r.Append(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{
		"[09:08:07] line 3",
		"[09:08:07] line 4",
		"[09:08:07] line 5",
	}, r.Lines())
	assert.Equal(t, []string{"[09:08:07] line 5"}, r.Tail(1))
	assert.Len(t, r.Tail(0), 3)

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Lines())
}

func TestRingBuffer_DefaultSize(t *testing.T) {
	r := NewRingBuffer(0)
	for i := 0; i < DefaultRingSize+10; i++ {
		r.Append("x")
	}
	assert.Equal(t, DefaultRingSize, r.Len())
}

func TestRingBuffer_Subscribe(t *testing.T) {
	r := NewRingBuffer(10)
	r.now = fixedClock("2024-05-01 10:00:00")

	r.Append("before")
	ch, cancel := r.Subscribe()
	r.Append("after")

	select {
	case line := <-ch:
		assert.Equal(t, "[10:00:00] after", line)
	case <-time.After(time.Second):
		t.Fatal("no line delivered")
	}

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	// appends after unsubscribe must not panic on the closed channel
	r.Append("later")
}

func TestRingBuffer_SlowSubscriberDoesNotBlock(t *testing.T) {
	r := NewRingBuffer(10)
	r.subBuf = 1
	ch, cancel := r.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Append("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Append blocked on a slow subscriber")
	}
	require.Len(t, ch, 1)
}
