package signal_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/intervaltimer/internal/signal"
)

func receiveAsync(r *signal.Receiver) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Receive() }()
	return done
}

func TestSignal_SendBeforeReceive(t *testing.T) {
	s, r := signal.New()

	require.NoError(t, s.Send())

	// The pending slot is consumed without blocking.
	select {
	case err := <-receiveAsync(r):
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected Receive() to return after an earlier Send()")
	}
}

func TestSignal_ReceiveBlocksUntilSend(t *testing.T) {
	s, r := signal.New()
	done := receiveAsync(r)

	select {
	case <-done:
		t.Fatal("expected Receive() to block without Send()")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, s.Send())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected Receive() to return after Send()")
	}
}

func TestSignal_SendsCollapse(t *testing.T) {
	s, r := signal.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Send())
	}

	require.NoError(t, <-receiveAsync(r))

	// Only one wake-up was recorded.
	done := receiveAsync(r)
	select {
	case <-done:
		t.Fatal("expected second Receive() to block")
	case <-time.After(50 * time.Millisecond):
	}

	s.Close()
	assert.ErrorIs(t, <-done, signal.ErrClosed)
}

func TestSignal_Close(t *testing.T) {
	s, r := signal.New()
	done := receiveAsync(r)

	s.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, signal.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("expected Close() to wake Receive()")
	}

	assert.ErrorIs(t, s.Send(), signal.ErrClosed)
	assert.ErrorIs(t, r.Receive(), signal.ErrClosed)

	// Verify idempotent
	s.Close()
}

func TestSignal_Poison(t *testing.T) {
	s, r := signal.New()
	done := receiveAsync(r)

	err := r.Poison("tick panicked")
	require.ErrorIs(t, err, signal.ErrPoisoned)
	assert.Contains(t, err.Error(), "tick panicked")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, signal.ErrPoisoned)
	case <-time.After(time.Second):
		t.Fatal("expected Poison() to wake Receive()")
	}

	assert.ErrorIs(t, s.Send(), signal.ErrPoisoned)

	// First cause wins.
	again := r.Poison(errors.New("second"))
	assert.Equal(t, err, again)
}

func TestSignal_TryConsume(t *testing.T) {
	s, r := signal.New()

	assert.False(t, r.TryConsume(), "expected TryConsume() = false with nothing pending")

	require.NoError(t, s.Send())
	assert.True(t, r.TryConsume())
	assert.False(t, r.TryConsume(), "expected the wake-up to be consumed once")

	// Nothing left for Receive.
	done := receiveAsync(r)
	select {
	case <-done:
		t.Fatal("expected Receive() to block after TryConsume()")
	case <-time.After(50 * time.Millisecond):
	}
	s.Close()
	assert.ErrorIs(t, <-done, signal.ErrClosed)
}
