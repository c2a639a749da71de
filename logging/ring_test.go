package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_KeepsMostRecent(t *testing.T) {
	ring := NewRing(3, slog.LevelDebug)
	logger := slog.New(ring)

	for i := range 5 {
		logger.Info(fmt.Sprintf("msg %d", i))
	}

	entries := ring.Entries(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "msg 2", entries[0].Message)
	assert.Equal(t, "msg 4", entries[2].Message)

	last := ring.Entries(2)
	require.Len(t, last, 2)
	assert.Equal(t, "msg 3", last[0].Message)

	assert.Len(t, ring.Entries(100), 3)
}

func TestRing_Level(t *testing.T) {
	ring := NewRing(10, slog.LevelWarn)
	logger := slog.New(ring)

	logger.Info("skip")
	logger.Warn("keep")
	logger.Error("keep too")

	entries := ring.Entries(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "ERROR", entries[1].Level)
}

func TestRing_Attrs(t *testing.T) {
	ring := NewRing(0, nil)
	logger := slog.New(ring).With("component", "search").WithGroup("query")

	logger.Info("searched", "limit", 5, "err", errors.New("boom"), "took", time.Second,
		slog.Group("opts", "threshold", 0.3))

	entries := ring.Entries(0)
	require.Len(t, entries, 1)
	attrs := entries[0].Attrs
	assert.Equal(t, "search", attrs["component"])
	assert.EqualValues(t, 5, attrs["query.limit"])
	assert.Equal(t, "boom", attrs["query.err"])
	assert.Equal(t, "1s", attrs["query.took"])
	assert.Equal(t, 0.3, attrs["query.opts.threshold"])
}

func TestRing_DerivedHandlersShareBuffer(t *testing.T) {
	ring := NewRing(10, nil)
	slog.New(ring).With("a", 1).Info("one")
	slog.New(ring).Info("two")
	assert.Equal(t, 2, ring.Len())

	ring.Clear()
	assert.Zero(t, ring.Len())
	assert.Empty(t, ring.Entries(0))
}

func TestRing_Subscribe(t *testing.T) {
	ring := NewRing(10, nil)
	logger := slog.New(ring)

	logger.Info("before")
	ch, cancel := ring.Subscribe(4)
	logger.Info("after")

	select {
	case e := <-ch:
		assert.Equal(t, "after", e.Message)
	case <-time.After(time.Second):
		t.Fatal("no entry delivered")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// logging after unsubscribe must not panic
	logger.Info("later")
	assert.Equal(t, 3, ring.Len())
}

func TestRing_SlowSubscriberDoesNotBlock(t *testing.T) {
	ring := NewRing(10, nil)
	_, cancel := ring.Subscribe(1)
	defer cancel()

	logger := slog.New(ring)
	done := make(chan struct{})
	go func() {
		for range 5 {
			logger.Info("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("logging blocked on a full subscriber")
	}
}
