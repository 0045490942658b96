package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReaperRemovesExpiredTopicOnPass(t *testing.T) {
	r := NewRegistry()
	r.CreateTopic("orders", 0, time.Millisecond)

	reaper := NewReaper(r, 2*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := r.GetTopic("orders")
		return !ok
	}, 40*time.Millisecond, time.Millisecond)

	cancel()
	<-done
}

func TestReaperStopsOnContextCancel(t *testing.T) {
	r := NewRegistry()
	reaper := NewReaper(r, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after context cancellation")
	}
}
