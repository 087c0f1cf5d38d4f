package detector_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/distribuidos-chat/chatnode/internal/codec"
	"github.com/distribuidos-chat/chatnode/internal/detector"
	"github.com/distribuidos-chat/chatnode/internal/membership"
)

func TestCheckSkipsWhenCoordinator(t *testing.T) {
	view := membership.New()
	view.Bootstrap("127.0.0.1", 10500, "a")

	var fired int32
	d := detector.New(view, 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	go d.Run()
	defer d.Stop()

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestCheckSkipsWhenUnassigned(t *testing.T) {
	view := membership.New() // selfID stays UnassignedID

	var fired int32
	d := detector.New(view, 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	go d.Run()
	defer d.Stop()

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestCheckSkipsWhileElectionInProgress(t *testing.T) {
	view := membership.New()
	view.AdoptJoinResponse(2, 1, []codec.PeerWire{{ID: 1}, {ID: 2}})
	view.TryStartElection()

	var fired int32
	d := detector.New(view, 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	go d.Run()
	defer d.Stop()

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestCheckFiresOnStaleHeartbeat(t *testing.T) {
	view := membership.New()
	view.AdoptJoinResponse(2, 1, []codec.PeerWire{{ID: 1}, {ID: 2}})

	fired := make(chan struct{}, 1)
	d := detector.New(view, 20*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	go d.Run()
	defer d.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected detector to fire once heartbeat goes stale")
	}
}

func TestCheckDoesNotFireWhenHeartbeatsKeepArriving(t *testing.T) {
	view := membership.New()
	view.AdoptJoinResponse(2, 1, []codec.PeerWire{{ID: 1}, {ID: 2}})

	var fired int32
	d := detector.New(view, 30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	go d.Run()
	defer d.Stop()

	refresh := time.NewTicker(10 * time.Millisecond)
	defer refresh.Stop()
	deadline := time.After(150 * time.Millisecond)
loop:
	for {
		select {
		case <-refresh.C:
			view.RefreshHeartbeat()
		case <-deadline:
			break loop
		}
	}

	require.Equal(t, int32(0), atomic.LoadInt32(&fired))
}
