package election_test

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/distribuidos-chat/chatnode/internal/codec"
	"github.com/distribuidos-chat/chatnode/internal/election"
	"github.com/distribuidos-chat/chatnode/internal/membership"
)

// fakePeer is a minimal direct-channel listener standing in for a peer
// node, used to observe what the election engine sends it.
type fakePeer struct {
	ln   net.Listener
	port int
	got  chan codec.Message
}

func newFakePeer(t *testing.T) *fakePeer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fp := &fakePeer{ln: ln, got: make(chan codec.Message, 16)}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	fp.port = port

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				n, err := conn.Read(buf)
				if err != nil {
					return
				}
				msg, err := codec.Decode(buf[:n])
				if err == nil {
					fp.got <- msg
				}
			}()
		}
	}()
	return fp
}

// respondOK writes an ELECTION_OK reply to accepted connections, emulating
// a live higher-identifier peer.
func (fp *fakePeer) respondOK(senderID int) {
	go func() {
		conn, err := fp.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		data, _ := codec.Encode(codec.TagElectionOK, codec.ElectionOKPayload{SenderID: senderID})
		conn.Write(data)
	}()
}

func (fp *fakePeer) close() { fp.ln.Close() }

// No challengers: immediately promote.
func TestStartElectionPromotesWhenNoHigherPeers(t *testing.T) {
	view := membership.New()
	view.AdoptJoinResponse(3, 0, []codec.PeerWire{{ID: 3, Host: "127.0.0.1", Port: 1}})

	promoted := make(chan struct{}, 1)
	engine := election.NewEngine(view, 200*time.Millisecond, func() { promoted <- struct{}{} })

	engine.StartElection()

	select {
	case <-promoted:
	case <-time.After(time.Second):
		t.Fatal("expected promotion callback")
	}
	require.Equal(t, 3, view.CoordinatorID())
	require.False(t, view.InElection())
}

// All higher-identifier peers dead: ELECTION_TIMEOUT expires with no
// ELECTION_OK, self-promote.
func TestStartElectionPromotesAfterTimeoutWithNoResponse(t *testing.T) {
	view := membership.New()
	// A higher peer id that nobody is listening on.
	view.AdoptJoinResponse(2, 0, []codec.PeerWire{
		{ID: 2, Host: "127.0.0.1", Port: 1},
		{ID: 3, Host: "127.0.0.1", Port: 1}, // unreachable: port 1 refuses
	})

	promoted := make(chan struct{}, 1)
	engine := election.NewEngine(view, 150*time.Millisecond, func() { promoted <- struct{}{} })

	engine.StartElection()

	select {
	case <-promoted:
	case <-time.After(2 * time.Second):
		t.Fatal("expected eventual self-promotion")
	}
	require.Equal(t, 2, view.CoordinatorID())
}

// Concession: a higher peer replies OK, engine should not self-promote.
func TestStartElectionConcedesOnElectionOK(t *testing.T) {
	higher := newFakePeer(t)
	defer higher.close()
	higher.respondOK(9)

	view := membership.New()
	view.AdoptJoinResponse(5, 0, []codec.PeerWire{
		{ID: 5, Host: "127.0.0.1", Port: 1},
		{ID: 9, Host: "127.0.0.1", Port: higher.port},
	})

	promoted := make(chan struct{}, 1)
	engine := election.NewEngine(view, 300*time.Millisecond, func() { promoted <- struct{}{} })

	done := make(chan struct{})
	go func() {
		engine.StartElection()
		close(done)
	}()

	// Give the OK reply time to arrive and be processed by HandleElectionOK
	// (the engine itself doesn't read responses synchronously in this
	// implementation, so the test drives that explicitly).
	time.Sleep(50 * time.Millisecond)
	engine.HandleElectionOK(9)

	<-done
	select {
	case <-promoted:
		t.Fatal("should not self-promote after conceding")
	default:
	}
	require.False(t, view.InElection())
}

func TestHandleElectionRepliesOKWhenHigher(t *testing.T) {
	challenger := newFakePeer(t)
	defer challenger.close()

	view := membership.New()
	view.AdoptJoinResponse(5, 0, []codec.PeerWire{
		{ID: 5, Host: "127.0.0.1", Port: 1},
		{ID: 2, Host: "127.0.0.1", Port: challenger.port},
	})

	engine := election.NewEngine(view, 100*time.Millisecond, func() {})
	engine.HandleElection(2)

	select {
	case msg := <-challenger.got:
		require.Equal(t, codec.TagElectionOK, msg.Type)
		var p codec.ElectionOKPayload
		require.NoError(t, codec.DecodePayload(msg, &p))
		require.Equal(t, 5, p.SenderID)
	case <-time.After(time.Second):
		t.Fatal("expected ELECTION_OK to be sent to the lower-id challenger")
	}
}

func TestHandleElectionIgnoredWhenSelfLower(t *testing.T) {
	view := membership.New()
	view.AdoptJoinResponse(2, 0, []codec.PeerWire{{ID: 2}, {ID: 9}})

	engine := election.NewEngine(view, 100*time.Millisecond, func() {})
	engine.HandleElection(9)

	require.False(t, view.InElection())
}

func TestHandleAnnouncementAcceptedUnconditionally(t *testing.T) {
	view := membership.New()
	view.AdoptJoinResponse(2, 1, []codec.PeerWire{{ID: 1}, {ID: 2}, {ID: 3}})
	view.TryStartElection()

	engine := election.NewEngine(view, 100*time.Millisecond, func() {})
	engine.HandleAnnouncement(3)

	require.Equal(t, 3, view.CoordinatorID())
	require.False(t, view.InElection())
}
