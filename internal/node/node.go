// Package node wires the codec, transports, membership view, failure
// detector, election engine and coordinator role together into the
// dispatcher and join state machine. It is the one package that knows
// about every other component.
package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/distribuidos-chat/chatnode/internal/chat"
	"github.com/distribuidos-chat/chatnode/internal/codec"
	"github.com/distribuidos-chat/chatnode/internal/config"
	"github.com/distribuidos-chat/chatnode/internal/coordinator"
	"github.com/distribuidos-chat/chatnode/internal/detector"
	"github.com/distribuidos-chat/chatnode/internal/election"
	"github.com/distribuidos-chat/chatnode/internal/logging"
	"github.com/distribuidos-chat/chatnode/internal/membership"
	"github.com/distribuidos-chat/chatnode/internal/transport"
)

// bootstrapHost is the address the first node in an overlay records for
// itself: the bootstrap path has no peer to learn a routable address
// from, so it falls back to loopback.
const bootstrapHost = "127.0.0.1"

// Node is a single participant: DISCOVERING until it adopts an identifier
// (via JOIN_RESPONSE or self-promotion), then JOINED for its lifetime.
type Node struct {
	cfg      config.Config
	nickname string
	out      Output

	view    *membership.View
	history *chat.History

	multicast *transport.Multicast
	direct    *transport.Direct

	detector  *detector.Detector
	engine    *election.Engine
	coordRole *coordinator.Role

	nonceMu      sync.Mutex
	pendingNonce string
}

// New constructs a node: binds the multicast socket and a randomly chosen
// direct TCP listener. Bind failures are lifecycle errors.
func New(cfg config.Config, nickname string, out Output) (*Node, error) {
	mc, err := transport.NewMulticast(cfg.MulticastGroup, cfg.MulticastPort)
	if err != nil {
		return nil, fmt.Errorf("multicast channel: %w", err)
	}

	low, high := cfg.TCPPortRange()
	direct, err := transport.NewDirect(low, high)
	if err != nil {
		mc.Close()
		return nil, fmt.Errorf("direct channel: %w", err)
	}

	view := membership.New()
	history := chat.NewHistory()

	n := &Node{
		cfg:       cfg,
		nickname:  nickname,
		out:       out,
		view:      view,
		history:   history,
		multicast: mc,
		direct:    direct,
	}

	n.coordRole = coordinator.New(view, history, mc, time.Duration(cfg.HeartbeatInterval))
	n.engine = election.NewEngine(view, time.Duration(cfg.ElectionTimeout), n.onPromoted)
	n.detector = detector.New(view, time.Duration(cfg.HeartbeatTimeout), n.engine.StartElection)

	return n, nil
}

// onPromoted starts heartbeat emission once this node wins an election.
// Bootstrap's own promotion path calls coordRole.StartHeartbeats directly
// since it must skip the announcement broadcast.
func (n *Node) onPromoted() {
	go n.coordRole.StartHeartbeats()
}

// Start launches every long-lived activity: the multicast listener, the
// TCP accept loop, the failure detector, and the join handshake. It does
// not block; the caller drives the foreground (terminal) loop separately.
func (n *Node) Start() {
	go n.direct.Accept(n.handleDirect)
	go n.multicast.Listen(n.handleMulticast)
	go n.detector.Run()

	go n.join()
}

// join implements the DISCOVERING state: emit one JOIN_REQUEST,
// wait ELECTION_TIMEOUT, and self-promote as the bootstrap node if still
// unassigned when the timer fires.
func (n *Node) join() {
	nonce := uuid.NewString()
	n.nonceMu.Lock()
	n.pendingNonce = nonce
	n.nonceMu.Unlock()

	n.out.System("Procurando por uma rede existente...")
	n.multicast.Send(codec.TagJoinRequest, codec.JoinRequestPayload{
		TCPPort:  n.direct.Port(),
		Nickname: n.nickname,
		Nonce:    nonce,
	})

	time.Sleep(time.Duration(n.cfg.ElectionTimeout))

	if n.view.SelfID() == membership.UnassignedID {
		n.bootstrap()
	}
}

// bootstrap is the lone-node path: become coordinator with id 1 without
// announcing (no one is listening yet).
func (n *Node) bootstrap() {
	n.view.Bootstrap(bootstrapHost, n.direct.Port(), n.nickname)
	n.out.System("Nenhuma rede encontrada. Tornando-se o primeiro nó e coordenador.")
	logging.Coordinator().Infof("*** node %d is the new coordinator (bootstrap) ***", n.view.SelfID())
	go n.coordRole.StartHeartbeats()
}

// IsJoined reports whether this node has an assigned identifier.
func (n *Node) IsJoined() bool {
	return n.view.SelfID() != membership.UnassignedID
}

// SelfID, CoordinatorID and PeerIDs expose read-only snapshots for the
// terminal adapter to print; observability is an external concern, the
// values themselves come from the core.
func (n *Node) SelfID() int          { return n.view.SelfID() }
func (n *Node) CoordinatorID() int   { return n.view.CoordinatorID() }
func (n *Node) PeerIDs() []int       { return n.view.PeerIDs() }
func (n *Node) History() []string    { return n.history.Lines() }
func (n *Node) IsCoordinator() bool  { return n.view.IsCoordinator() }

// SendChat implements the send path: local echo appended first, then
// fan-out to every other peer over the direct channel.
func (n *Node) SendChat(text string) {
	selfID := n.view.SelfID()
	n.history.Append(chat.RenderLocalEcho(selfID, text))
	logging.Chat().Infof("node %d sending message (%d bytes)", selfID, len(text))

	payload := codec.ChatMessagePayload{SenderID: selfID, Text: text}
	for _, p := range n.view.Peers() {
		if p.ID == selfID {
			continue
		}
		go transport.Send(p.Addr(), codec.TagChatMessage, payload)
	}
}

// Leave: a non-coordinator notifies the coordinator before tearing down;
// a coordinator just stops heartbeating and lets the others detect the
// silence and elect a successor.
func (n *Node) Leave() {
	n.out.System("Saindo da rede...")

	selfID := n.view.SelfID()
	if n.view.IsCoordinator() {
		if len(n.view.Peers()) > 1 {
			logging.Coordinator().Infof("leaving voluntarily; remaining nodes will elect a successor")
		}
		n.coordRole.StopHeartbeats()
	} else if selfID != membership.UnassignedID {
		coordID := n.view.CoordinatorID()
		if peer, ok := n.view.Peer(coordID); ok {
			transport.Send(peer.Addr(), codec.TagLeaveRequest, codec.LeaveRequestPayload{NodeID: selfID})
		}
	}

	n.Close()
}

// Close releases the node's sockets and stops its background activities.
func (n *Node) Close() {
	n.detector.Stop()
	n.multicast.Close()
	n.direct.Close()
}
