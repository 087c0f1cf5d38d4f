// Package coordinator implements the active-coordinator responsibilities:
// admitting new peers, emitting heartbeats, and disseminating membership
// updates. It holds no lock of its own beyond what the shared
// membership.View already provides.
package coordinator

import (
	"time"

	"github.com/distribuidos-chat/chatnode/internal/chat"
	"github.com/distribuidos-chat/chatnode/internal/codec"
	"github.com/distribuidos-chat/chatnode/internal/logging"
	"github.com/distribuidos-chat/chatnode/internal/membership"
	"github.com/distribuidos-chat/chatnode/internal/transport"
)

// Role bundles the coordinator-only behaviors. A node constructs one but
// only invokes its methods while membership.View.IsCoordinator() is true.
type Role struct {
	view              *membership.View
	history           *chat.History
	multicast         *transport.Multicast
	heartbeatInterval time.Duration

	stopHeartbeat chan struct{}
}

// New builds a coordinator role bound to the shared view, history and
// multicast channel.
func New(view *membership.View, history *chat.History, mc *transport.Multicast, heartbeatInterval time.Duration) *Role {
	return &Role{
		view:              view,
		history:           history,
		multicast:         mc,
		heartbeatInterval: heartbeatInterval,
	}
}

// Admit handles a JOIN_REQUEST observed on the multicast channel:
// allocate the next identifier, record the peer, reply with a
// JOIN_RESPONSE, then fan out a PEER_UPDATE to everyone else.
func (r *Role) Admit(fromIP string, payload codec.JoinRequestPayload) {
	newID := r.view.MaxPeerID() + 1

	r.view.Admit(newID, fromIP, payload.TCPPort, payload.Nickname)

	logging.Coordinator().Infof("new node %q@%s:%d requested entry, assigning ID %d", payload.Nickname, fromIP, payload.TCPPort, newID)

	resp := codec.JoinResponsePayload{
		NewID:         newID,
		Peers:         r.view.PeersWire(),
		CoordinatorID: r.view.CoordinatorID(),
		History:       r.history.Lines(),
		Nonce:         payload.Nonce,
	}
	newAddr := membership.Peer{Host: fromIP, Port: payload.TCPPort}.Addr()
	transport.Send(newAddr, codec.TagJoinResponse, resp)

	update := codec.PeerUpdatePayload{
		Peers:    r.view.PeersWire(),
		Joined:   newID,
		Nickname: payload.Nickname,
	}
	r.broadcastExcept(update, newID)
}

// HandleLeave processes a voluntary LEAVE_REQUEST: remove the peer and
// announce the departure to the rest of the view.
func (r *Role) HandleLeave(nodeID int) {
	r.view.Remove(nodeID)
	logging.Coordinator().Infof("node %d left voluntarily", nodeID)

	update := codec.PeerUpdatePayload{
		Peers:    r.view.PeersWire(),
		Departed: nodeID,
	}
	r.broadcastExcept(update, membership.UnassignedID)
}

func (r *Role) broadcastExcept(update codec.PeerUpdatePayload, exclude int) {
	self := r.view.SelfID()
	for _, p := range r.view.Peers() {
		if p.ID == self || p.ID == exclude {
			continue
		}
		go transport.Send(p.Addr(), codec.TagPeerUpdate, update)
	}
}

// StartHeartbeats begins emitting HEARTBEAT on the multicast channel every
// heartbeatInterval, until StopHeartbeats is called. Run in its
// own goroutine by the caller.
func (r *Role) StartHeartbeats() {
	r.stopHeartbeat = make(chan struct{})
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	selfID := r.view.SelfID()
	logging.Coordinator().Infof("starting heartbeat emission (every %s)", r.heartbeatInterval)

	for {
		select {
		case <-ticker.C:
			if !r.view.IsCoordinator() {
				logging.Coordinator().Infof("no longer coordinator, stopping heartbeats")
				return
			}
			r.multicast.Send(codec.TagHeartbeat, codec.HeartbeatPayload{CoordinatorID: selfID})
		case <-r.stopHeartbeat:
			return
		}
	}
}

// StopHeartbeats signals voluntary exit: the coordinator simply
// stops emitting; it does not notify anyone. Remaining nodes detect
// staleness and elect a successor.
func (r *Role) StopHeartbeats() {
	if r.stopHeartbeat != nil {
		close(r.stopHeartbeat)
	}
}
