// Package election implements the Bully leader-election engine: highest
// identifier wins. An election is triggered either by the failure
// detector or by an inbound ELECTION from a lower-identifier peer; it ends
// by concession (an ELECTION_OK arrives), by accepting an announcement, or
// by self-promotion once the wait expires with no response.
package election

import (
	"time"

	"github.com/distribuidos-chat/chatnode/internal/codec"
	"github.com/distribuidos-chat/chatnode/internal/logging"
	"github.com/distribuidos-chat/chatnode/internal/membership"
	"github.com/distribuidos-chat/chatnode/internal/transport"
)

// Engine runs the Bully state machine against a shared membership view.
type Engine struct {
	view            *membership.View
	electionTimeout time.Duration

	// onPromoted fires after this node becomes coordinator by election
	// victory, so the caller can start the heartbeat emitter.
	onPromoted func()
}

// NewEngine builds an election engine bound to view.
func NewEngine(view *membership.View, electionTimeout time.Duration, onPromoted func()) *Engine {
	return &Engine{view: view, electionTimeout: electionTimeout, onPromoted: onPromoted}
}

// StartElection runs the challenge/wait/self-promote sequence. It is a
// no-op if an election is already in progress (the TryStartElection guard
// closes the race between the failure detector and the inbound
// dispatcher, both of which can trigger one).
func (e *Engine) StartElection() {
	if !e.view.TryStartElection() {
		return
	}

	selfID := e.view.SelfID()
	challengers := e.view.HigherPeerIDs()

	if len(challengers) == 0 {
		e.promote()
		return
	}

	logging.Election().Infof("node %d sending ELECTION to challengers %v", selfID, challengers)
	for _, id := range challengers {
		peer, ok := e.view.Peer(id)
		if !ok {
			continue
		}
		go transport.Send(peer.Addr(), codec.TagElection, codec.ElectionPayload{SenderID: selfID})
	}

	time.Sleep(e.electionTimeout)

	if e.view.InElection() {
		logging.Election().Infof("no challenger responded, node %d self-promoting", selfID)
		e.promote()
	}
}

// promote installs this node as coordinator and announces it, the
// election-victory path. Bootstrap (no network found) is handled directly
// by the node package instead, since it must never send an announcement.
func (e *Engine) promote() {
	selfID := e.view.SelfID()
	e.view.BecomeCoordinatorByElection()
	e.view.EndElection()

	logging.Election().Infof("*** node %d is the new coordinator ***", selfID)

	for _, p := range e.view.Peers() {
		if p.ID == selfID {
			continue
		}
		go transport.Send(p.Addr(), codec.TagCoordinatorAnnouncement, codec.CoordinatorAnnouncementPayload{CoordinatorID: selfID})
	}

	if e.onPromoted != nil {
		e.onPromoted()
	}
}

// HandleElection processes an inbound ELECTION{sender_id}. If this node's
// id is higher, it replies ELECTION_OK and, unless already electing,
// starts its own election. Otherwise it's ignored: the sender won't defer
// to us anyway.
func (e *Engine) HandleElection(senderID int) {
	selfID := e.view.SelfID()
	logging.Election().Infof("received ELECTION from node %d", senderID)

	if selfID <= senderID {
		return
	}

	if peer, ok := e.view.Peer(senderID); ok {
		go transport.Send(peer.Addr(), codec.TagElectionOK, codec.ElectionOKPayload{SenderID: selfID})
	}

	if !e.view.InElection() {
		go e.StartElection()
	}
}

// HandleElectionOK processes an inbound ELECTION_OK by conceding.
func (e *Engine) HandleElectionOK(senderID int) {
	logging.Election().Infof("received ELECTION_OK from node %d, conceding", senderID)
	e.view.ConcedeElection()
}

// HandleAnnouncement processes an inbound COORDINATOR_ANNOUNCEMENT,
// accepted unconditionally: no epoch or versioning.
func (e *Engine) HandleAnnouncement(coordinatorID int) {
	e.view.AcceptAnnouncement(coordinatorID)
	logging.System().Infof("new coordinator elected: node %d", coordinatorID)
}
