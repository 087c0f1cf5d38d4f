package node

import (
	"fmt"

	"github.com/distribuidos-chat/chatnode/internal/chat"
	"github.com/distribuidos-chat/chatnode/internal/codec"
	"github.com/distribuidos-chat/chatnode/internal/logging"
	"github.com/distribuidos-chat/chatnode/internal/membership"
)

// handleMulticast demultiplexes datagrams on the discovery/heartbeat
// channel. Unknown tags are silently discarded.
func (n *Node) handleMulticast(msg codec.Message, fromIP string) {
	switch msg.Type {
	case codec.TagJoinRequest:
		if !n.view.IsCoordinator() {
			return
		}
		var p codec.JoinRequestPayload
		if err := codec.DecodePayload(msg, &p); err != nil {
			return
		}
		n.coordRole.Admit(fromIP, p)

	case codec.TagHeartbeat:
		if n.view.IsCoordinator() {
			return
		}
		var p codec.HeartbeatPayload
		if err := codec.DecodePayload(msg, &p); err != nil {
			return
		}
		n.view.SetCoordinator(p.CoordinatorID)
		n.view.RefreshHeartbeat()

	default:
		// discard
	}
}

// handleDirect demultiplexes one-shot TCP messages.
func (n *Node) handleDirect(msg codec.Message) {
	switch msg.Type {
	case codec.TagJoinResponse:
		n.handleJoinResponse(msg)

	case codec.TagPeerUpdate:
		n.handlePeerUpdate(msg)

	case codec.TagChatMessage:
		n.handleChatMessage(msg)

	case codec.TagElection:
		var p codec.ElectionPayload
		if err := codec.DecodePayload(msg, &p); err != nil {
			return
		}
		n.engine.HandleElection(p.SenderID)

	case codec.TagElectionOK:
		var p codec.ElectionOKPayload
		if err := codec.DecodePayload(msg, &p); err != nil {
			return
		}
		n.engine.HandleElectionOK(p.SenderID)

	case codec.TagCoordinatorAnnouncement:
		var p codec.CoordinatorAnnouncementPayload
		if err := codec.DecodePayload(msg, &p); err != nil {
			return
		}
		n.engine.HandleAnnouncement(p.CoordinatorID)

	case codec.TagLeaveRequest:
		if !n.view.IsCoordinator() {
			return
		}
		var p codec.LeaveRequestPayload
		if err := codec.DecodePayload(msg, &p); err != nil {
			return
		}
		n.coordRole.HandleLeave(p.NodeID)

	default:
		// discard
	}
}

// handleJoinResponse implements the join-response adoption step, plus the
// late-response guard: once an identifier is assigned, further responses
// (including ones whose nonce doesn't match the still-outstanding
// request) are discarded.
func (n *Node) handleJoinResponse(msg codec.Message) {
	if n.view.SelfID() != membership.UnassignedID {
		return
	}

	var p codec.JoinResponsePayload
	if err := codec.DecodePayload(msg, &p); err != nil {
		return
	}

	n.nonceMu.Lock()
	expected := n.pendingNonce
	n.nonceMu.Unlock()
	if expected != "" && p.Nonce != expected {
		logging.System().Infof("discarding JOIN_RESPONSE with stale nonce")
		return
	}

	n.view.AdoptJoinResponse(p.NewID, p.CoordinatorID, p.Peers)
	n.history.Seed(p.History)

	n.out.System(fmt.Sprintf("Conectado à rede com sucesso! Meu ID é %d.", p.NewID))
	n.out.System(fmt.Sprintf("Coordenador atual: ID %d.", p.CoordinatorID))
	n.out.System(fmt.Sprintf("Nós na rede: %v", n.view.PeerIDs()))

	n.out.System("--- Histórico de Mensagens Recebido ---")
	for _, line := range n.history.Lines() {
		n.out.Chat(line)
	}
	n.out.System("-------------------------------------")
}

// handlePeerUpdate handles joins and departures distinctly, each with its
// own log line.
func (n *Node) handlePeerUpdate(msg codec.Message) {
	var p codec.PeerUpdatePayload
	if err := codec.DecodePayload(msg, &p); err != nil {
		return
	}

	n.view.ReplacePeers(p.Peers)

	switch {
	case p.Joined != membership.UnassignedID:
		n.out.System(fmt.Sprintf("Nó %d ('%s') entrou no chat.", p.Joined, p.Nickname))
	case p.Departed != membership.UnassignedID:
		n.out.System(fmt.Sprintf("Nó %d saiu do chat.", p.Departed))
	}
	n.out.System(fmt.Sprintf("Nós na rede: %v", n.view.PeerIDs()))
}

// handleChatMessage implements the receive path, including the
// "Desconhecido" fallback for an unrecognized sender.
func (n *Node) handleChatMessage(msg codec.Message) {
	var p codec.ChatMessagePayload
	if err := codec.DecodePayload(msg, &p); err != nil {
		return
	}

	peer, found := n.view.Peer(p.SenderID)
	nickname := chat.NicknameOrUnknown(peer.Nickname, found)
	line := chat.RenderReceived(nickname, p.SenderID, p.Text)
	logging.Chat().Infof("received message from node %d (%d bytes)", p.SenderID, len(p.Text))

	n.history.Append(line)
	n.out.Chat(line)
}
