// Package codec implements the wire taxonomy: a tagged record
// {type, payload}, encoded as a single JSON object per message. Direct (TCP)
// exchanges are one-shot, one encoded message per connection. Multicast
// (UDP) exchanges are one encoded message per datagram.
package codec

import "encoding/json"

// Tag identifies a message's payload shape.
type Tag string

const (
	TagJoinRequest             Tag = "JOIN_REQUEST"
	TagJoinResponse            Tag = "JOIN_RESPONSE"
	TagPeerUpdate              Tag = "PEER_UPDATE"
	TagChatMessage             Tag = "CHAT_MESSAGE"
	TagHeartbeat               Tag = "HEARTBEAT"
	TagElection                Tag = "ELECTION"
	TagElectionOK              Tag = "ELECTION_OK"
	TagCoordinatorAnnouncement Tag = "COORDINATOR_ANNOUNCEMENT"
	TagLeaveRequest            Tag = "LEAVE_REQUEST"
)

// PeerWire is the over-the-wire shape of a membership.Peer: identifier,
// host, TCP port and nickname. Kept decoupled from internal/membership so
// the codec package has no dependency on it.
type PeerWire struct {
	ID       int    `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Nickname string `json:"nickname"`
}

// JoinRequestPayload is carried over multicast by a fresh node.
type JoinRequestPayload struct {
	TCPPort  int    `json:"tcp_port"`
	Nickname string `json:"nickname"`
	Nonce    string `json:"nonce"`
}

// JoinResponsePayload bootstraps a newly admitted node.
type JoinResponsePayload struct {
	NewID          int        `json:"new_id"`
	Peers          []PeerWire `json:"peers"`
	CoordinatorID  int        `json:"coordinator_id"`
	History        []string   `json:"history"`
	Nonce          string     `json:"nonce"`
}

// PeerUpdatePayload disseminates a membership change. Joined and Departed
// are mutually exclusive and both optional (omitted -> zero value).
type PeerUpdatePayload struct {
	Peers    []PeerWire `json:"peers"`
	Joined   int        `json:"joined,omitempty"`
	Nickname string     `json:"nickname,omitempty"`
	Departed int        `json:"departed,omitempty"`
}

// ChatMessagePayload is a chat broadcast.
type ChatMessagePayload struct {
	SenderID int    `json:"sender_id"`
	Text     string `json:"text"`
}

// HeartbeatPayload is the coordinator's multicast liveness beacon.
type HeartbeatPayload struct {
	CoordinatorID int `json:"coordinator_id"`
}

// ElectionPayload carries the challenger's identifier.
type ElectionPayload struct {
	SenderID int `json:"sender_id"`
}

// ElectionOKPayload carries the responder's identifier.
type ElectionOKPayload struct {
	SenderID int `json:"sender_id"`
}

// CoordinatorAnnouncementPayload asserts a new coordinator unconditionally.
type CoordinatorAnnouncementPayload struct {
	CoordinatorID int `json:"coordinator_id"`
}

// LeaveRequestPayload notifies the coordinator of a voluntary departure.
type LeaveRequestPayload struct {
	NodeID int `json:"node_id"`
}

// Message is the on-wire envelope: a tag and its raw payload. The payload
// is decoded into the concrete type once the tag is known.
type Message struct {
	Type    Tag             `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes tag + payload into the wire envelope.
func Encode(tag Tag, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: tag, Payload: raw})
}

// Decode parses the wire envelope. Callers switch on msg.Type and decode
// msg.Payload into the matching concrete payload type. An unknown tag is
// not an error at this layer; the dispatcher treats it as a discard.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// DecodePayload unmarshals a message's payload into dst (a pointer).
func DecodePayload(msg Message, dst any) error {
	return json.Unmarshal(msg.Payload, dst)
}
