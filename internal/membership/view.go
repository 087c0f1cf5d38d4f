// Package membership holds the authoritative in-memory peer table and
// the liveness/election state that's shared across every concurrent
// activity in the node. A single mutex serializes all mutation; the
// election flag in particular is read and written from both the election
// engine and the inbound dispatcher, so every access goes through View.
package membership

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/distribuidos-chat/chatnode/internal/codec"
)

// UnassignedID is the sentinel identifier meaning "not yet a member".
const UnassignedID = 0

// Peer is the tuple of identifier, network address, and nickname.
type Peer struct {
	ID       int
	Host     string
	Port     int
	Nickname string
}

// Addr renders the peer's direct-channel address for net.Dial.
func (p Peer) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p Peer) wire() codec.PeerWire {
	return codec.PeerWire{ID: p.ID, Host: p.Host, Port: p.Port, Nickname: p.Nickname}
}

func fromWire(w codec.PeerWire) Peer {
	return Peer{ID: w.ID, Host: w.Host, Port: w.Port, Nickname: w.Nickname}
}

// View is the mutex-guarded membership table plus the liveness and election
// state that ride alongside it. All fields are private; every
// read or write goes through a method so the table's invariants hold.
type View struct {
	mu sync.Mutex

	selfID        int
	coordinatorID int
	peers         map[int]Peer

	lastHeartbeat time.Time
	inElection    bool
}

// New returns an empty view: no self id, no coordinator.
func New() *View {
	return &View{
		peers:         make(map[int]Peer),
		lastHeartbeat: time.Now(),
	}
}

// SelfID returns this node's own identifier (UnassignedID if not yet a
// member).
func (v *View) SelfID() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selfID
}

// CoordinatorID returns the identifier of the believed current coordinator.
func (v *View) CoordinatorID() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.coordinatorID
}

// IsCoordinator reports whether this node believes itself the coordinator.
func (v *View) IsCoordinator() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selfID != UnassignedID && v.selfID == v.coordinatorID
}

// Peer looks up a peer record by identifier.
func (v *View) Peer(id int) (Peer, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.peers[id]
	return p, ok
}

// Peers returns a snapshot slice of every known peer.
func (v *View) Peers() []Peer {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Peer, 0, len(v.peers))
	for _, p := range v.peers {
		out = append(out, p)
	}
	return out
}

// PeerIDs returns a snapshot slice of every known identifier.
func (v *View) PeerIDs() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]int, 0, len(v.peers))
	for id := range v.peers {
		out = append(out, id)
	}
	return out
}

// HigherPeerIDs returns identifiers strictly greater than self, the Bully
// challenger set.
func (v *View) HigherPeerIDs() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]int, 0)
	for id := range v.peers {
		if id > v.selfID {
			out = append(out, id)
		}
	}
	return out
}

// MaxPeerID returns the greatest identifier currently present, or 0 if the
// view is empty. Used by the coordinator's admission logic.
func (v *View) MaxPeerID() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	max := 0
	for id := range v.peers {
		if id > max {
			max = id
		}
	}
	return max
}

// Bootstrap installs this node as the sole peer and coordinator with id 1,
// the lone-node startup path.
func (v *View) Bootstrap(selfHost string, selfPort int, nickname string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selfID = 1
	v.coordinatorID = 1
	v.peers = map[int]Peer{1: {ID: 1, Host: selfHost, Port: selfPort, Nickname: nickname}}
	v.lastHeartbeat = time.Now()
}

// AdoptJoinResponse replaces the view wholesale on receipt of a
// JOIN_RESPONSE, the only case where the full table is overwritten
// rather than incrementally updated.
func (v *View) AdoptJoinResponse(newID, coordinatorID int, wire []codec.PeerWire) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selfID = newID
	v.coordinatorID = coordinatorID
	v.peers = make(map[int]Peer, len(wire))
	for _, w := range wire {
		v.peers[w.ID] = fromWire(w)
	}
	v.lastHeartbeat = time.Now()
}

// ReplacePeers overwrites the peer table from a PEER_UPDATE: last writer
// wins, no versioning.
func (v *View) ReplacePeers(wire []codec.PeerWire) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := make(map[int]Peer, len(wire))
	for _, w := range wire {
		next[w.ID] = fromWire(w)
	}
	v.peers = next
}

// Admit inserts a new peer record, used by the coordinator when handling
// JOIN_REQUEST.
func (v *View) Admit(id int, host string, port int, nickname string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.peers[id] = Peer{ID: id, Host: host, Port: port, Nickname: nickname}
}

// Remove deletes a peer from the table, used by the coordinator when a
// LEAVE_REQUEST takes it out of the overlay. Failed peers are not removed.
func (v *View) Remove(id int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.peers, id)
}

// PeersWire returns the current peer table in wire form, for embedding in
// JOIN_RESPONSE / PEER_UPDATE payloads.
func (v *View) PeersWire() []codec.PeerWire {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]codec.PeerWire, 0, len(v.peers))
	for _, p := range v.peers {
		out = append(out, p.wire())
	}
	return out
}

// SetCoordinator records a new coordinator identity, the effect of a
// non-coordinator node observing a HEARTBEAT. It leaves the election flag
// and liveness timestamp alone; AcceptAnnouncement handles
// COORDINATOR_ANNOUNCEMENT.
func (v *View) SetCoordinator(id int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.coordinatorID = id
}

// BecomeCoordinatorByElection sets the coordinator id to this node's own
// id, the election-victory path. The node keeps its existing identifier.
func (v *View) BecomeCoordinatorByElection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.coordinatorID = v.selfID
}

// AcceptAnnouncement applies a COORDINATOR_ANNOUNCEMENT unconditionally
//: sets coordinator id, recomputes is_coordinator, clears the
// election flag and refreshes liveness.
func (v *View) AcceptAnnouncement(coordinatorID int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.coordinatorID = coordinatorID
	v.inElection = false
	v.lastHeartbeat = time.Now()
}

// RefreshHeartbeat records that a coordinator heartbeat was just observed.
func (v *View) RefreshHeartbeat() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastHeartbeat = time.Now()
}

// HeartbeatAge returns how long it has been since the last observed
// heartbeat.
func (v *View) HeartbeatAge() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return time.Since(v.lastHeartbeat)
}

// InElection reports the election-in-progress flag.
func (v *View) InElection() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inElection
}

// TryStartElection atomically sets the election flag if not already set,
// returning whether this call actually started it. Closes the race
// between the dispatcher and the election engine over who starts one.
func (v *View) TryStartElection() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.inElection {
		return false
	}
	v.inElection = true
	return true
}

// ConcedeElection clears the election flag after an ELECTION_OK was
// received.
func (v *View) ConcedeElection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inElection = false
}

// EndElection clears the election flag unconditionally, used once this
// node has self-promoted.
func (v *View) EndElection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inElection = false
}
