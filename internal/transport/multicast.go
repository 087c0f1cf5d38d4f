// Package transport implements the two logical channels of the overlay:
// the multicast (UDP) discovery/heartbeat channel and the direct (TCP)
// one-shot control/chat channel.
package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"

	"github.com/distribuidos-chat/chatnode/internal/codec"
	"github.com/distribuidos-chat/chatnode/internal/logging"
)

// Multicast wraps the UDP socket used for both transmit and receive on the
// discovery/heartbeat group. Unlike net.ListenMulticastUDP, this binds a
// plain socket with SO_REUSEADDR set (so multiple nodes can run on one
// host) and joins the group through an ipv4.PacketConn with multicast
// loopback explicitly enabled, so nodes on the same host see each other's
// datagrams.
type Multicast struct {
	group *net.UDPAddr
	conn  *net.UDPConn
	pc    *ipv4.PacketConn
}

// NewMulticast binds a UDP socket to the port on all interfaces, joins the
// multicast group, and enables loopback delivery. Bind failure is a
// lifecycle error: fatal.
func NewMulticast(group string, port int) (*Multicast, error) {
	groupIP := net.ParseIP(group)
	if groupIP == nil {
		return nil, fmt.Errorf("invalid multicast group address %q", group)
	}
	gaddr := &net.UDPAddr{IP: groupIP, Port: port}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	packetConn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind multicast port %d: %w", port, err)
	}
	conn := packetConn.(*net.UDPConn)

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(nil, gaddr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join multicast group %s:%d: %w", group, port, err)
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable multicast loopback on %s:%d: %w", group, port, err)
	}

	logging.Multicast().Infof("joined multicast group %s:%d", group, port)
	return &Multicast{group: gaddr, conn: conn, pc: pc}, nil
}

// Send encodes tag+payload and writes one datagram to the multicast group.
// Best-effort: transport errors are swallowed.
func (m *Multicast) Send(tag codec.Tag, payload any) {
	data, err := codec.Encode(tag, payload)
	if err != nil {
		logging.Multicast().Errorf("encode %s: %v", tag, err)
		return
	}
	if _, err := m.conn.WriteToUDP(data, m.group); err != nil {
		logging.Multicast().Warnf("send %s: %v", tag, err)
	}
}

// Listen blocks receiving datagrams and invokes handle for each decoded
// message, until the socket is closed. Decode errors discard the datagram
// and do not stop the loop. handle also receives the sender's IP,
// needed by the coordinator to address a JOIN_RESPONSE.
func (m *Multicast) Listen(handle func(msg codec.Message, fromIP string)) {
	buf := make([]byte, 4096)
	for {
		n, addr, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			// Socket closed or fatal read error: stop listening silently.
			return
		}
		msg, err := codec.Decode(buf[:n])
		if err != nil {
			logging.Multicast().Warnf("discarding malformed datagram from %s: %v", addr, err)
			continue
		}
		handle(msg, addr.IP.String())
	}
}

// Close releases the multicast socket.
func (m *Multicast) Close() error {
	return m.conn.Close()
}
