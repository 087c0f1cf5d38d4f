package transport

import (
	"fmt"
	"io"
	"math/rand"
	"net"

	"github.com/distribuidos-chat/chatnode/internal/codec"
	"github.com/distribuidos-chat/chatnode/internal/logging"
)

// maxMessageSize bounds a single one-shot TCP read; generous for chat text
// and full membership views without being unbounded.
const maxMessageSize = 1 << 20

// Direct wraps the TCP listener a node binds once at startup and
// accepts connections for the rest of the node's lifetime.
type Direct struct {
	listener net.Listener
	port     int
}

// NewDirect picks a port uniformly at random in [low, high] and binds a TCP
// listener to it, retrying on bind failure. Collisions inside the range
// are expected when several nodes share a host and are resolved here,
// not by the caller.
func NewDirect(low, high int) (*Direct, error) {
	if high < low {
		return nil, fmt.Errorf("invalid TCP port range [%d, %d]", low, high)
	}
	const maxAttempts = 50
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		port := low + rand.Intn(high-low+1)
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return &Direct{listener: ln, port: port}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("bind direct TCP listener in [%d, %d] after %d attempts: %w", low, high, maxAttempts, lastErr)
}

// Port returns the bound listener port, the value advertised to peers.
func (d *Direct) Port() int {
	return d.port
}

// Accept runs the accept loop, spawning handle as a short-lived goroutine
// per connection.
func (d *Direct) Accept(handle func(msg codec.Message)) {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			data, err := io.ReadAll(io.LimitReader(conn, maxMessageSize))
			if err != nil {
				return
			}
			if len(data) == 0 {
				return
			}
			msg, err := codec.Decode(data)
			if err != nil {
				logging.System().Warnf("discarding malformed TCP message from %s: %v", conn.RemoteAddr(), err)
				return
			}
			handle(msg)
		}()
	}
}

// Close releases the TCP listener.
func (d *Direct) Close() error {
	return d.listener.Close()
}

// Send opens a connection to addr, writes one encoded message, and closes.
// Connection failures are swallowed: the caller relies on the failure
// detector for eventual repair, not on a retry here.
func Send(addr string, tag codec.Tag, payload any) {
	data, err := codec.Encode(tag, payload)
	if err != nil {
		logging.System().Errorf("encode %s: %v", tag, err)
		return
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return
	}
	defer conn.Close()
	_, _ = conn.Write(data)
}
