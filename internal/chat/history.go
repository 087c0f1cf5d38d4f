// Package chat implements the trivial broadcast chat plane: local
// history and line rendering. It has no transport or membership knowledge
// of its own beyond peer nickname lookup, which the caller supplies.
package chat

import (
	"fmt"
	"sync"
)

// unknownNickname is substituted when a chat message's sender is not in
// the view, e.g. a message that arrived before the peer table caught up.
const unknownNickname = "Desconhecido"

// History is the append-only, per-node ordered sequence of rendered chat
// lines. It is never reconciled across nodes.
type History struct {
	mu    sync.Mutex
	lines []string
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Seed replaces the history wholesale, used when adopting a JOIN_RESPONSE.
func (h *History) Seed(lines []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append([]string(nil), lines...)
}

// Append adds one rendered line.
func (h *History) Append(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
}

// Lines returns a snapshot of the history in order.
func (h *History) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines...)
}

// RenderLocalEcho formats the sender's own message as
// "[Você (ID:<id>)]: <text>".
func RenderLocalEcho(selfID int, text string) string {
	return fmt.Sprintf("[Você (ID:%d)]: %s", selfID, text)
}

// RenderReceived formats an inbound chat message. nickname should be
// unknownNickname's caller-supplied equivalent when the sender isn't in
// the view; NicknameOrUnknown does that lookup.
func RenderReceived(nickname string, senderID int, text string) string {
	return fmt.Sprintf("[%s (ID:%d)]: %s", nickname, senderID, text)
}

// NicknameOrUnknown returns nickname if found is true, else the
// "Desconhecido" fallback.
func NicknameOrUnknown(nickname string, found bool) string {
	if !found {
		return unknownNickname
	}
	return nickname
}
