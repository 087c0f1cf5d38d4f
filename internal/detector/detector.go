// Package detector implements the failure detector: a periodic check of
// coordinator heartbeat freshness that triggers an election when the
// coordinator is deemed dead.
package detector

import (
	"time"

	"github.com/distribuidos-chat/chatnode/internal/logging"
	"github.com/distribuidos-chat/chatnode/internal/membership"
)

// Detector runs the periodic liveness check in its own goroutine.
type Detector struct {
	view            *membership.View
	heartbeatTimeout time.Duration
	onSuspectDead   func()

	stop chan struct{}
}

// New builds a detector. onSuspectDead is invoked (typically
// election.Engine.StartElection) when the coordinator is judged dead.
func New(view *membership.View, heartbeatTimeout time.Duration, onSuspectDead func()) *Detector {
	return &Detector{
		view:            view,
		heartbeatTimeout: heartbeatTimeout,
		onSuspectDead:   onSuspectDead,
		stop:            make(chan struct{}),
	}
}

// Run blocks, checking every heartbeatTimeout, until Stop is called.
func (d *Detector) Run() {
	ticker := time.NewTicker(d.heartbeatTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.check()
		case <-d.stop:
			return
		}
	}
}

// check applies the guard: skip when this node is coordinator, its
// identifier is unassigned, or an election is already in progress.
func (d *Detector) check() {
	if d.view.IsCoordinator() {
		return
	}
	if d.view.SelfID() == membership.UnassignedID {
		return
	}
	if d.view.InElection() {
		return
	}

	age := d.view.HeartbeatAge()
	if age <= d.heartbeatTimeout {
		return
	}

	logging.System().Infof("coordinator unresponsive for %s, starting election", age.Round(time.Millisecond))
	d.onSuspectDead()
}

// Stop terminates the Run loop.
func (d *Detector) Stop() {
	close(d.stop)
}
