package election

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/Meander-Cloud/go-holdem/config"
	g "github.com/Meander-Cloud/go-holdem/group"
	m "github.com/Meander-Cloud/go-holdem/message"
)

type Transport interface {
	SelfID() string
	PeerIDs() []string // connected peers, sorted
	Unicast(peerID string, msg *m.Message) error
	Multicast(msg *m.Message)
}

type Timer interface {
	ScheduleTimer(g.Group, time.Duration, func())
	ReleaseTimer(g.Group)
}

// Election runs the priority challenge protocol. Except for Snapshot, every
// method must be invoked on the arbiter goroutine.
type Election struct {
	c     *config.Config
	t     Transport
	timer Timer
	uc    UserCallback

	state    *State
	snapshot atomic.Pointer[Snapshot]
}

func NewElection(c *config.Config, t Transport, timer Timer, uc UserCallback) *Election {
	e := &Election{
		c:     c,
		t:     t,
		timer: timer,
		uc:    uc,
		state: NewState(t.SelfID()),
	}
	e.publish()
	return e
}

// Snapshot is safe to call from any goroutine.
func (e *Election) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

func (e *Election) publish() {
	e.snapshot.Store(e.state.snapshot())
}

// Start begins the stabilization window. A leader heard during the window
// makes this node defer; otherwise it challenges with reason Startup.
func (e *Election) Start() {
	if e.c.MinPeerCount == 0 {
		log.Printf("%s: startup, waiting %s for incumbent", e.c.LogPrefix, e.c.StartupWaitDuration())
		e.scheduleStartup(e.c.StartupWaitDuration())
		return
	}

	log.Printf("%s: startup, waiting for %d peer(s)", e.c.LogPrefix, e.c.MinPeerCount)
	e.state.AwaitingPeers = true
	e.checkStartupPeers()
}

func (e *Election) checkStartupPeers() {
	if !e.state.AwaitingPeers {
		return
	}

	peerCount := len(e.t.PeerIDs())
	if peerCount < int(e.c.MinPeerCount) {
		return
	}

	e.state.AwaitingPeers = false
	log.Printf("%s: %d peer(s) known, grace wait %s", e.c.LogPrefix, peerCount, e.c.StartupGraceWaitDuration())
	e.scheduleStartup(e.c.StartupGraceWaitDuration())
}

func (e *Election) scheduleStartup(wait time.Duration) {
	e.timer.ScheduleTimer(
		g.GroupStartupWait,
		wait,
		func() {
			// invoked on arbiter goroutine
			e.state.StartupDone = true

			if e.state.LeaderID != "" {
				log.Printf("%s: startup elapsed, deferring to leader %s", e.c.LogPrefix, e.state.LeaderID)
				return
			}

			e.StartElection(m.ElectionReasonStartup)
		},
	)
}

func (e *Election) finishStartup() {
	if e.state.StartupDone {
		return
	}
	e.state.StartupDone = true
	e.state.AwaitingPeers = false
	e.timer.ReleaseTimer(g.GroupStartupWait)
}

// unicast logs a failed send, timers cover the loss.
func (e *Election) unicast(peerID string, msg *m.Message) error {
	err := e.t.Unicast(peerID, msg)
	if err != nil {
		log.Printf("%s: %s to %s failed, err=%s", e.c.LogPrefix, msg.Kind(), peerID, err.Error())
	}
	return err
}

func (e *Election) releaseElectionTimers() {
	e.timer.ReleaseTimer(g.GroupElectionWait)
	e.timer.ReleaseTimer(g.GroupCoordinatorWait)
}
