package election

import (
	"log"

	g "github.com/Meander-Cloud/go-holdem/group"
	m "github.com/Meander-Cloud/go-holdem/message"
)

// StartElection challenges every connected peer that outranks this node. It
// is a no-op while leader or while a challenge is already running.
func (e *Election) StartElection(reason m.ElectionReason) {
	if e.state.IAmLeader || e.state.InProgress {
		log.Printf(
			"%s: role=%s, ignoring election start, reason=%s",
			e.c.LogPrefix,
			e.state.Role(),
			reason,
		)
		return
	}

	e.finishStartup()
	e.state.InProgress = true
	e.publish()

	peers := e.t.PeerIDs()
	round := e.state.Epoch

	var higher []string
	for _, peerID := range peers {
		if outranks(peerID, e.state.SelfID, e.state.SelfID, peers, round) {
			higher = append(higher, peerID)
		}
	}

	log.Printf(
		"%s: election started, reason=%s, round=%d, priority=%d, peers=%d, higher=%v",
		e.c.LogPrefix,
		reason,
		round,
		PriorityHash(e.state.SelfID, e.state.SelfID, peers, round),
		len(peers),
		higher,
	)

	if len(higher) == 0 {
		e.declareVictory(nil, "")
		return
	}

	for _, peerID := range higher {
		e.unicast(
			peerID,
			&m.Message{
				Election: &m.Election{
					Round: round,
				},
			},
		)
	}

	e.timer.ScheduleTimer(
		g.GroupElectionWait,
		e.c.ElectionWaitDuration(),
		func() {
			// invoked on arbiter goroutine
			if !e.state.InProgress || e.state.IAmLeader {
				log.Printf("%s: role=%s mismatch triggered: %s", e.c.LogPrefix, e.state.Role(), g.GroupElectionWait)
				return
			}

			log.Printf("%s: no higher peer answered within %s", e.c.LogPrefix, e.c.ElectionWaitDuration())
			e.declareVictory(nil, "")
		},
	)
}

// HandleElectionOk means a higher peer is alive and takes over: stop the
// victory timer and wait for its COORDINATOR.
func (e *Election) HandleElectionOk(peerID string, electionOk *m.ElectionOk) {
	e.adoptRound(electionOk.Round)

	if !e.state.InProgress {
		if e.c.LogDebug {
			log.Printf("%s: role=%s, stale ElectionOk from %s", e.c.LogPrefix, e.state.Role(), peerID)
		}
		return
	}

	log.Printf("%s: ElectionOk from %s, yielding", e.c.LogPrefix, peerID)
	e.timer.ReleaseTimer(g.GroupElectionWait)

	e.timer.ScheduleTimer(
		g.GroupCoordinatorWait,
		e.c.CoordinatorWaitDuration(),
		func() {
			// invoked on arbiter goroutine
			if !e.state.InProgress {
				return
			}

			log.Printf("%s: no COORDINATOR within %s, restarting", e.c.LogPrefix, e.c.CoordinatorWaitDuration())
			e.state.InProgress = false
			e.publish()
			e.StartElection(m.ElectionReasonCoordinatorTimeout)
		},
	)
}

func (e *Election) adoptRound(round uint32) {
	if round > e.state.Epoch {
		log.Printf("%s: adopting round %d, was %d", e.c.LogPrefix, round, e.state.Epoch)
		e.state.Epoch = round
		e.publish()
	}
}
