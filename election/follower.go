package election

import (
	"log"
	"slices"

	g "github.com/Meander-Cloud/go-holdem/group"
	m "github.com/Meander-Cloud/go-holdem/message"
)

// HandleElection answers a challenge from peerID. Ranks are compared under
// the challenger's round. A lower challenger gets an ElectionOk only from the
// incumbent or the top connected node, so it hears exactly one.
func (e *Election) HandleElection(peerID string, election *m.Election) {
	e.adoptRound(election.Round)

	if e.state.IAmLeader {
		log.Printf("%s: ELECTION from %s while leader, asserting epoch=%d", e.c.LogPrefix, peerID, e.state.Epoch)
		e.replyElectionOk(peerID)
		e.unicast(
			peerID,
			&m.Message{
				Coordinator: &m.Coordinator{
					Epoch: e.state.Epoch,
				},
			},
		)
		return
	}

	peers := e.t.PeerIDs()
	round := election.Round
	self := e.state.SelfID

	if !outranks(self, peerID, self, peers, round) {
		log.Printf("%s: ELECTION from higher peer %s, awaiting its COORDINATOR", e.c.LogPrefix, peerID)
		return
	}

	top := true
	for _, other := range peers {
		if other != peerID && outranks(other, self, self, peers, round) {
			top = false
			break
		}
	}

	if top {
		log.Printf("%s: ELECTION from lower peer %s, replying ElectionOk", e.c.LogPrefix, peerID)
		e.replyElectionOk(peerID)
	}

	if e.state.LeaderID != "" && slices.Contains(peers, e.state.LeaderID) {
		log.Printf("%s: ELECTION from %s, leader %s still connected", e.c.LogPrefix, peerID, e.state.LeaderID)
		return
	}

	e.StartElection(m.ElectionReasonChallenged)
}

func (e *Election) replyElectionOk(peerID string) {
	e.unicast(
		peerID,
		&m.Message{
			ElectionOk: &m.ElectionOk{
				Round: e.state.Epoch,
			},
		},
	)
}

// HandleCoordinator adopts peerID as leader. A leader only steps down for a
// higher epoch, or for a peer that outranks it under the same epoch; any
// other announcement is ignored and answered with its own.
func (e *Election) HandleCoordinator(peerID string, coordinator *m.Coordinator) {
	if e.state.IAmLeader && !e.yieldsTo(peerID, coordinator.Epoch) {
		log.Printf(
			"%s: COORDINATOR from %s at epoch=%d while leading epoch=%d, reasserting",
			e.c.LogPrefix,
			peerID,
			coordinator.Epoch,
			e.state.Epoch,
		)
		e.t.Multicast(
			&m.Message{
				Coordinator: &m.Coordinator{
					Epoch: e.state.Epoch,
				},
			},
		)
		return
	}

	wasLeader := e.state.IAmLeader
	changed := e.state.LeaderID != peerID

	e.finishStartup()
	e.releaseElectionTimers()
	e.timer.ReleaseTimer(g.GroupLeaderFailureWait)

	e.state.IAmLeader = false
	e.state.InProgress = false
	e.state.LeaderID = peerID
	if coordinator.Epoch > e.state.Epoch {
		e.state.Epoch = coordinator.Epoch
	}
	e.publish()

	if changed {
		log.Printf("%s: leader is now %s, epoch=%d", e.c.LogPrefix, peerID, e.state.Epoch)
	}

	if wasLeader {
		e.uc.LeaderRevoked(
			&LeaderRevoked{
				Epoch:     e.state.Epoch,
				Successor: peerID,
				Time:      now(),
			},
		)
	}
}

// yieldsTo decides between two leaders. At equal epochs both rank within the
// pair only, so their answers agree even when their peer views differ.
func (e *Election) yieldsTo(peerID string, epoch uint32) bool {
	switch {
	case epoch > e.state.Epoch:
		return true
	case epoch < e.state.Epoch:
		return false
	default:
		self := e.state.SelfID
		return outranks(peerID, self, self, []string{peerID}, epoch)
	}
}

// HandleNodeFailure re-elects after a settle delay if the lost peer led.
func (e *Election) HandleNodeFailure(peerID string) {
	if peerID != e.state.LeaderID || e.state.IAmLeader {
		return
	}

	log.Printf("%s: leader %s lost, electing in %s", e.c.LogPrefix, peerID, e.c.LeaderFailureWaitDuration())
	e.state.LeaderID = ""
	e.publish()

	e.timer.ScheduleTimer(
		g.GroupLeaderFailureWait,
		e.c.LeaderFailureWaitDuration(),
		func() {
			// invoked on arbiter goroutine
			if e.state.LeaderID != "" {
				return
			}
			e.StartElection(m.ElectionReasonLeaderFailure)
		},
	)
}

// HandlePeerJoined lets an incumbent announce itself to a newcomer and feeds
// the startup peer count.
func (e *Election) HandlePeerJoined(peerID string) {
	if e.state.IAmLeader {
		e.unicast(
			peerID,
			&m.Message{
				Coordinator: &m.Coordinator{
					Epoch: e.state.Epoch,
				},
			},
		)
	}

	e.checkStartupPeers()
}
