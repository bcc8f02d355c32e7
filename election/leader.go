package election

import (
	"fmt"
	"log"
	"time"

	m "github.com/Meander-Cloud/go-holdem/message"
)

func now() time.Time {
	return time.Now().UTC()
}

// declareVictory makes this node leader under a new epoch. A nil handover
// means the application starts fresh; otherwise predecessor sent it.
func (e *Election) declareVictory(handover *m.Handover, predecessor string) {
	e.finishStartup()
	e.releaseElectionTimers()

	epoch := e.state.Epoch
	if handover != nil && handover.Epoch > epoch {
		epoch = handover.Epoch
	}
	epoch++

	e.state.IAmLeader = true
	e.state.InProgress = false
	e.state.LeaderID = e.state.SelfID
	e.state.Epoch = epoch
	e.publish()

	log.Printf(
		"%s: role=%s, epoch=%d, handover=%t, announcing to %d peer(s)",
		e.c.LogPrefix,
		e.state.Role(),
		epoch,
		handover != nil,
		len(e.t.PeerIDs()),
	)

	e.t.Multicast(
		&m.Message{
			Coordinator: &m.Coordinator{
				Epoch: epoch,
			},
		},
	)

	elected := &LeaderElected{
		Epoch:    epoch,
		Time:     now(),
		Handover: handover != nil,
	}
	if handover != nil {
		elected.State = handover.State
		elected.Seq = handover.Seq
		elected.Predecessor = predecessor
	}
	e.uc.LeaderElected(elected)
}

// PassLeadership retires gracefully: the next connected id in sorted
// membership receives the serialized state and becomes leader without a
// challenge. When no successor accepts the handover this node stays leader.
func (e *Election) PassLeadership(state []byte, seq int64) error {
	if !e.state.IAmLeader {
		err := fmt.Errorf("%s: role=%s, cannot pass leadership", e.c.LogPrefix, e.state.Role())
		log.Printf("%s", err.Error())
		return err
	}

	peers := e.t.PeerIDs()
	if len(peers) == 0 {
		err := fmt.Errorf("%s: no connected peer to hand over to", e.c.LogPrefix)
		log.Printf("%s", err.Error())
		return err
	}

	// try successors in ring order starting after self
	candidate := e.state.SelfID
	for range peers {
		candidate = successor(candidate, peers)
		if candidate == e.state.SelfID {
			break
		}

		err := e.t.Unicast(
			candidate,
			&m.Message{
				Handover: &m.Handover{
					Epoch: e.state.Epoch,
					Seq:   seq,
					State: state,
				},
			},
		)
		if err != nil {
			log.Printf("%s: handover to %s failed, err=%s", e.c.LogPrefix, candidate, err.Error())
			continue
		}

		log.Printf("%s: handed over to %s at seq=%d, %d byte(s)", e.c.LogPrefix, candidate, seq, len(state))
		e.state.IAmLeader = false
		e.state.LeaderID = candidate
		e.publish()

		e.uc.LeaderRevoked(
			&LeaderRevoked{
				Epoch:     e.state.Epoch,
				Successor: candidate,
				Time:      now(),
			},
		)
		return nil
	}

	err := fmt.Errorf("%s: no successor accepted handover, peers=%v", e.c.LogPrefix, peers)
	log.Printf("%s", err.Error())
	return err
}

// HandleHandover promotes this node directly.
func (e *Election) HandleHandover(peerID string, handover *m.Handover) {
	if e.state.IAmLeader {
		log.Printf("%s: already leader, ignoring handover from %s", e.c.LogPrefix, peerID)
		return
	}

	log.Printf("%s: handover from %s, epoch=%d seq=%d", e.c.LogPrefix, peerID, handover.Epoch, handover.Seq)
	e.declareVictory(handover, peerID)
}
