package election

import (
	m "github.com/Meander-Cloud/go-holdem/message"
)

// HandleMessage routes election traffic and reports whether msg was one.
// invoked on arbiter goroutine
func (e *Election) HandleMessage(peerID string, msg *m.Message) bool {
	switch msg.Kind() {
	case m.KindElection:
		e.HandleElection(peerID, msg.Election)
	case m.KindElectionOk:
		e.HandleElectionOk(peerID, msg.ElectionOk)
	case m.KindCoordinator:
		e.HandleCoordinator(peerID, msg.Coordinator)
	case m.KindHandover:
		e.HandleHandover(peerID, msg.Handover)
	default:
		return false
	}
	return true
}
