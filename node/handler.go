package node

import (
	"log"

	m "github.com/Meander-Cloud/go-holdem/message"
)

// invoked on arbiter goroutine
func (n *Node) PeerJoined(peerID string) {
	log.Printf("%s: peer %s joined", n.c.LogPrefix, peerID)
	n.e.HandlePeerJoined(peerID)

	if n.isDealer() {
		n.welcome(peerID)
	}
}

// invoked on arbiter goroutine
func (n *Node) PeerLost(peerID string) {
	log.Printf("%s: peer %s lost", n.c.LogPrefix, peerID)

	if n.isDealer() && n.tbl.Player(peerID) != nil {
		n.sequence(
			&m.Command{
				Unseat: &m.Unseat{
					Player: peerID,
				},
			},
		)
	}

	n.e.HandleNodeFailure(peerID)
}

// invoked on arbiter goroutine
func (n *Node) Message(peerID string, msg *m.Message) {
	if n.e.HandleMessage(peerID, msg) {
		return
	}

	switch msg.Kind() {
	case m.KindSync:
		n.q.ForceSync(msg.Sync.Epoch, msg.Sync.Seq)

	case m.KindNack:
		n.s.HandleNack(msg.Nack.Seq, peerID)

	case m.KindOrdered:
		if n.dropNext {
			n.dropNext = false
			log.Printf("%s: dropping epoch=%d seq=%d on request", n.c.LogPrefix, msg.Ordered.Epoch, msg.Ordered.Seq)
			n.observe("dropped seq=%d", msg.Ordered.Seq)
			return
		}
		n.q.Add(msg.Ordered)

	case m.KindActionRequest:
		n.handleRequest(peerID, msg.ActionRequest)

	case m.KindNotice:
		n.observe("dealer %s: %s", peerID, msg.Notice.Text)

	default:
		log.Printf("%s: unexpected kind=%s from %s", n.c.LogPrefix, msg.Kind(), peerID)
	}
}
