package node

import (
	"log"

	m "github.com/Meander-Cloud/go-holdem/message"
)

// deliver applies sequenced commands in order on every node. The dealer
// reacts to the effect by producing follow-up commands, which the hold-back
// queue delivers after this call returns.
// invoked on arbiter goroutine
func (n *Node) deliver(ordered *m.Ordered) {
	eff, err := n.tbl.Apply(ordered.Command)
	if err != nil {
		log.Printf("%s: epoch=%d seq=%d %s rejected, err=%s", n.c.LogPrefix, ordered.Epoch, ordered.Seq, ordered.Command, err.Error())
		return
	}

	if n.c.LogDebug {
		log.Printf("%s: applied epoch=%d seq=%d %s", n.c.LogPrefix, ordered.Epoch, ordered.Seq, ordered.Command)
	}

	for _, event := range eff.Events {
		n.observe("%s", event)
	}

	if !n.isDealer() {
		return
	}

	if eff.BoardNeeded > 0 {
		n.dealBoard(eff.BoardNeeded)
	}
	if eff.RoundOver {
		n.roundOver()
	}
}
