package node

import (
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/google/uuid"
	"github.com/paulhankin/poker"

	"github.com/Meander-Cloud/go-holdem/election"
	g "github.com/Meander-Cloud/go-holdem/group"
	m "github.com/Meander-Cloud/go-holdem/message"
	"github.com/Meander-Cloud/go-holdem/table"
)

var errRotating = errors.New("dealer rotation pending")

// LeaderElected turns this node into the dealer: numbering restarts for the
// new epoch, the table is loaded and every peer is resynchronized.
// invoked on arbiter goroutine
func (n *Node) LeaderElected(elected *election.LeaderElected) {
	n.s.Reset(elected.Epoch)
	n.q.ForceSync(elected.Epoch, 0)
	n.rotating = false

	var tbl *table.Table
	if elected.Handover {
		loaded, err := table.Unmarshal(elected.State)
		if err != nil {
			log.Printf("%s: handover state unusable, reseating local replica, err=%s", n.c.LogPrefix, err.Error())
			loaded = table.Reseat(n.tbl)
		}
		tbl = loaded
	} else {
		tbl = table.Reseat(n.tbl)
	}

	self := n.selfID()
	peers := n.t.PeerIDs()

	// the dealer does not play; absent players give up their seat
	for _, id := range tbl.PlayerIDs() {
		if id == self || !slices.Contains(peers, id) {
			n.applyLocal(tbl, &m.Command{Unseat: &m.Unseat{Player: id}})
		}
	}
	// the retiring dealer sits down at the next hand boundary
	for _, peerID := range peers {
		if tbl.Player(peerID) == nil && peerID != elected.Predecessor {
			n.applyLocal(tbl, n.seatCommand(peerID))
		}
	}
	n.tbl = tbl

	log.Printf(
		"%s: dealing for epoch=%d, handover=%t, seq=%d, players=%v",
		n.c.LogPrefix,
		elected.Epoch,
		elected.Handover,
		elected.Seq,
		tbl.PlayerIDs(),
	)

	for _, peerID := range peers {
		n.unicast(
			peerID,
			&m.Message{
				Sync: &m.Sync{
					Epoch: elected.Epoch,
					Seq:   0,
				},
			},
		)
	}
	n.broadcastTable()

	n.observe("you are the dealer, epoch=%d, players=%v", elected.Epoch, tbl.PlayerIDs())
}

// invoked on arbiter goroutine
func (n *Node) LeaderRevoked(revoked *election.LeaderRevoked) {
	n.timer.ReleaseTimer(g.GroupHandoverWait)
	n.rotating = false
	n.s.Discard()
	n.tbl.Deck = nil

	n.observe("dealer is now %s, epoch=%d", revoked.Successor, revoked.Epoch)
}

func (n *Node) unicast(peerID string, msg *m.Message) error {
	err := n.t.Unicast(peerID, msg)
	if err != nil {
		log.Printf("%s: %s to %s failed, err=%s", n.c.LogPrefix, msg.Kind(), peerID, err.Error())
	}
	return err
}

func (n *Node) applyLocal(tbl *table.Table, cmd *m.Command) {
	_, err := tbl.Apply(cmd)
	if err != nil {
		log.Printf("%s: %s on loaded table failed, err=%s", n.c.LogPrefix, cmd, err.Error())
	}
}

func (n *Node) seatCommand(peerID string) *m.Command {
	return &m.Command{
		Seat: &m.Seat{
			Player: peerID,
			Name:   peerID,
			Chips:  n.c.Chips(),
		},
	}
}

func (n *Node) sequence(cmd *m.Command) error {
	_, err := n.s.Multicast(cmd)
	return err
}

// broadcastTable sequences the public table so every replica converges.
func (n *Node) broadcastTable() {
	data, err := n.tbl.Public().Marshal()
	if err != nil {
		log.Printf("%s: %s", n.c.LogPrefix, err.Error())
		return
	}

	n.sequence(
		&m.Command{
			Restore: &m.Restore{
				State: data,
			},
		},
	)
}

// welcome brings a newly connected peer to the current epoch and seats it.
func (n *Node) welcome(peerID string) {
	n.unicast(
		peerID,
		&m.Message{
			Sync: &m.Sync{
				Epoch: n.s.Epoch(),
				Seq:   n.s.Current(),
			},
		},
	)

	p := n.tbl.Player(peerID)
	if p == nil || p.Left {
		n.sequence(n.seatCommand(peerID))
	}

	// the newcomer's replica is empty, the snapshot fills it in
	n.broadcastTable()
}

func (n *Node) notify(peerID string, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if peerID == n.selfID() {
		n.observe("%s", text)
		return
	}

	n.unicast(
		peerID,
		&m.Message{
			Notice: &m.Notice{
				Text: text,
			},
		},
	)
}

// handleRequest validates a player's request before it enters the order.
// Rejections are answered privately.
func (n *Node) handleRequest(peerID string, request *m.ActionRequest) {
	if !n.isDealer() {
		log.Printf("%s: request %s from %s while not dealing", n.c.LogPrefix, request.Action, peerID)
		n.notify(peerID, "not the dealer, leader is %q", n.e.Snapshot().LeaderID)
		return
	}

	if request.Action == m.ActionStart {
		err := n.startRound()
		if err != nil {
			n.notify(peerID, "cannot start: %s", err.Error())
		}
		return
	}

	err := n.tbl.Validate(peerID, request.Action, request.Amount)
	if err != nil {
		log.Printf("%s: rejecting %s %d from %s, err=%s", n.c.LogPrefix, request.Action, request.Amount, peerID, err.Error())
		n.notify(peerID, "%s rejected: %s", request.Action, err.Error())
		return
	}

	n.sequence(
		&m.Command{
			Act: &m.Act{
				Player: peerID,
				Action: request.Action,
				Amount: request.Amount,
			},
		},
	)
}

// startRound shuffles and deals two hole cards to every eligible player.
func (n *Node) startRound() error {
	if n.rotating {
		return errRotating
	}

	err := n.tbl.CanStart()
	if err != nil {
		return err
	}

	deck := table.NewDeck(nil)
	holes := make(map[string][]poker.Card)
	for _, id := range n.tbl.Eligible() {
		holes[id] = append([]poker.Card(nil), deck[:2]...)
		deck = deck[2:]
	}
	n.tbl.Deck = deck

	return n.sequence(
		&m.Command{
			Deal: &m.Deal{
				RoundID: uuid.NewString(),
				Holes:   holes,
			},
		},
	)
}

func (n *Node) dealBoard(count int) {
	if len(n.tbl.Deck) < count {
		log.Printf("%s: deck has %d card(s), %d needed", n.c.LogPrefix, len(n.tbl.Deck), count)
		return
	}

	cards := append([]poker.Card(nil), n.tbl.Deck[:count]...)
	n.tbl.Deck = n.tbl.Deck[count:]

	n.sequence(
		&m.Command{
			Board: &m.Board{
				Cards: cards,
			},
		},
	)
}

// seatMissing sequences a Seat for every connected peer without one.
func (n *Node) seatMissing() {
	for _, peerID := range n.t.PeerIDs() {
		if n.tbl.Player(peerID) == nil {
			n.sequence(n.seatCommand(peerID))
		}
	}
}

func (n *Node) roundOver() {
	n.seatMissing()

	if !n.c.RotateOnRoundEnd {
		return
	}

	n.rotating = true
	n.observe("hand over, passing the deal in %s", n.c.HandoverWaitDuration())

	n.timer.ScheduleTimer(
		g.GroupHandoverWait,
		n.c.HandoverWaitDuration(),
		func() {
			// invoked on arbiter goroutine
			n.handover()
		},
	)
}

func (n *Node) handover() {
	if !n.isDealer() || !n.rotating {
		return
	}

	state, err := n.tbl.Marshal()
	if err != nil {
		log.Printf("%s: %s", n.c.LogPrefix, err.Error())
		n.rotating = false
		return
	}

	err = n.e.PassLeadership(state, n.s.Current())
	if err != nil {
		n.rotating = false
		n.observe("keeping the deal: %s", err.Error())
		return
	}
	// LeaderRevoked already discarded the dealer state
}
