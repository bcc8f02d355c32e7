package node

import (
	"context"

	m "github.com/Meander-Cloud/go-holdem/message"
)

type Status struct {
	SelfID   string
	LeaderID string
	Role     m.Role
	Epoch    uint32

	NextExpected int64
	Pending      int
	NackCount    uint32

	// dealer only
	Seq     int64
	History int

	Summary string
	Rows    [][]string
	ToCall  int64
	MyTurn  bool
}

// Status collects a consistent view from the arbiter goroutine.
func (n *Node) Status(ctx context.Context) (*Status, error) {
	ch := make(chan *Status, 1)

	n.dispatch.Dispatch(
		func() {
			// invoked on arbiter goroutine
			ch <- n.status()
		},
	)

	select {
	case status := <-ch:
		return status, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *Node) status() *Status {
	snapshot := n.e.Snapshot()
	self := n.selfID()

	status := &Status{
		SelfID:       self,
		LeaderID:     snapshot.LeaderID,
		Role:         snapshot.Role,
		Epoch:        snapshot.Epoch,
		NextExpected: n.q.NextExpected(),
		Pending:      n.q.Pending(),
		NackCount:    n.q.NackCount(),
		Summary:      n.tbl.Summary(),
		Rows:         n.tbl.Rows(self),
		ToCall:       n.tbl.ToCall(self),
	}

	if n.isDealer() {
		status.Seq = n.s.Current()
		status.History = n.s.HistoryLen()
	}

	if current := n.tbl.CurrentPlayer(); current != nil {
		status.MyTurn = current.ID == self
	}

	return status
}

// Request sends a player decision to the dealer, or handles a start request
// locally while dealing.
func (n *Node) Request(action m.Action, amount int64) {
	n.dispatch.Dispatch(
		func() {
			// invoked on arbiter goroutine
			request := &m.ActionRequest{
				Action: action,
				Amount: amount,
			}

			if n.isDealer() {
				if action != m.ActionStart {
					n.observe("the dealer does not play this hand")
					return
				}
				n.handleRequest(n.selfID(), request)
				return
			}

			leaderID := n.e.Snapshot().LeaderID
			if leaderID == "" {
				n.observe("no dealer yet, try again after the election")
				return
			}

			err := n.t.Unicast(
				leaderID,
				&m.Message{
					ActionRequest: request,
				},
			)
			if err != nil {
				n.observe("request to dealer %s failed: %s", leaderID, err.Error())
			}
		},
	)
}

// DropNext discards the next sequenced message received from the network.
func (n *Node) DropNext() {
	n.dispatch.Dispatch(
		func() {
			// invoked on arbiter goroutine
			n.dropNext = true
			n.observe("dropping the next sequenced message")
		},
	)
}
