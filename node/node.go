package node

import (
	"fmt"
	"log"
	"time"

	"github.com/Meander-Cloud/go-holdem/arbiter"
	"github.com/Meander-Cloud/go-holdem/config"
	"github.com/Meander-Cloud/go-holdem/election"
	g "github.com/Meander-Cloud/go-holdem/group"
	"github.com/Meander-Cloud/go-holdem/holdback"
	m "github.com/Meander-Cloud/go-holdem/message"
	"github.com/Meander-Cloud/go-holdem/net/tcp"
	"github.com/Meander-Cloud/go-holdem/sequencer"
	"github.com/Meander-Cloud/go-holdem/table"
)

type Transport interface {
	SelfID() string
	PeerIDs() []string
	Unicast(peerID string, msg *m.Message) error
	Multicast(msg *m.Message)
}

type Timer interface {
	ScheduleTimer(g.Group, time.Duration, func())
	ReleaseTimer(g.Group)
}

type Dispatcher interface {
	Dispatch(func())
}

// Node is one seat in the cluster. It is a player while another node deals
// and the dealer while it holds leadership. Everything except the exported
// entry points runs on the arbiter goroutine.
type Node struct {
	c        *config.Config
	t        Transport
	timer    Timer
	dispatch Dispatcher
	onEvent  func(string)

	e   *election.Election
	s   *sequencer.Sequencer
	q   *holdback.Queue
	tbl *table.Table

	dropNext bool
	rotating bool

	a    *arbiter.Arbiter
	mesh *tcp.Mesh
}

// NewNode validates c, connects to the configured peers and returns a node
// whose election has not started yet. onEvent receives table events and
// notices, it is invoked on the arbiter goroutine and must not block.
func NewNode(c *config.Config, onEvent func(string)) (*Node, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}

	a := arbiter.NewArbiter(c)
	n := &Node{}

	mesh, err := tcp.NewMesh(
		c,
		a,
		n,
		&m.Participant{
			Host:     c.Host,
			Instance: c.Instance,
			Address:  c.SelfAddress,
			Time:     time.Now().UTC().UnixMilli(),
		},
	)
	if err != nil {
		a.Shutdown() // wait
		return nil, err
	}

	n.init(c, mesh, a, a, onEvent)
	n.a = a
	n.mesh = mesh

	err = mesh.Start()
	if err != nil {
		a.Shutdown() // wait
		return nil, err
	}

	return n, nil
}

func (n *Node) init(c *config.Config, t Transport, timer Timer, dispatch Dispatcher, onEvent func(string)) {
	n.c = c
	n.t = t
	n.timer = timer
	n.dispatch = dispatch
	n.onEvent = onEvent

	n.e = election.NewElection(c, t, timer, n)

	n.q = holdback.NewQueue(
		&holdback.Options{
			SelfID:    t.SelfID(),
			NackWait:  c.NackWaitDuration(),
			Transport: t,
			Timer:     timer,
			Leader: func() string {
				return n.e.Snapshot().LeaderID
			},
			Deliver:   n.deliver,
			LogPrefix: c.LogPrefix + "-HoldBack",
			LogDebug:  c.LogDebug,
		},
	)

	n.s = sequencer.NewSequencer(
		&sequencer.Options{
			Transport: t,
			Local:     n.q,
			LogPrefix: c.LogPrefix + "-Sequencer",
			LogDebug:  c.LogDebug,
		},
	)

	n.tbl = table.New()
}

// Start opens the startup stabilization window.
func (n *Node) Start() {
	n.dispatch.Dispatch(
		func() {
			// invoked on arbiter goroutine
			n.e.Start()
		},
	)
}

func (n *Node) Shutdown() {
	if n.mesh != nil {
		n.mesh.Shutdown() // wait
	}

	if n.a != nil {
		n.a.Shutdown() // wait
	}

	log.Printf("%s: shutdown complete", n.c.LogPrefix)
}

func (n *Node) selfID() string {
	return n.t.SelfID()
}

// caller must be on arbiter goroutine
func (n *Node) isDealer() bool {
	return n.s.Active()
}

func (n *Node) observe(format string, args ...any) {
	if n.onEvent == nil {
		return
	}
	n.onEvent(fmt.Sprintf(format, args...))
}
