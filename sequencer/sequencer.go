package sequencer

import (
	"fmt"
	"log"
	"sync/atomic"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	m "github.com/Meander-Cloud/go-holdem/message"
)

type Transport interface {
	Unicast(peerID string, msg *m.Message) error
	Multicast(msg *m.Message)
}

// Local is the leader's own hold-back queue, which receives every command
// right after it has been handed to the network.
type Local interface {
	Add(*m.Ordered)
}

type Options struct {
	Transport Transport
	Local     Local

	LogPrefix string
	LogDebug  bool
}

// Sequencer assigns the total order while this node is leader. It is
// single-writer: every method other than Current must be invoked on the
// arbiter goroutine.
type Sequencer struct {
	*Options

	active  bool
	epoch   uint32
	seq     atomic.Int64
	history *rbt.Tree[int64, *m.Ordered] // retained for retransmission, never evicted
}

func NewSequencer(options *Options) *Sequencer {
	return &Sequencer{
		Options: options,
		active:  false,
		epoch:   0,
		seq:     atomic.Int64{},
		history: rbt.New[int64, *m.Ordered](),
	}
}

// Reset starts a fresh epoch at sequence zero, the next command gets one.
func (s *Sequencer) Reset(epoch uint32) {
	log.Printf("%s: reset for epoch=%d, previous epoch=%d seq=%d history=%d", s.LogPrefix, epoch, s.epoch, s.seq.Load(), s.history.Size())

	s.active = true
	s.epoch = epoch
	s.seq.Store(0)
	s.history.Clear()
}

// Discard drops the history when leadership is lost or handed over.
func (s *Sequencer) Discard() {
	if !s.active {
		return
	}
	log.Printf("%s: discarding epoch=%d at seq=%d, history=%d", s.LogPrefix, s.epoch, s.seq.Load(), s.history.Size())

	s.active = false
	s.history.Clear()
}

func (s *Sequencer) Active() bool {
	return s.active
}

func (s *Sequencer) Epoch() uint32 {
	return s.epoch
}

// invoked on any goroutine
func (s *Sequencer) Current() int64 {
	return s.seq.Load()
}

func (s *Sequencer) HistoryLen() int {
	return s.history.Size()
}

// Multicast stamps the next sequence number, records it, hands it to the
// network and only then to the local queue.
func (s *Sequencer) Multicast(command *m.Command) (*m.Ordered, error) {
	if !s.active {
		err := fmt.Errorf("%s: not sequencing, cannot multicast %s", s.LogPrefix, command)
		log.Printf("%s", err.Error())
		return nil, err
	}

	ordered := &m.Ordered{
		Epoch:   s.epoch,
		Seq:     s.seq.Add(1),
		Command: command,
	}
	s.history.Put(ordered.Seq, ordered)

	if s.LogDebug {
		log.Printf("%s: multicast epoch=%d seq=%d %s", s.LogPrefix, ordered.Epoch, ordered.Seq, command)
	}

	s.Transport.Multicast(
		&m.Message{
			Ordered: ordered,
		},
	)
	s.Local.Add(ordered)

	return ordered, nil
}

// HandleNack resends a retained command to the requester. A miss is logged
// and nothing is sent.
func (s *Sequencer) HandleNack(seq int64, requesterID string) bool {
	if !s.active {
		log.Printf("%s: not sequencing, ignoring nack seq=%d from %s", s.LogPrefix, seq, requesterID)
		return false
	}

	ordered, found := s.history.Get(seq)
	if !found {
		log.Printf("%s: nack seq=%d from %s not in history, current=%d", s.LogPrefix, seq, requesterID, s.seq.Load())
		return false
	}

	log.Printf("%s: resending seq=%d to %s", s.LogPrefix, seq, requesterID)
	err := s.Transport.Unicast(
		requesterID,
		&m.Message{
			Ordered: ordered,
		},
	)
	return err == nil
}
