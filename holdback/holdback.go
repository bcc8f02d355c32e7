package holdback

import (
	"cmp"
	"log"
	"time"

	"github.com/emirpasic/gods/v2/trees/binaryheap"

	g "github.com/Meander-Cloud/go-holdem/group"
	m "github.com/Meander-Cloud/go-holdem/message"
)

type Transport interface {
	Unicast(peerID string, msg *m.Message) error
}

type Timer interface {
	ScheduleTimer(g.Group, time.Duration, func())
	ReleaseTimer(g.Group)
}

type Options struct {
	SelfID   string
	NackWait time.Duration

	Transport Transport
	Timer     Timer

	// returns current leader id, empty when unknown
	Leader func() string

	// application delivery, called strictly in sequence order
	Deliver func(*m.Ordered)

	LogPrefix string
	LogDebug  bool
}

// Queue buffers sequenced commands until every lower sequence number of the
// same epoch has been delivered. All methods must be invoked on the arbiter
// goroutine.
type Queue struct {
	*Options

	epoch        uint32
	nextExpected int64
	buffer       *binaryheap.Heap[*m.Ordered]

	delivering bool
	nackArmed  bool
	nackCount  uint32
}

func NewQueue(options *Options) *Queue {
	return &Queue{
		Options: options,

		epoch:        0,
		nextExpected: 1,
		buffer: binaryheap.NewWith(
			func(a, b *m.Ordered) int {
				return cmp.Compare(a.Seq, b.Seq)
			},
		),

		delivering: false,
		nackArmed:  false,
		nackCount:  0,
	}
}

func (q *Queue) NextExpected() int64 {
	return q.nextExpected
}

func (q *Queue) Epoch() uint32 {
	return q.epoch
}

func (q *Queue) Pending() int {
	return q.buffer.Size()
}

func (q *Queue) NackCount() uint32 {
	return q.nackCount
}

// Add accepts a sequenced command. A call made from inside Deliver only
// buffers; the delivery loop already running picks it up.
func (q *Queue) Add(ordered *m.Ordered) {
	if ordered.Epoch < q.epoch {
		log.Printf("%s: dropping seq=%d from stale epoch=%d, epoch=%d", q.LogPrefix, ordered.Seq, ordered.Epoch, q.epoch)
		return
	}

	if ordered.Epoch > q.epoch {
		// SYNC for this epoch was never seen, the new primary starts from one
		log.Printf("%s: epoch advanced %d->%d without sync, resetting", q.LogPrefix, q.epoch, ordered.Epoch)
		q.reset(ordered.Epoch, 0)
	}

	if ordered.Seq < q.nextExpected {
		if q.LogDebug {
			log.Printf("%s: dropping duplicate seq=%d, nextExpected=%d", q.LogPrefix, ordered.Seq, q.nextExpected)
		}
		return
	}

	q.buffer.Push(ordered)

	if q.delivering {
		return
	}

	q.drain()
}

// ForceSync treats seq as delivered and discards everything buffered.
func (q *Queue) ForceSync(epoch uint32, seq int64) {
	log.Printf("%s: force sync epoch=%d seq=%d, was epoch=%d nextExpected=%d pending=%d", q.LogPrefix, epoch, seq, q.epoch, q.nextExpected, q.buffer.Size())
	q.reset(epoch, seq)
}

func (q *Queue) reset(epoch uint32, seq int64) {
	q.epoch = epoch
	q.nextExpected = seq + 1
	q.buffer.Clear()
	q.releaseNack()
}

func (q *Queue) drain() {
	q.delivering = true
	defer func() {
		q.delivering = false
	}()

	for {
		head, ok := q.buffer.Peek()
		if !ok {
			break
		}

		if head.Seq < q.nextExpected {
			// duplicate that was buffered before its twin got delivered
			q.buffer.Pop()
			continue
		}

		if head.Seq > q.nextExpected {
			break
		}

		q.buffer.Pop()
		q.nextExpected++
		q.Deliver(head)
	}

	if q.buffer.Empty() {
		q.releaseNack()
		return
	}

	q.armNack()
}

func (q *Queue) armNack() {
	if q.nackArmed {
		return
	}
	q.nackArmed = true

	q.Timer.ScheduleTimer(
		g.GroupNackWait,
		q.NackWait,
		func() {
			// invoked on arbiter goroutine
			q.nackArmed = false
			q.nackFired()
		},
	)
}

func (q *Queue) releaseNack() {
	if !q.nackArmed {
		return
	}
	q.nackArmed = false

	q.Timer.ReleaseTimer(g.GroupNackWait)
}

func (q *Queue) nackFired() {
	head, ok := q.buffer.Peek()
	if !ok || head.Seq <= q.nextExpected {
		return
	}

	leaderID := q.Leader()
	switch leaderID {
	case "":
		log.Printf("%s: gap at seq=%d, no leader known", q.LogPrefix, q.nextExpected)
	case q.SelfID:
		log.Printf("%s: gap at seq=%d while self is leader", q.LogPrefix, q.nextExpected)
	default:
		q.nackCount++
		log.Printf("%s: gap at seq=%d, head=%d, sending nack #%d to %s", q.LogPrefix, q.nextExpected, head.Seq, q.nackCount, leaderID)
		err := q.Transport.Unicast(
			leaderID,
			&m.Message{
				Nack: &m.Nack{
					Seq: q.nextExpected,
				},
			},
		)
		if err != nil {
			log.Printf("%s: nack #%d to %s failed, err=%s", q.LogPrefix, q.nackCount, leaderID, err.Error())
		}
	}

	// keep asking until the gap closes
	q.armNack()
}
