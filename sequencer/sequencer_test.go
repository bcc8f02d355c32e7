package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/Meander-Cloud/go-holdem/message"
)

type event struct {
	where  string
	peerID string
	seq    int64
}

type recorder struct {
	events []event
}

func (r *recorder) Unicast(peerID string, msg *m.Message) error {
	r.events = append(r.events, event{where: "unicast", peerID: peerID, seq: msg.Ordered.Seq})
	return nil
}

func (r *recorder) Multicast(msg *m.Message) {
	r.events = append(r.events, event{where: "multicast", seq: msg.Ordered.Seq})
}

func (r *recorder) Add(ordered *m.Ordered) {
	r.events = append(r.events, event{where: "local", seq: ordered.Seq})
}

func newSequencer() (*Sequencer, *recorder) {
	r := &recorder{}
	return NewSequencer(
		&Options{
			Transport: r,
			Local:     r,
			LogPrefix: "test",
		},
	), r
}

func seat(player string) *m.Command {
	return &m.Command{Seat: &m.Seat{Player: player, Chips: 1000}}
}

func Test_MulticastOrder(t *testing.T) {
	s, r := newSequencer()

	_, err := s.Multicast(seat("A"))
	assert.Error(t, err, "inactive sequencer must refuse")
	assert.Empty(t, r.events)

	s.Reset(4)
	o1, err := s.Multicast(seat("A"))
	require.NoError(t, err)
	o2, err := s.Multicast(seat("B"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), o1.Seq)
	assert.Equal(t, int64(2), o2.Seq)
	assert.Equal(t, uint32(4), o2.Epoch)
	assert.Equal(t, int64(2), s.Current())
	assert.Equal(t, 2, s.HistoryLen())

	assert.Equal(
		t,
		[]event{
			{where: "multicast", seq: 1},
			{where: "local", seq: 1},
			{where: "multicast", seq: 2},
			{where: "local", seq: 2},
		},
		r.events,
		"network send precedes local delivery",
	)
}

func Test_HandleNack(t *testing.T) {
	s, r := newSequencer()
	s.Reset(1)
	for _, player := range []string{"A", "B", "C"} {
		s.Multicast(seat(player))
	}
	r.events = nil

	assert.True(t, s.HandleNack(2, "X"))
	assert.Equal(t, []event{{where: "unicast", peerID: "X", seq: 2}}, r.events)

	r.events = nil
	assert.False(t, s.HandleNack(9, "X"))
	assert.False(t, s.HandleNack(0, "X"))
	assert.Empty(t, r.events, "history miss sends nothing")
}

func Test_ResetAndDiscard(t *testing.T) {
	s, r := newSequencer()
	s.Reset(1)
	s.Multicast(seat("A"))
	s.Multicast(seat("B"))

	s.Reset(2)
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, 0, s.HistoryLen())
	o, err := s.Multicast(seat("C"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.Seq)
	assert.Equal(t, uint32(2), o.Epoch)

	s.Discard()
	assert.False(t, s.Active())
	assert.Equal(t, 0, s.HistoryLen())

	r.events = nil
	assert.False(t, s.HandleNack(1, "X"))
	assert.Empty(t, r.events)
}
