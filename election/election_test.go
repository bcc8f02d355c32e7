package election

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meander-Cloud/go-holdem/config"
	g "github.com/Meander-Cloud/go-holdem/group"
	m "github.com/Meander-Cloud/go-holdem/message"
)

type fakeTimer struct {
	pending map[g.Group]func()
}

func (t *fakeTimer) ScheduleTimer(group g.Group, _ time.Duration, f func()) {
	t.pending[group] = f
}

func (t *fakeTimer) ReleaseTimer(group g.Group) {
	delete(t.pending, group)
}

func (t *fakeTimer) armed(group g.Group) bool {
	_, found := t.pending[group]
	return found
}

func (t *fakeTimer) fire(group g.Group) bool {
	f, found := t.pending[group]
	if !found {
		return false
	}
	delete(t.pending, group)
	f()
	return true
}

type recordingCallback struct {
	elected []*LeaderElected
	revoked []*LeaderRevoked
}

func (uc *recordingCallback) LeaderElected(elected *LeaderElected) {
	uc.elected = append(uc.elected, elected)
}

func (uc *recordingCallback) LeaderRevoked(revoked *LeaderRevoked) {
	uc.revoked = append(uc.revoked, revoked)
}

type envelope struct {
	from string
	to   string
	msg  *m.Message
}

// bus delivers messages in FIFO order between in-memory elections.
type bus struct {
	nodes  map[string]*testNode
	queue  []envelope
	sent   []envelope
	down   map[string]bool // disconnected, peers notice
	drop   map[string]bool // silently unreachable, peers do not notice
	refuse map[string]bool // connected but every write fails
}

type testNode struct {
	id    string
	b     *bus
	e     *Election
	timer *fakeTimer
	uc    *recordingCallback
}

func (n *testNode) SelfID() string {
	return n.id
}

func (n *testNode) PeerIDs() []string {
	var peers []string
	for id := range n.b.nodes {
		if id != n.id && !n.b.down[id] {
			peers = append(peers, id)
		}
	}
	slices.Sort(peers)
	return peers
}

func (n *testNode) Unicast(peerID string, msg *m.Message) error {
	if n.b.down[peerID] {
		return errors.New("not connected")
	}
	if n.b.refuse[peerID] {
		return errors.New("write failed")
	}
	env := envelope{from: n.id, to: peerID, msg: msg}
	n.b.sent = append(n.b.sent, env)
	if !n.b.drop[peerID] {
		n.b.queue = append(n.b.queue, env)
	}
	return nil
}

func (n *testNode) Multicast(msg *m.Message) {
	for _, peerID := range n.PeerIDs() {
		n.Unicast(peerID, msg)
	}
}

func newBus(ids ...string) *bus {
	b := &bus{
		nodes:  make(map[string]*testNode),
		down:   make(map[string]bool),
		drop:   make(map[string]bool),
		refuse: make(map[string]bool),
	}
	for _, id := range ids {
		n := &testNode{
			id:    id,
			b:     b,
			timer: &fakeTimer{pending: make(map[g.Group]func())},
			uc:    &recordingCallback{},
		}
		n.e = NewElection(
			&config.Config{LogPrefix: id},
			n,
			n.timer,
			n.uc,
		)
		b.nodes[id] = n
	}
	return b
}

func (b *bus) run() {
	for len(b.queue) > 0 {
		env := b.queue[0]
		b.queue = b.queue[1:]
		if b.down[env.to] {
			continue
		}
		b.nodes[env.to].e.HandleMessage(env.from, env.msg)
	}
}

func (b *bus) leaders() []string {
	var leaders []string
	for id, n := range b.nodes {
		if !b.down[id] && n.e.Snapshot().IsLeader() {
			leaders = append(leaders, id)
		}
	}
	slices.Sort(leaders)
	return leaders
}

func (b *bus) count(kind m.Kind, from string, to string) int {
	count := 0
	for _, env := range b.sent {
		if env.msg.Kind() != kind {
			continue
		}
		if from != "" && env.from != from {
			continue
		}
		if to != "" && env.to != to {
			continue
		}
		count++
	}
	return count
}

// expectedWinner ranks the live membership the way every node does.
func (b *bus) expectedWinner(round uint32) string {
	var live []string
	for id := range b.nodes {
		if !b.down[id] {
			live = append(live, id)
		}
	}
	slices.Sort(live)

	winner := live[0]
	for _, id := range live[1:] {
		if outranks(id, winner, live[0], live, round) {
			winner = id
		}
	}
	return winner
}

var threeNodes = []string{"10.0.0.1:7000", "10.0.0.2:7000", "10.0.0.3:7000"}

func Test_PriorityHashRotation(t *testing.T) {
	peers := []string{"b", "c"}

	for round := uint32(0); round < 6; round++ {
		set := members("a", peers)
		bonused := set[round%uint32(len(set))]

		for _, id := range set {
			p := PriorityHash(id, "a", peers, round)
			if id == bonused {
				assert.GreaterOrEqual(t, p, rotationBonus, "round=%d id=%s", round, id)
			} else {
				assert.Less(t, p, rotationBonus, "round=%d id=%s", round, id)
			}
		}
	}

	// same inputs, same answer, from any vantage point
	assert.Equal(
		t,
		PriorityHash("b", "a", []string{"b", "c"}, 4),
		PriorityHash("b", "c", []string{"a", "b"}, 4),
	)
}

func Test_Successor(t *testing.T) {
	assert.Equal(t, "b", successor("a", []string{"c", "b"}))
	assert.Equal(t, "a", successor("c", []string{"a", "b"}))
	assert.Equal(t, "", successor("a", nil))
}

func Test_SimultaneousElection(t *testing.T) {
	b := newBus(threeNodes...)
	winner := b.expectedWinner(0)

	for _, id := range threeNodes {
		b.nodes[id].e.StartElection(m.ElectionReasonStartup)
	}
	b.run()

	assert.Equal(t, []string{winner}, b.leaders())
	assert.Equal(t, b.count(m.KindCoordinator, "", ""), b.count(m.KindCoordinator, winner, ""), "only the winner announces")

	for _, id := range threeNodes {
		n := b.nodes[id]
		assert.Equal(t, winner, n.e.Snapshot().LeaderID, "id=%s", id)
		assert.False(t, n.e.Snapshot().InProgress, "id=%s", id)
		assert.False(t, n.timer.armed(g.GroupElectionWait), "id=%s", id)
		assert.False(t, n.timer.armed(g.GroupCoordinatorWait), "id=%s", id)

		if id == winner {
			continue
		}
		assert.Equal(t, 1, b.count(m.KindElectionOk, "", id), "id=%s receives exactly one ElectionOk", id)
		assert.Equal(t, 1, b.count(m.KindElectionOk, winner, id), "id=%s hears it from the winner", id)
	}

	require.Len(t, b.nodes[winner].uc.elected, 1)
	assert.False(t, b.nodes[winner].uc.elected[0].Handover)
	assert.Equal(t, uint32(1), b.nodes[winner].e.Snapshot().Epoch)
}

func Test_SingleLeaderAcrossOrders(t *testing.T) {
	ids := []string{"n1:1", "n2:1", "n3:1", "n4:1", "n5:1"}
	orders := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
	}

	for _, order := range orders {
		b := newBus(ids...)
		for _, index := range order {
			b.nodes[ids[index]].e.StartElection(m.ElectionReasonStartup)
		}
		b.run()

		winner := b.expectedWinner(0)
		assert.Equal(t, []string{winner}, b.leaders(), "order=%v", order)
		for _, id := range ids {
			assert.Equal(t, winner, b.nodes[id].e.Snapshot().LeaderID, "order=%v id=%s", order, id)
		}
	}
}

func Test_StartElectionIdempotent(t *testing.T) {
	b := newBus(threeNodes...)
	winner := b.expectedWinner(0)

	var loser string
	for _, id := range threeNodes {
		if id != winner {
			loser = id
			break
		}
	}

	b.nodes[loser].e.StartElection(m.ElectionReasonManual)
	sent := len(b.sent)
	b.nodes[loser].e.StartElection(m.ElectionReasonManual)
	assert.Equal(t, sent, len(b.sent), "second call while in progress sends nothing")
}

func Test_LeaderFailure(t *testing.T) {
	b := newBus(threeNodes...)
	for _, id := range threeNodes {
		b.nodes[id].e.StartElection(m.ElectionReasonStartup)
	}
	b.run()
	first := b.leaders()
	require.Len(t, first, 1)

	b.down[first[0]] = true
	for _, id := range threeNodes {
		if id != first[0] {
			b.nodes[id].e.HandleNodeFailure(first[0])
			assert.Equal(t, "", b.nodes[id].e.Snapshot().LeaderID)
		}
	}
	for _, id := range threeNodes {
		if id != first[0] {
			require.True(t, b.nodes[id].timer.fire(g.GroupLeaderFailureWait), "id=%s", id)
		}
	}
	b.run()

	second := b.leaders()
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0], second[0])
	assert.Equal(t, b.expectedWinner(1), second[0])
	assert.Equal(t, uint32(2), b.nodes[second[0]].e.Snapshot().Epoch)
}

func Test_NodeFailureOfFollowerIgnored(t *testing.T) {
	b := newBus(threeNodes...)
	for _, id := range threeNodes {
		b.nodes[id].e.StartElection(m.ElectionReasonStartup)
	}
	b.run()
	leader := b.leaders()[0]

	for _, id := range threeNodes {
		if id == leader {
			continue
		}
		for _, other := range threeNodes {
			if other != leader && other != id {
				b.nodes[id].e.HandleNodeFailure(other)
			}
		}
		assert.False(t, b.nodes[id].timer.armed(g.GroupLeaderFailureWait))
		assert.Equal(t, leader, b.nodes[id].e.Snapshot().LeaderID)
	}
}

func Test_VictoryTimeout(t *testing.T) {
	b := newBus("a:1", "b:1")
	winner := b.expectedWinner(0)
	loser := "a:1"
	if winner == loser {
		loser = "b:1"
	}

	// higher peer still looks connected but never answers
	b.drop[winner] = true
	b.nodes[loser].e.StartElection(m.ElectionReasonStartup)
	b.run()
	assert.Empty(t, b.leaders())
	require.True(t, b.nodes[loser].timer.armed(g.GroupElectionWait))

	require.True(t, b.nodes[loser].timer.fire(g.GroupElectionWait))
	assert.Equal(t, []string{loser}, b.leaders())
}

func Test_CoordinatorTimeoutRestarts(t *testing.T) {
	b := newBus(threeNodes...)
	winner := b.expectedWinner(0)
	var loser string
	for _, id := range threeNodes {
		if id != winner {
			loser = id
			break
		}
	}

	b.nodes[loser].e.StartElection(m.ElectionReasonStartup)
	electionsBefore := b.count(m.KindElection, loser, "")

	// deliver ElectionOk from the winner directly, no COORDINATOR follows
	b.queue = nil
	b.nodes[loser].e.HandleMessage(winner, &m.Message{ElectionOk: &m.ElectionOk{}})
	assert.False(t, b.nodes[loser].timer.armed(g.GroupElectionWait), "ElectionOk cancels victory")
	require.True(t, b.nodes[loser].timer.armed(g.GroupCoordinatorWait))

	require.True(t, b.nodes[loser].timer.fire(g.GroupCoordinatorWait))
	assert.Greater(t, b.count(m.KindElection, loser, ""), electionsBefore, "challenge is repeated")
	assert.True(t, b.nodes[loser].e.Snapshot().InProgress)
}

func Test_StaleElectionOkIgnored(t *testing.T) {
	b := newBus(threeNodes...)
	n := b.nodes[threeNodes[0]]
	n.e.HandleMessage(threeNodes[1], &m.Message{ElectionOk: &m.ElectionOk{}})
	assert.False(t, n.timer.armed(g.GroupCoordinatorWait))
}

func Test_StartupDefersToIncumbent(t *testing.T) {
	b := newBus(threeNodes...)
	n := b.nodes[threeNodes[0]]

	n.e.Start()
	require.True(t, n.timer.armed(g.GroupStartupWait))

	n.e.HandleMessage(threeNodes[2], &m.Message{Coordinator: &m.Coordinator{Epoch: 3}})
	assert.False(t, n.timer.armed(g.GroupStartupWait))
	assert.Equal(t, threeNodes[2], n.e.Snapshot().LeaderID)
	assert.Equal(t, uint32(3), n.e.Snapshot().Epoch)
	assert.Zero(t, b.count(m.KindElection, threeNodes[0], ""))
}

func Test_StartupElects(t *testing.T) {
	b := newBus(threeNodes...)
	for _, id := range threeNodes {
		b.nodes[id].e.Start()
	}
	for _, id := range threeNodes {
		require.True(t, b.nodes[id].timer.fire(g.GroupStartupWait))
	}
	b.run()

	assert.Equal(t, []string{b.expectedWinner(0)}, b.leaders())
}

func Test_StartupWaitsForPeers(t *testing.T) {
	b := newBus(threeNodes...)
	b.down[threeNodes[1]] = true
	b.down[threeNodes[2]] = true

	n := &testNode{
		id:    threeNodes[0],
		b:     b,
		timer: &fakeTimer{pending: make(map[g.Group]func())},
		uc:    &recordingCallback{},
	}
	n.e = NewElection(&config.Config{LogPrefix: "min", MinPeerCount: 2}, n, n.timer, n.uc)

	n.e.Start()
	assert.False(t, n.timer.armed(g.GroupStartupWait))

	b.down[threeNodes[1]] = false
	n.e.HandlePeerJoined(threeNodes[1])
	assert.False(t, n.timer.armed(g.GroupStartupWait))

	b.down[threeNodes[2]] = false
	n.e.HandlePeerJoined(threeNodes[2])
	assert.True(t, n.timer.armed(g.GroupStartupWait), "grace wait starts once enough peers are known")
}

func Test_IncumbentAnnouncesToNewcomer(t *testing.T) {
	b := newBus(threeNodes...)
	for _, id := range threeNodes {
		b.nodes[id].e.StartElection(m.ElectionReasonStartup)
	}
	b.run()
	leader := b.leaders()[0]

	before := b.count(m.KindCoordinator, leader, threeNodes[0])
	b.nodes[leader].e.HandlePeerJoined(threeNodes[0])
	if leader != threeNodes[0] {
		assert.Equal(t, before+1, b.count(m.KindCoordinator, leader, threeNodes[0]))
	}
}

func Test_PassLeadership(t *testing.T) {
	b := newBus(threeNodes...)
	for _, id := range threeNodes {
		b.nodes[id].e.StartElection(m.ElectionReasonStartup)
	}
	b.run()
	leader := b.leaders()[0]
	old := b.nodes[leader]
	next := successor(leader, old.PeerIDs())

	assert.Error(t, b.nodes[next].e.PassLeadership(nil, 0), "only the leader hands over")
	electionsBefore := b.count(m.KindElection, next, "")

	require.NoError(t, old.e.PassLeadership([]byte("table"), 42))
	assert.False(t, old.e.Snapshot().IsLeader())
	require.Len(t, old.uc.revoked, 1)
	assert.Equal(t, next, old.uc.revoked[0].Successor)

	b.run()
	assert.Equal(t, []string{next}, b.leaders())

	elected := b.nodes[next].uc.elected
	require.Len(t, elected, 1)
	assert.True(t, elected[0].Handover)
	assert.Equal(t, []byte("table"), elected[0].State)
	assert.Equal(t, int64(42), elected[0].Seq)
	assert.Equal(t, uint32(2), elected[0].Epoch)
	assert.Equal(t, electionsBefore, b.count(m.KindElection, next, ""), "handover skips the challenge")

	for _, id := range threeNodes {
		assert.Equal(t, next, b.nodes[id].e.Snapshot().LeaderID, "id=%s", id)
	}
}

func Test_PassLeadershipSkipsUnreachable(t *testing.T) {
	b := newBus(threeNodes...)
	for _, id := range threeNodes {
		b.nodes[id].e.StartElection(m.ElectionReasonStartup)
	}
	b.run()
	leader := b.leaders()[0]
	old := b.nodes[leader]
	peers := old.PeerIDs()
	next := successor(leader, peers)
	after := successor(next, peers)

	b.refuse[next] = true
	require.NoError(t, old.e.PassLeadership([]byte("s"), 7))
	require.Len(t, old.uc.revoked, 1)
	assert.Equal(t, after, old.uc.revoked[0].Successor)

	b.run()
	assert.Equal(t, []string{after}, b.leaders())
}

func Test_PassLeadershipWithoutSuccessor(t *testing.T) {
	b := newBus(threeNodes...)
	for _, id := range threeNodes {
		b.nodes[id].e.StartElection(m.ElectionReasonStartup)
	}
	b.run()
	leader := b.leaders()[0]
	old := b.nodes[leader]

	for _, id := range threeNodes {
		if id != leader {
			b.refuse[id] = true
		}
	}
	assert.Error(t, old.e.PassLeadership(nil, 0))
	assert.True(t, old.e.Snapshot().IsLeader(), "no successor, leadership is kept")
	assert.Empty(t, old.uc.revoked)

	for _, id := range threeNodes {
		b.down[id] = id != leader
	}
	assert.Error(t, old.e.PassLeadership(nil, 0))
	assert.True(t, old.e.Snapshot().IsLeader())
}

func Test_CoordinatorRevokesLeader(t *testing.T) {
	b := newBus("a:1", "b:1")
	b.nodes["a:1"].e.StartElection(m.ElectionReasonManual)
	b.drop["b:1"] = true
	if !b.nodes["a:1"].e.Snapshot().IsLeader() {
		b.nodes["a:1"].timer.fire(g.GroupElectionWait)
	}
	require.True(t, b.nodes["a:1"].e.Snapshot().IsLeader())

	b.nodes["a:1"].e.HandleMessage("b:1", &m.Message{Coordinator: &m.Coordinator{Epoch: 5}})
	assert.False(t, b.nodes["a:1"].e.Snapshot().IsLeader())
	assert.Equal(t, "b:1", b.nodes["a:1"].e.Snapshot().LeaderID)
	assert.Len(t, b.nodes["a:1"].uc.revoked, 1)
}

func Test_CrossedCoordinatorsConverge(t *testing.T) {
	b := newBus(threeNodes...)
	top := b.expectedWinner(0)

	var rest []string
	for _, id := range threeNodes {
		if id != top {
			rest = append(rest, id)
		}
	}
	low, mid := rest[0], rest[1]
	if outranks(low, mid, low, threeNodes, 0) {
		low, mid = mid, low
	}

	// top looks connected but never answers
	b.drop[top] = true
	b.nodes[low].e.StartElection(m.ElectionReasonStartup)
	b.run()
	assert.Zero(t, b.count(m.KindElectionOk, mid, low), "mid leaves the answer to top")
	require.True(t, b.nodes[mid].timer.armed(g.GroupElectionWait))

	// both time out and announce the same epoch
	require.True(t, b.nodes[low].timer.fire(g.GroupElectionWait))
	require.True(t, b.nodes[mid].timer.fire(g.GroupElectionWait))
	require.ElementsMatch(t, []string{low, mid}, b.leaders())
	b.run()

	winner, loser := mid, low
	if outranks(low, mid, low, []string{mid}, 1) {
		winner, loser = low, mid
	}

	assert.Equal(t, []string{winner}, b.leaders())
	assert.Equal(t, winner, b.nodes[loser].e.Snapshot().LeaderID)
	assert.Equal(t, winner, b.nodes[winner].e.Snapshot().LeaderID)
	assert.Equal(t, uint32(1), b.nodes[winner].e.Snapshot().Epoch)
	require.Len(t, b.nodes[loser].uc.revoked, 1)
	assert.Equal(t, winner, b.nodes[loser].uc.revoked[0].Successor)
	assert.Empty(t, b.nodes[winner].uc.revoked)
}

func Test_StaleCoordinatorReasserted(t *testing.T) {
	b := newBus("a:1", "b:1")
	a := b.nodes["a:1"]
	a.e.HandleMessage("b:1", &m.Message{Coordinator: &m.Coordinator{Epoch: 3}})
	b.drop["b:1"] = true
	a.e.StartElection(m.ElectionReasonManual)
	if !a.e.Snapshot().IsLeader() {
		require.True(t, a.timer.fire(g.GroupElectionWait))
	}
	require.Equal(t, uint32(4), a.e.Snapshot().Epoch)

	before := b.count(m.KindCoordinator, "a:1", "b:1")
	a.e.HandleMessage("b:1", &m.Message{Coordinator: &m.Coordinator{Epoch: 3}})
	assert.True(t, a.e.Snapshot().IsLeader())
	assert.Empty(t, a.uc.revoked)
	assert.Equal(t, before+1, b.count(m.KindCoordinator, "a:1", "b:1"))
}

