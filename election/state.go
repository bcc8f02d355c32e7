package election

import (
	m "github.com/Meander-Cloud/go-holdem/message"
)

type State struct {
	SelfID string

	InProgress bool
	IAmLeader  bool
	LeaderID   string

	// highest epoch seen or declared, doubles as rotation round
	Epoch uint32

	StartupDone   bool
	AwaitingPeers bool
}

func NewState(selfID string) *State {
	return &State{
		SelfID: selfID,
	}
}

func (s *State) Role() m.Role {
	switch {
	case s.IAmLeader:
		return m.RoleLeader
	case s.InProgress:
		return m.RoleElecting
	default:
		return m.RoleIdle
	}
}

// Snapshot is an immutable copy of the leadership view.
type Snapshot struct {
	SelfID     string
	Role       m.Role
	LeaderID   string
	Epoch      uint32
	InProgress bool
}

func (s *State) snapshot() *Snapshot {
	return &Snapshot{
		SelfID:     s.SelfID,
		Role:       s.Role(),
		LeaderID:   s.LeaderID,
		Epoch:      s.Epoch,
		InProgress: s.InProgress,
	}
}

func (s *Snapshot) IsLeader() bool {
	return s.Role == m.RoleLeader
}
