package message

import (
	"github.com/paulhankin/poker"
)

type Action uint8

const (
	ActionInvalid Action = 0
	ActionFold    Action = 1
	ActionCheck   Action = 2
	ActionCall    Action = 3
	ActionBet     Action = 4
	ActionRaise   Action = 5
	ActionAllIn   Action = 6

	// asks the dealer to deal the next hand, never sequenced as an Act
	ActionStart Action = 7
)

func (a Action) String() string {
	switch a {
	case ActionInvalid:
		return "Invalid Action"
	case ActionFold:
		return "Fold"
	case ActionCheck:
		return "Check"
	case ActionCall:
		return "Call"
	case ActionBet:
		return "Bet"
	case ActionRaise:
		return "Raise"
	case ActionAllIn:
		return "AllIn"
	case ActionStart:
		return "Start"
	default:
		return "Unknown Action"
	}
}

type Seat struct {
	Player string `json:"player"`
	Name   string `json:"name"`
	Chips  int64  `json:"chips"`
}

type Unseat struct {
	Player string `json:"player"`
}

// Deal starts a hand. Hole cards travel in every replica's copy.
type Deal struct {
	RoundID string                  `json:"round_id"`
	Holes   map[string][]poker.Card `json:"holes"`
}

type Act struct {
	Player string `json:"player"`
	Action Action `json:"action"`
	Amount int64  `json:"amount"`
}

type Board struct {
	Cards []poker.Card `json:"cards"`
}

// Restore replaces the replicated table with a public snapshot.
type Restore struct {
	State []byte `json:"state"`
}

// Command is the application payload of an Ordered message; exactly one
// pointer is set.
type Command struct {
	Seat    *Seat    `json:"seat,omitempty" msgpack:",omitempty"`
	Unseat  *Unseat  `json:"unseat,omitempty" msgpack:",omitempty"`
	Deal    *Deal    `json:"deal,omitempty" msgpack:",omitempty"`
	Act     *Act     `json:"act,omitempty" msgpack:",omitempty"`
	Board   *Board   `json:"board,omitempty" msgpack:",omitempty"`
	Restore *Restore `json:"restore,omitempty" msgpack:",omitempty"`
}

func (c *Command) String() string {
	switch {
	case c == nil:
		return "<nil>"
	case c.Seat != nil:
		return "Seat(" + c.Seat.Player + ")"
	case c.Unseat != nil:
		return "Unseat(" + c.Unseat.Player + ")"
	case c.Deal != nil:
		return "Deal(" + c.Deal.RoundID + ")"
	case c.Act != nil:
		return "Act(" + c.Act.Player + "," + c.Act.Action.String() + ")"
	case c.Board != nil:
		return "Board"
	case c.Restore != nil:
		return "Restore"
	default:
		return "Empty"
	}
}
