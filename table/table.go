package table

import (
	"errors"
	"fmt"

	"github.com/paulhankin/poker"

	m "github.com/Meander-Cloud/go-holdem/message"
)

type Phase uint8

const (
	PhaseInvalid  Phase = 0
	PhasePreflop  Phase = 1
	PhaseFlop     Phase = 2
	PhaseTurn     Phase = 3
	PhaseRiver    Phase = 4
	PhaseShowdown Phase = 5
)

func (p Phase) String() string {
	switch p {
	case PhaseInvalid:
		return "Invalid Phase"
	case PhasePreflop:
		return "Preflop"
	case PhaseFlop:
		return "Flop"
	case PhaseTurn:
		return "Turn"
	case PhaseRiver:
		return "River"
	case PhaseShowdown:
		return "Showdown"
	default:
		return "Unknown Phase"
	}
}

// board cards dealt when entering a phase
func (p Phase) boardCards() int {
	switch p {
	case PhaseFlop:
		return 3
	case PhaseTurn, PhaseRiver:
		return 1
	default:
		return 0
	}
}

var (
	ErrNoRound           = errors.New("no round in progress")
	ErrRoundInProgress   = errors.New("round already in progress")
	ErrNotEnoughPlayers  = errors.New("at least two players with chips are needed")
	ErrUnknownPlayer     = errors.New("player is not seated")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrAwaitingBoard     = errors.New("waiting for board cards")
	ErrMustCall          = errors.New("cannot check, there is a bet to call")
	ErrInsufficientChips = errors.New("not enough chips")
	ErrBetTooSmall       = errors.New("bet must exceed the highest bet")
	ErrInvalidAction     = errors.New("invalid action")
	ErrInvalidCommand    = errors.New("invalid command")
)

// Table is the replicated poker state. Every replica applies the same
// sequenced commands, so every decision here must be deterministic. Deck
// is only populated on the primary.
type Table struct {
	Players   []*Player    `json:"players"`
	Community []poker.Card `json:"community"`
	Deck      []poker.Card `json:"deck,omitempty" msgpack:",omitempty"`

	Pot        int64 `json:"pot"`
	HighestBet int64 `json:"highest_bet"`

	Phase   Phase  `json:"phase"`
	Current int    `json:"current"` // index into Players
	Acted   int    `json:"acted"`   // decisions this phase
	RoundID string `json:"round_id"`

	InProgress bool `json:"in_progress"`
	// board cards the primary still has to sequence before betting resumes
	AwaitingBoard int `json:"awaiting_board"`

	HandCount uint32 `json:"hand_count"`

	// stacks of players away from the table, restored when they sit again
	Parked map[string]int64 `json:"parked,omitempty" msgpack:",omitempty"`
}

func New() *Table {
	return &Table{
		Phase: PhasePreflop,
	}
}

func (t *Table) Player(id string) *Player {
	for _, p := range t.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (t *Table) PlayerIDs() []string {
	ids := make([]string, len(t.Players))
	for i, p := range t.Players {
		ids[i] = p.ID
	}
	return ids
}

// CurrentPlayer is nil outside a betting phase.
func (t *Table) CurrentPlayer() *Player {
	if !t.InProgress || t.AwaitingBoard > 0 {
		return nil
	}
	if t.Current < 0 || t.Current >= len(t.Players) {
		return nil
	}
	return t.Players[t.Current]
}

// ToCall is what id must add to stay in the hand.
func (t *Table) ToCall(id string) int64 {
	p := t.Player(id)
	if p == nil {
		return 0
	}
	return t.HighestBet - p.CurrentBet
}

// Eligible lists players who would be dealt in, in seat order.
func (t *Table) Eligible() []string {
	var ids []string
	for _, p := range t.Players {
		if !p.Left && p.Chips > 0 {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (t *Table) CanStart() error {
	if t.InProgress {
		return ErrRoundInProgress
	}
	if len(t.Eligible()) < 2 {
		return ErrNotEnoughPlayers
	}
	return nil
}

// Validate checks an action against the current state without changing it.
func (t *Table) Validate(playerID string, action m.Action, amount int64) error {
	if !t.InProgress {
		return ErrNoRound
	}
	if t.AwaitingBoard > 0 {
		return ErrAwaitingBoard
	}

	p := t.Player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}

	current := t.CurrentPlayer()
	if current == nil || current.ID != playerID {
		currentID := ""
		if current != nil {
			currentID = current.ID
		}
		return fmt.Errorf("%w, waiting for %s", ErrNotYourTurn, currentID)
	}

	toCall := t.HighestBet - p.CurrentBet

	switch action {
	case m.ActionFold:
		return nil

	case m.ActionCheck:
		if toCall > 0 {
			return fmt.Errorf("%w of %d", ErrMustCall, toCall)
		}
		return nil

	case m.ActionCall:
		if toCall > p.Chips {
			return fmt.Errorf("%w to call %d, have %d, go all in instead", ErrInsufficientChips, toCall, p.Chips)
		}
		return nil

	case m.ActionBet, m.ActionRaise:
		if amount <= 0 {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidAction)
		}
		if amount > p.Chips {
			return fmt.Errorf("%w to put in %d, have %d", ErrInsufficientChips, amount, p.Chips)
		}
		if p.CurrentBet+amount <= t.HighestBet {
			return fmt.Errorf("%w of %d, put in more than %d", ErrBetTooSmall, t.HighestBet, toCall)
		}
		return nil

	case m.ActionAllIn:
		if p.Chips == 0 {
			return fmt.Errorf("%w to go all in", ErrInsufficientChips)
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
}

func (t *Table) park(p *Player) {
	if t.Parked == nil {
		t.Parked = make(map[string]int64)
	}
	t.Parked[p.ID] = p.Chips
}

func (t *Table) count(f func(*Player) bool) int {
	n := 0
	for _, p := range t.Players {
		if f(p) {
			n++
		}
	}
	return n
}

// nextActing returns the first acting seat after from, or -1.
func (t *Table) nextActing(from int) int {
	size := len(t.Players)
	for step := 1; step <= size; step++ {
		index := (from + step) % size
		if t.Players[index].acting() {
			return index
		}
	}
	return -1
}

// Clone is a deep copy.
func (t *Table) Clone() *Table {
	c := *t
	c.Players = make([]*Player, len(t.Players))
	for i, p := range t.Players {
		c.Players[i] = p.clone()
	}
	c.Community = append([]poker.Card(nil), t.Community...)
	c.Deck = append([]poker.Card(nil), t.Deck...)
	if t.Parked != nil {
		c.Parked = make(map[string]int64, len(t.Parked))
		for id, chips := range t.Parked {
			c.Parked[id] = chips
		}
	}
	return &c
}
