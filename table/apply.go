package table

import (
	"fmt"
	"slices"

	m "github.com/Meander-Cloud/go-holdem/message"
)

// Effect describes what applying a command did. BoardNeeded is non-zero when
// the primary must draw and sequence that many community cards next.
type Effect struct {
	BoardNeeded int
	RoundOver   bool
	Winners     []string
	Events      []string
}

func (e *Effect) event(format string, args ...any) {
	e.Events = append(e.Events, fmt.Sprintf(format, args...))
}

// Apply mutates the table with one sequenced command. A rejected command
// leaves the table untouched and every replica rejects it the same way.
func (t *Table) Apply(cmd *m.Command) (*Effect, error) {
	eff := &Effect{}

	var err error
	switch {
	case cmd == nil:
		err = fmt.Errorf("%w: nil", ErrInvalidCommand)
	case cmd.Seat != nil:
		err = t.seat(cmd.Seat, eff)
	case cmd.Unseat != nil:
		err = t.unseat(cmd.Unseat, eff)
	case cmd.Deal != nil:
		err = t.deal(cmd.Deal, eff)
	case cmd.Act != nil:
		err = t.act(cmd.Act, eff)
	case cmd.Board != nil:
		err = t.board(cmd.Board, eff)
	case cmd.Restore != nil:
		err = t.restore(cmd.Restore, eff)
	default:
		err = fmt.Errorf("%w: empty", ErrInvalidCommand)
	}

	if err != nil {
		return nil, err
	}
	return eff, nil
}

func (t *Table) seat(seat *m.Seat, eff *Effect) error {
	if p := t.Player(seat.Player); p != nil {
		if p.Left {
			p.Left = false
			eff.event("%s is back at the table", p.Name)
		}
		return nil
	}

	chips := seat.Chips
	if parked, found := t.Parked[seat.Player]; found {
		chips = parked
		delete(t.Parked, seat.Player)
	}

	p := NewPlayer(seat.Player, seat.Name, chips)
	if t.InProgress {
		p.Active = false
		p.Folded = true
		eff.event("%s joined with %d chips, spectating until the next deal", p.Name, p.Chips)
	} else {
		eff.event("%s joined with %d chips", p.Name, p.Chips)
	}

	t.Players = append(t.Players, p)
	return nil
}

func (t *Table) unseat(unseat *m.Unseat, eff *Effect) error {
	index := slices.IndexFunc(
		t.Players,
		func(p *Player) bool {
			return p.ID == unseat.Player
		},
	)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, unseat.Player)
	}
	p := t.Players[index]

	if !t.InProgress {
		t.park(p)
		t.Players = slices.Delete(t.Players, index, index+1)
		eff.event("%s left the table", p.Name)
		return nil
	}

	p.Left = true
	if !p.contending() {
		eff.event("%s left the table", p.Name)
		return nil
	}

	wasCurrent := t.CurrentPlayer() == p
	p.Folded = true
	eff.event("%s left the table and folds", p.Name)

	switch {
	case wasCurrent:
		t.progress(eff)
	case t.count((*Player).contending) < 2:
		t.foldOut(eff)
	case t.AwaitingBoard == 0 && t.phaseComplete():
		t.advance(eff)
	}
	return nil
}

func (t *Table) deal(deal *m.Deal, eff *Effect) error {
	if t.InProgress {
		return ErrRoundInProgress
	}

	dealt := 0
	for _, p := range t.Players {
		if len(deal.Holes[p.ID]) == 2 && p.Chips > 0 {
			dealt++
		}
	}
	if dealt < 2 {
		return fmt.Errorf("%w, %d dealt", ErrNotEnoughPlayers, dealt)
	}

	var names []string
	for _, p := range t.Players {
		p.resetForNewHand()

		hole := deal.Holes[p.ID]
		if len(hole) != 2 || p.Chips == 0 {
			p.Active = false
			p.Folded = true
			continue
		}

		p.Hole = append(p.Hole, hole...)
		names = append(names, p.Name)
	}

	t.Community = nil
	t.Pot = 0
	t.HighestBet = 0
	t.Phase = PhasePreflop
	t.Acted = 0
	t.AwaitingBoard = 0
	t.RoundID = deal.RoundID
	t.InProgress = true
	t.HandCount++
	t.Current = t.nextActing(-1)

	eff.event("hand #%d dealt to %v", t.HandCount, names)
	return nil
}

func (t *Table) act(act *m.Act, eff *Effect) error {
	err := t.Validate(act.Player, act.Action, act.Amount)
	if err != nil {
		return err
	}

	p := t.Player(act.Player)
	toCall := t.HighestBet - p.CurrentBet

	switch act.Action {
	case m.ActionFold:
		p.Folded = true
		eff.event("%s folds", p.Name)

	case m.ActionCheck:
		eff.event("%s checks", p.Name)

	case m.ActionCall:
		t.Pot += p.pay(toCall)
		eff.event("%s calls %d", p.Name, toCall)

	case m.ActionBet, m.ActionRaise:
		t.Pot += p.pay(act.Amount)
		t.HighestBet = p.CurrentBet
		eff.event("%s %s %d, bet is now %d", p.Name, verb(act.Action), act.Amount, t.HighestBet)

	case m.ActionAllIn:
		paid := p.pay(p.Chips)
		t.Pot += paid
		if p.CurrentBet > t.HighestBet {
			t.HighestBet = p.CurrentBet
		}
		eff.event("%s goes all in with %d", p.Name, paid)
	}

	t.progress(eff)
	return nil
}

func verb(action m.Action) string {
	if action == m.ActionBet {
		return "bets"
	}
	return "raises"
}

func (t *Table) board(board *m.Board, eff *Effect) error {
	if !t.InProgress {
		return ErrNoRound
	}
	if t.AwaitingBoard == 0 || len(board.Cards) != t.AwaitingBoard {
		return fmt.Errorf("%w: %d board card(s) for %d awaited", ErrInvalidCommand, len(board.Cards), t.AwaitingBoard)
	}

	t.Community = append(t.Community, board.Cards...)
	t.AwaitingBoard = 0
	eff.event("%s: %s", t.Phase, FormatCards(t.Community))

	if t.count((*Player).acting) < 2 {
		// nobody left to bet against, run the board out
		t.advance(eff)
		return nil
	}

	t.Current = t.nextActing(-1)
	return nil
}

func (t *Table) restore(restore *m.Restore, eff *Effect) error {
	restored, err := Unmarshal(restore.State)
	if err != nil {
		return err
	}

	deck := t.Deck
	*t = *restored
	if t.Deck == nil {
		t.Deck = deck
	}

	eff.event("table restored, %d player(s), pot %d", len(t.Players), t.Pot)
	return nil
}

// progress runs after the current player made a decision.
func (t *Table) progress(eff *Effect) {
	if t.count((*Player).contending) < 2 {
		t.foldOut(eff)
		return
	}

	t.Acted++
	if t.phaseComplete() {
		t.advance(eff)
		return
	}

	next := t.nextActing(t.Current)
	if next < 0 {
		t.advance(eff)
		return
	}
	t.Current = next
}

// phaseComplete holds once every acting player matched the highest bet and
// at least as many decisions as acting players were made.
func (t *Table) phaseComplete() bool {
	acting := 0
	for _, p := range t.Players {
		if !p.acting() {
			continue
		}
		if p.CurrentBet != t.HighestBet {
			return false
		}
		acting++
	}
	return t.Acted >= acting
}

func (t *Table) advance(eff *Effect) {
	t.returnUncalled(eff)

	for _, p := range t.Players {
		p.CurrentBet = 0
	}
	t.HighestBet = 0
	t.Acted = 0

	switch t.Phase {
	case PhasePreflop:
		t.Phase = PhaseFlop
	case PhaseFlop:
		t.Phase = PhaseTurn
	case PhaseTurn:
		t.Phase = PhaseRiver
	default:
		t.Phase = PhaseShowdown
		t.showdown(eff)
		return
	}

	t.AwaitingBoard = t.Phase.boardCards()
	eff.BoardNeeded = t.AwaitingBoard
}

// returnUncalled gives back the part of a bet nobody could match.
func (t *Table) returnUncalled(eff *Effect) {
	var top, second *Player
	for _, p := range t.Players {
		if !p.contending() {
			continue
		}
		switch {
		case top == nil || p.CurrentBet > top.CurrentBet:
			second = top
			top = p
		case second == nil || p.CurrentBet > second.CurrentBet:
			second = p
		}
	}
	if top == nil || second == nil || top.CurrentBet <= second.CurrentBet {
		return
	}

	excess := top.CurrentBet - second.CurrentBet
	top.Chips += excess
	top.CurrentBet -= excess
	top.TotalBet -= excess
	top.AllIn = false
	t.Pot -= excess
	eff.event("%d uncalled returned to %s", excess, top.Name)
}

func (t *Table) foldOut(eff *Effect) {
	for _, p := range t.Players {
		if p.contending() {
			p.Chips += t.Pot
			eff.Winners = []string{p.ID}
			eff.event("everyone else folded, %s wins %d", p.Name, t.Pot)
			break
		}
	}
	t.finish(eff)
}

func (t *Table) finish(eff *Effect) {
	t.InProgress = false
	t.Pot = 0
	t.HighestBet = 0
	t.AwaitingBoard = 0
	t.Acted = 0
	for _, p := range t.Players {
		p.CurrentBet = 0
	}

	t.Players = slices.DeleteFunc(
		t.Players,
		func(p *Player) bool {
			if p.Left {
				t.park(p)
			}
			return p.Left
		},
	)

	eff.RoundOver = true
}
