package table

import (
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

func (t *Table) Marshal() ([]byte, error) {
	data, err := msgpack.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("table marshal failed, err=%w", err)
	}
	return data, nil
}

// Unmarshal always returns a usable table; on error it is a fresh one.
func Unmarshal(data []byte) (*Table, error) {
	t := New()
	if len(data) == 0 {
		return t, fmt.Errorf("table unmarshal: empty state")
	}

	err := msgpack.Unmarshal(data, t)
	if err != nil {
		return New(), fmt.Errorf("table unmarshal failed, err=%w", err)
	}
	return t, nil
}

// Public is the table without the primary's deck, safe to broadcast.
func (t *Table) Public() *Table {
	c := t.Clone()
	c.Deck = nil
	return c
}

// Reseat opens a fresh table for the players of prev. A hand interrupted by
// a leader failure is void and every bet goes back to its owner.
func Reseat(prev *Table) *Table {
	t := New()
	if prev == nil {
		return t
	}

	t.HandCount = prev.HandCount
	for id, chips := range prev.Parked {
		if t.Parked == nil {
			t.Parked = make(map[string]int64)
		}
		t.Parked[id] = chips
	}

	for _, p := range prev.Players {
		chips := p.Chips
		if prev.InProgress {
			chips += p.TotalBet
		}

		if p.Left {
			if t.Parked == nil {
				t.Parked = make(map[string]int64)
			}
			t.Parked[p.ID] = chips
			continue
		}
		t.Players = append(t.Players, NewPlayer(p.ID, p.Name, chips))
	}
	return t
}

// Rows renders the table for viewer. Other players' hole cards stay hidden
// until a hand ends.
func (t *Table) Rows(viewer string) [][]string {
	rows := [][]string{
		{"Seat", "Player", "Chips", "Bet", "Status", "Cards"},
	}

	current := t.CurrentPlayer()
	for i, p := range t.Players {
		status := "waiting"
		switch {
		case p.Left:
			status = "left"
		case !p.Active:
			status = "spectating"
		case p.Folded:
			status = "folded"
		case p.AllIn:
			status = "all in"
		case current == p:
			status = "to act"
		}

		cards := "-"
		if len(p.Hole) > 0 && (p.ID == viewer || !t.InProgress) {
			cards = FormatCards(p.Hole)
		}

		name := p.Name
		if p.ID == viewer {
			name += " (you)"
		}

		rows = append(
			rows,
			[]string{
				strconv.Itoa(i + 1),
				name,
				strconv.FormatInt(p.Chips, 10),
				strconv.FormatInt(p.CurrentBet, 10),
				status,
				cards,
			},
		)
	}

	return rows
}

func (t *Table) Summary() string {
	if !t.InProgress {
		return fmt.Sprintf("hands played=%d, no hand in progress, board=%s", t.HandCount, FormatCards(t.Community))
	}
	return fmt.Sprintf(
		"hand=%d phase=%s pot=%d bet=%d board=%s",
		t.HandCount,
		t.Phase,
		t.Pot,
		t.HighestBet,
		FormatCards(t.Community),
	)
}
