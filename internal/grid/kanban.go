package grid

import (
	"fmt"
	"sort"

	"taskdeck/internal/query"
	"taskdeck/internal/term"
)

// Lane is one kanban column: every row whose group field carries the same
// value, in result order.
type Lane struct {
	Value string
	Cards []query.Row
}

// kanbanState tracks lane focus and an in-transit card. The selected card
// is remembered by entity key so it survives rebuilds after a move.
type kanbanState struct {
	field string
	lanes []Lane

	laneIdx int
	cardIdx int

	// picked is the key of the card lifted with Space, "" when none.
	picked     string
	pickedFrom int
}

const noLaneLabel = "(none)"

// rebuildLanes partitions the filtered rows by the group field. Lane order
// is stable: lanes appear in the order their first card does, with the
// unset lane first when present.
func (g *Grid) rebuildLanes() {
	k := g.kanban
	if k == nil {
		return
	}
	prevKey := k.selectedKey()

	index := map[string]int{}
	lanes := []Lane{}
	for _, row := range g.rows {
		v, _ := row.Entity.Field(k.field)
		label := v
		if label == "" {
			label = noLaneLabel
		}
		i, ok := index[label]
		if !ok {
			i = len(lanes)
			index[label] = i
			lanes = append(lanes, Lane{Value: label})
		}
		lanes[i].Cards = append(lanes[i].Cards, row)
	}
	// Unset lane always leftmost.
	sort.SliceStable(lanes, func(i, j int) bool {
		return lanes[i].Value == noLaneLabel && lanes[j].Value != noLaneLabel
	})
	k.lanes = lanes
	k.focusKey(prevKey)
}

// selectedKey is the stable identity of the focused card.
func (k *kanbanState) selectedKey() string {
	if k.laneIdx < 0 || k.laneIdx >= len(k.lanes) {
		return ""
	}
	lane := k.lanes[k.laneIdx]
	if k.cardIdx < 0 || k.cardIdx >= len(lane.Cards) {
		return ""
	}
	return lane.Cards[k.cardIdx].Entity.Key()
}

// focusKey restores focus onto a card by key, clamping when it is gone.
func (k *kanbanState) focusKey(key string) {
	if key != "" {
		for li, lane := range k.lanes {
			for ci, card := range lane.Cards {
				if card.Entity.Key() == key {
					k.laneIdx, k.cardIdx = li, ci
					return
				}
			}
		}
	}
	k.clamp()
}

func (k *kanbanState) clamp() {
	if len(k.lanes) == 0 {
		k.laneIdx, k.cardIdx = 0, 0
		return
	}
	if k.laneIdx < 0 {
		k.laneIdx = 0
	}
	if k.laneIdx >= len(k.lanes) {
		k.laneIdx = len(k.lanes) - 1
	}
	n := len(k.lanes[k.laneIdx].Cards)
	if k.cardIdx >= n {
		k.cardIdx = n - 1
	}
	if k.cardIdx < 0 {
		k.cardIdx = 0
	}
}

func (g *Grid) handleKanbanKey(k term.Key) bool {
	kb := g.kanban
	switch {
	case k.Code == term.KeyCtrlC:
		return true
	case k.Code == term.KeyRune && (k.Rune == 'q' || k.Rune == 'Q'):
		return true
	case k.Code == term.KeyEscape:
		if kb.picked != "" {
			// Cancel the move: focus returns to the card where it sits.
			kb.focusKey(kb.picked)
			kb.picked = ""
			return false
		}
		return true

	case k.Code == term.KeyRune && (k.Rune == '?' || k.Rune == 'h'):
		g.showHelp = true

	case k.Code == term.KeyLeft:
		kb.laneIdx--
		kb.clamp()
	case k.Code == term.KeyRight:
		kb.laneIdx++
		kb.clamp()
	case k.Code == term.KeyUp:
		kb.cardIdx--
		kb.clamp()
	case k.Code == term.KeyDown:
		kb.cardIdx++
		kb.clamp()
	case k.Code == term.KeyHome:
		kb.cardIdx = 0
		kb.clamp()
	case k.Code == term.KeyEnd:
		if len(kb.lanes) > 0 {
			kb.cardIdx = len(kb.lanes[kb.laneIdx].Cards) - 1
		}
		kb.clamp()

	case k.Code == term.KeySpace, k.Code == term.KeyEnter:
		if kb.picked == "" {
			if k.Code == term.KeySpace {
				g.pickUpCard()
			}
		} else {
			g.dropCard()
		}

	case k.Code == term.KeyF6:
		g.saveView()
	case k.Code == term.KeyF7:
		g.loadView()
	case k.Code == term.KeyF8:
		g.listViews()
	}
	return false
}

// pickUpCard lifts the focused card; arrows then choose the target lane.
func (g *Grid) pickUpCard() {
	kb := g.kanban
	key := kb.selectedKey()
	if key == "" {
		return
	}
	kb.picked = key
	kb.pickedFrom = kb.laneIdx
}

// dropCard commits the move: the picked card takes the focused lane's
// group value, written through the DataStore, and lands at the slot the
// arrows chose. The rebuild restores result order, so the card is spliced
// back to the chosen position afterward; the in-memory order holds until
// the next requery.
func (g *Grid) dropCard() {
	kb := g.kanban
	if kb.laneIdx < 0 || kb.laneIdx >= len(kb.lanes) {
		return
	}
	target := kb.lanes[kb.laneIdx].Value
	value := target
	if value == noLaneLabel {
		value = ""
	}
	key := kb.picked
	pos := kb.cardIdx
	kb.picked = ""

	if kb.laneIdx == kb.pickedFrom {
		return // dropped back where it came from
	}
	if err := g.opt.Store.MoveGroupField(g.opt.Domain, key, kb.field, value); err != nil {
		g.setError(fmt.Sprintf("move failed: %v", err))
		return
	}
	g.refresh()
	kb.placeCard(key, pos)
	g.statusMsg = fmt.Sprintf("moved to %s", target)
}

// placeCard splices the card with the given key to position pos within the
// lane it now lives in, and focuses it there.
func (k *kanbanState) placeCard(key string, pos int) {
	k.focusKey(key)
	if k.selectedKey() != key {
		return // card vanished on requery
	}
	lane := &k.lanes[k.laneIdx]
	card := lane.Cards[k.cardIdx]
	lane.Cards = append(lane.Cards[:k.cardIdx], lane.Cards[k.cardIdx+1:]...)
	if pos < 0 {
		pos = 0
	}
	if pos > len(lane.Cards) {
		pos = len(lane.Cards)
	}
	lane.Cards = append(lane.Cards[:pos], append([]query.Row{card}, lane.Cards[pos:]...)...)
	k.cardIdx = pos
}
