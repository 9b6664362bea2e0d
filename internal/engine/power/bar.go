// Package power holds a seat's power bar, the charger that decides which landing blocks
// become powered, and the effects a fired power has on a target board.
package power

import (
	"github.com/mcoot/towers-go/internal/engine/board"
	"github.com/mcoot/towers-go/internal/model"
)

// MaxItems is the capacity of a power bar
const MaxItems = 8

// Bar is the bounded queue of powered blocks a seat has collected.
// It implements board.ClearedSink so a board can bank cleared powers directly.
type Bar struct {
	items []board.Block
}

var _ board.ClearedSink = (*Bar)(nil)

// NewBar returns an empty bar
func NewBar() *Bar {
	return &Bar{items: make([]board.Block, 0, MaxItems)}
}

// BlockCleared adds a cleared powered block, discarding the oldest item when full
func (b *Bar) BlockCleared(blk board.Block) {
	if !blk.IsPowered() {
		return
	}
	b.items = append(b.items, blk)
	if len(b.items) > MaxItems {
		b.items = b.items[len(b.items)-MaxItems:]
	}
}

// Fire removes and returns the item at index
func (b *Bar) Fire(index int) (board.Block, error) {
	if index < 0 || index >= len(b.items) {
		return board.Block{}, model.ErrPowerIndex
	}
	item := b.items[index]
	b.items = append(b.items[:index], b.items[index+1:]...)
	return item, nil
}

// Items returns a copy of the bar contents, oldest first
func (b *Bar) Items() []board.Block {
	return append([]board.Block(nil), b.items...)
}

// Len returns the number of items held
func (b *Bar) Len() int { return len(b.items) }

// Clear empties the bar
func (b *Bar) Clear() { b.items = b.items[:0] }

// View returns the wire form of the bar
func (b *Bar) View() []board.BlockView {
	out := make([]board.BlockView, 0, len(b.items))
	for _, blk := range b.items {
		out = append(out, *board.ViewOf(blk))
	}
	return out
}
