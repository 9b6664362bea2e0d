package board

import (
	"github.com/mcoot/towers-go/internal/dependencies/random"
)

// DefaultPreview is the number of upcoming pieces kept visible to the seat
const DefaultPreview = 2

// NextPieces is a seat's queue of upcoming pieces. Injected pieces (Medusa, Midas,
// diamonds) jump the queue; otherwise pieces are drawn at random from Letters.
type NextPieces struct {
	rnd     random.Random
	preview int
	queue   []Piece
}

// NewNextPieces creates a queue that keeps preview pieces ready
func NewNextPieces(rnd random.Random, preview int) *NextPieces {
	if preview < 1 {
		preview = DefaultPreview
	}
	n := &NextPieces{rnd: rnd, preview: preview}
	n.fill()
	return n
}

// Pop removes and returns the next piece
func (n *NextPieces) Pop() Piece {
	n.fill()
	p := n.queue[0]
	n.queue = n.queue[1:]
	n.fill()
	return p
}

// Peek returns a copy of the upcoming pieces, next first
func (n *NextPieces) Peek() []Piece {
	return append([]Piece(nil), n.queue...)
}

// PushFront makes p the next piece to spawn
func (n *NextPieces) PushFront(p Piece) {
	n.queue = append([]Piece{p}, n.queue...)
}

// RandomLetter draws one letter from Letters
func (n *NextPieces) RandomLetter() byte {
	return Letters[n.rnd.Intn(len(Letters))]
}

func (n *NextPieces) fill() {
	for len(n.queue) < n.preview {
		n.queue = append(n.queue, NewLetterPiece(n.RandomLetter(), n.RandomLetter(), n.RandomLetter()))
	}
}
