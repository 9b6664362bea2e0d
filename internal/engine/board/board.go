// Package board implements the per-seat falling-block engine: a fixed grid, one falling
// three-block piece, and the commit cascade that resolves matches after every landing.
package board

import "errors"

// Errors returned by Board operations
var (
	ErrGameOver     = errors.New("board is game over")
	ErrPieceActive  = errors.New("a piece is already falling")
	ErrSpawnBlocked = errors.New("spawn cells are occupied")
)

// Config sizes the board and selects the match rules
type Config struct {
	HiddenRows  int
	VisibleRows int
	Cols        int
	SpawnCol    int
	Rules       Rules
}

// DefaultConfig returns the standard 6-wide board with 13 visible rows and 3 hidden rows above them
func DefaultConfig() Config {
	return Config{
		HiddenRows:  3,
		VisibleRows: 13,
		Cols:        6,
		SpawnCol:    2,
		Rules:       DefaultRules(),
	}
}

// Rows returns the total number of rows including the hidden ones
func (c Config) Rows() int { return c.HiddenRows + c.VisibleRows }

// ClearedSink receives each powered block removed from the board
type ClearedSink interface {
	BlockCleared(b Block)
}

// PowerManager decorates landing blocks with powers and observes every removal
type PowerManager interface {
	Decorate(b Block) Block
	Observe(cleared []Block)
}

// MoveDir is a sideways movement
type MoveDir int

const (
	MoveLeft  MoveDir = -1
	MoveRight MoveDir = 1
)

// CommitResult summarises what happened when a piece landed or a mutation was settled
type CommitResult struct {
	Cleared  int       // blocks removed across all cascade steps
	Chains   int       // number of cascade steps that removed something
	Banked   int       // powered blocks handed to the sink
	Specials []Special // diamonds that landed, in landing order
}

// StepResult is returned from Tick and Drop
type StepResult struct {
	Moved     bool
	Committed bool
	Commit    CommitResult
}

// Board is one seat's playfield. It is not safe for concurrent use.
type Board struct {
	cfg    Config
	grid   Grid
	piece  *Piece
	row    int // row of the piece's top block
	col    int
	sink   ClearedSink
	powers PowerManager
	over   bool
}

// New creates an empty board. sink and powers may be nil.
func New(cfg Config, sink ClearedSink, powers PowerManager) *Board {
	return &Board{
		cfg:    cfg,
		grid:   NewGrid(cfg.Rows(), cfg.Cols),
		sink:   sink,
		powers: powers,
	}
}

// Config returns the board configuration
func (b *Board) Config() Config { return b.cfg }

// Grid returns a copy of the settled blocks
func (b *Board) Grid() Grid { return b.grid.Clone() }

// IsOver reports whether this board has topped out
func (b *Board) IsOver() bool { return b.over }

// Piece returns the falling piece and the position of its top block
func (b *Board) Piece() (Piece, Pos, bool) {
	if b.piece == nil {
		return Piece{}, Pos{}, false
	}
	return *b.piece, Pos{b.row, b.col}, true
}

// Load replaces the settled blocks; the grid must match the configured size
func (b *Board) Load(g Grid) error {
	if g.rows != b.cfg.Rows() || g.cols != b.cfg.Cols {
		return errors.New("grid size does not match board")
	}
	b.grid = g.Clone()
	return nil
}

// Spawn places p at the spawn column in the top rows. If those cells are occupied
// the board is over and ErrSpawnBlocked is returned.
func (b *Board) Spawn(p Piece) error {
	if b.over {
		return ErrGameOver
	}
	if b.piece != nil {
		return ErrPieceActive
	}
	if b.collides(0, b.cfg.SpawnCol) {
		b.over = true
		return ErrSpawnBlocked
	}
	b.piece = &p
	b.row = 0
	b.col = b.cfg.SpawnCol
	return nil
}

// Move shifts the piece one column; it is a no-op returning false when blocked
func (b *Board) Move(dir MoveDir) bool {
	if b.piece == nil || b.over {
		return false
	}
	col := b.col + int(dir)
	if b.collides(b.row, col) {
		return false
	}
	b.col = col
	return true
}

// Cycle rotates the order of the piece's blocks
func (b *Board) Cycle() bool {
	if b.piece == nil || b.over {
		return false
	}
	b.piece.Cycle()
	return true
}

// Tick advances the piece one row, committing it when it cannot fall further
func (b *Board) Tick() StepResult {
	if b.piece == nil || b.over {
		return StepResult{}
	}
	if !b.collides(b.row+1, b.col) {
		b.row++
		return StepResult{Moved: true}
	}
	return StepResult{Committed: true, Commit: b.commit()}
}

// Drop moves the piece straight down as far as it goes and commits it
func (b *Board) Drop() StepResult {
	if b.piece == nil || b.over {
		return StepResult{}
	}
	moved := false
	for !b.collides(b.row+1, b.col) {
		b.row++
		moved = true
	}
	return StepResult{Moved: moved, Committed: true, Commit: b.commit()}
}

// Mutate applies an external change to the settled blocks, such as an opponent's attack.
// fn receives a private copy and reports whether blocks were pushed off the top.
// The result is collapsed and cascaded, and the falling piece is pushed upward out of
// any blocks that now overlap it; if it cannot be, the board is over.
func (b *Board) Mutate(fn func(g Grid) (Grid, bool)) CommitResult {
	if b.over {
		return CommitResult{}
	}
	g, overflow := fn(b.grid.Clone())
	b.grid = Collapse(g)
	if overflow {
		b.over = true
		b.piece = nil
		return CommitResult{}
	}
	res := b.cascade()
	b.reseat()
	return res
}

// commit writes the piece into the grid and resolves specials and matches
func (b *Board) commit() CommitResult {
	p := *b.piece
	b.piece = nil

	var landed []Pos
	for i, blk := range p.Blocks {
		if blk.IsLetter() && b.powers != nil {
			blk = b.powers.Decorate(blk)
		}
		b.grid.Set(b.row+i, b.col, blk)
		landed = append(landed, Pos{b.row + i, b.col})
	}

	var res CommitResult
	b.resolveSpecials(landed, &res)
	b.grid = Collapse(b.grid)

	c := b.cascade()
	res.Cleared += c.Cleared
	res.Chains += c.Chains
	res.Banked += c.Banked
	return res
}

// resolveSpecials applies Medusa, Midas and diamond blocks that just landed
func (b *Board) resolveSpecials(landed []Pos, res *CommitResult) {
	marks := NewMarks(b.grid)
	midas := false
	for _, p := range landed {
		switch blk := b.grid.At(p.Row, p.Col); blk.Kind {
		case KindMedusa:
			b.grid.Set(p.Row, p.Col, Stone())
			for _, d := range []Pos{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				r, c := p.Row+d.Row, p.Col+d.Col
				if b.grid.At(r, c).IsLetter() {
					b.grid.Set(r, c, Stone())
				}
			}
		case KindMidas:
			midas = true
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if b.grid.InBounds(p.Row+dr, p.Col+dc) {
						marks.Mark(p.Row+dr, p.Col+dc)
					}
				}
			}
		case KindDiamond:
			res.Specials = append(res.Specials, blk.Special)
			b.grid.Set(p.Row, p.Col, Block{})
		}
	}
	if midas {
		var removed []Block
		b.grid, removed = RemoveMarked(b.grid, marks)
		b.bank(removed, res)
	}
}

// cascade removes matches and collapses until the grid is stable
func (b *Board) cascade() CommitResult {
	var res CommitResult
	for {
		marks := MarkMatches(b.grid, b.cfg.Rules)
		if marks.Count() == 0 {
			return res
		}
		var removed []Block
		b.grid, removed = RemoveMarked(b.grid, marks)
		b.bank(removed, &res)
		res.Chains++
		b.grid = Collapse(b.grid)
	}
}

func (b *Board) bank(removed []Block, res *CommitResult) {
	res.Cleared += len(removed)
	for _, blk := range removed {
		if blk.IsPowered() && b.sink != nil {
			b.sink.BlockCleared(blk)
			res.Banked++
		}
	}
	if b.powers != nil && len(removed) > 0 {
		b.powers.Observe(removed)
	}
}

// reseat moves an overlapping piece upward, ending the game if it does not fit
func (b *Board) reseat() {
	if b.piece == nil {
		return
	}
	for b.collides(b.row, b.col) {
		if b.row == 0 {
			b.over = true
			b.piece = nil
			return
		}
		b.row--
	}
}

// collides reports whether the piece would overlap a wall, the floor or a settled block with its top at (row, col)
func (b *Board) collides(row, col int) bool {
	for i := 0; i < PieceSize; i++ {
		r := row + i
		if !b.grid.InBounds(r, col) {
			return true
		}
		if !b.grid.At(r, col).IsEmpty() {
			return true
		}
	}
	return false
}
