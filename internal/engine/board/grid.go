package board

import "fmt"

// Grid is a rows×cols arena of blocks stored row-major in one buffer.
// Row 0 is the top. Grid values are cheap to pass around; use Clone before mutating a shared grid.
type Grid struct {
	rows, cols int
	cells      []Block
}

// Pos addresses a single cell
type Pos struct {
	Row, Col int
}

// NewGrid returns an empty grid
func NewGrid(rows, cols int) Grid {
	return Grid{rows: rows, cols: cols, cells: make([]Block, rows*cols)}
}

// Rows returns the number of rows
func (g Grid) Rows() int { return g.rows }

// Cols returns the number of columns
func (g Grid) Cols() int { return g.cols }

// InBounds reports whether (r, c) addresses a cell
func (g Grid) InBounds(r, c int) bool {
	return r >= 0 && r < g.rows && c >= 0 && c < g.cols
}

// At returns the block at (r, c); out-of-range reads return an empty block
func (g Grid) At(r, c int) Block {
	if !g.InBounds(r, c) {
		return Block{}
	}
	return g.cells[r*g.cols+c]
}

// Set writes the block at (r, c); out-of-range writes are ignored
func (g Grid) Set(r, c int, b Block) {
	if g.InBounds(r, c) {
		g.cells[r*g.cols+c] = b
	}
}

// Row returns a view of row r backed by the grid buffer
func (g Grid) Row(r int) []Block {
	return g.cells[r*g.cols : (r+1)*g.cols]
}

// Clone returns an independent copy
func (g Grid) Clone() Grid {
	c := Grid{rows: g.rows, cols: g.cols, cells: make([]Block, len(g.cells))}
	copy(c.cells, g.cells)
	return c
}

// Count returns how many cells satisfy pred
func (g Grid) Count(pred func(Block) bool) int {
	n := 0
	for _, b := range g.cells {
		if pred(b) {
			n++
		}
	}
	return n
}

// ColumnHeight returns the number of occupied cells in column c
func (g Grid) ColumnHeight(c int) int {
	h := 0
	for r := 0; r < g.rows; r++ {
		if !g.At(r, c).IsEmpty() {
			h++
		}
	}
	return h
}

// Marks flags cells for removal; it shares the grid's row-major indexing
type Marks struct {
	cols  int
	flags []bool
}

// NewMarks returns an empty mark set sized for g
func NewMarks(g Grid) Marks {
	return Marks{cols: g.cols, flags: make([]bool, len(g.cells))}
}

// Mark flags (r, c)
func (m Marks) Mark(r, c int) { m.flags[r*m.cols+c] = true }

// Marked reports whether (r, c) is flagged
func (m Marks) Marked(r, c int) bool { return m.flags[r*m.cols+c] }

// Count returns the number of flagged cells
func (m Marks) Count() int {
	n := 0
	for _, f := range m.flags {
		if f {
			n++
		}
	}
	return n
}

// RemoveMarked empties every marked cell and returns the removed blocks in row-major order
func RemoveMarked(g Grid, m Marks) (Grid, []Block) {
	out := g.Clone()
	var removed []Block
	for i, f := range m.flags {
		if f && !out.cells[i].IsEmpty() {
			removed = append(removed, out.cells[i])
			out.cells[i] = Block{}
		}
	}
	return out, removed
}

// Collapse lets every block fall straight down until it rests on the floor or another block
func Collapse(g Grid) Grid {
	out := NewGrid(g.rows, g.cols)
	for c := 0; c < g.cols; c++ {
		dst := g.rows - 1
		for r := g.rows - 1; r >= 0; r-- {
			if b := g.At(r, c); !b.IsEmpty() {
				out.Set(dst, c, b)
				dst--
			}
		}
	}
	return out
}

// PushRowBottom inserts row at the bottom and shifts everything up one row.
// overflow is true when an occupied cell was pushed off the top.
func PushRowBottom(g Grid, row []Block) (out Grid, overflow bool) {
	out = NewGrid(g.rows, g.cols)
	for c := 0; c < g.cols; c++ {
		if !g.At(0, c).IsEmpty() {
			overflow = true
		}
	}
	copy(out.cells, g.cells[g.cols:])
	copy(out.Row(g.rows-1), row)
	return out, overflow
}

// RemoveRowBottom drops the bottom row, shifting everything down one row
func RemoveRowBottom(g Grid) (Grid, []Block) {
	out := NewGrid(g.rows, g.cols)
	copy(out.cells[g.cols:], g.cells[:len(g.cells)-g.cols])
	removed := append([]Block(nil), g.Row(g.rows-1)...)
	return out, removed
}

// GridFromRows builds a grid from text rows, padding missing top rows with empties.
// '.' is empty, '#' is a stone, '*' a diamond, and any letter of Letters is a plain letter.
func GridFromRows(rows, cols int, lines []string) (Grid, error) {
	g := NewGrid(rows, cols)
	if len(lines) > rows {
		return g, fmt.Errorf("got %d lines for %d rows", len(lines), rows)
	}
	offset := rows - len(lines)
	for i, line := range lines {
		if len(line) != cols {
			return g, fmt.Errorf("line %d has %d cells, want %d", i, len(line), cols)
		}
		for c := 0; c < cols; c++ {
			var b Block
			switch ch := line[c]; ch {
			case '.':
			case '#':
				b = Stone()
			case '*':
				b = Diamond(SpecialNone)
			default:
				b = LetterBlock(ch)
			}
			g.Set(offset+i, c, b)
		}
	}
	return g, nil
}

// String renders the grid in GridFromRows notation
func (g Grid) String() string {
	buf := make([]byte, 0, (g.cols+1)*g.rows)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			b := g.At(r, c)
			switch b.Kind {
			case KindEmpty:
				buf = append(buf, '.')
			case KindStone:
				buf = append(buf, '#')
			case KindLetter:
				buf = append(buf, b.Letter)
			case KindMedusa:
				buf = append(buf, 'm')
			case KindMidas:
				buf = append(buf, 'g')
			default:
				buf = append(buf, '*')
			}
		}
		buf = append(buf, '\n')
	}
	return string(buf)
}
