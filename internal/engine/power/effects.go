package power

import (
	"errors"
	"sort"
	"strings"

	"github.com/mcoot/towers-go/internal/dependencies/random"
	"github.com/mcoot/towers-go/internal/engine/board"
)

// ErrNotPowered is returned when a block without a power is fired
var ErrNotPowered = errors.New("block carries no power")

// Target is the seat a fired power lands on
type Target struct {
	Board *board.Board
	Next  *board.NextPieces
	Bar   *Bar
}

// Effect names a letter's attack or defense behaviour; used for chat and logs
func Effect(item board.Block) string {
	attack := item.Power == board.PowerAttack
	switch item.Letter {
	case 'T':
		return pick(attack, "add row", "remove row")
	case 'O':
		return pick(attack, "dither", "clump")
	case 'W':
		return pick(attack, "add stones", "drop stones")
	case 'E':
		return pick(attack, "defuse", "color blast")
	case 'R':
		return pick(attack, "medusa", "midas")
	case 'S':
		return pick(attack, "scramble", "sort")
	}
	return "unknown"
}

// Apply resolves a fired item against target
func Apply(item board.Block, target Target, rnd random.Random) (board.CommitResult, error) {
	if !item.IsPowered() {
		return board.CommitResult{}, ErrNotPowered
	}
	attack := item.Power == board.PowerAttack
	lvl := item.Level

	switch item.Letter {
	case 'R':
		if attack {
			target.Next.PushFront(board.MedusaPiece())
		} else {
			target.Next.PushFront(board.MidasPiece())
		}
		return board.CommitResult{}, nil
	case 'T':
		if attack {
			return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
				return AddRows(g, scale(lvl, 1, 1, 2), rnd)
			}), nil
		}
		return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
			return RemoveRows(g, scale(lvl, 1, 1, 2)), false
		}), nil
	case 'O':
		if attack {
			return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
				return Dither(g, scale(lvl, 2, 4, 8), rnd), false
			}), nil
		}
		return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
			return Clump(g), false
		}), nil
	case 'W':
		if attack {
			return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
				return AddStones(g, scale(lvl, 1, 2, 3))
			}), nil
		}
		return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
			return DropStones(g, scale(lvl, 1, 2, -1)), false
		}), nil
	case 'E':
		if attack {
			return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
				return Defuse(g, scale(lvl, 1, 2, -1), rnd), false
			}), nil
		}
		return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
			return ColorBlast(g), false
		}), nil
	case 'S':
		if attack {
			return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
				return Scramble(g, scale(lvl, 1, 2, 3), rnd), false
			}), nil
		}
		return target.Board.Mutate(func(g board.Grid) (board.Grid, bool) {
			return SortColumns(g), false
		}), nil
	}
	return board.CommitResult{}, ErrNotPowered
}

// AddRows pushes n rows of random letters, each with one gap, in from the bottom
func AddRows(g board.Grid, n int, rnd random.Random) (board.Grid, bool) {
	overflow := false
	for i := 0; i < n; i++ {
		row := make([]board.Block, g.Cols())
		gap := rnd.Intn(g.Cols())
		for c := range row {
			if c != gap {
				row[c] = board.LetterBlock(board.Letters[rnd.Intn(len(board.Letters))])
			}
		}
		var o bool
		g, o = board.PushRowBottom(g, row)
		overflow = overflow || o
	}
	return g, overflow
}

// RemoveRows drops the bottom n rows
func RemoveRows(g board.Grid, n int) board.Grid {
	for i := 0; i < n; i++ {
		g, _ = board.RemoveRowBottom(g)
	}
	return g
}

// Dither swaps n random letters with a horizontal neighbour
func Dither(g board.Grid, n int, rnd random.Random) board.Grid {
	letters := cells(g, board.Block.IsLetter)
	if len(letters) == 0 {
		return g
	}
	for i := 0; i < n; i++ {
		p := letters[rnd.Intn(len(letters))]
		other := p.Col + 1
		if other >= g.Cols() || g.At(p.Row, other).IsEmpty() {
			other = p.Col - 1
		}
		if other < 0 || g.At(p.Row, other).IsEmpty() {
			continue
		}
		a, b := g.At(p.Row, p.Col), g.At(p.Row, other)
		g.Set(p.Row, p.Col, b)
		g.Set(p.Row, other, a)
	}
	return g
}

// Clump reorders the letters in each row so equal letters sit next to each other
func Clump(g board.Grid) board.Grid {
	for r := 0; r < g.Rows(); r++ {
		var pos []board.Pos
		for c := 0; c < g.Cols(); c++ {
			if g.At(r, c).IsLetter() {
				pos = append(pos, board.Pos{Row: r, Col: c})
			}
		}
		sortLetters(g, pos)
	}
	return g
}

// SortColumns reorders the letters in each column so equal letters sit on top of each other
func SortColumns(g board.Grid) board.Grid {
	for c := 0; c < g.Cols(); c++ {
		var pos []board.Pos
		for r := 0; r < g.Rows(); r++ {
			if g.At(r, c).IsLetter() {
				pos = append(pos, board.Pos{Row: r, Col: c})
			}
		}
		sortLetters(g, pos)
	}
	return g
}

// AddStones drops n stones onto the top of every column
func AddStones(g board.Grid, n int) (board.Grid, bool) {
	overflow := false
	for c := 0; c < g.Cols(); c++ {
		h := g.ColumnHeight(c)
		for i := 0; i < n; i++ {
			r := g.Rows() - 1 - h - i
			if r < 0 {
				overflow = true
				break
			}
			g.Set(r, c, board.Stone())
		}
	}
	return g, overflow
}

// DropStones removes up to n stones starting from the bottom; n < 0 removes all
func DropStones(g board.Grid, n int) board.Grid {
	for r := g.Rows() - 1; r >= 0 && n != 0; r-- {
		for c := 0; c < g.Cols() && n != 0; c++ {
			if g.At(r, c).Kind == board.KindStone {
				g.Set(r, c, board.Empty())
				n--
			}
		}
	}
	return g
}

// RemoveStones clears every stone
func RemoveStones(g board.Grid) board.Grid {
	return DropStones(g, -1)
}

// Defuse strips powers from n adjacent columns starting at a random one; n < 0 strips the whole board
func Defuse(g board.Grid, n int, rnd random.Random) board.Grid {
	cols := make(map[int]bool)
	if n < 0 || n >= g.Cols() {
		n = g.Cols()
	}
	start := 0
	if n < g.Cols() {
		start = rnd.Intn(g.Cols())
	}
	for i := 0; i < n; i++ {
		cols[(start+i)%g.Cols()] = true
	}
	for r := 0; r < g.Rows(); r++ {
		for c := range cols {
			g.Set(r, c, g.At(r, c).Defused())
		}
	}
	return g
}

// StripPowers removes every power from the board
func StripPowers(g board.Grid) board.Grid {
	return Defuse(g, -1, nil)
}

// ColorBlast removes every block of the most common letter; ties go to the earlier letter in board.Letters
func ColorBlast(g board.Grid) board.Grid {
	counts := make(map[byte]int)
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if b := g.At(r, c); b.IsLetter() {
				counts[b.Letter]++
			}
		}
	}
	var target byte
	best := 0
	for i := 0; i < len(board.Letters); i++ {
		if n := counts[board.Letters[i]]; n > best {
			best = n
			target = board.Letters[i]
		}
	}
	if best == 0 {
		return g
	}
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if b := g.At(r, c); b.IsLetter() && b.Letter == target {
				g.Set(r, c, board.Empty())
			}
		}
	}
	return g
}

// Scramble shuffles the letters within n randomly chosen occupied rows
func Scramble(g board.Grid, n int, rnd random.Random) board.Grid {
	var rows []int
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if g.At(r, c).IsLetter() {
				rows = append(rows, r)
				break
			}
		}
	}
	for i := 0; i < n && len(rows) > 0; i++ {
		k := rnd.Intn(len(rows))
		r := rows[k]
		rows = append(rows[:k], rows[k+1:]...)

		var pos []board.Pos
		for c := 0; c < g.Cols(); c++ {
			if g.At(r, c).IsLetter() {
				pos = append(pos, board.Pos{Row: r, Col: c})
			}
		}
		for j := len(pos) - 1; j > 0; j-- {
			m := rnd.Intn(j + 1)
			a, b := g.At(pos[j].Row, pos[j].Col), g.At(pos[m].Row, pos[m].Col)
			g.Set(pos[j].Row, pos[j].Col, b)
			g.Set(pos[m].Row, pos[m].Col, a)
		}
	}
	return g
}

func sortLetters(g board.Grid, pos []board.Pos) {
	blocks := make([]board.Block, len(pos))
	for i, p := range pos {
		blocks[i] = g.At(p.Row, p.Col)
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		return strings.IndexByte(board.Letters, blocks[i].Letter) < strings.IndexByte(board.Letters, blocks[j].Letter)
	})
	for i, p := range pos {
		g.Set(p.Row, p.Col, blocks[i])
	}
}

func cells(g board.Grid, pred func(board.Block) bool) []board.Pos {
	var out []board.Pos
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if pred(g.At(r, c)) {
				out = append(out, board.Pos{Row: r, Col: c})
			}
		}
	}
	return out
}

func scale(lvl board.PowerLevel, minor, normal, mega int) int {
	switch lvl {
	case board.LevelMega:
		return mega
	case board.LevelNormal:
		return normal
	default:
		return minor
	}
}

func pick(attack bool, a, d string) string {
	if attack {
		return a
	}
	return d
}
