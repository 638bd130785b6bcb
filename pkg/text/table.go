package text

import (
	"errors"
	"fmt"
)

// ErrInvalidTable is returned when spans do not describe a rectangular grid.
var ErrInvalidTable = errors.New("invalid table")

// Cell is one table cell. Colspan and Rowspan are at least 1.
type Cell struct {
	Content EnrichedString `json:"content"`
	Colspan int            `json:"colspan"`
	Rowspan int            `json:"rowspan"`
}

// Row is an ordered list of cells. Cells covered by a rowspan from an
// earlier row are not repeated.
type Row struct {
	Cells    []Cell `json:"cells"`
	IsHeader bool   `json:"is_header"`
}

// Table is an ordered list of rows.
type Table struct {
	Rows []Row `json:"rows"`
}

// NewCell returns a 1x1 cell holding plain text.
func NewCell(s string) Cell {
	return Cell{Content: NewString(s), Colspan: 1, Rowspan: 1}
}

// Width returns the number of grid columns of the first row, or 0.
func (t *Table) Width() int {
	if len(t.Rows) == 0 {
		return 0
	}
	w := 0
	for _, c := range t.Rows[0].Cells {
		w += c.Colspan
	}
	return w
}

// Validate checks spans and that the slots implied by colspan and rowspan
// tile a rectangle with no overlap.
func (t *Table) Validate() error {
	occupied := make([][]bool, len(t.Rows))
	mark := func(r, c int) bool {
		for len(occupied[r]) <= c {
			occupied[r] = append(occupied[r], false)
		}
		if occupied[r][c] {
			return false
		}
		occupied[r][c] = true
		return true
	}
	isFree := func(r, c int) bool {
		return c >= len(occupied[r]) || !occupied[r][c]
	}

	for r, row := range t.Rows {
		col := 0
		for i, cell := range row.Cells {
			if cell.Colspan < 1 || cell.Rowspan < 1 {
				return fmt.Errorf("%w: row %d cell %d has span %dx%d", ErrInvalidTable, r, i, cell.Colspan, cell.Rowspan)
			}
			if r+cell.Rowspan > len(t.Rows) {
				return fmt.Errorf("%w: row %d cell %d spans past the last row", ErrInvalidTable, r, i)
			}
			for !isFree(r, col) {
				col++
			}
			for dr := 0; dr < cell.Rowspan; dr++ {
				for dc := 0; dc < cell.Colspan; dc++ {
					if !mark(r+dr, col+dc) {
						return fmt.Errorf("%w: row %d cell %d overlaps slot (%d,%d)", ErrInvalidTable, r, i, r+dr, col+dc)
					}
				}
			}
			col += cell.Colspan
			if err := cell.Content.Validate(); err != nil {
				return fmt.Errorf("row %d cell %d: %w", r, i, err)
			}
		}
	}

	width := -1
	for r, slots := range occupied {
		n := 0
		for _, ok := range slots {
			if !ok {
				return fmt.Errorf("%w: row %d has a hole", ErrInvalidTable, r)
			}
			n++
		}
		if width >= 0 && n != width {
			return fmt.Errorf("%w: row %d spans %d columns, expected %d", ErrInvalidTable, r, n, width)
		}
		width = n
	}
	return nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{Rows: make([]Row, len(t.Rows))}
	for i, row := range t.Rows {
		cells := make([]Cell, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = Cell{Content: c.Content.Clone(), Colspan: c.Colspan, Rowspan: c.Rowspan}
		}
		out.Rows[i] = Row{Cells: cells, IsHeader: row.IsHeader}
	}
	return out
}

// RawCell is a cell as seen by a reader that expresses vertical merges as
// continuation markers (word-processor tables) instead of rowspans.
type RawCell struct {
	Content      EnrichedString
	Colspan      int
	Continuation bool
}

// GridBuilder turns rows of RawCells into a Table, absorbing continuation
// cells into the rowspan of the cell above them. Cells live in an arena and
// are addressed by index.
type GridBuilder struct {
	cells      []Cell
	rows       [][]int
	headers    []bool
	prevOwners []int
}

// NewGridBuilder returns an empty builder.
func NewGridBuilder() *GridBuilder {
	return &GridBuilder{}
}

// AddRow appends a row. A continuation cell must sit under a cell of the
// previous row.
func (b *GridBuilder) AddRow(cells []RawCell, header bool) error {
	rowIdx := len(b.rows)
	owners := make([]int, 0, len(cells))
	owned := make([]int, 0, len(cells))

	col := 0
	for i, rc := range cells {
		span := rc.Colspan
		if span < 1 {
			span = 1
		}
		if rc.Continuation {
			if col >= len(b.prevOwners) {
				return fmt.Errorf("%w: row %d cell %d continues a merge with no cell above", ErrInvalidTable, rowIdx, i)
			}
			idx := b.prevOwners[col]
			b.cells[idx].Rowspan++
			for k := 0; k < span; k++ {
				owners = append(owners, idx)
			}
		} else {
			idx := len(b.cells)
			b.cells = append(b.cells, Cell{Content: rc.Content, Colspan: span, Rowspan: 1})
			owned = append(owned, idx)
			for k := 0; k < span; k++ {
				owners = append(owners, idx)
			}
		}
		col += span
	}

	b.rows = append(b.rows, owned)
	b.headers = append(b.headers, header)
	b.prevOwners = owners
	return nil
}

// Table materialises the accumulated rows.
func (b *GridBuilder) Table() *Table {
	t := &Table{Rows: make([]Row, len(b.rows))}
	for r, idxs := range b.rows {
		cells := make([]Cell, len(idxs))
		for j, idx := range idxs {
			cells[j] = b.cells[idx]
		}
		t.Rows[r] = Row{Cells: cells, IsHeader: b.headers[r]}
	}
	return t
}
