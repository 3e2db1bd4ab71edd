package validator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseFloatLocale parses a decimal cell that may use a comma separator.
// Returns nil when the cell is empty or not a finite number.
func ParseFloatLocale(cell string) *float64 {
	value := strings.Replace(strings.TrimSpace(cell), ",", ".", 1)
	if value == "" || isHexFloat(value) {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// isHexFloat matches the 0x forms strconv accepts but a decimal cell never holds
func isHexFloat(value string) bool {
	value = strings.TrimLeft(value, "+-")
	return len(value) > 1 && value[0] == '0' && (value[1] == 'x' || value[1] == 'X')
}

// ParseIntStrict parses a base-10 integer cell
func ParseIntStrict(cell string) *int64 {
	value := strings.TrimSpace(cell)
	if value == "" {
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// ParseBool reports whether the cell holds the spreadsheet TRUE literal
func ParseBool(cell string) bool {
	return strings.EqualFold(strings.TrimSpace(cell), "TRUE")
}

// Schema describes the positional layout of one spreadsheet tab
type Schema struct {
	Name     string
	Version  int
	Columns  []string
	Required int
}

// Width is the number of columns a normalized row carries
func (s Schema) Width() int {
	return len(s.Columns)
}

// Index returns the position of a named column, or -1
func (s Schema) Index(column string) int {
	for i, c := range s.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Row is a normalized spreadsheet row bound to its schema
type Row struct {
	schema Schema
	cells  []string
	Number int
}

// Cell returns the trimmed value of a named column
func (r Row) Cell(column string) string {
	return strings.TrimSpace(r.RawCell(column))
}

// RawCell returns the value of a named column as the source sent it.
// Identifiers are read this way so they compare byte for byte with the store.
func (r Row) RawCell(column string) string {
	i := r.schema.Index(column)
	if i < 0 || i >= len(r.cells) {
		return ""
	}
	return r.cells[i]
}

// RowError reports a spreadsheet row rejected during normalization
type RowError struct {
	Sheet  string
	Number int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("sheet %s row %d rejected: %s", e.Sheet, e.Number, e.Reason)
}

// Normalize validates raw rows against the schema. Rows shorter than the
// required width are rejected; trailing cells dropped by the source are padded.
// Number is the 1-based position of the row within the fetched range.
func (s Schema) Normalize(raw [][]string) ([]Row, []*RowError) {
	rows := make([]Row, 0, len(raw))
	var rejected []*RowError

	for i, cells := range raw {
		number := i + 1
		if isBlank(cells) {
			continue
		}
		if len(cells) < s.Required {
			rejected = append(rejected, &RowError{
				Sheet:  s.Name,
				Number: number,
				Reason: fmt.Sprintf("expected at least %d columns, got %d", s.Required, len(cells)),
			})
			continue
		}
		if len(cells) > s.Width() {
			rejected = append(rejected, &RowError{
				Sheet:  s.Name,
				Number: number,
				Reason: fmt.Sprintf("expected at most %d columns, got %d (schema v%d)", s.Width(), len(cells), s.Version),
			})
			continue
		}

		padded := make([]string, s.Width())
		copy(padded, cells)
		rows = append(rows, Row{schema: s, cells: padded, Number: number})
	}

	return rows, rejected
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
