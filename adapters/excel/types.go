package excel

import "strings"

// rawTable is a sheet as trimmed strings with a header row.
type rawTable struct {
	headers []string
	index   map[string]int
	rows    [][]string
}

func newRawTable(rows [][]string) *rawTable {
	t := &rawTable{index: make(map[string]int)}
	if len(rows) == 0 {
		return t
	}
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		t.headers = append(t.headers, h)
		t.index[h] = i
	}
	t.rows = rows[1:]
	return t
}

// cell returns the trimmed value at (row, column); short rows read as empty.
func (t *rawTable) cell(row int, column string) string {
	j, ok := t.index[column]
	if !ok || j >= len(t.rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.rows[row][j])
}
