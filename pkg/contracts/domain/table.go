package domain

// Table is a header row plus already-stringified data rows
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}
