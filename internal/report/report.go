// Package report keeps the per-file results shown to the user and exports
// them as CSV.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"sync"

	"dorsal/internal/processor"
	"dorsal/pkg/imgutil"
)

var csvHeader = []string{"Archivo", "Número", "Confianza"}

// Table holds one row per file name. A later result for the same name
// replaces the earlier one but keeps its position.
type Table struct {
	mu    sync.Mutex
	order []string
	rows  map[string]processor.DetectionResult
}

func NewTable() *Table {
	return &Table{rows: map[string]processor.DetectionResult{}}
}

func (t *Table) Add(res processor.DetectionResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name := res.Job.Name
	if _, ok := t.rows[name]; !ok {
		t.order = append(t.order, name)
	}
	t.rows[name] = res
}

func (t *Table) Rows() []processor.DetectionResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]processor.DetectionResult, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.rows[name])
	}
	return out
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = nil
	t.rows = map[string]processor.DetectionResult{}
}

type Counts struct {
	Files       int
	WithNumbers int
	Empty       int
	Failed      int
}

func (t *Table) Counts() Counts {
	var c Counts
	for _, res := range t.Rows() {
		c.Files++
		switch {
		case !res.Success():
			c.Failed++
		case len(res.Numbers) == 0:
			c.Empty++
		default:
			c.WithNumbers++
		}
	}
	return c
}

// NumbersText joins the sorted numbers with "-".
func NumbersText(res processor.DetectionResult) string {
	nums := res.SortedNumbers()
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "-")
}

// WriteCSV writes every row. Failed rows carry an empty number column.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, res := range t.Rows() {
		numbers := ""
		if res.Success() {
			numbers = NumbersText(res)
		}
		if err := cw.Write([]string{res.Job.Name, numbers, ""}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to path, replacing any existing file whole.
func (t *Table) SaveCSV(path string) error {
	return imgutil.WriteAtomic(path, 0o644, t.WriteCSV)
}
