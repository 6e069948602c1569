package database

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/papapumpkin/caldera/internal/fault"
)

// table is a CSV file addressed by header name.
type table struct {
	path   string
	cols   map[string]int
	rows   [][]string
	errs   []error
	cursor int
}

// readTable loads a headed CSV file. Header names are matched case-insensitively.
func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.ErrConfiguration, "read "+path, err)
	}
	defer f.Close()
	return parseTable(path, f)
}

func parseTable(path string, r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fault.Wrap(fault.ErrConfiguration, "read "+path, err)
	}
	if len(records) == 0 {
		return nil, fault.Newf(fault.ErrConfiguration, "read "+path, "no header row")
	}
	t := &table{path: path, cols: make(map[string]int, len(records[0])), rows: records[1:]}
	for i, name := range records[0] {
		t.cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return t, nil
}

// require fails unless every named column is present.
func (t *table) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := t.cols[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fault.Newf(fault.ErrConfiguration, "read "+t.path, "missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

// next advances to the following row.
func (t *table) next() bool {
	if t.cursor >= len(t.rows) {
		return false
	}
	t.cursor++
	return true
}

// str returns a column of the current row, or "" if the column is absent.
func (t *table) str(name string) string {
	i, ok := t.cols[name]
	row := t.rows[t.cursor-1]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// opt is str with "-" read as empty.
func (t *table) opt(name string) string {
	if s := t.str(name); s != "-" {
		return s
	}
	return ""
}

// num parses a column of the current row. Empty cells read as zero and "-"
// as NaN; anything unparseable is recorded and reported by err.
func (t *table) num(name string) float64 {
	s := t.str(name)
	switch s {
	case "":
		return 0
	case "-":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.errs = append(t.errs, fmt.Errorf("line %d column %s: %q is not a number", t.cursor+1, name, s))
		return 0
	}
	return v
}

// err returns every parse failure seen so far.
func (t *table) err() error {
	if len(t.errs) == 0 {
		return nil
	}
	return fault.Wrap(fault.ErrConfiguration, "read "+t.path, errors.Join(t.errs...))
}
