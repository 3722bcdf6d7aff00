// Package dataset loads the CSV input before any generation is attempted, so
// an unreadable file never reaches the model.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	ErrNotFound = errors.New("dataset not found")
	ErrParse    = errors.New("dataset could not be parsed")
)

// Error carries the offending path and the underlying cause. Kind is one of
// ErrNotFound or ErrParse.
type Error struct {
	Path string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Table is a parsed CSV file. Rows exclude the header.
type Table struct {
	Path    string
	Size    int64
	Columns []string
	Rows    [][]string
}

func (t *Table) RowCount() int {
	return len(t.Rows)
}

// Preflight parses the file at path as comma-separated data with a header row.
func Preflight(path string) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Path: path, Kind: ErrNotFound}
		}
		return nil, &Error{Path: path, Kind: ErrParse, Err: err}
	}
	if info.IsDir() {
		return nil, &Error{Path: path, Kind: ErrNotFound, Err: errors.New("path is a directory")}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Kind: ErrParse, Err: err}
	}
	defer f.Close()

	table, err := Parse(f)
	if err != nil {
		return nil, &Error{Path: path, Kind: ErrParse, Err: err}
	}
	table.Path = path
	table.Size = info.Size()
	return table, nil
}

// Parse reads CSV from r. Rows may have differing field counts; quotes are
// handled leniently. An input with no header is an error.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("no columns to parse from file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if len(header) == 1 && strings.TrimSpace(header[0]) == "" {
		return nil, errors.New("no columns to parse from file")
	}

	t := &Table{Columns: header}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ColumnKind is a coarse type guess for a column.
type ColumnKind string

const (
	KindNumeric ColumnKind = "numeric"
	KindDate    ColumnKind = "date"
	KindText    ColumnKind = "text"
	KindEmpty   ColumnKind = "empty"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ColumnKinds guesses a kind per column from its non-empty values. A column
// is numeric or date only when every non-empty value parses as such.
func (t *Table) ColumnKinds() []ColumnKind {
	kinds := make([]ColumnKind, len(t.Columns))
	for i := range t.Columns {
		numeric, date, seen := true, true, 0
		for _, row := range t.Rows {
			if i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			seen++
			if numeric {
				if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err != nil {
					numeric = false
				}
			}
			if date && !isDate(v) {
				date = false
			}
			if !numeric && !date {
				break
			}
		}
		switch {
		case seen == 0:
			kinds[i] = KindEmpty
		case numeric:
			kinds[i] = KindNumeric
		case date:
			kinds[i] = KindDate
		default:
			kinds[i] = KindText
		}
	}
	return kinds
}

func isDate(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// Summary renders the table shape, column kinds and the first maxRows rows
// as plain text for use as model context.
func (t *Table) Summary(maxRows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %s (%s, %d rows, %d columns)\n",
		t.Path, humanize.Bytes(uint64(max(t.Size, 0))), t.RowCount(), len(t.Columns))

	b.WriteString("Columns:\n")
	for i, kind := range t.ColumnKinds() {
		fmt.Fprintf(&b, "- %s (%s)\n", t.Columns[i], kind)
	}

	if maxRows <= 0 || len(t.Rows) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}
	n := min(maxRows, len(t.Rows))
	fmt.Fprintf(&b, "First %d rows:\n", n)

	var sample bytes.Buffer
	w := csv.NewWriter(&sample)
	_ = w.Write(t.Columns)
	for _, row := range t.Rows[:n] {
		_ = w.Write(row)
	}
	w.Flush()
	b.Write(sample.Bytes())

	return strings.TrimRight(b.String(), "\n")
}
