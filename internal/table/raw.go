package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Options controls how raw sources are read.
type Options struct {
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffed from the file name (',' or '\t').
	Delimiter rune
}

// Raw is the dataset exactly as loaded: a header plus string cells.
// Every row has len(Header) cells. It is never modified after loading.
type Raw struct {
	Name   string
	Header []string
	Rows   [][]string
	// Total counts all data rows seen, including those skipped by MaxRows.
	Total int
	// Overlong counts kept rows that had non-blank cells past the header;
	// those cells are dropped.
	Overlong int
}

// LoadCSV reads a CSV/TSV file into a Raw table.
func LoadCSV(path string, opt Options) (*Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	return ParseCSV(filepath.Base(path), f, opt)
}

// ParseCSV reads CSV content from r. name labels the result.
func ParseCSV(name string, r io.Reader, opt Options) (*Raw, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}

	raw := &Raw{Name: name}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return raw, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	raw.Header = cleanHeader(header)
	if len(raw.Header) == 0 {
		return raw, nil
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", raw.Total+1, err)
		}
		raw.Total++
		if len(raw.Rows) >= maxRows {
			continue
		}
		raw.Rows = append(raw.Rows, raw.fit(rec))
	}
	return raw, nil
}

// LoadXLSX reads one sheet of a workbook. If sheetName is empty the 1-based
// sheetIndex selects the sheet (defaulting to the first).
func LoadXLSX(path, sheetName string, sheetIndex int, opt Options) (*Raw, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Raw{Name: filepath.Base(path)}, nil
	}
	target := ""
	if sheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, sheetName) {
				target = s
				break
			}
		}
		if target == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				sheetName, filepath.Base(path), strings.Join(sheets, ", "))
		}
	} else {
		idx := sheetIndex
		if idx <= 0 {
			idx = 1
		}
		if idx > len(sheets) {
			return nil, fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", idx, len(sheets))
		}
		target = sheets[idx-1]
	}

	rows, err := f.GetRows(target)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", target, err)
	}
	raw := &Raw{Name: filepath.Base(path)}
	if len(rows) == 0 {
		return raw, nil
	}
	raw.Header = cleanHeader(rows[0])
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	for _, rec := range rows[1:] {
		raw.Total++
		if len(raw.Rows) >= maxRows {
			continue
		}
		raw.Rows = append(raw.Rows, raw.fit(rec))
	}
	return raw, nil
}

// Load picks the reader by file extension.
func Load(path string, opt Options) (*Raw, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return LoadXLSX(path, "", 1, opt)
	}
	return LoadCSV(path, opt)
}

// Index returns the position of a header column.
func (r *Raw) Index(name string) (int, bool) {
	for i, h := range r.Header {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

// Require fails with ErrMissingColumns naming every absent column.
func (r *Raw) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := r.Index(c); !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w in %s: %s", ErrMissingColumns, r.Name, strings.Join(missing, ", "))
}

// Truncated reports whether MaxRows dropped rows.
func (r *Raw) Truncated() bool { return r.Total > len(r.Rows) }

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

func cleanHeader(h []string) []string {
	out := make([]string, len(h))
	for i, s := range h {
		s = strings.TrimSpace(s)
		// Excel exports often prefix the first header with a BOM.
		s = strings.TrimPrefix(s, "\ufeff")
		out[i] = s
	}
	return out
}

// fit pads or cuts rec to the header width.
func (r *Raw) fit(rec []string) []string {
	row := make([]string, len(r.Header))
	copy(row, rec)
	for _, extra := range rec[min(len(rec), len(row)):] {
		if strings.TrimSpace(extra) != "" {
			r.Overlong++
			break
		}
	}
	return row
}
