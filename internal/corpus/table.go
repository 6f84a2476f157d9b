package corpus

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"symptomrag/internal/domain"
)

// Table is an entity/feature matrix: Header[0] labels the entity column and
// Header[1:] names the features. Rows are kept as read so that the builder can
// report misaligned rows instead of the reader dropping them.
type Table struct {
	Header []string
	Rows   [][]string
}

// Features returns the feature names (all header columns after the first).
func (t *Table) Features() []string {
	if len(t.Header) == 0 {
		return nil
	}
	return t.Header[1:]
}

// Load reads a table from path, choosing the reader by file extension.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	case ".csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		t, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported table format %q", filepath.Ext(path))
	}
}

// ReadCSV parses comma-separated text with a header row.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	// tolerate a UTF-8 byte order mark
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading rows: %w", err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadXLSX reads the first sheet of a workbook. The workbook reader drops
// trailing empty cells, so short rows are padded with blanks to the header
// width; a blank indicator means absent.
func ReadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: reading sheet %q: %w", path, sheet, err)
	}
	// skip leading empty rows
	for len(rows) > 0 && len(rows[0]) == 0 {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrMissingHeader)
	}
	t := &Table{Header: rows[0]}
	for _, r := range rows[1:] {
		if len(r) == 0 {
			continue
		}
		if pad := len(t.Header) - len(r); pad > 0 {
			r = append(r, make([]string, pad)...)
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}
