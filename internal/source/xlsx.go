package source

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Workbook wraps a spreadsheet file whose named sheets each feed one
// entity type.
type Workbook struct {
	path string
	f    *excelize.File
	log  *logrus.Logger
}

func OpenWorkbook(path string, log *logrus.Logger) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Workbook{path: path, f: f, log: log}, nil
}

func (w *Workbook) Sheets() []string {
	return w.f.GetSheetList()
}

// Sheet materializes a named sheet as a record reader. The first row is
// the header; rows shorter than the header read as missing columns.
func (w *Workbook) Sheet(name string) (Reader, error) {
	rows, err := w.f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("%s: sheet %q: %w", w.path, name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %q: missing header", w.path, name)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	return &sheetReader{header: header, rows: rows[1:]}, nil
}

func (w *Workbook) Close() error {
	return w.f.Close()
}

type sheetReader struct {
	header []string
	rows   [][]string
	pos    int
}

func (s *sheetReader) Header() []string { return s.header }

func (s *sheetReader) Next() (Record, bool, error) {
	for s.pos < len(s.rows) {
		row := s.rows[s.pos]
		s.pos++
		if emptyRow(row) {
			continue
		}
		fields := make(map[string]string, len(s.header))
		for i, name := range s.header {
			if i < len(row) {
				fields[name] = row[i]
			}
		}
		// header row is line 1
		return NewRecord(s.pos+1, fields), true, nil
	}
	return Record{}, false, nil
}

func (s *sheetReader) Close() error { return nil }
