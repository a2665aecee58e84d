package source

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// CSVReader streams records from a delimited file with a header row.
// Malformed rows (unbalanced quoting, stray separators) are skipped with
// a warning rather than aborting the read.
type CSVReader struct {
	path   string
	file   *os.File
	r      *csv.Reader
	header []string
	line   int
	log    *logrus.Logger
}

func OpenCSV(path string, log *logrus.Logger) (*CSVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	stripUTF8BOM(br)

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("%s: missing header", path)
		}
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	return &CSVReader{
		path:   path,
		file:   f,
		r:      r,
		header: header,
		line:   1,
		log:    log,
	}, nil
}

func stripUTF8BOM(r *bufio.Reader) {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
}

func (c *CSVReader) Header() []string { return c.header }

func (c *CSVReader) Next() (Record, bool, error) {
	for {
		c.line++
		row, err := c.r.Read()
		if err == io.EOF {
			return Record{}, false, nil
		}
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"file": c.path,
				"line": c.line,
			}).Warnf("skipping malformed row: %v", err)
			continue
		}
		if emptyRow(row) {
			continue
		}

		fields := make(map[string]string, len(c.header))
		for i, name := range c.header {
			if i < len(row) {
				fields[name] = row[i]
			}
		}
		return NewRecord(c.line, fields), true, nil
	}
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (c *CSVReader) Close() error {
	return c.file.Close()
}
