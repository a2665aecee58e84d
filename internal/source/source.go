// Package source streams rows from delimited and spreadsheet files as
// loosely-typed records. Sources vary per export; missing columns are a
// normal condition handled downstream by the mapper.
package source

import "strings"

// Record is one row of a tabular source: column name -> raw value.
// Column order is carried by the reader's Header; records are immutable
// once emitted.
type Record struct {
	// Line is the 1-based position in the source, header included.
	Line   int
	fields map[string]string
}

func NewRecord(line int, fields map[string]string) Record {
	return Record{Line: line, fields: fields}
}

// Get returns the trimmed value of the first column name that is present
// and non-blank. Unknown columns read as empty.
func (r Record) Get(names ...string) string {
	for _, name := range names {
		if v, ok := r.fields[name]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// Has reports whether any of the named columns exists in the source row,
// blank or not.
func (r Record) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := r.fields[name]; ok {
			return true
		}
	}
	return false
}

// Reader is a finite, ordered sequence of records. Re-opening the source
// restarts the sequence.
type Reader interface {
	Header() []string
	// Next returns the next record, or ok=false at end of input.
	Next() (Record, bool, error)
	Close() error
}

// ReadAll materializes the remaining records. Acceptable for the bounded
// source sizes this tool handles.
func ReadAll(r Reader) ([]Record, error) {
	var out []Record
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}
