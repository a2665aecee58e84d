package importer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/areluna/finimport/internal/entity"
	"github.com/areluna/finimport/internal/source"
)

// SourceSet hands out one reader per entity kind. ok=false means the set
// simply has no data for that kind, which skips the pass.
type SourceSet interface {
	Open(kind entity.Kind) (r source.Reader, ok bool, err error)
	Close() error
}

// DirSet reads a directory holding clients.csv, contracts.csv and
// payments.csv; any of the three may be absent.
type DirSet struct {
	dir string
	log *logrus.Logger
}

func NewDirSet(dir string, log *logrus.Logger) *DirSet {
	return &DirSet{dir: dir, log: log}
}

func (d *DirSet) Open(kind entity.Kind) (source.Reader, bool, error) {
	path := filepath.Join(d.dir, string(kind)+".csv")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	r, err := source.OpenCSV(path, d.log)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (d *DirSet) Close() error { return nil }

// Sheet-name fragments per entity kind; exported workbooks use either
// destination names or Portuguese ones.
var sheetHints = map[entity.Kind][]string{
	entity.KindClient:   {"client", "cliente", "aluno"},
	entity.KindContract: {"contract", "contrato"},
	entity.KindPayment:  {"payment", "pagamento", "parcela", "mensalidade"},
}

// WorkbookSet reads a spreadsheet whose sheets are matched to entity
// kinds by name.
type WorkbookSet struct {
	wb  *source.Workbook
	log *logrus.Logger
}

func NewWorkbookSet(path string, log *logrus.Logger) (*WorkbookSet, error) {
	wb, err := source.OpenWorkbook(path, log)
	if err != nil {
		return nil, err
	}
	return &WorkbookSet{wb: wb, log: log}, nil
}

func (w *WorkbookSet) Open(kind entity.Kind) (source.Reader, bool, error) {
	name, ok := w.matchSheet(kind)
	if !ok {
		return nil, false, nil
	}
	r, err := w.wb.Sheet(name)
	if err != nil {
		return nil, false, err
	}
	w.log.WithFields(logrus.Fields{
		"sheet":  name,
		"entity": string(kind),
	}).Info("sheet matched")
	return r, true, nil
}

func (w *WorkbookSet) matchSheet(kind entity.Kind) (string, bool) {
	for _, name := range w.wb.Sheets() {
		lower := strings.ToLower(name)
		for _, hint := range sheetHints[kind] {
			if strings.Contains(lower, hint) {
				return name, true
			}
		}
	}
	return "", false
}

func (w *WorkbookSet) Close() error { return w.wb.Close() }
