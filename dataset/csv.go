package dataset

import (
	"encoding/csv"
	"os"

	"github.com/habitatlab/sdmgo/pkg/errors"
)

// ReadCSV loads a table from a headered CSV file. The file's base name is
// not used; name labels the table in schema-violation messages.
func ReadCSV(path, name string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "ReadCSV: "+path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = false

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "ReadCSV: "+path)
	}
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "ReadCSV: "+path)
	}

	return NewTable(name, records[0], records[1:])
}
