package feed

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// ReadCSV reads a feed file and returns the header row and data rows.
// Rows may have a variable number of fields; short rows are padded by MapRows
// treating missing cells as absent.
func ReadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "feed: open csv %s", path)
	}
	defer f.Close()

	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, eris.New("feed: csv is empty")
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "feed: read csv header")
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrap(err, "feed: read csv row")
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
