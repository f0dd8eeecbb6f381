package listview

import (
	"encoding/csv"
	"io"
)

// Row is one exported record; Values must align with the header.
type Row interface {
	CSVRecord() []string
}

func WriteCSV[T Row](w io.Writer, header []string, rows []T) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.CSVRecord()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
