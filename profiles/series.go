package profiles

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SeriesFormat locates one numeric column in a CSV file.
type SeriesFormat struct {
	SkipRows int    `json:"skip_rows" yaml:"skip_rows"` // Lines before the header, e.g. metadata
	Column   string `json:"column" yaml:"column"`       // Header name; empty selects the last column
}

// ReadSeries reads a single numeric column in file order.
func ReadSeries(r io.Reader, format SeriesFormat) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	for i := 0; i < format.SkipRows; i++ {
		if _, err := cr.Read(); err != nil {
			return nil, fmt.Errorf("failed to skip line %d: %w", i+1, err)
		}
	}
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := len(header) - 1
	if format.Column != "" {
		idx, err := columnIndex(header, format.Column)
		if err != nil {
			return nil, err
		}
		col = idx[format.Column]
	}

	var out []float64
	for line := format.SkipRows + 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(field(rec, col)), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadSeriesFile opens filename and reads one column from it.
func ReadSeriesFile(filename string, format SeriesFormat) ([]float64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()
	s, err := ReadSeries(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return s, nil
}

// WriteSeries writes an hour-indexed series as "hour,<name>" CSV.
func WriteSeries(w io.Writer, name string, values []float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"hour", name}); err != nil {
		return err
	}
	for t, v := range values {
		if err := cw.Write([]string{strconv.Itoa(t), strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
