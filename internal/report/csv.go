package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// CSVFileName is the name of the billing export inside an export directory.
const CSVFileName = "usage.csv"

// CSVHeader is the column order of the billing export.
var CSVHeader = []string{"tier", "model", "input_units", "output_units", "cost", "request_count"}

// WriteCSV writes one line per usage row after a header line.
func WriteCSV(w io.Writer, rows []models.UsageRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			string(r.Tier),
			r.Model,
			strconv.FormatInt(r.InputUnits, 10),
			strconv.FormatInt(r.OutputUnits, 10),
			r.Cost.StringFixed(6),
			strconv.FormatInt(r.RequestCount, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the billing export to path.
func SaveCSV(path string, rows []models.UsageRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create csv directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
