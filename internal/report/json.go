package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

// JSONFileName is the name of the JSON export inside an export directory.
const JSONFileName = "report.json"

// WriteJSON encodes s as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	data, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadJSON decodes a Summary written by WriteJSON.
func ReadJSON(r io.Reader) (Summary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Summary{}, fmt.Errorf("read report: %w", err)
	}
	var s Summary
	if err := sonic.ConfigStd.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("decode report: %w", err)
	}
	return s, nil
}

// SaveJSON writes s to path, creating parent directories.
func SaveJSON(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := WriteJSON(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadJSON reads a Summary from path.
func LoadJSON(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return ReadJSON(f)
}
