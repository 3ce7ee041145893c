package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CSV appends events to a file, writing the header when the file is new
// or empty.
type CSV struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func NewCSV(path string) (*CSV, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	j := &CSV{f: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := j.write(Columns); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return j, nil
}

func (j *CSV) Record(e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.write(e.Row())
}

func (j *CSV) write(row []string) error {
	if err := j.w.Write(row); err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

// TailCSV returns the header and the last n data rows of a log file.
func TailCSV(path string, n int) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, rec)
		if n > 0 && len(rows) > n {
			rows = rows[1:]
		}
	}
	return header, rows, nil
}
