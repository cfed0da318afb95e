package collection

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// WriteTable writes c as CSV. The first field of every line is the 0-based
// row index; its header cell is empty.
func (c *Collection) WriteTable(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{""}, c.names...)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for i := 0; i < c.n; i++ {
		record[0] = strconv.Itoa(i)
		for j, name := range c.names {
			record[j+1] = strconv.FormatFloat(c.data[name][i], 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable parses the format produced by WriteTable. The index field is
// discarded and rows are re-indexed in file order.
func ReadTable(r io.Reader) (*Collection, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read table: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read table header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("read table: empty header")
	}
	names := header[1:]
	c := Empty(names...)
	if len(c.names) != len(names) {
		return nil, fmt.Errorf("read table: %w in header %v", ErrDuplicateColumn, names)
	}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read table line %d: %w", line, err)
		}
		for j, name := range names {
			v, err := strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("read table line %d column %s: %w", line, name, err)
			}
			c.data[name] = append(c.data[name], v)
		}
		c.n++
	}
	return c, nil
}

// WriteFile replaces path with the table atomically.
func (c *Collection) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp log: %w", err)
	}
	tmpName := tmp.Name()
	if err := c.WriteTable(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp log: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace log: %w", err)
	}
	return nil
}

// ReadFile loads a table written by WriteFile.
func ReadFile(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}
