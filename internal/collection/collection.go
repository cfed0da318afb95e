// Package collection holds the columnar parameter table exchanged between
// the fitter engine, the optimizers and the dispatcher.
package collection

import (
	"fmt"
	"strings"
)

// MetadataPrefix marks reserved columns written by the fitter itself.
const MetadataPrefix = "fitter."

// Reserved metadata columns, in log order.
const (
	FitnessColumn   = MetadataPrefix + "fitness"
	ElapsedColumn   = MetadataPrefix + "elapsed_seconds"
	EngineIDColumn  = MetadataPrefix + "engine_id"
	IterationColumn = MetadataPrefix + "iteration"
)

// MetadataColumns lists the reserved columns in the order they are logged.
var MetadataColumns = []string{FitnessColumn, ElapsedColumn, EngineIDColumn, IterationColumn}

// IsMetadata reports whether name is a reserved column.
func IsMetadata(name string) bool {
	return strings.HasPrefix(name, MetadataPrefix)
}

// Column is one named column used to build a collection.
type Column struct {
	Name   string
	Values []float64
}

// Collection is an ordered table of float64 columns of equal length.
// Collections are not safe for concurrent mutation.
type Collection struct {
	names []string
	data  map[string][]float64
	n     int
}

// New builds a collection from columns. Shorter columns are repeated
// cyclically up to the longest one.
func New(columns ...Column) (*Collection, error) {
	c := &Collection{data: make(map[string][]float64, len(columns))}
	for _, col := range columns {
		if _, ok := c.data[col.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, col.Name)
		}
		if len(col.Values) > c.n {
			c.n = len(col.Values)
		}
		c.names = append(c.names, col.Name)
		c.data[col.Name] = col.Values
	}
	for _, name := range c.names {
		values, err := broadcast(c.data[name], c.n)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		c.data[name] = values
	}
	return c, nil
}

// Must is New that panics on error; intended for literals in tests and tables.
func Must(columns ...Column) *Collection {
	c, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return c
}

// Empty returns a zero-row collection with the given columns.
func Empty(names ...string) *Collection {
	c := &Collection{data: make(map[string][]float64, len(names))}
	for _, name := range names {
		if _, ok := c.data[name]; ok {
			continue
		}
		c.names = append(c.names, name)
		c.data[name] = []float64{}
	}
	return c
}

// FromRows builds a collection from row vectors ordered like names.
func FromRows(names []string, rows [][]float64) (*Collection, error) {
	c := Empty(names...)
	if len(c.names) != len(names) {
		return nil, fmt.Errorf("%w in %v", ErrDuplicateColumn, names)
	}
	for i, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d: %w: have %d values for %d columns", i, ErrLengthMismatch, len(row), len(names))
		}
		for j, name := range names {
			c.data[name] = append(c.data[name], row[j])
		}
	}
	c.n = len(rows)
	return c, nil
}

func broadcast(values []float64, n int) ([]float64, error) {
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: cannot broadcast an empty column to %d rows", ErrLengthMismatch, n)
	}
	for i := range out {
		out[i] = values[i%len(values)]
	}
	return out, nil
}

// Len returns the number of rows.
func (c *Collection) Len() int {
	return c.n
}

// Columns returns all column names in insertion order.
func (c *Collection) Columns() []string {
	return append([]string(nil), c.names...)
}

// ParameterColumns returns the non-reserved columns in insertion order.
func (c *Collection) ParameterColumns() []string {
	var out []string
	for _, name := range c.names {
		if !IsMetadata(name) {
			out = append(out, name)
		}
	}
	return out
}

// MetadataColumns returns the reserved columns present in insertion order.
func (c *Collection) MetadataColumns() []string {
	var out []string
	for _, name := range c.names {
		if IsMetadata(name) {
			out = append(out, name)
		}
	}
	return out
}

// Has reports whether the column exists.
func (c *Collection) Has(name string) bool {
	_, ok := c.data[name]
	return ok
}

// Column returns a copy of the named column.
func (c *Collection) Column(name string) ([]float64, error) {
	values, ok := c.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return append([]float64(nil), values...), nil
}

// Value returns a single cell.
func (c *Collection) Value(row int, name string) (float64, error) {
	values, ok := c.data[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	if row < 0 || row >= c.n {
		return 0, fmt.Errorf("row %d out of range [0,%d)", row, c.n)
	}
	return values[row], nil
}

// Row returns row i as a name to value map.
func (c *Collection) Row(i int) (map[string]float64, error) {
	if i < 0 || i >= c.n {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, c.n)
	}
	row := make(map[string]float64, len(c.names))
	for _, name := range c.names {
		row[name] = c.data[name][i]
	}
	return row, nil
}

// Vector returns row i restricted to names, in that order.
func (c *Collection) Vector(i int, names []string) ([]float64, error) {
	if i < 0 || i >= c.n {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, c.n)
	}
	out := make([]float64, len(names))
	for j, name := range names {
		values, ok := c.data[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		out[j] = values[i]
	}
	return out, nil
}

// SetColumn adds or replaces a column. The first column set on an empty
// collection fixes its length.
func (c *Collection) SetColumn(name string, values []float64) error {
	if len(c.names) == 0 {
		c.n = len(values)
	}
	if len(values) != c.n {
		return fmt.Errorf("%w: %s has %d values, collection has %d rows", ErrLengthMismatch, name, len(values), c.n)
	}
	if _, ok := c.data[name]; !ok {
		c.names = append(c.names, name)
	}
	c.data[name] = append([]float64(nil), values...)
	return nil
}

// Fill sets every row of a column to value.
func (c *Collection) Fill(name string, value float64) error {
	values := make([]float64, c.n)
	for i := range values {
		values[i] = value
	}
	return c.SetColumn(name, values)
}

// Clone returns a deep copy.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		names: append([]string(nil), c.names...),
		data:  make(map[string][]float64, len(c.data)),
		n:     c.n,
	}
	for name, values := range c.data {
		out.data[name] = append([]float64(nil), values...)
	}
	return out
}

// Select returns the named columns, in the given order.
func (c *Collection) Select(names ...string) (*Collection, error) {
	out := &Collection{data: make(map[string][]float64, len(names)), n: c.n}
	for _, name := range names {
		values, ok := c.data[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		if _, dup := out.data[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
		}
		out.names = append(out.names, name)
		out.data[name] = append([]float64(nil), values...)
	}
	return out, nil
}

// DropMetadata returns a copy holding only the parameter columns.
func (c *Collection) DropMetadata() *Collection {
	out, _ := c.Select(c.ParameterColumns()...)
	return out
}

// Filter keeps the rows for which keep returns true, re-indexed from zero.
func (c *Collection) Filter(keep func(row int) bool) *Collection {
	var rows []int
	for i := 0; i < c.n; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return c.take(rows)
}

// Rows returns the given rows in order, re-indexed from zero.
func (c *Collection) Rows(indices ...int) (*Collection, error) {
	for _, i := range indices {
		if i < 0 || i >= c.n {
			return nil, fmt.Errorf("row %d out of range [0,%d)", i, c.n)
		}
	}
	return c.take(indices), nil
}

func (c *Collection) take(rows []int) *Collection {
	out := &Collection{
		names: append([]string(nil), c.names...),
		data:  make(map[string][]float64, len(c.names)),
		n:     len(rows),
	}
	for _, name := range c.names {
		src := c.data[name]
		dst := make([]float64, len(rows))
		for j, i := range rows {
			dst[j] = src[i]
		}
		out.data[name] = dst
	}
	return out
}

// SameColumns reports whether both collections hold the same column set,
// ignoring order.
func (c *Collection) SameColumns(other *Collection) bool {
	if len(c.names) != len(other.names) {
		return false
	}
	for _, name := range c.names {
		if _, ok := other.data[name]; !ok {
			return false
		}
	}
	return true
}

func (c *Collection) String() string {
	return fmt.Sprintf("Collection(%d rows, columns=%v)", c.n, c.names)
}
