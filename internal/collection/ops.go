package collection

import (
	"fmt"
	"math"
	"strings"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

// Order selects the direction of SelectBest.
type Order int

const (
	Minimize Order = iota
	Maximize
)

// Join pairs the rows of both collections side by side. The shorter one is
// repeated cyclically up to the longer length.
func (c *Collection) Join(other *Collection) (*Collection, error) {
	n := c.n
	if other.n > n {
		n = other.n
	}
	out := &Collection{data: make(map[string][]float64, len(c.names)+len(other.names)), n: n}
	for _, src := range []*Collection{c, other} {
		for _, name := range src.names {
			if _, dup := out.data[name]; dup {
				return nil, fmt.Errorf("join: %w: %s", ErrDuplicateColumn, name)
			}
			values, err := broadcast(src.data[name], n)
			if err != nil {
				return nil, fmt.Errorf("join: column %s: %w", name, err)
			}
			out.names = append(out.names, name)
			out.data[name] = values
		}
	}
	return out, nil
}

// Product forms the cartesian cross of rows; rows of c vary slowest.
func (c *Collection) Product(other *Collection) (*Collection, error) {
	n := c.n * other.n
	out := &Collection{data: make(map[string][]float64, len(c.names)+len(other.names)), n: n}
	for _, name := range c.names {
		src := c.data[name]
		dst := make([]float64, 0, n)
		for i := 0; i < c.n; i++ {
			for j := 0; j < other.n; j++ {
				dst = append(dst, src[i])
			}
		}
		out.names = append(out.names, name)
		out.data[name] = dst
	}
	for _, name := range other.names {
		if _, dup := out.data[name]; dup {
			return nil, fmt.Errorf("product: %w: %s", ErrDuplicateColumn, name)
		}
		src := other.data[name]
		dst := make([]float64, 0, n)
		for i := 0; i < c.n; i++ {
			dst = append(dst, src...)
		}
		out.names = append(out.names, name)
		out.data[name] = dst
	}
	return out, nil
}

// Append concatenates the rows of other after those of c. Both must share
// the same column set; the column order of c is kept. A column-less
// collection appends as the identity.
func (c *Collection) Append(other *Collection) (*Collection, error) {
	if len(c.names) == 0 {
		return other.Clone(), nil
	}
	if len(other.names) == 0 {
		return c.Clone(), nil
	}
	if !c.SameColumns(other) {
		return nil, fmt.Errorf("append: %w: %v vs %v", ErrColumnMismatch, c.names, other.names)
	}
	out := &Collection{
		names: append([]string(nil), c.names...),
		data:  make(map[string][]float64, len(c.names)),
		n:     c.n + other.n,
	}
	for _, name := range c.names {
		values := make([]float64, 0, out.n)
		values = append(values, c.data[name]...)
		values = append(values, other.data[name]...)
		out.data[name] = values
	}
	return out, nil
}

// ToConfig materializes each row into a deep copy of base with every
// parameter column written at its dotted path. Reserved columns are skipped.
// A column must name an existing leaf of base.
func (c *Collection) ToConfig(base *config.Tree) ([]*config.Tree, error) {
	params := c.ParameterColumns()
	for _, name := range params {
		if _, err := base.Leaf(name); err != nil {
			return nil, &UnknownParameterError{Column: name, Err: err}
		}
	}
	out := make([]*config.Tree, c.n)
	for i := 0; i < c.n; i++ {
		job := base.Clone()
		for _, name := range params {
			if err := job.Set(name, c.data[name][i]); err != nil {
				return nil, &UnknownParameterError{Column: name, Err: err}
			}
		}
		out[i] = job
	}
	return out, nil
}

// SelectBest returns the index of the best row by column. NaN values lose to
// any number; when every value is NaN row 0 is returned. Ties keep the first.
func (c *Collection) SelectBest(column string, order Order) (int, error) {
	values, ok := c.data[column]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	if c.n == 0 {
		return 0, &EmptyCollectionError{Column: column}
	}
	best := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 ||
			(order == Minimize && v < values[best]) ||
			(order == Maximize && v > values[best]) {
			best = i
		}
	}
	if best < 0 {
		return 0, nil
	}
	return best, nil
}

// BestRow is SelectBest followed by Rows, returning a one-row collection.
func (c *Collection) BestRow(column string, order Order) (*Collection, error) {
	i, err := c.SelectBest(column, order)
	if err != nil {
		return nil, err
	}
	return c.take([]int{i}), nil
}

// AbundanceColumns lists the columns that NormalizeAbundances rescales.
func (c *Collection) AbundanceColumns() []string {
	var out []string
	for _, name := range c.names {
		if !IsMetadata(name) && strings.Contains(name, "abundances") {
			out = append(out, name)
		}
	}
	return out
}

// NormalizeAbundances rescales abundance columns in place so that they sum
// to one within every row. Rows summing to zero are left as they are.
func (c *Collection) NormalizeAbundances() {
	cols := c.AbundanceColumns()
	if len(cols) == 0 {
		return
	}
	for i := 0; i < c.n; i++ {
		sum := 0.0
		for _, name := range cols {
			sum += c.data[name][i]
		}
		if sum == 0 || math.IsNaN(sum) {
			continue
		}
		for _, name := range cols {
			c.data[name][i] /= sum
		}
	}
}
