package dataset

import (
	"fmt"
	"strconv"
)

// ValueKind discriminates the cell types a column can hold
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
)

// Value is a single immutable cell
type Value struct {
	kind ValueKind
	str  string
	num  float64
}

// Null returns the null value
func Null() Value {
	return Value{kind: KindNull}
}

// String returns a string-typed value
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric value
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Kind returns the value's kind
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Text returns a stringified form of the value. Null yields "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Float returns the numeric form of the value if it has one
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ColumnKind summarizes the kinds present in a column
type ColumnKind int

const (
	ColumnEmpty ColumnKind = iota
	ColumnString
	ColumnNumeric
	ColumnMixed
)

// Column is a named, ordered sequence of values
type Column struct {
	Name   string
	Values []Value
}

// Kind infers the column kind from its non-null values
func (c *Column) Kind() ColumnKind {
	var strings, numbers int
	for _, v := range c.Values {
		switch v.Kind() {
		case KindString:
			strings++
		case KindNumber:
			numbers++
		}
	}

	switch {
	case strings == 0 && numbers == 0:
		return ColumnEmpty
	case strings > 0 && numbers > 0:
		return ColumnMixed
	case numbers > 0:
		return ColumnNumeric
	default:
		return ColumnString
	}
}

// NonNullCount returns the number of non-null cells
func (c *Column) NonNullCount() int {
	count := 0
	for _, v := range c.Values {
		if !v.IsNull() {
			count++
		}
	}
	return count
}

// Table is the tabular abstraction the core operates on. Any source that can
// enumerate named columns and report a row count satisfies it.
type Table interface {
	ColumnNames() []string
	Column(name string) (*Column, bool)
	RowCount() int
}

// Dataset is the in-memory Table implementation
type Dataset struct {
	Name    string
	columns []*Column
	index   map[string]int
}

// New creates an empty dataset with the given source name
func New(name string) *Dataset {
	return &Dataset{
		Name:  name,
		index: make(map[string]int),
	}
}

// AddColumn appends a column. Column lengths must agree across the dataset.
func (d *Dataset) AddColumn(name string, values []Value) error {
	if _, exists := d.index[name]; exists {
		return fmt.Errorf("duplicate column: %s", name)
	}
	if len(d.columns) > 0 && len(values) != len(d.columns[0].Values) {
		return fmt.Errorf("column %s has %d rows, dataset has %d", name, len(values), len(d.columns[0].Values))
	}

	d.index[name] = len(d.columns)
	d.columns = append(d.columns, &Column{Name: name, Values: values})
	return nil
}

// ColumnNames returns column names in insertion order
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// RowCount returns the number of rows
func (d *Dataset) RowCount() int {
	if len(d.columns) == 0 {
		return 0
	}
	return len(d.columns[0].Values)
}

// WithColumn returns a copy of the dataset with one column's values replaced.
// The untouched columns are shared, not copied.
func (d *Dataset) WithColumn(name string, values []Value) (*Dataset, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("unknown column: %s", name)
	}
	if len(values) != d.RowCount() {
		return nil, fmt.Errorf("column %s replacement has %d rows, dataset has %d", name, len(values), d.RowCount())
	}

	out := &Dataset{
		Name:    d.Name,
		columns: make([]*Column, len(d.columns)),
		index:   make(map[string]int, len(d.index)),
	}
	for j, c := range d.columns {
		out.columns[j] = c
		out.index[c.Name] = j
	}
	out.columns[i] = &Column{Name: name, Values: values}
	return out, nil
}

// Clone returns a dataset sharing all column data, suitable as a base for a
// sequence of WithColumn replacements.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Name:    d.Name,
		columns: make([]*Column, len(d.columns)),
		index:   make(map[string]int, len(d.index)),
	}
	for j, c := range d.columns {
		out.columns[j] = c
		out.index[c.Name] = j
	}
	return out
}
