// Package schema converts the engine's raw columnar schema descriptor into
// the bridge's semantic column schema and caches both the semantic view and
// the physical type descriptor needed to decode every subsequent batch.
//
// The physical-to-semantic mapping is a closed, total function: every
// physical type either maps to exactly one semantic type or fails loudly with
// an unsupported-type error. There is no default arm.
package schema

import (
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quartzdata/sasarrow/pkg/engine"
	"github.com/quartzdata/sasarrow/pkg/saserrors"
)

// SemanticType is the engine-independent value classification used throughout
// the bridge.
type SemanticType uint8

const (
	TypeString SemanticType = iota
	TypeFloat64
	TypeInt64
	TypeDate
	TypeDateTime
	TypeTime
)

// String returns the canonical name of the semantic type.
func (t SemanticType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeFloat64:
		return "float64"
	case TypeInt64:
		return "int64"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeTime:
		return "time"
	default:
		return "unknown"
	}
}

// Column describes one column: name as supplied by the source, semantic type,
// the time unit for datetime/time columns, and the physical position. All
// source columns are nullable.
type Column struct {
	Name     string         `json:"name"`
	Type     SemanticType   `json:"-"`
	TypeName string         `json:"type"`
	Unit     arrow.TimeUnit `json:"-"`
	Index    int            `json:"index"`
	Nullable bool           `json:"nullable"`
}

// Schema is the resolved, immutable column schema for one open reader, plus
// the file-level counts known ahead of streaming. Column order is the
// physical column order in the source and is preserved end-to-end.
type Schema struct {
	Columns    []Column `json:"columns"`
	RowCount   uint64   `json:"row_count"`
	BatchCount uint32   `json:"batch_count"`
}

// Column returns the descriptor for the named column.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns the column names in physical order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Exporter hands out the engine's raw schema descriptor. The bridge invokes
// it at most once per reader lifetime.
type Exporter func() (*engine.RawSchema, error)

// Bridge resolves and caches the schema for one reader. The first successful
// resolution is memoized; later calls never re-invoke the exporter. Failed
// resolutions cache nothing.
type Bridge struct {
	mu       sync.Mutex
	export   Exporter
	rowCount uint64
	batches  uint32

	resolved *Schema
	physical *arrow.StructType
}

// NewBridge creates a schema bridge over the given exporter. rowCount and
// batchCount come from the reader's file info and are folded into the
// resolved schema.
func NewBridge(export Exporter, rowCount uint64, batchCount uint32) *Bridge {
	return &Bridge{export: export, rowCount: rowCount, batches: batchCount}
}

// Schema returns the resolved semantic schema, resolving on first call.
func (b *Bridge) Schema() (*Schema, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.resolveLocked(); err != nil {
		return nil, err
	}
	return b.resolved, nil
}

// Physical returns the cached struct-typed container describing the columns,
// needed to decode raw batches. Resolves on first call.
func (b *Bridge) Physical() (*arrow.StructType, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.resolveLocked(); err != nil {
		return nil, err
	}
	return b.physical, nil
}

func (b *Bridge) resolveLocked() error {
	if b.resolved != nil {
		return nil
	}

	raw, err := b.export()
	if err != nil {
		return err
	}
	// The type descriptor is immutable metadata; holding it past the raw
	// descriptor's release is the logical transfer the contract allows.
	defer raw.Release()

	st, ok := raw.Type.(*arrow.StructType)
	if !ok {
		return saserrors.New(saserrors.CodeUnsupportedType,
			"raw schema is not a struct-typed container").
			WithDetail("physical_type", raw.Type.String())
	}

	cols := make([]Column, len(st.Fields()))
	for i, f := range st.Fields() {
		col, err := mapField(f)
		if err != nil {
			return err
		}
		col.Index = i
		cols[i] = col
	}

	b.resolved = &Schema{
		Columns:    cols,
		RowCount:   b.rowCount,
		BatchCount: b.batches,
	}
	b.physical = st
	return nil
}

// mapField maps one physical field to its semantic column descriptor. The
// mapping is closed: anything outside it is an unsupported-type error, fatal
// for the open that produced it.
func mapField(f arrow.Field) (Column, error) {
	col := Column{Name: f.Name, Nullable: true}

	switch dt := f.Type.(type) {
	case *arrow.StringType, *arrow.LargeStringType:
		col.Type = TypeString
	case *arrow.Float64Type:
		col.Type = TypeFloat64
	case *arrow.Int64Type:
		col.Type = TypeInt64
	case *arrow.Date32Type:
		col.Type = TypeDate
	case *arrow.TimestampType:
		col.Type = TypeDateTime
		// Second resolution is upgraded to millisecond so the conversion
		// never loses precision; finer units pass through unchanged.
		if dt.Unit == arrow.Second {
			col.Unit = arrow.Millisecond
		} else {
			col.Unit = dt.Unit
		}
	case *arrow.Time64Type:
		col.Type = TypeTime
		col.Unit = arrow.Nanosecond
	default:
		return Column{}, saserrors.New(saserrors.CodeUnsupportedType,
			"no semantic mapping for physical column type").
			WithDetail("column", f.Name).
			WithDetail("physical_type", f.Type.String())
	}

	col.TypeName = col.Type.String()
	return col, nil
}
