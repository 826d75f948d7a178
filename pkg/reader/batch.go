package reader

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quartzdata/sasarrow/pkg/saserrors"
	"github.com/quartzdata/sasarrow/pkg/scalar"
	"github.com/quartzdata/sasarrow/pkg/schema"
)

// Batch is one decoded, semantically-typed table fragment. Column order
// matches the resolved schema. A Batch is consumer-owned and carries no
// dependency on the engine's buffers.
type Batch struct {
	schema *schema.Schema
	cols   [][]scalar.Value
	rows   int
}

// Schema returns the resolved schema the batch was decoded under.
func (b *Batch) Schema() *schema.Schema {
	return b.schema
}

// NumRows returns the batch's row count.
func (b *Batch) NumRows() int {
	return b.rows
}

// NumCols returns the batch's column count.
func (b *Batch) NumCols() int {
	return len(b.cols)
}

// Value returns the value at (column, row).
func (b *Batch) Value(col, row int) scalar.Value {
	return b.cols[col][row]
}

// Column returns column i's values in row order.
func (b *Batch) Column(i int) []scalar.Value {
	return b.cols[i]
}

// ColumnByName returns the named column's values.
func (b *Batch) ColumnByName(name string) ([]scalar.Value, bool) {
	col, ok := b.schema.Column(name)
	if !ok {
		return nil, false
	}
	return b.cols[col.Index], true
}

// Row copies row i into a new slice in column order.
func (b *Batch) Row(i int) []scalar.Value {
	row := make([]scalar.Value, len(b.cols))
	for c := range b.cols {
		row[c] = b.cols[c][i]
	}
	return row
}

// Rows returns a row-wise iterator over the batch.
func (b *Batch) Rows() *RowIter {
	return &RowIter{batch: b}
}

// RowIter walks a batch row by row. Its size hint covers the current batch's
// remaining rows only.
type RowIter struct {
	batch *Batch
	next  int
}

// Next returns the next row, or false once the batch is exhausted.
func (it *RowIter) Next() ([]scalar.Value, bool) {
	if it.next >= it.batch.rows {
		return nil, false
	}
	row := it.batch.Row(it.next)
	it.next++
	return row, true
}

// Remaining returns the number of rows not yet yielded.
func (it *RowIter) Remaining() int {
	return it.batch.rows - it.next
}

// Record materializes the batch as a fresh engine-independent Arrow record
// matching the semantic schema: string columns as utf8, numerics as float64,
// int64 as int64, dates as date32, datetimes as timestamps in the column's
// unit, times as nanosecond time64. The caller owns the returned record and
// must release it.
func (b *Batch) Record(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	fields := make([]arrow.Field, len(b.schema.Columns))
	for i, col := range b.schema.Columns {
		fields[i] = arrow.Field{Name: col.Name, Type: arrowType(col), Nullable: true}
	}
	arrowSchema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(mem, arrowSchema)
	defer builder.Release()

	for i, col := range b.schema.Columns {
		if err := appendColumn(builder.Field(i), b.cols[i], col); err != nil {
			return nil, err
		}
	}

	return builder.NewRecord(), nil
}

func arrowType(col schema.Column) arrow.DataType {
	switch col.Type {
	case schema.TypeString:
		return arrow.BinaryTypes.String
	case schema.TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case schema.TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case schema.TypeDate:
		return arrow.FixedWidthTypes.Date32
	case schema.TypeDateTime:
		return &arrow.TimestampType{Unit: col.Unit}
	case schema.TypeTime:
		return arrow.FixedWidthTypes.Time64ns
	default:
		return arrow.PrimitiveTypes.Float64
	}
}

func appendColumn(builder array.Builder, values []scalar.Value, col schema.Column) error {
	switch bld := builder.(type) {
	case *array.StringBuilder:
		for _, v := range values {
			if v.IsNull() {
				bld.AppendNull()
				continue
			}
			bld.Append(v.Str)
		}
	case *array.Float64Builder:
		for _, v := range values {
			if v.IsNull() {
				bld.AppendNull()
				continue
			}
			bld.Append(v.Num)
		}
	case *array.Int64Builder:
		for _, v := range values {
			if v.IsNull() {
				bld.AppendNull()
				continue
			}
			bld.Append(v.Int)
		}
	case *array.Date32Builder:
		for _, v := range values {
			if v.IsNull() {
				bld.AppendNull()
				continue
			}
			bld.Append(arrow.Date32(v.Int))
		}
	case *array.TimestampBuilder:
		for _, v := range values {
			if v.IsNull() {
				bld.AppendNull()
				continue
			}
			bld.Append(arrow.Timestamp(fromMicros(v.Int, col.Unit)))
		}
	case *array.Time64Builder:
		for _, v := range values {
			if v.IsNull() {
				bld.AppendNull()
				continue
			}
			bld.Append(arrow.Time64(v.Int))
		}
	default:
		return saserrors.New(saserrors.CodeUnsupportedType,
			"no builder for semantic column type").
			WithDetail("column", col.Name).
			WithDetail("semantic_type", col.Type.String())
	}
	return nil
}

// fromMicros converts a microsecond datetime payload into the column's
// timestamp unit.
func fromMicros(us int64, unit arrow.TimeUnit) int64 {
	switch unit {
	case arrow.Second:
		return us / 1_000_000
	case arrow.Millisecond:
		return us / 1_000
	case arrow.Microsecond:
		return us
	case arrow.Nanosecond:
		return us * 1_000
	default:
		return us
	}
}
