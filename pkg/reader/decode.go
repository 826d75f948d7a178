package reader

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/quartzdata/sasarrow/pkg/engine"
	"github.com/quartzdata/sasarrow/pkg/saserrors"
	"github.com/quartzdata/sasarrow/pkg/scalar"
	"github.com/quartzdata/sasarrow/pkg/schema"
)

// decodeBatch copies one raw batch into a consumer-owned decoded batch. The
// decoded batch has no further dependency on the engine's buffer; the caller
// releases the raw batch after this returns.
//
// Engines may hand out either raw SAS numerics (float64 under date, datetime
// and time columns, converted here through the scalar mapper) or columns
// already carried in their interchange physical types (date32, timestamp,
// time64, taken at face value). Both shapes decode to the same semantic
// values, so row-wise and batch-wise consumption agree.
func decodeBatch(raw *engine.RawBatch, sch *schema.Schema) (*Batch, error) {
	rec := raw.Rec
	if rec == nil {
		return nil, saserrors.New(saserrors.CodeNullPointer, "raw batch carries no record")
	}
	if int(rec.NumCols()) != len(sch.Columns) {
		return nil, saserrors.New(saserrors.CodeInternal,
			"raw batch column count does not match resolved schema").
			WithDetail("batch_columns", rec.NumCols()).
			WithDetail("schema_columns", len(sch.Columns))
	}

	rows := int(rec.NumRows())
	cols := make([][]scalar.Value, len(sch.Columns))
	for i, col := range sch.Columns {
		decoded, err := decodeColumn(rec.Column(i), col, rows)
		if err != nil {
			return nil, err
		}
		cols[i] = decoded
	}

	return &Batch{schema: sch, cols: cols, rows: rows}, nil
}

func decodeColumn(arr arrow.Array, col schema.Column, rows int) ([]scalar.Value, error) {
	out := make([]scalar.Value, rows)

	switch a := arr.(type) {
	case *array.String:
		for i := 0; i < rows; i++ {
			if a.IsNull(i) {
				out[i] = scalar.Decode(scalar.Null(), col.Type)
				continue
			}
			out[i] = scalar.Decode(scalar.Str(a.Value(i)), col.Type)
		}
	case *array.LargeString:
		for i := 0; i < rows; i++ {
			if a.IsNull(i) {
				out[i] = scalar.Decode(scalar.Null(), col.Type)
				continue
			}
			out[i] = scalar.Decode(scalar.Str(a.Value(i)), col.Type)
		}
	case *array.Float64:
		for i := 0; i < rows; i++ {
			if a.IsNull(i) {
				out[i] = scalar.Decode(scalar.Null(), col.Type)
				continue
			}
			out[i] = scalar.Decode(scalar.Num(a.Value(i)), col.Type)
		}
	case *array.Int64:
		for i := 0; i < rows; i++ {
			if a.IsNull(i) {
				out[i] = scalar.Value{Kind: scalar.KindNull}
				continue
			}
			if col.Type == schema.TypeInt64 {
				out[i] = scalar.Value{Kind: scalar.KindInt, Int: a.Value(i)}
			} else {
				out[i] = scalar.Decode(scalar.Num(float64(a.Value(i))), col.Type)
			}
		}
	case *array.Date32:
		// Already days since the Unix epoch; the engine converted ahead of us.
		for i := 0; i < rows; i++ {
			if a.IsNull(i) {
				out[i] = scalar.Value{Kind: scalar.KindNull}
				continue
			}
			out[i] = scalar.Value{Kind: scalar.KindDate, Int: int64(a.Value(i))}
		}
	case *array.Timestamp:
		unit := arrow.Microsecond
		if ts, ok := a.DataType().(*arrow.TimestampType); ok {
			unit = ts.Unit
		}
		for i := 0; i < rows; i++ {
			if a.IsNull(i) {
				out[i] = scalar.Value{Kind: scalar.KindNull}
				continue
			}
			out[i] = scalar.Value{Kind: scalar.KindDateTime, Int: toMicros(int64(a.Value(i)), unit)}
		}
	case *array.Time64:
		unit := arrow.Nanosecond
		if tt, ok := a.DataType().(*arrow.Time64Type); ok {
			unit = tt.Unit
		}
		for i := 0; i < rows; i++ {
			if a.IsNull(i) {
				out[i] = scalar.Value{Kind: scalar.KindNull}
				continue
			}
			ns := int64(a.Value(i))
			if unit == arrow.Microsecond {
				ns *= 1_000
			}
			out[i] = scalar.Value{Kind: scalar.KindTime, Int: ns}
		}
	default:
		return nil, saserrors.New(saserrors.CodeInternal,
			"raw batch column type does not match resolved schema").
			WithDetail("column", col.Name).
			WithDetail("physical_type", arr.DataType().String())
	}

	return out, nil
}

// toMicros normalizes a timestamp payload to microseconds since the Unix
// epoch.
func toMicros(v int64, unit arrow.TimeUnit) int64 {
	switch unit {
	case arrow.Second:
		return v * 1_000_000
	case arrow.Millisecond:
		return v * 1_000
	case arrow.Microsecond:
		return v
	case arrow.Nanosecond:
		return v / 1_000
	default:
		return v
	}
}
