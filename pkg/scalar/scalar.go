// Package scalar decodes the engine's raw tagged values into semantically
// typed scalars, applying the SAS epoch and unit conversions. Decoding is a
// pure, total function over (raw value, column semantic type) so it can be
// exercised independently of any I/O.
package scalar

import (
	"fmt"
	"strconv"

	"github.com/quartzdata/sasarrow/pkg/schema"
)

// SAS counts dates from 1960-01-01 and times from midnight; the bridge
// normalizes to the Unix epoch. These are fixed domain conventions validated
// against reference values, not derived.
const (
	// DateEpochOffsetDays is the day count from 1960-01-01 to 1970-01-01.
	DateEpochOffsetDays = 3653
	// DatetimeEpochOffsetSeconds is the second count from 1960-01-01T00:00:00
	// to the Unix epoch.
	DatetimeEpochOffsetSeconds = 315619200
)

// RawKind tags a raw engine value.
type RawKind uint8

const (
	RawNull RawKind = iota
	RawString
	RawNumeric
)

// Raw is the engine's tagged scalar: a null flag plus either text or a
// float64 payload.
type Raw struct {
	Kind RawKind
	Str  string
	Num  float64
}

// Null, Str and Num construct raw values; used by engine fakes and decoders.
func Null() Raw         { return Raw{Kind: RawNull} }
func Str(s string) Raw  { return Raw{Kind: RawString, Str: s} }
func Num(f float64) Raw { return Raw{Kind: RawNumeric, Num: f} }

// Kind tags a decoded semantic value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumeric
	KindInt
	KindDate
	KindDateTime
	KindTime
)

// Value is a decoded semantic scalar.
//
//	KindString   -> Str
//	KindNumeric  -> Num
//	KindInt      -> Int
//	KindDate     -> Int, days since the Unix epoch
//	KindDateTime -> Int, microseconds since the Unix epoch
//	KindTime     -> Int, nanoseconds since midnight
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Int  int64
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// String renders the value for diagnostics and text export.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindString:
		return v.Str
	case KindNumeric:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindInt, KindDate, KindDateTime, KindTime:
		return strconv.FormatInt(v.Int, 10)
	default:
		return fmt.Sprintf("scalar(kind=%d)", v.Kind)
	}
}

// Interface returns the value as a plain Go value (nil for null), suitable
// for JSON export.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumeric:
		return v.Num
	case KindInt, KindDate, KindDateTime, KindTime:
		return v.Int
	default:
		return nil
	}
}

// Decode converts one raw engine value under the originating column's
// semantic type. The numeric reinterpretation depends on the column type, not
// on the raw tag alone.
//
// Rules, in order: a set null flag decodes to null regardless of type; a text
// tag decodes to a string regardless of column type (defensive decoding); a
// numeric tag dispatches on the column type for epoch/unit conversion; any
// other tag decodes to null as a documented defensive default.
func Decode(raw Raw, t schema.SemanticType) Value {
	switch raw.Kind {
	case RawNull:
		return Value{Kind: KindNull}
	case RawString:
		return Value{Kind: KindString, Str: raw.Str}
	case RawNumeric:
		return decodeNumeric(raw.Num, t)
	default:
		return Value{Kind: KindNull}
	}
}

func decodeNumeric(num float64, t schema.SemanticType) Value {
	switch t {
	case schema.TypeDate:
		days := int64(num) - DateEpochOffsetDays
		return Value{Kind: KindDate, Int: days}
	case schema.TypeDateTime:
		micros := int64((num - DatetimeEpochOffsetSeconds) * 1_000_000)
		return Value{Kind: KindDateTime, Int: micros}
	case schema.TypeTime:
		nanos := int64(num * 1_000_000_000)
		return Value{Kind: KindTime, Int: nanos}
	case schema.TypeInt64:
		return Value{Kind: KindInt, Int: int64(num)}
	default:
		return Value{Kind: KindNumeric, Num: num}
	}
}
