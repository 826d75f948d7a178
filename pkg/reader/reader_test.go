package reader_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quartzdata/sasarrow/pkg/engine"
	"github.com/quartzdata/sasarrow/pkg/engine/enginetest"
	"github.com/quartzdata/sasarrow/pkg/reader"
	"github.com/quartzdata/sasarrow/pkg/saserrors"
	"github.com/quartzdata/sasarrow/pkg/scalar"
	"github.com/quartzdata/sasarrow/pkg/schema"
)

// fixtureSchema announces the interchange physical types while the batches
// carry raw SAS numerics as float64, the shape the native decoder hands out.
func fixtureSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "value", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "day", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "stamp", Type: &arrow.TimestampType{Unit: arrow.Second}, Nullable: true},
		{Name: "clock", Type: arrow.FixedWidthTypes.Time64ns, Nullable: true},
	}, nil)
}

// row holds one fixture row; nil means null.
type row struct {
	name                     *string
	value, day, stamp, clock *float64
}

func str(s string) *string   { return &s }
func num(f float64) *float64 { return &f }

// physicalSchema mirrors sch with float64 under every non-string column, the
// shape the raw batches actually carry; array.NewRecord validates columns
// against the record's schema, so the record must be built against this one.
func physicalSchema(sch *arrow.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(sch.Fields()))
	for i, f := range sch.Fields() {
		if f.Type.ID() != arrow.STRING {
			f.Type = arrow.PrimitiveTypes.Float64
		}
		fields[i] = f
	}
	return arrow.NewSchema(fields, nil)
}

func buildBatch(mem memory.Allocator, sch *arrow.Schema, rows []row) arrow.Record {
	nameB := array.NewStringBuilder(mem)
	defer nameB.Release()
	numB := make([]*array.Float64Builder, 4)
	for i := range numB {
		numB[i] = array.NewFloat64Builder(mem)
		defer numB[i].Release()
	}

	for _, r := range rows {
		if r.name == nil {
			nameB.AppendNull()
		} else {
			nameB.Append(*r.name)
		}
		for i, v := range []*float64{r.value, r.day, r.stamp, r.clock} {
			if v == nil {
				numB[i].AppendNull()
			} else {
				numB[i].Append(*v)
			}
		}
	}

	cols := make([]arrow.Array, 5)
	cols[0] = nameB.NewArray()
	for i, b := range numB {
		cols[i+1] = b.NewArray()
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	return array.NewRecord(physicalSchema(sch), cols, int64(len(rows)))
}

func fixtureRows() [][]row {
	return [][]row{
		{
			{name: str("alpha"), value: num(1.5), day: num(18700), stamp: num(315619205), clock: num(3.5)},
			{},
		},
		{
			{name: str("beta"), value: num(2.5), day: num(18701), stamp: num(315619210.5), clock: num(0.25)},
			{name: str("gamma"), value: num(-1), day: num(3653), stamp: num(315619200), clock: num(0)},
		},
		{
			{name: str("delta"), value: num(10), day: num(20000), stamp: num(315620000), clock: num(1.5)},
			{name: str("eps"), value: num(11), day: num(20001), stamp: num(315620001), clock: num(2.5)},
		},
	}
}

// newFixture builds the standard three-batch fixture. Returned records are
// owned by the fixture for the test's lifetime; cleanup releases them.
func newFixture(t *testing.T) *enginetest.Fixture {
	t.Helper()
	mem := memory.NewGoAllocator()
	sch := fixtureSchema()

	f := &enginetest.Fixture{Schema: sch}
	for _, rows := range fixtureRows() {
		rec := buildBatch(mem, sch, rows)
		f.Batches = append(f.Batches, rec)
	}
	t.Cleanup(func() {
		for _, rec := range f.Batches {
			rec.Release()
		}
	})
	return f
}

func openFixture(t *testing.T, f *enginetest.Fixture) (*reader.Reader, *enginetest.Engine) {
	t.Helper()
	eng := enginetest.New()
	eng.Add("test.sas7bdat", f)

	r, err := reader.Open(eng, "test.sas7bdat", 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, eng
}

func TestOpenFileNotFound(t *testing.T) {
	eng := enginetest.New()

	_, err := reader.Open(eng, "missing.sas7bdat", 0, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, saserrors.IsCode(err, saserrors.CodeFileNotFound))
	// Static message and dynamic detail are both carried.
	assert.Contains(t, err.Error(), "file not found")
	assert.Contains(t, err.Error(), "missing.sas7bdat")
}

func TestInfoIsRepeatable(t *testing.T) {
	r, _ := openFixture(t, newFixture(t))

	first := r.Info()
	assert.Equal(t, uint64(6), first.RowCount)
	assert.Equal(t, uint32(5), first.ColumnCount)
	assert.Equal(t, uint32(3), first.BatchCount)

	for i := 0; i < 3; i++ {
		assert.Equal(t, first, r.Info())
	}
}

func TestSchemaCachingIdempotence(t *testing.T) {
	r, eng := openFixture(t, newFixture(t))

	first, err := r.Schema()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := r.Schema()
		require.NoError(t, err)
		assert.Same(t, first, again)
	}

	stats := eng.Stats("test.sas7bdat")
	assert.Equal(t, 1, stats.SchemaExports, "one physical schema fetch")
	assert.Equal(t, 1, stats.SchemaReleases, "raw descriptor released after conversion")

	wantTypes := []schema.SemanticType{
		schema.TypeString, schema.TypeFloat64, schema.TypeDate,
		schema.TypeDateTime, schema.TypeTime,
	}
	for i, col := range first.Columns {
		assert.Equal(t, wantTypes[i], col.Type, "column %s", col.Name)
	}
	// Second-resolution timestamps are upgraded to millisecond.
	assert.Equal(t, arrow.Millisecond, first.Columns[3].Unit)
}

func TestScalarConversionsThroughBatch(t *testing.T) {
	r, _ := openFixture(t, newFixture(t))

	batch, err := r.NextBatch()
	require.NoError(t, err)
	require.Equal(t, 2, batch.NumRows())

	got := batch.Row(0)
	assert.Equal(t, scalar.Value{Kind: scalar.KindString, Str: "alpha"}, got[0])
	assert.Equal(t, scalar.Value{Kind: scalar.KindNumeric, Num: 1.5}, got[1])
	assert.Equal(t, scalar.Value{Kind: scalar.KindDate, Int: 15047}, got[2])
	assert.Equal(t, scalar.Value{Kind: scalar.KindDateTime, Int: 5_000_000}, got[3])
	assert.Equal(t, scalar.Value{Kind: scalar.KindTime, Int: 3_500_000_000}, got[4])

	for _, v := range batch.Row(1) {
		assert.True(t, v.IsNull())
	}
}

func TestOwnershipLaw(t *testing.T) {
	r, eng := openFixture(t, newFixture(t))

	it := r.Iter()
	for {
		batch, err := it.Next()
		require.NoError(t, err)
		if batch == nil {
			break
		}
	}

	// Random access on the same handle, including a failing index.
	_, err := r.BatchAt(1)
	require.NoError(t, err)
	_, err = r.BatchAt(99)
	require.Error(t, err)

	for i, n := range eng.Stats("test.sas7bdat").ReleaseCounts() {
		assert.Equal(t, 1, n, "batch fetch %d released exactly once", i)
	}
}

func TestMonotonicExhaustion(t *testing.T) {
	r, eng := openFixture(t, newFixture(t))
	it := r.Iter()

	for i := 0; i < 3; i++ {
		batch, err := it.Next()
		require.NoError(t, err)
		require.NotNil(t, batch, "batch %d", i)
	}

	batch, err := it.Next()
	require.NoError(t, err)
	assert.Nil(t, batch)
	assert.True(t, it.Finished())

	calls := eng.Stats("test.sas7bdat").TransportCalls()
	for i := 0; i < 4; i++ {
		batch, err = it.Next()
		require.NoError(t, err)
		assert.Nil(t, batch)
	}
	assert.Equal(t, calls, eng.Stats("test.sas7bdat").TransportCalls(),
		"no transport calls after termination")
}

func TestRandomAccessStreamEquivalence(t *testing.T) {
	r, _ := openFixture(t, newFixture(t))

	var streamed []*reader.Batch
	it := r.Iter()
	for {
		batch, err := it.Next()
		require.NoError(t, err)
		if batch == nil {
			break
		}
		streamed = append(streamed, batch)
	}
	require.Len(t, streamed, 3)

	for i := range streamed {
		direct, err := r.BatchAt(uint32(i))
		require.NoError(t, err)
		require.Equal(t, streamed[i].NumRows(), direct.NumRows(), "batch %d", i)
		for c := 0; c < direct.NumCols(); c++ {
			assert.Equal(t, streamed[i].Column(c), direct.Column(c), "batch %d column %d", i, c)
		}
	}
}

func TestRandomAccessDoesNotDisturbCursor(t *testing.T) {
	r, _ := openFixture(t, newFixture(t))

	first, err := r.NextBatch()
	require.NoError(t, err)

	_, err = r.BatchAt(2)
	require.NoError(t, err)

	second, err := r.NextBatch()
	require.NoError(t, err)
	assert.NotEqual(t, first.Column(0), second.Column(0))
	assert.Equal(t, scalar.Value{Kind: scalar.KindString, Str: "beta"}, second.Value(0, 0))
}

func TestOutOfRangeIndex(t *testing.T) {
	r, _ := openFixture(t, newFixture(t))

	_, err := r.BatchAt(3)
	require.Error(t, err)
	assert.True(t, saserrors.IsCode(err, saserrors.CodeInvalidBatchIndex))
}

func TestStreamErrorIsTerminalAndSurfacedOnce(t *testing.T) {
	f := newFixture(t)
	f.BatchStatus = map[int]engine.StatusCode{1: engine.StatusInternalError}
	f.Detail = "page checksum mismatch"
	r, eng := openFixture(t, f)

	it := r.Iter()
	batch, err := it.Next()
	require.NoError(t, err)
	require.NotNil(t, batch)

	batch, err = it.Next()
	require.Error(t, err)
	assert.Nil(t, batch)
	assert.True(t, saserrors.IsCode(err, saserrors.CodeInternal))
	assert.Contains(t, err.Error(), "page checksum mismatch")

	calls := eng.Stats("test.sas7bdat").TransportCalls()
	batch, err = it.Next()
	require.NoError(t, err, "error surfaced exactly once")
	assert.Nil(t, batch)
	assert.Equal(t, calls, eng.Stats("test.sas7bdat").TransportCalls())
}

func TestResetRewindsForwardCursor(t *testing.T) {
	r, _ := openFixture(t, newFixture(t))

	first, err := r.NextBatch()
	require.NoError(t, err)
	require.NoError(t, r.Reset())

	again, err := r.NextBatch()
	require.NoError(t, err)
	assert.Equal(t, first.Column(0), again.Column(0))

	// Cached schema survives the reset.
	sch, err := r.Schema()
	require.NoError(t, err)
	assert.NotNil(t, sch)
}

func TestCloseSemantics(t *testing.T) {
	r, eng := openFixture(t, newFixture(t))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "second close is a no-op")
	assert.Equal(t, 1, eng.Stats("test.sas7bdat").Destroys)

	_, err := r.NextBatch()
	require.Error(t, err)
	assert.True(t, saserrors.IsCode(err, saserrors.CodeNullPointer))

	_, err = r.Schema()
	require.Error(t, err)
	assert.True(t, saserrors.IsCode(err, saserrors.CodeNullPointer))
}

func TestSchemaResolvedLazilyOnFirstNext(t *testing.T) {
	r, eng := openFixture(t, newFixture(t))

	it := r.Iter()
	batch, err := it.Next()
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, 1, eng.Stats("test.sas7bdat").SchemaExports)
}

func BenchmarkStreamDecode(b *testing.B) {
	mem := memory.NewGoAllocator()
	sch := fixtureSchema()

	rows := make([]row, 1024)
	for i := range rows {
		rows[i] = row{
			name:  str("row"),
			value: num(float64(i)),
			day:   num(18700),
			stamp: num(315619205),
			clock: num(3.5),
		}
	}
	rec := buildBatch(mem, sch, rows)
	defer rec.Release()

	f := &enginetest.Fixture{Schema: sch, Batches: []arrow.Record{rec}}
	eng := enginetest.New()
	eng.Add("bench.sas7bdat", f)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, err := reader.Open(eng, "bench.sas7bdat", 0, nil)
		if err != nil {
			b.Fatal(err)
		}
		it := r.Iter()
		for {
			batch, err := it.Next()
			if err != nil {
				b.Fatal(err)
			}
			if batch == nil {
				break
			}
		}
		_ = r.Close()
	}
	b.ReportMetric(float64(len(rows)*b.N), "rows/op")
}
