// Package enginetest provides an instrumented in-memory decoding engine for
// tests: fixtures registered under fake paths, per-batch release counters to
// verify the exactly-once ownership law, call counters to verify caching and
// exhaustion behavior, and injectable failures for every operation.
package enginetest

import (
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quartzdata/sasarrow/pkg/engine"
)

// Fixture is one fake file: a physical schema plus its stored batches.
// Records added to a fixture are retained by the test that built them; the
// fixture only hands out retained views.
type Fixture struct {
	Schema  *arrow.Schema
	Batches []arrow.Record

	// Injectable failures. A zero value means success.
	OpenStatus   engine.StatusCode
	InfoStatus   engine.StatusCode
	SchemaStatus engine.StatusCode
	// BatchStatus fails the fetch of a specific batch index (shared by the
	// cursor and random access paths).
	BatchStatus map[int]engine.StatusCode
	// Detail is the last-error text accompanying injected failures.
	Detail string
}

func (f *Fixture) rows() uint64 {
	var n uint64
	for _, rec := range f.Batches {
		n += uint64(rec.NumRows())
	}
	return n
}

// Stats counts the physical calls and releases observed by one reader.
type Stats struct {
	mu sync.Mutex

	SchemaExports  int
	SchemaReleases int
	NextCalls      int
	AtCalls        int
	ResetCalls     int
	Destroys       int
	// BatchReleases counts release-callback invocations per fetched batch,
	// keyed by fetch order (each fetch gets its own entry).
	BatchReleases []int
}

// ReleaseCounts returns a copy of the per-fetch release counters.
func (s *Stats) ReleaseCounts() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.BatchReleases))
	copy(out, s.BatchReleases)
	return out
}

// TransportCalls returns the total number of batch-fetch calls issued.
func (s *Stats) TransportCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.NextCalls + s.AtCalls
}

// Engine is the instrumented fake engine.
type Engine struct {
	mu       sync.Mutex
	fixtures map[string]*Fixture
	stats    map[string]*Stats
	lastErr  string
}

// New creates an empty fake engine.
func New() *Engine {
	return &Engine{
		fixtures: make(map[string]*Fixture),
		stats:    make(map[string]*Stats),
	}
}

// Add registers a fixture under a fake path.
func (e *Engine) Add(path string, f *Fixture) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fixtures[path] = f
	e.stats[path] = &Stats{}
}

// Stats returns the instrumentation for the given path.
func (e *Engine) Stats(path string) *Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats[path]
}

// Open implements engine.Engine.
func (e *Engine) Open(path string, batchSize uint32) (engine.Reader, engine.StatusCode) {
	e.mu.Lock()
	f, ok := e.fixtures[path]
	stats := e.stats[path]
	e.mu.Unlock()

	if !ok {
		e.setErr(fmt.Sprintf("no such fixture: %s", path))
		return nil, engine.StatusFileNotFound
	}
	if !f.OpenStatus.OK() {
		e.setErr(f.Detail)
		return nil, f.OpenStatus
	}

	return &fakeReader{fixture: f, stats: stats, batchSize: batchSize}, engine.StatusOK
}

// LastError implements engine.Engine.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) setErr(msg string) {
	e.mu.Lock()
	e.lastErr = msg
	e.mu.Unlock()
}

type fakeReader struct {
	fixture   *Fixture
	stats     *Stats
	batchSize uint32
	cursor    int
	destroyed bool
	lastErr   string
}

func (r *fakeReader) Info() (engine.Info, engine.StatusCode) {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return engine.Info{}, engine.StatusNullPointer
	}
	if !r.fixture.InfoStatus.OK() {
		r.lastErr = r.fixture.Detail
		return engine.Info{}, r.fixture.InfoStatus
	}

	return engine.Info{
		RowCount:    r.fixture.rows(),
		ColumnCount: uint32(len(r.fixture.Schema.Fields())),
		BatchCount:  uint32(len(r.fixture.Batches)),
		BatchSize:   r.batchSize,
	}, engine.StatusOK
}

func (r *fakeReader) ExportSchema() (*engine.RawSchema, engine.StatusCode) {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return nil, engine.StatusNullPointer
	}
	if !r.fixture.SchemaStatus.OK() {
		r.lastErr = r.fixture.Detail
		return nil, r.fixture.SchemaStatus
	}

	r.stats.mu.Lock()
	r.stats.SchemaExports++
	r.stats.mu.Unlock()

	st := arrow.StructOf(r.fixture.Schema.Fields()...)
	return engine.NewRawSchema(st, func() {
		r.stats.mu.Lock()
		r.stats.SchemaReleases++
		r.stats.mu.Unlock()
	}), engine.StatusOK
}

func (r *fakeReader) NextBatch() (*engine.RawBatch, engine.StatusCode) {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return nil, engine.StatusNullPointer
	}

	r.stats.mu.Lock()
	r.stats.NextCalls++
	r.stats.mu.Unlock()

	if r.cursor >= len(r.fixture.Batches) {
		return nil, engine.StatusEndOfData
	}
	batch, st := r.fetch(r.cursor)
	if !st.OK() {
		return nil, st
	}
	r.cursor++
	return batch, engine.StatusOK
}

func (r *fakeReader) BatchAt(i uint32) (*engine.RawBatch, engine.StatusCode) {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return nil, engine.StatusNullPointer
	}

	r.stats.mu.Lock()
	r.stats.AtCalls++
	r.stats.mu.Unlock()

	if int(i) >= len(r.fixture.Batches) {
		r.lastErr = fmt.Sprintf("batch index %d out of range [0, %d)", i, len(r.fixture.Batches))
		return nil, engine.StatusInvalidBatchIndex
	}
	return r.fetch(int(i))
}

func (r *fakeReader) fetch(i int) (*engine.RawBatch, engine.StatusCode) {
	if st, bad := r.fixture.BatchStatus[i]; bad && !st.OK() {
		r.lastErr = r.fixture.Detail
		return nil, st
	}

	rec := r.fixture.Batches[i]
	rec.Retain()

	r.stats.mu.Lock()
	slot := len(r.stats.BatchReleases)
	r.stats.BatchReleases = append(r.stats.BatchReleases, 0)
	r.stats.mu.Unlock()

	return engine.NewRawBatch(rec, func() {
		rec.Release()
		r.stats.mu.Lock()
		r.stats.BatchReleases[slot]++
		r.stats.mu.Unlock()
	}), engine.StatusOK
}

func (r *fakeReader) Reset() engine.StatusCode {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return engine.StatusNullPointer
	}

	r.stats.mu.Lock()
	r.stats.ResetCalls++
	r.stats.mu.Unlock()

	r.cursor = 0
	return engine.StatusOK
}

func (r *fakeReader) LastError() string {
	return r.lastErr
}

func (r *fakeReader) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true

	r.stats.mu.Lock()
	r.stats.Destroys++
	r.stats.mu.Unlock()
}
