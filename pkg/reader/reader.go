// Package reader implements the batch transport over a decoding engine: it
// owns the engine reader handle, resolves and caches the schema through the
// schema bridge, and exposes sequential, random-access and streaming views of
// the file's batches with explicit release of every raw buffer on every exit
// path.
package reader

import (
	"sync"

	"go.uber.org/zap"

	"github.com/quartzdata/sasarrow/pkg/engine"
	"github.com/quartzdata/sasarrow/pkg/logger"
	"github.com/quartzdata/sasarrow/pkg/saserrors"
	"github.com/quartzdata/sasarrow/pkg/schema"
)

// Reader is one open source file. It exclusively owns the underlying engine
// handle: no method is safe to invoke concurrently with another on the same
// Reader. BatchAt shares no cursor state with NextBatch, so the two access
// modes stay independently consistent, but they still must not run
// concurrently.
type Reader struct {
	mu     sync.Mutex
	rd     engine.Reader
	bridge *schema.Bridge
	info   engine.Info
	path   string
	log    *zap.Logger
	closed bool
}

// Open opens the file at path through the given engine. batchSize 0 requests
// the engine's default. The returned Reader must be closed exactly once when
// no further operations will be issued.
func Open(eng engine.Engine, path string, batchSize uint32, log *zap.Logger) (*Reader, error) {
	if log == nil {
		log = logger.Get()
	}
	log = log.With(zap.String("file", path))

	rd, st := eng.Open(path, batchSize)
	if !st.OK() {
		return nil, translate(st, eng.LastError()).WithDetail("file", path)
	}

	info, st := rd.Info()
	if !st.OK() {
		detail := rd.LastError()
		rd.Destroy()
		return nil, translate(st, detail).WithDetail("file", path)
	}

	r := &Reader{
		rd:   rd,
		info: info,
		path: path,
		log:  log,
	}
	r.bridge = schema.NewBridge(r.exportSchema, info.RowCount, info.BatchCount)

	log.Debug("reader opened",
		zap.Uint64("rows", info.RowCount),
		zap.Uint32("columns", info.ColumnCount),
		zap.Uint32("batches", info.BatchCount),
		zap.Uint32("batch_size", info.BatchSize))

	return r, nil
}

// exportSchema is the bridge's exporter: one physical schema export, released
// by the bridge after conversion on success and failure alike.
func (r *Reader) exportSchema() (*engine.RawSchema, error) {
	raw, st := r.rd.ExportSchema()
	if !st.OK() {
		return nil, translate(st, r.rd.LastError()).WithDetail("file", r.path)
	}
	return raw, nil
}

// Info returns the file-level counts captured at open. Repeatable; values
// are immutable for the reader's lifetime.
func (r *Reader) Info() engine.Info {
	return r.info
}

// Schema returns the resolved semantic schema, resolving and caching it on
// first call. Subsequent calls are served from the cache without touching the
// engine.
func (r *Reader) Schema() (*schema.Schema, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	return r.bridge.Schema()
}

// NextBatch fetches and decodes the next batch in forward order. Past the
// last batch it returns an end-of-data error; callers streaming batches
// should use Iter, which consumes that signal and terminates cleanly.
func (r *Reader) NextBatch() (*Batch, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}

	raw, st := r.rd.NextBatch()
	if !st.OK() {
		return nil, translate(st, r.rd.LastError()).WithDetail("file", r.path)
	}
	return r.decode(raw)
}

// BatchAt fetches and decodes batch i without disturbing the forward cursor.
// Returns an invalid-batch-index error for i >= Info().BatchCount.
func (r *Reader) BatchAt(i uint32) (*Batch, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}

	raw, st := r.rd.BatchAt(i)
	if !st.OK() {
		return nil, translate(st, r.rd.LastError()).
			WithDetail("file", r.path).
			WithDetail("batch_index", i)
	}
	return r.decode(raw)
}

// decode runs the raw batch through the cached schema, releasing the raw
// buffer on every path once its contents are fully copied out.
func (r *Reader) decode(raw *engine.RawBatch) (*Batch, error) {
	defer raw.Release()

	sch, err := r.bridge.Schema()
	if err != nil {
		return nil, err
	}
	return decodeBatch(raw, sch)
}

// Reset rewinds the forward cursor to batch 0. The cached schema survives.
func (r *Reader) Reset() error {
	if err := r.guard(); err != nil {
		return err
	}

	if st := r.rd.Reset(); !st.OK() {
		return translate(st, r.rd.LastError()).WithDetail("file", r.path)
	}
	return nil
}

// Iter returns a forward-only stream over this reader's remaining batches.
// The iterator is not restartable; restart is an explicit Reset followed by a
// new Iter.
func (r *Reader) Iter() *Iterator {
	return &Iterator{r: r}
}

// Close destroys the engine handle. The first call wins; later calls are
// no-ops. Any other method called after Close returns a null-pointer error.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.rd.Destroy()
	r.log.Debug("reader closed")
	return nil
}

func (r *Reader) guard() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return saserrors.New(saserrors.CodeNullPointer, "reader used after close").
			WithDetail("file", r.path)
	}
	return nil
}
