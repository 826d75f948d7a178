// Package arrowfile implements the decoding-engine ABI over Arrow IPC files.
//
// It serves tooling and integration testing: a dataset decoded once from its
// native format and captured as an Arrow IPC file replays through the same
// reader surface the native decoder exposes, including batch re-chunking,
// the forward cursor, random access and the release-callback ownership
// contract. A cgo binding to the native decoder registers under its own name
// next to this one.
package arrowfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quartzdata/sasarrow/pkg/engine"
)

// Name is the registry name of this engine.
const Name = "arrowfile"

// DefaultBatchSize is the row count used when the caller requests the engine
// default.
const DefaultBatchSize = 65536

func init() {
	engine.Register(Name, func() engine.Engine { return New() })
}

// Engine opens Arrow IPC files behind the decoding-engine ABI.
type Engine struct {
	mu      sync.Mutex
	lastErr string
	alloc   memory.Allocator
}

// New creates an arrowfile engine using the default allocator.
func New() *Engine {
	return &Engine{alloc: memory.DefaultAllocator}
}

// NewWithAllocator creates an arrowfile engine using the given allocator.
func NewWithAllocator(alloc memory.Allocator) *Engine {
	return &Engine{alloc: alloc}
}

// Open implements engine.Engine.
func (e *Engine) Open(path string, batchSize uint32) (engine.Reader, engine.StatusCode) {
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}

	f, err := os.Open(path)
	if err != nil {
		e.setErr(fmt.Sprintf("open %s: %v", path, err))
		return nil, engine.StatusFileNotFound
	}

	fr, err := ipc.NewFileReader(f, ipc.WithAllocator(e.alloc))
	if err != nil {
		_ = f.Close()
		e.setErr(fmt.Sprintf("read %s: %v", path, err))
		return nil, engine.StatusInvalidFile
	}

	r := &fileReader{f: f, fr: fr, batchSize: batchSize}
	if st := r.index(); !st.OK() {
		e.setErr(r.lastErr)
		r.Destroy()
		return nil, st
	}
	return r, engine.StatusOK
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

// sliceRef addresses one engine batch as a row range inside a stored record.
type sliceRef struct {
	rec   int
	start int64
	end   int64
}

type fileReader struct {
	f         *os.File
	fr        *ipc.FileReader
	batchSize uint32
	info      engine.Info
	slices    []sliceRef
	cursor    int
	destroyed bool
	lastErr   string
}

// index scans the file once, splitting stored records into batchSize-row
// slices and fixing the file-level counts.
func (r *fileReader) index() engine.StatusCode {
	var totalRows uint64
	size := int64(r.batchSize)

	for ri := 0; ri < r.fr.NumRecords(); ri++ {
		rec, err := r.fr.RecordAt(ri)
		if err != nil {
			r.lastErr = fmt.Sprintf("record %d: %v", ri, err)
			return engine.StatusInvalidFile
		}
		rows := rec.NumRows()
		rec.Release()

		totalRows += uint64(rows)
		for start := int64(0); start < rows; start += size {
			end := start + size
			if end > rows {
				end = rows
			}
			r.slices = append(r.slices, sliceRef{rec: ri, start: start, end: end})
		}
	}

	r.info = engine.Info{
		RowCount:    totalRows,
		ColumnCount: uint32(len(r.fr.Schema().Fields())),
		BatchCount:  uint32(len(r.slices)),
		BatchSize:   r.batchSize,
	}
	return engine.StatusOK
}

func (r *fileReader) Info() (engine.Info, engine.StatusCode) {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return engine.Info{}, engine.StatusNullPointer
	}
	return r.info, engine.StatusOK
}

func (r *fileReader) ExportSchema() (*engine.RawSchema, engine.StatusCode) {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return nil, engine.StatusNullPointer
	}

	fields := r.fr.Schema().Fields()
	st := arrow.StructOf(fields...)
	return engine.NewRawSchema(st, func() {}), engine.StatusOK
}

func (r *fileReader) NextBatch() (*engine.RawBatch, engine.StatusCode) {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return nil, engine.StatusNullPointer
	}
	if r.cursor >= len(r.slices) {
		return nil, engine.StatusEndOfData
	}

	batch, st := r.load(r.cursor)
	if !st.OK() {
		return nil, st
	}
	r.cursor++
	return batch, engine.StatusOK
}

func (r *fileReader) BatchAt(i uint32) (*engine.RawBatch, engine.StatusCode) {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return nil, engine.StatusNullPointer
	}
	if int(i) >= len(r.slices) {
		r.lastErr = fmt.Sprintf("batch index %d out of range [0, %d)", i, len(r.slices))
		return nil, engine.StatusInvalidBatchIndex
	}
	return r.load(int(i))
}

// load materializes one slice. The returned batch owns a retained view of
// the stored record; its release callback drops both the slice and the
// parent record.
func (r *fileReader) load(i int) (*engine.RawBatch, engine.StatusCode) {
	ref := r.slices[i]

	rec, err := r.fr.RecordAt(ref.rec)
	if err != nil {
		r.lastErr = fmt.Sprintf("record %d: %v", ref.rec, err)
		return nil, engine.StatusInternalError
	}

	slice := rec.NewSlice(ref.start, ref.end)
	return engine.NewRawBatch(slice, func() {
		slice.Release()
		rec.Release()
	}), engine.StatusOK
}

func (r *fileReader) Reset() engine.StatusCode {
	if r.destroyed {
		r.lastErr = "reader destroyed"
		return engine.StatusNullPointer
	}
	r.cursor = 0
	return engine.StatusOK
}

func (r *fileReader) LastError() string {
	return r.lastErr
}

func (r *fileReader) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	_ = r.fr.Close()
	_ = r.f.Close()
}
