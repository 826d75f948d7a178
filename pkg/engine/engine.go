// Package engine defines the ABI of the SAS7BDAT decoding engine: the status
// contract, the reader handle surface, and the raw columnar descriptors whose
// backing memory is handed across the boundary under an explicit exactly-once
// release contract.
//
// The engine itself is an external collaborator. This package only fixes the
// boundary; implementations live in subpackages (arrowfile for Arrow IPC
// backed tooling, enginetest for instrumented in-memory fakes) or behind cgo
// bindings to the native decoder.
//
// # Ownership
//
// Every RawSchema and RawBatch returned by a Reader transfers ownership of its
// backing memory to the caller. The caller must invoke Release exactly once on
// every exit path once the contents have been fully copied or logically
// transferred. Release is idempotent-guarded so a disciplined deferred release
// never double-frees, but relying on that guard instead of scoped release is a
// contract violation on the producing side.
package engine

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// StatusCode is the engine's numeric status contract. Zero is success; every
// non-zero code must reach the caller or be classified as end-of-data.
type StatusCode uint32

const (
	StatusOK                StatusCode = 0
	StatusFileNotFound      StatusCode = 1
	StatusInvalidFile       StatusCode = 2
	StatusOutOfMemory       StatusCode = 3
	StatusInternalError     StatusCode = 4
	StatusEndOfData         StatusCode = 5
	StatusInvalidBatchIndex StatusCode = 6
	StatusNullPointer       StatusCode = 7
)

// OK reports whether the status is success.
func (s StatusCode) OK() bool {
	return s == StatusOK
}

// IsEndOfData reports whether the status is the stream-exhaustion signal.
func (s StatusCode) IsEndOfData() bool {
	return s == StatusEndOfData
}

// Message returns the statically-known message for the status.
func (s StatusCode) Message() string {
	switch s {
	case StatusOK:
		return "success"
	case StatusFileNotFound:
		return "file not found or cannot be opened"
	case StatusInvalidFile:
		return "invalid SAS7BDAT file format"
	case StatusOutOfMemory:
		return "out of memory"
	case StatusInternalError:
		return "engine error"
	case StatusEndOfData:
		return "end of data reached"
	case StatusInvalidBatchIndex:
		return "invalid batch index"
	case StatusNullPointer:
		return "null pointer provided"
	default:
		return "unknown error"
	}
}

// Info describes an open file. Values are immutable for the handle's lifetime
// and may be queried any number of times.
type Info struct {
	RowCount    uint64
	ColumnCount uint32
	BatchCount  uint32
	BatchSize   uint32
}

// Engine opens source files and reports the last error captured on open
// failures.
type Engine interface {
	// Open creates a reader over the file at path. batchSize 0 requests the
	// engine default. On failure the returned reader is nil and LastError
	// carries detail.
	Open(path string, batchSize uint32) (Reader, StatusCode)

	// LastError returns the most recent error detail captured by the engine,
	// or "" if none.
	LastError() string
}

// Reader is one open file plus its batch-size configuration. A Reader is
// exclusively owned by one logical stream at a time: no call below is safe to
// issue concurrently with another call on the same Reader. BatchAt is the only
// operation documented safe to interleave with NextBatch because it shares no
// cursor state.
type Reader interface {
	// Info returns file-level counts. Repeatable.
	Info() (Info, StatusCode)

	// ExportSchema hands out the raw columnar schema descriptor. Ownership of
	// the descriptor transfers to the caller, which must release it after
	// conversion whether or not conversion succeeds. Callers are expected to
	// invoke this at most once per reader and cache the result.
	ExportSchema() (*RawSchema, StatusCode)

	// NextBatch advances the forward cursor and hands out the next raw batch,
	// or StatusEndOfData past the last batch. Must not be called again after
	// end-of-data or a non-recoverable error without an intervening Reset.
	NextBatch() (*RawBatch, StatusCode)

	// BatchAt hands out batch i without disturbing the forward cursor.
	// Returns StatusInvalidBatchIndex for i >= the file's batch count.
	BatchAt(i uint32) (*RawBatch, StatusCode)

	// Reset rewinds the forward cursor to batch 0.
	Reset() StatusCode

	// LastError returns the most recent error detail captured on this
	// reader, or "" if none.
	LastError() string

	// Destroy frees the underlying handle. Must be the last call on the
	// reader; safe to invoke exactly once.
	Destroy()
}

// RawSchema is an engine-owned schema descriptor in the columnar interchange
// layout: a struct-typed container whose children are the table's columns.
// Ownership transfers to the receiver at export time.
type RawSchema struct {
	// Type is the struct-typed container describing the columns. Any other
	// physical shape is a contract violation on the engine side.
	Type arrow.DataType

	release  func()
	released bool
}

// NewRawSchema wraps a type descriptor with its release callback. Engine
// implementations call this; consumers only call Release.
func NewRawSchema(dt arrow.DataType, release func()) *RawSchema {
	return &RawSchema{Type: dt, release: release}
}

// Release invokes the schema's release callback. Exactly one invocation
// reaches the engine; further calls are no-ops.
func (s *RawSchema) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	if s.release != nil {
		s.release()
	}
}

// Released reports whether the descriptor has been released.
func (s *RawSchema) Released() bool {
	return s.released
}

// RawBatch is one engine-owned row batch in the columnar interchange layout:
// buffers, children and a release callback. Ownership of the backing memory
// transfers to the receiver at fetch time; the data must be fully copied or
// logically transferred into a decoded batch before Release fires.
type RawBatch struct {
	// Rec is the physical batch. Invalid once Release has been called.
	Rec arrow.Record

	release  func()
	released bool
}

// NewRawBatch wraps a record with its release callback.
func NewRawBatch(rec arrow.Record, release func()) *RawBatch {
	return &RawBatch{Rec: rec, release: release}
}

// Release invokes the batch's release callback. Exactly one invocation
// reaches the engine; further calls are no-ops.
func (b *RawBatch) Release() {
	if b == nil || b.released {
		return
	}
	b.released = true
	if b.release != nil {
		b.release()
	}
}

// Released reports whether the batch has been released.
func (b *RawBatch) Released() bool {
	return b.released
}

// NumRows returns the batch's row count, or 0 after release.
func (b *RawBatch) NumRows() int64 {
	if b == nil || b.released || b.Rec == nil {
		return 0
	}
	return b.Rec.NumRows()
}
