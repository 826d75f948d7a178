// Package export drives a reader's batch stream into a sink: JSON lines for
// inspection pipelines, or an Arrow IPC file preserving the semantic schema.
// It is the bridge's stand-in for a downstream tabular consumer and backs the
// CLI export command.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quartzdata/sasarrow/pkg/reader"
)

// Format selects the sink encoding.
type Format string

const (
	// FormatJSONL writes one JSON object per row.
	FormatJSONL Format = "jsonl"
	// FormatIPC writes an Arrow IPC file of decoded batches.
	FormatIPC Format = "ipc"
)

// Result summarizes a completed export.
type Result struct {
	Batches  int
	Rows     int64
	Duration time.Duration
}

// Run streams every remaining batch from the reader's iterator into w. The
// context bounds the whole export; it is checked between batches since
// individual decode calls block for their full duration.
func Run(ctx context.Context, r *reader.Reader, w io.Writer, format Format, log *zap.Logger) (*Result, error) {
	start := time.Now()

	var res *Result
	var err error
	switch format {
	case FormatJSONL:
		res, err = runJSONL(ctx, r, w)
	case FormatIPC:
		res, err = runIPC(ctx, r, w)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	if log != nil {
		log.Info("export completed",
			zap.Int("batches", res.Batches),
			zap.Int64("rows", res.Rows),
			zap.Duration("duration", res.Duration))
	}
	return res, nil
}

func runJSONL(ctx context.Context, r *reader.Reader, w io.Writer) (*Result, error) {
	sch, err := r.Schema()
	if err != nil {
		return nil, err
	}
	names := sch.Names()

	enc := gojson.NewEncoder(w)
	res := &Result{}
	it := r.Iter()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := it.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return res, nil
		}

		rows := batch.Rows()
		for row, ok := rows.Next(); ok; row, ok = rows.Next() {
			obj := make(map[string]interface{}, len(names))
			for i, name := range names {
				obj[name] = row[i].Interface()
			}
			if err := enc.Encode(obj); err != nil {
				return nil, fmt.Errorf("encode row: %w", err)
			}
		}

		res.Batches++
		res.Rows += int64(batch.NumRows())
	}
}

func runIPC(ctx context.Context, r *reader.Reader, w io.Writer) (*Result, error) {
	mem := memory.DefaultAllocator
	res := &Result{}
	it := r.Iter()

	var fw *ipc.FileWriter
	defer func() {
		if fw != nil {
			_ = fw.Close()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := it.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			if fw != nil {
				if err := fw.Close(); err != nil {
					fw = nil
					return nil, fmt.Errorf("close IPC writer: %w", err)
				}
				fw = nil
			}
			return res, nil
		}

		rec, err := batch.Record(mem)
		if err != nil {
			return nil, err
		}

		if fw == nil {
			fw, err = ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
			if err != nil {
				rec.Release()
				return nil, fmt.Errorf("create IPC writer: %w", err)
			}
		}

		err = fw.Write(rec)
		rec.Release()
		if err != nil {
			return nil, fmt.Errorf("write batch: %w", err)
		}

		res.Batches++
		res.Rows += int64(batch.NumRows())
	}
}
