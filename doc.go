// Package sasarrow is a streaming bridge between column-oriented statistical
// table files (SAS7BDAT) and the Arrow columnar interchange.
//
// A pluggable decoding engine parses the source file's physical byte layout
// and hands out row batches as engine-owned columnar buffers under an
// explicit exactly-once release contract. The bridge resolves the engine's
// raw schema into a semantic column schema once per reader, decodes every
// batch through that cached schema into consumer-owned, semantically-typed
// batches, and exposes sequential, random-access and streaming views over
// them.
//
// # Layout
//
//   - pkg/engine: the decoding-engine ABI, status contract and raw buffer
//     ownership rules, plus the engine registry
//   - pkg/engine/arrowfile: engine implementation over Arrow IPC captures
//   - pkg/engine/enginetest: instrumented in-memory engine for tests
//   - pkg/schema: raw-to-semantic schema resolution and caching
//   - pkg/scalar: pure scalar decoding with SAS epoch conversions
//   - pkg/reader: batch transport, decoded batches, streaming iterator
//   - pkg/saserrors: structured errors over the closed code taxonomy
//   - internal/export: batch export to JSON lines or Arrow IPC
//   - cmd/sasarrow: command-line tooling
//
// # Basic usage
//
//	eng, _ := engine.Create("arrowfile")
//	r, err := reader.Open(eng, "data.arrow", 0, nil)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	it := r.Iter()
//	for {
//	    batch, err := it.Next()
//	    if err != nil {
//	        return err
//	    }
//	    if batch == nil {
//	        break // stream exhausted
//	    }
//	    // consume batch
//	}
package sasarrow
