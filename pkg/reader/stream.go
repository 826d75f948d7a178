package reader

import (
	"github.com/quartzdata/sasarrow/pkg/saserrors"
)

// Iterator is a forward-only, non-restartable stream of decoded batches over
// a reader's forward cursor. End of data terminates the stream cleanly; any
// other error is returned exactly once and is terminal. A finished iterator
// issues no further transport calls.
//
// Restarting is explicit: Reset the reader and construct a new Iterator.
type Iterator struct {
	r        *Reader
	finished bool
}

// Next returns the next decoded batch. It returns (nil, nil) once the stream
// is exhausted, and keeps returning (nil, nil) on every later call. A non
// end-of-data failure finishes the stream and is surfaced exactly once.
func (it *Iterator) Next() (*Batch, error) {
	if it.finished {
		return nil, nil
	}

	batch, err := it.r.NextBatch()
	if err != nil {
		it.finished = true
		if saserrors.IsEndOfData(err) {
			return nil, nil
		}
		return nil, err
	}
	return batch, nil
}

// Finished reports whether the stream has terminated, by exhaustion or by
// error.
func (it *Iterator) Finished() bool {
	return it.finished
}
