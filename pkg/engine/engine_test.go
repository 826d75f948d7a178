package engine

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
)

func TestStatusCodeMessages(t *testing.T) {
	tests := []struct {
		st   StatusCode
		want string
	}{
		{StatusOK, "success"},
		{StatusFileNotFound, "file not found or cannot be opened"},
		{StatusInvalidFile, "invalid SAS7BDAT file format"},
		{StatusOutOfMemory, "out of memory"},
		{StatusInternalError, "engine error"},
		{StatusEndOfData, "end of data reached"},
		{StatusInvalidBatchIndex, "invalid batch index"},
		{StatusNullPointer, "null pointer provided"},
		{StatusCode(99), "unknown error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.st.Message())
	}

	assert.True(t, StatusOK.OK())
	assert.False(t, StatusEndOfData.OK())
	assert.True(t, StatusEndOfData.IsEndOfData())
}

func TestRawSchemaReleaseExactlyOnce(t *testing.T) {
	var released int
	s := NewRawSchema(arrow.StructOf(), func() { released++ })

	assert.False(t, s.Released())
	s.Release()
	s.Release()
	s.Release()

	assert.True(t, s.Released())
	assert.Equal(t, 1, released, "release callback fires exactly once")
}

func TestRawBatchReleaseExactlyOnce(t *testing.T) {
	var released int
	b := NewRawBatch(nil, func() { released++ })

	b.Release()
	b.Release()

	assert.True(t, b.Released())
	assert.Equal(t, 1, released)
	assert.Equal(t, int64(0), b.NumRows())
}

func TestNilReleaseSafe(t *testing.T) {
	var b *RawBatch
	assert.NotPanics(t, func() { b.Release() })

	var s *RawSchema
	assert.NotPanics(t, func() { s.Release() })
}

func TestRegistry(t *testing.T) {
	Register("test-engine", func() Engine { return nil })

	eng, err := Create("test-engine")
	assert.NoError(t, err)
	assert.Nil(t, eng)

	_, err = Create("missing-engine")
	assert.Error(t, err)

	assert.Contains(t, List(), "test-engine")

	assert.Panics(t, func() {
		Register("test-engine", func() Engine { return nil })
	})
}
