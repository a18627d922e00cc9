package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBlockSize = 4096

// writeImage creates an image of n blocks whose last byte is the block index.
func writeImage(t *testing.T, n int) string {
	t.Helper()

	data := make([]byte, n*testBlockSize)
	for i := 0; i < n; i++ {
		data[(i+1)*testBlockSize-1] = byte(i)
	}

	path := filepath.Join(t.TempDir(), "fdb.img")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func openTestReader(t *testing.T, n int) (*BlockReader, *prometheus.Registry) {
	t.Helper()

	dev, err := OpenDevice(writeImage(t, n))
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })

	registry := prometheus.NewRegistry()

	return NewBlockReader(log.NewNopLogger(), registry, dev, testBlockSize), registry
}

type visit struct {
	offset int64
	last   byte
}

func collect(visits *[]visit) BlockFunc {
	return func(offset int64, block []byte) error {
		*visits = append(*visits, visit{offset: offset, last: block[len(block)-1]})
		return nil
	}
}

func TestOpenDeviceMissing(t *testing.T) {
	_, err := OpenDevice(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestReadRangeSplitsIntoBlocks(t *testing.T) {
	r, registry := openTestReader(t, 8)

	var visits []visit
	require.NoError(t, r.ReadRange(8192, 8192, false, collect(&visits)))

	assert.Equal(t, []visit{{8192, 2}, {12288, 3}}, visits)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.metrics.blockReads))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.metrics.readsFailed))

	n, err := testutil.GatherAndCount(registry, "block_reads_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReadRangeIgnoresPartialTail(t *testing.T) {
	r, _ := openTestReader(t, 8)

	var visits []visit
	require.NoError(t, r.ReadRange(0, 3*testBlockSize+512, false, collect(&visits)))

	assert.Len(t, visits, 3)
}

func TestReadRangeShorterThanBlock(t *testing.T) {
	r, _ := openTestReader(t, 8)

	var visits []visit
	require.NoError(t, r.ReadRange(0, 512, false, collect(&visits)))
	require.NoError(t, r.ReadRange(0, 0, false, collect(&visits)))

	assert.Empty(t, visits)
}

func TestReadRangeFlushReadsFirstBlockOnly(t *testing.T) {
	r, _ := openTestReader(t, 8)

	var visits []visit
	require.NoError(t, r.ReadRange(4096, 4*testBlockSize, true, collect(&visits)))

	assert.Equal(t, []visit{{4096, 1}}, visits)
}

func TestReadRangePastEndOfDevice(t *testing.T) {
	r, _ := openTestReader(t, 2)

	var visits []visit
	err := r.ReadRange(4096, 2*testBlockSize, false, collect(&visits))
	require.Error(t, err)

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, int64(8192), readErr.Offset)
	assert.Equal(t, int64(testBlockSize), readErr.Size)

	assert.Len(t, visits, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.readsFailed))
}

func TestReadRangeUnalignedTailIsShortRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.img")
	require.NoError(t, os.WriteFile(path, make([]byte, testBlockSize+100), 0o644))

	dev, err := OpenDevice(path)
	require.NoError(t, err)
	defer dev.Close()

	r := NewBlockReader(log.NewNopLogger(), nil, dev, testBlockSize)

	err = r.ReadRange(testBlockSize, testBlockSize, false, func(int64, []byte) error { return nil })
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestBlockPoolReturnsBlockSizedBuffers(t *testing.T) {
	p := NewBlockPool(512)

	b := p.GetBlock()
	assert.Len(t, *b, 512)

	*b = (*b)[:10]
	p.PutBlock(b)

	b = p.GetBlock()
	assert.Len(t, *b, 512)
}
