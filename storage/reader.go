package storage

import (
	"fmt"
	"io"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrShortRead = errors.New("short read")

// ReadError reports a block that could not be read in full.
type ReadError struct {
	Offset int64
	Size   int64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d bytes at offset %d: %v", e.Size, e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type ReaderMetrics struct {
	blockReads   prometheus.Counter
	readsFailed  prometheus.Counter
	readDuration prometheus.Summary
}

func NewReaderMetrics(registerer prometheus.Registerer) *ReaderMetrics {
	m := &ReaderMetrics{}

	m.blockReads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "block_reads_total",
		Help: "Total number of positioned block reads.",
	})

	m.readsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "block_reads_failed_total",
		Help: "Total number of block reads that failed or came back short.",
	})

	m.readDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Name:       "block_read_duration_seconds",
		Help:       "Duration of positioned block reads.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})

	if registerer != nil {
		registerer.MustRegister(m.blockReads, m.readsFailed, m.readDuration)
	}

	return m
}

// BlockFunc receives each block of a range. block is only valid until it returns.
type BlockFunc func(offset int64, block []byte) error

// BlockReader splits byte ranges into block sized positioned reads.
type BlockReader struct {
	logger    log.Logger
	dev       io.ReaderAt
	blockSize int64
	pool      *BlockPool
	metrics   *ReaderMetrics
}

func NewBlockReader(logger log.Logger, registerer prometheus.Registerer, dev io.ReaderAt, blockSize int64) *BlockReader {
	return &BlockReader{
		logger:    logger,
		dev:       dev,
		blockSize: blockSize,
		pool:      NewBlockPool(blockSize),
		metrics:   NewReaderMetrics(registerer),
	}
}

func (r *BlockReader) BlockSize() int64 {
	return r.blockSize
}

// ReadRange reads whole blocks starting at offset while at least one block of
// length remains. A flush range only yields its first block. The first failed
// read aborts the range with a *ReadError.
func (r *BlockReader) ReadRange(offset, length int64, flush bool, fn BlockFunc) error {
	buf := r.pool.GetBlock()
	defer r.pool.PutBlock(buf)

	block := *buf

	for length >= r.blockSize && length > 0 {
		if err := r.read(block, offset); err != nil {
			return err
		}

		if err := fn(offset, block); err != nil {
			return err
		}

		if flush {
			break
		}

		offset += r.blockSize
		length -= r.blockSize
	}

	return nil
}

func (r *BlockReader) read(block []byte, offset int64) error {
	now := time.Now()
	n, err := r.dev.ReadAt(block, offset)
	r.metrics.readDuration.Observe(time.Since(now).Seconds())
	r.metrics.blockReads.Inc()

	if n == len(block) {
		// io.ReaderAt may report io.EOF alongside a full read at the end of the device.
		return nil
	}

	if err == nil || errors.Is(err, io.EOF) {
		err = errors.Wrapf(ErrShortRead, "got %d of %d bytes", n, len(block))
	}

	r.metrics.readsFailed.Inc()
	level.Error(r.logger).Log("msg", "block read failed", "offset", offset, "size", len(block), "err", err)

	return &ReadError{Offset: offset, Size: int64(len(block)), Err: err}
}
