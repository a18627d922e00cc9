// Package inspect drives the trace through classification and block inspection.
package inspect

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"fdbinspect/config"
	"fdbinspect/marker"
	"fdbinspect/storage"
	"fdbinspect/trace"
)

const (
	fieldSector  = 7
	fieldSectors = 9

	placeholder = "00"
)

// Inspector is the run context: configuration, the open device, and the
// counters. Process and Run must not be called concurrently.
type Inspector struct {
	logger     log.Logger
	cfg        config.Config
	classifier *trace.Classifier
	reader     *storage.BlockReader
	stats      *Stats
	metrics    *Metrics
}

// New builds an inspector reading blocks from dev. self is the process name
// whose own I/O is dropped from the trace.
func New(logger log.Logger, registerer prometheus.Registerer, cfg config.Config, dev io.ReaderAt, self string) *Inspector {
	return &Inspector{
		logger:     logger,
		cfg:        cfg,
		classifier: trace.NewClassifier(self, cfg.BlockSize),
		reader:     storage.NewBlockReader(logger, registerer, dev, cfg.BlockSize),
		stats:      &Stats{},
		metrics:    NewMetrics(registerer),
	}
}

func (i *Inspector) Stats() *Stats {
	return i.stats
}

type lineResult struct {
	line string
	err  error
}

// Run processes in line by line until EOF, a fatal error, or ctx is done.
// Cancellation is observed between lines and reported as ctx.Err().
func (i *Inspector) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan lineResult)
	done := make(chan struct{})
	defer close(done)

	// The reader may stay blocked on in after Run returns; it owns nothing else.
	go func() {
		defer close(lines)

		br := bufio.NewReader(in)
		for {
			line, err := br.ReadString('\n')
			if len(line) > 0 {
				select {
				case lines <- lineResult{line: line}:
				case <-done:
					return
				}
			}

			if err == nil {
				continue
			}
			if !errors.Is(err, io.EOF) {
				select {
				case lines <- lineResult{err: errors.Wrap(err, "read trace")}:
				case <-done:
				}
			}
			return
		}
	}()

	for {
		select {
		case <-ctx.Done():
			level.Info(i.logger).Log("msg", "inspection interrupted", "blocks", i.stats.Total())
			return ctx.Err()
		case res, ok := <-lines:
			if !ok {
				return nil
			}
			if res.err != nil {
				return res.err
			}
			if err := i.Process(res.line, out); err != nil {
				return err
			}
		}
	}
}

// Process handles a single trace line.
func (i *Inspector) Process(line string, w io.Writer) error {
	ev := i.classifier.Classify(line)
	i.metrics.lines.WithLabelValues(ev.Disposition.String()).Inc()

	switch ev.Disposition {
	case trace.Suppressed:
		return nil
	case trace.PassThrough:
		_, err := io.WriteString(w, line)
		return errors.Wrap(err, "write output")
	}

	if i.cfg.Emit == config.EmitEvent {
		return i.inspectEvent(&ev, w)
	}

	return i.inspectBlocks(&ev, w)
}

// inspectBlocks writes one line per block, the offset field rewritten to the
// block's byte offset and the length field to one block.
func (i *Inspector) inspectBlocks(ev *trace.Event, w io.Writer) error {
	fields := ev.Fields()
	fields[fieldSectors] = strconv.FormatInt(i.cfg.SectorsPerBlock(), 10)

	return i.reader.ReadRange(ev.Offset, ev.Length, ev.Flush, func(offset int64, block []byte) error {
		t, err := i.classify(offset, block)
		if err != nil {
			return err
		}

		fields[fieldSector] = strconv.FormatInt(offset, 10)

		var sb strings.Builder
		for _, f := range fields {
			if f == placeholder {
				continue
			}
			sb.WriteString(f)
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Label())
		sb.WriteByte('\n')

		_, err = io.WriteString(w, sb.String())
		return errors.Wrap(err, "write output")
	})
}

// inspectEvent writes the trace fields once followed by every block label.
func (i *Inspector) inspectEvent(ev *trace.Event, w io.Writer) error {
	var labels []string

	err := i.reader.ReadRange(ev.Offset, ev.Length, ev.Flush, func(offset int64, block []byte) error {
		t, err := i.classify(offset, block)
		if err != nil {
			return err
		}

		labels = append(labels, t.Label())
		return nil
	})
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, strings.Join(ev.Tokens, " ")+" "+strings.Join(labels, " ")+"\n")
	return errors.Wrap(err, "write output")
}

func (i *Inspector) classify(offset int64, block []byte) (marker.BlockType, error) {
	res, err := marker.Classify(block, i.cfg.Marker)
	if err != nil {
		return marker.TypeUnknown, errors.Wrapf(err, "classify block at %d", offset)
	}

	if res.Meta != nil {
		level.Debug(i.logger).Log("msg", "docblk meta", "offset", offset, "type", res.Type, "next_bid", res.Meta.NextBID, "hash", res.Meta.Hash)
	}

	i.stats.Add(res.Type)
	i.metrics.blocks.WithLabelValues(res.Type.Label()).Inc()

	return res.Type, nil
}
