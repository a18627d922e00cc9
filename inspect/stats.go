package inspect

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"fdbinspect/marker"
)

// Stats counts classified blocks per type. It is owned by a single goroutine.
type Stats struct {
	counts [marker.NumTypes]uint64
	total  uint64
}

func (s *Stats) Add(t marker.BlockType) {
	if t < 0 || t >= marker.NumTypes {
		t = marker.TypeUnknown
	}

	s.counts[t]++
	s.total++
}

func (s *Stats) Count(t marker.BlockType) uint64 {
	if t < 0 || t >= marker.NumTypes {
		return 0
	}
	return s.counts[t]
}

// Total is the number of blocks scanned.
func (s *Stats) Total() uint64 {
	return s.total
}

// FDBTotal is the number of scanned blocks carrying a known marker.
func (s *Stats) FDBTotal() uint64 {
	return s.total - s.counts[marker.TypeUnknown]
}

func percent(n, of uint64) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

// Report writes the statistics table, one row per type plus the total.
func (s *Stats) Report(w io.Writer) error {
	var (
		total = s.total
		fdb   = s.FDBTotal()
	)

	if _, err := fmt.Fprint(w, "\n======== Statistics =========\n"); err != nil {
		return errors.Wrap(err, "write statistics")
	}

	row := func(name string, n uint64) error {
		_, err := fmt.Fprintf(w, "TYPE %s: %d pages, %.4f%% of FDB, %.4f%% of Total\n",
			name, n, percent(n, fdb), percent(n, total))
		return err
	}

	for t := marker.BlockType(0); t < marker.NumTypes; t++ {
		if err := row(t.Name(), s.counts[t]); err != nil {
			return errors.Wrap(err, "write statistics")
		}
	}

	if err := row("Total Writes", total); err != nil {
		return errors.Wrap(err, "write statistics")
	}

	if _, err := fmt.Fprint(w, "=============================\n"); err != nil {
		return errors.Wrap(err, "write statistics")
	}

	return nil
}
