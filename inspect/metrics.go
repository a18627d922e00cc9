package inspect

import (
	"github.com/prometheus/client_golang/prometheus"

	"fdbinspect/marker"
	"fdbinspect/trace"
)

type Metrics struct {
	lines  *prometheus.CounterVec
	blocks *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.lines = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trace_lines_total",
		Help: "Total number of trace lines read, by disposition.",
	}, []string{"disposition"})

	m.blocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blocks_classified_total",
		Help: "Total number of blocks classified, by block type.",
	}, []string{"type"})

	// Pre-create series so every type shows up with zero.
	for _, d := range []trace.Disposition{trace.PassThrough, trace.Actionable, trace.Suppressed} {
		m.lines.WithLabelValues(d.String())
	}
	for t := marker.BlockType(0); t < marker.NumTypes; t++ {
		m.blocks.WithLabelValues(t.Label())
	}

	if registerer != nil {
		registerer.MustRegister(m.lines, m.blocks)
	}

	return m
}
