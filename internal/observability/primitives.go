package observability

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Metric primitives rendered in the Prometheus text exposition format. Every
// counter and gauge is a series: one float per rendered label set.

type series struct {
	name   string
	help   string
	kind   string
	labels []string

	mu   sync.Mutex
	vals map[string]float64
}

func newSeries(name, help, kind string, labels []string) *series {
	return &series{name: name, help: help, kind: kind, labels: labels, vals: map[string]float64{}}
}

func (s *series) add(delta float64, values []string) {
	key := labelString(s.labels, values)
	s.mu.Lock()
	s.vals[key] += delta
	s.mu.Unlock()
}

func (s *series) set(v float64, values []string) {
	key := labelString(s.labels, values)
	s.mu.Lock()
	s.vals[key] = v
	s.mu.Unlock()
}

func (s *series) WritePrometheus(w io.Writer) error {
	var b strings.Builder
	writeHeader(&b, s.name, s.help, s.kind)
	s.mu.Lock()
	if len(s.labels) == 0 && len(s.vals) == 0 {
		s.vals[""] = 0
	}
	for _, key := range sortedKeys(s.vals) {
		writeSample(&b, s.name, key, formatFloat(s.vals[key]))
	}
	s.mu.Unlock()
	_, err := io.WriteString(w, b.String())
	return err
}

type CounterVec struct{ *series }

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{newSeries(name, help, "counter", labels)}
}

func (c *CounterVec) Inc(values ...string) { c.add(1, values) }

type Counter struct{ *series }

func NewCounter(name, help string) *Counter {
	return &Counter{newSeries(name, help, "counter", nil)}
}

func (c *Counter) Inc() { c.add(1, nil) }

type GaugeVec struct{ *series }

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{newSeries(name, help, "gauge", labels)}
}

func (g *GaugeVec) Set(v float64, values ...string) { g.set(v, values) }

type Gauge struct{ *series }

func NewGauge(name, help string) *Gauge {
	return &Gauge{newSeries(name, help, "gauge", nil)}
}

func (g *Gauge) Set(v float64) { g.set(v, nil) }
func (g *Gauge) Inc()          { g.add(1, nil) }
func (g *Gauge) Dec()          { g.add(-1, nil) }

var defaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// HistogramVec keeps per-bucket counts and makes them cumulative on write.
type HistogramVec struct {
	name    string
	help    string
	labels  []string
	buckets []float64

	mu    sync.Mutex
	dists map[string]*distribution
}

type distribution struct {
	counts []uint64 // counts[len(buckets)] holds observations above the last bound
	sum    float64
	n      uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	return &HistogramVec{name: name, help: help, labels: labels, buckets: sorted, dists: map[string]*distribution{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	key := labelString(h.labels, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	d := h.dists[key]
	if d == nil {
		d = &distribution{counts: make([]uint64, len(h.buckets)+1)}
		h.dists[key] = d
	}
	d.counts[sort.SearchFloat64s(h.buckets, v)]++
	d.sum += v
	d.n++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	var b strings.Builder
	writeHeader(&b, h.name, h.help, "histogram")
	h.mu.Lock()
	for _, key := range sortedKeys(h.dists) {
		d := h.dists[key]
		var cum uint64
		for i, bound := range h.buckets {
			cum += d.counts[i]
			writeSample(&b, h.name+"_bucket", withLe(key, formatFloat(bound)), strconv.FormatUint(cum, 10))
		}
		writeSample(&b, h.name+"_bucket", withLe(key, "+Inf"), strconv.FormatUint(d.n, 10))
		writeSample(&b, h.name+"_sum", key, formatFloat(d.sum))
		writeSample(&b, h.name+"_count", key, strconv.FormatUint(d.n, 10))
	}
	h.mu.Unlock()
	_, err := io.WriteString(w, b.String())
	return err
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP " + name + " " + help + "\n")
	b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func writeSample(b *strings.Builder, name, labels, value string) {
	b.WriteString(name)
	b.WriteString(labels)
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// labelString renders {name="value",...}; missing values render as "unknown".
func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	pairs := make([]string, len(names))
	for i, name := range names {
		v := "unknown"
		if i < len(values) {
			v = values[i]
		}
		pairs[i] = name + `="` + labelEscaper.Replace(v) + `"`
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// withLe appends the bucket bound to an already rendered label set.
func withLe(labels, le string) string {
	pair := `le="` + labelEscaper.Replace(le) + `"`
	if inner := strings.TrimSuffix(strings.TrimPrefix(labels, "{"), "}"); inner != "" {
		return "{" + inner + "," + pair + "}"
	}
	return "{" + pair + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
