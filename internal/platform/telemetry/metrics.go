package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// durationBuckets are request duration bucket bounds in seconds.
var durationBuckets = []float64{
	0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0,
}

// ---------------------------------------------------------------------------
// histogram
// ---------------------------------------------------------------------------

type histogram struct {
	bounds  []float64
	buckets []int64
	count   int64
	sumBits uint64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{bounds: bounds, buckets: make([]int64, len(bounds))}
}

func (h *histogram) Observe(v float64) {
	for i, b := range h.bounds {
		if v <= b {
			atomic.AddInt64(&h.buckets[i], 1)
			break
		}
	}
	atomic.AddInt64(&h.count, 1)
	for {
		old := atomic.LoadUint64(&h.sumBits)
		next := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(&h.sumBits, old, next) {
			return
		}
	}
}

func (h *histogram) Count() int64 { return atomic.LoadInt64(&h.count) }

func (h *histogram) Sum() float64 { return math.Float64frombits(atomic.LoadUint64(&h.sumBits)) }

// cumulative returns per-bound counts including every lower bucket.
func (h *histogram) cumulative() []int64 {
	out := make([]int64, len(h.buckets))
	var running int64
	for i := range h.buckets {
		running += atomic.LoadInt64(&h.buckets[i])
		out[i] = running
	}
	return out
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// PoolStatsFunc reports database pool usage at scrape time.
type PoolStatsFunc func() (acquired, idle, total int32)

// Metrics keeps HTTP and scheduling metrics in memory for the /metrics scrape.
type Metrics struct {
	mu         sync.RWMutex
	durations  map[string]*histogram // method|route|status
	operations map[string]*int64     // operation|outcome
	active     atomic.Int64
	poolStats  PoolStatsFunc
}

func NewMetrics() *Metrics {
	return &Metrics{
		durations:  make(map[string]*histogram),
		operations: make(map[string]*int64),
	}
}

// SetPoolStats attaches the database pool gauges.
func (m *Metrics) SetPoolStats(fn PoolStatsFunc) {
	m.mu.Lock()
	m.poolStats = fn
	m.mu.Unlock()
}

func (m *Metrics) histogramFor(key string) *histogram {
	m.mu.RLock()
	h, ok := m.durations[key]
	m.mu.RUnlock()
	if ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.durations[key]; !ok {
		h = newHistogram(durationBuckets)
		m.durations[key] = h
	}
	return h
}

// CountOperation increments scheduling_operations_total for one outcome.
func (m *Metrics) CountOperation(operation, outcome string) {
	key := operation + "|" + outcome
	m.mu.RLock()
	p, ok := m.operations[key]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if p, ok = m.operations[key]; !ok {
			p = new(int64)
			m.operations[key] = p
		}
		m.mu.Unlock()
	}
	atomic.AddInt64(p, 1)
}

// Operation returns the current count for operation and outcome.
func (m *Metrics) Operation(operation, outcome string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.operations[operation+"|"+outcome]; ok {
		return atomic.LoadInt64(p)
	}
	return 0
}

// operationNames maps routed endpoints to scheduling operations. Routes
// outside this table only get duration metrics.
var operationNames = map[string]string{
	"POST /api/v1/appointments":              "book",
	"PUT /api/v1/appointments/:id":           "reschedule",
	"DELETE /api/v1/appointments/:id":        "cancel",
	"GET /api/v1/appointments/conflicts":     "conflict_check",
	"GET /api/v1/calendar/summary":           "calendar_summary",
	"GET /api/v1/calendar/day":               "day_detail",
	"PUT /api/v1/providers/:id/schedules":    "replace_schedules",
	"GET /api/v1/providers/:id/availability": "provider_availability",
	"POST /api/v1/providers":                 "onboard_provider",
	"POST /api/v1/providers/:id/deactivate":  "deactivate_provider",
	"POST /api/v1/providers/:id/activate":    "activate_provider",
}

func outcomeOf(status int) string {
	switch {
	case status == http.StatusConflict:
		return "conflict"
	case status >= 500:
		return "error"
	case status >= 400:
		return "rejected"
	}
	return "ok"
}

// Middleware records request duration per route and counts scheduling
// operations by outcome.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.active.Add(1)
			start := time.Now()

			err := next(c)

			m.active.Add(-1)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			key := method + "|" + route + "|" + strconv.Itoa(status)
			m.histogramFor(key).Observe(time.Since(start).Seconds())
			if op, ok := operationNames[method+" "+route]; ok {
				m.CountOperation(op, outcomeOf(status))
			}
			return err
		}
	}
}

// Handler serves the metrics in Prometheus text exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		m.mu.RLock()
		durations := make(map[string]*histogram, len(m.durations))
		for k, h := range m.durations {
			durations[k] = h
		}
		ops := make(map[string]int64, len(m.operations))
		for k, p := range m.operations {
			ops[k] = atomic.LoadInt64(p)
		}
		poolStats := m.poolStats
		m.mu.RUnlock()

		b.WriteString("# HELP http_server_request_duration_seconds Duration of HTTP requests in seconds.\n")
		b.WriteString("# TYPE http_server_request_duration_seconds histogram\n")
		for _, key := range sortedKeys(durations) {
			parts := strings.SplitN(key, "|", 3)
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
			writeHistogram(&b, "http_server_request_duration_seconds", labels, durations[key])
		}
		b.WriteByte('\n')

		b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", m.active.Load())

		b.WriteString("# HELP scheduling_operations_total Scheduling operations by outcome.\n")
		b.WriteString("# TYPE scheduling_operations_total counter\n")
		for _, key := range sortedKeys(ops) {
			parts := strings.SplitN(key, "|", 2)
			fmt.Fprintf(&b, "scheduling_operations_total{operation=%q,outcome=%q} %d\n", parts[0], parts[1], ops[key])
		}
		b.WriteByte('\n')

		if poolStats != nil {
			acquired, idle, total := poolStats()
			for _, g := range []struct {
				name, help string
				val        int32
			}{
				{"db_pool_acquired_connections", "Connections currently in use.", acquired},
				{"db_pool_idle_connections", "Idle pool connections.", idle},
				{"db_pool_total_connections", "All pool connections.", total},
			} {
				fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", g.name, g.help, g.name, g.name, g.val)
			}
		}

		return c.String(http.StatusOK, b.String())
	}
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulative()
	for i, bound := range h.bounds {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, bound, cum[i])
	}
	total := h.Count()
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
