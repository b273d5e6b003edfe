// Package metrics wires the optional Prometheus endpoint SPEC_FULL.md
// adds on top of spec.md's bare INFO command. It is feature-gated per
// spec.md §9's statistics discipline: when disabled, Registry is nil
// and every recording method is a nil-receiver no-op, so the call sites
// in internal/server never need an enabled/disabled branch of their
// own.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry owns every metric the server records. A nil *Registry is
// valid and silently discards every recording call.
type Registry struct {
	reg *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	CommandsTotal     *prometheus.CounterVec
	PoolHits          prometheus.Counter
	PoolMisses        prometheus.Counter
	BufferAcquires    *prometheus.CounterVec
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstored_connections_active",
			Help: "Currently open client connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvstored_connections_total",
			Help: "Total accepted client connections.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvstored_commands_total",
			Help: "Commands executed, by opcode.",
		}, []string{"opcode"}),
		PoolHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvstored_pool_hits_total",
			Help: "Memory pool allocations served from cache or a slab allocator.",
		}),
		PoolMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvstored_pool_misses_total",
			Help: "Memory pool allocations that fell back to the system allocator.",
		}),
		BufferAcquires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvstored_buffer_acquires_total",
			Help: "Buffer pool acquisitions, by size class.",
		}, []string{"class"}),
	}
	reg.MustRegister(r.ConnectionsActive, r.ConnectionsTotal, r.CommandsTotal, r.PoolHits, r.PoolMisses, r.BufferAcquires)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for the HTTP
// /metrics handler. Returns nil for a nil Registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Registry) ConnOpened() {
	if r == nil {
		return
	}
	r.ConnectionsActive.Inc()
	r.ConnectionsTotal.Inc()
}

func (r *Registry) ConnClosed() {
	if r == nil {
		return
	}
	r.ConnectionsActive.Dec()
}

func (r *Registry) CommandExecuted(opcode string) {
	if r == nil {
		return
	}
	r.CommandsTotal.WithLabelValues(opcode).Inc()
}

func (r *Registry) BufferAcquired(class string) {
	if r == nil {
		return
	}
	r.BufferAcquires.WithLabelValues(class).Inc()
}
