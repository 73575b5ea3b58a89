package ensdns

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine counters. A nil *Metrics disables counting.
type Metrics struct {
	Resolutions   prometheus.Counter
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheStales   prometheus.Counter
	RegistryCalls prometheus.Counter
	RecordCalls   prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ensdns_resolutions_total",
			Help: "Resolution requests entering the fallback chain.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ensdns_cache_hits_total",
			Help: "Fresh cache hits, resolver and record tiers combined.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ensdns_cache_misses_total",
			Help: "Cache misses that caused a remote fetch.",
		}),
		CacheStales: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ensdns_cache_stales_total",
			Help: "Cache entries found resident but past the TTL.",
		}),
		RegistryCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ensdns_registry_calls_total",
			Help: "resolver() reads against a registry contract.",
		}),
		RecordCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ensdns_record_calls_total",
			Help: "dnsRecord() reads against a resolver contract.",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Resolutions, m.CacheHits, m.CacheMisses,
		m.CacheStales, m.RegistryCalls, m.RecordCalls,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) resolution() {
	if m != nil {
		m.Resolutions.Inc()
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) stale() {
	if m != nil {
		m.CacheStales.Inc()
	}
}

func (m *Metrics) registryCall() {
	if m != nil {
		m.RegistryCalls.Inc()
	}
}

func (m *Metrics) recordCall() {
	if m != nil {
		m.RecordCalls.Inc()
	}
}
