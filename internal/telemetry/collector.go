package telemetry

import "github.com/prometheus/client_golang/prometheus"

const namespace = "crowcache"

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(s Snapshot) int64
}

// Collector exposes a Source as Prometheus metrics. Values are read at scrape time.
type Collector struct {
	source  Source
	metrics []metric
}

func NewCollector(source Source, constLabels prometheus.Labels) *Collector {
	c := &Collector{source: source}
	counter := func(name, help string, fn func(s Snapshot) int64) {
		c.add(name, help, prometheus.CounterValue, constLabels, fn)
	}
	gauge := func(name, help string, fn func(s Snapshot) int64) {
		c.add(name, help, prometheus.GaugeValue, constLabels, fn)
	}

	gauge("active_entries", "Entries resident in the active tier.", func(s Snapshot) int64 { return s.ActiveEntries })
	gauge("capacity", "Active tier capacity.", func(s Snapshot) int64 { return s.Capacity })
	gauge("dormant_entries", "Last known number of live dormant entries.", func(s Snapshot) int64 { return s.DormantEntries })
	gauge("armed_timers", "Active expiry timers waiting to fire.", func(s Snapshot) int64 { return s.ArmedTimers })
	gauge("empty_observers", "Registered empty-cache observers.", func(s Snapshot) int64 { return s.Observers })

	counter("hits_total", "Active tier hits.", func(s Snapshot) int64 { return s.Hits })
	counter("deep_hits_total", "Dormant tier hits.", func(s Snapshot) int64 { return s.DeepHits })
	counter("misses_total", "Lookups that found nothing.", func(s Snapshot) int64 { return s.Misses })
	counter("promotions_total", "Entries moved from dormant to active.", func(s Snapshot) int64 { return s.Promotions })
	counter("demotions_total", "Entries moved from active to dormant.", func(s Snapshot) int64 { return s.Demotions })
	counter("spilled_total", "New entries written straight to dormant.", func(s Snapshot) int64 { return s.Spilled })
	counter("rejected_total", "Adds rejected for invalid input.", func(s Snapshot) int64 { return s.Rejected })
	counter("lost_total", "Entries dropped by failed bookkeeping.", func(s Snapshot) int64 { return s.Lost })

	counter("expiry_fired_total", "Active timers fired.", func(s Snapshot) int64 { return s.ExpiryFired })
	counter("expiry_refreshed_total", "Entries kept alive by their refresh callback.", func(s Snapshot) int64 { return s.ExpiryRefreshed })
	counter("expiry_expired_total", "Entries removed on expiry.", func(s Snapshot) int64 { return s.ExpiryExpired })
	counter("expiry_stale_total", "Expiry events superseded by a touch or removal.", func(s Snapshot) int64 { return s.ExpiryStale })
	counter("expiry_errors_total", "Failed expiry handlers.", func(s Snapshot) int64 { return s.ExpiryErrors })

	counter("sweeps_total", "Dormant cleaner sweeps.", func(s Snapshot) int64 { return s.Sweeps })
	counter("sweep_dropped_total", "Expired dormant entries dropped by sweeps.", func(s Snapshot) int64 { return s.SweepDropped })
	counter("sweep_errors_total", "Failed dormant sweeps.", func(s Snapshot) int64 { return s.SweepErrors })
	counter("dormant_reads_total", "Dormant backend reads.", func(s Snapshot) int64 { return s.DormantReads })
	counter("dormant_writes_total", "Dormant backend writes.", func(s Snapshot) int64 { return s.DormantWrites })
	counter("dormant_errors_total", "Failed dormant backend calls.", func(s Snapshot) int64 { return s.DormantErrors })
	counter("dormant_lock_timeouts_total", "Dormant lock acquisitions that timed out.", func(s Snapshot) int64 { return s.LockTimeouts })

	counter("empty_signals_total", "Empty-cache notifications raised.", func(s Snapshot) int64 { return s.EmptySignals })
	return c
}

func (c *Collector) add(name, help string, kind prometheus.ValueType, labels prometheus.Labels, fn func(s Snapshot) int64) {
	c.metrics = append(c.metrics, metric{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels),
		kind:  kind,
		value: fn,
	})
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, float64(m.value(s)))
	}
}
