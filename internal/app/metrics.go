package app

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/plugin"
	"github.com/dshills/mudscript/internal/plugin/watcher"
)

const metricsNamespace = "mudscript"

// LoopStats is a snapshot of dispatch loop counters.
type LoopStats struct {
	// Tasks counts work items the loop has run.
	Tasks uint64

	// Pending is the current queue length.
	Pending int

	// Reloads counts reload requests the loop has handled.
	Reloads uint64
}

// moduleTransitions are the manager events counted per type.
var moduleTransitions = []plugin.ManagerEventType{
	plugin.EventModuleLoaded,
	plugin.EventModuleUnloaded,
	plugin.EventModuleReloaded,
	plugin.EventModuleError,
}

// Metrics is a Prometheus collector over the bus, the module manager, the
// script watcher and the dispatch loop. Stats are read on each scrape;
// module transitions are counted as the manager reports them.
type Metrics struct {
	bus     *event.Bus
	manager *plugin.Manager
	watcher func() watcher.Stats
	loop    func() LoopStats

	transitionCounts [4]atomic.Uint64

	published     *prometheus.Desc
	delivered     *prometheus.Desc
	filtered      *prometheus.Desc
	handlerErrors *prometheus.Desc
	handlerPanics *prometheus.Desc
	handlerTime   *prometheus.Desc
	subscriptions *prometheus.Desc
	retracted     *prometheus.Desc

	modules      *prometheus.Desc
	reloads      *prometheus.Desc
	loadFailures *prometheus.Desc
	setupErrors  *prometheus.Desc
	transitions  *prometheus.Desc

	watchedPaths   *prometheus.Desc
	watchChanges   *prometheus.Desc
	watchErrors    *prometheus.Desc
	loopTasks      *prometheus.Desc
	loopPending    *prometheus.Desc
	reloadRequests *prometheus.Desc
}

// MetricsOption configures a Metrics collector.
type MetricsOption func(*Metrics)

// WithWatcherStats adds script watcher counters.
func WithWatcherStats(fn func() watcher.Stats) MetricsOption {
	return func(m *Metrics) {
		m.watcher = fn
	}
}

// WithLoopStats adds dispatch loop counters.
func WithLoopStats(fn func() LoopStats) MetricsOption {
	return func(m *Metrics) {
		m.loop = fn
	}
}

func desc(subsystem, name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, subsystem, name), help, labels, nil)
}

// NewMetrics creates a collector for bus and manager. It counts module
// transitions from the moment it is created.
func NewMetrics(bus *event.Bus, manager *plugin.Manager, opts ...MetricsOption) *Metrics {
	m := &Metrics{
		bus:     bus,
		manager: manager,

		published:     desc("events", "published_total", "Events published on the bus."),
		delivered:     desc("events", "delivered_total", "Handler invocations."),
		filtered:      desc("events", "filtered_total", "Subscriptions skipped by their filter."),
		handlerErrors: desc("events", "handler_errors_total", "Handlers that returned an error."),
		handlerPanics: desc("events", "handler_panics_total", "Handlers that panicked."),
		handlerTime:   desc("events", "handler_seconds_total", "Time spent in event handlers."),
		subscriptions: desc("events", "subscriptions", "Active subscriptions."),
		retracted:     desc("events", "retracted_total", "Subscriptions removed by owner retraction."),

		modules:      desc("modules", "count", "Modules by state.", "state"),
		reloads:      desc("modules", "reloads_total", "Successful module reloads."),
		loadFailures: desc("modules", "load_failures_total", "Module loads that failed."),
		setupErrors:  desc("modules", "setup_errors_total", "Session setup hooks that failed."),
		transitions:  desc("modules", "transitions_total", "Module lifecycle transitions by event.", "event"),

		watchedPaths:   desc("watcher", "paths", "Directories watched for script changes."),
		watchChanges:   desc("watcher", "changes_total", "Debounced script changes reported."),
		watchErrors:    desc("watcher", "errors_total", "File watcher errors."),
		loopTasks:      desc("loop", "tasks_total", "Work items run by the dispatch loop."),
		loopPending:    desc("loop", "pending", "Work items waiting for the dispatch loop."),
		reloadRequests: desc("loop", "reloads_total", "Reload requests handled by the dispatch loop."),
	}
	for _, opt := range opts {
		opt(m)
	}
	manager.Subscribe(m.observe)
	return m
}

func (m *Metrics) observe(ev plugin.ManagerEvent) {
	if i := int(ev.Type); i >= 0 && i < len(m.transitionCounts) {
		m.transitionCounts[i].Add(1)
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		m.published, m.delivered, m.filtered, m.handlerErrors, m.handlerPanics,
		m.handlerTime, m.subscriptions, m.retracted,
		m.modules, m.reloads, m.loadFailures, m.setupErrors, m.transitions,
	} {
		ch <- d
	}
	if m.watcher != nil {
		ch <- m.watchedPaths
		ch <- m.watchChanges
		ch <- m.watchErrors
	}
	if m.loop != nil {
		ch <- m.loopTasks
		ch <- m.loopPending
		ch <- m.reloadRequests
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), labels...)
	}

	bs := m.bus.Stats()
	counter(m.published, bs.EventsPublished)
	counter(m.delivered, bs.EventsDelivered)
	counter(m.filtered, bs.EventsFiltered)
	counter(m.handlerErrors, bs.HandlerErrors)
	counter(m.handlerPanics, bs.HandlerPanics)
	ch <- prometheus.MustNewConstMetric(m.handlerTime, prometheus.CounterValue, bs.Handlers.TotalDuration.Seconds())
	gauge(m.subscriptions, bs.ActiveSubscriptions)
	counter(m.retracted, bs.Retracted)

	ms := m.manager.Stats()
	gauge(m.modules, ms.Loaded, plugin.StateLoaded.String())
	gauge(m.modules, ms.Errored, plugin.StateError.String())
	gauge(m.modules, ms.Modules-ms.Loaded-ms.Errored, plugin.StateUnloaded.String())
	counter(m.reloads, ms.Reloads)
	counter(m.loadFailures, ms.LoadFailures)
	counter(m.setupErrors, ms.SetupErrors)
	for _, t := range moduleTransitions {
		ch <- prometheus.MustNewConstMetric(m.transitions, prometheus.CounterValue,
			float64(m.transitionCounts[t].Load()), t.String())
	}

	if m.watcher != nil {
		ws := m.watcher()
		gauge(m.watchedPaths, ws.WatchedPaths)
		counter(m.watchChanges, ws.Changes)
		counter(m.watchErrors, ws.Errors)
	}
	if m.loop != nil {
		ls := m.loop()
		counter(m.loopTasks, ls.Tasks)
		gauge(m.loopPending, ls.Pending)
		counter(m.reloadRequests, ls.Reloads)
	}
}

// NewMetricsRegistry returns a registry holding c and the Go runtime and
// process collectors.
func NewMetricsRegistry(c prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MetricsHandler serves reg in the Prometheus text format.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
