package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/plugin"
	"github.com/dshills/mudscript/internal/plugin/watcher"
)

type failingModule struct{}

func (failingModule) ID() event.ModuleID { return "broken" }

func (failingModule) Load(ctx context.Context, env *plugin.Env) error {
	return io.ErrUnexpectedEOF
}

func (failingModule) Close() error { return nil }

func newMetricsFixture(t *testing.T) (*event.Bus, *plugin.Manager) {
	t.Helper()
	bus := event.NewBus()
	mgr := plugin.NewManager(bus)
	if err := mgr.Register(failingModule{}); err != nil {
		t.Fatal(err)
	}
	_ = mgr.LoadAll(context.Background())

	r := bus.Registrar("observer")
	if _, err := r.On(event.KindCustom).Where("type", "ping").DoFunc(func(context.Context, event.Event) error {
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	for _, typ := range []string{"ping", "pong"} {
		if err := bus.Publish(context.Background(), event.New(event.KindCustom, event.CustomPayload{Type: typ})); err != nil {
			t.Fatal(err)
		}
	}
	return bus, mgr
}

func TestMetrics_Collect(t *testing.T) {
	bus, mgr := newMetricsFixture(t)
	m := NewMetrics(bus, mgr)

	expected := `
# HELP mudscript_events_published_total Events published on the bus.
# TYPE mudscript_events_published_total counter
mudscript_events_published_total 2
# HELP mudscript_events_delivered_total Handler invocations.
# TYPE mudscript_events_delivered_total counter
mudscript_events_delivered_total 1
# HELP mudscript_events_filtered_total Subscriptions skipped by their filter.
# TYPE mudscript_events_filtered_total counter
mudscript_events_filtered_total 1
# HELP mudscript_events_subscriptions Active subscriptions.
# TYPE mudscript_events_subscriptions gauge
mudscript_events_subscriptions 1
# HELP mudscript_modules_count Modules by state.
# TYPE mudscript_modules_count gauge
mudscript_modules_count{state="error"} 1
mudscript_modules_count{state="loaded"} 0
mudscript_modules_count{state="unloaded"} 0
# HELP mudscript_modules_load_failures_total Module loads that failed.
# TYPE mudscript_modules_load_failures_total counter
mudscript_modules_load_failures_total 1
`
	err := testutil.CollectAndCompare(m, strings.NewReader(expected),
		"mudscript_events_published_total",
		"mudscript_events_delivered_total",
		"mudscript_events_filtered_total",
		"mudscript_events_subscriptions",
		"mudscript_modules_count",
		"mudscript_modules_load_failures_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestMetrics_OptionalCollectors(t *testing.T) {
	bus, mgr := newMetricsFixture(t)

	tests := []struct {
		name string
		opts []MetricsOption
		want int
	}{
		{"bus and manager", nil, 18},
		{"with watcher", []MetricsOption{WithWatcherStats(func() watcher.Stats { return watcher.Stats{WatchedPaths: 2} })}, 21},
		{"with loop", []MetricsOption{WithLoopStats(func() LoopStats { return LoopStats{Tasks: 9} })}, 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.CollectAndCount(NewMetrics(bus, mgr, tt.opts...)); got != tt.want {
				t.Errorf("CollectAndCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMetrics_ModuleTransitions(t *testing.T) {
	bus := event.NewBus()
	mgr := plugin.NewManager(bus)
	m := NewMetrics(bus, mgr)
	ctx := context.Background()

	mgr.Register(&plugin.FuncModule{Name: "good"})
	mgr.Register(failingModule{})
	_ = mgr.LoadAll(ctx)
	if err := mgr.Reload(ctx, "good"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Unload(ctx, "good"); err != nil {
		t.Fatal(err)
	}

	expected := `
# HELP mudscript_modules_transitions_total Module lifecycle transitions by event.
# TYPE mudscript_modules_transitions_total counter
mudscript_modules_transitions_total{event="error"} 1
mudscript_modules_transitions_total{event="loaded"} 2
mudscript_modules_transitions_total{event="reloaded"} 1
mudscript_modules_transitions_total{event="unloaded"} 1
`
	if err := testutil.CollectAndCompare(m, strings.NewReader(expected), "mudscript_modules_transitions_total"); err != nil {
		t.Error(err)
	}
}

func TestMetrics_WatcherAndLoop(t *testing.T) {
	bus, mgr := newMetricsFixture(t)
	m := NewMetrics(bus, mgr,
		WithWatcherStats(func() watcher.Stats { return watcher.Stats{WatchedPaths: 3, Changes: 4} }),
		WithLoopStats(func() LoopStats { return LoopStats{Tasks: 10, Pending: 2, Reloads: 1} }),
	)

	expected := `
# HELP mudscript_watcher_paths Directories watched for script changes.
# TYPE mudscript_watcher_paths gauge
mudscript_watcher_paths 3
# HELP mudscript_watcher_changes_total Debounced script changes reported.
# TYPE mudscript_watcher_changes_total counter
mudscript_watcher_changes_total 4
# HELP mudscript_loop_pending Work items waiting for the dispatch loop.
# TYPE mudscript_loop_pending gauge
mudscript_loop_pending 2
# HELP mudscript_loop_reloads_total Reload requests handled by the dispatch loop.
# TYPE mudscript_loop_reloads_total counter
mudscript_loop_reloads_total 1
`
	err := testutil.CollectAndCompare(m, strings.NewReader(expected),
		"mudscript_watcher_paths",
		"mudscript_watcher_changes_total",
		"mudscript_loop_pending",
		"mudscript_loop_reloads_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestMetricsHandler(t *testing.T) {
	bus, mgr := newMetricsFixture(t)
	reg := NewMetricsRegistry(NewMetrics(bus, mgr))

	rr := httptest.NewRecorder()
	MetricsHandler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"mudscript_events_published_total 2",
		`mudscript_modules_count{state="error"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
