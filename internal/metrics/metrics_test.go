package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_NilRegistry(t *testing.T) {
	m, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil metrics for nil registry")
	}

	// Nil metrics must be safe to use.
	m.Announced()
	m.Probe("upnp:rootdevice", true)
	m.Request("lights")
	m.LightUpdate("bri", false)
}

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.Announced()
	m.Announced()
	m.Probe("upnp:rootdevice", true)
	m.Probe("", false)
	m.Request("lights")
	m.LightUpdate("bri", true)
	m.LightUpdate("foo", false)

	if got := testutil.ToFloat64(m.announcements); got != 2 {
		t.Errorf("announcements = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.probes.WithLabelValues("none", "false")); got != 1 {
		t.Errorf("ignored probes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lightUpdates.WithLabelValues("unknown", "error")); got != 1 {
		t.Errorf("failed unknown updates = %v, want 1", got)
	}
}

func TestMetrics_LightUpdateLabelsBounded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 500; i++ {
		m.LightUpdate(fmt.Sprintf("junk%d", i), false)
	}
	m.LightUpdate("bri", true)

	if got := testutil.CollectAndCount(m.lightUpdates); got != 2 {
		t.Errorf("light update series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(m.lightUpdates.WithLabelValues("unknown", "error")); got != 500 {
		t.Errorf("unknown updates = %v, want 500", got)
	}
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("second New on the same registry should fail")
	}
}
