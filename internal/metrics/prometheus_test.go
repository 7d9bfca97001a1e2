package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveRequest("summary", "ok", 20*time.Millisecond)
	r.ObserveRequest("summary", "ok", 30*time.Millisecond)
	r.ObserveRequest("summary", "error", time.Second)
	r.RecordStale("summary")
	r.RecordChat("ok")
	r.RecordPrice("GC=F", 2345.1)

	if got := testutil.ToFloat64(r.requests.WithLabelValues("summary", "ok")); got != 2 {
		t.Errorf("requests{summary,ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.staleDrops.WithLabelValues("summary")); got != 1 {
		t.Errorf("stale{summary} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.lastPrice.WithLabelValues("GC=F")); got != 2345.1 {
		t.Errorf("last_price{GC=F} = %v, want 2345.1", got)
	}

	// Two recorders on separate registries must not collide.
	_ = New(prometheus.NewRegistry())
}
