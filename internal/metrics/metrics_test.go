package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.TurnFinished("claude", Outcome(true))
	p.TurnFinished("claude", Outcome(true))
	p.TurnFinished("openai", Outcome(false))
	p.ToolCalled("search", "ok")
	p.ProviderRequest("claude", 300*time.Millisecond)
	p.WhitelistBlocked(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.turns.WithLabelValues("claude", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.turns.WithLabelValues("openai", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.toolCalls.WithLabelValues("search", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.blocked))
	assert.Equal(t, 1, testutil.CollectAndCount(p.latency))
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.TurnFinished("x", "ok")
	r.WhitelistBlocked(1)
}
