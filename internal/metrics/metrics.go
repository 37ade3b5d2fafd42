// Package metrics records orchestration counters for Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives orchestration events.
type Recorder interface {
	TurnFinished(provider, outcome string)
	ToolCalled(tool, outcome string)
	ProviderRequest(provider string, d time.Duration)
	WhitelistBlocked(hosts int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) TurnFinished(string, string)           {}
func (Nop) ToolCalled(string, string)             {}
func (Nop) ProviderRequest(string, time.Duration) {}
func (Nop) WhitelistBlocked(int)                  {}

// Prometheus implements Recorder with client_golang collectors.
type Prometheus struct {
	turns     *prometheus.CounterVec
	toolCalls *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	blocked   prometheus.Counter
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpchat_turns_total",
				Help: "Chat turns processed, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpchat_tool_calls_total",
				Help: "Tool invocations, by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcpchat_provider_request_duration_seconds",
				Help:    "Duration of LLM provider requests",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"provider"},
		),
		blocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcpchat_whitelist_blocked_total",
			Help: "Hostnames rejected by the domain allow-list",
		}),
	}
	reg.MustRegister(p.turns, p.toolCalls, p.latency, p.blocked)
	return p
}

func (p *Prometheus) TurnFinished(provider, outcome string) {
	p.turns.WithLabelValues(provider, outcome).Inc()
}

func (p *Prometheus) ToolCalled(tool, outcome string) {
	p.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (p *Prometheus) ProviderRequest(provider string, d time.Duration) {
	p.latency.WithLabelValues(provider).Observe(d.Seconds())
}

func (p *Prometheus) WhitelistBlocked(hosts int) {
	p.blocked.Add(float64(hosts))
}

// Outcome renders a boolean success as a label value.
func Outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
