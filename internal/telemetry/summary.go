package telemetry

import (
	"math"

	"github.com/ppiankov/billspectre/internal/sizing"
)

// Metric names read back by downstream consumers.
const (
	MetricCPU        = "CPUUtilization"
	MetricAgentMem   = "mem_used_percent"
	MetricNodeCPU    = "node_cpu_utilization"
	MetricNodeMemory = "node_memory_utilization"
	MetricBucketSize = "BucketSizeBytes"
)

// Stat aggregates one metric over the telemetry window.
type Stat struct {
	// Avg is the mean of the per-period averages.
	Avg     float64  `json:"avg"`
	Max     float64  `json:"max"`
	Min     *float64 `json:"min,omitempty"`
	Total   *float64 `json:"total,omitempty"`
	Samples int      `json:"samples"`
}

// Summary is the telemetry collected for one resource.
type Summary struct {
	Metrics map[string]Stat `json:"metrics,omitempty"`
	// MonitoringEnabled is nil when no query succeeded.
	MonitoringEnabled *bool `json:"monitoring_enabled,omitempty"`
	// AgentInstalled is nil when it could not be determined or does not apply.
	AgentInstalled *bool    `json:"agent_installed,omitempty"`
	Available      []string `json:"available,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// Summarize reduces datapoints to a Stat. ok is false when there are none.
func Summarize(points []Datapoint) (stat Stat, ok bool) {
	if len(points) == 0 {
		return Stat{}, false
	}

	var sumAvg float64
	var nAvg int
	maxSeen := math.Inf(-1)
	for _, p := range points {
		if p.Average != nil {
			sumAvg += *p.Average
			nAvg++
		}
		switch {
		case p.Maximum != nil:
			maxSeen = math.Max(maxSeen, *p.Maximum)
		case p.Average != nil:
			maxSeen = math.Max(maxSeen, *p.Average)
		}
		if p.Minimum != nil && (stat.Min == nil || *p.Minimum < *stat.Min) {
			v := *p.Minimum
			stat.Min = &v
		}
		if p.Sum != nil {
			total := *p.Sum
			if stat.Total != nil {
				total += *stat.Total
			}
			stat.Total = &total
		}
	}
	if nAvg > 0 {
		stat.Avg = sumAvg / float64(nAvg)
	}
	if !math.IsInf(maxSeen, -1) {
		stat.Max = maxSeen
	}
	stat.Samples = len(points)
	return stat, true
}

// Stat returns a metric's aggregate.
func (s *Summary) Stat(metric string) (Stat, bool) {
	if s == nil {
		return Stat{}, false
	}
	st, ok := s.Metrics[metric]
	return st, ok
}

// Usage extracts the CPU and memory utilization used for sizing. Memory is
// only known when the CloudWatch agent publishes it.
func (s *Summary) Usage() sizing.Usage {
	var u sizing.Usage
	if st, ok := s.Stat(MetricCPU); ok {
		u.CPUAvg, u.CPUMax = ptr(st.Avg), ptr(st.Max)
	}
	if st, ok := s.Stat(MetricAgentMem); ok {
		u.MemAvg, u.MemMax = ptr(st.Avg), ptr(st.Max)
	}
	return u
}

func ptr[T any](v T) *T { return &v }
