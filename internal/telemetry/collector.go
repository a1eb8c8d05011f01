package telemetry

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/inventory"
)

// DefaultDays is the telemetry window length.
const DefaultDays = 7

const (
	hourly = time.Hour
	daily  = 24 * time.Hour

	agentNamespace = "CWAgent"
)

var (
	ec2Metrics = []string{
		"CPUUtilization", "NetworkIn", "NetworkOut",
		"DiskReadOps", "DiskWriteOps", "DiskReadBytes", "DiskWriteBytes",
		"StatusCheckFailed", "StatusCheckFailed_Instance", "StatusCheckFailed_System",
	}
	agentMetrics = []string{
		"mem_used_percent", "mem_available", "mem_used",
		"disk_used_percent", "disk_used", "disk_total",
		"procstat_cpu_usage", "procstat_memory_usage",
	}
	rdsMetrics = []string{
		"CPUUtilization", "DatabaseConnections", "FreeableMemory",
		"ReadIOPS", "WriteIOPS", "ReadLatency", "WriteLatency", "FreeStorageSpace",
	}
	containerInsightsMetrics = []string{
		"node_cpu_utilization", "node_memory_utilization",
		"cluster_node_count", "cluster_failed_node_count",
		"pod_cpu_utilization", "pod_memory_utilization",
	}
)

// Supported reports whether Collect reads metrics for the category.
func Supported(c classifier.Category) bool {
	switch c {
	case classifier.Compute, classifier.RelationalDB, classifier.ManagedKubernetes, classifier.ObjectStorage:
		return true
	}
	return false
}

// Collector gathers per-resource telemetry. It is safe for concurrent use.
type Collector struct {
	client func(region string) CloudWatchAPI
	days   int
	now    func() time.Time

	mu      sync.Mutex
	readers map[string]*Reader
}

// NewCollector creates a collector reading a window of days ending now.
// A non-positive days falls back to DefaultDays.
func NewCollector(client func(region string) CloudWatchAPI, days int) *Collector {
	if days <= 0 {
		days = DefaultDays
	}
	return &Collector{
		client:  client,
		days:    days,
		now:     time.Now,
		readers: make(map[string]*Reader),
	}
}

func (c *Collector) reader(region string) *Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.readers[region]
	if !ok {
		r = NewReader(c.client(region))
		c.readers[region] = r
	}
	return r
}

// Collect reads the record's metrics. It returns nil for categories without
// telemetry. Failed queries are recorded in Summary.Errors; the flags stay
// nil when nothing could be read. Stopped instances are not queried.
func (c *Collector) Collect(ctx context.Context, rec inventory.Record) *Summary {
	switch d := rec.Details.(type) {
	case inventory.Instance:
		if !d.Running() {
			return &Summary{}
		}
		return c.collectInstance(ctx, rec)
	case inventory.Database:
		return c.collectStandard(ctx, rec, "AWS/RDS", rdsMetrics, hourly,
			Dimension{Name: "DBInstanceIdentifier", Value: rec.ID})
	case inventory.Cluster:
		return c.collectStandard(ctx, rec, "ContainerInsights", containerInsightsMetrics, hourly,
			Dimension{Name: "ClusterName", Value: rec.ID})
	case inventory.Bucket:
		return c.collectBucket(ctx, rec)
	}
	return nil
}

func (c *Collector) window() (start, end time.Time) {
	end = c.now().UTC()
	return end.Add(-time.Duration(c.days) * daily), end
}

// collectStandard queries each metric and sets MonitoringEnabled from whether
// any of them returned data.
func (c *Collector) collectStandard(ctx context.Context, rec inventory.Record, namespace string, metrics []string, period time.Duration, dims ...Dimension) *Summary {
	s := &Summary{Metrics: make(map[string]Stat)}
	if c.query(ctx, rec, s, namespace, metrics, period, dims) {
		enabled := len(s.Metrics) > 0
		s.MonitoringEnabled = &enabled
	}
	return s
}

func (c *Collector) collectInstance(ctx context.Context, rec inventory.Record) *Summary {
	dim := Dimension{Name: "InstanceId", Value: rec.ID}
	s := c.collectStandard(ctx, rec, "AWS/EC2", ec2Metrics, hourly, dim)

	available, err := c.reader(rec.Region).ListAvailableMetrics(ctx, agentNamespace, []Dimension{dim})
	if err != nil {
		slog.Debug("Agent metric listing failed", "region", rec.Region, "resource", rec.ID, "error", err)
		s.Errors = append(s.Errors, err.Error())
		return s
	}
	installed := len(available) > 0
	s.AgentInstalled = &installed
	s.Available = available
	if !installed {
		return s
	}

	var published []string
	for _, m := range agentMetrics {
		if slices.Contains(available, m) {
			published = append(published, m)
		}
	}
	c.query(ctx, rec, s, agentNamespace, published, hourly, []Dimension{dim})
	return s
}

func (c *Collector) collectBucket(ctx context.Context, rec inventory.Record) *Summary {
	s := &Summary{Metrics: make(map[string]Stat)}
	bucket := Dimension{Name: "BucketName", Value: rec.ID}
	okSize := c.query(ctx, rec, s, "AWS/S3", []string{MetricBucketSize}, daily,
		[]Dimension{bucket, {Name: "StorageType", Value: "StandardStorage"}})
	okCount := c.query(ctx, rec, s, "AWS/S3", []string{"NumberOfObjects"}, daily,
		[]Dimension{bucket, {Name: "StorageType", Value: "AllStorageTypes"}})
	if okSize || okCount {
		enabled := len(s.Metrics) > 0
		s.MonitoringEnabled = &enabled
	}
	return s
}

// query reads each metric into s. It reports whether at least one query
// succeeded.
func (c *Collector) query(ctx context.Context, rec inventory.Record, s *Summary, namespace string, metrics []string, period time.Duration, dims []Dimension) bool {
	reader := c.reader(rec.Region)
	start, end := c.window()
	succeeded := false
	for _, metric := range metrics {
		points, err := reader.GetStatistics(ctx, Query{
			Namespace:  namespace,
			Metric:     metric,
			Dimensions: dims,
			Start:      start,
			End:        end,
			Period:     period,
		})
		if err != nil {
			slog.Debug("Metric query failed", "region", rec.Region, "resource", rec.ID, "metric", metric, "error", err)
			s.Errors = append(s.Errors, err.Error())
			continue
		}
		succeeded = true
		if stat, ok := Summarize(points); ok {
			s.Metrics[metric] = stat
		}
	}
	return succeeded
}
