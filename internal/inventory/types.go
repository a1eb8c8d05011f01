package inventory

import (
	"time"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// Record is one discovered resource.
type Record struct {
	ID       string              `json:"id"`
	Region   string              `json:"region"`
	Category classifier.Category `json:"category"`
	Details  Details             `json:"details"`
}

// Key identifies the record within one run. RDS identifiers and most other
// resource names only need to be unique per region, so ID alone can repeat.
func (r Record) Key() string { return ResourceKey(r.Region, r.ID) }

// ResourceKey builds the run-unique key for a resource id in a region.
func ResourceKey(region, id string) string { return region + "/" + id }

// Details is the category-specific payload of a Record. The set of
// implementations is closed; switch on the concrete type.
type Details interface {
	category() classifier.Category
}

// Idler is implemented by payloads that can tell whether the resource is
// provisioned but not doing work.
type Idler interface {
	Idle() bool
}

// Instance is an EC2 instance.
type Instance struct {
	InstanceType string            `json:"instance_type"`
	State        string            `json:"state"`
	LaunchTime   time.Time         `json:"launch_time"`
	VpcID        string            `json:"vpc_id,omitempty"`
	SubnetID     string            `json:"subnet_id,omitempty"`
	Platform     string            `json:"platform"`
	ImageID      string            `json:"image_id,omitempty"`
	Monitoring   string            `json:"monitoring"`
	Tags         map[string]string `json:"tags,omitempty"`
}

func (Instance) category() classifier.Category { return classifier.Compute }

// Running reports whether the instance is serving.
func (i Instance) Running() bool { return i.State == "running" }

// Idle reports whether the instance is stopped.
func (i Instance) Idle() bool { return i.State == "stopped" }

// NodeGroup is an EKS managed node group.
type NodeGroup struct {
	Name         string `json:"name"`
	InstanceType string `json:"instance_type"`
	CapacityType string `json:"capacity_type,omitempty"`
	Status       string `json:"status"`
	DesiredSize  int32  `json:"desired_size"`
	MinSize      int32  `json:"min_size"`
	MaxSize      int32  `json:"max_size"`
}

// Cluster is an EKS cluster.
type Cluster struct {
	Name       string      `json:"name"`
	Status     string      `json:"status"`
	Version    string      `json:"version"`
	Endpoint   string      `json:"endpoint,omitempty"`
	VpcID      string      `json:"vpc_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	NodeGroups []NodeGroup `json:"node_groups,omitempty"`
	// NodeGroupsListed is false when node group enumeration failed.
	NodeGroupsListed bool `json:"node_groups_listed"`
	// UndescribedNodeGroups counts listed groups whose describe call failed.
	UndescribedNodeGroups int `json:"undescribed_node_groups,omitempty"`
}

func (Cluster) category() classifier.Category { return classifier.ManagedKubernetes }

// DesiredNodes sums desired capacity over all node groups.
func (c Cluster) DesiredNodes() int32 {
	var n int32
	for _, ng := range c.NodeGroups {
		n += ng.DesiredSize
	}
	return n
}

// Idle reports whether every node group is known and scaled to zero.
func (c Cluster) Idle() bool {
	return c.NodeGroupsListed && c.UndescribedNodeGroups == 0 &&
		len(c.NodeGroups) > 0 && c.DesiredNodes() == 0
}

// Bucket is an S3 bucket with totals from object enumeration.
type Bucket struct {
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	SizeBytes   int64     `json:"size_bytes"`
	ObjectCount int64     `json:"object_count"`
	// StorageClasses maps storage class to bytes stored in it.
	StorageClasses map[string]int64 `json:"storage_classes,omitempty"`
	// Enumerated is false when object enumeration failed and the totals are zero.
	Enumerated bool `json:"enumerated"`
}

func (Bucket) category() classifier.Category { return classifier.ObjectStorage }

// Database is an RDS instance.
type Database struct {
	Class         string    `json:"class"`
	Engine        string    `json:"engine"`
	EngineVersion string    `json:"engine_version"`
	Status        string    `json:"status"`
	MultiAZ       bool      `json:"multi_az"`
	StorageType   string    `json:"storage_type"`
	AllocatedGB   int32     `json:"allocated_gb"`
	VpcID         string    `json:"vpc_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Database) category() classifier.Category { return classifier.RelationalDB }

// Idle reports whether the database is stopped.
func (d Database) Idle() bool { return d.Status == "stopped" }

// Network is a VPC.
type Network struct {
	CidrBlock   string            `json:"cidr_block"`
	State       string            `json:"state"`
	IsDefault   bool              `json:"is_default"`
	SubnetCount int               `json:"subnet_count"`
	Tags        map[string]string `json:"tags,omitempty"`
}

func (Network) category() classifier.Category { return classifier.Network }

// Function is a Lambda function.
type Function struct {
	Runtime      string `json:"runtime"`
	MemoryMB     int32  `json:"memory_mb"`
	TimeoutSec   int32  `json:"timeout_sec"`
	CodeSize     int64  `json:"code_size"`
	LastModified string `json:"last_modified"`
}

func (Function) category() classifier.Category { return classifier.Serverless }

// Table is a DynamoDB table.
type Table struct {
	Status      string `json:"status"`
	ItemCount   int64  `json:"item_count"`
	SizeBytes   int64  `json:"size_bytes"`
	BillingMode string `json:"billing_mode"`
}

func (Table) category() classifier.Category { return classifier.KeyValueStore }

// LoadBalancer is an ELBv2 load balancer.
type LoadBalancer struct {
	ARN          string `json:"arn"`
	Type         string `json:"type"`
	Scheme       string `json:"scheme"`
	State        string `json:"state"`
	VpcID        string `json:"vpc_id,omitempty"`
	TargetGroups int    `json:"target_groups"`
	// Targets is the registered target count, nil when it could not be read.
	Targets *int `json:"targets,omitempty"`
}

func (LoadBalancer) category() classifier.Category { return classifier.LoadBalancer }

// Idle reports whether the load balancer has no registered targets.
func (lb LoadBalancer) Idle() bool { return lb.Targets != nil && *lb.Targets == 0 }

// HostedZone is a Route 53 hosted zone.
type HostedZone struct {
	Name        string `json:"name"`
	Private     bool   `json:"private"`
	RecordCount int64  `json:"record_count"`
}

func (HostedZone) category() classifier.Category { return classifier.DNS }

// Secret is a Secrets Manager secret.
type Secret struct {
	ARN             string     `json:"arn"`
	LastAccessed    *time.Time `json:"last_accessed,omitempty"`
	RotationEnabled bool       `json:"rotation_enabled"`
}

func (Secret) category() classifier.Category { return classifier.SecretStore }

// ManagedNode is an instance registered with Systems Manager.
type ManagedNode struct {
	PingStatus   string `json:"ping_status"`
	PlatformName string `json:"platform_name"`
	AgentVersion string `json:"agent_version"`
	ResourceType string `json:"resource_type"`
}

func (ManagedNode) category() classifier.Category { return classifier.ManagedOps }

// Alarm is a CloudWatch metric alarm.
type Alarm struct {
	State          string `json:"state"`
	Namespace      string `json:"namespace"`
	MetricName     string `json:"metric_name"`
	ActionsEnabled bool   `json:"actions_enabled"`
}

func (Alarm) category() classifier.Category { return classifier.MetricsAlarms }

// Detector is a GuardDuty detector.
type Detector struct {
	Status             string `json:"status"`
	PublishingInterval string `json:"publishing_interval"`
	// Described is false when the per-detector lookup failed.
	Described bool `json:"described"`
}

func (Detector) category() classifier.Category { return classifier.ThreatDetection }

// Result is the output of one discovery pass.
type Result struct {
	// Records holds discovered resources per category, in region order.
	Records map[classifier.Category][]Record `json:"records"`
	Errors  []string                         `json:"errors,omitempty"`
}

// Progress reports discovery progress to callers.
type Progress struct {
	Category  classifier.Category
	Region    string
	Count     int
	Err       error
	Timestamp time.Time
}
