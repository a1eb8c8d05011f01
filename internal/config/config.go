package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/billspectre/internal/rules"
)

// Config holds billspectre configuration loaded from .billspectre.yaml.
type Config struct {
	Profile          string     `yaml:"profile"`
	Regions          []string   `yaml:"regions"`
	Services         []string   `yaml:"services"`
	OutputDir        string     `yaml:"output_dir"`
	Format           string     `yaml:"format"`
	Timeout          string     `yaml:"timeout"`
	Concurrency      int        `yaml:"concurrency"`
	TelemetryDays    int        `yaml:"telemetry_days"`
	MinMonthlyImpact float64    `yaml:"min_monthly_impact"`
	HistoryDB        string     `yaml:"history_db"`
	Thresholds       Thresholds `yaml:"thresholds"`
}

// Thresholds override the built-in rule thresholds. Zero values keep the
// default.
type Thresholds struct {
	TopService       float64 `yaml:"top_service"`
	EKS              float64 `yaml:"eks"`
	RDS              float64 `yaml:"rds"`
	EC2              float64 `yaml:"ec2"`
	S3               float64 `yaml:"s3"`
	Lambda           float64 `yaml:"lambda"`
	Budget           float64 `yaml:"budget"`
	StorageTieringGB float64 `yaml:"storage_tiering_gb"`
	SprawlServices   int     `yaml:"sprawl_services"`
}

// TimeoutDuration parses the timeout string as a duration.
func (c Config) TimeoutDuration() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// RuleThresholds merges configured thresholds over the defaults.
func (c Config) RuleThresholds() rules.Thresholds {
	th := rules.DefaultThresholds()
	t := c.Thresholds
	for _, o := range []struct {
		value float64
		dst   *decimal.Decimal
	}{
		{t.TopService, &th.TopService},
		{t.EKS, &th.Kubernetes},
		{t.RDS, &th.Database},
		{t.EC2, &th.Compute},
		{t.S3, &th.Storage},
		{t.Lambda, &th.Function},
		{t.Budget, &th.Budget},
	} {
		if o.value > 0 {
			*o.dst = decimal.NewFromFloat(o.value)
		}
	}
	if t.StorageTieringGB > 0 {
		th.StorageTieringGB = t.StorageTieringGB
	}
	if t.SprawlServices > 0 {
		th.SprawlServices = t.SprawlServices
	}
	return th
}

// Load searches for .billspectre.yaml or .billspectre.yml in the given
// directory and returns the parsed config. Returns an empty Config if no
// file is found.
func Load(dir string) (Config, error) {
	candidates := []string{
		filepath.Join(dir, ".billspectre.yaml"),
		filepath.Join(dir, ".billspectre.yml"),
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		return cfg, nil
	}

	return Config{}, nil
}
