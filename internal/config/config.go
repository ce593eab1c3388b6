package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for the compaction daemon.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Compaction CompactionConfig `yaml:"compaction"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Health     HealthConfig     `yaml:"health"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StorageConfig holds the file-system layout the daemon operates over.
type StorageConfig struct {
	ArchiveDir      string  `yaml:"archive_dir"`
	StagingDir      string  `yaml:"staging_dir"`
	TableDir        string  `yaml:"table_dir"`
	MaxDiskUsage    float64 `yaml:"max_disk_usage"`
}

// CompactionConfig holds the tunables named in spec.md §6.
type CompactionConfig struct {
	MergeableThreshold int64  `yaml:"mergeable_threshold"`
	DelFileMaxCount    int    `yaml:"del_file_max_count"`
	BatchSize          int    `yaml:"batch_size"`
	KVMax              int    `yaml:"kv_max"`
	Workers            int    `yaml:"workers"`
	Policy             string `yaml:"policy"`
	Compression        string `yaml:"compression"`
}

// MetricsConfig holds the /metrics listener configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// HealthConfig holds CheckInterval, which the reference driver uses as
// the scheduler's poll interval.
type HealthConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
}

// LoggingConfig holds zap logger configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig loads configuration from a YAML file, applies defaults,
// and validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Storage.ArchiveDir == "" {
		cfg.Storage.ArchiveDir = "/var/lib/mobcompactor/archive"
	}
	if cfg.Storage.StagingDir == "" {
		cfg.Storage.StagingDir = "/var/lib/mobcompactor/staging"
	}
	if cfg.Storage.TableDir == "" {
		cfg.Storage.TableDir = "/var/lib/mobcompactor/mobdir"
	}
	if cfg.Storage.MaxDiskUsage == 0 {
		cfg.Storage.MaxDiskUsage = 0.9
	}

	if cfg.Compaction.MergeableThreshold == 0 {
		cfg.Compaction.MergeableThreshold = 1280 * 1024 * 1024 // 1.25GB, HBase's default
	}
	if cfg.Compaction.DelFileMaxCount == 0 {
		cfg.Compaction.DelFileMaxCount = 3
	}
	if cfg.Compaction.BatchSize == 0 {
		cfg.Compaction.BatchSize = 100
	}
	if cfg.Compaction.KVMax == 0 {
		cfg.Compaction.KVMax = 10000
	}
	if cfg.Compaction.Workers == 0 {
		cfg.Compaction.Workers = 4
	}
	if cfg.Compaction.Policy == "" {
		cfg.Compaction.Policy = "DAILY"
	}
	if cfg.Compaction.Compression == "" {
		cfg.Compaction.Compression = "NONE"
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9091
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health.CheckInterval == 0 {
		cfg.Health.CheckInterval = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Storage.MaxDiskUsage <= 0 || c.Storage.MaxDiskUsage > 1 {
		return fmt.Errorf("storage.max_disk_usage must be between 0 and 1")
	}
	if c.Compaction.MergeableThreshold <= 0 {
		return fmt.Errorf("compaction.mergeable_threshold must be positive")
	}
	if c.Compaction.DelFileMaxCount <= 0 {
		return fmt.Errorf("compaction.del_file_max_count must be positive")
	}
	if c.Compaction.BatchSize <= 0 {
		return fmt.Errorf("compaction.batch_size must be positive")
	}
	if c.Compaction.Workers <= 0 {
		return fmt.Errorf("compaction.workers must be positive")
	}
	switch c.Compaction.Policy {
	case "DAILY", "WEEKLY", "MONTHLY":
	default:
		return fmt.Errorf("compaction.policy must be one of DAILY, WEEKLY, MONTHLY")
	}
	switch c.Compaction.Compression {
	case "NONE", "SNAPPY":
	default:
		return fmt.Errorf("compaction.compression must be one of NONE, SNAPPY")
	}
	return nil
}
