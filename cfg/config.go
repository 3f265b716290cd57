package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// Eligibility policy names
const (
	EligibilityDefault = "default" // everything except Completed/Canceled is claimable
	EligibilityStrict  = "strict"  // only Requested/RetryFailed (+Running when reclaiming)
)

// Composite status policy names
const (
	CompositeUnresolvedFirst = "unresolved-first"
	CompositeCompletedFirst  = "completed-first"
)

// StreamConfiguration controls the streams created at startup
type StreamConfiguration struct {
	Names             []string `toml:"names"`              // Streams created on start
	Locators          int      `toml:"locators"`           // Partitions per stream (1 = single locator)
	LocatorPrefix     string   `toml:"locator_prefix"`     // Partition name prefix
	ReclaimRunning    bool     `toml:"reclaim_running"`    // TryHandle may re-select Running records
	EligibilityPolicy string   `toml:"eligibility_policy"` // "default" or "strict"
	CompositePolicy   string   `toml:"composite_policy"`   // "unresolved-first" or "completed-first"
	IDFilterCapacity  uint     `toml:"id_filter_capacity"` // Distinct ids per partition before the filter saturates
}

// SerializationConfiguration controls object helpers
type SerializationConfiguration struct {
	Kind          string `toml:"kind"`            // "msgpack" or "json"
	Compression   string `toml:"compression"`     // "" or "zstd"
	TypeCacheSize int    `toml:"type_cache_size"` // LRU entries for type descriptions
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled                bool `toml:"enabled"`
	CollectIntervalSeconds int  `toml:"collect_interval_seconds"`
}

// AdminConfiguration for the inspection HTTP server
type AdminConfiguration struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
	Port        int    `toml:"port"`
	AuthToken   string `toml:"auth_token"` // Empty disables authentication
}

// SinkConfiguration describes one change feed destination
type SinkConfiguration struct {
	Name            string   `toml:"name"`
	Type            string   `toml:"type"`   // "kafka" or "nats"
	Format          string   `toml:"format"` // "json" or "msgpack"
	FilterStreams   []string `toml:"filter_streams"`
	FilterConcerns  []string `toml:"filter_concerns"`
	TopicPrefix     string   `toml:"topic_prefix"`
	Brokers         []string `toml:"brokers"`
	NatsURL         string   `toml:"nats_url"`
	BatchSize       int      `toml:"batch_size"`
	PollIntervalMS  int      `toml:"poll_interval_ms"`
	RetryInitialMS  int      `toml:"retry_initial_ms"`
	RetryMaxMS      int      `toml:"retry_max_ms"`
	RetryMultiplier float64  `toml:"retry_multiplier"`
}

// FeedConfiguration controls the change feed
type FeedConfiguration struct {
	Enabled                bool                `toml:"enabled"`
	RetentionHours         int                 `toml:"retention_hours"` // Published events older than this are dropped
	CleanupIntervalSeconds int                 `toml:"cleanup_interval_seconds"`
	Sinks                  []SinkConfiguration `toml:"sinks"`
}

// Configuration is the main configuration structure
type Configuration struct {
	InstanceID uint64 `toml:"instance_id"`
	DataDir    string `toml:"data_dir"`

	Stream        StreamConfiguration        `toml:"stream"`
	Serialization SerializationConfiguration `toml:"serialization"`
	Logging       LoggingConfiguration       `toml:"logging"`
	Prometheus    PrometheusConfiguration    `toml:"prometheus"`
	Admin         AdminConfiguration         `toml:"admin"`
	Feed          FeedConfiguration          `toml:"feed"`
}

// IsAdminAuthEnabled returns true when admin requests must carry a token
func IsAdminAuthEnabled() bool {
	return Config.Admin.AuthToken != ""
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	DataDirFlag    = flag.String("data-dir", "", "Data directory (overrides config)")
	InstanceIDFlag = flag.Uint64("instance-id", 0, "Instance ID (overrides config, 0=auto)")
	AdminPortFlag  = flag.Int("admin-port", 0, "Admin HTTP port (overrides config)")
)

// Default configuration
var Config = &Configuration{
	InstanceID: 0, // Auto-generate
	DataDir:    "./recordstream-data",

	Stream: StreamConfiguration{
		Names:             []string{"default"},
		Locators:          1,
		LocatorPrefix:     "partition",
		ReclaimRunning:    true,
		EligibilityPolicy: EligibilityDefault,
		CompositePolicy:   CompositeUnresolvedFirst,
		IDFilterCapacity:  1 << 20,
	},

	Serialization: SerializationConfiguration{
		Kind:          "msgpack",
		Compression:   "",
		TypeCacheSize: 1024,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled:                true,
		CollectIntervalSeconds: 15,
	},

	Admin: AdminConfiguration{
		Enabled:     true,
		BindAddress: "0.0.0.0",
		Port:        8090,
	},

	Feed: FeedConfiguration{
		Enabled:                false,
		RetentionHours:         24,
		CleanupIntervalSeconds: 300,
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *DataDirFlag != "" {
		Config.DataDir = *DataDirFlag
	}
	if *InstanceIDFlag != 0 {
		Config.InstanceID = *InstanceIDFlag
	}
	if *AdminPortFlag != 0 {
		Config.Admin.Port = *AdminPortFlag
	}

	if Config.InstanceID == 0 {
		Config.InstanceID = generateInstanceID()
		log.Info().Uint64("instance_id", Config.InstanceID).Msg("Auto-generated instance ID")
	}

	// Only the change feed touches disk
	if Config.Feed.Enabled {
		if err := os.MkdirAll(Config.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return nil
}

// generateInstanceID derives a stable id from the machine id, falling back
// to the hostname on hosts without one.
func generateInstanceID() uint64 {
	seed, err := machineid.ProtectedID("recordstream")
	if err != nil {
		log.Warn().Err(err).Msg("Machine ID unavailable, deriving instance ID from hostname")
		seed, err = os.Hostname()
		if err != nil || seed == "" {
			seed = "localhost"
		}
	}

	h := fnv.New64a()
	h.Write([]byte(seed))
	id := h.Sum64()
	if id == 0 {
		id = 1
	}
	return id
}

// Validate checks configuration for errors
func Validate() error {
	if len(Config.Stream.Names) == 0 {
		return fmt.Errorf("at least one stream name is required")
	}
	seen := make(map[string]bool, len(Config.Stream.Names))
	for _, name := range Config.Stream.Names {
		if name == "" {
			return fmt.Errorf("stream names must not be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate stream name: %s", name)
		}
		seen[name] = true
	}

	if Config.Stream.Locators < 1 {
		return fmt.Errorf("stream locators must be >= 1")
	}

	switch Config.Stream.EligibilityPolicy {
	case EligibilityDefault, EligibilityStrict:
	default:
		return fmt.Errorf("invalid eligibility policy: %s", Config.Stream.EligibilityPolicy)
	}

	switch Config.Stream.CompositePolicy {
	case CompositeUnresolvedFirst, CompositeCompletedFirst:
	default:
		return fmt.Errorf("invalid composite policy: %s", Config.Stream.CompositePolicy)
	}

	switch Config.Serialization.Kind {
	case "msgpack", "json":
	default:
		return fmt.Errorf("invalid serialization kind: %s", Config.Serialization.Kind)
	}

	switch Config.Serialization.Compression {
	case "", "zstd":
	default:
		return fmt.Errorf("invalid compression: %s", Config.Serialization.Compression)
	}

	if Config.Serialization.TypeCacheSize < 1 {
		return fmt.Errorf("type cache size must be >= 1")
	}

	if Config.Admin.Enabled && (Config.Admin.Port < 1 || Config.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	if Config.Prometheus.Enabled && Config.Prometheus.CollectIntervalSeconds < 1 {
		return fmt.Errorf("metrics collect interval must be >= 1 second")
	}

	if Config.Feed.Enabled {
		if Config.Feed.RetentionHours < 1 {
			return fmt.Errorf("feed retention must be >= 1 hour")
		}
		if Config.Feed.CleanupIntervalSeconds < 1 {
			return fmt.Errorf("feed cleanup interval must be >= 1 second")
		}
		names := make(map[string]bool, len(Config.Feed.Sinks))
		for _, s := range Config.Feed.Sinks {
			if s.Name == "" {
				return fmt.Errorf("feed sink name is required")
			}
			if names[s.Name] {
				return fmt.Errorf("duplicate feed sink: %s", s.Name)
			}
			names[s.Name] = true
			if s.Type == "" {
				return fmt.Errorf("feed sink %s: type is required", s.Name)
			}
			if s.RetryMultiplier != 0 && s.RetryMultiplier < 1 {
				return fmt.Errorf("feed sink %s: retry multiplier must be >= 1", s.Name)
			}
		}
	}

	return nil
}
