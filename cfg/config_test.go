package cfg

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Configuration {
	return &Configuration{
		InstanceID: 1,
		DataDir:    "./test-data",
		Stream: StreamConfiguration{
			Names:             []string{"orders"},
			Locators:          2,
			EligibilityPolicy: EligibilityDefault,
			CompositePolicy:   CompositeUnresolvedFirst,
		},
		Serialization: SerializationConfiguration{
			Kind:          "msgpack",
			TypeCacheSize: 16,
		},
		Admin: AdminConfiguration{
			Enabled: true,
			Port:    8090,
		},
		Prometheus: PrometheusConfiguration{
			Enabled:                true,
			CollectIntervalSeconds: 5,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()

	if err := Validate(); err != nil {
		t.Errorf("Expected no error for valid config, got: %v", err)
	}
}

func TestValidate_DefaultConfig(t *testing.T) {
	if err := Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"no streams", func(c *Configuration) { c.Stream.Names = nil }},
		{"empty stream name", func(c *Configuration) { c.Stream.Names = []string{""} }},
		{"duplicate stream", func(c *Configuration) { c.Stream.Names = []string{"a", "a"} }},
		{"zero locators", func(c *Configuration) { c.Stream.Locators = 0 }},
		{"eligibility", func(c *Configuration) { c.Stream.EligibilityPolicy = "lenient" }},
		{"composite", func(c *Configuration) { c.Stream.CompositePolicy = "first" }},
		{"serialization", func(c *Configuration) { c.Serialization.Kind = "xml" }},
		{"compression", func(c *Configuration) { c.Serialization.Compression = "lz4" }},
		{"type cache", func(c *Configuration) { c.Serialization.TypeCacheSize = 0 }},
		{"admin port", func(c *Configuration) { c.Admin.Port = 70000 }},
		{"collect interval", func(c *Configuration) { c.Prometheus.CollectIntervalSeconds = 0 }},
		{"feed sink without type", func(c *Configuration) {
			c.Feed = FeedConfiguration{Enabled: true, RetentionHours: 1, CleanupIntervalSeconds: 1,
				Sinks: []SinkConfiguration{{Name: "s"}}}
		}},
		{"feed duplicate sink", func(c *Configuration) {
			c.Feed = FeedConfiguration{Enabled: true, RetentionHours: 1, CleanupIntervalSeconds: 1,
				Sinks: []SinkConfiguration{{Name: "s", Type: "nats"}, {Name: "s", Type: "kafka"}}}
		}},
	}

	for _, tt := range tests {
		Config = validConfig()
		tt.mutate(Config)
		if err := Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestValidate_DisabledAdminIgnoresPort(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	Config.Admin = AdminConfiguration{Enabled: false, Port: -1}
	if err := Validate(); err != nil {
		t.Errorf("Expected no error with admin disabled, got: %v", err)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	Config.InstanceID = 0

	if err := Load("non-existent-file.toml"); err != nil {
		t.Errorf("Expected no error for non-existent file, got: %v", err)
	}

	if Config.InstanceID == 0 {
		t.Error("Expected instance ID to be auto-generated")
	}
}

func TestLoad_File(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
instance_id = 42
data_dir = "` + filepath.ToSlash(dir) + `"

[stream]
names = ["orders", "invoices"]
locators = 4
reclaim_running = false
eligibility_policy = "strict"

[feed]
enabled = true
retention_hours = 2
cleanup_interval_seconds = 10

[[feed.sinks]]
name = "events"
type = "nats"
format = "json"
nats_url = "nats://localhost:4222"
filter_concerns = ["billing-*"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if Config.InstanceID != 42 {
		t.Errorf("Expected instance ID 42, got %d", Config.InstanceID)
	}
	if len(Config.Stream.Names) != 2 || Config.Stream.Locators != 4 {
		t.Errorf("Unexpected stream config: %+v", Config.Stream)
	}
	if Config.Stream.ReclaimRunning {
		t.Error("Expected reclaim_running=false from file")
	}
	if len(Config.Feed.Sinks) != 1 || Config.Feed.Sinks[0].NatsURL != "nats://localhost:4222" {
		t.Errorf("Unexpected sinks: %+v", Config.Feed.Sinks)
	}
	if err := Validate(); err != nil {
		t.Errorf("Loaded config should validate: %v", err)
	}
}

func TestLoad_CreateDataDirForFeed(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tempDir := filepath.Join(t.TempDir(), "feed-data")

	Config = validConfig()
	Config.DataDir = tempDir
	Config.Feed.Enabled = true

	if err := Load(""); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Error("Data directory was not created")
	}
}

func TestGenerateInstanceID(t *testing.T) {
	id1 := generateInstanceID()
	if id1 == 0 {
		t.Error("Generated instance ID should not be 0")
	}

	id2 := generateInstanceID()
	if id1 != id2 {
		t.Error("Instance ID should be deterministic for same machine")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tempDir := t.TempDir()

	*DataDirFlag = tempDir
	*InstanceIDFlag = 12345
	*AdminPortFlag = 9999

	defer func() {
		*DataDirFlag = ""
		*InstanceIDFlag = 0
		*AdminPortFlag = 0
	}()

	Config = validConfig()
	Config.InstanceID = 0

	if err := Load(""); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if Config.DataDir != tempDir {
		t.Errorf("Expected data dir %s, got %s", tempDir, Config.DataDir)
	}
	if Config.InstanceID != 12345 {
		t.Errorf("Expected instance ID 12345, got %d", Config.InstanceID)
	}
	if Config.Admin.Port != 9999 {
		t.Errorf("Expected admin port 9999, got %d", Config.Admin.Port)
	}
}

func BenchmarkValidate(b *testing.B) {
	original := Config
	defer func() { Config = original }()

	Config = validConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Validate()
	}
}
