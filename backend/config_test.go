package backend

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.Driver != DriverRedis {
		t.Errorf("expected driver redis, got %q", c.Driver)
	}
	if c.Redis.Addr != "localhost:6379" || c.Redis.DB != 0 {
		t.Errorf("expected localhost:6379 db 0, got %s db %d", c.Redis.Addr, c.Redis.DB)
	}
	if err := c.validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig(`
driver = "bolt"

[bolt]
path = "/tmp/lattice.db"
timeout = "250ms"

[redis]
db = 2
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Driver != DriverBolt || c.Bolt.Path != "/tmp/lattice.db" {
		t.Errorf("unexpected bolt config: %+v", c.Bolt)
	}
	if time.Duration(c.Bolt.Timeout) != 250*time.Millisecond {
		t.Errorf("expected timeout 250ms, got %v", time.Duration(c.Bolt.Timeout))
	}
	// Unset keys keep their defaults.
	if c.Redis.DB != 2 || c.Redis.Addr != "localhost:6379" {
		t.Errorf("expected defaults merged, got %+v", c.Redis)
	}
}

func TestParseConfig_BadDuration(t *testing.T) {
	_, err := ParseConfig(`
[redis]
dial-timeout = "soon"
`)
	if err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestParseConfig_UnknownKey(t *testing.T) {
	_, err := ParseConfig(`
[redis]
adress = "cache:6379"
`)
	if err == nil || !strings.Contains(err.Error(), "redis.adress") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"memory", func(c *Config) { c.Driver = DriverMemory }, ""},
		{"unknown driver", func(c *Config) { c.Driver = "sqlite" }, "unknown driver"},
		{"bolt without path", func(c *Config) { c.Driver = DriverBolt }, "bolt.path"},
		{"redis without addr", func(c *Config) { c.Redis.Addr = "" }, "redis.addr"},
		{"negative db", func(c *Config) { c.Redis.DB = -1 }, "redis.db"},
		{"dynamodb without table", func(c *Config) {
			c.Driver = DriverDynamoDB
			c.DynamoDB.Table = ""
		}, "dynamodb.table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			err := c.validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.toml")
	data := `
driver = "dynamodb"

[dynamodb]
table = "fighters"
region = "eu-west-1"
endpoint = "http://localhost:8000"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DynamoDB.Table != "fighters" || c.DynamoDB.Region != "eu-west-1" || c.DynamoDB.Endpoint != "http://localhost:8000" {
		t.Errorf("unexpected dynamodb config: %+v", c.DynamoDB)
	}
	if c.DynamoDB.ReadConcurrency != 8 {
		t.Errorf("expected default read concurrency 8, got %d", c.DynamoDB.ReadConcurrency)
	}
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.toml")
	if err := os.WriteFile(path, []byte("driver = \"memory\"\nport = 6379\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "port") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
