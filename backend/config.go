// Package backend opens the kv.Store a deployment is configured for.
//
// Configuration is a TOML file:
//
//	driver = "redis"
//
//	[redis]
//	addr = "localhost:6379"
//	db = 0
//
//	[bolt]
//	path = "/var/lib/lattice/data.db"
//	timeout = "1s"
//
//	[dynamodb]
//	table = "lattice"
//	region = "eu-west-1"
//	endpoint = "http://localhost:8000"
package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Drivers understood by Open.
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverRedis    = "redis"
	DriverDynamoDB = "dynamodb"
)

// Duration is a time.Duration that decodes from strings such as "1s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats d as a duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config selects and locates the backing store.
type Config struct {
	// Driver is one of memory, bolt, redis or dynamodb.
	// Default: "redis"
	Driver string `toml:"driver"`

	Redis    RedisConfig    `toml:"redis"`
	Bolt     BoltConfig     `toml:"bolt"`
	DynamoDB DynamoDBConfig `toml:"dynamodb"`
}

// RedisConfig locates a Redis server.
type RedisConfig struct {
	// Default: "localhost:6379"
	Addr     string `toml:"addr"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`

	// DialTimeout bounds connecting and the initial ping.
	// Default: 5s
	DialTimeout Duration `toml:"dial-timeout"`
}

// BoltConfig locates a bbolt database file.
type BoltConfig struct {
	Path string `toml:"path"`

	// Timeout bounds how long Open waits for the file lock.
	// Default: 1s
	Timeout Duration `toml:"timeout"`
}

// DynamoDBConfig locates a DynamoDB table. Credentials come from the
// default AWS chain.
type DynamoDBConfig struct {
	// Default: "lattice"
	Table   string `toml:"table"`
	Region  string `toml:"region"`
	Profile string `toml:"profile"`

	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string `toml:"endpoint"`

	// ReadConcurrency bounds parallel partition reads per batch.
	// Default: 8
	ReadConcurrency int `toml:"read-concurrency"`
}

// DefaultConfig returns the default configuration: Redis on localhost.
func DefaultConfig() Config {
	return Config{
		Driver: DriverRedis,
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: Duration(5 * time.Second),
		},
		Bolt: BoltConfig{
			Timeout: Duration(time.Second),
		},
		DynamoDB: DynamoDBConfig{
			Table:           "lattice",
			ReadConcurrency: 8,
		},
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("backend: load %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("backend: load %s: unknown key %q", path, undecoded[0].String())
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ParseConfig decodes TOML text over the defaults.
func ParseConfig(text string) (Config, error) {
	c := DefaultConfig()
	md, err := toml.Decode(text, &c)
	if err != nil {
		return Config{}, fmt.Errorf("backend: parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("backend: parse config: unknown key %q", undecoded[0].String())
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverMemory:
	case DriverBolt:
		if c.Bolt.Path == "" {
			return errors.New("backend: bolt.path is required")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("backend: redis.addr is required")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("backend: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	case DriverDynamoDB:
		if c.DynamoDB.Table == "" {
			return errors.New("backend: dynamodb.table is required")
		}
	default:
		return fmt.Errorf("backend: unknown driver %q", c.Driver)
	}
	return nil
}
