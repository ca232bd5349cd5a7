package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	"github.com/jacentio/lattice/kv"
	"github.com/jacentio/lattice/kv/boltkv"
	"github.com/jacentio/lattice/kv/dynamokv"
	"github.com/jacentio/lattice/kv/memkv"
	"github.com/jacentio/lattice/kv/rediskv"
)

// Open connects to the store cfg selects. Redis connections are checked
// with a ping; DynamoDB is not contacted until first use.
func Open(ctx context.Context, cfg Config) (kv.Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("driver", cfg.Driver)

	switch cfg.Driver {
	case DriverMemory:
		return memkv.New(), nil

	case DriverBolt:
		s, err := boltkv.Open(cfg.Bolt.Path, boltkv.Options{
			Timeout: time.Duration(cfg.Bolt.Timeout),
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case DriverRedis:
		return openRedis(ctx, cfg.Redis, logger)

	case DriverDynamoDB:
		return openDynamoDB(ctx, cfg.DynamoDB, logger)
	}
	return nil, fmt.Errorf("backend: unknown driver %q", cfg.Driver)
}

func openRedis(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (kv.Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: time.Duration(cfg.DialTimeout),
	})

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.DialTimeout))
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("backend: redis %s: %w", cfg.Addr, err)
	}

	logger.Info("connected", "addr", cfg.Addr, "db", cfg.DB)
	return rediskv.New(client), nil
}

func openDynamoDB(ctx context.Context, cfg DynamoDBConfig, logger *slog.Logger) (kv.Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("backend: load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger.Info("using table", "table", cfg.Table, "region", awsCfg.Region)
	return dynamokv.New(client, dynamokv.Options{
		Table:           cfg.Table,
		ReadConcurrency: cfg.ReadConcurrency,
	}), nil
}
