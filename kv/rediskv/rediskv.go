// Package rediskv is a kv.Store on Redis. Batches run as MULTI/EXEC
// transactions, which is the atomicity the consistency engine relies on.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/jacentio/lattice/kv"
)

// Store adapts a go-redis client to kv.Store.
type Store struct {
	client redis.UniversalClient
}

var _ kv.Store = (*Store)(nil)

// New wraps client. Close closes the client.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Client returns the underlying client.
func (s *Store) Client() redis.UniversalClient { return s.client }

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) HExists(ctx context.Context, key, field string) (bool, error) {
	return s.client.HExists(ctx, key, field).Result()
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.client.SIsMember(ctx, key, member).Result()
}

func (s *Store) ZRange(ctx context.Context, key string, start, stop int64, rev bool) ([]string, error) {
	if rev {
		return s.client.ZRevRange(ctx, key, start, stop).Result()
	}
	return s.client.ZRange(ctx, key, start, stop).Result()
}

func (s *Store) ZRangeByScore(ctx context.Context, key string, q kv.ScoreQuery) ([]string, error) {
	by := &redis.ZRangeBy{
		Min:    q.Min.String(),
		Max:    q.Max.String(),
		Offset: q.Offset,
		Count:  q.Count,
	}
	// LIMIT offset 0 returns nothing, a negative count means no limit.
	if by.Offset > 0 && by.Count <= 0 {
		by.Count = -1
	}
	if q.Reverse {
		return s.client.ZRevRangeByScore(ctx, key, by).Result()
	}
	return s.client.ZRangeByScore(ctx, key, by).Result()
}

func (s *Store) ZCount(ctx context.Context, key string, min, max kv.Bound) (int64, error) {
	return s.client.ZCount(ctx, key, min.String(), max.String()).Result()
}

func (s *Store) ZRank(ctx context.Context, key, member string, rev bool) (int64, bool, error) {
	var cmd *redis.IntCmd
	if rev {
		cmd = s.client.ZRevRank(ctx, key, member)
	} else {
		cmd = s.client.ZRank(ctx, key, member)
	}
	rank, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank, true, nil
}

func (s *Store) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, err := s.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.LRange(ctx, key, start, stop).Result()
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

// Batch returns a batch executed as a MULTI/EXEC transaction.
func (s *Store) Batch() *kv.Batch {
	return kv.NewBatch(s.exec)
}

func (s *Store) exec(ctx context.Context, ops []kv.Op) ([]int64, error) {
	pipe := s.client.TxPipeline()
	cmds := make([]*redis.IntCmd, len(ops))
	for i, op := range ops {
		switch op.Code {
		case kv.OpHSet:
			cmds[i] = pipe.HSet(ctx, op.Key, hsetArgs(op.Fields)...)
		case kv.OpHDel:
			cmds[i] = pipe.HDel(ctx, op.Key, op.Field)
		case kv.OpDel:
			cmds[i] = pipe.Del(ctx, op.Key)
		case kv.OpSAdd:
			cmds[i] = pipe.SAdd(ctx, op.Key, op.Value)
		case kv.OpSRem:
			cmds[i] = pipe.SRem(ctx, op.Key, op.Value)
		case kv.OpZAdd:
			cmds[i] = pipe.ZAdd(ctx, op.Key, redis.Z{Score: op.Score, Member: op.Value})
		case kv.OpZRem:
			cmds[i] = pipe.ZRem(ctx, op.Key, op.Value)
		case kv.OpRPush:
			cmds[i] = pipe.RPush(ctx, op.Key, op.Value)
		case kv.OpLRem:
			cmds[i] = pipe.LRem(ctx, op.Key, 0, op.Value)
		default:
			pipe.Discard()
			return nil, fmt.Errorf("rediskv: unsupported op %s", op.Code)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	res := make([]int64, len(cmds))
	for i, cmd := range cmds {
		res[i] = cmd.Val()
	}
	return res, nil
}

// hsetArgs flattens fields into HSET's field/value argument list in a
// stable order.
func hsetArgs(fields map[string]string) []interface{} {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	args := make([]interface{}, 0, 2*len(names))
	for _, f := range names {
		args = append(args, f, fields[f])
	}
	return args
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
