// Package dynamokv is a kv.Store on a single DynamoDB table.
//
// Table schema:
//   - Partition key: pk (string) - the logical key, e.g. "Fighter:3"
//   - Sort key: sk (string) - "h#field", "s#member", "z#member",
//     "l#<seq>" or "c#"
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name lattice \
//	  --attribute-definitions AttributeName=pk,AttributeType=S AttributeName=sk,AttributeType=S \
//	  --key-schema AttributeName=pk,KeyType=HASH AttributeName=sk,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
//
// A batch reads the current items of every key it touches, applies the ops
// in memory, and commits the net item changes with one TransactWriteItems
// call. Deletes are conditional on the item still existing and list
// appends on the slot being free, so interference between the read and the
// commit cancels the transaction with kv.ErrConflict instead of committing
// replies computed from stale data.
//
// Every hash field and collection element is its own item, so a batch is
// limited to MaxTransactItems changed items. Deleting a key rewrites one
// item per field or element; large collections must be emptied element by
// element before the key is deleted, as store's Clear and Reap do.
package dynamokv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/lattice/internal/kvstate"
	"github.com/jacentio/lattice/kv"
)

// MaxTransactItems is the TransactWriteItems action limit.
const MaxTransactItems = 100

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Options configures a Store.
type Options struct {
	// Table is the table name.
	// Default: "lattice"
	Table string

	// ReadConcurrency bounds parallel partition reads while preparing a batch.
	// Default: 8
	ReadConcurrency int
}

// Store implements kv.Store on DynamoDB.
type Store struct {
	client Client
	opts   Options
	now    func() time.Time
}

var _ kv.Store = (*Store)(nil)

// New creates a Store.
func New(client Client, opts Options) *Store {
	if opts.Table == "" {
		opts.Table = "lattice"
	}
	if opts.ReadConcurrency < 1 {
		opts.ReadConcurrency = 8
	}
	return &Store{client: client, opts: opts, now: time.Now}
}

// Table returns the table name.
func (s *Store) Table() string { return s.opts.Table }

// load queries every item of partition pk.
func (s *Store) load(ctx context.Context, pk string) (*kvstate.Value, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.opts.Table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ConsistentRead: aws.Bool(true),
	})

	var items []item
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("dynamokv: unmarshal %s: %w", pk, err)
		}
		items = append(items, batch...)
	}
	return assemble(items)
}

func (s *Store) getItem(ctx context.Context, pk, sk string) (*item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.opts.Table),
		Key:            keyOf(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("dynamokv: unmarshal %s/%s: %w", pk, sk, err)
	}
	return &it, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return v.HGetAll()
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	it, err := s.getItem(ctx, key, PrefixHash+field)
	if err != nil || it == nil {
		return "", false, err
	}
	return it.Val, true, nil
}

func (s *Store) HExists(ctx context.Context, key, field string) (bool, error) {
	_, ok, err := s.HGet(ctx, key, field)
	return ok, err
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.opts.Table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
		Limit:          aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Items) > 0, nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	v, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return v.SMembers()
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	it, err := s.getItem(ctx, key, PrefixSet+member)
	return it != nil, err
}

func (s *Store) ZRange(ctx context.Context, key string, start, stop int64, rev bool) ([]string, error) {
	v, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return v.ZRange(start, stop, rev)
}

func (s *Store) ZRangeByScore(ctx context.Context, key string, q kv.ScoreQuery) ([]string, error) {
	v, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return v.ZRangeByScore(q)
}

func (s *Store) ZCount(ctx context.Context, key string, min, max kv.Bound) (int64, error) {
	v, err := s.load(ctx, key)
	if err != nil {
		return 0, err
	}
	return v.ZCount(min, max)
}

func (s *Store) ZRank(ctx context.Context, key, member string, rev bool) (int64, bool, error) {
	v, err := s.load(ctx, key)
	if err != nil {
		return 0, false, err
	}
	return v.ZRank(member, rev)
}

func (s *Store) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	it, err := s.getItem(ctx, key, PrefixZSet+member)
	if err != nil || it == nil {
		return 0, false, err
	}
	return it.Score, true, nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	v, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return v.LRange(start, stop)
}

// Incr atomically increments the counter item of key.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.opts.Table),
		Key:                      keyOf(key, CounterSK),
		UpdateExpression:         aws.String("ADD #n :one"),
		ExpressionAttributeNames: map[string]string{"#n": AttrNum},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	n, ok := out.Attributes[AttrNum].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("dynamokv: counter %s returned no value", key)
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

// Batch returns a batch committed with one TransactWriteItems call.
func (s *Store) Batch() *kv.Batch {
	return kv.NewBatch(s.exec)
}

func (s *Store) exec(ctx context.Context, ops []kv.Op) ([]int64, error) {
	before, err := s.preload(ctx, ops)
	if err != nil {
		return nil, err
	}

	// List slots are time-ordered so concurrent writers append after
	// each other rather than colliding on max+1.
	base := uint64(s.now().UnixNano())
	o := kvstate.NewOverlay(func(key string) (*kvstate.Value, error) {
		v := before[key].Clone()
		if v != nil && v.Kind == kvstate.KindList && v.NextSeq < base {
			v.NextSeq = base
		}
		return v, nil
	})
	o.SeqBase = base

	res, err := o.ApplyAll(ops)
	if err != nil {
		return nil, err
	}

	var writes []types.TransactWriteItem
	err = o.Changes(func(key string, v *kvstate.Value) error {
		w, err := diff(s.opts.Table, key, before[key], v)
		if err != nil {
			return err
		}
		writes = append(writes, w...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(writes) == 0 {
		return res, nil
	}
	if len(writes) > MaxTransactItems {
		return nil, fmt.Errorf("dynamokv: batch needs %d writes, limit is %d", len(writes), MaxTransactItems)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err != nil {
		var txErr *types.TransactionCanceledException
		if errors.As(err, &txErr) {
			for _, reason := range txErr.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return nil, fmt.Errorf("%w: %v", kv.ErrConflict, err)
				}
			}
		}
		return nil, err
	}
	return res, nil
}

// preload reads every partition touched by ops in parallel.
func (s *Store) preload(ctx context.Context, ops []kv.Op) (map[string]*kvstate.Value, error) {
	var keys []string
	seen := map[string]bool{}
	for _, op := range ops {
		if !seen[op.Key] {
			seen[op.Key] = true
			keys = append(keys, op.Key)
		}
	}

	var mu sync.Mutex
	values := make(map[string]*kvstate.Value, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ReadConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			v, err := s.load(ctx, key)
			if err != nil {
				return fmt.Errorf("load %s: %w", key, err)
			}
			mu.Lock()
			values[key] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

// Close is a no-op; the DynamoDB client holds no connections to release.
func (s *Store) Close() error { return nil }
