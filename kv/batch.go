package kv

import (
	"context"
	"fmt"
)

// OpCode identifies a batched write primitive.
type OpCode uint8

const (
	OpHSet OpCode = iota + 1
	OpHDel
	OpDel
	OpSAdd
	OpSRem
	OpZAdd
	OpZRem
	OpRPush
	OpLRem
)

var opNames = map[OpCode]string{
	OpHSet:  "HSET",
	OpHDel:  "HDEL",
	OpDel:   "DEL",
	OpSAdd:  "SADD",
	OpSRem:  "SREM",
	OpZAdd:  "ZADD",
	OpZRem:  "ZREM",
	OpRPush: "RPUSH",
	OpLRem:  "LREM",
}

func (c OpCode) String() string {
	if s, ok := opNames[c]; ok {
		return s
	}
	return fmt.Sprintf("OpCode(%d)", uint8(c))
}

// Op is one queued write.
//
// Field is used by HDEL. Fields is used by HSET. Value carries the member or
// list element of set, sorted-set and list ops. Score is used by ZADD.
type Op struct {
	Code   OpCode
	Key    string
	Field  string
	Fields map[string]string
	Value  string
	Score  float64
}

func (op Op) String() string {
	switch op.Code {
	case OpHSet:
		return fmt.Sprintf("%s %s (%d fields)", op.Code, op.Key, len(op.Fields))
	case OpHDel:
		return fmt.Sprintf("%s %s %s", op.Code, op.Key, op.Field)
	case OpDel:
		return fmt.Sprintf("%s %s", op.Code, op.Key)
	case OpZAdd:
		return fmt.Sprintf("%s %s %v %s", op.Code, op.Key, op.Score, op.Value)
	default:
		return fmt.Sprintf("%s %s %s", op.Code, op.Key, op.Value)
	}
}

// Executor applies ops indivisibly and returns one integer reply per op.
type Executor func(ctx context.Context, ops []Op) ([]int64, error)

// Batch queues writes to be applied together by Exec.
//
// Replies follow Redis semantics: HSET, SADD and ZADD return the number of
// new entries; HDEL, SREM, ZREM, LREM and DEL return the number removed;
// RPUSH returns the list length after the push.
type Batch struct {
	ops  []Op
	exec Executor
}

// NewBatch returns an empty batch that will be applied by exec.
func NewBatch(exec Executor) *Batch {
	return &Batch{exec: exec}
}

// HSet merges fields into the hash at key. An empty map queues nothing.
func (b *Batch) HSet(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	b.ops = append(b.ops, Op{Code: OpHSet, Key: key, Fields: cp})
}

// HDel removes field from the hash at key.
func (b *Batch) HDel(key, field string) {
	b.ops = append(b.ops, Op{Code: OpHDel, Key: key, Field: field})
}

// Del removes key entirely.
func (b *Batch) Del(key string) {
	b.ops = append(b.ops, Op{Code: OpDel, Key: key})
}

// SAdd adds member to the set at key.
func (b *Batch) SAdd(key, member string) {
	b.ops = append(b.ops, Op{Code: OpSAdd, Key: key, Value: member})
}

// SRem removes member from the set at key.
func (b *Batch) SRem(key, member string) {
	b.ops = append(b.ops, Op{Code: OpSRem, Key: key, Value: member})
}

// ZAdd adds member with score, or updates the score of an existing member.
func (b *Batch) ZAdd(key, member string, score float64) {
	b.ops = append(b.ops, Op{Code: OpZAdd, Key: key, Value: member, Score: score})
}

// ZRem removes member from the sorted set at key.
func (b *Batch) ZRem(key, member string) {
	b.ops = append(b.ops, Op{Code: OpZRem, Key: key, Value: member})
}

// RPush appends value to the list at key.
func (b *Batch) RPush(key, value string) {
	b.ops = append(b.ops, Op{Code: OpRPush, Key: key, Value: value})
}

// LRem removes every occurrence of value from the list at key.
func (b *Batch) LRem(key, value string) {
	b.ops = append(b.ops, Op{Code: OpLRem, Key: key, Value: value})
}

// Len returns the number of queued ops.
func (b *Batch) Len() int { return len(b.ops) }

// Ops returns the queued ops in issue order.
func (b *Batch) Ops() []Op { return b.ops }

// Exec applies the queued ops. An empty batch is a no-op.
func (b *Batch) Exec(ctx context.Context) ([]int64, error) {
	if len(b.ops) == 0 {
		return nil, nil
	}
	res, err := b.exec(ctx, b.ops)
	if err != nil {
		return nil, err
	}
	if len(res) != len(b.ops) {
		return nil, fmt.Errorf("kv: batch returned %d replies for %d ops", len(res), len(b.ops))
	}
	return res, nil
}
