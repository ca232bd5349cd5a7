package dynamokv_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDDB is an in-memory stand-in for the handful of DynamoDB calls the
// store makes. It understands only the expressions the store issues.
type fakeDDB struct {
	mu    sync.Mutex
	items map[string]map[string]map[string]types.AttributeValue // pk -> sk -> item

	transactCalls int
	lastTransact  []types.TransactWriteItem

	// beforeTransact runs before a transaction is applied, to simulate a
	// concurrent writer.
	beforeTransact func(f *fakeDDB)
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: map[string]map[string]map[string]types.AttributeValue{}}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDDB) putLocked(it map[string]types.AttributeValue) {
	pk, sk := str(it["pk"]), str(it["sk"])
	if f.items[pk] == nil {
		f.items[pk] = map[string]map[string]types.AttributeValue{}
	}
	f.items[pk][sk] = it
}

func (f *fakeDDB) deleteLocked(key map[string]types.AttributeValue) {
	pk, sk := str(key["pk"]), str(key["sk"])
	delete(f.items[pk], sk)
	if len(f.items[pk]) == 0 {
		delete(f.items, pk)
	}
}

func (f *fakeDDB) existsLocked(key map[string]types.AttributeValue) bool {
	_, ok := f.items[str(key["pk"])][str(key["sk"])]
	return ok
}

func (f *fakeDDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.items[str(in.Key["pk"])][str(in.Key["sk"])]
	return &dynamodb.GetItemOutput{Item: it}, nil
}

func (f *fakeDDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	part := f.items[str(in.ExpressionAttributeValues[":pk"])]
	sks := make([]string, 0, len(part))
	for sk := range part {
		sks = append(sks, sk)
	}
	sort.Strings(sks)
	if in.Limit != nil && int(*in.Limit) < len(sks) {
		sks = sks[:*in.Limit]
	}
	out := &dynamodb.QueryOutput{}
	for _, sk := range sks {
		out.Items = append(out.Items, part[sk])
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *fakeDDB) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if aws.ToString(in.UpdateExpression) != "ADD #n :one" {
		return nil, errors.New("fake: unsupported update " + aws.ToString(in.UpdateExpression))
	}
	name := in.ExpressionAttributeNames["#n"]
	it := f.items[str(in.Key["pk"])][str(in.Key["sk"])]
	var n int64
	if it != nil {
		if cur, ok := it[name].(*types.AttributeValueMemberN); ok {
			n, _ = strconv.ParseInt(cur.Value, 10, 64)
		}
	}
	n++
	val := &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
	f.putLocked(map[string]types.AttributeValue{"pk": in.Key["pk"], "sk": in.Key["sk"], name: val})
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{name: val}}, nil
}

func (f *fakeDDB) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if f.beforeTransact != nil {
		hook := f.beforeTransact
		f.beforeTransact = nil
		hook(f)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactCalls++
	f.lastTransact = in.TransactItems

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, w := range in.TransactItems {
		code := "None"
		switch {
		case w.Put != nil && aws.ToString(w.Put.ConditionExpression) == "attribute_not_exists(sk)":
			if f.existsLocked(w.Put.Item) {
				code, failed = "ConditionalCheckFailed", true
			}
		case w.Delete != nil && aws.ToString(w.Delete.ConditionExpression) == "attribute_exists(sk)":
			if !f.existsLocked(w.Delete.Key) {
				code, failed = "ConditionalCheckFailed", true
			}
		}
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range in.TransactItems {
		switch {
		case w.Put != nil:
			f.putLocked(w.Put.Item)
		case w.Delete != nil:
			f.deleteLocked(w.Delete.Key)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDDB) itemCount(pk string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items[pk])
}
