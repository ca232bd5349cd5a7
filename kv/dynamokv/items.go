package dynamokv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/internal/kvstate"
	"github.com/jacentio/lattice/kv"
)

// Attribute names and sort-key prefixes of the single-table layout.
//
// Every logical key is a partition. Each hash field, set member, sorted-set
// member, list element and counter is its own item, told apart by the sort
// key prefix.
const (
	AttrPK    = "pk"
	AttrSK    = "sk"
	AttrVal   = "val"
	AttrScore = "score"
	AttrNum   = "num"

	PrefixHash    = "h#"
	PrefixSet     = "s#"
	PrefixZSet    = "z#"
	PrefixList    = "l#"
	CounterSK     = "c#"
	listSeqDigits = 20
)

// item is the stored shape of one entry.
type item struct {
	PK    string  `dynamodbav:"pk"`
	SK    string  `dynamodbav:"sk"`
	Val   string  `dynamodbav:"val"`
	Score float64 `dynamodbav:"score"`
	Num   int64   `dynamodbav:"num,omitempty"`
}

func listSK(seq uint64) string {
	return fmt.Sprintf("%s%0*d", PrefixList, listSeqDigits, seq)
}

func keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: pk},
		AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// assemble folds the items of one partition into a value. Items are
// expected in sort-key order, which keeps list elements in push order.
func assemble(items []item) (*kvstate.Value, error) {
	var v *kvstate.Value
	want := func(k kvstate.Kind) error {
		if v == nil {
			v = kvstate.New(k)
			return nil
		}
		if v.Kind != k {
			return kv.ErrWrongType
		}
		return nil
	}

	for _, it := range items {
		var err error
		switch {
		case strings.HasPrefix(it.SK, PrefixHash):
			if err = want(kvstate.KindHash); err == nil {
				v.Hash[strings.TrimPrefix(it.SK, PrefixHash)] = it.Val
			}
		case strings.HasPrefix(it.SK, PrefixSet):
			if err = want(kvstate.KindSet); err == nil {
				v.Set[strings.TrimPrefix(it.SK, PrefixSet)] = true
			}
		case strings.HasPrefix(it.SK, PrefixZSet):
			if err = want(kvstate.KindZSet); err == nil {
				v.ZSet[strings.TrimPrefix(it.SK, PrefixZSet)] = it.Score
			}
		case strings.HasPrefix(it.SK, PrefixList):
			if err = want(kvstate.KindList); err == nil {
				seq, perr := strconv.ParseUint(strings.TrimPrefix(it.SK, PrefixList), 10, 64)
				if perr != nil {
					return nil, fmt.Errorf("dynamokv: bad list item %s/%s: %w", it.PK, it.SK, perr)
				}
				v.List = append(v.List, kvstate.ListEntry{Seq: seq, Val: it.Val})
				if seq >= v.NextSeq {
					v.NextSeq = seq + 1
				}
			}
		case it.SK == CounterSK:
			if err = want(kvstate.KindCounter); err == nil {
				v.Int = it.Num
			}
		default:
			return nil, fmt.Errorf("dynamokv: unknown item %s/%s", it.PK, it.SK)
		}
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// diff returns the writes that turn before into after for partition pk. Deletes
// of items read earlier are conditional on the item still existing.
func diff(table, pk string, before, after *kvstate.Value) ([]types.TransactWriteItem, error) {
	var writes []types.TransactWriteItem

	put := func(it item, cond string) error {
		av, err := attributevalue.MarshalMap(it)
		if err != nil {
			return fmt.Errorf("dynamokv: marshal %s/%s: %w", it.PK, it.SK, err)
		}
		p := &types.Put{TableName: &table, Item: av}
		if cond != "" {
			p.ConditionExpression = &cond
		}
		writes = append(writes, types.TransactWriteItem{Put: p})
		return nil
	}
	del := func(sk string) {
		cond := "attribute_exists(" + AttrSK + ")"
		writes = append(writes, types.TransactWriteItem{Delete: &types.Delete{
			TableName:           &table,
			Key:                 keyOf(pk, sk),
			ConditionExpression: &cond,
		}})
	}

	if before == nil {
		before = &kvstate.Value{}
	}
	if after == nil {
		after = &kvstate.Value{}
	}

	for f := range before.Hash {
		if _, ok := after.Hash[f]; !ok {
			del(PrefixHash + f)
		}
	}
	for f, val := range after.Hash {
		if prev, ok := before.Hash[f]; !ok || prev != val {
			if err := put(item{PK: pk, SK: PrefixHash + f, Val: val}, ""); err != nil {
				return nil, err
			}
		}
	}

	for m := range before.Set {
		if !after.Set[m] {
			del(PrefixSet + m)
		}
	}
	for m := range after.Set {
		if !before.Set[m] {
			if err := put(item{PK: pk, SK: PrefixSet + m}, ""); err != nil {
				return nil, err
			}
		}
	}

	for m := range before.ZSet {
		if _, ok := after.ZSet[m]; !ok {
			del(PrefixZSet + m)
		}
	}
	for m, score := range after.ZSet {
		if prev, ok := before.ZSet[m]; !ok || prev != score {
			if err := put(item{PK: pk, SK: PrefixZSet + m, Score: score}, ""); err != nil {
				return nil, err
			}
		}
	}

	kept := make(map[uint64]bool, len(after.List))
	for _, e := range after.List {
		kept[e.Seq] = true
	}
	existed := make(map[uint64]bool, len(before.List))
	for _, e := range before.List {
		existed[e.Seq] = true
		if !kept[e.Seq] {
			del(listSK(e.Seq))
		}
	}
	for _, e := range after.List {
		if !existed[e.Seq] {
			cond := "attribute_not_exists(" + AttrSK + ")"
			if err := put(item{PK: pk, SK: listSK(e.Seq), Val: e.Val}, cond); err != nil {
				return nil, err
			}
		}
	}

	if before.Kind == kvstate.KindCounter && after.Kind != kvstate.KindCounter {
		del(CounterSK)
	}
	return writes, nil
}
