// Package boltkv is a kv.Store persisted in a single bbolt file.
//
// Every key maps to one msgpack-encoded value in the "kv" bucket. A batch is
// one bbolt read-write transaction, so it commits or rolls back as a whole.
package boltkv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/jacentio/lattice/internal/kvstate"
	"github.com/jacentio/lattice/kv"
)

var bucketName = []byte("kv")

// Options configures Open.
type Options struct {
	// Timeout bounds how long Open waits for the file lock.
	// Default: 1s
	Timeout time.Duration

	// NoSync skips fsync after each commit. Only for tests.
	NoSync bool

	// Logger receives open/close events. Default: slog.Default()
	Logger *slog.Logger
}

// Store is a kv.Store backed by boltdb.
type Store struct {
	path   string
	db     *bolt.DB
	logger *slog.Logger
}

var _ kv.Store = (*Store)(nil)

// Open creates the database file if it doesn't exist and opens it otherwise.
func Open(path string, opts Options) (*Store, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("boltkv: create directory for %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: opts.Timeout, NoSync: opts.NoSync})
	if err != nil {
		return nil, fmt.Errorf("boltkv: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltkv: create bucket: %w", err)
	}

	opts.Logger.Debug("bolt store opened", "path", path)
	return &Store{path: path, db: db, logger: opts.Logger}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database file.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Debug("bolt store closed", "path", s.path)
	return s.db.Close()
}

func decode(raw []byte) (*kvstate.Value, error) {
	if raw == nil {
		return nil, nil
	}
	v := new(kvstate.Value)
	if err := msgpack.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("boltkv: decode value: %w", err)
	}
	return v, nil
}

func get(b *bolt.Bucket, key string) (*kvstate.Value, error) {
	return decode(b.Get([]byte(key)))
}

func put(b *bolt.Bucket, key string, v *kvstate.Value) error {
	if v == nil {
		return b.Delete([]byte(key))
	}
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("boltkv: encode %s: %w", key, err)
	}
	return b.Put([]byte(key), raw)
}

// view loads the value at key in a read-only transaction.
func (s *Store) view(key string, fn func(v *kvstate.Value) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		v, err := get(tx.Bucket(bucketName), key)
		if err != nil {
			return err
		}
		return fn(v)
	})
}

func (s *Store) HGetAll(_ context.Context, key string) (out map[string]string, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		out, err = v.HGetAll()
		return err
	})
	return out, err
}

func (s *Store) HGet(_ context.Context, key, field string) (val string, ok bool, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		val, ok, err = v.HGet(field)
		return err
	})
	return val, ok, err
}

func (s *Store) HExists(ctx context.Context, key, field string) (bool, error) {
	_, ok, err := s.HGet(ctx, key, field)
	return ok, err
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucketName).Get([]byte(key)) != nil
		return nil
	})
	return ok, err
}

func (s *Store) SMembers(_ context.Context, key string) (out []string, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		out, err = v.SMembers()
		return err
	})
	return out, err
}

func (s *Store) SIsMember(_ context.Context, key, member string) (ok bool, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		ok, err = v.SIsMember(member)
		return err
	})
	return ok, err
}

func (s *Store) ZRange(_ context.Context, key string, start, stop int64, rev bool) (out []string, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		out, err = v.ZRange(start, stop, rev)
		return err
	})
	return out, err
}

func (s *Store) ZRangeByScore(_ context.Context, key string, q kv.ScoreQuery) (out []string, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		out, err = v.ZRangeByScore(q)
		return err
	})
	return out, err
}

func (s *Store) ZCount(_ context.Context, key string, min, max kv.Bound) (n int64, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		n, err = v.ZCount(min, max)
		return err
	})
	return n, err
}

func (s *Store) ZRank(_ context.Context, key, member string, rev bool) (rank int64, ok bool, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		rank, ok, err = v.ZRank(member, rev)
		return err
	})
	return rank, ok, err
}

func (s *Store) ZScore(_ context.Context, key, member string) (score float64, ok bool, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		score, ok, err = v.ZScore(member)
		return err
	})
	return score, ok, err
}

func (s *Store) LRange(_ context.Context, key string, start, stop int64) (out []string, err error) {
	err = s.view(key, func(v *kvstate.Value) error {
		out, err = v.LRange(start, stop)
		return err
	})
	return out, err
}

// Incr increments the counter at key in its own transaction.
func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v, err := get(b, key)
		if err != nil {
			return err
		}
		v, n, err = kvstate.Incr(v)
		if err != nil {
			return err
		}
		return put(b, key, v)
	})
	return n, err
}

// Batch returns a batch applied in one read-write transaction.
func (s *Store) Batch() *kv.Batch {
	return kv.NewBatch(s.exec)
}

func (s *Store) exec(_ context.Context, ops []kv.Op) ([]int64, error) {
	var res []int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		o := kvstate.NewOverlay(func(key string) (*kvstate.Value, error) {
			return get(b, key)
		})
		var err error
		if res, err = o.ApplyAll(ops); err != nil {
			return err
		}
		return o.Changes(func(key string, v *kvstate.Value) error {
			return put(b, key, v)
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
