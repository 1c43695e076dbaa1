// Package coffer implements the sharded secret store: a concurrent
// key/value container addressed by (shard, key), loadable once from a
// bootstrap TOML document.
//
// # Bootstrap TOML shape
//
// A tree of tables. A table is a shard iff it has a string "id" field;
// shards must be leaves. Any other table is a group and is recursed into.
// For each shard, every non-id field becomes a (shard.id, field) entry:
//
//	[database]
//	id = "0"
//	user = "root"
//
//	[app]
//	  [app.frontend]
//	  id = "1"
//	  password = "admin"
//
//	  [app.backend]
//	  id = "2"
//	  cors = true
package coffer

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/arminfriedl/coffer/internal/bootstrap"
	"github.com/arminfriedl/coffer/internal/coffererr"
)

func normalizeShard(shard string) string { return strings.ToLower(shard) }

// Store is a thread-safe sharded key-value container. get and get_shard
// take a shared lock and return owned snapshots; put and push take an
// exclusive lock.
type Store struct {
	mu     sync.RWMutex
	shards map[string]map[string]Value
	// order preserves each shard's insertion order so GetShard returns a
	// stable snapshot rather than Go's randomized map iteration order.
	order map[string][]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		shards: make(map[string]map[string]Value),
		order:  make(map[string][]string),
	}
}

// Put stores value at key, failing if the (shard, key) already holds a
// value.
func (s *Store) Put(key Key, value Value) error {
	key = key.normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	shard, ok := s.shards[key.Shard]
	if !ok {
		shard = make(map[string]Value)
		s.shards[key.Shard] = shard
	}

	if _, exists := shard[key.Key]; exists {
		return coffererr.New(coffererr.KeyExists, "store.Put")
	}

	shard[key.Key] = value
	s.order[key.Shard] = append(s.order[key.Shard], key.Key)
	return nil
}

// Push upserts value at key, creating the shard if absent. Unlike Put this
// never fails and silently replaces any existing value.
func (s *Store) Push(key Key, value Value) {
	key = key.normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	shard, ok := s.shards[key.Shard]
	if !ok {
		shard = make(map[string]Value)
		s.shards[key.Shard] = shard
	}

	if _, exists := shard[key.Key]; !exists {
		s.order[key.Shard] = append(s.order[key.Shard], key.Key)
	}
	shard[key.Key] = value
}

// Get returns the value at key, or false if the shard or the key within it
// is absent. There is no distinction between a missing shard and a missing
// key.
func (s *Store) Get(key Key) (Value, bool) {
	key = key.normalized()

	s.mu.RLock()
	defer s.mu.RUnlock()

	shard, ok := s.shards[key.Shard]
	if !ok {
		return Value{}, false
	}
	v, ok := shard[key.Key]
	return v, ok
}

// GetShard returns a consistent snapshot of a shard's pairs, or false if the
// shard does not exist.
func (s *Store) GetShard(shardID string) (Shard, bool) {
	shardID = normalizeShard(shardID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	shard, ok := s.shards[shardID]
	if !ok {
		return Shard{}, false
	}

	order := s.order[shardID]
	pairs := make([]Pair, 0, len(order))
	for _, k := range order {
		pairs = append(pairs, Pair{Key: k, Value: shard[k]})
	}
	return Shard{pairs: pairs}, true
}

// FromTOML loads a Store from a bootstrap TOML document. Each shard's
// non-id fields become (shard.id, field) entries. A duplicate (shard, key)
// across colliding shard ids within the same document aborts the load with
// a Parse error naming the key, rather than silently letting the last one win: two
// shards sharing an id inside one bootstrap file is treated as an operator
// mistake, not an intentional upsert.
func FromTOML(doc string) (*Store, error) {
	shards, err := bootstrap.Parse(doc)
	if err != nil {
		return nil, err
	}

	store := New()
	for _, shard := range shards {
		for field, raw := range shard.Fields {
			value, err := FromTOMLScalar(raw)
			if err != nil {
				return nil, err
			}

			if err := store.Put(Key{Shard: shard.ID, Key: field}, value); err != nil {
				return nil, coffererr.Wrap(coffererr.Parse, "coffer.FromTOML",
					errDuplicateShardKey(shard.ID, field))
			}
		}
	}

	logrus.WithField("shards", len(shards)).Info("coffer: loaded bootstrap store")
	return store, nil
}

type dupErr struct{ shard, key string }

func (d dupErr) Error() string {
	return "duplicate key \"" + d.key + "\" for shard \"" + d.shard + "\""
}

func errDuplicateShardKey(shard, key string) error { return dupErr{shard: shard, key: key} }
