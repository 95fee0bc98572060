// Package cache adds optional, disk-backed memoization in front of sherlock.IsLegal,
// keyed by FEN. A solver iterating candidate placements via sherlock.LegalPiecesOn
// recomputes IsLegal on near-identical boards; this trades that recomputation for a
// key-value lookup.
package cache

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/herohde/sherlock/pkg/board"
	"github.com/herohde/sherlock/pkg/board/fen"
	"github.com/herohde/sherlock/pkg/sherlock"
	"github.com/seekerror/logw"
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	// Dir is the Badger database directory. Empty selects an in-memory-only store:
	// no persistence across process restarts, useful for tests and for callers who
	// only want request-scoped memoization through the same API.
	Dir string
}

// Cache memoizes sherlock.IsLegal verdicts keyed by the FEN encoding of (position, turn).
// Safe for concurrent use: Badger handles its own locking.
type Cache struct {
	db *badger.DB
}

// NewCache opens (or creates) the database described by opts.
func NewCache(opts CacheOptions) (*Cache, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.Dir == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	badgerOpts.Logger = nil

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// IsLegal looks up the cached verdict for (pos, turn); on miss it calls sherlock.IsLegal,
// stores the result, and returns it. A cache read or write failure is logged and degrades
// to direct computation -- the cache never changes the computed verdict, only its cost.
func (c *Cache) IsLegal(ctx context.Context, pos *board.Position, turn board.Color) (bool, error) {
	key := []byte(fen.Encode(pos, turn, 0, 1))

	var cached bool
	var hit bool

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cached = val[0] == 1
			hit = true
			return nil
		})
	})
	if err != nil {
		logw.Errorf(ctx, "sherlock/cache: read failed, computing directly: %v", err)
	}
	if hit {
		return cached, nil
	}

	verdict := sherlock.IsLegal(ctx, pos, turn)

	val := byte(0)
	if verdict {
		val = 1
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte{val})
	}); err != nil {
		logw.Errorf(ctx, "sherlock/cache: write failed: %v", err)
	}

	return verdict, nil
}
