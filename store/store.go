// Package store holds the account record backends. Every backend keeps a
// single JSON blob under a key (ledger.AccountKey by default), which is
// the same contract the browser terminal had with local storage.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rustyeddy/pulse/ledger"
)

// Options selects and configures a backend.
type Options struct {
	Type string // memory | file | sqlite | redis | postgres
	Path string // file and sqlite
	URL  string // redis and postgres
	Key  string
}

// Open builds the backend described by opts. The returned close func
// releases connections and is never nil.
func Open(ctx context.Context, opts Options) (ledger.Store, func() error, error) {
	key := opts.Key
	if key == "" {
		key = ledger.AccountKey
	}
	nop := func() error { return nil }

	switch strings.ToLower(opts.Type) {
	case "", "memory":
		return NewMemory(), nop, nil

	case "file":
		if opts.Path == "" {
			return nil, nop, fmt.Errorf("store: file backend needs a path")
		}
		return NewFile(opts.Path), nop, nil

	case "sqlite":
		if opts.Path == "" {
			return nil, nop, fmt.Errorf("store: sqlite backend needs a path")
		}
		s, err := NewSQLite(opts.Path, key)
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil

	case "redis":
		opt, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, nop, fmt.Errorf("store: invalid redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nop, fmt.Errorf("store: redis ping: %w", err)
		}
		return NewRedis(rdb, key), rdb.Close, nil

	case "postgres":
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := pgxpool.New(cctx, opts.URL)
		if err != nil {
			return nil, nop, fmt.Errorf("store: postgres connect: %w", err)
		}
		s, err := NewPostgres(cctx, pool, key)
		if err != nil {
			pool.Close()
			return nil, nop, err
		}
		return s, func() error { pool.Close(); return nil }, nil
	}

	return nil, nop, fmt.Errorf("store: unknown type %q (want memory|file|sqlite|redis|postgres)", opts.Type)
}
