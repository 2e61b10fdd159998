package btreedb

import "github.com/weixu8/btree-db/internal/cache"

// Options configures store behavior.
type Options struct {
	cacheSlots   int  // Direct-mapped node cache slots.
	victimPool   int  // LRU entries behind the slots. 0 disables the pool.
	syncEveryPut bool // fdatasync both files after every mutation.
	nodeReuse    bool // Allocate node chunks from the free list first.
	verifyOnOpen bool // Run Check when reopening an existing store.
	logger       Logger
}

// DefaultOptions returns the default configuration: 23 cache slots, a small
// victim pool, no fsync and no reuse of freed index space.
//
//goland:noinspection GoUnusedExportedFunction
func DefaultOptions() Options {
	return Options{
		cacheSlots: cache.DefaultSlots,
		victimPool: cache.DefaultVictims,
		logger:     DiscardLogger{},
	}
}

// Option configures store options using the functional options pattern.
type Option func(*Options)

// WithCacheSlots sets the number of direct-mapped node cache slots.
//
//goland:noinspection GoUnusedExportedFunction
func WithCacheSlots(n int) Option {
	return func(opts *Options) {
		opts.cacheSlots = n
	}
}

// WithVictimPool sets the size of the LRU pool that keeps nodes pushed out of
// their cache slot. 0 disables it.
//
//goland:noinspection GoUnusedExportedFunction
func WithVictimPool(n int) Option {
	return func(opts *Options) {
		opts.victimPool = n
	}
}

// WithSyncEveryPut makes every Put and Delete fdatasync the data file, the
// index nodes and then the superblock before returning.
//
//goland:noinspection GoUnusedExportedFunction
func WithSyncEveryPut() Option {
	return func(opts *Options) {
		opts.syncEveryPut = true
	}
}

// WithNodeReuse lets node allocation take chunks released by Delete. Without
// it freed chunks are only recorded and the index file never shrinks or
// reuses space.
//
//goland:noinspection GoUnusedExportedFunction
func WithNodeReuse() Option {
	return func(opts *Options) {
		opts.nodeReuse = true
	}
}

// WithLogger sets the logger. A nil logger keeps the DiscardLogger.
//
//goland:noinspection GoUnusedExportedFunction
func WithLogger(l Logger) Option {
	return func(opts *Options) {
		if l != nil {
			opts.logger = l
		}
	}
}

// WithVerifyOnOpen runs a full structural Check when an existing store is
// opened.
//
//goland:noinspection GoUnusedExportedFunction
func WithVerifyOnOpen() Option {
	return func(opts *Options) {
		opts.verifyOnOpen = true
	}
}
