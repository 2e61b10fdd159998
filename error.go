package btreedb

import (
	"errors"

	"github.com/weixu8/btree-db/internal/base"
	"github.com/weixu8/btree-db/internal/cache"
	"github.com/weixu8/btree-db/internal/pager"
	"github.com/weixu8/btree-db/internal/storage"
	"github.com/weixu8/btree-db/internal/valuelog"
)

//goland:noinspection GoUnusedGlobalVariable
var (
	ErrStoreClosed = errors.New("store is closed")
	ErrCorruption  = errors.New("data corruption detected")

	ErrKeyEmpty      = base.ErrKeyEmpty
	ErrKeyTooLarge   = base.ErrKeyTooLarge
	ErrKeyInvalid    = base.ErrKeyInvalid
	ErrValueTooLarge = valuelog.ErrValueTooLarge

	ErrInvalidMagic    = base.ErrInvalidMagic
	ErrInvalidChecksum = base.ErrInvalidChecksum
	ErrInvalidNode     = base.ErrInvalidNode
	ErrInvalidRoot     = base.ErrInvalidRoot
	ErrNodeOverflow    = base.ErrNodeOverflow

	ErrShortRead       = storage.ErrShortRead
	ErrShortWrite      = storage.ErrShortWrite
	ErrLocked          = storage.ErrLocked
	ErrIndexFull       = pager.ErrIndexFull
	ErrFreeListCorrupt = pager.ErrFreeListCorrupt
	ErrCheckedOut      = cache.ErrCheckedOut
)
