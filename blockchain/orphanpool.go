package blockchain

import (
	"sync"
	"time"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/wire"
)

const maxOrphanBlocks = 100

// orphanBlock pairs a buffered block with the filtered-transaction data it
// arrived with and its eviction deadline.
type orphanBlock struct {
	block            *chainutil.Block
	filteredTxHashes []wire.Hash
	filteredTxn      map[wire.Hash]*chainutil.Tx
	expiration       time.Time
}

// OrphanBlockPool buffers blocks whose parent is not yet known.  Iteration
// order matches insertion order, which the orphan drain relies on.  The pool
// is bounded: expired entries are lazily collected and the oldest entry is
// evicted when the bound is exceeded.
type OrphanBlockPool struct {
	orphans     map[wire.Hash]*orphanBlock
	orphanOrder []wire.Hash
	orphanLock  sync.RWMutex
}

func newOrphanBlockPool() *OrphanBlockPool {
	return &OrphanBlockPool{
		orphans: make(map[wire.Hash]*orphanBlock),
	}
}

// IsKnownOrphan returns whether the passed hash is currently a known orphan.
// Keep in mind that only a limited number of orphans are held onto for a
// limited amount of time, so this function must not be used as an absolute
// way to test whether a block was ever seen.
//
// This function is safe for concurrent access.
func (op *OrphanBlockPool) IsKnownOrphan(hash *wire.Hash) bool {
	op.orphanLock.RLock()
	defer op.orphanLock.RUnlock()

	_, exists := op.orphans[*hash]
	return exists
}

// GetOrphanRoot walks from the provided hash up through buffered orphans and
// returns the topmost reachable orphan block, or nil when the hash does not
// identify an orphan.
//
// This function is safe for concurrent access.
func (op *OrphanBlockPool) GetOrphanRoot(hash *wire.Hash) *chainutil.Block {
	op.orphanLock.RLock()
	defer op.orphanLock.RUnlock()

	cursor, exists := op.orphans[*hash]
	if !exists {
		return nil
	}
	for {
		prev, exists := op.orphans[cursor.block.MsgBlock().Header.Previous]
		if !exists {
			return cursor.block
		}
		cursor = prev
	}
}

// add inserts the passed block (which is already determined to be an orphan
// prior to calling this function) into the pool together with any filtered
// transaction data it arrived with.  It lazily evicts expired blocks and
// enforces the pool bound by removing the oldest entry.
func (op *OrphanBlockPool) add(block *chainutil.Block, filteredTxHashes []wire.Hash,
	filteredTxn map[wire.Hash]*chainutil.Tx) {

	op.orphanLock.Lock()
	defer op.orphanLock.Unlock()

	now := time.Now()
	for _, hash := range op.orphanOrder {
		if orphan, ok := op.orphans[hash]; ok && now.After(orphan.expiration) {
			op.removeLocked(&hash)
		}
	}

	if len(op.orphans)+1 > maxOrphanBlocks && len(op.orphanOrder) > 0 {
		oldest := op.orphanOrder[0]
		op.removeLocked(&oldest)
	}

	op.orphans[*block.Hash()] = &orphanBlock{
		block:            block,
		filteredTxHashes: filteredTxHashes,
		filteredTxn:      filteredTxn,
		expiration:       now.Add(time.Hour),
	}
	op.orphanOrder = append(op.orphanOrder, *block.Hash())
}

// remove deletes the orphan with the given hash, if present.
func (op *OrphanBlockPool) remove(hash *wire.Hash) {
	op.orphanLock.Lock()
	defer op.orphanLock.Unlock()
	op.removeLocked(hash)
}

// removeLocked must be called with the orphan lock held for writes.
func (op *OrphanBlockPool) removeLocked(hash *wire.Hash) {
	if _, exists := op.orphans[*hash]; !exists {
		return
	}
	delete(op.orphans, *hash)
	for i, ordered := range op.orphanOrder {
		if ordered.IsEqual(hash) {
			copy(op.orphanOrder[i:], op.orphanOrder[i+1:])
			op.orphanOrder = op.orphanOrder[:len(op.orphanOrder)-1]
			break
		}
	}
}

// snapshot returns the buffered orphans in insertion order.  The drain loop
// works on the snapshot so removals during the walk are safe.
func (op *OrphanBlockPool) snapshot() []*orphanBlock {
	op.orphanLock.RLock()
	defer op.orphanLock.RUnlock()

	out := make([]*orphanBlock, 0, len(op.orphanOrder))
	for _, hash := range op.orphanOrder {
		if orphan, ok := op.orphans[hash]; ok {
			out = append(out, orphan)
		}
	}
	return out
}

// count returns the number of buffered orphans.
func (op *OrphanBlockPool) count() int {
	op.orphanLock.RLock()
	defer op.orphanLock.RUnlock()
	return len(op.orphans)
}
