// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/config"
	"github.com/bitcryptoproject/bitj/database"
	"github.com/bitcryptoproject/bitj/logging"
	"github.com/bitcryptoproject/bitj/wire"
)

// Blockchain holds a series of blocks, links them together, and knows how to
// verify that the chain follows the network's consensus rules.  The chain is
// actually a tree although in normal operation it operates mostly as a list.
// When multiple new head blocks are found simultaneously there are multiple
// competing branches, and the one representing the greatest amount of work
// wins.
//
// The chain object by itself doesn't store any data; that is delegated to
// the block store behind the ChainIO capability set it was constructed with.
// Header-only (SPV) and full-validation operation differ only in which
// capability set is supplied.
type Blockchain struct {
	// lock serializes every mutating operation.  It is held for the whole
	// of an add, including listener callbacks on the same-thread executor.
	lock sync.Mutex

	db     database.Db
	io     ChainIO
	params *config.Params

	// chainHead tracks the top of the best known chain.  It has its own
	// narrow lock so readers stay fast while an add is in progress.
	chainHead *chainutil.StoredBlock
	headLock  sync.Mutex

	listeners    []*listenerRegistration
	listenersMtx sync.RWMutex

	orphanPool *OrphanBlockPool
	fp         fpEstimator

	// Stat counters.
	statsLastTime    time.Time
	statsBlocksAdded int
}

// New constructs a chain over the given store and capability set.  A fresh
// store is bootstrapped with the network's genesis block.
func New(params *config.Params, db database.Db, io ChainIO, listeners []ChainListener) (*Blockchain, error) {
	b := &Blockchain{
		db:            db,
		io:            io,
		params:        params,
		orphanPool:    newOrphanBlockPool(),
		statsLastTime: time.Now(),
	}

	head, err := db.FetchChainHead()
	if err == database.ErrBlockShaMissing {
		head, err = b.bootstrapGenesis()
	}
	if err != nil {
		return nil, err
	}
	b.chainHead = head

	logging.CPrint(logging.INFO, "chain head loaded", logging.LogFormat{
		"height": head.Height(),
		"hash":   head.Hash(),
	})

	for _, l := range listeners {
		b.AddListener(l, SameThreadExecutor)
	}
	return b, nil
}

// bootstrapGenesis stores the genesis block into an empty store.
func (b *Blockchain) bootstrapGenesis() (*chainutil.StoredBlock, error) {
	genesis := chainutil.NewBlock(b.params.GenesisBlock)
	genesis.SetHeight(0)
	stored := chainutil.NewGenesisStoredBlock(&b.params.GenesisBlock.Header)
	if err := b.db.SubmitBlock(stored, genesis); err != nil {
		return nil, err
	}
	if err := b.db.Commit(stored.Hash()); err != nil {
		return nil, err
	}
	return stored, nil
}

// BlockStore returns the store the chain was constructed over.  Callers can
// use it to iterate over the chain.
func (b *Blockchain) BlockStore() database.Db {
	return b.db
}

// AddListener adds a listener whose callbacks run on the given executor.
// Listeners registered on SameThreadExecutor run with the chain lock held
// and participate in false-positive accounting.
func (b *Blockchain) AddListener(listener ChainListener, executor Executor) {
	b.listenersMtx.Lock()
	defer b.listenersMtx.Unlock()
	b.listeners = append(b.listeners, &listenerRegistration{
		listener: listener,
		executor: executor,
	})
}

// RemoveListener removes the given listener.  It is safe to call from inside
// a listener callback.
func (b *Blockchain) RemoveListener(listener ChainListener) {
	b.listenersMtx.Lock()
	defer b.listenersMtx.Unlock()
	for i, reg := range b.listeners {
		if reg.listener == listener {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// snapshotListeners returns the registration list as of now.  Additions and
// removals during notification affect later blocks only.
func (b *Blockchain) snapshotListeners() []*listenerRegistration {
	b.listenersMtx.RLock()
	defer b.listenersMtx.RUnlock()
	out := make([]*listenerRegistration, len(b.listeners))
	copy(out, b.listeners)
	return out
}

// ChainHead returns the block at the head of the current best chain: the
// block representing the greatest amount of cumulative work done.
func (b *Blockchain) ChainHead() *chainutil.StoredBlock {
	b.headLock.Lock()
	defer b.headLock.Unlock()
	return b.chainHead
}

// BestHeight returns the height of the best known chain.
func (b *Blockchain) BestHeight() int32 {
	return b.ChainHead().Height()
}

// setChainHead commits the store and only then moves the in-memory pointer,
// so readers never observe a head the store hasn't made durable.
func (b *Blockchain) setChainHead(head *chainutil.StoredBlock) error {
	if err := b.io.DoSetChainHead(head); err != nil {
		return err
	}
	b.headLock.Lock()
	b.chainHead = head
	b.headLock.Unlock()
	return nil
}

// AddBlock processes a received block and tries to add it to the chain.  If
// the block is OK but cannot be connected to the chain at this time it is
// buffered as an orphan and false is returned.  If the block could be linked
// in (to the best chain or a side branch) true is returned.  A verification
// failure aborts the add and rolls back any store state opened during it.
//
// Accessing the block's transactions in another goroutine while this method
// runs results in undefined behavior.
func (b *Blockchain) AddBlock(block *chainutil.Block) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	connected, err := b.add(block, true, nil, nil)
	if err != nil {
		if rollbackErr := b.io.NotSettingChainHead(); rollbackErr != nil {
			logging.CPrint(logging.ERROR, "store rollback failed", logging.LogFormat{
				"err": rollbackErr,
			})
		}
		logging.CPrint(logging.ERROR, "failed to verify block", logging.LogFormat{
			"err":   err,
			"block": block.Hash(),
		})
		return false, err
	}
	return connected, nil
}

// AddFilteredBlock processes a block for which only a bloom-filtered subset
// of transactions was received.  txHashes lists every matched transaction in
// block order; txn maps the subset of those hashes whose transactions were
// actually sent.  There may be fewer transactions than hashes; that is
// expected when some were already seen in loose broadcasts.
func (b *Blockchain) AddFilteredBlock(header *wire.BlockHeader, txHashes []wire.Hash,
	txn map[wire.Hash]*chainutil.Tx) (bool, error) {

	b.lock.Lock()
	defer b.lock.Unlock()

	block := chainutil.NewBlock(&wire.MsgBlock{Header: *header})
	connected, err := b.add(block, true, txHashes, txn)
	if err != nil {
		if rollbackErr := b.io.NotSettingChainHead(); rollbackErr != nil {
			logging.CPrint(logging.ERROR, "store rollback failed", logging.LogFormat{
				"err": rollbackErr,
			})
		}
		logging.CPrint(logging.ERROR, "failed to verify filtered block", logging.LogFormat{
			"err":   err,
			"block": block.Hash(),
		})
		return false, err
	}
	return connected, nil
}

// add is the workhorse.  The chain lock must be held.  tryConnecting is
// false on the recursive calls made while draining the orphan buffer.
func (b *Blockchain) add(block *chainutil.Block, tryConnecting bool,
	filteredTxHashes []wire.Hash, filteredTxn map[wire.Hash]*chainutil.Tx) (bool, error) {

	if elapsed := time.Since(b.statsLastTime); elapsed > time.Second {
		// More than a second passed since last stats logging.
		if b.statsBlocksAdded > 1 {
			logging.CPrint(logging.INFO, "blocks per second", logging.LogFormat{
				"count": b.statsBlocksAdded,
			})
		}
		b.statsLastTime = time.Now()
		b.statsBlocksAdded = 0
	}

	blockHash := block.Hash()

	// Quick check for duplicates to avoid an expensive check further down
	// (in findSplit).  This can happen a lot when connecting orphan
	// blocks due to the dumb brute force algorithm we use.
	head := b.ChainHead()
	headHash := head.Hash()
	if blockHash.IsEqual(&headHash) {
		return true, nil
	}
	if tryConnecting && b.orphanPool.IsKnownOrphan(blockHash) {
		return false, nil
	}

	// If we want to verify transactions (ie we are running with full
	// blocks), verify that the block has transactions.
	hasTransactions := len(block.MsgBlock().Transactions) > 0
	if b.io.ShouldVerifyTransactions() && !hasTransactions {
		return false, ruleError(ErrNoTransactions,
			"got a block header while running in full-block mode")
	}

	// Check for an already-seen block, but only in full mode, where the
	// store is more likely able to handle these queries quickly.
	if b.io.ShouldVerifyTransactions() {
		exists, err := b.db.ExistsSha(blockHash)
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}

	// Does this block contain any transactions we might care about?  Check
	// this up front before verifying the block's validity so the merkle
	// root verification can be skipped when the contents are not
	// interesting.  This saves a lot of time for big blocks.
	contentsImportant := b.io.ShouldVerifyTransactions()
	if hasTransactions {
		contentsImportant = contentsImportant || b.containsRelevantTransactions(block)
	}

	// Prove the block is internally valid: hash is lower than target, etc.
	// The contents are only checked if some transaction matters; presence
	// in a valid connecting block is otherwise taken as proof of validity.
	header := &block.MsgBlock().Header
	if err := checkBlockHeaderSanity(header, b.params); err != nil {
		return false, err
	}
	if contentsImportant {
		if err := checkBlockSanity(block, b.params); err != nil {
			return false, err
		}
	}

	// Try linking it to a place in the currently known blocks.
	storedPrev, err := b.io.GetStoredBlockInCurrentScope(&header.Previous)
	if err != nil {
		return false, err
	}
	if storedPrev == nil {
		// We can't find the previous block.  Probably we are still in
		// the process of downloading the chain and a block was solved
		// whilst we were doing it.  Put it to one side and try to
		// connect it later when we have more blocks.
		if !tryConnecting {
			return false, fmt.Errorf("bug in orphan drain: block %v has "+
				"no parent", blockHash)
		}
		logging.CPrint(logging.WARN, "block does not connect", logging.LogFormat{
			"block": blockHash,
			"prev":  header.Previous,
		})
		b.orphanPool.add(block, filteredTxHashes, filteredTxn)
		return false, nil
	}

	// It connects to somewhere on the chain.  Not necessarily the top of
	// the best known chain.
	if err := b.checkDifficultyTransitions(storedPrev, header); err != nil {
		return false, err
	}
	if err := b.connectBlock(block, storedPrev, b.io.ShouldVerifyTransactions(),
		filteredTxHashes, filteredTxn); err != nil {
		return false, err
	}

	if tryConnecting {
		if err := b.tryConnectingOrphans(); err != nil {
			return false, err
		}
	}

	b.statsBlocksAdded++
	return true, nil
}

// connectBlock classifies a block with a known parent as best-chain
// extension, side branch, or reorganization and applies it.  expensiveChecks
// enables checks that require looking further back in the chain than the
// parent (eg the median timestamp check).
func (b *Blockchain) connectBlock(block *chainutil.Block, storedPrev *chainutil.StoredBlock,
	expensiveChecks bool, filteredTxHashes []wire.Hash,
	filteredTxn map[wire.Hash]*chainutil.Tx) error {

	header := &block.MsgBlock().Header
	filtered := filteredTxHashes != nil && filteredTxn != nil
	height := storedPrev.Height() + 1

	// Check that we aren't connecting a block that fails a checkpoint.
	if !b.params.PassesCheckpoint(height, block.Hash()) {
		str := fmt.Sprintf("block failed checkpoint lock-in at %d", height)
		return ruleError(ErrBadCheckpoint, str)
	}

	if b.io.ShouldVerifyTransactions() {
		for _, tx := range block.Transactions() {
			if !tx.MsgTx().IsFinal(height, header.TimeSeconds()) {
				return ruleError(ErrUnfinalizedTx,
					"block contains non-final transaction")
			}
		}
	}

	head := b.ChainHead()
	if storedPrev.IsEqual(head) {
		if filtered && len(filteredTxn) > 0 {
			logging.CPrint(logging.DEBUG, "filtered block connects to top of best chain", logging.LogFormat{
				"block":   block.Hash(),
				"matched": len(filteredTxHashes),
				"sent":    len(filteredTxn),
			})
		}
		if expensiveChecks {
			median, err := b.getMedianTimestampOfRecentBlocks(head)
			if err != nil {
				return err
			}
			if header.TimeSeconds() <= median {
				return ruleError(ErrTimeTooOld, "block's timestamp is too early")
			}
		}

		// This block connects to the best known block; it is a normal
		// continuation of the system.
		var changes *database.TxOutChanges
		if b.io.ShouldVerifyTransactions() {
			newStored := storedPrev.Build(header)
			var err error
			changes, err = b.io.ConnectTransactions(newStored, block)
			if err != nil {
				return err
			}
		}
		newStored, err := b.io.AddToBlockStore(storedPrev, block, changes)
		if err != nil {
			return err
		}
		if err := b.setChainHead(newStored); err != nil {
			return err
		}
		logging.CPrint(logging.DEBUG, "chain extended, running listeners", logging.LogFormat{
			"height": newStored.Height(),
		})
		b.informListenersForNewBlock(block, BestChain, filteredTxHashes, filteredTxn, newStored)
		return nil
	}

	// This block connects to somewhere other than the top of the best
	// known chain.  We treat these differently.
	//
	// Note that the transactions go to the listeners FIRST, even when the
	// block is about to become the new best chain head.  This simplifies
	// handling of the re-org in the wallet.
	newStored := storedPrev.Build(header)
	haveNewBestChain := newStored.MoreWorkThan(head)
	if haveNewBestChain {
		logging.CPrint(logging.INFO, "block is causing a re-organize", logging.LogFormat{
			"block": block.Hash(),
		})
	} else {
		// A disjoint branch makes findSplit fail; don't write the block
		// to disk in that case so a bug allowing it cannot write
		// unreasonable amounts of data.
		splitPoint, err := b.findSplit(newStored, head)
		if err != nil {
			return err
		}
		if splitPoint.IsEqual(newStored) {
			// The block is part of the main chain already: we received
			// a block we previously saw and linked in, which isn't the
			// chain head.  Re-processing it is confusing for the
			// wallet so just skip.
			logging.CPrint(logging.WARN, "saw duplicated block in main chain", logging.LogFormat{
				"height": newStored.Height(),
				"block":  block.Hash(),
			})
			return nil
		}

		// We aren't actually spending any transactions (yet) because we
		// are on a fork.
		if _, err := b.io.AddToBlockStore(storedPrev, block, nil); err != nil {
			return err
		}
		logging.CPrint(logging.INFO, "block forks the chain, no reorganize", logging.LogFormat{
			"split_height": splitPoint.Height(),
			"split":        splitPoint.Hash(),
			"block":        block.Hash(),
		})
	}

	// We may not have any transactions if we received only a header, which
	// can happen during fast catchup.  If we do, send them to the
	// listeners flagged as being on a side chain so they know not to try
	// and spend them until they become activated.
	if len(block.MsgBlock().Transactions) > 0 || filtered {
		b.informListenersForNewBlock(block, SideChain, filteredTxHashes, filteredTxn, newStored)
	}

	if haveNewBestChain {
		return b.handleNewBestChain(storedPrev, newStored, block, expensiveChecks)
	}
	return nil
}

// handleNewBestChain is called when a new block results in a different chain
// having higher total work: a reorganization.
func (b *Blockchain) handleNewBestChain(storedPrev, newChainHead *chainutil.StoredBlock,
	block *chainutil.Block, expensiveChecks bool) error {

	// Firstly, calculate the block at which the chains diverged.  Only the
	// chain beyond that block needs to be examined.
	head := b.ChainHead()
	splitPoint, err := b.findSplit(newChainHead, head)
	if err != nil {
		return err
	}
	logging.CPrint(logging.INFO, "re-organize after split", logging.LogFormat{
		"split_height": splitPoint.Height(),
		"old_head":     head.Hash(),
		"new_head":     newChainHead.Hash(),
		"split":        splitPoint.Hash(),
	})

	// Then build the lists of blocks in the old part of the chain and the
	// new part, each running from its head down to the split point.
	oldBlocks, err := b.partialChain(head, splitPoint)
	if err != nil {
		return err
	}
	newBlocks, err := b.partialChain(newChainHead, splitPoint)
	if err != nil {
		return err
	}

	storedNewHead := splitPoint
	if b.io.ShouldVerifyTransactions() {
		// Disconnect each block in the old chain that is no longer in
		// the new chain, newest first.
		for _, oldBlock := range oldBlocks {
			// A PrunedError here means the data needed to re-org
			// this deep was thrown away; the operator must rescan.
			if err := b.io.DisconnectTransactions(oldBlock); err != nil {
				return err
			}
		}

		// Walk the new branch in ascending chronological order,
		// connecting each block.
		for i := len(newBlocks) - 1; i >= 0; i-- {
			cursor := newBlocks[i]
			if expensiveChecks {
				prevHash := cursor.Header().Previous
				cursorPrev, err := b.db.FetchStoredBlock(&prevHash)
				if err != nil {
					return err
				}
				median, err := b.getMedianTimestampOfRecentBlocks(cursorPrev)
				if err != nil {
					return err
				}
				if cursor.Header().TimeSeconds() <= median {
					return ruleError(ErrTimeTooOld,
						"block's timestamp is too early during reorg")
				}
			}

			// The in-memory block is only available for the new tip;
			// everything else reloads from the store.
			var changes *database.TxOutChanges
			var connectBlock *chainutil.Block
			if cursor.IsEqual(newChainHead) && block != nil {
				changes, err = b.io.ConnectTransactions(cursor, block)
				connectBlock = block
			} else {
				changes, err = b.io.ConnectStoredTransactions(cursor)
			}
			if err != nil {
				return err
			}
			if connectBlock == nil {
				connectBlock = chainutil.NewBlock(&wire.MsgBlock{Header: *cursor.Header()})
			}
			storedNewHead, err = b.io.AddToBlockStore(storedNewHead, connectBlock, changes)
			if err != nil {
				return err
			}
		}
	} else {
		// (Finally) write the new head to the block store.
		storedNewHead, err = b.io.AddToBlockStore(storedPrev,
			chainutil.NewBlock(&wire.MsgBlock{Header: *newChainHead.Header()}), nil)
		if err != nil {
			return err
		}
	}

	// Now inform the listeners so the set of currently active transactions
	// can be updated to take the re-organize into account.  We might also
	// have received new coins we didn't have before and our previous
	// spends might have been undone.
	for _, registration := range b.snapshotListeners() {
		if registration.isSameThread() {
			registration.listener.Reorganize(splitPoint, oldBlocks, newBlocks)
		} else {
			listener := registration.listener
			registration.executor.Execute(func() {
				listener.Reorganize(splitPoint, oldBlocks, newBlocks)
			})
		}
	}

	// Update the pointer to the best known block.
	return b.setChainHead(storedNewHead)
}

// partialChain returns the contiguous blocks between higher and lower.
// Higher is included, lower is not.
func (b *Blockchain) partialChain(higher, lower *chainutil.StoredBlock) ([]*chainutil.StoredBlock, error) {
	if higher.Height() <= lower.Height() {
		return nil, fmt.Errorf("partialChain: higher and lower are reversed")
	}
	var results []*chainutil.StoredBlock
	cursor := higher
	for {
		results = append(results, cursor)
		prevHash := cursor.Header().Previous
		next, err := b.db.FetchStoredBlock(&prevHash)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, fmt.Errorf("partialChain: ran off the end of the chain")
		}
		cursor = next
		if cursor.IsEqual(lower) {
			return results, nil
		}
	}
}

// findSplit locates the point at which the chains ending at newChainHead and
// oldChainHead diverge.  It fails when the two are not part of the same
// rooted tree.  When one head is an ancestor of the other, that head itself
// is returned.
func (b *Blockchain) findSplit(newChainHead, oldChainHead *chainutil.StoredBlock) (*chainutil.StoredBlock, error) {
	currentChainCursor := oldChainHead
	newChainCursor := newChainHead

	// Loop until we find the block both chains have in common.  Example:
	//
	//    A -> B -> C -> D
	//         \--> E -> F -> G
	//
	// findSplit returns block B for oldChainHead = D and newChainHead = G.
	for !currentChainCursor.IsEqual(newChainCursor) {
		var err error
		if currentChainCursor.Height() > newChainCursor.Height() {
			prevHash := currentChainCursor.Header().Previous
			currentChainCursor, err = b.db.FetchStoredBlock(&prevHash)
			if err != nil {
				return nil, err
			}
			if currentChainCursor == nil {
				return nil, ruleError(ErrSideChainNoSplit,
					"attempt to follow an orphan chain")
			}
		} else {
			prevHash := newChainCursor.Header().Previous
			newChainCursor, err = b.db.FetchStoredBlock(&prevHash)
			if err != nil {
				return nil, err
			}
			if newChainCursor == nil {
				return nil, ruleError(ErrSideChainNoSplit,
					"attempt to follow an orphan chain")
			}
		}
	}
	return currentChainCursor, nil
}

// getMedianTimestampOfRecentBlocks returns the median timestamp of the last
// 11 blocks ending at storedBlock.
func (b *Blockchain) getMedianTimestampOfRecentBlocks(storedBlock *chainutil.StoredBlock) (int64, error) {
	timestamps := make([]int64, 0, medianTimeBlocks)
	cursor := storedBlock
	for i := 0; i < medianTimeBlocks && cursor != nil; i++ {
		timestamps = append(timestamps, cursor.Header().TimeSeconds())
		prevHash := cursor.Header().Previous
		var err error
		cursor, err = b.db.FetchStoredBlock(&prevHash)
		if err != nil {
			return 0, err
		}
	}

	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps[(len(timestamps)-1)/2], nil
}

// tryConnectingOrphans walks the orphan buffer in insertion order and
// connects every orphan whose parent has become known, repeating until a
// whole pass connects nothing.
//
// This algorithm is kind of crappy: a topological sort followed by one
// connect pass would be better, but for small numbers of orphan blocks it
// does OK.
func (b *Blockchain) tryConnectingOrphans() error {
	for {
		blocksConnectedThisRound := 0
		for _, orphan := range b.orphanPool.snapshot() {
			orphanHash := orphan.block.Hash()
			prevHash := orphan.block.MsgBlock().Header.Previous
			prev, err := b.io.GetStoredBlockInCurrentScope(&prevHash)
			if err != nil {
				return err
			}
			if prev == nil {
				// This is still an unconnected/orphan block.
				continue
			}

			// tryConnecting is false here so we don't recurse
			// infinitely downwards when connecting huge chains.
			if _, err := b.add(orphan.block, false, orphan.filteredTxHashes, orphan.filteredTxn); err != nil {
				return err
			}
			b.orphanPool.remove(orphanHash)
			blocksConnectedThisRound++
		}
		if blocksConnectedThisRound == 0 {
			return nil
		}
		logging.CPrint(logging.INFO, "connected orphan blocks", logging.LogFormat{
			"count": blocksConnectedThisRound,
		})
	}
}

// containsRelevantTransactions returns true when any same-thread listener
// considers any transaction in the block relevant.
func (b *Blockchain) containsRelevantTransactions(block *chainutil.Block) bool {
	for _, tx := range block.Transactions() {
		for _, registration := range b.snapshotListeners() {
			if !registration.isSameThread() {
				continue
			}
			relevant, err := registration.listener.IsTransactionRelevant(tx)
			if err != nil {
				// A script we don't understand must not break the
				// chain; note the transaction was not scanned and
				// move on.
				logging.CPrint(logging.WARN, "failed to parse a script", logging.LogFormat{
					"err": err,
					"tx":  tx.Hash(),
				})
				continue
			}
			if relevant {
				return true
			}
		}
	}
	return false
}

// informListenersForNewBlock notifies every listener of a new block so the
// depth and work of stored transactions can be updated.  Same-thread
// listeners run inline and feed the surviving false-positive set into the
// estimator; others get fire-and-forget tasks with their own discarded set.
func (b *Blockchain) informListenersForNewBlock(block *chainutil.Block, blockType NewBlockType,
	filteredTxHashes []wire.Hash, filteredTxn map[wire.Hash]*chainutil.Tx,
	newStoredBlock *chainutil.StoredBlock) {

	first := true
	falsePositives := make(map[wire.Hash]struct{})
	for hash := range filteredTxn {
		falsePositives[hash] = struct{}{}
	}

	for _, registration := range b.snapshotListeners() {
		if registration.isSameThread() {
			informListenerForNewTransactions(block, blockType, filteredTxHashes,
				filteredTxn, newStoredBlock, first, registration.listener, falsePositives)
			if blockType == BestChain {
				registration.listener.NotifyNewBestBlock(newStoredBlock)
			}
		} else {
			// The listener wants to run on some other executor, so
			// marshal it across.  False-positive handling is not
			// possible off-thread.
			isFirst := first
			listener := registration.listener
			registration.executor.Execute(func() {
				ignoredFalsePositives := make(map[wire.Hash]struct{})
				informListenerForNewTransactions(block, blockType, filteredTxHashes,
					filteredTxn, newStoredBlock, isFirst, listener, ignoredFalsePositives)
				if blockType == BestChain {
					listener.NotifyNewBestBlock(newStoredBlock)
				}
			})
		}
		first = false
	}

	b.fp.trackFalsePositives(len(falsePositives))
}

// informListenerForNewTransactions delivers the transactions of a block (or
// the matched hashes of a filtered block) to a single listener, preserving
// block order.
func informListenerForNewTransactions(block *chainutil.Block, blockType NewBlockType,
	filteredTxHashes []wire.Hash, filteredTxn map[wire.Hash]*chainutil.Tx,
	newStoredBlock *chainutil.StoredBlock, first bool, listener ChainListener,
	falsePositives map[wire.Hash]struct{}) {

	if len(block.MsgBlock().Transactions) > 0 {
		// If this is not the first listener, ask for the transactions
		// to be duplicated before being delivered when relevant.  This
		// ensures two connected listeners never end up accidentally
		// sharing the same object, which could cause in-memory
		// corruption during re-orgs.  We only duplicate in the multi
		// listener case to avoid the hit in the common case.
		sendTransactionsToListener(newStoredBlock, blockType, listener, 0,
			block.Transactions(), !first, falsePositives)
	} else if filteredTxHashes != nil {
		// Transactions must reach the listeners in the order they
		// appeared in the block, so iterate over the hash sequence and
		// deliver the known transactions individually, announcing the
		// rest by hash only.
		relativityOffset := 0
		for i := range filteredTxHashes {
			hash := filteredTxHashes[i]
			if tx := filteredTxn[hash]; tx != nil {
				sendTransactionsToListener(newStoredBlock, blockType, listener,
					relativityOffset, []*chainutil.Tx{tx}, !first, falsePositives)
			} else {
				listener.NotifyTransactionIsInBlock(&hash, newStoredBlock,
					blockType, relativityOffset)
			}
			relativityOffset++
		}
	}
}

// sendTransactionsToListener delivers each relevant transaction, cloning
// when requested so listeners cannot share mutable state.
func sendTransactionsToListener(block *chainutil.StoredBlock, blockType NewBlockType,
	listener ChainListener, relativityOffset int, transactions []*chainutil.Tx,
	clone bool, falsePositives map[wire.Hash]struct{}) {

	for _, tx := range transactions {
		relevant, err := listener.IsTransactionRelevant(tx)
		if err != nil {
			// Scripts we don't understand must not break the block
			// chain, so just note this tx was not scanned and keep
			// going.
			logging.CPrint(logging.WARN, "failed to parse a script", logging.LogFormat{
				"err": err,
				"tx":  tx.Hash(),
			})
			continue
		}
		if !relevant {
			continue
		}

		delete(falsePositives, *tx.Hash())
		deliver := tx
		if clone {
			raw, err := tx.Bytes()
			if err == nil {
				if copied, copyErr := chainutil.NewTxFromBytes(raw); copyErr == nil {
					deliver = copied
				}
			}
		}
		listener.ReceiveFromBlock(deliver, block, blockType, relativityOffset)
		relativityOffset++
	}
}

// IsOrphan returns whether the given hash currently identifies a buffered
// orphan block.
func (b *Blockchain) IsOrphan(hash *wire.Hash) bool {
	return b.orphanPool.IsKnownOrphan(hash)
}

// GetOrphanRoot walks upwards from the given orphan and returns the topmost
// buffered ancestor, or nil when the hash is not an orphan.  Peers use the
// result to request the gap between the chain and the orphan.
func (b *Blockchain) GetOrphanRoot(hash *wire.Hash) *chainutil.Block {
	return b.orphanPool.GetOrphanRoot(hash)
}

// EstimateBlockTime returns an estimate of when a block at the given height
// will be reached, assuming a perfect target-spacing average.  Heights in
// the past are still extrapolated rather than looked up.
func (b *Blockchain) EstimateBlockTime(height int32) time.Time {
	b.headLock.Lock()
	defer b.headLock.Unlock()

	offset := int64(height - b.chainHead.Height())
	headTime := b.chainHead.Header().TimeSeconds()
	return time.Unix(headTime+b.params.TargetSpacing*offset, 0)
}

// heightWaiter fulfills a height future and unregisters itself.
type heightWaiter struct {
	chain  *Blockchain
	height int32
	result chan *chainutil.StoredBlock
	once   sync.Once
}

func (w *heightWaiter) IsTransactionRelevant(*chainutil.Tx) (bool, error) { return false, nil }

func (w *heightWaiter) ReceiveFromBlock(*chainutil.Tx, *chainutil.StoredBlock, NewBlockType, int) {
}

func (w *heightWaiter) NotifyTransactionIsInBlock(*wire.Hash, *chainutil.StoredBlock, NewBlockType, int) {
}

func (w *heightWaiter) Reorganize(*chainutil.StoredBlock, []*chainutil.StoredBlock, []*chainutil.StoredBlock) {
}

func (w *heightWaiter) NotifyNewBestBlock(block *chainutil.StoredBlock) {
	if block.Height() >= w.height {
		w.chain.RemoveListener(w)
		w.once.Do(func() {
			w.result <- block
			close(w.result)
		})
	}
}

// HeightFuture returns a channel that yields the stored block that first
// reaches the given height on the best chain, then closes.  When the chain is
// already at or past the height, it yields the current chain head instead.
// The channel is buffered; the chain never blocks on it.
func (b *Blockchain) HeightFuture(height int32) <-chan *chainutil.StoredBlock {
	waiter := &heightWaiter{
		chain:  b,
		height: height,
		result: make(chan *chainutil.StoredBlock, 1),
	}
	b.AddListener(waiter, SameThreadExecutor)

	// The chain may already be past the requested height.
	if head := b.ChainHead(); head.Height() >= height {
		b.RemoveListener(waiter)
		waiter.once.Do(func() {
			waiter.result <- head
			close(waiter.result)
		})
	}
	return waiter.result
}

// FalsePositiveRate returns the running estimate of the bloom filter false
// positive rate: the average over all filtered transactions of 1.0 for a
// transaction no listener wanted and 0.0 otherwise.
func (b *Blockchain) FalsePositiveRate() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.fp.rate
}

// TrackFilteredTransactions records that handling of a filtered block with
// the given total transaction count has completed, decaying the false
// positive estimate accordingly.
func (b *Blockchain) TrackFilteredTransactions(count int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.fp.trackFilteredTransactions(count)
}

// ResetFalsePositiveEstimate zeroes the false positive estimate.  Called
// when a fresh filter is sent to the peer.
func (b *Blockchain) ResetFalsePositiveEstimate() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.fp.reset()
}
