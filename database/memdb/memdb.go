// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memdb

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/database"
	"github.com/bitcryptoproject/bitj/wire"
)

// ErrDbClosed is the error returned for operations on a closed database.
var ErrDbClosed = errors.New("database is closed")

type storedEntry struct {
	stored *chainutil.StoredBlock
	block  *chainutil.Block
	undo   *database.TxOutChanges
}

// MemDb is an in-memory implementation of the database.Db interface.  It is
// primarily used by tests and for throwaway header-only chains.
type MemDb struct {
	sync.Mutex

	blocks    map[wire.Hash]*storedEntry
	utxos     map[wire.OutPoint]*database.UtxoEntry
	chainHead *wire.Hash
	closed    bool

	// pruneDepth discards undo data for blocks more than this many
	// confirmations below the chain head.  Zero keeps everything.
	pruneDepth int32

	// staged state, applied by Commit and thrown away by Rollback.
	// Block rows themselves are written through immediately: side-branch
	// blocks are stored without any chain-head commit following them.
	stagedSpent    map[wire.OutPoint]*database.UtxoEntry
	stagedCreated  map[wire.OutPoint]*database.UtxoEntry
	stagedUndo     map[wire.Hash]*database.TxOutChanges
	stagedUndoDrop map[wire.Hash]struct{}
}

// NewMemDb returns a new empty memory-backed block store.
func NewMemDb() *MemDb {
	db := &MemDb{
		blocks: make(map[wire.Hash]*storedEntry),
		utxos:  make(map[wire.OutPoint]*database.UtxoEntry),
	}
	db.resetStaged()
	return db
}

// SetPruneDepth configures undo-data pruning.  Blocks deeper than depth
// below the last committed head lose their undo data at the next Commit.
func (db *MemDb) SetPruneDepth(depth int32) {
	db.Lock()
	defer db.Unlock()
	db.pruneDepth = depth
}

func (db *MemDb) resetStaged() {
	db.stagedSpent = make(map[wire.OutPoint]*database.UtxoEntry)
	db.stagedCreated = make(map[wire.OutPoint]*database.UtxoEntry)
	db.stagedUndo = make(map[wire.Hash]*database.TxOutChanges)
	db.stagedUndoDrop = make(map[wire.Hash]struct{})
}

// Close implements database.Db.
func (db *MemDb) Close() error {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return ErrDbClosed
	}
	db.closed = true
	return nil
}

// FetchChainHead implements database.Db.
func (db *MemDb) FetchChainHead() (*chainutil.StoredBlock, error) {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return nil, ErrDbClosed
	}
	if db.chainHead == nil {
		return nil, database.ErrBlockShaMissing
	}
	return db.blocks[*db.chainHead].stored, nil
}

// Commit implements database.Db.
func (db *MemDb) Commit(sha wire.Hash) error {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return ErrDbClosed
	}

	for outPoint := range db.stagedSpent {
		delete(db.utxos, outPoint)
	}
	for outPoint, entry := range db.stagedCreated {
		db.utxos[outPoint] = entry
	}
	for hash, undo := range db.stagedUndo {
		if entry, ok := db.blocks[hash]; ok {
			entry.undo = undo
		}
	}
	for hash := range db.stagedUndoDrop {
		if entry, ok := db.blocks[hash]; ok {
			entry.undo = nil
		}
	}

	headCopy := sha
	db.chainHead = &headCopy
	db.resetStaged()

	if db.pruneDepth > 0 {
		db.pruneUndoData()
	}
	return nil
}

// pruneUndoData drops undo data and block contents below the prune horizon,
// keeping the headers.  Must be called with the lock held.
func (db *MemDb) pruneUndoData() {
	head, ok := db.blocks[*db.chainHead]
	if !ok {
		return
	}
	horizon := head.stored.Height() - db.pruneDepth
	for _, entry := range db.blocks {
		if entry.stored.Height() >= horizon {
			continue
		}
		entry.undo = nil
		if entry.block != nil && len(entry.block.MsgBlock().Transactions) > 0 {
			header := entry.block.MsgBlock().Header
			entry.block = chainutil.NewBlock(&wire.MsgBlock{Header: header})
			entry.block.SetHeight(entry.stored.Height())
		}
	}
}

// Rollback implements database.Db.
func (db *MemDb) Rollback() error {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return ErrDbClosed
	}
	db.resetStaged()
	return nil
}

// FetchStoredBlock implements database.Db.
func (db *MemDb) FetchStoredBlock(sha *wire.Hash) (*chainutil.StoredBlock, error) {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return nil, ErrDbClosed
	}
	if entry := db.lookup(sha); entry != nil {
		return entry.stored, nil
	}
	return nil, nil
}

// lookup resolves a hash against the block table.  Must be called with the
// lock held.
func (db *MemDb) lookup(sha *wire.Hash) *storedEntry {
	return db.blocks[*sha]
}

// FetchStoredBlockWithUndo implements database.Db.  A block remains usable
// for reorganization while its undo data or its full contents are present;
// only once pruning has taken both does this fail.
func (db *MemDb) FetchStoredBlockWithUndo(sha *wire.Hash) (*chainutil.StoredBlock, error) {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return nil, ErrDbClosed
	}
	entry := db.lookup(sha)
	if entry == nil {
		return nil, nil
	}
	if entry.undo != nil {
		return entry.stored, nil
	}
	if _, staged := db.stagedUndo[*sha]; staged {
		return entry.stored, nil
	}
	if entry.block != nil && len(entry.block.MsgBlock().Transactions) > 0 {
		return entry.stored, nil
	}
	return nil, errors.Wrapf(database.ErrUndoDataPruned, "block %v", sha)
}

// FetchBlockBySha implements database.Db.
func (db *MemDb) FetchBlockBySha(sha *wire.Hash) (*chainutil.Block, error) {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return nil, ErrDbClosed
	}
	entry := db.lookup(sha)
	if entry == nil {
		return nil, database.ErrBlockShaMissing
	}
	return entry.block, nil
}

// ExistsSha implements database.Db.
func (db *MemDb) ExistsSha(sha *wire.Hash) (bool, error) {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return false, ErrDbClosed
	}
	return db.lookup(sha) != nil, nil
}

// SubmitBlock implements database.Db.
func (db *MemDb) SubmitBlock(stored *chainutil.StoredBlock, block *chainutil.Block) error {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return ErrDbClosed
	}
	hash := stored.Hash()
	if existing, ok := db.blocks[hash]; ok {
		// Re-submitting is allowed; keep any undo data already there,
		// and never replace stored contents with a bare header.
		existing.stored = stored
		if len(block.MsgBlock().Transactions) > 0 || existing.block == nil {
			existing.block = block
		}
		return nil
	}
	db.blocks[hash] = &storedEntry{
		stored: stored,
		block:  block,
	}
	return nil
}

// utxoLookup resolves an outpoint against the committed set overlaid with
// staged changes.  Must be called with the lock held.
func (db *MemDb) utxoLookup(outPoint wire.OutPoint) (*database.UtxoEntry, error) {
	if _, spent := db.stagedSpent[outPoint]; spent {
		return nil, nil
	}
	if entry, ok := db.stagedCreated[outPoint]; ok {
		return entry, nil
	}
	if entry, ok := db.utxos[outPoint]; ok {
		return entry, nil
	}
	return nil, nil
}

// stageChanges folds a connected block's change set into the staged state.
// Must be called with the lock held.
func (db *MemDb) stageChanges(hash wire.Hash, changes *database.TxOutChanges) {
	for outPoint, entry := range changes.Destroyed {
		if _, ok := db.stagedCreated[outPoint]; ok {
			delete(db.stagedCreated, outPoint)
			continue
		}
		db.stagedSpent[outPoint] = entry
	}
	for outPoint, entry := range changes.Created {
		db.stagedCreated[outPoint] = entry
	}
	db.stagedUndo[hash] = changes
	delete(db.stagedUndoDrop, hash)
}

// ConnectTransactions implements database.Db.
func (db *MemDb) ConnectTransactions(stored *chainutil.StoredBlock, block *chainutil.Block) (*database.TxOutChanges, error) {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return nil, ErrDbClosed
	}

	changes, err := database.ConnectBlockUtxos(stored, block, db.utxoLookup)
	if err != nil {
		return nil, err
	}
	db.stageChanges(stored.Hash(), changes)
	return changes, nil
}

// ConnectStoredTransactions implements database.Db.
func (db *MemDb) ConnectStoredTransactions(stored *chainutil.StoredBlock) (*database.TxOutChanges, error) {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return nil, ErrDbClosed
	}

	hash := stored.Hash()
	entry := db.lookup(&hash)
	if entry == nil || entry.block == nil || len(entry.block.MsgBlock().Transactions) == 0 {
		return nil, errors.Wrapf(database.ErrBlockShaMissing, "block contents for %v", hash)
	}

	changes, err := database.ConnectBlockUtxos(stored, entry.block, db.utxoLookup)
	if err != nil {
		return nil, err
	}
	db.stageChanges(hash, changes)
	return changes, nil
}

// DisconnectTransactions implements database.Db.
func (db *MemDb) DisconnectTransactions(stored *chainutil.StoredBlock) error {
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return ErrDbClosed
	}

	hash := stored.Hash()
	undo := db.stagedUndo[hash]
	if undo == nil {
		entry := db.lookup(&hash)
		if entry == nil || entry.undo == nil {
			return errors.Wrapf(database.ErrUndoDataPruned, "block %v", hash)
		}
		undo = entry.undo
	}

	// Reverse the change set: created outputs disappear, destroyed ones
	// come back.
	for outPoint := range undo.Created {
		if _, ok := db.stagedCreated[outPoint]; ok {
			delete(db.stagedCreated, outPoint)
			continue
		}
		db.stagedSpent[outPoint] = nil
	}
	for outPoint, entry := range undo.Destroyed {
		delete(db.stagedSpent, outPoint)
		if _, ok := db.utxos[outPoint]; !ok {
			db.stagedCreated[outPoint] = entry
		}
	}
	delete(db.stagedUndo, hash)
	db.stagedUndoDrop[hash] = struct{}{}
	return nil
}

func init() {
	database.AddDBDriver(database.DriverDB{
		DbType: "memdb",
		CreateDB: func(args ...interface{}) (database.Db, error) {
			if err := database.CheckArgNum(args, 0, "memdb.CreateDB"); err != nil {
				return nil, err
			}
			return NewMemDb(), nil
		},
		OpenDB: func(args ...interface{}) (database.Db, error) {
			if err := database.CheckArgNum(args, 0, "memdb.OpenDB"); err != nil {
				return nil, err
			}
			return NewMemDb(), nil
		},
	})
}
