// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ldb

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/database"
	"github.com/bitcryptoproject/bitj/logging"
	"github.com/bitcryptoproject/bitj/wire"
	wirepb "github.com/bitcryptoproject/bitj/wire/pb"
)

const (
	// blockCacheExpiration bounds how long a decoded block stays in the
	// read cache.  The Db contract explicitly permits this caching.
	blockCacheExpiration = 10 * time.Minute
	blockCacheCleanup    = 30 * time.Minute
)

// Key prefixes for the single leveldb keyspace.
var (
	metaKey   = []byte("meta:chainhead")
	blockPfx  = []byte("blk:")
	storedPfx = []byte("sto:")
	undoPfx   = []byte("und:")
	utxoPfx   = []byte("utx:")
)

func blockKey(sha *wire.Hash) []byte {
	return append(append([]byte{}, blockPfx...), sha[:]...)
}

func storedKey(sha *wire.Hash) []byte {
	return append(append([]byte{}, storedPfx...), sha[:]...)
}

func undoKey(sha *wire.Hash) []byte {
	return append(append([]byte{}, undoPfx...), sha[:]...)
}

func utxoKey(op wire.OutPoint) []byte {
	key := append(append([]byte{}, utxoPfx...), op.Hash[:]...)
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], op.Index)
	return append(key, idx[:]...)
}

// ChainDb is a leveldb-backed implementation of the database.Db interface.
// SubmitBlock writes block rows straight to the database; all other writes
// are collected in a batch which is written atomically by Commit and
// discarded by Rollback.
type ChainDb struct {
	mtx sync.Mutex

	ldb        *leveldb.DB
	batch      *leveldb.Batch
	blockCache *cache.Cache

	// Overlay of keys touched by the current batch so reads observe
	// staged writes; a nil value marks a staged delete.
	overlay map[string][]byte
}

func newChainDb(ldb *leveldb.DB) *ChainDb {
	return &ChainDb{
		ldb:        ldb,
		batch:      new(leveldb.Batch),
		blockCache: cache.New(blockCacheExpiration, blockCacheCleanup),
		overlay:    make(map[string][]byte),
	}
}

// OpenChainDb opens (creating as needed) the block store at path.
func OpenChainDb(path string) (*ChainDb, error) {
	opts := &opt.Options{
		BlockCacheCapacity: 8 * opt.MiB,
	}
	ldb, err := leveldb.OpenFile(path, opts)
	if err != nil {
		if ldberrors.IsCorrupted(err) {
			ldb, err = leveldb.RecoverFile(path, opts)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "open leveldb at %s", path)
		}
		logging.CPrint(logging.WARN, "leveldb recovered from corruption", logging.LogFormat{
			"path": path,
		})
	}
	return newChainDb(ldb), nil
}

// Close implements database.Db.
func (db *ChainDb) Close() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	return db.ldb.Close()
}

// get reads a key, observing staged writes first.  Returns (nil, nil) on a
// missing key.  Must be called with the lock held.
func (db *ChainDb) get(key []byte) ([]byte, error) {
	if val, ok := db.overlay[string(key)]; ok {
		return val, nil
	}
	val, err := db.ldb.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "leveldb get")
	}
	return val, nil
}

// put stages a write.  Must be called with the lock held.
func (db *ChainDb) put(key, value []byte) {
	db.batch.Put(key, value)
	db.overlay[string(key)] = value
}

// del stages a delete.  Must be called with the lock held.
func (db *ChainDb) del(key []byte) {
	db.batch.Delete(key)
	db.overlay[string(key)] = nil
}

// FetchChainHead implements database.Db.
func (db *ChainDb) FetchChainHead() (*chainutil.StoredBlock, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	headSha, err := db.get(metaKey)
	if err != nil {
		return nil, err
	}
	if headSha == nil {
		return nil, database.ErrBlockShaMissing
	}
	sha, err := wire.NewHash(headSha)
	if err != nil {
		return nil, err
	}
	return db.fetchStoredBlock(sha)
}

// Commit implements database.Db.
func (db *ChainDb) Commit(sha wire.Hash) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	db.batch.Put(metaKey, sha[:])
	if err := db.ldb.Write(db.batch, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(err, "leveldb commit")
	}
	db.batch.Reset()
	db.overlay = make(map[string][]byte)
	return nil
}

// Rollback implements database.Db.
func (db *ChainDb) Rollback() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	db.batch.Reset()
	db.overlay = make(map[string][]byte)
	return nil
}

func (db *ChainDb) fetchStoredBlock(sha *wire.Hash) (*chainutil.StoredBlock, error) {
	raw, err := db.get(storedKey(sha))
	if err != nil || raw == nil {
		return nil, err
	}
	return database.DeserializeStoredBlock(raw)
}

// FetchStoredBlock implements database.Db.
func (db *ChainDb) FetchStoredBlock(sha *wire.Hash) (*chainutil.StoredBlock, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	return db.fetchStoredBlock(sha)
}

// FetchStoredBlockWithUndo implements database.Db.  A block remains usable
// for reorganization while its undo data or its full contents are present.
func (db *ChainDb) FetchStoredBlockWithUndo(sha *wire.Hash) (*chainutil.StoredBlock, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	stored, err := db.fetchStoredBlock(sha)
	if err != nil || stored == nil {
		return nil, err
	}
	undo, err := db.get(undoKey(sha))
	if err != nil {
		return nil, err
	}
	if undo != nil {
		return stored, nil
	}
	block, err := db.fetchBlockBySha(sha)
	if err == nil && len(block.MsgBlock().Transactions) > 0 {
		return stored, nil
	}
	return nil, errors.Wrapf(database.ErrUndoDataPruned, "block %v", sha)
}

// FetchBlockBySha implements database.Db.
func (db *ChainDb) FetchBlockBySha(sha *wire.Hash) (*chainutil.Block, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	return db.fetchBlockBySha(sha)
}

func (db *ChainDb) fetchBlockBySha(sha *wire.Hash) (*chainutil.Block, error) {
	if cached, ok := db.blockCache.Get(string(sha[:])); ok {
		return cached.(*chainutil.Block), nil
	}

	raw, err := db.get(blockKey(sha))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, database.ErrBlockShaMissing
	}

	block, err := chainutil.NewBlockFromBytes(raw)
	if err != nil {
		return nil, err
	}
	db.blockCache.Set(string(sha[:]), block, cache.DefaultExpiration)
	return block, nil
}

// ExistsSha implements database.Db.
func (db *ChainDb) ExistsSha(sha *wire.Hash) (bool, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	raw, err := db.get(storedKey(sha))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// SubmitBlock implements database.Db.  Block rows are written through
// immediately rather than staged: side-branch blocks are stored without any
// chain-head commit following them.
func (db *ChainDb) SubmitBlock(stored *chainutil.StoredBlock, block *chainutil.Block) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	sha := stored.Hash()
	serializedStored, err := database.SerializeStoredBlock(stored)
	if err != nil {
		return err
	}
	if err := db.ldb.Put(storedKey(&sha), serializedStored, nil); err != nil {
		return errors.Wrap(err, "leveldb put stored block")
	}

	// Never replace stored contents with a bare header resubmission.
	if len(block.MsgBlock().Transactions) == 0 {
		if existing, err := db.get(blockKey(&sha)); err != nil {
			return err
		} else if existing != nil {
			return nil
		}
	}

	raw, err := block.Bytes()
	if err != nil {
		return err
	}
	if err := db.ldb.Put(blockKey(&sha), raw, nil); err != nil {
		return errors.Wrap(err, "leveldb put block")
	}
	db.blockCache.Delete(string(sha[:]))
	return nil
}

func (db *ChainDb) utxoLookup(op wire.OutPoint) (*database.UtxoEntry, error) {
	raw, err := db.get(utxoKey(op))
	if err != nil || raw == nil {
		return nil, err
	}
	return deserializeUtxoEntry(raw)
}

// stageChanges folds a connected block's change set into the batch.  Must be
// called with the lock held.
func (db *ChainDb) stageChanges(sha wire.Hash, changes *database.TxOutChanges) error {
	for outPoint := range changes.Destroyed {
		db.del(utxoKey(outPoint))
	}
	for outPoint, entry := range changes.Created {
		db.put(utxoKey(outPoint), serializeUtxoEntry(entry))
	}

	undo, err := database.SerializeUndoData(changes)
	if err != nil {
		return err
	}
	db.put(undoKey(&sha), undo)
	return nil
}

// ConnectTransactions implements database.Db.
func (db *ChainDb) ConnectTransactions(stored *chainutil.StoredBlock, block *chainutil.Block) (*database.TxOutChanges, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	changes, err := database.ConnectBlockUtxos(stored, block, db.utxoLookup)
	if err != nil {
		return nil, err
	}
	if err := db.stageChanges(stored.Hash(), changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// ConnectStoredTransactions implements database.Db.
func (db *ChainDb) ConnectStoredTransactions(stored *chainutil.StoredBlock) (*database.TxOutChanges, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	sha := stored.Hash()
	block, err := db.fetchBlockBySha(&sha)
	if err != nil {
		return nil, err
	}
	if len(block.MsgBlock().Transactions) == 0 {
		return nil, errors.Wrapf(database.ErrBlockShaMissing, "block contents for %v", sha)
	}

	changes, err := database.ConnectBlockUtxos(stored, block, db.utxoLookup)
	if err != nil {
		return nil, err
	}
	if err := db.stageChanges(sha, changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// DisconnectTransactions implements database.Db.
func (db *ChainDb) DisconnectTransactions(stored *chainutil.StoredBlock) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	sha := stored.Hash()
	raw, err := db.get(undoKey(&sha))
	if err != nil {
		return err
	}
	if raw == nil {
		return errors.Wrapf(database.ErrUndoDataPruned, "block %v", sha)
	}
	undo, err := database.DeserializeUndoData(raw)
	if err != nil {
		return err
	}

	for outPoint := range undo.Created {
		db.del(utxoKey(outPoint))
	}
	for outPoint, entry := range undo.Destroyed {
		db.put(utxoKey(outPoint), serializeUtxoEntry(entry))
	}
	db.del(undoKey(&sha))
	return nil
}

func serializeUtxoEntry(entry *database.UtxoEntry) []byte {
	pb := &wirepb.UtxoEntry{
		Value:       entry.Value,
		PkScript:    entry.PkScript,
		BlockHeight: uint32(entry.BlockHeight),
		IsCoinBase:  entry.IsCoinBase,
	}
	raw, _ := proto.Marshal(pb)
	return raw
}

func deserializeUtxoEntry(raw []byte) (*database.UtxoEntry, error) {
	pb := new(wirepb.UtxoEntry)
	if err := proto.Unmarshal(raw, pb); err != nil {
		return nil, errors.Wrap(err, "unmarshal utxo entry")
	}
	return &database.UtxoEntry{
		Value:       pb.Value,
		PkScript:    pb.PkScript,
		BlockHeight: int32(pb.BlockHeight),
		IsCoinBase:  pb.IsCoinBase,
	}, nil
}

func init() {
	database.AddDBDriver(database.DriverDB{
		DbType: "leveldb",
		CreateDB: func(args ...interface{}) (database.Db, error) {
			if err := database.CheckArgNum(args, 1, "ldb.CreateDB"); err != nil {
				return nil, err
			}
			path, ok := args[0].(string)
			if !ok {
				return nil, errors.New("ldb.CreateDB: first argument must be a path string")
			}
			return OpenChainDb(path)
		},
		OpenDB: func(args ...interface{}) (database.Db, error) {
			if err := database.CheckArgNum(args, 1, "ldb.OpenDB"); err != nil {
				return nil, err
			}
			path, ok := args[0].(string)
			if !ok {
				return nil, errors.New("ldb.OpenDB: first argument must be a path string")
			}
			return OpenChainDb(path)
		},
	})
}
