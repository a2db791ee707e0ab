// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"errors"
	"fmt"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/wire"
)

// Errors that the various database functions may return.
var (
	ErrBlockShaMissing = errors.New("requested block does not exist")
	ErrUndoDataPruned  = errors.New("undo data for the block has been pruned")
	ErrMissingTxOut    = errors.New("referenced output does not exist or is already spent")
	ErrDbDoesNotExist  = errors.New("non-existent database")
	ErrDbUnknownType   = errors.New("non-existent database type")
)

// UtxoEntry describes a single unspent transaction output.
type UtxoEntry struct {
	Value       int64
	PkScript    []byte
	BlockHeight int32
	IsCoinBase  bool
}

// TxOutChanges is the total set of changes a connected block made to the
// unspent output set.  Destroyed keeps the full prior entries so the block
// can be disconnected again.
type TxOutChanges struct {
	Created   map[wire.OutPoint]*UtxoEntry
	Destroyed map[wire.OutPoint]*UtxoEntry
}

// NewTxOutChanges returns an empty change set.
func NewTxOutChanges() *TxOutChanges {
	return &TxOutChanges{
		Created:   make(map[wire.OutPoint]*UtxoEntry),
		Destroyed: make(map[wire.OutPoint]*UtxoEntry),
	}
}

// Db is the block-store contract consumed by the chain manager.
//
// Block rows written by SubmitBlock are stored at once and are kept by
// Rollback.  Writes made through ConnectTransactions and
// DisconnectTransactions are staged; they become durable when Commit is
// called with the new chain head and are thrown away by Rollback.  Every
// connect/disconnect sequence must end in exactly one Commit or Rollback.
// Rollback with nothing staged is a no-op.
type Db interface {
	// Close cleanly shuts down the database and syncs all data.
	Close() error

	// FetchChainHead returns the stored block the last Commit declared to
	// be the tip of the best chain.
	FetchChainHead() (*chainutil.StoredBlock, error)

	// Commit makes all staged writes durable and records sha as the new
	// chain head.
	Commit(sha wire.Hash) error

	// Rollback discards all staged writes.
	Rollback() error

	// FetchStoredBlock returns the stored block for the given hash, or
	// (nil, nil) when the hash is unknown.
	FetchStoredBlock(sha *wire.Hash) (*chainutil.StoredBlock, error)

	// FetchStoredBlockWithUndo is FetchStoredBlock for callers that will
	// need to disconnect the block again.  It fails with ErrUndoDataPruned
	// when neither the undo data nor the full block contents are available
	// any more.
	FetchStoredBlockWithUndo(sha *wire.Hash) (*chainutil.StoredBlock, error)

	// FetchBlockBySha returns the full block for the given hash.  Header
	// only submissions return a block with no transactions.  Returns
	// ErrBlockShaMissing for unknown hashes.
	FetchBlockBySha(sha *wire.Hash) (*chainutil.Block, error)

	// ExistsSha returns whether or not the given block hash is present in
	// the database.
	ExistsSha(sha *wire.Hash) (bool, error)

	// SubmitBlock stores the given block at once; Rollback does not remove
	// it.  block may carry a bare header in header-only mode.
	SubmitBlock(stored *chainutil.StoredBlock, block *chainutil.Block) error

	// ConnectTransactions verifies every spend in the block against the
	// unspent output set, stages the resulting changes and the undo data
	// needed to reverse them, and returns the change set.  It fails with
	// ErrMissingTxOut on a spend of an unknown or already-spent output.
	ConnectTransactions(stored *chainutil.StoredBlock, block *chainutil.Block) (*TxOutChanges, error)

	// ConnectStoredTransactions reloads the block for the given stored
	// block from the database and connects it as ConnectTransactions
	// does.  It fails with ErrBlockShaMissing when the block contents are
	// not stored (the store only kept the header).
	ConnectStoredTransactions(stored *chainutil.StoredBlock) (*TxOutChanges, error)

	// DisconnectTransactions reverses a previously connected block using
	// its undo data.  It fails with ErrUndoDataPruned when the undo data
	// has been discarded.
	DisconnectTransactions(stored *chainutil.StoredBlock) error
}

// DriverDB defines a structure for backend drivers to use when they register
// themselves as a backend which implements the Db interface.
type DriverDB struct {
	DbType   string
	CreateDB func(args ...interface{}) (Db, error)
	OpenDB   func(args ...interface{}) (Db, error)
}

// driverList holds all of the registered database backends.
var driverList []DriverDB

// AddDBDriver adds a back end database driver to available interfaces.
func AddDBDriver(instance DriverDB) {
	for _, drv := range driverList {
		if drv.DbType == instance.DbType {
			return
		}
	}
	driverList = append(driverList, instance)
}

// CreateDB initializes and opens a database of the named type.
func CreateDB(dbtype string, args ...interface{}) (Db, error) {
	for _, drv := range driverList {
		if drv.DbType == dbtype {
			return drv.CreateDB(args...)
		}
	}
	return nil, ErrDbUnknownType
}

// OpenDB opens an existing database of the named type.
func OpenDB(dbtype string, args ...interface{}) (Db, error) {
	for _, drv := range driverList {
		if drv.DbType == dbtype {
			return drv.OpenDB(args...)
		}
	}
	return nil, ErrDbUnknownType
}

// SupportedDBs returns a slice of the registered database types.
func SupportedDBs() []string {
	supported := make([]string, 0, len(driverList))
	for _, drv := range driverList {
		supported = append(supported, drv.DbType)
	}
	return supported
}

// CheckArgNum verifies the number of arguments given to a driver entry point.
func CheckArgNum(args []interface{}, expected int, funcName string) error {
	if len(args) != expected {
		return fmt.Errorf("invalid arguments to %s: %d expected %d",
			funcName, len(args), expected)
	}
	return nil
}
