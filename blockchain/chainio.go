package blockchain

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/database"
	"github.com/bitcryptoproject/bitj/wire"
)

// ChainIO is the capability set the chain manager drives the block store
// through.  The header-only and full-validation modes are two concrete
// implementations of this interface; the chain itself never branches on the
// mode beyond what ShouldVerifyTransactions reports.
//
// Every sequence of ConnectTransactions/DisconnectTransactions calls must be
// ended by the chain with exactly one DoSetChainHead or NotSettingChainHead.
type ChainIO interface {
	// ShouldVerifyTransactions reports whether an unspent-output set is
	// being maintained and block contents must be verified.  When true,
	// every add must supply a block with transactions.
	ShouldVerifyTransactions() bool

	// AddToBlockStore stores the given block, building its stored form on
	// top of storedPrev.  changes is nil outside full-validation mode.
	AddToBlockStore(storedPrev *chainutil.StoredBlock, block *chainutil.Block,
		changes *database.TxOutChanges) (*chainutil.StoredBlock, error)

	// ConnectTransactions verifies and applies the spends of a block that
	// is becoming part of the best chain.  Only called when
	// ShouldVerifyTransactions is true.
	ConnectTransactions(stored *chainutil.StoredBlock, block *chainutil.Block) (*database.TxOutChanges, error)

	// ConnectStoredTransactions is ConnectTransactions for a block that
	// must be reloaded from the store (used while reorganizing).  Fails
	// with PrunedError when the contents are no longer available.
	ConnectStoredTransactions(stored *chainutil.StoredBlock) (*database.TxOutChanges, error)

	// DisconnectTransactions reverses a block's spends during a
	// reorganization.  Fails with PrunedError when the undo data has been
	// discarded.  Only called when ShouldVerifyTransactions is true.
	DisconnectTransactions(stored *chainutil.StoredBlock) error

	// DoSetChainHead commits all staged store state and records the new
	// chain head.
	DoSetChainHead(head *chainutil.StoredBlock) error

	// NotSettingChainHead aborts any staged store state.  It is safe to
	// call when nothing is staged.
	NotSettingChainHead() error

	// GetStoredBlockInCurrentScope returns the stored block for the given
	// hash, or (nil, nil) when it is unknown in the current scope.  The
	// full-validation scope only contains blocks whose undo data or full
	// contents the store still holds.
	GetStoredBlockInCurrentScope(hash *wire.Hash) (*chainutil.StoredBlock, error)
}

// HeaderChainIO is the SPV capability set: headers are stored, transactions
// are neither kept nor verified.
type HeaderChainIO struct {
	db database.Db
}

// NewHeaderChainIO returns a header-only capability set over db.
func NewHeaderChainIO(db database.Db) *HeaderChainIO {
	return &HeaderChainIO{db: db}
}

// ShouldVerifyTransactions implements ChainIO.
func (c *HeaderChainIO) ShouldVerifyTransactions() bool {
	return false
}

// AddToBlockStore implements ChainIO.  Only the header is persisted.
func (c *HeaderChainIO) AddToBlockStore(storedPrev *chainutil.StoredBlock, block *chainutil.Block,
	changes *database.TxOutChanges) (*chainutil.StoredBlock, error) {

	header := block.MsgBlock().Header
	stored := storedPrev.Build(&header)
	headerOnly := chainutil.NewBlock(&wire.MsgBlock{Header: header})
	headerOnly.SetHeight(stored.Height())
	if err := c.db.SubmitBlock(stored, headerOnly); err != nil {
		return nil, err
	}
	return stored, nil
}

// ConnectTransactions implements ChainIO.
func (c *HeaderChainIO) ConnectTransactions(stored *chainutil.StoredBlock, block *chainutil.Block) (*database.TxOutChanges, error) {
	return nil, fmt.Errorf("connectTransactions called on a header-only chain")
}

// ConnectStoredTransactions implements ChainIO.
func (c *HeaderChainIO) ConnectStoredTransactions(stored *chainutil.StoredBlock) (*database.TxOutChanges, error) {
	return nil, fmt.Errorf("connectTransactions called on a header-only chain")
}

// DisconnectTransactions implements ChainIO.
func (c *HeaderChainIO) DisconnectTransactions(stored *chainutil.StoredBlock) error {
	return fmt.Errorf("disconnectTransactions called on a header-only chain")
}

// DoSetChainHead implements ChainIO.
func (c *HeaderChainIO) DoSetChainHead(head *chainutil.StoredBlock) error {
	return c.db.Commit(head.Hash())
}

// NotSettingChainHead implements ChainIO.
func (c *HeaderChainIO) NotSettingChainHead() error {
	return c.db.Rollback()
}

// GetStoredBlockInCurrentScope implements ChainIO.
func (c *HeaderChainIO) GetStoredBlockInCurrentScope(hash *wire.Hash) (*chainutil.StoredBlock, error) {
	return c.db.FetchStoredBlock(hash)
}

// FullChainIO is the full-validation capability set: blocks are stored with
// their transactions, spends are applied to the unspent-output set, and undo
// data is kept so the chain can reorganize.
type FullChainIO struct {
	db database.Db
}

// NewFullChainIO returns a full-validation capability set over db.
func NewFullChainIO(db database.Db) *FullChainIO {
	return &FullChainIO{db: db}
}

// ShouldVerifyTransactions implements ChainIO.
func (c *FullChainIO) ShouldVerifyTransactions() bool {
	return true
}

// AddToBlockStore implements ChainIO.
func (c *FullChainIO) AddToBlockStore(storedPrev *chainutil.StoredBlock, block *chainutil.Block,
	changes *database.TxOutChanges) (*chainutil.StoredBlock, error) {

	header := block.MsgBlock().Header
	stored := storedPrev.Build(&header)
	block.SetHeight(stored.Height())
	if err := c.db.SubmitBlock(stored, block); err != nil {
		return nil, err
	}
	return stored, nil
}

// ConnectTransactions implements ChainIO.
func (c *FullChainIO) ConnectTransactions(stored *chainutil.StoredBlock, block *chainutil.Block) (*database.TxOutChanges, error) {
	changes, err := c.db.ConnectTransactions(stored, block)
	if err != nil {
		return nil, convertSpendError(err)
	}
	return changes, nil
}

// ConnectStoredTransactions implements ChainIO.
func (c *FullChainIO) ConnectStoredTransactions(stored *chainutil.StoredBlock) (*database.TxOutChanges, error) {
	changes, err := c.db.ConnectStoredTransactions(stored)
	if err != nil {
		if errors.Cause(err) == database.ErrBlockShaMissing {
			return nil, PrunedError{Hash: stored.Hash()}
		}
		return nil, convertSpendError(err)
	}
	return changes, nil
}

// DisconnectTransactions implements ChainIO.
func (c *FullChainIO) DisconnectTransactions(stored *chainutil.StoredBlock) error {
	if err := c.db.DisconnectTransactions(stored); err != nil {
		if errors.Cause(err) == database.ErrUndoDataPruned {
			return PrunedError{Hash: stored.Hash()}
		}
		return err
	}
	return nil
}

// DoSetChainHead implements ChainIO.
func (c *FullChainIO) DoSetChainHead(head *chainutil.StoredBlock) error {
	return c.db.Commit(head.Hash())
}

// NotSettingChainHead implements ChainIO.
func (c *FullChainIO) NotSettingChainHead() error {
	return c.db.Rollback()
}

// GetStoredBlockInCurrentScope implements ChainIO.  Blocks whose undo data
// and full contents have both been pruned are outside the scope: the chain
// could never reorganize across them.
func (c *FullChainIO) GetStoredBlockInCurrentScope(hash *wire.Hash) (*chainutil.StoredBlock, error) {
	stored, err := c.db.FetchStoredBlockWithUndo(hash)
	if err != nil {
		if errors.Cause(err) == database.ErrUndoDataPruned {
			return nil, nil
		}
		return nil, err
	}
	return stored, nil
}

// convertSpendError maps a store-level spend failure onto the rule error the
// caller surfaces.
func convertSpendError(err error) error {
	if errors.Cause(err) == database.ErrMissingTxOut {
		return ruleError(ErrMissingTx, err.Error())
	}
	return err
}
