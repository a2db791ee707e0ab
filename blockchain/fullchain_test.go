package blockchain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/database"
	"github.com/bitcryptoproject/bitj/wire"
)

// spendOf builds a transaction consuming the coinbase output of the given
// block.
func spendOf(block *chainutil.Block) *wire.MsgTx {
	coinbase := block.Transactions()[0]
	tx := wire.NewMsgTx()
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: *coinbase.Hash(), Index: 0},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{Value: 49 * 1e8, PkScript: []byte{0x51}})
	return tx
}

// TestFullModeRequiresTransactions rejects header-only submissions.
func TestFullModeRequiresTransactions(t *testing.T) {
	h := newTestHarness(t, true)

	b1 := h.nextBlock(h.genesis)
	headerOnly := chainutil.NewBlock(&wire.MsgBlock{Header: b1.MsgBlock().Header})

	_, err := h.chain.AddBlock(headerOnly)
	require.Error(t, err)
	ruleErr, ok := err.(RuleError)
	require.True(t, ok)
	require.Equal(t, ErrNoTransactions, ruleErr.ErrorCode)
}

// TestFullModeRejectsFilteredBlocks: a filtered block carries no transaction
// list, which full mode cannot accept.
func TestFullModeRejectsFilteredBlocks(t *testing.T) {
	h := newTestHarness(t, true)

	b1 := h.nextBlock(h.genesis)
	header := b1.MsgBlock().Header
	_, err := h.chain.AddFilteredBlock(&header, b1.MsgBlock().TxHashes(), nil)
	require.Error(t, err)
}

// TestFullModeConnectsSpends extends the chain with a block spending an
// earlier output.
func TestFullModeConnectsSpends(t *testing.T) {
	h := newTestHarness(t, true)

	b1 := h.nextBlock(h.genesis)
	require.True(t, h.addBlock(b1))

	b2 := h.nextBlock(b1, spendOf(b1))
	require.True(t, h.addBlock(b2))
	h.mustHaveHead(b2)
}

// TestFullModeRejectsMissingOutput fails a block spending an output that
// does not exist and rolls the store back.
func TestFullModeRejectsMissingOutput(t *testing.T) {
	h := newTestHarness(t, true)

	b1 := h.nextBlock(h.genesis)
	require.True(t, h.addBlock(b1))

	bogus := wire.NewMsgTx()
	bogus.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{0xab}, Index: 3},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	bogus.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x51}})

	rollbacksBefore := h.db.rollbacks
	b2 := h.nextBlock(b1, bogus)
	_, err := h.chain.AddBlock(b2)
	require.Error(t, err)
	ruleErr, ok := err.(RuleError)
	require.True(t, ok)
	require.Equal(t, ErrMissingTx, ruleErr.ErrorCode)
	require.Equal(t, rollbacksBefore+1, h.db.rollbacks)
	h.mustHaveHead(b1)
}

// TestFullModeRejectsDoubleSpend fails the second spend of the same output
// across blocks.
func TestFullModeRejectsDoubleSpend(t *testing.T) {
	h := newTestHarness(t, true)

	b1 := h.nextBlock(h.genesis)
	require.True(t, h.addBlock(b1))

	b2 := h.nextBlock(b1, spendOf(b1))
	require.True(t, h.addBlock(b2))

	b3 := h.nextBlock(b2, spendOf(b1))
	_, err := h.chain.AddBlock(b3)
	require.Error(t, err)
	h.mustHaveHead(b2)
}

// TestFullModeRejectsNonFinal fails a block carrying a non-final
// transaction.
func TestFullModeRejectsNonFinal(t *testing.T) {
	h := newTestHarness(t, true)

	b1 := h.nextBlock(h.genesis)
	require.True(t, h.addBlock(b1))

	nonFinal := spendOf(b1)
	nonFinal.LockTime = 1000000 // far-future block height
	nonFinal.TxIn[0].Sequence = 0

	b2 := h.nextBlock(b1, nonFinal)
	_, err := h.chain.AddBlock(b2)
	require.Error(t, err)
	ruleErr, ok := err.(RuleError)
	require.True(t, ok)
	require.Equal(t, ErrUnfinalizedTx, ruleErr.ErrorCode)
}

// TestFullModeReorgCounts verifies a depth-d reorganization disconnects
// exactly d blocks head-to-split and connects the new branch split-to-head.
func TestFullModeReorgCounts(t *testing.T) {
	h := newTestHarness(t, true)

	b1 := h.nextBlock(h.genesis)
	b2 := h.nextBlock(b1)
	require.True(t, h.addBlock(b1))
	require.True(t, h.addBlock(b2))

	b2side := h.nextBlock(b1)
	b3side := h.nextBlock(b2side)
	require.True(t, h.addBlock(b2side))

	disconnectsBefore := h.db.disconnects
	connectStoredBefore := h.db.connectStored
	connectsBefore := h.db.connects

	require.True(t, h.addBlock(b3side))
	h.mustHaveHead(b3side)

	// Depth 1 reorg: b2 disconnected; b2side reloaded from the store and
	// reconnected; the tip b3side connected from memory.
	require.Equal(t, disconnectsBefore+1, h.db.disconnects)
	require.Equal(t, connectStoredBefore+1, h.db.connectStored)
	require.Equal(t, connectsBefore+1, h.db.connects)

	require.Len(t, h.listener.reorgs, 1)
	reorg := h.listener.reorgs[0]
	require.Equal(t, *b1.Hash(), reorg.split)
	require.Equal(t, []wire.Hash{*b2.Hash()}, reorg.old)
	require.Equal(t, []wire.Hash{*b3side.Hash(), *b2side.Hash()}, reorg.new)
}

// TestFullModeReorgRestoresSpentOutputs: outputs consumed on the losing
// branch become spendable on the winning branch again.
func TestFullModeReorgRestoresSpentOutputs(t *testing.T) {
	h := newTestHarness(t, true)

	b1 := h.nextBlock(h.genesis)
	require.True(t, h.addBlock(b1))

	// The b1 coinbase is spent on the original branch.
	b2 := h.nextBlock(b1, spendOf(b1))
	require.True(t, h.addBlock(b2))

	// The heavier branch does not spend it.
	b2side := h.nextBlock(b1)
	b3side := h.nextBlock(b2side)
	require.True(t, h.addBlock(b2side))
	require.True(t, h.addBlock(b3side))
	h.mustHaveHead(b3side)

	// Spending the restored output on the new best chain must succeed.
	b4 := h.nextBlock(b3side, spendOf(b1))
	require.True(t, h.addBlock(b4))
	h.mustHaveHead(b4)
}

// prunedStubDb fails every undo-dependent operation as pruned.
type prunedStubDb struct {
	database.Db
}

func (p *prunedStubDb) DisconnectTransactions(stored *chainutil.StoredBlock) error {
	return database.ErrUndoDataPruned
}

func (p *prunedStubDb) ConnectStoredTransactions(stored *chainutil.StoredBlock) (*database.TxOutChanges, error) {
	return nil, database.ErrBlockShaMissing
}

// TestPrunedErrorsSurface maps store-level pruning onto PrunedError.
func TestPrunedErrorsSurface(t *testing.T) {
	io := NewFullChainIO(&prunedStubDb{})
	stored := chainutil.NewGenesisStoredBlock(&newTestParams().GenesisBlock.Header)

	err := io.DisconnectTransactions(stored)
	_, ok := err.(PrunedError)
	require.True(t, ok, "expected PrunedError, got %T", err)

	_, err = io.ConnectStoredTransactions(stored)
	_, ok = err.(PrunedError)
	require.True(t, ok, "expected PrunedError, got %T", err)
}
