package ldb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/database"
	"github.com/bitcryptoproject/bitj/wire"
)

func testBlock(prev wire.Hash, height int32, parent *chainutil.StoredBlock) (*chainutil.StoredBlock, *chainutil.Block) {
	coinbase := wire.NewMsgTx()
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{}, Index: wire.MaxPrevOutIndex},
		SignatureScript:  []byte{byte(height)},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(&wire.TxOut{Value: 50, PkScript: []byte{0x51}})

	msg := &wire.MsgBlock{Header: wire.BlockHeader{
		Version:   1,
		Previous:  prev,
		Timestamp: time.Unix(1390000000+int64(height)*150, 0),
		Bits:      0x207fffff,
	}}
	msg.AddTransaction(coinbase)

	var sb *chainutil.StoredBlock
	if parent == nil {
		sb = chainutil.NewGenesisStoredBlock(&msg.Header)
	} else {
		sb = parent.Build(&msg.Header)
	}
	blk := chainutil.NewBlock(msg)
	blk.SetHeight(sb.Height())
	return sb, blk
}

func TestLevelDbRoundTrip(t *testing.T) {
	db, err := OpenChainDb(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	genesisStored, genesisBlock := testBlock(wire.Hash{}, 0, nil)
	require.NoError(t, db.SubmitBlock(genesisStored, genesisBlock))
	require.NoError(t, db.Commit(genesisStored.Hash()))

	head, err := db.FetchChainHead()
	require.NoError(t, err)
	require.Equal(t, int32(0), head.Height())
	require.Equal(t, genesisStored.WorkSum(), head.WorkSum())

	sha := genesisStored.Hash()
	exists, err := db.ExistsSha(&sha)
	require.NoError(t, err)
	require.True(t, exists)

	blk, err := db.FetchBlockBySha(&sha)
	require.NoError(t, err)
	require.Equal(t, sha, *blk.Hash())

	missing := wire.Hash{0x0f}
	_, err = db.FetchBlockBySha(&missing)
	require.Equal(t, database.ErrBlockShaMissing, err)
}

func TestLevelDbConnectRollback(t *testing.T) {
	db, err := OpenChainDb(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	genesisStored, genesisBlock := testBlock(wire.Hash{}, 0, nil)
	require.NoError(t, db.SubmitBlock(genesisStored, genesisBlock))
	require.NoError(t, db.Commit(genesisStored.Hash()))

	childStored, childBlock := testBlock(genesisStored.Hash(), 1, genesisStored)
	require.NoError(t, db.SubmitBlock(childStored, childBlock))

	changes, err := db.ConnectTransactions(childStored, childBlock)
	require.NoError(t, err)
	require.Len(t, changes.Created, 1)
	require.NoError(t, db.Rollback())

	// Rolled back: the undo record is gone, but the block row was written
	// through so its contents still keep it in reorganization scope.
	childSha := childStored.Hash()
	got, err := db.FetchStoredBlockWithUndo(&childSha)
	require.NoError(t, err)
	require.Equal(t, int32(1), got.Height())

	// Connect and commit for real this time.
	_, err = db.ConnectTransactions(childStored, childBlock)
	require.NoError(t, err)
	require.NoError(t, db.Commit(childSha))

	head, err := db.FetchChainHead()
	require.NoError(t, err)
	require.Equal(t, childSha, head.Hash())

	require.NoError(t, db.DisconnectTransactions(childStored))
	require.NoError(t, db.Commit(genesisStored.Hash()))
}
