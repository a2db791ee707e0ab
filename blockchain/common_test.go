package blockchain

import (
	"math/big"
	"testing"
	"time"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/config"
	"github.com/bitcryptoproject/bitj/database"
	"github.com/bitcryptoproject/bitj/database/memdb"
	"github.com/bitcryptoproject/bitj/wire"
)

// regtestBits is an easy compact target so test blocks solve in a handful of
// nonce increments.
const regtestBits = 0x207fffff

var testGenesisTime = time.Unix(1390000000, 0)

// createCoinbaseTx returns a coinbase paying to an anyone-can-spend script.
// The height and salt in the signature script keep sibling blocks at the
// same height distinct.
func createCoinbaseTx(height int32, salt byte) *wire.MsgTx {
	tx := wire.NewMsgTx()
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  wire.Hash{},
			Index: wire.MaxPrevOutIndex,
		},
		SignatureScript: []byte{0x04, byte(height), byte(height >> 8), byte(height >> 16), salt},
		Sequence:        wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    50 * 1e8,
		PkScript: []byte{0x51}, // OP_TRUE
	})
	return tx
}

// solveBlock increments the nonce until the header hash satisfies its own
// target.
func solveBlock(header *wire.BlockHeader) {
	target := chainutil.CompactToBig(header.Bits)
	for {
		hash := header.BlockHash()
		if new(big.Int).SetBytes(hash.Bytes()).Cmp(target) < 0 {
			return
		}
		header.Nonce++
	}
}

// assembleBlock builds and solves a block on top of the given parent header.
func assembleBlock(prevHash wire.Hash, height int32, timestamp time.Time,
	bits uint32, salt byte, txs []*wire.MsgTx) *chainutil.Block {

	msg := &wire.MsgBlock{}
	msg.AddTransaction(createCoinbaseTx(height, salt))
	for _, tx := range txs {
		msg.AddTransaction(tx)
	}

	block := chainutil.NewBlock(msg)
	merkles := BuildMerkleTreeStore(block.Transactions())

	msg.Header = wire.BlockHeader{
		Version:    1,
		Previous:   prevHash,
		MerkleRoot: *merkles[len(merkles)-1],
		Timestamp:  timestamp,
		Bits:       bits,
	}
	solveBlock(&msg.Header)

	// Re-wrap so the cached hash reflects the solved header.
	solved := chainutil.NewBlock(msg)
	solved.SetHeight(height)
	return solved
}

// newTestParams returns regression-test chain parameters with a freshly
// solved genesis block and all algorithm switches pushed out of reach.
func newTestParams() *config.Params {
	powLimit := chainutil.CompactToBig(regtestBits)

	genesisMsg := &wire.MsgBlock{}
	genesisMsg.AddTransaction(createCoinbaseTx(0, 0))
	genesisBlock := chainutil.NewBlock(genesisMsg)
	merkles := BuildMerkleTreeStore(genesisBlock.Transactions())
	genesisMsg.Header = wire.BlockHeader{
		Version:    1,
		MerkleRoot: *merkles[len(merkles)-1],
		Timestamp:  testGenesisTime,
		Bits:       regtestBits,
	}
	solveBlock(&genesisMsg.Header)
	genesisHash := genesisMsg.Header.BlockHash()

	return &config.Params{
		Name:        "regtest",
		ID:          config.IDMainNet,
		GenesisBlock: genesisMsg,
		GenesisHash:  &genesisHash,
		PowLimit:     powLimit,
		PowLimitBits: regtestBits,

		TargetSpacing:    150,
		TargetTimespan:   2016 * 150,
		RetargetInterval: 2016,

		KGWStartHeight:   1 << 30,
		DGWStartHeight:   1 << 30,
		DGW3StartHeight:  1 << 30,
		KGWTimeFixHeight: 646120,

		TestnetDiffDate: time.Unix(1329264000, 0),
	}
}

// recordingListener captures every callback so tests can assert on delivery
// order and offsets.
type recordingListener struct {
	relevant func(tx *chainutil.Tx) (bool, error)

	received []receivedTx
	inBlock  []receivedTx
	best     []wire.Hash
	reorgs   []reorgEvent
}

type receivedTx struct {
	txHash    wire.Hash
	blockHash wire.Hash
	blockType NewBlockType
	offset    int
}

type reorgEvent struct {
	split wire.Hash
	old   []wire.Hash
	new   []wire.Hash
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		relevant: func(*chainutil.Tx) (bool, error) { return true, nil },
	}
}

func (l *recordingListener) IsTransactionRelevant(tx *chainutil.Tx) (bool, error) {
	return l.relevant(tx)
}

func (l *recordingListener) ReceiveFromBlock(tx *chainutil.Tx, block *chainutil.StoredBlock,
	blockType NewBlockType, relativityOffset int) {
	l.received = append(l.received, receivedTx{
		txHash:    *tx.Hash(),
		blockHash: block.Hash(),
		blockType: blockType,
		offset:    relativityOffset,
	})
}

func (l *recordingListener) NotifyTransactionIsInBlock(txHash *wire.Hash, block *chainutil.StoredBlock,
	blockType NewBlockType, relativityOffset int) {
	l.inBlock = append(l.inBlock, receivedTx{
		txHash:    *txHash,
		blockHash: block.Hash(),
		blockType: blockType,
		offset:    relativityOffset,
	})
}

func (l *recordingListener) NotifyNewBestBlock(block *chainutil.StoredBlock) {
	l.best = append(l.best, block.Hash())
}

func (l *recordingListener) Reorganize(splitPoint *chainutil.StoredBlock,
	oldBlocks, newBlocks []*chainutil.StoredBlock) {

	event := reorgEvent{split: splitPoint.Hash()}
	for _, sb := range oldBlocks {
		event.old = append(event.old, sb.Hash())
	}
	for _, sb := range newBlocks {
		event.new = append(event.new, sb.Hash())
	}
	l.reorgs = append(l.reorgs, event)
}

// spyDb wraps a Db and counts its transactional calls.
type spyDb struct {
	database.Db
	rollbacks     int
	connects      int
	connectStored int
	disconnects   int
}

func (s *spyDb) Rollback() error {
	s.rollbacks++
	return s.Db.Rollback()
}

func (s *spyDb) ConnectTransactions(stored *chainutil.StoredBlock, block *chainutil.Block) (*database.TxOutChanges, error) {
	s.connects++
	return s.Db.ConnectTransactions(stored, block)
}

func (s *spyDb) ConnectStoredTransactions(stored *chainutil.StoredBlock) (*database.TxOutChanges, error) {
	s.connectStored++
	return s.Db.ConnectStoredTransactions(stored)
}

func (s *spyDb) DisconnectTransactions(stored *chainutil.StoredBlock) error {
	s.disconnects++
	return s.Db.DisconnectTransactions(stored)
}

// testHarness bundles a chain over a memory store with a recording listener.
type testHarness struct {
	t        *testing.T
	params   *config.Params
	db       *spyDb
	chain    *Blockchain
	listener *recordingListener
	genesis  *chainutil.Block
	salt     byte
}

func newTestHarness(t *testing.T, full bool) *testHarness {
	params := newTestParams()
	spy := &spyDb{Db: memdb.NewMemDb()}

	var io ChainIO
	if full {
		io = NewFullChainIO(spy)
	} else {
		io = NewHeaderChainIO(spy)
	}

	listener := newRecordingListener()
	chain, err := New(params, spy, io, []ChainListener{listener})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}

	genesis := chainutil.NewBlock(params.GenesisBlock)
	genesis.SetHeight(0)

	return &testHarness{
		t:        t,
		params:   params,
		db:       spy,
		chain:    chain,
		listener: listener,
		genesis:  genesis,
	}
}

// nextBlock builds a solved child of parent at the parent's difficulty, one
// target spacing later.  Each generated block gets a distinct coinbase so
// siblings at the same height never collide.
func (h *testHarness) nextBlock(parent *chainutil.Block, txs ...*wire.MsgTx) *chainutil.Block {
	h.salt++
	parentHeader := parent.MsgBlock().Header
	return assembleBlock(*parent.Hash(), parent.Height()+1,
		parentHeader.Timestamp.Add(150*time.Second), parentHeader.Bits, h.salt, txs)
}

// addBlock adds a block and fails the test on error.
func (h *testHarness) addBlock(block *chainutil.Block) bool {
	connected, err := h.chain.AddBlock(block)
	if err != nil {
		h.t.Fatalf("AddBlock(%v): unexpected error: %v", block.Hash(), err)
	}
	return connected
}

// mustHaveHead asserts the chain head hash.
func (h *testHarness) mustHaveHead(block *chainutil.Block) {
	h.t.Helper()
	headHash := h.chain.ChainHead().Hash()
	if !headHash.IsEqual(block.Hash()) {
		h.t.Fatalf("chain head mismatch: got %v, want %v", headHash, block.Hash())
	}
}
