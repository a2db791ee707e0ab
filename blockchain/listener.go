package blockchain

import (
	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/logging"
	"github.com/bitcryptoproject/bitj/wire"
)

// NewBlockType identifies whether a delivered block lies on the best chain or
// on a side branch.
type NewBlockType int

const (
	// BestChain is a block extending the chain with the most cumulative
	// work.
	BestChain NewBlockType = iota

	// SideChain is a block on a competing branch.  Transactions in it
	// must not be considered spendable until the branch activates.
	SideChain
)

// String returns the NewBlockType as a human-readable name.
func (t NewBlockType) String() string {
	if t == BestChain {
		return "best chain"
	}
	return "side chain"
}

// ChainListener receives callbacks as the chain updates.  Transaction
// deliveries for a block arrive in block order with a monotonically
// increasing relativity offset, and NotifyNewBestBlock for a block always
// follows its transaction deliveries.
type ChainListener interface {
	// IsTransactionRelevant returns whether the listener wants
	// ReceiveFromBlock for the given transaction.  Implementations may
	// fail on scripts they do not understand; such failures are logged
	// and the transaction treated as irrelevant.
	IsTransactionRelevant(tx *chainutil.Tx) (bool, error)

	// ReceiveFromBlock delivers a relevant transaction confirmed in the
	// given block.
	ReceiveFromBlock(tx *chainutil.Tx, block *chainutil.StoredBlock,
		blockType NewBlockType, relativityOffset int)

	// NotifyTransactionIsInBlock reports that a transaction matched the
	// bloom filter in a filtered block, but its contents were not
	// supplied.
	NotifyTransactionIsInBlock(txHash *wire.Hash, block *chainutil.StoredBlock,
		blockType NewBlockType, relativityOffset int)

	// NotifyNewBestBlock reports a new best-chain tip.
	NotifyNewBestBlock(block *chainutil.StoredBlock)

	// Reorganize reports a chain reorganization.  oldBlocks and newBlocks
	// run from each former/new tip down to, but not including, the split
	// point.
	Reorganize(splitPoint *chainutil.StoredBlock, oldBlocks, newBlocks []*chainutil.StoredBlock)
}

// Executor runs listener callbacks.  SameThreadExecutor runs them inline on
// the chain's goroutine while the chain lock is held; any other executor
// receives fire-and-forget tasks and cannot contribute to false-positive
// accounting.
type Executor interface {
	Execute(task func())
}

type sameThreadExecutor struct{}

func (sameThreadExecutor) Execute(task func()) {
	task()
}

// SameThreadExecutor runs callbacks synchronously on the caller goroutine.
var SameThreadExecutor Executor = sameThreadExecutor{}

// GoroutineExecutor runs every task on its own goroutine, recovering and
// logging panics so a listener cannot take down the chain.
type GoroutineExecutor struct{}

// Execute implements Executor.
func (GoroutineExecutor) Execute(task func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.CPrint(logging.ERROR, "block chain listener panicked", logging.LogFormat{
					"panic": r,
				})
			}
		}()
		task()
	}()
}

// listenerRegistration pairs a listener with the executor its callbacks run
// on.
type listenerRegistration struct {
	listener ChainListener
	executor Executor
}

func (r *listenerRegistration) isSameThread() bool {
	return r.executor == SameThreadExecutor
}
