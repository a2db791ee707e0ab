// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/config"
	"github.com/bitcryptoproject/bitj/wire"
)

const (
	// MaxTimeOffsetSeconds is the maximum number of seconds a block time
	// is allowed to be ahead of the local clock.
	MaxTimeOffsetSeconds = 2 * 60 * 60

	// medianTimeBlocks is the number of previous blocks which should be
	// used to calculate the median time used to validate block timestamps.
	medianTimeBlocks = 11
)

var zeroHash = &wire.Hash{}

// isNullOutpoint determines whether or not a previous transaction output point
// is set.
func isNullOutpoint(outpoint *wire.OutPoint) bool {
	if outpoint.Index == math.MaxUint32 && outpoint.Hash.IsEqual(zeroHash) {
		return true
	}
	return false
}

// IsCoinBaseTx determines whether or not a transaction is a coinbase.  A
// coinbase is a special transaction created by miners.  This is represented
// in the block chain by a transaction with a single input that has a previous
// output transaction index set to the maximum value along with a zero hash.
//
// This function only differs from IsCoinBase in that it works with a raw wire
// transaction as opposed to a higher level util transaction.
func IsCoinBaseTx(msgTx *wire.MsgTx) bool {
	if len(msgTx.TxIn) != 1 {
		return false
	}
	return isNullOutpoint(&msgTx.TxIn[0].PreviousOutPoint)
}

// IsCoinBase determines whether or not a transaction is a coinbase.
//
// This function only differs from IsCoinBaseTx in that it works with a higher
// level util transaction as opposed to a raw wire transaction.
func IsCoinBase(tx *chainutil.Tx) bool {
	return IsCoinBaseTx(tx.MsgTx())
}

// checkProofOfWork ensures the block header bits which indicate the target
// difficulty is in min/max range and that the block hash is less than the
// target difficulty as claimed.
func checkProofOfWork(header *wire.BlockHeader, powLimit *big.Int) error {
	// The target difficulty must be larger than zero.
	target := chainutil.CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		str := fmt.Sprintf("block target difficulty of %064x is too low",
			target)
		return ruleError(ErrUnexpectedDifficulty, str)
	}

	// The target difficulty must be less than the maximum allowed.
	if target.Cmp(powLimit) > 0 {
		str := fmt.Sprintf("block target difficulty of %064x is "+
			"higher than max of %064x", target, powLimit)
		return ruleError(ErrUnexpectedDifficulty, str)
	}

	// The block hash must be less than the claimed target.
	hash := header.BlockHash()
	hashNum := new(big.Int).SetBytes(hash.Bytes())
	if hashNum.Cmp(target) >= 0 {
		str := fmt.Sprintf("block hash of %064x is not below the "+
			"target of %064x", hashNum, target)
		return ruleError(ErrHighHash, str)
	}

	return nil
}

// checkBlockHeaderSanity performs some preliminary checks on a block header to
// ensure it is sane before continuing with processing.  These checks are
// context free.
func checkBlockHeaderSanity(header *wire.BlockHeader, params *config.Params) error {
	err := checkProofOfWork(header, params.PowLimit)
	if err != nil {
		return err
	}

	// A block timestamp must not have a greater precision than one second.
	if !header.Timestamp.Equal(time.Unix(header.Timestamp.Unix(), 0)) {
		str := fmt.Sprintf("block timestamp of %v has a higher "+
			"precision than one second", header.Timestamp)
		return ruleError(ErrInvalidTime, str)
	}

	// Ensure the block time is not too far in the future.
	maxTimestamp := time.Now().Add(time.Second * MaxTimeOffsetSeconds)
	if header.Timestamp.After(maxTimestamp) {
		str := fmt.Sprintf("block timestamp of %v is too far in the "+
			"future", header.Timestamp)
		return ruleError(ErrTimeTooNew, str)
	}

	return nil
}

// CheckTransactionSanity performs some preliminary checks on a transaction to
// ensure it is sane.  These checks are context free.
func CheckTransactionSanity(tx *chainutil.Tx) error {
	msgTx := tx.MsgTx()
	if len(msgTx.TxIn) == 0 {
		return ruleError(ErrNoTxInputs, "transaction has no inputs")
	}
	if len(msgTx.TxOut) == 0 {
		return ruleError(ErrNoTxOutputs, "transaction has no outputs")
	}

	for _, txOut := range msgTx.TxOut {
		if txOut.Value < 0 {
			str := fmt.Sprintf("transaction output has negative "+
				"value of %v", txOut.Value)
			return ruleError(ErrBadTxOutValue, str)
		}
	}

	// Check for duplicate transaction inputs.
	existingTxOut := make(map[wire.OutPoint]struct{})
	for _, txIn := range msgTx.TxIn {
		if _, exists := existingTxOut[txIn.PreviousOutPoint]; exists {
			return ruleError(ErrDuplicateTxInputs, "transaction "+
				"contains duplicate inputs")
		}
		existingTxOut[txIn.PreviousOutPoint] = struct{}{}
	}

	// Coinbase scrutiny and non-coinbase null-prevout checks.
	if IsCoinBaseTx(msgTx) {
		return nil
	}
	for _, txIn := range msgTx.TxIn {
		if isNullOutpoint(&txIn.PreviousOutPoint) {
			return ruleError(ErrNoTxInputs, "transaction input "+
				"refers to previous output that is null")
		}
	}

	return nil
}

// checkBlockSanity performs the transaction-level checks on a block: a
// coinbase leads, no second coinbase, sane transactions, and a merkle root
// matching the header.  These checks are context free and are only invoked
// when the block contents matter (full validation, or a relevant
// transaction); header-only processing skips them, which in particular skips
// the merkle tree.
func checkBlockSanity(block *chainutil.Block, params *config.Params) error {
	msgBlock := block.MsgBlock()
	header := &msgBlock.Header

	numTx := len(msgBlock.Transactions)
	if numTx == 0 {
		return ruleError(ErrNoTransactions, "block does not contain "+
			"any transactions")
	}

	// A block must not exceed the maximum allowed block payload when
	// serialized.
	serializedBlock, err := block.Bytes()
	if err != nil {
		return err
	}
	if len(serializedBlock) > wire.MaxBlockPayload {
		str := fmt.Sprintf("serialized block is too big - got %d, "+
			"max %d", len(serializedBlock), wire.MaxBlockPayload)
		return ruleError(ErrBlockTooBig, str)
	}

	transactions := block.Transactions()
	if !IsCoinBase(transactions[0]) {
		return ruleError(ErrFirstTxNotCoinbase, "first transaction in "+
			"block is not a coinbase")
	}

	for i, tx := range transactions[1:] {
		if IsCoinBase(tx) {
			str := fmt.Sprintf("block contains second coinbase at "+
				"index %d", i+1)
			return ruleError(ErrMultipleCoinbases, str)
		}
	}

	for _, tx := range transactions {
		if err := CheckTransactionSanity(tx); err != nil {
			return err
		}
	}

	merkles := BuildMerkleTreeStore(transactions)
	calculatedMerkleRoot := merkles[len(merkles)-1]
	if !header.MerkleRoot.IsEqual(calculatedMerkleRoot) {
		str := fmt.Sprintf("block merkle root is invalid - block "+
			"header indicates %v, but calculated value is %v",
			header.MerkleRoot, calculatedMerkleRoot)
		return ruleError(ErrBadMerkleRoot, str)
	}

	// Check for duplicate transactions.
	existingTxHashes := make(map[wire.Hash]struct{})
	for _, tx := range transactions {
		hash := tx.Hash()
		if _, exists := existingTxHashes[*hash]; exists {
			str := fmt.Sprintf("block contains duplicate "+
				"transaction %v", hash)
			return ruleError(ErrDuplicateTx, str)
		}
		existingTxHashes[*hash] = struct{}{}
	}

	return nil
}
