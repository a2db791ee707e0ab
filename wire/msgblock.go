// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MaxBlockPayload is the maximum bytes a block message can be in bytes.
const MaxBlockPayload = 1000000

// maxTxPerBlock is the maximum number of transactions that could possibly
// fit into a block.
const maxTxPerBlock = (MaxBlockPayload / 60) + 1

// MsgBlock represents a block message.
// It is used to deliver block and transaction information.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// AddTransaction adds a transaction to the message.
func (msg *MsgBlock) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// ClearTransactions removes all transactions from the message.
func (msg *MsgBlock) ClearTransactions() {
	msg.Transactions = make([]*MsgTx, 0, 8)
}

// BlockHash computes the block identifier hash for this block.
func (msg *MsgBlock) BlockHash() Hash {
	return msg.Header.BlockHash()
}

// TxHashes returns a slice of hashes of all of transactions in this block.
func (msg *MsgBlock) TxHashes() []Hash {
	hashList := make([]Hash, 0, len(msg.Transactions))
	for _, tx := range msg.Transactions {
		hashList = append(hashList, tx.TxHash())
	}
	return hashList
}

// Deserialize decodes a block from r into the receiver.
func (msg *MsgBlock) Deserialize(r io.Reader) error {
	if err := readBlockHeader(r, &msg.Header); err != nil {
		return err
	}

	txCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if txCount > maxTxPerBlock {
		return fmt.Errorf("MsgBlock.Deserialize: too many transactions "+
			"to fit into a block [count %d, max %d]", txCount, maxTxPerBlock)
	}

	msg.Transactions = make([]*MsgTx, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx := MsgTx{}
		if err := tx.Deserialize(r); err != nil {
			return err
		}
		msg.Transactions = append(msg.Transactions, &tx)
	}

	return nil
}

// Serialize encodes the block to w.
func (msg *MsgBlock) Serialize(w io.Writer) error {
	if err := writeBlockHeader(w, &msg.Header); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.Transactions))); err != nil {
		return err
	}
	for _, tx := range msg.Transactions {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}

	return nil
}

// NewMsgBlock returns a new block message using the provided block header.
func NewMsgBlock(blockHeader *BlockHeader) *MsgBlock {
	return &MsgBlock{
		Header:       *blockHeader,
		Transactions: make([]*MsgTx, 0, 8),
	}
}
