// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"
)

const (
	// TxVersion is the current latest supported transaction version.
	TxVersion = 1

	// MaxTxInSequenceNum is the maximum sequence number the sequence field
	// of a transaction input can be.
	MaxTxInSequenceNum uint32 = 0xffffffff

	// MaxPrevOutIndex is the maximum index the index field of a previous
	// outpoint can be.
	MaxPrevOutIndex uint32 = 0xffffffff

	// LockTimeThreshold is the number below which a lock time is
	// interpreted to be a block height.  Since an epoch time stamp of
	// 500000000 is Tue Nov 5 00:53:20 1985 UTC, any value below it is a
	// block height.
	LockTimeThreshold uint32 = 5e8

	// maxTxInPerMessage is the maximum number of transaction inputs a
	// deserialized transaction is allowed to claim before allocation.
	maxTxInPerMessage = 65536

	// maxTxOutPerMessage is the corresponding limit for outputs.
	maxTxOutPerMessage = 65536

	// maxScriptLen is the maximum accepted script length.
	maxScriptLen = 10000
)

// OutPoint defines a transaction data type that is used to track previous
// transaction outputs.
type OutPoint struct {
	Hash  Hash
	Index uint32
}

// NewOutPoint returns a new transaction outpoint point with the provided
// hash and index.
func NewOutPoint(hash *Hash, index uint32) *OutPoint {
	return &OutPoint{
		Hash:  *hash,
		Index: index,
	}
}

// String returns the OutPoint in the human-readable form "hash:index".
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}

// TxIn defines a transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// NewTxIn returns a new transaction input with the provided previous outpoint
// point and signature script with a default sequence of MaxTxInSequenceNum.
func NewTxIn(prevOut *OutPoint, signatureScript []byte) *TxIn {
	return &TxIn{
		PreviousOutPoint: *prevOut,
		SignatureScript:  signatureScript,
		Sequence:         MaxTxInSequenceNum,
	}
}

// TxOut defines a transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// NewTxOut returns a new transaction output with the provided value and
// public key script.
func NewTxOut(value int64, pkScript []byte) *TxOut {
	return &TxOut{
		Value:    value,
		PkScript: pkScript,
	}
}

// MsgTx represents a transaction message.  Use the AddTxIn and AddTxOut functions to build up the list of
// transaction inputs and outputs.
type MsgTx struct {
	Version  uint32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// TxHash generates the hash for the transaction.
func (msg *MsgTx) TxHash() Hash {
	var buf bytes.Buffer
	_ = msg.Serialize(&buf)
	return DoubleHashH(buf.Bytes())
}

// Copy creates a deep copy of a transaction so that the original does not get
// modified when the copy is manipulated.
func (msg *MsgTx) Copy() *MsgTx {
	newTx := MsgTx{
		Version:  msg.Version,
		TxIn:     make([]*TxIn, 0, len(msg.TxIn)),
		TxOut:    make([]*TxOut, 0, len(msg.TxOut)),
		LockTime: msg.LockTime,
	}

	for _, oldTxIn := range msg.TxIn {
		newScript := make([]byte, len(oldTxIn.SignatureScript))
		copy(newScript, oldTxIn.SignatureScript)
		newTx.TxIn = append(newTx.TxIn, &TxIn{
			PreviousOutPoint: oldTxIn.PreviousOutPoint,
			SignatureScript:  newScript,
			Sequence:         oldTxIn.Sequence,
		})
	}

	for _, oldTxOut := range msg.TxOut {
		newScript := make([]byte, len(oldTxOut.PkScript))
		copy(newScript, oldTxOut.PkScript)
		newTx.TxOut = append(newTx.TxOut, &TxOut{
			Value:    oldTxOut.Value,
			PkScript: newScript,
		})
	}

	return &newTx
}

// IsFinal returns whether or not a transaction is finalized at the given
// block height and time.  A transaction with a zero lock time, or whose lock
// time is in the past, is final.  A transaction can also be made final even
// with a future lock time when every input is marked with the maximum
// sequence number.
func (msg *MsgTx) IsFinal(blockHeight int32, blockTime int64) bool {
	if msg.LockTime == 0 {
		return true
	}

	blockTimeOrHeight := int64(blockHeight)
	if msg.LockTime >= LockTimeThreshold {
		blockTimeOrHeight = blockTime
	}
	if int64(msg.LockTime) < blockTimeOrHeight {
		return true
	}

	for _, txIn := range msg.TxIn {
		if txIn.Sequence != MaxTxInSequenceNum {
			return false
		}
	}
	return true
}

// Deserialize decodes a transaction from r into the receiver.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	if err := readElement(r, &msg.Version); err != nil {
		return err
	}

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxTxInPerMessage {
		return fmt.Errorf("MsgTx.Deserialize: too many input "+
			"transactions [count %d, max %d]", count, maxTxInPerMessage)
	}
	msg.TxIn = make([]*TxIn, 0, count)
	for i := uint64(0); i < count; i++ {
		ti := TxIn{}
		if err := readElement(r, &ti.PreviousOutPoint.Hash); err != nil {
			return err
		}
		if err := readElement(r, &ti.PreviousOutPoint.Index); err != nil {
			return err
		}
		ti.SignatureScript, err = ReadVarBytes(r, maxScriptLen, "signature script")
		if err != nil {
			return err
		}
		if err := readElement(r, &ti.Sequence); err != nil {
			return err
		}
		msg.TxIn = append(msg.TxIn, &ti)
	}

	count, err = ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxTxOutPerMessage {
		return fmt.Errorf("MsgTx.Deserialize: too many output "+
			"transactions [count %d, max %d]", count, maxTxOutPerMessage)
	}
	msg.TxOut = make([]*TxOut, 0, count)
	for i := uint64(0); i < count; i++ {
		to := TxOut{}
		var value uint64
		if err := readElement(r, &value); err != nil {
			return err
		}
		to.Value = int64(value)
		to.PkScript, err = ReadVarBytes(r, maxScriptLen, "public key script")
		if err != nil {
			return err
		}
		msg.TxOut = append(msg.TxOut, &to)
	}

	return readElement(r, &msg.LockTime)
}

// Serialize encodes the transaction to w.
func (msg *MsgTx) Serialize(w io.Writer) error {
	if err := writeElement(w, msg.Version); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := writeElement(w, &ti.PreviousOutPoint.Hash); err != nil {
			return err
		}
		if err := writeElement(w, ti.PreviousOutPoint.Index); err != nil {
			return err
		}
		if err := WriteVarBytes(w, ti.SignatureScript); err != nil {
			return err
		}
		if err := writeElement(w, ti.Sequence); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := writeElement(w, uint64(to.Value)); err != nil {
			return err
		}
		if err := WriteVarBytes(w, to.PkScript); err != nil {
			return err
		}
	}

	return writeElement(w, msg.LockTime)
}

// NewMsgTx returns a new tx message.
// The return instance has a default version of TxVersion and there are no
// transaction inputs or outputs.
func NewMsgTx() *MsgTx {
	return &MsgTx{
		Version: TxVersion,
		TxIn:    make([]*TxIn, 0, 8),
		TxOut:   make([]*TxOut, 0, 8),
	}
}
