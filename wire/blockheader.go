// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	wirepb "github.com/bitcryptoproject/bitj/wire/pb"
)

// MaxBlockHeaderPayload is the maximum number of bytes a block header can be.
// Version 4 bytes + Timestamp 4 bytes + Bits 4 bytes + Nonce 4 bytes +
// Previous and MerkleRoot hashes.
const MaxBlockHeaderPayload = 16 + (HashSize * 2)

// BlockVersion is the current latest supported block version.
const BlockVersion = 2

// BlockHeader defines information about a block and is used in the block
// message.
type BlockHeader struct {
	// Version of the block.  This is not the same as the protocol version.
	Version uint32

	// Hash of the previous block in the block chain.
	Previous Hash

	// Merkle tree reference to hash of all transactions for the block.
	MerkleRoot Hash

	// Time the block was created.  Serialized with second precision.
	Timestamp time.Time

	// Difficulty target for the block in compact representation.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint32
}

// blockHeaderLen is a constant that represents the number of bytes for a
// block header.
const blockHeaderLen = 80

// BlockHash computes the block identifier hash for the given block header.
func (h *BlockHeader) BlockHash() Hash {
	// Encoding into a buffer can't fail here since the header is a fixed
	// size structure.
	buf := bytes.NewBuffer(make([]byte, 0, MaxBlockHeaderPayload))
	_ = writeBlockHeader(buf, h)

	return DoubleHashH(buf.Bytes())
}

// Deserialize decodes a block header from r into the receiver.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	return readBlockHeader(r, h)
}

// Serialize encodes a block header from the receiver to w.
func (h *BlockHeader) Serialize(w io.Writer) error {
	return writeBlockHeader(w, h)
}

// TimeSeconds returns the header timestamp in Unix seconds.
func (h *BlockHeader) TimeSeconds() int64 {
	return h.Timestamp.Unix()
}

// NewBlockHeader returns a new BlockHeader using the provided values.  The
// timestamp is rounded to second precision, matching the wire encoding.
func NewBlockHeader(version uint32, prevHash, merkleRoot *Hash, bits, nonce uint32) *BlockHeader {
	return &BlockHeader{
		Version:    version,
		Previous:   *prevHash,
		MerkleRoot: *merkleRoot,
		Timestamp:  time.Unix(time.Now().Unix(), 0),
		Bits:       bits,
		Nonce:      nonce,
	}
}

// NewEmptyBlockHeader returns an all-zero header.
func NewEmptyBlockHeader() *BlockHeader {
	return &BlockHeader{Timestamp: time.Unix(0, 0)}
}

// ToProto get proto BlockHeader from wire BlockHeader
func (h *BlockHeader) ToProto() *wirepb.BlockHeader {
	return &wirepb.BlockHeader{
		Version:    h.Version,
		Previous:   h.Previous.ToProto(),
		MerkleRoot: h.MerkleRoot.ToProto(),
		Timestamp:  h.Timestamp.Unix(),
		Bits:       h.Bits,
		Nonce:      h.Nonce,
	}
}

// FromProto load proto BlockHeader into wire BlockHeader
func (h *BlockHeader) FromProto(pb *wirepb.BlockHeader) error {
	previous, err := NewHashFromProto(pb.Previous)
	if err != nil {
		return err
	}
	merkleRoot, err := NewHashFromProto(pb.MerkleRoot)
	if err != nil {
		return err
	}

	h.Version = pb.Version
	h.Previous = *previous
	h.MerkleRoot = *merkleRoot
	h.Timestamp = time.Unix(pb.Timestamp, 0)
	h.Bits = pb.Bits
	h.Nonce = pb.Nonce
	return nil
}

// NewBlockHeaderFromProto get wire BlockHeader from proto BlockHeader
func NewBlockHeaderFromProto(pb *wirepb.BlockHeader) (*BlockHeader, error) {
	h := new(BlockHeader)
	if err := h.FromProto(pb); err != nil {
		return nil, err
	}
	return h, nil
}

// readBlockHeader reads a block header from r.
func readBlockHeader(r io.Reader, bh *BlockHeader) error {
	var ts uint32
	for _, element := range []interface{}{&bh.Version, &bh.Previous,
		&bh.MerkleRoot, &ts, &bh.Bits, &bh.Nonce} {
		if err := readElement(r, element); err != nil {
			return err
		}
	}
	bh.Timestamp = time.Unix(int64(ts), 0)
	return nil
}

// writeBlockHeader writes a block header to w.
func writeBlockHeader(w io.Writer, bh *BlockHeader) error {
	ts := uint32(bh.Timestamp.Unix())
	for _, element := range []interface{}{bh.Version, &bh.Previous,
		&bh.MerkleRoot, ts, bh.Bits, bh.Nonce} {
		if err := writeElement(w, element); err != nil {
			return err
		}
	}
	return nil
}
