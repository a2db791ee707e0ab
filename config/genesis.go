package config

import (
	"encoding/hex"
	"time"

	"github.com/bitcryptoproject/bitj/wire"
)

func mustDecodeHash(str string) wire.Hash {
	h, err := wire.NewHashFromStr(str)
	if err != nil {
		panic(err)
	}
	return *h
}

func mustDecodeString(str string) []byte {
	data, err := hex.DecodeString(str)
	if err != nil {
		panic(err)
	}
	return data
}

// genesisCoinbaseTx is the coinbase transaction for the genesis blocks of
// both networks.
var genesisCoinbaseTx = wire.MsgTx{
	Version: 1,
	TxIn: []*wire.TxIn{
		{
			PreviousOutPoint: wire.OutPoint{
				Hash:  mustDecodeHash("0000000000000000000000000000000000000000000000000000000000000000"),
				Index: 0xffffffff,
			},
			SignatureScript: mustDecodeString("04ffff001d0104"),
			Sequence:        0xffffffff,
		},
	},
	TxOut: []*wire.TxOut{
		{
			Value:    50 * 1e8,
			PkScript: mustDecodeString("41040184710fa689ad5023690c80f3a49c8f13f8d45b8c857fbcbc8bc4a8e4d3eb4b10f4d4604fa08dce601aaf0f470216fe1b51850b4acf21b179c45070ac7b03a9ac"),
		},
	},
	LockTime: 0,
}

var genesisHeader = wire.BlockHeader{
	Version:    1,
	Previous:   mustDecodeHash("0000000000000000000000000000000000000000000000000000000000000000"),
	MerkleRoot: mustDecodeHash("e0028eb9648db56b1ac77cf090b99048a8007e2bb64b68f092c03c7f56a662c7"),
	Timestamp:  time.Unix(0x52e0fe95, 0), // 2014-01-23 11:35:49 +0000 UTC
	Bits:       0x1e0ffff0,
	Nonce:      28917698,
}

// genesisBlock defines the genesis block of the block chain which serves as
// the public transaction ledger for the main network.
var genesisBlock = wire.MsgBlock{
	Header:       genesisHeader,
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

// genesisHash is the hash of the first block in the block chain for the main
// network (genesis block).
var genesisHash = genesisHeader.BlockHash()

var testNetGenesisHeader = wire.BlockHeader{
	Version:    1,
	Previous:   mustDecodeHash("0000000000000000000000000000000000000000000000000000000000000000"),
	MerkleRoot: mustDecodeHash("e0028eb9648db56b1ac77cf090b99048a8007e2bb64b68f092c03c7f56a662c7"),
	Timestamp:  time.Unix(0x52e10b31, 0),
	Bits:       0x1e0ffff0,
	Nonce:      3861367235,
}

// testNetGenesisBlock defines the genesis block for the test network.
var testNetGenesisBlock = wire.MsgBlock{
	Header:       testNetGenesisHeader,
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

// testNetGenesisHash is the hash of the first block in the block chain for
// the test network.
var testNetGenesisHash = testNetGenesisHeader.BlockHash()
