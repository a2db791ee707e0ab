package database

import (
	"testing"
	"time"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/wire"
)

func TestStoredBlockSerialization(t *testing.T) {
	header := &wire.BlockHeader{
		Version:   1,
		Previous:  wire.Hash{0x11},
		Timestamp: time.Unix(1390000000, 0),
		Bits:      0x1e0ffff0,
		Nonce:     42,
	}
	sb := chainutil.NewGenesisStoredBlock(header)

	serialized, err := SerializeStoredBlock(sb)
	if err != nil {
		t.Fatalf("SerializeStoredBlock: %v", err)
	}
	decoded, err := DeserializeStoredBlock(serialized)
	if err != nil {
		t.Fatalf("DeserializeStoredBlock: %v", err)
	}

	if decoded.Height() != sb.Height() {
		t.Fatalf("height = %d, want %d", decoded.Height(), sb.Height())
	}
	if decoded.WorkSum().Cmp(sb.WorkSum()) != 0 {
		t.Fatalf("work = %v, want %v", decoded.WorkSum(), sb.WorkSum())
	}
	if decoded.Hash() != sb.Hash() {
		t.Fatal("hash changed through serialization")
	}
}

func TestUndoDataSerialization(t *testing.T) {
	changes := NewTxOutChanges()
	changes.Destroyed[wire.OutPoint{Hash: wire.Hash{0x01}, Index: 2}] = &UtxoEntry{
		Value:       5000,
		PkScript:    []byte{0x51},
		BlockHeight: 7,
		IsCoinBase:  true,
	}
	changes.Created[wire.OutPoint{Hash: wire.Hash{0x02}, Index: 0}] = &UtxoEntry{
		Value:       4000,
		PkScript:    []byte{0x52, 0x53},
		BlockHeight: 8,
	}

	serialized, err := SerializeUndoData(changes)
	if err != nil {
		t.Fatalf("SerializeUndoData: %v", err)
	}
	decoded, err := DeserializeUndoData(serialized)
	if err != nil {
		t.Fatalf("DeserializeUndoData: %v", err)
	}

	if len(decoded.Destroyed) != 1 || len(decoded.Created) != 1 {
		t.Fatalf("entry counts = %d/%d, want 1/1",
			len(decoded.Destroyed), len(decoded.Created))
	}

	destroyed := decoded.Destroyed[wire.OutPoint{Hash: wire.Hash{0x01}, Index: 2}]
	if destroyed == nil || destroyed.Value != 5000 || !destroyed.IsCoinBase ||
		destroyed.BlockHeight != 7 {
		t.Fatalf("destroyed entry mismatch: %+v", destroyed)
	}

	created := decoded.Created[wire.OutPoint{Hash: wire.Hash{0x02}, Index: 0}]
	if created == nil || created.Value != 4000 || created.IsCoinBase {
		t.Fatalf("created entry mismatch: %+v", created)
	}
}

func TestIsCoinBaseTx(t *testing.T) {
	coinbase := wire.NewMsgTx()
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{}, Index: wire.MaxPrevOutIndex},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	if !IsCoinBaseTx(coinbase) {
		t.Fatal("coinbase not recognized")
	}

	spend := wire.NewMsgTx()
	spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{0x01}, Index: 0},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	if IsCoinBaseTx(spend) {
		t.Fatal("spend recognized as coinbase")
	}
}
