package wire

import (
	"bytes"
	"testing"
)

func sampleTx() *MsgTx {
	tx := NewMsgTx()
	tx.AddTxIn(&TxIn{
		PreviousOutPoint: OutPoint{Hash: Hash{0x01, 0x02}, Index: 1},
		SignatureScript:  []byte{0x04, 0x31, 0x32, 0x33, 0x34},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(&TxOut{Value: 5000000000, PkScript: []byte{0x51}})
	return tx
}

func TestMsgTxSerializeRoundTrip(t *testing.T) {
	tx := sampleTx()

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	var decoded MsgTx
	if err := decoded.Deserialize(&buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if decoded.TxHash() != tx.TxHash() {
		t.Fatal("round trip changed the transaction hash")
	}
}

func TestMsgTxCopyIsDeep(t *testing.T) {
	tx := sampleTx()
	dup := tx.Copy()

	if dup.TxHash() != tx.TxHash() {
		t.Fatal("copy changed the transaction hash")
	}

	dup.TxIn[0].SignatureScript[0] = 0xff
	if tx.TxIn[0].SignatureScript[0] == 0xff {
		t.Fatal("copy shares the signature script backing array")
	}
}

// TestIsFinal covers the lock time and sequence interactions.
func TestIsFinal(t *testing.T) {
	tests := []struct {
		name        string
		lockTime    uint32
		sequence    uint32
		blockHeight int32
		blockTime   int64
		want        bool
	}{
		{"zero lock time", 0, 0, 100, 0, true},
		{"height lock expired", 99, 0, 100, 0, true},
		{"height lock active", 100, 0, 100, 0, false},
		{"height lock active but max sequence", 100, 0xffffffff, 100, 0, true},
		{"time lock expired", 500000100, 0, 1, 500000101, true},
		{"time lock active", 500000100, 0, 1, 500000100, false},
		{"time lock active but max sequence", 500000100, 0xffffffff, 1, 500000100, true},
	}

	for _, test := range tests {
		tx := sampleTx()
		tx.LockTime = test.lockTime
		tx.TxIn[0].Sequence = test.sequence

		if got := tx.IsFinal(test.blockHeight, test.blockTime); got != test.want {
			t.Errorf("%s: IsFinal = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000}
	for _, val := range values {
		var buf bytes.Buffer
		if err := WriteVarInt(&buf, val); err != nil {
			t.Fatalf("WriteVarInt(%d): %v", val, err)
		}
		got, err := ReadVarInt(&buf)
		if err != nil {
			t.Fatalf("ReadVarInt(%d): %v", val, err)
		}
		if got != val {
			t.Fatalf("varint round trip: got %d, want %d", got, val)
		}
	}
}
