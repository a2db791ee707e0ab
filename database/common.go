package database

import (
	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/wire"
	wirepb "github.com/bitcryptoproject/bitj/wire/pb"
)

// zeroHash is the all-zero hash used to detect coinbase inputs.
var zeroHash = wire.Hash{}

// IsCoinBaseTx reports whether tx is a coinbase: a single input spending the
// null previous outpoint.
func IsCoinBaseTx(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prevOut := &tx.TxIn[0].PreviousOutPoint
	return prevOut.Index == wire.MaxPrevOutIndex && prevOut.Hash == zeroHash
}

// SerializeStoredBlock encodes the metadata of a stored block: the header,
// the height and the cumulative work.
func SerializeStoredBlock(sb *chainutil.StoredBlock) ([]byte, error) {
	pb := &wirepb.StoredBlock{
		Header:  sb.Header().ToProto(),
		Height:  uint32(sb.Height()),
		WorkSum: wirepb.BigIntToProto(sb.WorkSum()),
	}
	return proto.Marshal(pb)
}

// DeserializeStoredBlock decodes the output of SerializeStoredBlock.
func DeserializeStoredBlock(serialized []byte) (*chainutil.StoredBlock, error) {
	pb := new(wirepb.StoredBlock)
	if err := proto.Unmarshal(serialized, pb); err != nil {
		return nil, errors.Wrap(err, "unmarshal stored block")
	}
	if pb.Header == nil || pb.WorkSum == nil {
		return nil, errors.New("stored block record missing header or work")
	}

	header, err := wire.NewBlockHeaderFromProto(pb.Header)
	if err != nil {
		return nil, err
	}
	workSum := wirepb.ProtoToBigInt(pb.WorkSum)

	return chainutil.NewStoredBlock(header, int32(pb.Height), workSum), nil
}

// SerializeUndoData encodes the change set of a connected block so the block
// can later be disconnected.
func SerializeUndoData(changes *TxOutChanges) ([]byte, error) {
	pb := &wirepb.UndoData{
		Destroyed: make([]*wirepb.UndoEntry, 0, len(changes.Destroyed)),
		Created:   make([]*wirepb.UndoEntry, 0, len(changes.Created)),
	}
	for outPoint, entry := range changes.Destroyed {
		op := outPoint
		pb.Destroyed = append(pb.Destroyed, undoEntryToProto(&op, entry))
	}
	for outPoint, entry := range changes.Created {
		op := outPoint
		pb.Created = append(pb.Created, undoEntryToProto(&op, entry))
	}
	return proto.Marshal(pb)
}

// DeserializeUndoData decodes the output of SerializeUndoData.
func DeserializeUndoData(serialized []byte) (*TxOutChanges, error) {
	pb := new(wirepb.UndoData)
	if err := proto.Unmarshal(serialized, pb); err != nil {
		return nil, errors.Wrap(err, "unmarshal undo data")
	}

	changes := NewTxOutChanges()
	for _, pbEntry := range pb.Destroyed {
		outPoint, entry, err := protoToUndoEntry(pbEntry)
		if err != nil {
			return nil, err
		}
		changes.Destroyed[*outPoint] = entry
	}
	for _, pbEntry := range pb.Created {
		outPoint, entry, err := protoToUndoEntry(pbEntry)
		if err != nil {
			return nil, err
		}
		changes.Created[*outPoint] = entry
	}
	return changes, nil
}

func undoEntryToProto(outPoint *wire.OutPoint, entry *UtxoEntry) *wirepb.UndoEntry {
	return &wirepb.UndoEntry{
		OutPoint: &wirepb.OutPoint{
			Hash:  outPoint.Hash.ToProto(),
			Index: outPoint.Index,
		},
		Entry: &wirepb.UtxoEntry{
			Value:       entry.Value,
			PkScript:    entry.PkScript,
			BlockHeight: uint32(entry.BlockHeight),
			IsCoinBase:  entry.IsCoinBase,
		},
	}
}

func protoToUndoEntry(pb *wirepb.UndoEntry) (*wire.OutPoint, *UtxoEntry, error) {
	if pb.OutPoint == nil || pb.Entry == nil {
		return nil, nil, errors.New("undo entry missing outpoint or utxo entry")
	}
	hash, err := wire.NewHashFromProto(pb.OutPoint.Hash)
	if err != nil {
		return nil, nil, err
	}

	outPoint := &wire.OutPoint{Hash: *hash, Index: pb.OutPoint.Index}
	entry := &UtxoEntry{
		Value:       pb.Entry.Value,
		PkScript:    pb.Entry.PkScript,
		BlockHeight: int32(pb.Entry.BlockHeight),
		IsCoinBase:  pb.Entry.IsCoinBase,
	}
	return outPoint, entry, nil
}

// ConnectBlockUtxos computes the change set a block applies to the unspent
// output set.  lookup resolves an outpoint to its current unspent entry, or
// nil when unknown; entries created earlier in the same block are resolved
// internally.  Shared by the store backends.
func ConnectBlockUtxos(stored *chainutil.StoredBlock, block *chainutil.Block,
	lookup func(wire.OutPoint) (*UtxoEntry, error)) (*TxOutChanges, error) {

	changes := NewTxOutChanges()
	for _, tx := range block.Transactions() {
		msgTx := tx.MsgTx()
		if !IsCoinBaseTx(msgTx) {
			for _, txIn := range msgTx.TxIn {
				outPoint := txIn.PreviousOutPoint

				// A block may spend outputs it created itself.
				entry, ok := changes.Created[outPoint]
				if ok {
					delete(changes.Created, outPoint)
					changes.Destroyed[outPoint] = entry
					continue
				}
				if _, gone := changes.Destroyed[outPoint]; gone {
					return nil, errors.Wrapf(ErrMissingTxOut,
						"output %v spent twice in block %v", outPoint, block.Hash())
				}

				entry, err := lookup(outPoint)
				if err != nil {
					return nil, err
				}
				if entry == nil {
					return nil, errors.Wrapf(ErrMissingTxOut,
						"output %v referenced from block %v", outPoint, block.Hash())
				}
				changes.Destroyed[outPoint] = entry
			}
		}

		txHash := tx.Hash()
		for i, txOut := range msgTx.TxOut {
			outPoint := wire.OutPoint{Hash: *txHash, Index: uint32(i)}
			changes.Created[outPoint] = &UtxoEntry{
				Value:       txOut.Value,
				PkScript:    txOut.PkScript,
				BlockHeight: stored.Height(),
				IsCoinBase:  IsCoinBaseTx(msgTx),
			}
		}
	}
	return changes, nil
}
