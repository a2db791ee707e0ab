package chainutil

import (
	"math/big"

	"github.com/bitcryptoproject/bitj/wire"
)

// StoredBlock wraps a block header with its position in the chain and the
// cumulative work of the chain ending at it.  Instances are immutable once
// constructed; the chain hands them out freely across goroutines.
type StoredBlock struct {
	header  *wire.BlockHeader
	height  int32
	workSum *big.Int
}

// NewStoredBlock returns a stored block for the given header at the given
// height with the given cumulative work.  The caller must not mutate header
// or workSum afterwards.
func NewStoredBlock(header *wire.BlockHeader, height int32, workSum *big.Int) *StoredBlock {
	return &StoredBlock{
		header:  header,
		height:  height,
		workSum: workSum,
	}
}

// Header returns the block header.
func (sb *StoredBlock) Header() *wire.BlockHeader {
	return sb.header
}

// Hash returns the block identifier hash.
func (sb *StoredBlock) Hash() wire.Hash {
	return sb.header.BlockHash()
}

// Height returns the distance from the genesis block.  The genesis block is
// at height zero.
func (sb *StoredBlock) Height() int32 {
	return sb.height
}

// WorkSum returns the total work of the chain ending at this block.  The
// returned value must not be mutated.
func (sb *StoredBlock) WorkSum() *big.Int {
	return sb.workSum
}

// MoreWorkThan returns whether this block's chain has strictly more total
// work than the other block's chain.
func (sb *StoredBlock) MoreWorkThan(other *StoredBlock) bool {
	return sb.workSum.Cmp(other.workSum) > 0
}

// IsEqual returns whether two stored blocks identify the same block.
func (sb *StoredBlock) IsEqual(other *StoredBlock) bool {
	if sb == nil || other == nil {
		return sb == other
	}
	h1, h2 := sb.Hash(), other.Hash()
	return h1.IsEqual(&h2)
}

// Build creates a stored block for the given child header, one level higher
// and with the child's work added on.
func (sb *StoredBlock) Build(header *wire.BlockHeader) *StoredBlock {
	workSum := new(big.Int).Add(sb.workSum, CalcWork(header.Bits))
	return &StoredBlock{
		header:  header,
		height:  sb.height + 1,
		workSum: workSum,
	}
}

// NewGenesisStoredBlock returns the stored block for a genesis header:
// height zero, work equal to the header's own work.
func NewGenesisStoredBlock(header *wire.BlockHeader) *StoredBlock {
	return &StoredBlock{
		header:  header,
		height:  0,
		workSum: CalcWork(header.Bits),
	}
}
