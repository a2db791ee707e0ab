package config

import (
	"math/big"
	"time"

	"github.com/bitcryptoproject/bitj/wire"
)

// Network ids used to select consensus rules.
const (
	IDMainNet = "mainnet"
	IDTestNet = "testnet"
)

var (
	bigOne = big.NewInt(1)

	// mainPowLimit is the highest proof of work value a block can have for
	// the main network.  It is the value 2^236 - 1.
	mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 236), bigOne)

	// testNetPowLimit is the highest proof of work value a block can have
	// for the test network.
	testNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 236), bigOne)
)

// Checkpoint identifies a known good point in the block chain.  Using
// checkpoints allows a few optimizations for old blocks during initial
// download and also prevents forks from old blocks.
type Checkpoint struct {
	Height int32
	Hash   *wire.Hash
}

// Params defines a network by its parameters.  These parameters may be used
// by applications to differentiate networks as well as addresses and keys for
// one network from those intended for use on another network.
type Params struct {
	Name        string
	ID          string
	DefaultPort string

	// Chain parameters
	GenesisBlock *wire.MsgBlock
	GenesisHash  *wire.Hash
	PowLimit     *big.Int
	PowLimitBits uint32

	// TargetSpacing is the desired interval between blocks.  TargetTimespan
	// is the amount of time examined by the classic retarget, which fires
	// every RetargetInterval blocks.
	TargetSpacing   int64
	TargetTimespan  int64
	RetargetInterval int32

	// Heights at which the difficulty rules switch algorithms.
	KGWStartHeight  int32
	DGWStartHeight  int32
	DGW3StartHeight int32

	// KGWTimeFixHeight activates the monotonic-clock and minimum-rate
	// behavior inside the gravity well walk.
	KGWTimeFixHeight int32

	// TestnetDiffDate is the time after which the testnet min-difficulty
	// rule applies on non-retarget blocks.
	TestnetDiffDate time.Time

	// Checkpoints ordered from oldest to newest.
	Checkpoints []Checkpoint
}

// PassesCheckpoint returns false when the given (height, hash) pair
// contradicts a hard-coded checkpoint.  Heights without a checkpoint always
// pass.
func (p *Params) PassesCheckpoint(height int32, hash *wire.Hash) bool {
	for i := range p.Checkpoints {
		checkpoint := &p.Checkpoints[i]
		if checkpoint.Height == height {
			return checkpoint.Hash.IsEqual(hash)
		}
	}
	return true
}

// IsTestNet returns whether the parameters describe the test network.
func (p *Params) IsTestNet() bool {
	return p.ID == IDTestNet
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:        "mainnet",
	ID:          IDMainNet,
	DefaultPort: "9333",

	GenesisBlock: &genesisBlock,
	GenesisHash:  &genesisHash,
	PowLimit:     mainPowLimit,
	PowLimitBits: 0x1e0ffff0,

	TargetSpacing:    150, // 2.5 minutes
	TargetTimespan:   2016 * 150,
	RetargetInterval: 2016,

	KGWStartHeight:   15200,
	DGWStartHeight:   34140,
	DGW3StartHeight:  68589,
	KGWTimeFixHeight: 646120,

	TestnetDiffDate: time.Unix(1329264000, 0), // 2012-02-15 00:00:00 UTC

	Checkpoints: []Checkpoint{},
}

// TestNetParams defines the network parameters for the test network.
var TestNetParams = Params{
	Name:        "testnet",
	ID:          IDTestNet,
	DefaultPort: "19333",

	GenesisBlock: &testNetGenesisBlock,
	GenesisHash:  &testNetGenesisHash,
	PowLimit:     testNetPowLimit,
	PowLimitBits: 0x1e0ffff0,

	TargetSpacing:    150,
	TargetTimespan:   2016 * 150,
	RetargetInterval: 2016,

	KGWStartHeight:   15200, // unreachable: DGW3 activates first
	DGWStartHeight:   15200,
	DGW3StartHeight:  16,
	KGWTimeFixHeight: 646120,

	TestnetDiffDate: time.Unix(1329264000, 0),

	Checkpoints: []Checkpoint{},
}

// ChainParams points at the parameters the node is currently running with.
// It is set once during config load.
var ChainParams = &MainNetParams
