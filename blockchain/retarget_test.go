package blockchain

import (
	"testing"
	"time"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/config"
	"github.com/bitcryptoproject/bitj/database/memdb"
	"github.com/bitcryptoproject/bitj/wire"

	"math/big"
)

// newDiffChain stores a synthetic header chain with the given per-block bits
// and a fixed spacing, and returns a chain manager over it.  Difficulty
// verification never checks proof of work, so the headers are not solved.
func newDiffChain(t *testing.T, params *config.Params, bits []uint32, spacing int64) (*Blockchain, []*chainutil.StoredBlock) {
	t.Helper()
	db := memdb.NewMemDb()

	stored := make([]*chainutil.StoredBlock, 0, len(bits))
	var prevHash wire.Hash
	for i, b := range bits {
		header := &wire.BlockHeader{
			Version:   1,
			Previous:  prevHash,
			Timestamp: testGenesisTime.Add(time.Duration(int64(i)*spacing) * time.Second),
			Bits:      b,
		}

		var sb *chainutil.StoredBlock
		if i == 0 {
			sb = chainutil.NewGenesisStoredBlock(header)
		} else {
			sb = stored[i-1].Build(header)
		}
		blk := chainutil.NewBlock(&wire.MsgBlock{Header: *header})
		blk.SetHeight(sb.Height())
		if err := db.SubmitBlock(sb, blk); err != nil {
			t.Fatalf("SubmitBlock: %v", err)
		}

		stored = append(stored, sb)
		prevHash = sb.Hash()
	}
	if err := db.Commit(stored[len(stored)-1].Hash()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	chain := &Blockchain{
		db:            db,
		io:            NewHeaderChainIO(db),
		params:        params,
		orphanPool:    newOrphanBlockPool(),
		statsLastTime: time.Now(),
		chainHead:     stored[len(stored)-1],
	}
	return chain, stored
}

// constBits returns n copies of the same compact target.
func constBits(n int, bits uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = bits
	}
	return out
}

// candidate builds an unsolved header on top of the given stored block.
func candidate(parent *chainutil.StoredBlock, bits uint32, timeOffset int64) *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:   1,
		Previous:  parent.Hash(),
		Timestamp: parent.Header().Timestamp.Add(time.Duration(timeOffset) * time.Second),
		Bits:      bits,
	}
}

func TestDifficultySelector(t *testing.T) {
	mainnet := &Blockchain{params: &config.MainNetParams}
	testnet := &Blockchain{params: &config.TestNetParams}

	tests := []struct {
		name   string
		chain  *Blockchain
		height int32
		want   diffAlgo
	}{
		{"mainnet genesis child", mainnet, 1, diffV1},
		{"mainnet last v1", mainnet, 15199, diffV1},
		{"mainnet first kgw", mainnet, 15200, diffKGW},
		{"mainnet last kgw", mainnet, 34139, diffKGW},
		{"mainnet first dgw", mainnet, 34140, diffDGW},
		{"mainnet last dgw", mainnet, 68588, diffDGW},
		{"mainnet first dgw3", mainnet, 68589, diffDGW3},
		{"testnet v1", testnet, 15, diffV1},
		{"testnet dgw3", testnet, 16, diffDGW3},
	}
	for _, test := range tests {
		if got := test.chain.selectDiffAlgo(test.height); got != test.want {
			t.Errorf("%s: selectDiffAlgo(%d) = %v, want %v",
				test.name, test.height, got, test.want)
		}
	}
}

func TestV1NonRetargetRequiresSameBits(t *testing.T) {
	params := newTestParams()
	const bits = 0x1e0ffff0
	chain, stored := newDiffChain(t, params, constBits(4, bits), 150)
	tip := stored[len(stored)-1]

	if err := chain.checkDifficultyTransitions(tip, candidate(tip, bits, 150)); err != nil {
		t.Fatalf("same bits rejected: %v", err)
	}

	err := chain.checkDifficultyTransitions(tip, candidate(tip, 0x1e0fff00, 150))
	assertRuleError(t, err, ErrUnexpectedDifficulty)
}

func TestV1Retarget(t *testing.T) {
	params := newTestParams()
	params.RetargetInterval = 4
	params.TargetTimespan = 600

	// Four blocks 100 seconds apart: the window elapsed 300s against a
	// 600s target, so the new target is half the old one.
	const bits = 0x1e0ffff0
	chain, stored := newDiffChain(t, params, constBits(4, bits), 100)
	tip := stored[len(stored)-1]

	expected := new(big.Int).Div(
		new(big.Int).Mul(chainutil.CompactToBig(bits), big.NewInt(300)),
		big.NewInt(600))
	goodBits := chainutil.BigToCompact(expected)

	if err := chain.checkDifficultyTransitions(tip, candidate(tip, goodBits, 100)); err != nil {
		t.Fatalf("computed retarget rejected: %v", err)
	}

	err := chain.checkDifficultyTransitions(tip, candidate(tip, bits, 100))
	assertRuleError(t, err, ErrUnexpectedDifficulty)
}

func TestV1RetargetClampsTimespan(t *testing.T) {
	params := newTestParams()
	params.RetargetInterval = 4
	params.TargetTimespan = 600

	// Ten-second spacing gives a 30s window, clamped up to timespan/4 =
	// 150s: the target quarters rather than tracking the raw window.
	const bits = 0x1e0ffff0
	chain, stored := newDiffChain(t, params, constBits(4, bits), 10)
	tip := stored[len(stored)-1]

	expected := new(big.Int).Div(
		new(big.Int).Mul(chainutil.CompactToBig(bits), big.NewInt(150)),
		big.NewInt(600))
	goodBits := chainutil.BigToCompact(expected)

	if err := chain.checkDifficultyTransitions(tip, candidate(tip, goodBits, 10)); err != nil {
		t.Fatalf("clamped retarget rejected: %v", err)
	}
}

func TestDGW3(t *testing.T) {
	params := newTestParams()
	params.ID = config.IDTestNet
	params.DGW3StartHeight = 16

	// Thirty blocks at perfect spacing.  The 24-block walk sums 23
	// inter-block intervals against a 24-interval target, so the computed
	// target dips slightly below the running average.
	const bits = 0x1e0ffff0
	chain, stored := newDiffChain(t, params, constBits(30, bits), 150)
	tip := stored[len(stored)-1]

	expected := new(big.Int).Div(
		new(big.Int).Mul(chainutil.CompactToBig(bits), big.NewInt(23*150)),
		big.NewInt(24*150))
	goodBits := chainutil.BigToCompact(expected)

	if err := chain.checkDifficultyTransitions(tip, candidate(tip, goodBits, 150)); err != nil {
		t.Fatalf("computed dgw3 target rejected: %v", err)
	}

	// On testnet the comparison is exact, so even the small deviation of
	// the unadjusted bits fails.
	err := chain.checkDifficultyTransitions(tip, candidate(tip, bits, 150))
	assertRuleError(t, err, ErrUnexpectedDifficulty)
}

func TestDGW3BelowMinimumWindow(t *testing.T) {
	params := newTestParams()
	params.ID = config.IDTestNet
	params.DGW3StartHeight = 2

	// Too few blocks for the walk: the proof of work limit is demanded.
	chain, stored := newDiffChain(t, params, constBits(3, params.PowLimitBits), 150)
	tip := stored[len(stored)-1]

	if err := chain.checkDifficultyTransitions(tip, candidate(tip, params.PowLimitBits, 150)); err != nil {
		t.Fatalf("pow limit rejected below minimum window: %v", err)
	}

	err := chain.checkDifficultyTransitions(tip, candidate(tip, 0x1e0ffff0, 150))
	assertRuleError(t, err, ErrUnexpectedDifficulty)
}

func TestKGWTolerance(t *testing.T) {
	params := newTestParams()
	params.KGWStartHeight = 20

	// Forty perfectly spaced blocks: the well computes a target a few
	// percent below the running average, well inside the 20% band the
	// historical comparison allows.
	const bits = 0x1e0ffff0
	chain, stored := newDiffChain(t, params, constBits(40, bits), 150)
	tip := stored[len(stored)-1]

	if err := chain.checkDifficultyTransitions(tip, candidate(tip, bits, 150)); err != nil {
		t.Fatalf("in-tolerance kgw target rejected: %v", err)
	}

	// A target at half the mantissa doubles the difficulty: far outside
	// the band.
	err := chain.checkDifficultyTransitions(tip, candidate(tip, 0x1e07fff8, 150))
	assertRuleError(t, err, ErrUnexpectedDifficulty)
}

func TestVerifyDifficultyTolerance(t *testing.T) {
	params := newTestParams()
	chain, stored := newDiffChain(t, params, constBits(2, 0x1e400000), 150)
	tip := stored[len(stored)-1]

	// n2/n1 equals calcMantissa/headerMantissa: 0x340000/0x400000 ≈ 0.81
	// drifts 19%, inside the band; 0x2c0000/0x400000 ≈ 0.69 drifts 31%.
	inside := chainutil.CompactToBig(0x1e340000)
	if err := chain.verifyDifficulty(inside, tip, candidate(tip, 0x1e400000, 150)); err != nil {
		t.Fatalf("19%% drift rejected: %v", err)
	}

	outside := chainutil.CompactToBig(0x1e2c0000)
	err := chain.verifyDifficulty(outside, tip, candidate(tip, 0x1e400000, 150))
	assertRuleError(t, err, ErrUnexpectedDifficulty)

	// Above the DGW3 switch the comparison is exact.
	params.DGW3StartHeight = 0
	err = chain.verifyDifficulty(inside, tip, candidate(tip, 0x1e400000, 150))
	assertRuleError(t, err, ErrUnexpectedDifficulty)

	exact := chainutil.CompactToBig(0x1e400000)
	if err := chain.verifyDifficulty(exact, tip, candidate(tip, 0x1e400000, 150)); err != nil {
		t.Fatalf("exact match rejected: %v", err)
	}
}

func TestTestnetMinDifficultyRule(t *testing.T) {
	params := newTestParams()
	params.ID = config.IDTestNet
	params.PowLimit = chainutil.CompactToBig(0x1e0ffff0)
	params.PowLimitBits = 0x1e0ffff0

	const hardBits = 0x1d0ffff0
	bits := []uint32{hardBits, hardBits, hardBits,
		params.PowLimitBits, params.PowLimitBits, params.PowLimitBits}
	chain, stored := newDiffChain(t, params, bits, 150)
	tip := stored[len(stored)-1]

	// Within twice the target spacing (300s) of the last block the
	// difficulty must match the last non-minimum difficulty in the chain.
	if err := chain.checkDifficultyTransitions(tip, candidate(tip, hardBits, 100)); err != nil {
		t.Fatalf("last real difficulty rejected: %v", err)
	}
	err := chain.checkDifficultyTransitions(tip, candidate(tip, params.PowLimitBits, 100))
	assertRuleError(t, err, ErrUnexpectedDifficulty)

	// After a gap longer than twice the target spacing a minimum
	// difficulty block is allowed.
	if err := chain.checkDifficultyTransitions(tip, candidate(tip, params.PowLimitBits, 400)); err != nil {
		t.Fatalf("min difficulty block rejected after gap: %v", err)
	}
}

func assertRuleError(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	ruleErr, ok := err.(RuleError)
	if !ok {
		t.Fatalf("expected RuleError, got %T: %v", err, err)
	}
	if ruleErr.ErrorCode != code {
		t.Fatalf("error code = %v, want %v", ruleErr.ErrorCode, code)
	}
}
