package blockchain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/wire"
)

// TestAddFilteredBlock delivers matched transactions in block order, using
// hash-only announcements for transactions that were not sent.
func TestAddFilteredBlock(t *testing.T) {
	h := newTestHarness(t, false)

	spend1 := wire.NewMsgTx()
	spend1.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{0x01}, Index: 0},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	spend1.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x51}})

	spend2 := wire.NewMsgTx()
	spend2.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{0x02}, Index: 0},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	spend2.AddTxOut(&wire.TxOut{Value: 2, PkScript: []byte{0x51}})

	full := h.nextBlock(h.genesis, spend1, spend2)
	header := full.MsgBlock().Header

	// The filter matched both spends; only the first was sent.
	tx1 := chainutil.NewTx(spend1)
	matched := []wire.Hash{*tx1.Hash(), spend2.TxHash()}
	txn := map[wire.Hash]*chainutil.Tx{*tx1.Hash(): tx1}

	connected, err := h.chain.AddFilteredBlock(&header, matched, txn)
	require.NoError(t, err)
	require.True(t, connected)

	require.Len(t, h.listener.received, 1)
	require.Equal(t, *tx1.Hash(), h.listener.received[0].txHash)
	require.Equal(t, 0, h.listener.received[0].offset)
	require.Equal(t, BestChain, h.listener.received[0].blockType)

	require.Len(t, h.listener.inBlock, 1)
	require.Equal(t, spend2.TxHash(), h.listener.inBlock[0].txHash)
	require.Equal(t, 1, h.listener.inBlock[0].offset)

	// The delivered transaction was relevant, so no false positives.
	require.Zero(t, h.chain.FalsePositiveRate())
}

// TestFalsePositiveTracking counts a delivered-but-irrelevant transaction
// towards the estimate.
func TestFalsePositiveTracking(t *testing.T) {
	h := newTestHarness(t, false)
	h.listener.relevant = func(*chainutil.Tx) (bool, error) { return false, nil }

	spend := wire.NewMsgTx()
	spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: wire.Hash{0x03}, Index: 0},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	spend.AddTxOut(&wire.TxOut{Value: 3, PkScript: []byte{0x51}})

	full := h.nextBlock(h.genesis, spend)
	header := full.MsgBlock().Header

	tx := chainutil.NewTx(spend)
	matched := []wire.Hash{*tx.Hash()}
	txn := map[wire.Hash]*chainutil.Tx{*tx.Hash(): tx}

	_, err := h.chain.AddFilteredBlock(&header, matched, txn)
	require.NoError(t, err)

	require.InDelta(t, FPEstimatorAlpha, h.chain.FalsePositiveRate(), 1e-12)

	h.chain.ResetFalsePositiveEstimate()
	require.Zero(t, h.chain.FalsePositiveRate())
}

// TestFPEstimatorDecay checks the double exponential moving average update
// against a hand-computed step.
func TestFPEstimatorDecay(t *testing.T) {
	var e fpEstimator
	e.trackFalsePositives(3)
	require.InDelta(t, 3*FPEstimatorAlpha, e.rate, 1e-15)

	rate := e.rate
	count := 100
	alphaDecay := math.Pow(1-FPEstimatorAlpha, float64(count))
	betaDecay := math.Pow(1-FPEstimatorBeta, float64(count))
	wantRate := alphaDecay * rate
	wantTrend := FPEstimatorBeta*float64(count)*(wantRate-0) + betaDecay*0
	wantRate += alphaDecay * wantTrend

	e.trackFilteredTransactions(count)
	require.InDelta(t, wantRate, e.rate, 1e-15)
	require.InDelta(t, wantTrend, e.trend, 1e-15)
	require.InDelta(t, wantRate, e.prevRate, 1e-15)

	// The estimate never goes negative from tracking alone.
	for i := 0; i < 50; i++ {
		e.trackFilteredTransactions(1000)
		require.True(t, e.rate >= 0 || math.Abs(e.rate) < 1e-9,
			"rate went significantly negative: %v", e.rate)
	}

	e.reset()
	require.Zero(t, e.rate)
	require.Zero(t, e.trend)
	require.Zero(t, e.prevRate)
}
