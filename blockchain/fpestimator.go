package blockchain

import (
	"math"

	"github.com/bitcryptoproject/bitj/logging"
)

// False positive estimation uses a double exponential moving average.
const (
	FPEstimatorAlpha = 0.0001
	FPEstimatorBeta  = 0.01
)

// fpEstimator tracks the rate at which bloom-filtered transactions turn out
// to be irrelevant to every listener.  Peers use the rate to decide when the
// remote filter has degraded enough to resend.
//
// The estimator is not safe for concurrent access; the chain mutates it under
// its exclusive lock.
type fpEstimator struct {
	rate     float64
	trend    float64
	prevRate float64
}

// trackFalsePositives records count irrelevant transactions.  Each false
// positive counts as 1.0 towards the estimate.
func (e *fpEstimator) trackFalsePositives(count int) {
	e.rate += FPEstimatorAlpha * float64(count)
	if count > 0 {
		logging.CPrint(logging.DEBUG, "false positives received", logging.LogFormat{
			"count": count,
			"rate":  e.rate,
			"trend": e.trend,
		})
	}
}

// trackFilteredTransactions records that a filtered block with count total
// transactions finished processing.  Each non-false-positive counts as 0.0
// towards the estimate.
//
// This is slightly off because false-positive tracking is applied before
// non-FP tracking, which counts FP as if they came at the beginning of the
// block.  Assuming uniform FP spread in a block, this will somewhat
// underestimate the FP rate (5% for a 1000 tx block).
func (e *fpEstimator) trackFilteredTransactions(count int) {
	alphaDecay := math.Pow(1-FPEstimatorAlpha, float64(count))

	// new_rate = alpha_decay * new_rate
	e.rate = alphaDecay * e.rate

	betaDecay := math.Pow(1-FPEstimatorBeta, float64(count))

	// trend = beta * count * (new_rate - old_rate) + beta_decay * trend
	e.trend = FPEstimatorBeta*float64(count)*(e.rate-e.prevRate) +
		betaDecay*e.trend

	// new_rate += alpha_decay * trend
	e.rate += alphaDecay * e.trend

	// Stash new_rate in old_rate
	e.prevRate = e.rate
}

// reset zeroes the estimate.  Used when a fresh filter is sent to the peer.
func (e *fpEstimator) reset() {
	e.rate = 0
	e.trend = 0
	e.prevRate = 0
}
