package blockchain

import (
	"fmt"
	"math"
	"math/big"

	"github.com/bitcryptoproject/bitj/chainutil"
	"github.com/bitcryptoproject/bitj/logging"
	"github.com/bitcryptoproject/bitj/wire"
)

// diffAlgo identifies one of the difficulty-retarget algorithms the network
// has used over its history.
type diffAlgo int

const (
	diffV1 diffAlgo = iota
	diffKGW
	diffDGW
	diffDGW3
)

// selectDiffAlgo returns the retarget algorithm in force for a block at the
// given height.  The test network skipped the intermediate algorithms and
// moved straight to dark gravity wave v3.
func (b *Blockchain) selectDiffAlgo(height int32) diffAlgo {
	params := b.params
	if params.IsTestNet() {
		if height >= params.DGW3StartHeight {
			return diffDGW3
		}
		return diffV1
	}

	switch {
	case height >= params.DGW3StartHeight:
		return diffDGW3
	case height >= params.DGWStartHeight:
		return diffDGW
	case height >= params.KGWStartHeight:
		return diffKGW
	default:
		return diffV1
	}
}

// checkDifficultyTransitions ensures the difficulty bits of the candidate
// block match what the consensus rules demand given its predecessor.  It
// fails with ErrUnexpectedDifficulty otherwise.
func (b *Blockchain) checkDifficultyTransitions(storedPrev *chainutil.StoredBlock, header *wire.BlockHeader) error {
	switch b.selectDiffAlgo(storedPrev.Height() + 1) {
	case diffV1:
		return b.checkDifficultyV1(storedPrev, header)
	case diffKGW:
		return b.checkDifficultyKGW(storedPrev, header)
	case diffDGW:
		return b.darkGravityWave(storedPrev, header)
	default:
		return b.darkGravityWave3(storedPrev, header)
	}
}

// checkDifficultyV1 is the classic retarget: every RetargetInterval blocks
// the target scales by the elapsed time over the target timespan, clamped to
// a factor of four either way.  Off a transition point the target must not
// change, except for the testnet min-difficulty rule.
func (b *Blockchain) checkDifficultyV1(storedPrev *chainutil.StoredBlock, header *wire.BlockHeader) error {
	params := b.params
	prev := storedPrev.Header()

	// Is this supposed to be a difficulty transition point?
	if (storedPrev.Height()+1)%params.RetargetInterval != 0 {
		if params.IsTestNet() && header.Timestamp.After(params.TestnetDiffDate) {
			return b.checkTestnetDifficulty(storedPrev, prev, header)
		}

		// No ... so check the difficulty didn't actually change.
		if header.Bits != prev.Bits {
			str := fmt.Sprintf("unexpected change in difficulty at height "+
				"%d: %x vs %x", storedPrev.Height(), header.Bits, prev.Bits)
			return ruleError(ErrUnexpectedDifficulty, str)
		}
		return nil
	}

	// The very first transition walks one block fewer; a quirk kept for
	// compatibility with the historical chain.
	blocksToGoBack := params.RetargetInterval - 1
	if storedPrev.Height()+1 != params.RetargetInterval {
		blocksToGoBack = params.RetargetInterval
	}

	cursor := storedPrev
	for i := int32(0); i < blocksToGoBack; i++ {
		if cursor == nil {
			return ruleError(ErrUnexpectedDifficulty, "difficulty "+
				"transition point but we did not find a way back to "+
				"the genesis block")
		}
		var err error
		prevHash := cursor.Header().Previous
		cursor, err = b.db.FetchStoredBlock(&prevHash)
		if err != nil {
			return err
		}
	}
	if cursor == nil {
		return ruleError(ErrUnexpectedDifficulty, "difficulty transition "+
			"point but we did not find a way back to the genesis block")
	}

	blockIntervalAgo := cursor.Header()
	timespan := prev.TimeSeconds() - blockIntervalAgo.TimeSeconds()

	// Limit the adjustment step.
	targetTimespan := params.TargetTimespan
	if timespan < targetTimespan/4 {
		timespan = targetTimespan / 4
	}
	if timespan > targetTimespan*4 {
		timespan = targetTimespan * 4
	}

	newTarget := chainutil.CompactToBig(prev.Bits)
	newTarget.Mul(newTarget, big.NewInt(timespan))
	newTarget.Div(newTarget, big.NewInt(targetTimespan))

	if newTarget.Cmp(params.PowLimit) > 0 {
		logging.CPrint(logging.INFO, "difficulty hit proof of work limit", logging.LogFormat{
			"target": newTarget.Text(16),
		})
		newTarget = params.PowLimit
	}

	accuracyBytes := int(header.Bits>>24) - 3
	receivedTarget := chainutil.CompactToBig(header.Bits)

	// The calculated difficulty is to a higher precision than received, so
	// reduce here.
	newTarget = new(big.Int).And(newTarget, accuracyMask(accuracyBytes))
	if newTarget.Cmp(receivedTarget) != 0 {
		str := fmt.Sprintf("network provided difficulty bits do not match "+
			"what was calculated: %s vs %s",
			receivedTarget.Text(16), newTarget.Text(16))
		return ruleError(ErrUnexpectedDifficulty, str)
	}
	return nil
}

// checkTestnetDifficulty applies the testnet rule active after the
// min-difficulty activation date: when more than twice the target spacing
// passes without a block, a minimum-difficulty block is allowed; otherwise
// the difficulty must match the last non-minimum difficulty.
func (b *Blockchain) checkTestnetDifficulty(storedPrev *chainutil.StoredBlock, prev, header *wire.BlockHeader) error {
	params := b.params

	// There is an integer underflow bug in some clients that means mindiff
	// blocks are accepted when time goes backwards, hence the lower bound.
	timeDelta := header.TimeSeconds() - prev.TimeSeconds()
	if timeDelta >= 0 && timeDelta <= params.TargetSpacing*2 {
		// Walk backwards until we find a block that doesn't have the
		// easiest proof of work, then check that difficulty is equal
		// to that one.
		cursor := storedPrev
		genesisHash := params.GenesisHash
		for {
			cursorHash := cursor.Hash()
			if cursorHash.IsEqual(genesisHash) ||
				cursor.Height()%params.RetargetInterval == 0 ||
				chainutil.CompactToBig(cursor.Header().Bits).Cmp(params.PowLimit) != 0 {
				break
			}
			prevHash := cursor.Header().Previous
			next, err := b.db.FetchStoredBlock(&prevHash)
			if err != nil {
				return err
			}
			if next == nil {
				return ruleError(ErrUnexpectedDifficulty,
					"testnet difficulty walk ran off the end of the chain")
			}
			cursor = next
		}
		cursorTarget := chainutil.CompactToBig(cursor.Header().Bits)
		newTarget := chainutil.CompactToBig(header.Bits)
		if cursorTarget.Cmp(newTarget) != 0 {
			str := fmt.Sprintf("testnet block transition that is not "+
				"allowed: %x vs %x", cursor.Header().Bits, header.Bits)
			return ruleError(ErrUnexpectedDifficulty, str)
		}
	}
	return nil
}

// checkDifficultyKGW derives the kimoto gravity well window bounds from the
// target spacing and runs the well.
func (b *Blockchain) checkDifficultyKGW(storedPrev *chainutil.StoredBlock, header *wire.BlockHeader) error {
	blocksTargetSpacing := b.params.TargetSpacing // 2.5 minutes
	timeDaySeconds := int64(60 * 60 * 24)
	pastSecondsMin := timeDaySeconds / 40
	pastSecondsMax := timeDaySeconds * 7
	pastBlocksMin := pastSecondsMin / blocksTargetSpacing
	pastBlocksMax := pastSecondsMax / blocksTargetSpacing

	return b.kimotoGravityWell(storedPrev, header, blocksTargetSpacing,
		pastBlocksMin, pastBlocksMax)
}

// kimotoGravityWell walks backwards maintaining a running difficulty average
// and an actual-versus-target rate ratio, stopping early once the ratio
// leaves the event horizon.  The retarget scales the averaged difficulty by
// the sampled rate.
func (b *Blockchain) kimotoGravityWell(storedPrev *chainutil.StoredBlock, header *wire.BlockHeader,
	targetBlocksSpacingSeconds, pastBlocksMin, pastBlocksMax int64) error {

	blockLastSolved := storedPrev
	blockReading := storedPrev

	var pastBlocksMass int64
	var pastRateActualSeconds int64
	var pastRateTargetSeconds int64
	var pastRateAdjustmentRatio float64 = 1
	pastDifficultyAverage := new(big.Int)
	pastDifficultyAveragePrev := new(big.Int)

	if blockLastSolved == nil || blockLastSolved.Height() == 0 ||
		int64(blockLastSolved.Height()) < pastBlocksMin {
		if err := b.verifyDifficulty(b.params.PowLimit, storedPrev, header); err != nil {
			return err
		}
	}

	latestBlockTime := blockLastSolved.Header().TimeSeconds()

	for i := int64(1); blockReading != nil && blockReading.Height() > 0; i++ {
		if pastBlocksMax > 0 && i > pastBlocksMax {
			break
		}
		pastBlocksMass++

		if i == 1 {
			pastDifficultyAverage = chainutil.CompactToBig(blockReading.Header().Bits)
		} else {
			pastDifficultyAverage = new(big.Int).Add(
				new(big.Int).Div(
					new(big.Int).Sub(chainutil.CompactToBig(blockReading.Header().Bits), pastDifficultyAveragePrev),
					big.NewInt(i)),
				pastDifficultyAveragePrev)
		}
		pastDifficultyAveragePrev = pastDifficultyAverage

		if blockReading.Height() > b.params.KGWTimeFixHeight &&
			latestBlockTime < blockReading.Header().TimeSeconds() {
			// eliminates the ability to go back in time
			latestBlockTime = blockReading.Header().TimeSeconds()
		}

		pastRateActualSeconds = blockLastSolved.Header().TimeSeconds() - blockReading.Header().TimeSeconds()
		pastRateTargetSeconds = targetBlocksSpacingSeconds * pastBlocksMass
		pastRateAdjustmentRatio = 1
		if blockReading.Height() > b.params.KGWTimeFixHeight {
			// this should slow down the upward difficulty change
			if pastRateActualSeconds < 5 {
				pastRateActualSeconds = 5
			}
		} else {
			if pastRateActualSeconds < 0 {
				pastRateActualSeconds = 0
			}
		}
		if pastRateActualSeconds != 0 && pastRateTargetSeconds != 0 {
			pastRateAdjustmentRatio = float64(pastRateTargetSeconds) / float64(pastRateActualSeconds)
		}
		eventHorizonDeviation := 1 + 0.7084*math.Pow(float64(pastBlocksMass)/28.2, -1.228)
		eventHorizonDeviationFast := eventHorizonDeviation
		eventHorizonDeviationSlow := 1 / eventHorizonDeviation

		if pastBlocksMass >= pastBlocksMin {
			if pastRateAdjustmentRatio <= eventHorizonDeviationSlow ||
				pastRateAdjustmentRatio >= eventHorizonDeviationFast {
				break
			}
		}

		prevHash := blockReading.Header().Previous
		blockReadingPrev, err := b.db.FetchStoredBlock(&prevHash)
		if err != nil {
			return err
		}
		if blockReadingPrev == nil {
			// With the checkpoint system there may not be enough
			// blocks to do this adjustment, so skip until there are.
			return nil
		}
		blockReading = blockReadingPrev
	}

	newDifficulty := new(big.Int).Set(pastDifficultyAverage)
	if pastRateActualSeconds != 0 && pastRateTargetSeconds != 0 {
		newDifficulty.Mul(newDifficulty, big.NewInt(pastRateActualSeconds))
		newDifficulty.Div(newDifficulty, big.NewInt(pastRateTargetSeconds))
	}

	return b.verifyDifficulty(newDifficulty, storedPrev, header)
}

// darkGravityWave is the first dark gravity retarget: a 140-block walk
// maintaining a weighted "smart average" block time which scales the sampled
// difficulty average.
func (b *Blockchain) darkGravityWave(storedPrev *chainutil.StoredBlock, header *wire.BlockHeader) error {
	blockLastSolved := storedPrev
	blockReading := storedPrev

	var nBlockTimeAverage int64
	var nBlockTimeAveragePrev int64
	var nBlockTimeCount int64
	var nBlockTimeSum2 int64
	var nBlockTimeCount2 int64
	var lastBlockTime int64
	const pastBlocksMin = 14
	const pastBlocksMax = 140
	var countBlocks int64
	pastDifficultyAverage := new(big.Int)
	pastDifficultyAveragePrev := new(big.Int)

	if blockLastSolved == nil || blockLastSolved.Height() == 0 ||
		int64(blockLastSolved.Height()) < pastBlocksMin {
		if err := b.verifyDifficulty(b.params.PowLimit, storedPrev, header); err != nil {
			return err
		}
	}

	for i := int64(1); blockReading != nil && blockReading.Height() > 0; i++ {
		if pastBlocksMax > 0 && i > pastBlocksMax {
			break
		}
		countBlocks++

		if countBlocks <= pastBlocksMin {
			if countBlocks == 1 {
				pastDifficultyAverage = chainutil.CompactToBig(blockReading.Header().Bits)
			} else {
				pastDifficultyAverage = new(big.Int).Add(
					new(big.Int).Div(
						new(big.Int).Sub(chainutil.CompactToBig(blockReading.Header().Bits), pastDifficultyAveragePrev),
						big.NewInt(countBlocks)),
					pastDifficultyAveragePrev)
			}
			pastDifficultyAveragePrev = pastDifficultyAverage
		}

		if lastBlockTime > 0 {
			diff := lastBlockTime - blockReading.Header().TimeSeconds()
			if nBlockTimeCount <= pastBlocksMin {
				nBlockTimeCount++
				if nBlockTimeCount == 1 {
					nBlockTimeAverage = diff
				} else {
					nBlockTimeAverage = (diff-nBlockTimeAveragePrev)/nBlockTimeCount + nBlockTimeAveragePrev
				}
				nBlockTimeAveragePrev = nBlockTimeAverage
			}
			nBlockTimeCount2++
			nBlockTimeSum2 += diff
		}
		lastBlockTime = blockReading.Header().TimeSeconds()

		prevHash := blockReading.Header().Previous
		blockReadingPrev, err := b.db.FetchStoredBlock(&prevHash)
		if err != nil {
			return err
		}
		if blockReadingPrev == nil {
			return nil
		}
		blockReading = blockReadingPrev
	}

	bnNew := new(big.Int).Set(pastDifficultyAverage)
	if nBlockTimeCount != 0 && nBlockTimeCount2 != 0 {
		smartAverage := float64(nBlockTimeAverage)*0.7 +
			float64(nBlockTimeSum2)/float64(nBlockTimeCount2)*0.3
		if smartAverage < 1 {
			smartAverage = 1
		}
		shift := float64(b.params.TargetSpacing) / smartAverage

		fActualTimespan := float64(countBlocks) * float64(b.params.TargetSpacing) / shift
		fTargetTimespan := float64(countBlocks) * float64(b.params.TargetSpacing)
		if fActualTimespan < fTargetTimespan/3 {
			fActualTimespan = fTargetTimespan / 3
		}
		if fActualTimespan > fTargetTimespan*3 {
			fActualTimespan = fTargetTimespan * 3
		}

		nActualTimespan := int64(fActualTimespan)
		nTargetTimespan := int64(fTargetTimespan)

		// Retarget
		bnNew.Mul(bnNew, big.NewInt(nActualTimespan))
		bnNew.Div(bnNew, big.NewInt(nTargetTimespan))
	}
	return b.verifyDifficulty(bnNew, storedPrev, header)
}

// darkGravityWave3 is the third dark gravity retarget: a fixed 24-block walk
// with a cumulative moving average of the target and a straight sum of the
// inter-block intervals, clamped to a factor of three either way.
func (b *Blockchain) darkGravityWave3(storedPrev *chainutil.StoredBlock, header *wire.BlockHeader) error {
	blockLastSolved := storedPrev
	blockReading := storedPrev

	var nActualTimespan int64
	var lastBlockTime int64
	const pastBlocksMin = 24
	const pastBlocksMax = 24
	var countBlocks int64
	pastDifficultyAverage := new(big.Int)
	pastDifficultyAveragePrev := new(big.Int)

	if blockLastSolved == nil || blockLastSolved.Height() == 0 ||
		int64(blockLastSolved.Height()) < pastBlocksMin {
		return b.verifyDifficulty(b.params.PowLimit, storedPrev, header)
	}

	for i := int64(1); blockReading != nil && blockReading.Height() > 0; i++ {
		if pastBlocksMax > 0 && i > pastBlocksMax {
			break
		}
		countBlocks++

		if countBlocks <= pastBlocksMin {
			if countBlocks == 1 {
				pastDifficultyAverage = chainutil.CompactToBig(blockReading.Header().Bits)
			} else {
				pastDifficultyAverage = new(big.Int).Div(
					new(big.Int).Add(
						new(big.Int).Mul(pastDifficultyAveragePrev, big.NewInt(countBlocks)),
						chainutil.CompactToBig(blockReading.Header().Bits)),
					big.NewInt(countBlocks+1))
			}
			pastDifficultyAveragePrev = pastDifficultyAverage
		}

		if lastBlockTime > 0 {
			nActualTimespan += lastBlockTime - blockReading.Header().TimeSeconds()
		}
		lastBlockTime = blockReading.Header().TimeSeconds()

		prevHash := blockReading.Header().Previous
		blockReadingPrev, err := b.db.FetchStoredBlock(&prevHash)
		if err != nil {
			return err
		}
		if blockReadingPrev == nil {
			return nil
		}
		blockReading = blockReadingPrev
	}

	bnNew := new(big.Int).Set(pastDifficultyAverage)

	nTargetTimespan := countBlocks * b.params.TargetSpacing
	if nActualTimespan < nTargetTimespan/3 {
		nActualTimespan = nTargetTimespan / 3
	}
	if nActualTimespan > nTargetTimespan*3 {
		nActualTimespan = nTargetTimespan * 3
	}

	// Retarget
	bnNew.Mul(bnNew, big.NewInt(nActualTimespan))
	bnNew.Div(bnNew, big.NewInt(nTargetTimespan))

	return b.verifyDifficulty(bnNew, storedPrev, header)
}

// convertBitsToDouble reconstructs the floating-point difficulty value a
// compact target encodes.
func convertBitsToDouble(bits uint32) float64 {
	shift := (bits >> 24) & 0xff
	diff := float64(0x0000ffff) / float64(bits&0x00ffffff)

	for shift < 29 {
		diff *= 256
		shift++
	}
	for shift > 29 {
		diff /= 256
		shift--
	}
	return diff
}

// accuracyMask returns the mask that reduces a full-precision target to the
// precision of a compact encoding with the given number of accuracy bytes.
func accuracyMask(accuracyBytes int) *big.Int {
	mask := big.NewInt(0xFFFFFF)
	if accuracyBytes >= 0 {
		return mask.Lsh(mask, uint(accuracyBytes*8))
	}
	return mask.Rsh(mask, uint(-accuracyBytes*8))
}

// verifyDifficulty compares a computed target against the bits a candidate
// block carries.  The computed value is clamped at the proof of work limit
// and masked down to the candidate's compact precision first.  Historical
// main-network blocks up to and including the DGW3 switch height are
// compared as floating-point
// difficulty values with a 20% tolerance, absorbing the drift of the early
// floating-point retarget code; everything else requires exact equality.
func (b *Blockchain) verifyDifficulty(calcDiff *big.Int, storedPrev *chainutil.StoredBlock, header *wire.BlockHeader) error {
	params := b.params

	if calcDiff.Cmp(params.PowLimit) > 0 {
		logging.CPrint(logging.INFO, "difficulty hit proof of work limit", logging.LogFormat{
			"target": calcDiff.Text(16),
		})
		calcDiff = params.PowLimit
	}

	accuracyBytes := int(header.Bits>>24) - 3
	receivedDifficulty := chainutil.CompactToBig(header.Bits)

	// The calculated difficulty is to a higher precision than received, so
	// reduce here.
	calcDiff = new(big.Int).And(calcDiff, accuracyMask(accuracyBytes))

	mismatch := func() error {
		str := fmt.Sprintf("network provided difficulty bits do not match "+
			"what was calculated: %s vs %s",
			receivedDifficulty.Text(16), calcDiff.Text(16))
		return ruleError(ErrUnexpectedDifficulty, str)
	}

	if params.IsTestNet() {
		if calcDiff.Cmp(receivedDifficulty) != 0 {
			return mismatch()
		}
		return nil
	}

	height := storedPrev.Height() + 1
	if height <= params.DGW3StartHeight {
		shifted := new(big.Int)
		if accuracyBytes >= 0 {
			shifted.Rsh(calcDiff, uint(accuracyBytes*8))
		} else {
			shifted.Lsh(calcDiff, uint(-accuracyBytes*8))
		}
		calcDiffBits := uint32(accuracyBytes+3)<<24 | uint32(shifted.Int64())

		n1 := convertBitsToDouble(calcDiffBits)
		n2 := convertBitsToDouble(header.Bits)

		if math.Abs(n1-n2) > n1*0.2 {
			return mismatch()
		}
		return nil
	}

	if calcDiff.Cmp(receivedDifficulty) != 0 {
		return mismatch()
	}
	return nil
}
