// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/bitcryptoproject/bitj/wire"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	ErrDuplicateBlock ErrorCode = iota

	ErrBlockTooBig

	ErrInvalidTime

	ErrTimeTooOld

	ErrTimeTooNew

	ErrUnexpectedDifficulty

	ErrHighHash

	ErrBadMerkleRoot

	ErrBadCheckpoint

	ErrNoTransactions

	ErrTooManyTransactions

	ErrNoTxInputs

	ErrNoTxOutputs

	ErrBadTxOutValue

	ErrDuplicateTxInputs

	ErrUnfinalizedTx

	ErrDuplicateTx

	ErrMissingTx

	ErrDoubleSpend

	ErrFirstTxNotCoinbase

	ErrMultipleCoinbases

	ErrSideChainNoSplit
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock:       "ErrDuplicateBlock",
	ErrBlockTooBig:          "ErrBlockTooBig",
	ErrInvalidTime:          "ErrInvalidTime",
	ErrTimeTooOld:           "ErrTimeTooOld",
	ErrTimeTooNew:           "ErrTimeTooNew",
	ErrUnexpectedDifficulty: "ErrUnexpectedDifficulty",
	ErrHighHash:             "ErrHighHash",
	ErrBadMerkleRoot:        "ErrBadMerkleRoot",
	ErrBadCheckpoint:        "ErrBadCheckpoint",
	ErrNoTransactions:       "ErrNoTransactions",
	ErrTooManyTransactions:  "ErrTooManyTransactions",
	ErrNoTxInputs:           "ErrNoTxInputs",
	ErrNoTxOutputs:          "ErrNoTxOutputs",
	ErrBadTxOutValue:        "ErrBadTxOutValue",
	ErrDuplicateTxInputs:    "ErrDuplicateTxInputs",
	ErrUnfinalizedTx:        "ErrUnfinalizedTx",
	ErrDuplicateTx:          "ErrDuplicateTx",
	ErrMissingTx:            "ErrMissingTx",
	ErrDoubleSpend:          "ErrDoubleSpend",
	ErrFirstTxNotCoinbase:   "ErrFirstTxNotCoinbase",
	ErrMultipleCoinbases:    "ErrMultipleCoinbases",
	ErrSideChainNoSplit:     "ErrSideChainNoSplit",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a block or transaction failed due to one of the many
// validation rules.  The caller can use type assertions to determine if a
// failure was specifically due to a rule violation and access the ErrorCode
// field to ascertain the specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsRuleError returns whether err is a RuleError.
func IsRuleError(err error) bool {
	_, ok := err.(RuleError)
	return ok
}

// PrunedError is returned by a reorganization that needs undo data the store
// has already discarded.  Recovery requires the operator to rescan from a
// full source.
type PrunedError struct {
	Hash wire.Hash
}

// Error satisfies the error interface.
func (e PrunedError) Error() string {
	return fmt.Sprintf("undo data pruned for block %v", e.Hash)
}
