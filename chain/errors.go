package chain

import "github.com/pkg/errors"

// Error kinds surfaced by this package. Validation predicates never panic;
// every rejection is reported through one of these sentinels so callers
// (the HTTP layer, the CLI, the miner) can match on cause without needing a
// finer-grained type hierarchy.
var (
	// ErrInvalidHex is returned when decoding a hex-encoded Hash or
	// PublicKey that contains non-hex characters or the wrong length.
	ErrInvalidHex = errors.New("invalid hex encoding")

	// ErrInvalidLength is returned when a binary decode receives the
	// wrong number of bytes for a fixed-size value.
	ErrInvalidLength = errors.New("invalid length")

	// ErrInvalidPrevHash is wrapped by the error Chain.AddBlock returns
	// when a block's prev hash does not match the current tip.
	// Blockchain.Append itself does not check the prev hash.
	ErrInvalidPrevHash = errors.New("block does not extend chain tip")

	// ErrTargetNotSatisfied is returned by Chain.AddBlock when the
	// candidate block's hash exceeds the consensus target.
	ErrTargetNotSatisfied = errors.New("block hash does not satisfy consensus target")

	// ErrInvalidBlock is matched (via errors.Is) by every error
	// Chain.AddBlock returns when any block validation predicate fails.
	// Where a more specific sentinel in this list names the failed check,
	// the returned error wraps that sentinel as well.
	ErrInvalidBlock = errors.New("block failed validation")

	// ErrInvalidTransaction is returned when a regular (non-coinbase)
	// transaction fails any of: hash validity, having at least one input
	// and output, signature verification, or input value covering output
	// value.
	ErrInvalidTransaction = errors.New("transaction failed validation")

	// ErrInvalidCoinbase is returned when a block's reward transaction
	// fails hash validity, has any inputs, has no outputs, or pays out
	// more than the block's subsidy plus collected fees.
	ErrInvalidCoinbase = errors.New("coinbase transaction failed validation")

	// ErrInvalidGenesis is returned when a candidate genesis block does
	// not satisfy the genesis-specific shape: zero prev hash, exactly one
	// transaction, that transaction a valid coinbase.
	ErrInvalidGenesis = errors.New("genesis block failed validation")

	// ErrEmptyBlock is returned when a block carries zero transactions;
	// every block must contain at least one transaction.
	ErrEmptyBlock = errors.New("block has no transactions")
)
