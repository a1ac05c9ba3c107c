package miner

import "github.com/pkg/errors"

var (
	// ErrNotEnoughTransactions is returned by Mine when fewer than two
	// non-conflicting transactions could be sampled from the mempool
	// after the configured number of sampling attempts.
	ErrNotEnoughTransactions = errors.New("not enough non-conflicting transactions in mempool")

	// ErrNoBlockFound is returned by Mine when the nonce space is
	// exhausted without finding a hash that satisfies the chain's
	// target. The sampled transactions are reinserted into the mempool
	// before this error is returned.
	ErrNoBlockFound = errors.New("exhausted nonce space without satisfying target")
)
