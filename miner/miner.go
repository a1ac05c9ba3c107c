// Package miner couples a mempool of pending transactions to block
// production: sampling a non-conflicting subset, assembling a coinbase,
// searching for a satisfying nonce, and reconciling the mempool with the
// result. Grounded on blockchain/proof.go's nonce search loop.
package miner

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/golang-blockchain/chain"
)

// sampleSize is the number of transactions a mining attempt tries to pull
// from the mempool.
const sampleSize = 5

// sampleAttempts bounds how many random draws Mine retries before giving up
// on assembling sampleSize non-conflicting transactions.
const sampleAttempts = 10

// maxNonce is the width of the nonce search space: every value a uint32 can
// hold. blockchain/proof.go instead searches an int64 range; BlockData.Nonce
// here is a uint32, so the search is bounded accordingly.
const maxNonce = ^uint32(0)

// Miner holds the recipient of mined block rewards and the set of
// transactions awaiting inclusion in a block. It is not safe for concurrent
// use; callers (the node package) guard it with a mutex shared with the
// Chain it mines against.
type Miner struct {
	Recipient chain.PublicKey
	mempool   map[chain.Hash]chain.Transaction
}

// New returns a Miner with an empty mempool, paying block rewards to
// recipient.
func New(recipient chain.PublicKey) *Miner {
	return &Miner{
		Recipient: recipient,
		mempool:   make(map[chain.Hash]chain.Transaction),
	}
}

// Pool returns every transaction currently in the mempool, in no particular
// order, the form the HTTP GET /pool handler serializes directly.
func (m *Miner) Pool() []chain.Transaction {
	out := make([]chain.Transaction, 0, len(m.mempool))
	for _, tx := range m.mempool {
		out = append(out, tx)
	}
	return out
}

// AddTx validates tx as a regular transaction against c's live pool and, if
// accepted, inserts it into the mempool. It reports whether the transaction
// was accepted.
func (m *Miner) AddTx(c *chain.Chain, tx chain.Transaction) bool {
	if tx.IsCoinbase() {
		return false
	}
	if err := validateRegularTx(c, tx); err != nil {
		return false
	}
	m.mempool[tx.Hash] = tx
	return true
}

// validateRegularTx re-exposes the subset of Chain's private validation
// logic AddTx needs: hash validity, nonzero inputs/outputs, no timestamp,
// resolvable and correctly signed inputs, and input value covering output
// value. It duplicates rather than reuses Chain.validateTx because that
// method is unexported.
func validateRegularTx(c *chain.Chain, tx chain.Transaction) error {
	if !tx.IsHashValid() {
		return errors.New("transaction hash invalid")
	}
	if len(tx.Data.Inputs) == 0 || len(tx.Data.Outputs) == 0 {
		return errors.New("transaction missing inputs or outputs")
	}
	if tx.Data.Timestamp != nil {
		return errors.New("regular transaction must have no timestamp")
	}
	var inputTotal uint64
	for _, in := range tx.Data.Inputs {
		out, ok := c.Utxos.Get(chain.UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex})
		if !ok {
			return errors.New("input references a spent or unknown output")
		}
		digest := in.PrevTxHash.Digest()
		if !out.Pubkey.Verify(digest[:], in.Signature) {
			return errors.New("input signature does not verify")
		}
		inputTotal += out.Value
	}
	var outputTotal uint64
	for _, out := range tx.Data.Outputs {
		if out.Value == 0 {
			return errors.New("output value must be nonzero")
		}
		outputTotal += out.Value
	}
	if inputTotal < outputTotal {
		return errors.New("input value does not cover output value")
	}
	return nil
}

// Mine attempts to produce the next block: it samples up to sampleSize
// non-conflicting transactions from the mempool, assembles a coinbase
// paying the block subsidy plus collected fees to m.Recipient, and searches
// the nonce space for a hash satisfying c.Rules.Target. On success the
// chosen transactions (and any mempool transaction that now conflicts with
// the new block) are removed from the mempool and the block is returned.
// On ErrNotEnoughTransactions the mempool is untouched. On ErrNoBlockFound
// the sampled transactions are reinserted before returning.
func Mine(c *chain.Chain, m *Miner) (chain.Block, error) {
	chosen, err := sampleNonConflicting(m, sampleSize, sampleAttempts)
	if err != nil {
		return chain.Block{}, err
	}

	for _, tx := range chosen {
		delete(m.mempool, tx.Hash)
	}

	fees, ok := collectFees(c, chosen)
	if !ok {
		for _, tx := range chosen {
			m.mempool[tx.Hash] = tx
		}
		return chain.Block{}, errors.New("cannot resolve input value for fee accounting")
	}

	tip, hasTip := c.Blockchain.Tip()
	height := c.Blockchain.Height()
	coinbaseValue := c.Rules.Reward(height) + fees

	txs := append([]chain.Transaction{}, chosen...)
	if coinbaseValue > 0 {
		predecessorHeight := uint64(0)
		if hasTip {
			predecessorHeight = height - 1
		}
		coinbase, err := buildCoinbase(m.Recipient, coinbaseValue, predecessorHeight)
		if err != nil {
			for _, tx := range chosen {
				m.mempool[tx.Hash] = tx
			}
			return chain.Block{}, errors.Wrap(err, "build coinbase")
		}
		txs = append(txs, coinbase)
	}

	var prevHash chain.Hash
	if hasTip {
		prevHash = tip.Hash
	}

	data := chain.BlockData{
		PrevHash:     prevHash,
		Nonce:        0,
		TopHash:      chain.ComputeTopHash(txs),
		Transactions: txs,
	}

	for nonce := uint32(0); ; nonce++ {
		data.Nonce = nonce
		block, err := chain.NewBlock(data)
		if err != nil {
			for _, tx := range chosen {
				m.mempool[tx.Hash] = tx
			}
			return chain.Block{}, errors.Wrap(err, "encode candidate block")
		}
		if c.Rules.ValidateTarget(block.Hash) {
			purgeConflicting(m, block)
			return block, nil
		}
		if nonce == maxNonce {
			for _, tx := range chosen {
				m.mempool[tx.Hash] = tx
			}
			return chain.Block{}, ErrNoBlockFound
		}
	}
}

// sampleNonConflicting draws up to n transactions from the mempool at
// random, retrying up to attempts times, keeping only those that share no
// (hash, index) input with an already-chosen transaction.
func sampleNonConflicting(m *Miner, n int, attempts int) ([]chain.Transaction, error) {
	if len(m.mempool) == 0 {
		return nil, ErrNotEnoughTransactions
	}

	pool := make([]chain.Transaction, 0, len(m.mempool))
	for _, tx := range m.mempool {
		pool = append(pool, tx)
	}

	var best []chain.Transaction
	for attempt := 0; attempt < attempts; attempt++ {
		order := rand.Perm(len(pool))
		consumed := make(map[chain.UtxoKey]bool)
		var chosen []chain.Transaction
		for _, idx := range order {
			if len(chosen) >= n {
				break
			}
			tx := pool[idx]
			conflicts := false
			for _, in := range tx.Data.Inputs {
				key := chain.UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex}
				if consumed[key] {
					conflicts = true
					break
				}
			}
			if conflicts {
				continue
			}
			for _, in := range tx.Data.Inputs {
				consumed[chain.UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex}] = true
			}
			chosen = append(chosen, tx)
		}
		if len(chosen) > len(best) {
			best = chosen
		}
		if len(best) >= n {
			break
		}
	}

	if len(best) < 2 {
		return nil, ErrNotEnoughTransactions
	}
	return best, nil
}

// collectFees sums each transaction's (input value − output value), the
// transaction fee, resolving input values against c's live pool. ok is
// false if any referenced output cannot be found there (which should not
// happen for transactions that passed AddTx, but Mine checks defensively).
func collectFees(c *chain.Chain, txs []chain.Transaction) (uint64, bool) {
	var fees uint64
	for _, tx := range txs {
		var inputTotal uint64
		for _, in := range tx.Data.Inputs {
			out, ok := c.Utxos.Get(chain.UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex})
			if !ok {
				return 0, false
			}
			inputTotal += out.Value
		}
		fees += inputTotal - chain.TxOutputValue(tx)
	}
	return fees, true
}

// buildCoinbase assembles a reward transaction paying value to recipient,
// stamped with the predecessor block's height.
func buildCoinbase(recipient chain.PublicKey, value uint64, predecessorHeight uint64) (chain.Transaction, error) {
	ts := predecessorHeight
	data := chain.TransactionData{
		Outputs:   []chain.Output{{Value: value, Pubkey: recipient}},
		Timestamp: &ts,
	}
	return chain.NewTransaction(data)
}

// purgeConflicting removes from the mempool any remaining transaction that
// shares a consumed UTXO with the just-mined block.
func purgeConflicting(m *Miner, b chain.Block) {
	consumed := make(map[chain.UtxoKey]bool)
	for _, tx := range b.Data.Transactions {
		for _, in := range tx.Data.Inputs {
			consumed[chain.UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex}] = true
		}
	}
	for hash, tx := range m.mempool {
		for _, in := range tx.Data.Inputs {
			if consumed[chain.UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex}] {
				delete(m.mempool, hash)
				break
			}
		}
	}
}
