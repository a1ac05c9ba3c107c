package chain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Chain ties the append-only Blockchain substrate to a ConsensusRules and an
// incrementally maintained UtxoPool, the combination blockchain/blockchain.go
// calls "BlockChain", here split so the pool can be rebuilt independently
// for historical validation (see RebuildUtxoPool).
type Chain struct {
	Rules      ConsensusRules
	Blockchain Blockchain
	Utxos      *UtxoPool
}

// NewChain returns an empty Chain governed by rules, with no genesis block
// yet appended. Callers append the genesis block via AddBlock like any
// other block; AddBlock special-cases height 0 to run genesis validation
// instead of regular block validation.
func NewChain(rules ConsensusRules) *Chain {
	return &Chain{
		Rules:      rules,
		Blockchain: Blockchain{},
		Utxos:      NewUtxoPool(),
	}
}

// NewChainWithGenesis builds a fresh Chain governed by rules and appends a
// genesis block paying a single coinbase output of rules.BaseCoins to
// recipient.
func NewChainWithGenesis(rules ConsensusRules, recipient PublicKey) (*Chain, error) {
	if err := rules.Halving.Validate(); err != nil {
		return nil, errors.Wrap(err, "consensus rules")
	}
	c := NewChain(rules)
	ts := uint64(0)
	coinbaseData := TransactionData{
		Outputs:   []Output{{Value: rules.Reward(0), Pubkey: recipient}},
		Timestamp: &ts,
	}
	coinbase, err := NewTransaction(coinbaseData)
	if err != nil {
		return nil, errors.Wrap(err, "build genesis coinbase")
	}
	blockData := BlockData{
		Nonce:        0,
		Transactions: []Transaction{coinbase},
	}
	blockData.TopHash = ComputeTopHash(blockData.Transactions)
	genesis, err := NewBlock(blockData)
	if err != nil {
		return nil, errors.Wrap(err, "build genesis block")
	}
	if err := c.AddBlock(genesis); err != nil {
		return nil, errors.Wrap(err, "add genesis block")
	}
	return c, nil
}

// validateGenesis checks the genesis-specific shape of a candidate first
// block: zero prev hash, exactly one transaction, and that transaction a
// structurally valid coinbase paying out no more than the block subsidy.
func (c *Chain) validateGenesis(b Block) error {
	if !b.Data.PrevHash.IsZero() {
		return errors.Wrap(ErrInvalidGenesis, "prev hash must be zero")
	}
	if len(b.Data.Transactions) != 1 {
		return errors.Wrap(ErrInvalidGenesis, "must contain exactly one transaction")
	}
	tx := b.Data.Transactions[0]
	if !tx.IsCoinbase() {
		return errors.Wrap(ErrInvalidGenesis, "sole transaction must be a coinbase")
	}
	if err := c.validateCoinbaseTx(tx, true, 0, 0, 0); err != nil {
		return errors.Wrap(ErrInvalidGenesis, err.Error())
	}
	return nil
}

// validateTx checks a regular (non-coinbase) transaction against pool: its
// hash commits to its data, it has at least one input and one output, its
// timestamp is none, every input references a still-unspent output whose
// owner's signature over that output's transaction hash verifies, and
// total input value is at least total output value.
func (c *Chain) validateTx(tx Transaction, pool *UtxoPool) error {
	if !tx.IsHashValid() {
		return errors.Wrap(ErrInvalidTransaction, "hash does not commit to data")
	}
	if len(tx.Data.Inputs) == 0 {
		return errors.Wrap(ErrInvalidTransaction, "must have at least one input")
	}
	if len(tx.Data.Outputs) == 0 {
		return errors.Wrap(ErrInvalidTransaction, "must have at least one output")
	}
	if tx.Data.Timestamp != nil {
		return errors.Wrap(ErrInvalidTransaction, "regular transaction must have no timestamp")
	}

	var inputTotal uint64
	for _, in := range tx.Data.Inputs {
		out, ok := pool.Get(UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex})
		if !ok {
			return errors.Wrap(ErrInvalidTransaction, "input references a spent or unknown output")
		}
		digest := in.PrevTxHash.Digest()
		if !out.Pubkey.Verify(digest[:], in.Signature) {
			return errors.Wrap(ErrInvalidTransaction, "input signature does not verify")
		}
		inputTotal += out.Value
	}

	var outputTotal uint64
	for _, out := range tx.Data.Outputs {
		if out.Value == 0 {
			return errors.Wrap(ErrInvalidTransaction, "output value must be nonzero")
		}
		outputTotal += out.Value
	}

	if inputTotal < outputTotal {
		return errors.Wrap(ErrInvalidTransaction, "input value does not cover output value")
	}
	return nil
}

// validateCoinbaseTx checks a block's reward transaction against the height
// this block will occupy (blockHeight) and the height of its predecessor
// (predecessorHeight, meaningful only when isGenesis is false): the hash
// commits to the data, there are no inputs, at least one output with
// nonzero total payout, the timestamp ties the coinbase to its intended
// predecessor, and the payout does not exceed the block subsidy plus fees
// collected from the block's other transactions. For the genesis block the
// predecessor-height tie is bypassed — there is no predecessor to resolve —
// the documented special case for a zero prev hash.
func (c *Chain) validateCoinbaseTx(tx Transaction, isGenesis bool, blockHeight uint64, predecessorHeight uint64, fees uint64) error {
	if !tx.IsHashValid() {
		return errors.Wrap(ErrInvalidCoinbase, "hash does not commit to data")
	}
	if len(tx.Data.Inputs) != 0 {
		return errors.Wrap(ErrInvalidCoinbase, "must have no inputs")
	}
	if len(tx.Data.Outputs) == 0 {
		return errors.Wrap(ErrInvalidCoinbase, "must have at least one output")
	}
	payout := TxOutputValue(tx)
	if payout == 0 {
		return errors.Wrap(ErrInvalidCoinbase, "payout must be nonzero")
	}
	if !isGenesis {
		if tx.Data.Timestamp == nil || *tx.Data.Timestamp != predecessorHeight {
			return errors.Wrap(ErrInvalidCoinbase, "timestamp does not match predecessor height")
		}
	}
	if payout > c.Rules.Reward(blockHeight)+fees {
		return errors.Wrap(ErrInvalidCoinbase, "payout exceeds subsidy plus fees")
	}
	return nil
}

// validateBlockWithPrevious checks a non-genesis candidate block against the
// block immediately preceding it and pool, the UtxoPool as it stood right
// after previous was applied: the candidate's hash commits to its data, its
// prev hash matches previous's hash, it contains at least one transaction,
// its top hash commits to its transaction list, every transaction but the
// last is a valid regular transaction, and the last transaction is either a
// valid coinbase or a valid regular transaction (a block need not carry a
// reward transaction, so an all-regular block is allowed).
// previousHeight is the height of previous, so the candidate occupies
// previousHeight+1.
func (c *Chain) validateBlockWithPrevious(b Block, previous Block, previousHeight uint64, pool *UtxoPool) error {
	if !b.IsHashValid() {
		return errors.Wrap(ErrInvalidBlock, "hash does not commit to data")
	}
	if b.Data.PrevHash != previous.Hash {
		return errors.Wrap(ErrInvalidPrevHash, "prev hash does not match preceding block")
	}
	if len(b.Data.Transactions) == 0 {
		return errors.Wrap(ErrEmptyBlock, "block has no transactions")
	}
	if len(b.Data.Transactions) == 1 && b.Data.Transactions[0].IsCoinbase() {
		return errors.Wrap(ErrInvalidBlock, "a block with a single transaction must not be a coinbase")
	}
	if !b.Data.IsTopHashValid() {
		return errors.Wrap(ErrInvalidBlock, "top hash does not commit to transactions")
	}
	if err := checkNoDoubleSpend(b.Data.Transactions); err != nil {
		return err
	}

	txs := b.Data.Transactions
	working := pool.Clone()
	var fees uint64
	for _, tx := range txs[:len(txs)-1] {
		if err := c.validateTx(tx, working); err != nil {
			return err
		}
		inTotal, ok := sumInputValues(tx, pool, working)
		if !ok {
			return errors.Wrap(ErrInvalidTransaction, "cannot resolve input value for fee accounting")
		}
		fees += inTotal - TxOutputValue(tx)
		working.Apply(tx)
	}

	last := txs[len(txs)-1]
	if last.IsCoinbase() {
		if err := c.validateCoinbaseTx(last, false, previousHeight+1, previousHeight, fees); err != nil {
			return err
		}
	} else if err := c.validateTx(last, working); err != nil {
		return err
	}
	return nil
}

// checkNoDoubleSpend walks every input of every transaction in txs, in
// order, and fails as soon as an (prev tx hash, output index) pair repeats —
// whether within one transaction's own input list or across two different
// transactions in the block.
func checkNoDoubleSpend(txs []Transaction) error {
	seen := make(map[UtxoKey]bool)
	for _, tx := range txs {
		for _, in := range tx.Data.Inputs {
			key := UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex}
			if seen[key] {
				return errors.Wrap(ErrInvalidBlock, "double spend within block")
			}
			seen[key] = true
		}
	}
	return nil
}

// sumInputValues resolves each input of tx against whichever of the two
// pools (the pool as it stood before this block, or as it stands mid-block
// after earlier transactions applied) still holds it. Needed because an
// input may reference an output created earlier in the same block.
func sumInputValues(tx Transaction, before *UtxoPool, mid *UtxoPool) (uint64, bool) {
	var total uint64
	for _, in := range tx.Data.Inputs {
		key := UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex}
		if out, ok := before.Get(key); ok {
			total += out.Value
			continue
		}
		if out, ok := mid.Get(key); ok {
			total += out.Value
			continue
		}
		return 0, false
	}
	return total, true
}

// ValidateBlock checks b against the current chain tip and live pool. It
// has no side effects.
func (c *Chain) ValidateBlock(b Block) error {
	tip, ok := c.Blockchain.Tip()
	if !ok {
		return c.validateGenesis(b)
	}
	return c.validateBlockWithPrevious(b, tip, c.Blockchain.Height()-1, c.Utxos)
}

// ValidateChain replays the entire chain from scratch — genesis validation
// for block 0, then validateBlockWithPrevious for each subsequent block
// against a freshly rebuilt pool — and reports the first failure found.
func (c *Chain) ValidateChain() error {
	blocks := c.Blockchain.Blocks
	if len(blocks) == 0 {
		return nil
	}
	if err := c.validateGenesis(blocks[0]); err != nil {
		return err
	}
	pool := NewUtxoPool()
	pool.ApplyBlock(blocks[0].Data)
	for i := 1; i < len(blocks); i++ {
		if err := c.validateBlockWithPrevious(blocks[i], blocks[i-1], uint64(i-1), pool); err != nil {
			return errors.Wrapf(err, "block at height %d", i)
		}
		pool.ApplyBlock(blocks[i].Data)
	}
	return nil
}

// AddBlock validates b against the proof-of-work target and, for non-genesis
// blocks, against the current tip and live pool. On success it appends b to
// the blockchain and applies its transactions to the live pool; on failure
// the chain and pool are left unchanged. The target check runs first since
// it is far cheaper than the full block validation that follows.
func (c *Chain) AddBlock(b Block) error {
	if !c.Rules.ValidateTarget(b.Hash) {
		return ErrTargetNotSatisfied
	}
	if err := c.ValidateBlock(b); err != nil {
		if errors.Is(err, ErrInvalidBlock) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalidBlock, err)
	}
	c.Blockchain.Append(b)
	c.Utxos.ApplyBlock(b.Data)
	return nil
}
