package chain

// Blockchain is the non-validating append-only substrate: an ordered list
// of blocks. It knows nothing about consensus rules or UTXOs — that
// validating layer lives in Chain (validator.go). Grounded on
// blockchain/blockchain.go's GetBlockHashes/FindTransaction reverse-scan
// idiom, adapted from a badger-backed iterator to a plain in-memory slice.
type Blockchain struct {
	Blocks []Block
}

// NewBlockchain returns an empty substrate.
func NewBlockchain() *Blockchain {
	return &Blockchain{}
}

// Tip returns the most recently appended block, if any.
func (bc *Blockchain) Tip() (Block, bool) {
	if len(bc.Blocks) == 0 {
		return Block{}, false
	}
	return bc.Blocks[len(bc.Blocks)-1], true
}

// Height returns the number of blocks in the chain. The genesis block is at
// height 0, so Height equals len(Blocks).
func (bc *Blockchain) Height() uint64 {
	return uint64(len(bc.Blocks))
}

// Append adds b to the end of the chain without any validation. Callers
// that must enforce consensus rules use Chain.AddBlock instead; Append is
// the primitive that both Chain.AddBlock and chain loading from disk build
// on.
func (bc *Blockchain) Append(b Block) {
	bc.Blocks = append(bc.Blocks, b)
}

// QueryBlock returns the block with the given hash, searching from the tip
// backward, matching blockchain/blockchain.go's GetBlock reverse-chronology
// traversal (most lookups target recent blocks).
func (bc *Blockchain) QueryBlock(h Hash) (Block, bool) {
	for i := len(bc.Blocks) - 1; i >= 0; i-- {
		if bc.Blocks[i].Hash == h {
			return bc.Blocks[i], true
		}
	}
	return Block{}, false
}

// QueryTx returns the transaction with the given hash and the block it
// appears in, searching from the tip backward, matching
// blockchain/blockchain.go's FindTransaction.
func (bc *Blockchain) QueryTx(h Hash) (Transaction, Block, bool) {
	for i := len(bc.Blocks) - 1; i >= 0; i-- {
		for _, tx := range bc.Blocks[i].Data.Transactions {
			if tx.Hash == h {
				return tx, bc.Blocks[i], true
			}
		}
	}
	return Transaction{}, Block{}, false
}

// TxInputValue looks up the output an input references within this
// blockchain and returns its value. ok is false if the referenced
// transaction or output index cannot be found.
func (bc *Blockchain) TxInputValue(in Input) (uint64, bool) {
	tx, _, found := bc.QueryTx(in.PrevTxHash)
	if !found {
		return 0, false
	}
	if int(in.OutputIndex) >= len(tx.Data.Outputs) {
		return 0, false
	}
	return tx.Data.Outputs[in.OutputIndex].Value, true
}

// TxOutputValue sums the value of every output in a transaction.
func TxOutputValue(tx Transaction) uint64 {
	var total uint64
	for _, out := range tx.Data.Outputs {
		total += out.Value
	}
	return total
}

// TxInputValueSum sums the value of every input in a transaction, by
// looking each one up against bc. ok is false if any referenced output
// cannot be resolved.
func (bc *Blockchain) TxInputValueSum(tx Transaction) (uint64, bool) {
	var total uint64
	for _, in := range tx.Data.Inputs {
		v, found := bc.TxInputValue(in)
		if !found {
			return 0, false
		}
		total += v
	}
	return total, true
}

// TxCollectionValue sums TxOutputValue across every transaction in txs,
// coinbase transactions included. It does not compute fees: input values are
// not resolved here. The Miner computes fees with its own collectFees.
func TxCollectionValue(txs []Transaction) uint64 {
	var total uint64
	for _, tx := range txs {
		total += TxOutputValue(tx)
	}
	return total
}
