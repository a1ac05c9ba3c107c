package chain

// UtxoKey identifies an output by the hash of the transaction that created
// it and that transaction's output index.
type UtxoKey struct {
	TxHash      Hash
	OutputIndex uint32
}

// UtxoPool is the set of currently-unspent outputs, keyed for O(1)
// membership and removal. Grounded on blockchain/utxo.go's UTXOSet, whose
// badger-backed prefix scan this pool replaces with a plain in-memory map;
// the operations it exposes (apply a block, check membership, select
// outputs for a key) mirror FindSpendableOutputs/Update/Reindex but over a
// value the caller owns and can snapshot, rather than a database singleton.
type UtxoPool struct {
	entries map[UtxoKey]Output
}

// NewUtxoPool returns an empty pool.
func NewUtxoPool() *UtxoPool {
	return &UtxoPool{entries: make(map[UtxoKey]Output)}
}

// Get looks up the output at key, if still unspent.
func (p *UtxoPool) Get(key UtxoKey) (Output, bool) {
	out, ok := p.entries[key]
	return out, ok
}

// IsUnspent reports whether the output referenced by in is still in the
// pool.
func (p *UtxoPool) IsUnspent(in Input) bool {
	_, ok := p.entries[UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex}]
	return ok
}

// Clone returns an independent copy of the pool, used by the validator to
// try a candidate block without mutating the live pool until it is accepted.
func (p *UtxoPool) Clone() *UtxoPool {
	out := make(map[UtxoKey]Output, len(p.entries))
	for k, v := range p.entries {
		out[k] = v
	}
	return &UtxoPool{entries: out}
}

// Apply updates the pool for one transaction: every output it creates is
// inserted first, then every input it spends is removed. This order is
// deliberate — a transaction can never spend its own output (inserted, then
// immediately removed again, same call), but a later transaction in the
// same block can spend an earlier one's output, because ApplyBlock applies
// transactions one at a time in block order.
func (p *UtxoPool) Apply(tx Transaction) {
	for i, out := range tx.Data.Outputs {
		p.entries[UtxoKey{TxHash: tx.Hash, OutputIndex: uint32(i)}] = out
	}
	for _, in := range tx.Data.Inputs {
		delete(p.entries, UtxoKey{TxHash: in.PrevTxHash, OutputIndex: in.OutputIndex})
	}
}

// ApplyBlock applies every transaction in a block's data, in order.
func (p *UtxoPool) ApplyBlock(data BlockData) {
	for _, tx := range data.Transactions {
		p.Apply(tx)
	}
}

// Utxo is the external, wallet/API-facing shape of a pool entry: the
// transaction hash and output index that identify it, and its value. Pubkey
// is carried for in-process filtering (Select) but is deliberately excluded
// from the JSON form — the holder querying their own UTXOs already knows
// their own public key.
type Utxo struct {
	TxHash      Hash      `json:"hash"`
	OutputIndex uint32    `json:"output_index"`
	Value       uint64    `json:"value"`
	Pubkey      PublicKey `json:"-"`
}

// All returns every entry currently in the pool, in no particular order.
func (p *UtxoPool) All() []Utxo {
	out := make([]Utxo, 0, len(p.entries))
	for k, v := range p.entries {
		out = append(out, Utxo{TxHash: k.TxHash, OutputIndex: k.OutputIndex, Value: v.Value, Pubkey: v.Pubkey})
	}
	return out
}

// Select returns every entry belonging to pubkey, the set a wallet draws
// from when assembling spendable funds for a new transaction. Grounded on
// blockchain/utxo.go's FindSpendableOutputs.
func (p *UtxoPool) Select(pubkey PublicKey) []Utxo {
	out := make([]Utxo, 0)
	for k, v := range p.entries {
		if v.Pubkey == pubkey {
			out = append(out, Utxo{TxHash: k.TxHash, OutputIndex: k.OutputIndex, Value: v.Value, Pubkey: v.Pubkey})
		}
	}
	return out
}

// Balance sums the value of every unspent output belonging to pubkey.
func (p *UtxoPool) Balance(pubkey PublicKey) uint64 {
	var total uint64
	for _, v := range p.entries {
		if v.Pubkey == pubkey {
			total += v.Value
		}
	}
	return total
}

// RebuildUtxoPool replays an entire blockchain from an empty pool, applying
// the transactions of blocks[0..upToHeight] in order. Validating block N
// must use the pool as it stood immediately after block N-1, never the
// live, fully up-to-date pool. store.Load uses this to rebuild the live
// pool of a loaded chain; Chain.ValidateChain replays blocks into its own
// pool instead of calling it.
func RebuildUtxoPool(blocks []Block, upToHeight int) *UtxoPool {
	pool := NewUtxoPool()
	for i, b := range blocks {
		if i > upToHeight {
			break
		}
		pool.ApplyBlock(b.Data)
	}
	return pool
}
