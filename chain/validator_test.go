package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signInputs signs each of data's inputs over its own referenced
// transaction hash with kp, mirroring wallet.BuildTransactionFromUtxos's
// signing scheme.
func signInputs(t *testing.T, data TransactionData, kp KeyPair) TransactionData {
	t.Helper()
	for i := range data.Inputs {
		digest := data.Inputs[i].PrevTxHash.Digest()
		data.Inputs[i].Signature = kp.Sign(digest[:])
	}
	return data
}

func mineBlockManually(t *testing.T, c *Chain, txs []Transaction) Block {
	t.Helper()
	tip, ok := c.Blockchain.Tip()
	var prevHash Hash
	if ok {
		prevHash = tip.Hash
	}
	data := BlockData{
		PrevHash:     prevHash,
		TopHash:      ComputeTopHash(txs),
		Transactions: txs,
	}
	for nonce := uint32(0); ; nonce++ {
		data.Nonce = nonce
		b, err := NewBlock(data)
		require.NoError(t, err)
		if c.Rules.ValidateTarget(b.Hash) {
			return b
		}
		require.Less(t, nonce, uint32(1_000_000), "nonce search should not need this many iterations under a loose target")
	}
}

// S1 — genesis + single transfer, Halving::None.
func TestScenarioS1GenesisAndTransfer(t *testing.T) {
	k1, err := NewKeyPair()
	require.NoError(t, err)
	k2, err := NewKeyPair()
	require.NoError(t, err)

	rules := ConsensusRules{Target: MaxTarget(), BaseCoins: 10000, Halving: Halving{Kind: HalvingNone}}
	c, err := NewChainWithGenesis(rules, k1.PublicKey())
	require.NoError(t, err)

	genesisUtxos := c.Utxos.Select(k1.PublicKey())
	require.Len(t, genesisUtxos, 1)
	assert.Equal(t, uint64(10000), genesisUtxos[0].Value)

	data := signInputs(t, TransactionData{
		Inputs: []Input{{PrevTxHash: genesisUtxos[0].TxHash, OutputIndex: genesisUtxos[0].OutputIndex}},
		Outputs: []Output{
			{Value: 5000, Pubkey: k2.PublicKey()},
			{Value: 5000, Pubkey: k1.PublicKey()},
		},
	}, k1)
	tx, err := NewTransaction(data)
	require.NoError(t, err)

	fees := uint64(0) // 10000 in, 10000 out
	coinbaseData := TransactionData{
		Outputs:   []Output{{Value: rules.Reward(1) + fees, Pubkey: k1.PublicKey()}},
		Timestamp: uint64Ptr(0),
	}
	coinbase, err := NewTransaction(coinbaseData)
	require.NoError(t, err)

	block := mineBlockManually(t, c, []Transaction{tx, coinbase})
	require.NoError(t, c.AddBlock(block))
	assert.EqualValues(t, 2, c.Blockchain.Height())

	assert.Equal(t, uint64(15000), c.Utxos.Balance(k1.PublicKey()))
	assert.Equal(t, uint64(5000), c.Utxos.Balance(k2.PublicKey()))
}

// S2 — Halving::Inf.
func TestScenarioS2HalvingInf(t *testing.T) {
	k1, err := NewKeyPair()
	require.NoError(t, err)
	k2, err := NewKeyPair()
	require.NoError(t, err)

	rules := ConsensusRules{Target: MaxTarget(), BaseCoins: 10000, Halving: Halving{Kind: HalvingInf}}
	c, err := NewChainWithGenesis(rules, k1.PublicKey())
	require.NoError(t, err)

	genesisUtxos := c.Utxos.Select(k1.PublicKey())
	require.Len(t, genesisUtxos, 1)

	data := signInputs(t, TransactionData{
		Inputs:  []Input{{PrevTxHash: genesisUtxos[0].TxHash, OutputIndex: genesisUtxos[0].OutputIndex}},
		Outputs: []Output{{Value: 5000, Pubkey: k2.PublicKey()}},
	}, k1)
	tx, err := NewTransaction(data)
	require.NoError(t, err)

	fees := uint64(5000) // 10000 in, 5000 out
	assert.Equal(t, uint64(0), rules.Reward(1))
	coinbase, err := NewTransaction(TransactionData{
		Outputs:   []Output{{Value: rules.Reward(1) + fees, Pubkey: k1.PublicKey()}},
		Timestamp: uint64Ptr(0),
	})
	require.NoError(t, err)

	block := mineBlockManually(t, c, []Transaction{tx, coinbase})
	require.NoError(t, c.AddBlock(block))

	// K1 spent its whole 10000 genesis output and gets back the 5000 coinbase.
	assert.Equal(t, uint64(5000), c.Utxos.Balance(k1.PublicKey()))
	assert.Equal(t, uint64(5000), c.Utxos.Balance(k2.PublicKey()))
}

// S3 — Halving::Every(1).
func TestScenarioS3HalvingEvery(t *testing.T) {
	k1, err := NewKeyPair()
	require.NoError(t, err)
	k2, err := NewKeyPair()
	require.NoError(t, err)

	rules := ConsensusRules{Target: MaxTarget(), BaseCoins: 10000, Halving: Halving{Kind: HalvingEvery, Period: 1}}
	c, err := NewChainWithGenesis(rules, k1.PublicKey())
	require.NoError(t, err)

	genesisUtxos := c.Utxos.Select(k1.PublicKey())
	require.Len(t, genesisUtxos, 1)

	data := signInputs(t, TransactionData{
		Inputs:  []Input{{PrevTxHash: genesisUtxos[0].TxHash, OutputIndex: genesisUtxos[0].OutputIndex}},
		Outputs: []Output{{Value: 5000, Pubkey: k2.PublicKey()}},
	}, k1)
	tx, err := NewTransaction(data)
	require.NoError(t, err)

	assert.Equal(t, uint64(5000), rules.Reward(1))
	fees := uint64(5000)
	coinbase, err := NewTransaction(TransactionData{
		Outputs:   []Output{{Value: rules.Reward(1) + fees, Pubkey: k1.PublicKey()}},
		Timestamp: uint64Ptr(0),
	})
	require.NoError(t, err)

	block := mineBlockManually(t, c, []Transaction{tx, coinbase})
	require.NoError(t, c.AddBlock(block))

	// K1 spent its whole 10000 genesis output and gets back the 10000
	// coinbase (5000 subsidy + 5000 fees).
	assert.Equal(t, uint64(10000), c.Utxos.Balance(k1.PublicKey()))
	assert.Equal(t, uint64(5000), c.Utxos.Balance(k2.PublicKey()))
}

// S4 — target rejection leaves state unchanged.
func TestScenarioS4TargetRejection(t *testing.T) {
	k1, err := NewKeyPair()
	require.NoError(t, err)

	strict := ConsensusRules{Target: TargetFromLeadingZeroBits(254), BaseCoins: 10000}
	c := NewChain(strict)

	coinbase, err := NewTransaction(TransactionData{
		Outputs:   []Output{{Value: strict.Reward(0), Pubkey: k1.PublicKey()}},
		Timestamp: uint64Ptr(0),
	})
	require.NoError(t, err)
	block, err := NewBlock(BlockData{TopHash: ComputeTopHash([]Transaction{coinbase}), Transactions: []Transaction{coinbase}})
	require.NoError(t, err)

	// Overwhelmingly likely this hash does not satisfy a 254-leading-zero-bit
	// target; if it does, the test is vacuous rather than flaky (it will
	// never assert the wrong thing).
	if strict.ValidateTarget(block.Hash) {
		t.Skip("block hash improbably satisfied the strict target")
	}

	err = c.AddBlock(block)
	assert.ErrorIs(t, err, ErrTargetNotSatisfied)
	assert.EqualValues(t, 0, c.Blockchain.Height())
	assert.Empty(t, c.Utxos.All())
}

// S5 — double spend within a block is rejected and leaves state unchanged.
func TestScenarioS5DoubleSpendRejected(t *testing.T) {
	k1, err := NewKeyPair()
	require.NoError(t, err)
	k2, err := NewKeyPair()
	require.NoError(t, err)

	rules := ConsensusRules{Target: MaxTarget(), BaseCoins: 10000, Halving: Halving{Kind: HalvingNone}}
	c, err := NewChainWithGenesis(rules, k1.PublicKey())
	require.NoError(t, err)

	genesisUtxos := c.Utxos.Select(k1.PublicKey())
	require.Len(t, genesisUtxos, 1)
	src := genesisUtxos[0]

	mkSpend := func(value uint64) Transaction {
		data := signInputs(t, TransactionData{
			Inputs:  []Input{{PrevTxHash: src.TxHash, OutputIndex: src.OutputIndex}},
			Outputs: []Output{{Value: value, Pubkey: k2.PublicKey()}},
		}, k1)
		tx, err := NewTransaction(data)
		require.NoError(t, err)
		return tx
	}

	tx1 := mkSpend(4000)
	tx2 := mkSpend(6000) // different tx (different outputs), same input

	coinbase, err := NewTransaction(TransactionData{
		Outputs:   []Output{{Value: rules.Reward(1), Pubkey: k1.PublicKey()}},
		Timestamp: uint64Ptr(0),
	})
	require.NoError(t, err)

	block := mineBlockManually(t, c, []Transaction{tx1, tx2, coinbase})

	heightBefore := c.Blockchain.Height()
	utxosBefore := len(c.Utxos.All())

	err = c.AddBlock(block)
	assert.ErrorIs(t, err, ErrInvalidBlock)
	assert.Equal(t, heightBefore, c.Blockchain.Height())
	assert.Len(t, c.Utxos.All(), utxosBefore)
}

// Testable property 8: replacing a signature with one from a different key
// causes rejection.
func TestSignatureBindingRejectsWrongKeySignature(t *testing.T) {
	k1, err := NewKeyPair()
	require.NoError(t, err)
	k2, err := NewKeyPair()
	require.NoError(t, err)
	other, err := NewKeyPair()
	require.NoError(t, err)

	rules := ConsensusRules{Target: MaxTarget(), BaseCoins: 10000}
	c, err := NewChainWithGenesis(rules, k1.PublicKey())
	require.NoError(t, err)

	src := c.Utxos.Select(k1.PublicKey())[0]
	data := TransactionData{
		Inputs:  []Input{{PrevTxHash: src.TxHash, OutputIndex: src.OutputIndex}},
		Outputs: []Output{{Value: 5000, Pubkey: k2.PublicKey()}},
	}
	digest := data.Inputs[0].PrevTxHash.Digest()
	data.Inputs[0].Signature = other.Sign(digest[:]) // signed by the wrong key
	tx, err := NewTransaction(data)
	require.NoError(t, err)

	coinbase, err := NewTransaction(TransactionData{
		Outputs:   []Output{{Value: rules.Reward(1), Pubkey: k1.PublicKey()}},
		Timestamp: uint64Ptr(0),
	})
	require.NoError(t, err)

	block := mineBlockManually(t, c, []Transaction{tx, coinbase})
	err = c.AddBlock(block)
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

// Testable property 5: after AddBlock succeeds, the live pool matches a
// full rebuild from genesis.
func TestUtxoConsistencyAfterAddBlock(t *testing.T) {
	k1, err := NewKeyPair()
	require.NoError(t, err)
	rules := ConsensusRules{Target: MaxTarget(), BaseCoins: 10000}
	c, err := NewChainWithGenesis(rules, k1.PublicKey())
	require.NoError(t, err)

	rebuilt := RebuildUtxoPool(c.Blockchain.Blocks, len(c.Blockchain.Blocks)-1)
	assert.ElementsMatch(t, c.Utxos.All(), rebuilt.All())
}

// The "single coinbase-only non-genesis block is invalid" rule.
func TestBlockWithSoleCoinbaseRejected(t *testing.T) {
	k1, err := NewKeyPair()
	require.NoError(t, err)
	rules := ConsensusRules{Target: MaxTarget(), BaseCoins: 10000}
	c, err := NewChainWithGenesis(rules, k1.PublicKey())
	require.NoError(t, err)

	coinbase, err := NewTransaction(TransactionData{
		Outputs:   []Output{{Value: rules.Reward(1), Pubkey: k1.PublicKey()}},
		Timestamp: uint64Ptr(0),
	})
	require.NoError(t, err)
	block := mineBlockManually(t, c, []Transaction{coinbase})

	err = c.AddBlock(block)
	assert.ErrorIs(t, err, ErrInvalidBlock)
}

func uint64Ptr(v uint64) *uint64 { return &v }
