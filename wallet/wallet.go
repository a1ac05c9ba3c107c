// Package wallet manages a single Ed25519 key pair on disk and the helpers
// needed to check its balance and build spending transactions. Grounded on
// wallet/wallets.go's gob-encoded key file IO, narrowed from a multi-address
// Wallets map to one KeyPair per file.
package wallet

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/pkg/errors"

	"github.com/golang-blockchain/chain"
)

// ErrInsufficientFunds is returned by BuildTransaction when the selected
// key's UTXOs do not cover the requested value.
var ErrInsufficientFunds = errors.New("insufficient funds")

// keyFile is the gob-serialized form written to disk. It stores only the
// 32-byte secret seed, matching wallet/wallet.go's GobEncode/GobDecode
// pattern of persisting the minimal secret and re-deriving everything else
// on load.
type keyFile struct {
	Seed [32]byte
}

// Generate creates a new key pair and writes it to path, refusing to
// overwrite an existing file.
func Generate(path string) (chain.KeyPair, error) {
	if _, err := os.Stat(path); err == nil {
		return chain.KeyPair{}, errors.Errorf("key file already exists: %s", path)
	}
	kp, err := chain.NewKeyPair()
	if err != nil {
		return chain.KeyPair{}, errors.Wrap(err, "generate key pair")
	}
	if err := Save(path, kp); err != nil {
		return chain.KeyPair{}, err
	}
	return kp, nil
}

// Save gob-encodes kp's binary form (its 32-byte seed) to path.
func Save(path string, kp chain.KeyPair) error {
	seed, err := kp.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode key pair")
	}
	var kf keyFile
	copy(kf.Seed[:], seed)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(kf); err != nil {
		return errors.Wrap(err, "gob-encode key file")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "write key file")
	}
	return nil
}

// Load reads and decodes the key pair stored at path.
func Load(path string) (chain.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chain.KeyPair{}, errors.Wrap(err, "read key file")
	}
	var kf keyFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&kf); err != nil {
		return chain.KeyPair{}, errors.Wrap(err, "gob-decode key file")
	}
	kp, err := chain.KeyPairFromSeed(kf.Seed[:])
	if err != nil {
		return chain.KeyPair{}, errors.Wrap(err, "reconstruct key pair")
	}
	return kp, nil
}

// Balance sums the value of every UTXO in pool payable to kp's public key.
func Balance(pool *chain.UtxoPool, kp chain.KeyPair) uint64 {
	return pool.Balance(kp.PublicKey())
}

// BuildTransaction selects UTXOs payable to kp's public key covering at
// least value, spends them to recipient, and returns any change to kp
// itself. Grounded on blockchain/transaction.go's NewTransaction
// (FindSpendableOutputs, assemble inputs/outputs/change, sign).
func BuildTransaction(pool *chain.UtxoPool, kp chain.KeyPair, recipient chain.PublicKey, value uint64) (chain.Transaction, error) {
	return BuildTransactionFromUtxos(pool.Select(kp.PublicKey()), kp, recipient, value)
}

// BuildTransactionFromUtxos is BuildTransaction's pool-free counterpart,
// used by the CLI's `send`/`send-tx` commands: they only have a []chain.Utxo
// fetched from a node's GET /utxos/{addr} response (addr already scopes the
// result to kp's own key), not a live *chain.UtxoPool to select against.
func BuildTransactionFromUtxos(candidates []chain.Utxo, kp chain.KeyPair, recipient chain.PublicKey, value uint64) (chain.Transaction, error) {
	var selected []chain.Utxo
	var total uint64
	for _, u := range candidates {
		selected = append(selected, u)
		total += u.Value
		if total >= value {
			break
		}
	}
	if total < value {
		return chain.Transaction{}, ErrInsufficientFunds
	}

	outputs := []chain.Output{{Value: value, Pubkey: recipient}}
	if change := total - value; change > 0 {
		outputs = append(outputs, chain.Output{Value: change, Pubkey: kp.PublicKey()})
	}

	unsignedInputs := make([]chain.Input, len(selected))
	for i, u := range selected {
		unsignedInputs[i] = chain.Input{PrevTxHash: u.TxHash, OutputIndex: u.OutputIndex}
	}
	data := chain.TransactionData{Inputs: unsignedInputs, Outputs: outputs}

	for i := range data.Inputs {
		digest := data.Inputs[i].PrevTxHash.Digest()
		data.Inputs[i].Signature = kp.Sign(digest[:])
	}

	return chain.NewTransaction(data)
}
