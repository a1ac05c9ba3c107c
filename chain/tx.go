package chain

import "github.com/pkg/errors"

// Input, Output, TransactionData, and Transaction are generalized from
// blockchain/transaction.go's ECDSA-signed Sign/Verify pair to Ed25519 via
// KeyPair/PublicKey/Signature.

// Input references a prior transaction's output by hash and index, together
// with the signature authorizing its spend.
type Input struct {
	PrevTxHash  Hash
	OutputIndex uint32
	Signature   Signature
}

// Output assigns value to the holder of a public key.
type Output struct {
	Value  uint64
	Pubkey PublicKey
}

// TransactionData is the signed payload of a Transaction: its inputs,
// outputs, and an optional timestamp. Coinbase transactions carry a
// timestamp (see Miner); regular transactions built by a wallet do not.
type TransactionData struct {
	Inputs    []Input
	Outputs   []Output
	Timestamp *uint64
}

// Transaction pairs a TransactionData payload with the hash that commits to
// it. The hash is computed over the canonical encoding of Data alone, never
// over Hash itself, mirroring blockchain/transaction.go's Hash method
// (clear ID, serialize, hash) but using the canonical codec instead of gob.
type Transaction struct {
	Hash Hash
	Data TransactionData
}

// NewTransaction canonically encodes data and hashes the result to produce
// a Transaction.
func NewTransaction(data TransactionData) (Transaction, error) {
	encoded, err := data.MarshalBinary()
	if err != nil {
		return Transaction{}, errors.Wrap(err, "encode transaction data")
	}
	return Transaction{Hash: NewHash(encoded), Data: data}, nil
}

// IsHashValid reports whether tx.Hash actually commits to tx.Data.
func (tx Transaction) IsHashValid() bool {
	encoded, err := tx.Data.MarshalBinary()
	if err != nil {
		return false
	}
	return NewHash(encoded) == tx.Hash
}

// IsCoinbase reports whether tx has no inputs, the defining property of a
// block reward transaction (blockchain/transaction.go's IsCoinbase instead
// inspects a sentinel input; the empty-inputs rule is used here instead).
func (tx Transaction) IsCoinbase() bool {
	return len(tx.Data.Inputs) == 0
}

// MarshalBinary implements the canonical encoding of TransactionData:
// length-prefixed Inputs, length-prefixed Outputs, Option<u64> Timestamp.
func (d TransactionData) MarshalBinary() ([]byte, error) {
	e := &encBuf{}
	e.writeLenPrefix(len(d.Inputs))
	for _, in := range d.Inputs {
		e.writeBytes(in.PrevTxHash[:])
		e.writeUint32(in.OutputIndex)
		e.writeBytes(in.Signature[:])
	}
	e.writeLenPrefix(len(d.Outputs))
	for _, out := range d.Outputs {
		e.writeUint64(out.Value)
		e.writeBytes(out.Pubkey[:])
	}
	e.writeOption(d.Timestamp != nil, func() {
		e.writeUint64(*d.Timestamp)
	})
	return e.buf, nil
}

// UnmarshalBinary implements the canonical decoding of TransactionData.
func (d *TransactionData) UnmarshalBinary(data []byte) error {
	c := newDecCursor(data)
	return d.decodeFromCursor(c)
}

// decodeFromCursor decodes TransactionData starting at c's current
// position, advancing c past exactly the bytes it consumed. Used both by
// UnmarshalBinary and by Transaction.decodeFromCursor, which must decode a
// run of transactions back-to-back without knowing each one's length ahead
// of time.
func (d *TransactionData) decodeFromCursor(c *decCursor) error {
	inCount, err := c.readLenPrefix()
	if err != nil {
		return errors.Wrap(err, "transaction data: inputs length")
	}
	var inputs []Input
	if inCount > 0 {
		inputs = make([]Input, 0, inCount)
	}
	for i := 0; i < inCount; i++ {
		hash, err := c.readFixed(HashSize)
		if err != nil {
			return errors.Wrap(err, "transaction data: input prev hash")
		}
		idx, err := c.readUint32()
		if err != nil {
			return errors.Wrap(err, "transaction data: input index")
		}
		sigBytes, err := c.take(SignatureSize)
		if err != nil {
			return errors.Wrap(err, "transaction data: input signature")
		}
		var sig Signature
		copy(sig[:], sigBytes)
		inputs = append(inputs, Input{PrevTxHash: hash, OutputIndex: idx, Signature: sig})
	}

	outCount, err := c.readLenPrefix()
	if err != nil {
		return errors.Wrap(err, "transaction data: outputs length")
	}
	var outputs []Output
	if outCount > 0 {
		outputs = make([]Output, 0, outCount)
	}
	for i := 0; i < outCount; i++ {
		value, err := c.readUint64()
		if err != nil {
			return errors.Wrap(err, "transaction data: output value")
		}
		pkBytes, err := c.take(PublicKeySize)
		if err != nil {
			return errors.Wrap(err, "transaction data: output pubkey")
		}
		var pk PublicKey
		copy(pk[:], pkBytes)
		outputs = append(outputs, Output{Value: value, Pubkey: pk})
	}

	var timestamp *uint64
	_, err = c.readOption(func() error {
		ts, err := c.readUint64()
		if err != nil {
			return err
		}
		timestamp = &ts
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "transaction data: timestamp")
	}

	d.Inputs = inputs
	d.Outputs = outputs
	d.Timestamp = timestamp
	return nil
}

// MarshalBinary implements the canonical encoding of a Transaction as it is
// embedded inside a Block: the 32-byte hash followed by the canonical
// encoding of Data.
func (tx Transaction) MarshalBinary() ([]byte, error) {
	dataBytes, err := tx.Data.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, HashSize+len(dataBytes))
	out = append(out, tx.Hash[:]...)
	out = append(out, dataBytes...)
	return out, nil
}

// UnmarshalBinary implements the canonical decoding of an embedded
// Transaction. It does not re-derive or validate the hash; callers that need
// that guarantee call IsHashValid separately.
func (tx *Transaction) UnmarshalBinary(data []byte) error {
	c := newDecCursor(data)
	return tx.decodeFromCursor(c)
}

// decodeFromCursor decodes a Transaction starting at c's current position,
// advancing c past exactly the bytes it consumed.
func (tx *Transaction) decodeFromCursor(c *decCursor) error {
	hash, err := c.readFixed(HashSize)
	if err != nil {
		return errors.Wrap(err, "transaction: hash")
	}
	var d TransactionData
	if err := d.decodeFromCursor(c); err != nil {
		return errors.Wrap(err, "transaction: data")
	}
	tx.Hash = hash
	tx.Data = d
	return nil
}
