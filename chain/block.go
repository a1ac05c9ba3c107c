package chain

import "github.com/pkg/errors"

// BlockData and Block follow blockchain/block.go's Block (Hash, Data,
// PrevHash, Nonce) idiom, adapted to a flat top_hash commitment in place of
// blockchain/merkle.go's balanced Merkle tree: TopHash is the SHA-256 of the
// concatenation of every transaction hash, in order, with no pairing or
// duplication step.

// BlockData is the unsigned payload of a Block.
type BlockData struct {
	PrevHash     Hash
	Nonce        uint32
	TopHash      Hash
	Transactions []Transaction
}

// Block pairs a BlockData payload with the hash that commits to it.
type Block struct {
	Hash Hash
	Data BlockData
}

// NewBlock canonically encodes data and hashes the result to produce a
// Block. It does not compute TopHash; callers assemble TopHash via
// ComputeTopHash before calling NewBlock, the same order the Miner follows
// when it finds a satisfying nonce.
func NewBlock(data BlockData) (Block, error) {
	encoded, err := data.MarshalBinary()
	if err != nil {
		return Block{}, errors.Wrap(err, "encode block data")
	}
	return Block{Hash: NewHash(encoded), Data: data}, nil
}

// IsHashValid reports whether b.Hash actually commits to b.Data.
func (b Block) IsHashValid() bool {
	encoded, err := b.Data.MarshalBinary()
	if err != nil {
		return false
	}
	return NewHash(encoded) == b.Hash
}

// ComputeTopHash derives the top_hash for a set of transactions: SHA-256 of
// the concatenation of their hashes, in order.
func ComputeTopHash(txs []Transaction) Hash {
	buf := make([]byte, 0, len(txs)*HashSize)
	for _, tx := range txs {
		buf = append(buf, tx.Hash[:]...)
	}
	return NewHash(buf)
}

// IsTopHashValid reports whether d.TopHash actually commits to d.Transactions.
func (d BlockData) IsTopHashValid() bool {
	return ComputeTopHash(d.Transactions) == d.TopHash
}

// MarshalBinary implements the canonical encoding of BlockData: PrevHash (32
// bytes), Nonce (4 bytes little-endian), TopHash (32 bytes), then a
// length-prefixed sequence of canonically-encoded Transactions.
func (d BlockData) MarshalBinary() ([]byte, error) {
	e := &encBuf{}
	e.writeBytes(d.PrevHash[:])
	e.writeUint32(d.Nonce)
	e.writeBytes(d.TopHash[:])
	e.writeLenPrefix(len(d.Transactions))
	for _, tx := range d.Transactions {
		txBytes, err := tx.MarshalBinary()
		if err != nil {
			return nil, errors.Wrap(err, "encode block transaction")
		}
		e.writeBytes(txBytes)
	}
	return e.buf, nil
}

// UnmarshalBinary implements the canonical decoding of BlockData.
func (d *BlockData) UnmarshalBinary(data []byte) error {
	c := newDecCursor(data)
	return d.decodeFromCursor(c)
}

// decodeFromCursor decodes BlockData starting at c's current position,
// advancing c past exactly the bytes it consumed.
func (d *BlockData) decodeFromCursor(c *decCursor) error {
	prevHash, err := c.readFixed(HashSize)
	if err != nil {
		return errors.Wrap(err, "block data: prev hash")
	}
	nonce, err := c.readUint32()
	if err != nil {
		return errors.Wrap(err, "block data: nonce")
	}
	topHash, err := c.readFixed(HashSize)
	if err != nil {
		return errors.Wrap(err, "block data: top hash")
	}
	txCount, err := c.readLenPrefix()
	if err != nil {
		return errors.Wrap(err, "block data: transactions length")
	}
	txs := make([]Transaction, 0, txCount)
	for i := 0; i < txCount; i++ {
		var tx Transaction
		if err := tx.decodeFromCursor(c); err != nil {
			return errors.Wrapf(err, "block data: transaction %d", i)
		}
		txs = append(txs, tx)
	}
	d.PrevHash = prevHash
	d.Nonce = nonce
	d.TopHash = topHash
	d.Transactions = txs
	return nil
}

// MarshalBinary implements the canonical encoding of a Block: the 32-byte
// hash followed by the canonical encoding of Data. This is the form stored
// one-after-another in the persisted chain file (see the store package).
func (b Block) MarshalBinary() ([]byte, error) {
	dataBytes, err := b.Data.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, HashSize+len(dataBytes))
	out = append(out, b.Hash[:]...)
	out = append(out, dataBytes...)
	return out, nil
}

// UnmarshalBinary implements the canonical decoding of a Block.
func (b *Block) UnmarshalBinary(data []byte) error {
	c := newDecCursor(data)
	return b.decodeFromCursor(c)
}

// decodeFromCursor decodes a Block starting at c's current position,
// advancing c past exactly the bytes it consumed. Used by
// Block.UnmarshalBinary.
func (b *Block) decodeFromCursor(c *decCursor) error {
	hash, err := c.readFixed(HashSize)
	if err != nil {
		return errors.Wrap(err, "block: hash")
	}
	var d BlockData
	if err := d.decodeFromCursor(c); err != nil {
		return errors.Wrap(err, "block: data")
	}
	b.Hash = hash
	b.Data = d
	return nil
}
