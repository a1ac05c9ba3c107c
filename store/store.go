// Package store persists a Chain to a single file, written atomically via a
// temp-file-then-rename so a crash mid-write never corrupts the previous
// good state on disk. Grounded on blockchain/blockchain.go's badger-backed
// persistence, replaced here with a flat binary image — badger's multi-file
// LSM layout has no atomic whole-database replace primitive (see
// DESIGN.md).
package store

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/golang-blockchain/chain"
)

// magic identifies a coinledger chain file and guards against loading an
// unrelated binary file.
var magic = [4]byte{'c', 'l', 'j', 1}

// ErrBadMagic is returned when a file's header does not begin with the
// expected magic bytes.
var ErrBadMagic = errors.New("not a coinledger chain file")

// Save writes the full state of c to path: a Chain header (magic,
// ConsensusRules) followed by a length-prefixed sequence of canonically
// encoded blocks. It writes to a temporary file in the same directory and
// renames it over path, so a reader never observes a partially written
// file.
func Save(path string, c *chain.Chain) error {
	buf := make([]byte, 0, 4)
	buf = append(buf, magic[:]...)

	rulesBytes, err := c.Rules.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode consensus rules")
	}
	buf = appendUint64(buf, uint64(len(rulesBytes)))
	buf = append(buf, rulesBytes...)

	buf = appendUint64(buf, uint64(len(c.Blockchain.Blocks)))
	for i, b := range c.Blockchain.Blocks {
		blockBytes, err := b.MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "encode block %d", i)
		}
		buf = appendUint64(buf, uint64(len(blockBytes)))
		buf = append(buf, blockBytes...)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".coinledger-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "replace chain file")
	}
	return nil
}

// Load reads a chain file written by Save and reconstructs a Chain,
// rebuilding its UTXO pool by replaying every block in order.
func Load(path string) (*chain.Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read chain file")
	}
	if len(data) < 4 || [4]byte{data[0], data[1], data[2], data[3]} != magic {
		return nil, ErrBadMagic
	}
	pos := 4

	rulesLen, pos, err := readUint64(data, pos)
	if err != nil {
		return nil, errors.Wrap(err, "read consensus rules length")
	}
	if pos+int(rulesLen) > len(data) {
		return nil, errors.New("truncated chain file: consensus rules")
	}
	var rules chain.ConsensusRules
	if err := rules.UnmarshalBinary(data[pos : pos+int(rulesLen)]); err != nil {
		return nil, errors.Wrap(err, "decode consensus rules")
	}
	pos += int(rulesLen)

	blockCount, pos, err := readUint64(data, pos)
	if err != nil {
		return nil, errors.Wrap(err, "read block count")
	}

	c := chain.NewChain(rules)
	for i := uint64(0); i < blockCount; i++ {
		blockLen, next, err := readUint64(data, pos)
		if err != nil {
			return nil, errors.Wrapf(err, "read block %d length", i)
		}
		pos = next
		if pos+int(blockLen) > len(data) {
			return nil, errors.Errorf("truncated chain file: block %d", i)
		}
		var b chain.Block
		if err := b.UnmarshalBinary(data[pos : pos+int(blockLen)]); err != nil {
			return nil, errors.Wrapf(err, "decode block %d", i)
		}
		pos += int(blockLen)
		c.Blockchain.Append(b)
	}
	c.Utxos = chain.RebuildUtxoPool(c.Blockchain.Blocks, len(c.Blockchain.Blocks)-1)
	return c, nil
}

// Exists reports whether a chain file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func readUint64(data []byte, pos int) (uint64, int, error) {
	if pos+8 > len(data) {
		return 0, pos, errors.New("truncated chain file: length prefix")
	}
	return binary.LittleEndian.Uint64(data[pos : pos+8]), pos + 8, nil
}
