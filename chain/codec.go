package chain

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// This file holds the shared primitives for the canonical binary encoding
// used to derive hashes and to persist chain state: little-endian
// throughout except Target (big-endian, documented in consensus.go), u64
// length prefixes ahead of variable-length sequences, and an Option<T>
// encoded as a one-byte presence tag followed by T when present. This
// layout must stay bit-identical across independent implementations of
// this ledger, since two implementations computing different bytes for the
// same value would disagree on every hash derived from it.
//
// encoding/binary is used deliberately here instead of a reflective codec
// (gob, protobuf, msgpack) because the hash of a value must match bit-for-bit
// across independent implementations of this ledger; see DESIGN.md.

// encBuf is a small append-only byte builder for canonical encoding.
type encBuf struct {
	buf []byte
}

func (e *encBuf) writeByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *encBuf) writeBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *encBuf) writeUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.writeBytes(b[:])
}

func (e *encBuf) writeUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.writeBytes(b[:])
}

// writeLenPrefix writes the u64 little-endian length prefix that precedes
// every variable-length sequence in the canonical encoding.
func (e *encBuf) writeLenPrefix(n int) {
	e.writeUint64(uint64(n))
}

// writeOption writes the one-byte presence tag, then calls write() if the
// value exists.
func (e *encBuf) writeOption(present bool, write func()) {
	if present {
		e.writeByte(1)
		write()
		return
	}
	e.writeByte(0)
}

// decCursor is a read cursor over a canonical-encoded byte slice.
type decCursor struct {
	buf []byte
	pos int
}

func newDecCursor(b []byte) *decCursor {
	return &decCursor{buf: b}
}

func (d *decCursor) remaining() int {
	return len(d.buf) - d.pos
}

func (d *decCursor) take(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, errors.Wrapf(ErrInvalidLength, "canonical decode: need %d bytes, have %d", n, d.remaining())
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decCursor) readByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decCursor) readUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decCursor) readUint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readLenPrefix reads a u64 length prefix and range-checks it against a
// sane upper bound so a corrupt file cannot trigger an enormous allocation.
func (d *decCursor) readLenPrefix() (int, error) {
	n, err := d.readUint64()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, errors.Wrapf(ErrInvalidLength, "canonical decode: implausible sequence length %d", n)
	}
	return int(n), nil
}

// readOption reads the presence tag and, if set, calls read.
func (d *decCursor) readOption(read func() error) (bool, error) {
	tag, err := d.readByte()
	if err != nil {
		return false, err
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		if err := read(); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, errors.Wrapf(ErrInvalidLength, "canonical decode: invalid option tag %d", tag)
	}
}

func (d *decCursor) readFixed(n int) (Hash, error) {
	var h Hash
	b, err := d.take(n)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}
