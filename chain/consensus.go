package chain

import (
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"
)

// TargetSize is the width in bytes of a Target, the same 256-bit width as
// blockchain/proof.go's big.Int difficulty threshold.
const TargetSize = 32

// Target is a 256-bit upper bound that a block hash must not numerically
// exceed to satisfy proof of work. Unlike every other fixed-width value in
// this package, Target's binary form is big-endian — it is the one
// documented exception to the canonical encoding's little-endian rule,
// because it is compared as a big-endian integer against a block hash's raw
// bytes (see ValidateTarget), matching blockchain/proof.go's
// big.Int.SetBytes(hash[:]) comparison against a big.Int target.
type Target [TargetSize]byte

// MaxTarget is the loosest possible target: every hash satisfies it.
func MaxTarget() Target {
	var t Target
	for i := range t {
		t[i] = 0xff
	}
	return t
}

// TargetFromLeadingZeroBits builds a target equivalent to
// blockchain/proof.go's Difficulty constant, generalized from a left-shifted
// power of two to the maximum 256-bit value right-shifted by bits, so a
// satisfying hash must have at least bits leading zero bits.
func TargetFromLeadingZeroBits(bits int) Target {
	if bits <= 0 {
		return MaxTarget()
	}
	if bits >= 256 {
		return Target{}
	}
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	max.Sub(max, big.NewInt(1))
	max.Rsh(max, uint(bits))
	var t Target
	b := max.Bytes()
	copy(t[TargetSize-len(b):], b)
	return t
}

// String renders the target as 0x-prefixed big-endian hex.
func (t Target) String() string {
	return "0x" + hex.EncodeToString(t[:])
}

// MarshalJSON implements the self-describing textual form: 0x-prefixed hex.
func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the self-describing textual form: 0x-prefixed hex.
func (t *Target) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return errors.Wrap(ErrInvalidHex, err.Error())
	}
	if len(b) != TargetSize {
		return errors.Wrapf(ErrInvalidHex, "target: want %d bytes, got %d", TargetSize, len(b))
	}
	copy(t[:], b)
	return nil
}

// MarshalBinary implements the dense binary form: 32 big-endian bytes.
func (t Target) MarshalBinary() ([]byte, error) {
	out := make([]byte, TargetSize)
	copy(out, t[:])
	return out, nil
}

// UnmarshalBinary implements the dense binary form: 32 big-endian bytes.
func (t *Target) UnmarshalBinary(data []byte) error {
	if len(data) != TargetSize {
		return errors.Wrapf(ErrInvalidLength, "target: want %d bytes, got %d", TargetSize, len(data))
	}
	copy(t[:], data)
	return nil
}

// Satisfies reports whether h, read as a big-endian unsigned integer, is
// less than or equal to t.
func (t Target) Satisfies(h Hash) bool {
	hv := new(big.Int).SetBytes(h[:])
	tv := new(big.Int).SetBytes(t[:])
	return hv.Cmp(tv) <= 0
}

// HalvingKind selects how the block reward decays with height, letting
// ConsensusRules.Reward express a decaying issuance curve instead of a flat
// constant one.
type HalvingKind int

const (
	// HalvingNone means the reward never halves: every block pays BaseCoins.
	HalvingNone HalvingKind = iota
	// HalvingEvery means the reward at height H is BaseCoins divided by
	// (H/Period + 1), so it steps down once every Period blocks.
	HalvingEvery
	// HalvingInf means the reward is paid only at the genesis block and is
	// zero thereafter (a fixed, non-inflationary supply).
	HalvingInf
)

// Halving describes the reward decay schedule. Period is meaningful only
// when Kind is HalvingEvery.
type Halving struct {
	Kind   HalvingKind
	Period uint64
}

// Validate reports whether h is well-formed: HalvingEvery with a zero
// period is invalid and must be rejected at construction.
func (h Halving) Validate() error {
	if h.Kind == HalvingEvery && h.Period == 0 {
		return errors.New("halving: Every period must be greater than zero")
	}
	return nil
}

// ConsensusRules is the set of parameters a Chain validates blocks against:
// the proof-of-work target, the base block reward, and its halving
// schedule.
type ConsensusRules struct {
	Target    Target
	BaseCoins uint64
	Halving   Halving
}

// DefaultConsensusRules returns permissive rules suitable for local testing:
// the loosest possible target (every hash satisfies it) and no halving.
func DefaultConsensusRules() ConsensusRules {
	return ConsensusRules{
		Target:    MaxTarget(),
		BaseCoins: 100,
		Halving:   Halving{Kind: HalvingNone},
	}
}

// Reward returns the base block subsidy for a block at the given height
// (the genesis block is height 0).
func (r ConsensusRules) Reward(height uint64) uint64 {
	switch r.Halving.Kind {
	case HalvingInf:
		if height == 0 {
			return r.BaseCoins
		}
		return 0
	case HalvingEvery:
		if r.Halving.Period == 0 {
			return r.BaseCoins
		}
		// reward(H) = base_coins / ((H/period) + 1), plain integer division —
		// not a bit-shift halving (the two agree only while height < 2*period).
		divisor := height/r.Halving.Period + 1
		return r.BaseCoins / divisor
	default:
		return r.BaseCoins
	}
}

// ValidateTarget reports whether a block's hash satisfies r.Target.
func (r ConsensusRules) ValidateTarget(h Hash) bool {
	return r.Target.Satisfies(h)
}

// MarshalBinary implements the canonical encoding of ConsensusRules: Target
// (32 bytes big-endian), BaseCoins (8 bytes little-endian), then the
// Halving tag (1 byte: 0=None, 1=Every, 2=Inf) and, for Every, its Period (8
// bytes little-endian).
func (r ConsensusRules) MarshalBinary() ([]byte, error) {
	e := &encBuf{}
	e.writeBytes(r.Target[:])
	e.writeUint64(r.BaseCoins)
	switch r.Halving.Kind {
	case HalvingNone:
		e.writeByte(0)
	case HalvingEvery:
		e.writeByte(1)
		e.writeUint64(r.Halving.Period)
	case HalvingInf:
		e.writeByte(2)
	default:
		return nil, errors.Errorf("consensus rules: unknown halving kind %d", r.Halving.Kind)
	}
	return e.buf, nil
}

// UnmarshalBinary implements the canonical decoding of ConsensusRules.
func (r *ConsensusRules) UnmarshalBinary(data []byte) error {
	c := newDecCursor(data)
	targetBytes, err := c.take(TargetSize)
	if err != nil {
		return errors.Wrap(err, "consensus rules: target")
	}
	var target Target
	copy(target[:], targetBytes)

	base, err := c.readUint64()
	if err != nil {
		return errors.Wrap(err, "consensus rules: base coins")
	}

	tag, err := c.readByte()
	if err != nil {
		return errors.Wrap(err, "consensus rules: halving tag")
	}
	var halving Halving
	switch tag {
	case 0:
		halving = Halving{Kind: HalvingNone}
	case 1:
		period, err := c.readUint64()
		if err != nil {
			return errors.Wrap(err, "consensus rules: halving period")
		}
		halving = Halving{Kind: HalvingEvery, Period: period}
	case 2:
		halving = Halving{Kind: HalvingInf}
	default:
		return errors.Wrapf(ErrInvalidLength, "consensus rules: invalid halving tag %d", tag)
	}
	if err := halving.Validate(); err != nil {
		return errors.Wrap(err, "consensus rules")
	}

	r.Target = target
	r.BaseCoins = base
	r.Halving = halving
	return nil
}
