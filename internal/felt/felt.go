// Package felt implements the felt252 field element: a 252-bit unsigned
// integer modulo the Stark prime, the native scalar type of Sierra/Cairo.
package felt

import (
	"math/big"
	"strings"
)

// Prime is the Stark field modulus: 2^251 + 17*2^192 + 1.
var Prime = mustPrime()

func mustPrime() *big.Int {
	p, ok := new(big.Int).SetString("800000000000011000000000000000000000000000000000000000000000001", 16)
	if !ok {
		panic("felt: invalid prime literal")
	}
	return p
}

// Felt is a field element, always kept reduced modulo Prime.
type Felt struct {
	v *big.Int
}

// Zero is the additive identity.
func Zero() Felt { return Felt{v: new(big.Int)} }

// FromInt64 builds a Felt from a signed int64, reducing negative values mod Prime.
func FromInt64(n int64) Felt {
	return FromBigInt(big.NewInt(n))
}

// FromBigInt reduces an arbitrary big.Int into the field.
func FromBigInt(n *big.Int) Felt {
	v := new(big.Int).Mod(n, Prime)
	return Felt{v: v}
}

// FromHex parses a "0x..." or bare hex string into a Felt.
func FromHex(s string) (Felt, bool) {
	trimmed := s
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		trimmed = s[2:]
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return Felt{}, false
	}
	return FromBigInt(n), true
}

// ParseLiteral parses a decimal or "0x"-prefixed hexadecimal integer
// literal of arbitrary magnitude into a Felt, for decoding
// const_as_immediate's generic argument (spec.md §4.1/§4.3), which may
// carry a felt252 value up to the full 252-bit range — well beyond
// strconv.ParseInt's 64-bit ceiling.
func ParseLiteral(s string) (Felt, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return FromHex(s)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Felt{}, false
	}
	return FromBigInt(n), true
}

// Add returns a+b mod Prime.
func (a Felt) Add(b Felt) Felt { return FromBigInt(new(big.Int).Add(a.big(), b.big())) }

// Sub returns a-b mod Prime.
func (a Felt) Sub(b Felt) Felt { return FromBigInt(new(big.Int).Sub(a.big(), b.big())) }

// Mul returns a*b mod Prime.
func (a Felt) Mul(b Felt) Felt { return FromBigInt(new(big.Int).Mul(a.big(), b.big())) }

// IsZero reports whether the element is the additive identity.
func (a Felt) IsZero() bool { return a.big().Sign() == 0 }

// Equal reports value equality.
func (a Felt) Equal(b Felt) bool { return a.big().Cmp(b.big()) == 0 }

// BigInt returns the underlying unsigned representative in [0, Prime).
func (a Felt) BigInt() *big.Int { return new(big.Int).Set(a.big()) }

func (a Felt) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// String renders the decimal representation.
func (a Felt) String() string { return a.big().String() }

// AsciiString decodes the element's big-endian bytes as ASCII text if every
// byte is printable (0x20-0x7e) and the byte length is at most 31, per the
// Sierra short-string convention. Returns ("", false) otherwise.
func (a Felt) AsciiString() (string, bool) {
	b := a.big().Bytes()
	if len(b) == 0 || len(b) > 31 {
		return "", false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b), true
}
