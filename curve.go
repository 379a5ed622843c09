package fidokey

import (
	"crypto/elliptic"
	"math/big"
	"sync"
)

// secp160r1 domain parameters (SEC 2 recommended 160-bit curve), the
// curve the original firmware's vendor micro-ecc library was
// configured with (see original_source/programme/main.c's 21-byte
// private key / 40-byte public key / 40-byte signature field sizes,
// which are exactly one padding byte plus two 20-byte coordinates over
// a 160-bit prime field). crypto/elliptic.CurveParams implements the
// generic (non-constant-time) Weierstrass group law needed for a
// non-stdlib curve like this one.
var (
	secp160r1Once   sync.Once
	secp160r1Params *elliptic.CurveParams
)

func secp160r1() *elliptic.CurveParams {
	secp160r1Once.Do(func() {
		p := new(elliptic.CurveParams)
		p.Name = "secp160r1"
		p.BitSize = 161
		p.P, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF7FFFFFFF", 16)
		p.N, _ = new(big.Int).SetString("0100000000000000000001F4C8F927AED3CA752257", 16)
		p.B, _ = new(big.Int).SetString("1C97BEFC54BD7A8B65ACF89F81D4D4ADC565FA45", 16)
		p.Gx, _ = new(big.Int).SetString("4A96B5688EF573284664698968C38BB913CBFC82", 16)
		p.Gy, _ = new(big.Int).SetString("23A628553168947D59DCC912042351377AC5FB32", 16)
		secp160r1Params = p
	})
	return secp160r1Params
}

// coordSize is the byte width of one field element (curve P is exactly
// 160 bits).
const coordSize = 20

// scalarSize is the byte width needed to hold a scalar reduced mod the
// curve order N without truncation. N exceeds 2^160 by about 2.4e24, so
// it needs 161 bits — one byte wider than a field element — and a
// scalar encoded in only coordSize bytes would silently lose its top
// bit whenever it falls in [2^160, N), about 1.6e-24 of all scalars.
const scalarSize = 21

func bigIntToFixed(x *big.Int, size int) []byte {
	out := make([]byte, size)
	b := x.Bytes()
	if len(b) > size {
		b = b[len(b)-size:]
	}
	copy(out[size-len(b):], b)
	return out
}
