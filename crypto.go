package fidokey

import (
	"math/big"
)

// CryptoAdapter is the external collaborator spec §4.6 describes: key
// generation and signing over a fixed curve, parameterized by an
// EntropySource. Both operations are synchronous, side-effect-free
// with respect to the Store, and must not be called concurrently with
// themselves (the single-threaded Dispatcher already guarantees this).
type CryptoAdapter interface {
	// MakeKey generates a new key pair. ok is false if the underlying
	// primitive (ultimately the EntropySource) failed.
	MakeKey() (pub PublicKey, priv PrivateKey, ok bool)

	// Sign produces a signature over digest using priv. ok is false on
	// primitive failure.
	Sign(priv PrivateKey, digest Digest) (sig Signature, ok bool)
}

// maxNonceAttempts bounds retries when a sampled scalar reduces to zero
// mod N, or a signature component comes out zero or too wide for the
// 40-byte wire format — astronomically
// unlikely with a working EntropySource, but the loop must still
// terminate deterministically if the source is exhausted or broken.
const maxNonceAttempts = 16

// ECCAdapter implements CryptoAdapter using secp160r1 ECDSA (see
// curve.go). It is the concrete stand-in for the vendor micro-ecc
// library spec §4.6 treats as out of scope: the interface is the
// contract, this is one conforming implementation, and a cgo binding
// to the real vendor library could replace it without touching any
// caller.
type ECCAdapter struct {
	Entropy EntropySource
}

// NewECCAdapter returns an ECCAdapter drawing randomness from entropy.
func NewECCAdapter(entropy EntropySource) *ECCAdapter {
	return &ECCAdapter{Entropy: entropy}
}

func (a *ECCAdapter) randomScalar() (*big.Int, bool) {
	curve := secp160r1()
	buf := make([]byte, scalarSize)
	for attempt := 0; attempt < maxNonceAttempts; attempt++ {
		if !a.Entropy.Fill(buf) {
			return nil, false
		}
		k := new(big.Int).SetBytes(buf)
		k.Mod(k, curve.N)
		if k.Sign() != 0 {
			return k, true
		}
	}
	return nil, false
}

// MakeKey implements CryptoAdapter.
func (a *ECCAdapter) MakeKey() (PublicKey, PrivateKey, bool) {
	curve := secp160r1()

	d, ok := a.randomScalar()
	if !ok {
		return PublicKey{}, PrivateKey{}, false
	}

	qx, qy := curve.ScalarBaseMult(bigIntToFixed(d, scalarSize))

	var pub PublicKey
	copy(pub[0:coordSize], bigIntToFixed(qx, coordSize))
	copy(pub[coordSize:2*coordSize], bigIntToFixed(qy, coordSize))

	var priv PrivateKey
	copy(priv[:], bigIntToFixed(d, scalarSize))

	return pub, priv, true
}

// Sign implements CryptoAdapter.
func (a *ECCAdapter) Sign(priv PrivateKey, digest Digest) (Signature, bool) {
	curve := secp160r1()
	d := new(big.Int).SetBytes(priv[:])
	z := new(big.Int).SetBytes(digest[:])
	z.Mod(z, curve.N)

	for attempt := 0; attempt < maxNonceAttempts; attempt++ {
		k, ok := a.randomScalar()
		if !ok {
			return Signature{}, false
		}

		rx, _ := curve.ScalarBaseMult(bigIntToFixed(k, scalarSize))
		r := new(big.Int).Mod(rx, curve.N)
		if r.Sign() == 0 {
			continue
		}

		kInv := new(big.Int).ModInverse(k, curve.N)
		if kInv == nil {
			continue
		}

		s := new(big.Int).Mul(r, d)
		s.Add(s, z)
		s.Mul(s, kInv)
		s.Mod(s, curve.N)
		if s.Sign() == 0 {
			continue
		}
		// s is reduced mod N (161 bits) but the wire signature format
		// is a fixed 40 bytes (spec §3: two 20-byte components), so a
		// value in the rare top sliver of N does not fit; it is
		// discarded and signing retries with a fresh nonce.
		if s.BitLen() > coordSize*8 {
			continue
		}

		var sig Signature
		copy(sig[0:coordSize], bigIntToFixed(r, coordSize))
		copy(sig[coordSize:2*coordSize], bigIntToFixed(s, coordSize))
		return sig, true
	}
	return Signature{}, false
}

// Verify checks that sig is a valid secp160r1 ECDSA signature over
// digest by pub. It has no role in the Dispatcher's wire contract — it
// exists so the testable property in spec §8 ("sig verifies against
// pub and d") can be exercised directly, the way the teacher's
// verifier.go checks what logger.go produces.
func Verify(pub PublicKey, digest Digest, sig Signature) bool {
	curve := secp160r1()

	qx := new(big.Int).SetBytes(pub[0:coordSize])
	qy := new(big.Int).SetBytes(pub[coordSize : 2*coordSize])
	if !curve.IsOnCurve(qx, qy) {
		return false
	}

	r := new(big.Int).SetBytes(sig[0:coordSize])
	s := new(big.Int).SetBytes(sig[coordSize : 2*coordSize])
	if r.Sign() == 0 || r.Cmp(curve.N) >= 0 || s.Sign() == 0 || s.Cmp(curve.N) >= 0 {
		return false
	}

	z := new(big.Int).SetBytes(digest[:])
	z.Mod(z, curve.N)

	sInv := new(big.Int).ModInverse(s, curve.N)
	if sInv == nil {
		return false
	}
	u1 := new(big.Int).Mul(z, sInv)
	u1.Mod(u1, curve.N)
	u2 := new(big.Int).Mul(r, sInv)
	u2.Mod(u2, curve.N)

	x1, y1 := curve.ScalarBaseMult(bigIntToFixed(u1, scalarSize))
	x2, y2 := curve.ScalarMult(qx, qy, bigIntToFixed(u2, scalarSize))
	x, y := curve.Add(x1, y1, x2, y2)
	if x.Sign() == 0 && y.Sign() == 0 {
		return false
	}

	x.Mod(x, curve.N)
	return x.Cmp(r) == 0
}
