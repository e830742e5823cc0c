package delta

import (
	"errors"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/ecc/bn254"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

// SignatureSize is the size of an encoded binding signature.
const SignatureSize = bn254.CompressedSize + crypto.SerializedFieldSize

var (
	// ErrInvalidBindingSignature is returned when a binding signature does
	// not verify against the total delta commitment and message.
	ErrInvalidBindingSignature = errors.New("invalid binding signature")
	// ErrMalformedSignature is returned when decoding a malformed signature.
	ErrMalformedSignature = errors.New("malformed binding signature")
)

// BindingSignature is a Schnorr signature over the blinding generator R. The
// signing key is the total blind of a set of delta commitments and the
// verification key is their sum, which equals R * blind only if the committed
// quantities cancel out for every asset kind.
type BindingSignature struct {
	Nonce *bn254.G1
	S     fr.Element
}

// Sign signs msg with the total blind bsk, drawing the nonce from rnd.
func Sign(params *config.Params, bsk fr.Element, msg []byte, rnd io.Reader) (*BindingSignature, error) {
	k, err := util.ReadElement(rnd)
	if err != nil {
		return nil, fmt.Errorf("binding signature nonce: %w", err)
	}
	nonce := bn254.New()
	nonce.ScalarMult(params.ValueBase(), crypto.ElementToBig(k))
	vk := CommitBlind(params, bsk)

	ch, err := challenge(nonce, vk, msg)
	if err != nil {
		return nil, err
	}
	var s fr.Element
	s.Mul(&ch, &bsk).Add(&s, &k)
	return &BindingSignature{Nonce: nonce, S: s}, nil
}

// Verify checks sig over msg against the total delta commitment. It returns
// ErrInvalidBindingSignature if the check fails, which is the case whenever
// the committed quantities do not balance.
func Verify(params *config.Params, total *Commitment, sig *BindingSignature, msg []byte) error {
	if sig == nil || sig.Nonce == nil || total == nil {
		return ErrInvalidBindingSignature
	}
	ch, err := challenge(sig.Nonce, total, msg)
	if err != nil {
		return err
	}
	// R * s == nonce + total * c
	lhs := bn254.New()
	lhs.ScalarMult(params.ValueBase(), crypto.ElementToBig(sig.S))
	rhs := bn254.New()
	rhs.ScalarMult(total.point, crypto.ElementToBig(ch))
	rhs.Add(rhs, sig.Nonce)
	if !lhs.Equal(rhs) {
		log.Debugw("binding signature rejected", "total", total.String())
		return ErrInvalidBindingSignature
	}
	return nil
}

// challenge hashes the nonce commitment, the verification key and the message
// to a scalar.
func challenge(nonce *bn254.G1, vk *Commitment, msg []byte) (fr.Element, error) {
	data := make([]byte, 0, 2*bn254.CompressedSize+len(msg))
	data = append(data, nonce.Marshal()...)
	data = append(data, vk.Bytes()...)
	data = append(data, msg...)
	h, err := fr.Hash(data, config.BindingChallengeDST, 1)
	if err != nil {
		return fr.Element{}, fmt.Errorf("binding signature challenge: %w", err)
	}
	return h[0], nil
}

// Bytes returns the 64 byte encoding: the compressed nonce followed by the
// little-endian response.
func (sig *BindingSignature) Bytes() []byte {
	s := crypto.ElementToLE(sig.S)
	out := make([]byte, 0, SignatureSize)
	out = append(out, sig.Nonce.Marshal()...)
	return append(out, s[:]...)
}

// SetBytes decodes a signature encoded by Bytes.
func (sig *BindingSignature) SetBytes(b []byte) error {
	if len(b) != SignatureSize {
		return fmt.Errorf("%w: length %d", ErrMalformedSignature, len(b))
	}
	nonce := bn254.New()
	if err := nonce.Unmarshal(b[:bn254.CompressedSize]); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	s, err := crypto.ElementFromLE(b[bn254.CompressedSize:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	sig.Nonce, sig.S = nonce, s
	return nil
}

// MarshalCBOR encodes the signature as a byte string.
func (sig *BindingSignature) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(sig.Bytes())
}

// UnmarshalCBOR decodes a signature encoded by MarshalCBOR.
func (sig *BindingSignature) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	return sig.SetBytes(b)
}

// SumBlinds returns the sum of the blinds, the signing key of the aggregate
// of the commitments they blind.
func SumBlinds(blinds ...fr.Element) fr.Element {
	var total fr.Element
	for i := range blinds {
		total.Add(&total, &blinds[i])
	}
	return total
}
