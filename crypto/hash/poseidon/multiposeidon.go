package poseidon

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// MultiPoseidon hashes up to 256 inputs by hashing them in chunks of 16 and
// then hashing the chunk digests together.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) > 256 {
		return nil, fmt.Errorf("too many inputs")
	} else if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	// calculate chunk hashes
	hashes := []*big.Int{}
	chunk := []*big.Int{}
	for _, input := range inputs {
		if len(chunk) == 16 {
			hash, err := poseidon.Hash(chunk)
			if err != nil {
				return nil, err
			}
			hashes = append(hashes, hash)
			chunk = []*big.Int{}
		}
		chunk = append(chunk, input)
	}
	// if the final chunk is not empty, hash it to get the last chunk hash
	if len(chunk) > 0 {
		hash, err := poseidon.Hash(chunk)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	// if there is only one chunk hash, return it
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	// return the hash of all chunk hashes
	return poseidon.Hash(hashes)
}

// Hash computes the personalized Poseidon hash of the given field elements.
// The domain is absorbed as the first input so that every use of the hash
// lives in its own output space. It panics only on more than 255 inputs,
// which no caller in this module produces.
func Hash(domain Domain, inputs ...fr.Element) fr.Element {
	bigs := make([]*big.Int, 0, len(inputs)+1)
	bigs = append(bigs, domain.element())
	for i := range inputs {
		bigs = append(bigs, inputs[i].BigInt(new(big.Int)))
	}
	h, err := MultiPoseidon(bigs...)
	if err != nil {
		panic(fmt.Sprintf("poseidon: %v", err))
	}
	var out fr.Element
	out.SetBigInt(h)
	return out
}

// HashBytes hashes an arbitrary byte string into a field element. The bytes
// are split in 31 byte big-endian chunks (always below the field modulus) and
// the length is absorbed to separate inputs that differ only by trailing
// zeros. Inputs above 254 chunks are folded in a chain.
func HashBytes(domain Domain, data []byte) fr.Element {
	const chunkSize = 31
	elems := []fr.Element{}
	var l fr.Element
	l.SetUint64(uint64(len(data)))
	elems = append(elems, l)
	for start := 0; start < len(data); start += chunkSize {
		end := min(start+chunkSize, len(data))
		var e fr.Element
		e.SetBytes(data[start:end])
		elems = append(elems, e)
	}
	acc := Hash(domain, elems[:min(len(elems), 254)]...)
	for rest := elems[min(len(elems), 254):]; len(rest) > 0; {
		n := min(len(rest), 253)
		acc = Hash(domain, append([]fr.Element{acc}, rest[:n]...)...)
		rest = rest[n:]
	}
	return acc
}
