// Package config holds the process-wide protocol parameters and the node
// defaults. Parameters are built once and then shared read-only by pointer.
package config

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/ecc/bn254"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

var (
	// ValueBaseDST is the hash-to-curve tag of the value blinding generator R.
	ValueBaseDST = []byte("SHIELDED-V1-BN254G1_XMD:SHA-256_SVDW_RO_ValueBase")
	// KindDST is the hash-to-curve tag of the per kind value generators.
	KindDST = []byte("SHIELDED-V1-BN254G1_XMD:SHA-256_SVDW_RO_ValueKind")
	// BindingChallengeDST is the hash-to-field tag of the binding signature
	// challenge.
	BindingChallengeDST = []byte("SHIELDED-V1-BindingSig")

	// kindCacheSize bounds the number of memoized kind generators.
	kindCacheSize = 1024
)

// Params are the immutable cryptographic parameters of the protocol. They
// must not be modified after construction.
type Params struct {
	// TreeDepth is the depth of the resource commitment accumulator.
	TreeDepth int

	valueBase *bn254.G1
	kinds     *lru.Cache[[2 * crypto.SerializedFieldSize]byte, *bn254.G1]
}

var (
	defaultParams     *Params
	defaultParamsOnce sync.Once
)

// Default returns the shared default parameters, building them on first use.
func Default() *Params {
	defaultParamsOnce.Do(func() {
		p, err := NewParams()
		if err != nil {
			panic(fmt.Sprintf("cannot build protocol parameters: %v", err))
		}
		defaultParams = p
	})
	return defaultParams
}

// NewParams derives a fresh set of parameters.
func NewParams() (*Params, error) {
	base, err := bn254.MapToGroup([]byte("value-blind"), ValueBaseDST)
	if err != nil {
		return nil, fmt.Errorf("value base: %w", err)
	}
	kinds, err := lru.New[[2 * crypto.SerializedFieldSize]byte, *bn254.G1](kindCacheSize)
	if err != nil {
		return nil, err
	}
	return &Params{
		TreeDepth: types.AccumulatorDepth,
		valueBase: base,
		kinds:     kinds,
	}, nil
}

// ValueBase returns a copy of the generator R that multiplies value blinds.
func (p *Params) ValueBase() *bn254.G1 {
	r := bn254.New()
	r.Set(p.valueBase)
	return r
}

// KindGenerator returns a copy of the value generator of the asset kind
// identified by the resource logic and label. Distinct kinds get independent
// generators so amounts of different kinds never cancel out.
func (p *Params) KindGenerator(logic, label fr.Element) (*bn254.G1, error) {
	var key [2 * crypto.SerializedFieldSize]byte
	l := crypto.ElementToLE(logic)
	b := crypto.ElementToLE(label)
	copy(key[:crypto.SerializedFieldSize], l[:])
	copy(key[crypto.SerializedFieldSize:], b[:])

	g, ok := p.kinds.Get(key)
	if !ok {
		var err error
		g, err = bn254.MapToGroup(key[:], KindDST)
		if err != nil {
			return nil, fmt.Errorf("kind generator: %w", err)
		}
		p.kinds.Add(key, g)
	}
	out := bn254.New()
	out.Set(g)
	return out, nil
}
