package logic

import (
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/native"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/resource"
)

// OwnershipID is the relation id of the ownership logic.
const OwnershipID = "logic/ownership"

var (
	// ErrNotOwned is returned when the witness resource is not the owned
	// resource of the public inputs.
	ErrNotOwned = errors.New("resource is not the owned resource")
	// ErrWrongLogic is returned when the witness resource is governed by
	// another logic.
	ErrWrongLogic = errors.New("resource governed by another logic")
)

func init() {
	native.Register(OwnershipID, func() native.Relation { return &Ownership{} })
}

// OwnershipKeys returns the keys of the ownership logic.
func OwnershipKeys() (*circuits.ProvingKey, *circuits.VerifyingKey) {
	pk, vk, err := native.Setup(OwnershipID)
	if err != nil {
		panic(err) // registered in init
	}
	return pk, vk
}

// OwnershipLogic returns the logic descriptor of resources governed by the
// ownership logic.
var OwnershipLogic = sync.OnceValue(func() fr.Element {
	_, vk := OwnershipKeys()
	return vk.Compress()
})

// Ownership is the native resource logic proving knowledge of the owned
// resource: the opening of its commitment if it is created, or the resource
// and its nullifier deriving key if it is consumed.
type Ownership struct {
	Resource     *resource.Resource `cbor:"0,keyasint"`
	NullifierKey []byte             `cbor:"1,keyasint,omitempty"`
}

// NewOwnership returns the witness for a created resource, or for a consumed
// one when nk is not nil.
func NewOwnership(r *resource.Resource, nk *fr.Element) *Ownership {
	o := &Ownership{Resource: r}
	if nk != nil {
		b := crypto.ElementToLE(*nk)
		o.NullifierKey = b[:]
	}
	return o
}

// RelationID implements native.Relation.
func (*Ownership) RelationID() string {
	return OwnershipID
}

// Check implements native.Relation.
func (o *Ownership) Check(_ *config.Params, public []fr.Element) error {
	if o.Resource == nil {
		return fmt.Errorf("missing resource")
	}
	in, err := Parse(public, (len(public)-1)/2)
	if err != nil {
		return err
	}
	if logic := OwnershipLogic(); !o.Resource.Logic.Equal(&logic) {
		return ErrWrongLogic
	}
	if o.NullifierKey != nil {
		nk, err := crypto.ElementFromLE(o.NullifierKey)
		if err != nil {
			return fmt.Errorf("nullifier key: %w", err)
		}
		nf, err := o.Resource.NullifierWithKey(nk)
		if err != nil {
			return err
		}
		if !nf.Equal(&in.OwnedResourceID) || !in.Consumed() {
			return ErrNotOwned
		}
		return nil
	}
	cm := o.Resource.Commitment()
	if !cm.Equal(&in.OwnedResourceID) || !in.Created() {
		return ErrNotOwned
	}
	return nil
}
