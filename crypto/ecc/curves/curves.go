package curves

import (
	"fmt"

	"github.com/vocdoni/vocdoni-z-shielded/crypto/ecc"
	bjj "github.com/vocdoni/vocdoni-z-shielded/crypto/ecc/bjj_gnark"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/ecc/bn254"
)

const (
	CurveTypeBabyJubJub = bjj.CurveType
	CurveTypeBN254      = bn254.CurveType
)

// New creates a new instance of a Curve implementation based on the provided type string.
// The supported types are defined as constants in this package.
// If the type is not supported, it will panic.
func New(curveType string) ecc.Point {
	switch curveType {
	case CurveTypeBabyJubJub:
		return bjj.New()
	case CurveTypeBN254:
		return bn254.New()
	default:
		panic(fmt.Sprintf("unsupported curve type: %s", curveType))
	}
}

// IsValid reports whether the curve type is supported by New.
func IsValid(curveType string) bool {
	switch curveType {
	case CurveTypeBabyJubJub, CurveTypeBN254:
		return true
	}
	return false
}
