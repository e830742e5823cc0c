package api

import (
	"github.com/vocdoni/vocdoni-z-shielded/state"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

// Transaction is the request to submit a transaction, encoded with
// transaction.MarshalBinary.
type Transaction struct {
	Data types.HexBytes `json:"data"`
}

// TransactionResponse is the response to a transaction submission.
type TransactionResponse struct {
	ID types.HexBytes `json:"id"`
}

// Snapshot is a committed state of the commitment accumulator. Field
// elements are encoded as 32 byte little-endian.
type Snapshot struct {
	Root       types.HexBytes `json:"root"`
	Size       uint64         `json:"size"`
	Generation uint64         `json:"generation"`
	Depth      int            `json:"depth"`
}

// Path is the membership path of a commitment and the snapshot it was read
// from.
type Path struct {
	Position uint64           `json:"position"`
	Leaf     types.HexBytes   `json:"leaf"`
	Siblings []types.HexBytes `json:"siblings"`
	Snapshot Snapshot         `json:"snapshot"`
}

// Anchor is the response to an anchor check.
type Anchor struct {
	Root  types.HexBytes `json:"root"`
	Valid bool           `json:"valid"`
}

// Nullifier is the spent status of a nullifier.
type Nullifier struct {
	Nullifier types.HexBytes        `json:"nullifier"`
	Spent     bool                  `json:"spent"`
	Proof     *state.NullifierProof `json:"proof"`
}
