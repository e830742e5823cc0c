package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

// currentSnapshot returns the current snapshot of the commitment accumulator.
func (a *API) currentSnapshot(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, a.snapshot(a.state.Snapshot()))
}

func (a *API) snapshot(snap accumulator.Snapshot) Snapshot {
	root := crypto.ElementToLE(snap.Root)
	return Snapshot{
		Root:       root[:],
		Size:       snap.Size,
		Generation: snap.Generation,
		Depth:      a.state.Accumulator().Depth(),
	}
}

// commitmentPath returns the membership path of the leaf at the requested position,
// read from a single snapshot.
func (a *API) commitmentPath(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.ParseUint(chi.URLParam(r, PositionURLParam), 10, 64)
	if err != nil {
		ErrMalformedPosition.WithErr(err).Write(w)
		return
	}
	path, snap, err := a.state.Path(position)
	if err != nil {
		if errors.Is(err, accumulator.ErrInvalidPosition) {
			ErrPositionNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	leaf, err := a.state.Accumulator().Leaf(position)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	leafBytes := crypto.ElementToLE(leaf)
	res := &Path{
		Position: path.Position,
		Leaf:     leafBytes[:],
		Snapshot: a.snapshot(snap),
	}
	for _, s := range crypto.ElementsToLE(path.Siblings) {
		res.Siblings = append(res.Siblings, types.HexBytes(s))
	}
	httpWriteJSON(w, res)
}

// anchor reports whether a root is a valid anchor for new transactions.
func (a *API) anchor(w http.ResponseWriter, r *http.Request) {
	root, ok := urlElement(w, r, RootURLParam)
	if !ok {
		return
	}
	valid, err := a.state.IsAnchor(root)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	rootBytes := crypto.ElementToLE(root)
	httpWriteJSON(w, &Anchor{Root: rootBytes[:], Valid: valid})
}

// nullifier returns whether a nullifier is spent, with the proof of it
// against the spent set root.
func (a *API) nullifier(w http.ResponseWriter, r *http.Request) {
	nf, ok := urlElement(w, r, NullifierURLParam)
	if !ok {
		return
	}
	spent, err := a.state.IsSpent(nf)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	proof, err := a.state.NullifierProof(nf)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	nfBytes := crypto.ElementToLE(nf)
	httpWriteJSON(w, &Nullifier{Nullifier: nfBytes[:], Spent: spent, Proof: proof})
}
