package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/api"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/processor"
	"github.com/vocdoni/vocdoni-z-shielded/state"
	"github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction/testutil"
	"github.com/vocdoni/vocdoni-z-shielded/util"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestClient(t *testing.T) {
	c := qt.New(t)
	env := testutil.NewEnv()
	stg, err := storage.New(metadb.NewTest(t))
	c.Assert(err, qt.IsNil)
	st, err := state.New(metadb.NewTest(t), env.Params)
	c.Assert(err, qt.IsNil)
	srv, err := api.New(&api.APIConfig{Host: "127.0.0.1", Port: 0, Storage: stg, State: st})
	c.Assert(err, qt.IsNil)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Close(ctx)
	}()
	proc, err := processor.New(stg, st, env.Verifier, 0, time.Second)
	c.Assert(err, qt.IsNil)

	cli, err := New("http://" + srv.Addr().String())
	c.Assert(err, qt.IsNil)

	// create a resource
	owned, err := env.NewOwned("TOKEN_A", 0)
	c.Assert(err, qt.IsNil)
	tx, created, err := env.Create(owned)
	c.Assert(err, qt.IsNil)
	id, err := cli.SubmitTransaction(tx)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.DeepEquals, tx.ID())
	_, err = cli.SubmitTransaction(tx)
	c.Assert(errors.Is(err, api.ErrTransactionAlreadyExists), qt.IsTrue)

	_, err = proc.ProcessBatch(context.Background())
	c.Assert(err, qt.IsNil)
	status, err := cli.TransactionStatus(id)
	c.Assert(err, qt.IsNil)
	c.Assert(status.Status, qt.Equals, storage.StatusAccepted)

	snap, err := cli.Accumulator()
	c.Assert(err, qt.IsNil)
	c.Assert(snap.Size, qt.Equals, uint64(1))

	// spend it with the path served by the node
	p, err := cli.Path(0)
	c.Assert(err, qt.IsNil)
	siblings := make([][]byte, len(p.Siblings))
	for i, s := range p.Siblings {
		siblings[i] = s
	}
	elements, err := crypto.ElementsFromLE(siblings)
	c.Assert(err, qt.IsNil)
	root, err := crypto.ElementFromLE(p.Snapshot.Root)
	c.Assert(err, qt.IsNil)
	valid, err := cli.Anchor(root)
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.IsTrue)
	valid, err = cli.Anchor(util.RandomElement())
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.IsFalse)

	out, err := env.NewOwned("TOKEN_A", 0)
	c.Assert(err, qt.IsNil)
	spend, _, err := env.Spend(created[0], &accumulator.Path{Position: p.Position, Siblings: elements}, root, out)
	c.Assert(err, qt.IsNil)
	id, err = cli.SubmitTransaction(spend)
	c.Assert(err, qt.IsNil)
	_, err = proc.ProcessBatch(context.Background())
	c.Assert(err, qt.IsNil)
	status, err = cli.TransactionStatus(id)
	c.Assert(err, qt.IsNil)
	c.Assert(status.Status, qt.Equals, storage.StatusAccepted)

	nf, err := created[0].Resource.NullifierWithKey(created[0].NullifierKey)
	c.Assert(err, qt.IsNil)
	res, err := cli.Nullifier(nf)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Spent, qt.IsTrue)
	c.Assert(res.Proof.Verify(), qt.IsTrue)

	_, err = cli.Path(9)
	c.Assert(errors.Is(err, api.ErrPositionNotFound), qt.IsTrue)
	var apiErr api.Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.HTTPstatus, qt.Equals, http.StatusNotFound)
}
