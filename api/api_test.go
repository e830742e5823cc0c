package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/processor"
	"github.com/vocdoni/vocdoni-z-shielded/state"
	stg "github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction"
	"github.com/vocdoni/vocdoni-z-shielded/transaction/testutil"
	"github.com/vocdoni/vocdoni-z-shielded/util"
	"go.vocdoni.io/dvote/db/metadb"
)

type testAPI struct {
	api  *API
	env  *testutil.Env
	proc *processor.Processor
}

func newTestAPI(c *qt.C) *testAPI {
	env := testutil.NewEnv()
	storage, err := stg.New(metadb.NewTest(c.TB))
	c.Assert(err, qt.IsNil)
	st, err := state.New(metadb.NewTest(c.TB), env.Params)
	c.Assert(err, qt.IsNil)
	a, err := New(&APIConfig{Host: "127.0.0.1", Port: 0, Storage: storage, State: st})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(ctx)
	})
	proc, err := processor.New(storage, st, env.Verifier, 0, time.Second)
	c.Assert(err, qt.IsNil)
	return &testAPI{api: a, env: env, proc: proc}
}

func (ta *testAPI) request(c *qt.C, method, path string, body any) (int, []byte) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ta.api.Router().ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func errorCode(c *qt.C, body []byte) int {
	var e struct {
		Code int `json:"code"`
	}
	c.Assert(json.Unmarshal(body, &e), qt.IsNil)
	return e.Code
}

func hexElement(e fr.Element) string {
	b := crypto.ElementToLE(e)
	return hex.EncodeToString(b[:])
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)
	code, _ := ta.request(c, http.MethodGet, PingEndpoint, nil)
	c.Assert(code, qt.Equals, http.StatusOK)

	// the server is listening too
	resp, err := http.Get("http://" + ta.api.Addr().String() + PingEndpoint)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
}

func TestSubmitTransaction(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	owned, err := ta.env.NewOwned("TOKEN_A", 0)
	c.Assert(err, qt.IsNil)
	tx, created, err := ta.env.Create(owned)
	c.Assert(err, qt.IsNil)
	data, err := tx.MarshalBinary()
	c.Assert(err, qt.IsNil)

	code, body := ta.request(c, http.MethodPost, TransactionsEndpoint, &Transaction{Data: data})
	c.Assert(code, qt.Equals, http.StatusOK, qt.Commentf("%s", body))
	resp := &TransactionResponse{}
	c.Assert(json.Unmarshal(body, resp), qt.IsNil)
	c.Assert([]byte(resp.ID), qt.DeepEquals, tx.ID())

	code, body = ta.request(c, http.MethodPost, TransactionsEndpoint, &Transaction{Data: data})
	c.Assert(code, qt.Equals, http.StatusConflict)
	c.Assert(errorCode(c, body), qt.Equals, ErrTransactionAlreadyExists.Code)

	statusPath := "/transactions/" + resp.ID.String()
	code, body = ta.request(c, http.MethodGet, statusPath, nil)
	c.Assert(code, qt.Equals, http.StatusOK)
	status := &stg.TxStatus{}
	c.Assert(json.Unmarshal(body, status), qt.IsNil)
	c.Assert(status.Status, qt.Equals, stg.StatusPending)

	_, err = ta.proc.ProcessBatch(context.Background())
	c.Assert(err, qt.IsNil)
	code, body = ta.request(c, http.MethodGet, statusPath, nil)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(body, status), qt.IsNil)
	c.Assert(status.Status, qt.Equals, stg.StatusAccepted)
	c.Assert(status.Generation, qt.Equals, uint64(1))

	// the created resource is now a leaf, its nullifier unspent
	nf, err := created[0].Resource.NullifierWithKey(created[0].NullifierKey)
	c.Assert(err, qt.IsNil)
	code, body = ta.request(c, http.MethodGet, "/nullifiers/"+hexElement(nf), nil)
	c.Assert(code, qt.Equals, http.StatusOK)
	nullifier := &Nullifier{}
	c.Assert(json.Unmarshal(body, nullifier), qt.IsNil)
	c.Assert(nullifier.Spent, qt.IsFalse)
	c.Assert(nullifier.Proof.Existence, qt.IsFalse)

	// while the padding nullifier of the creation is spent
	code, body = ta.request(c, http.MethodGet, "/nullifiers/"+hexElement(tx.Shielded.Nullifiers()[0]), nil)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(body, nullifier), qt.IsNil)
	c.Assert(nullifier.Spent, qt.IsTrue)
	c.Assert(nullifier.Proof.Verify(), qt.IsTrue)
}

func TestSubmitErrors(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	req := httptest.NewRequest(http.MethodPost, TransactionsEndpoint, bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	ta.api.Router().ServeHTTP(rec, req)
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, rec.Body.Bytes()), qt.Equals, ErrMalformedBody.Code)

	code, body := ta.request(c, http.MethodPost, TransactionsEndpoint, &Transaction{Data: []byte{0xff}})
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrMalformedTransaction.Code)

	empty, err := (&transaction.Transaction{}).MarshalBinary()
	c.Assert(err, qt.IsNil)
	code, body = ta.request(c, http.MethodPost, TransactionsEndpoint, &Transaction{Data: empty})
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrTransactionRejected.Code)

	code, body = ta.request(c, http.MethodGet, "/transactions/"+hex.EncodeToString(util.RandomBytes(32)), nil)
	c.Assert(code, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, body), qt.Equals, ErrTransactionNotFound.Code)

	code, body = ta.request(c, http.MethodGet, "/transactions/zz", nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrMalformedTransactionID.Code)
}

func TestLedgerEndpoints(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	code, body := ta.request(c, http.MethodGet, AccumulatorEndpoint, nil)
	c.Assert(code, qt.Equals, http.StatusOK)
	snap := &Snapshot{}
	c.Assert(json.Unmarshal(body, snap), qt.IsNil)
	c.Assert(snap.Size, qt.Equals, uint64(0))
	c.Assert(snap.Depth, qt.Equals, ta.env.Params.TreeDepth)
	empty := accumulator.EmptyRoot(ta.env.Params.TreeDepth)
	c.Assert(snap.Root.String(), qt.Equals, hexElement(empty))

	// apply two creations
	for i := 0; i < 2; i++ {
		owned, err := ta.env.NewOwned("TOKEN_A", 0)
		c.Assert(err, qt.IsNil)
		tx, _, err := ta.env.Create(owned)
		c.Assert(err, qt.IsNil)
		data, err := tx.MarshalBinary()
		c.Assert(err, qt.IsNil)
		code, _ := ta.request(c, http.MethodPost, TransactionsEndpoint, &Transaction{Data: data})
		c.Assert(code, qt.Equals, http.StatusOK)
	}
	report, err := ta.proc.ProcessBatch(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(report.Accepted, qt.Equals, 2)

	code, body = ta.request(c, http.MethodGet, AccumulatorEndpoint, nil)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(body, snap), qt.IsNil)
	c.Assert(snap.Size, qt.Equals, uint64(2))
	c.Assert(snap.Generation, qt.Equals, uint64(2))

	code, body = ta.request(c, http.MethodGet, "/accumulator/paths/1", nil)
	c.Assert(code, qt.Equals, http.StatusOK)
	path := &Path{}
	c.Assert(json.Unmarshal(body, path), qt.IsNil)
	c.Assert(path.Siblings, qt.HasLen, ta.env.Params.TreeDepth)
	siblings := make([][]byte, len(path.Siblings))
	for i, s := range path.Siblings {
		siblings[i] = s
	}
	elements, err := crypto.ElementsFromLE(siblings)
	c.Assert(err, qt.IsNil)
	leaf, err := crypto.ElementFromLE(path.Leaf)
	c.Assert(err, qt.IsNil)
	root, err := crypto.ElementFromLE(path.Snapshot.Root)
	c.Assert(err, qt.IsNil)
	c.Assert(accumulator.Verify(root, &accumulator.Path{Position: path.Position, Siblings: elements}, leaf), qt.IsTrue)

	code, body = ta.request(c, http.MethodGet, "/accumulator/paths/7", nil)
	c.Assert(code, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, body), qt.Equals, ErrPositionNotFound.Code)
	code, _ = ta.request(c, http.MethodGet, "/accumulator/paths/x", nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)

	code, body = ta.request(c, http.MethodGet, "/anchors/"+path.Snapshot.Root.String(), nil)
	c.Assert(code, qt.Equals, http.StatusOK)
	anchor := &Anchor{}
	c.Assert(json.Unmarshal(body, anchor), qt.IsNil)
	c.Assert(anchor.Valid, qt.IsTrue)

	code, body = ta.request(c, http.MethodGet, "/anchors/"+hexElement(util.RandomElement()), nil)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(body, anchor), qt.IsNil)
	c.Assert(anchor.Valid, qt.IsFalse)

	code, body = ta.request(c, http.MethodGet, "/anchors/0x1234", nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrMalformedFieldElement.Code)
}
