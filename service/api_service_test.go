package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/vocdoni-z-shielded/api"
	"github.com/vocdoni/vocdoni-z-shielded/state"
	"github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction/testutil"
	"go.vocdoni.io/dvote/db/metadb"
)

func newStores(c *qt.C, env *testutil.Env) (*storage.Storage, *state.State) {
	store, err := storage.New(metadb.NewTest(c.TB))
	c.Assert(err, qt.IsNil)
	st, err := state.New(metadb.NewTest(c.TB), env.Params)
	c.Assert(err, qt.IsNil)
	return store, st
}

func ping(host string, port int) (int, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s:%d%s", host, port, api.PingEndpoint))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func TestAPIService(t *testing.T) {
	c := qt.New(t)
	store, st := newStores(c, testutil.NewEnv())

	// Port 0 lets the OS choose an available port
	apiService := NewAPI(store, st, "127.0.0.1", 0)
	ctx := context.Background()

	err := apiService.Start(ctx)
	c.Assert(err, qt.IsNil)
	defer apiService.Stop()

	host, port := apiService.HostPort()
	c.Assert(port, qt.Not(qt.Equals), 0)
	code, err := ping(host, port)
	c.Assert(err, qt.IsNil)
	c.Assert(code, qt.Equals, http.StatusOK)

	// Test starting an already running service
	err = apiService.Start(ctx)
	c.Assert(err, qt.ErrorMatches, "service already running")

	// Test stopping and restarting
	apiService.Stop()
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := ping(host, port); err != nil {
			break
		}
		if time.Now().After(deadline) {
			c.Fatal("API server still serving after stop")
		}
		time.Sleep(20 * time.Millisecond)
	}
	err = apiService.Start(ctx)
	c.Assert(err, qt.IsNil)
	host, port = apiService.HostPort()
	code, err = ping(host, port)
	c.Assert(err, qt.IsNil)
	c.Assert(code, qt.Equals, http.StatusOK)
}

func TestProcessorService(t *testing.T) {
	c := qt.New(t)
	env := testutil.NewEnv()
	store, st := newStores(c, env)

	_, err := NewProcessor(store, st, env.Verifier, 0, 0)
	c.Assert(err, qt.IsNotNil)

	ps, err := NewProcessor(store, st, env.Verifier, 8, 10*time.Millisecond)
	c.Assert(err, qt.IsNil)
	c.Assert(ps.Start(context.Background()), qt.IsNil)
	c.Assert(ps.Start(context.Background()), qt.ErrorMatches, "service already running")

	owned, err := env.NewOwned("TOKEN_A", 0)
	c.Assert(err, qt.IsNil)
	tx, _, err := env.Create(owned)
	c.Assert(err, qt.IsNil)
	data, err := tx.MarshalBinary()
	c.Assert(err, qt.IsNil)
	_, err = store.PushTransaction(tx.ID(), data)
	c.Assert(err, qt.IsNil)

	deadline := time.Now().Add(30 * time.Second)
	for st.Snapshot().Generation == 0 {
		if time.Now().After(deadline) {
			c.Fatal("transaction not applied in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	ps.Stop()
	status, err := store.TransactionStatus(tx.ID())
	c.Assert(err, qt.IsNil)
	c.Assert(status.Status, qt.Equals, storage.StatusAccepted)
}
