package main

import (
	"context"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/api/client"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/service"
	"github.com/vocdoni/vocdoni-z-shielded/state"
	"github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction/testutil"
)

func main() {
	nodeURL := flag.String("node", "", "API URL of a running node, an in memory node is started if empty")
	resources := flag.Int("resources", 3, "number of resources to create and spend")
	timeout := flag.Duration("timeout", time.Minute, "maximum time to wait for a transaction")
	flag.Parse()
	log.Init("debug", "stdout", nil)

	env := testutil.NewEnv()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *nodeURL == "" {
		stg, err := storage.New(memdb.New())
		if err != nil {
			log.Fatal(err)
		}
		st, err := state.New(memdb.New(), env.Params)
		if err != nil {
			log.Fatal(err)
		}
		proc, err := service.NewProcessor(stg, st, env.Verifier, 0, time.Second)
		if err != nil {
			log.Fatal(err)
		}
		if err := proc.Start(ctx); err != nil {
			log.Fatal(err)
		}
		defer proc.Stop()
		api := service.NewAPI(stg, st, "127.0.0.1", 0)
		if err := api.Start(ctx); err != nil {
			log.Fatal(err)
		}
		defer api.Stop()
		host, port := api.HostPort()
		*nodeURL = fmt.Sprintf("http://%s:%d", host, port)
	}

	cli, err := client.New(*nodeURL)
	if err != nil {
		log.Fatal(err)
	}
	log.Infow("connected to node", "url", *nodeURL)

	// create the resources, one transaction each
	owned := make([]*testutil.Owned, *resources)
	ids := make([][]byte, *resources)
	for i := range owned {
		o, err := env.NewOwned("E2E", 0)
		if err != nil {
			log.Fatal(err)
		}
		tx, created, err := env.Create(o)
		if err != nil {
			log.Fatal(err)
		}
		owned[i] = created[0]
		if ids[i], err = cli.SubmitTransaction(tx); err != nil {
			log.Fatal(err)
		}
	}
	if err := waitAccepted(cli, ids, *timeout); err != nil {
		log.Fatal(err)
	}
	snap, err := cli.Accumulator()
	if err != nil {
		log.Fatal(err)
	}
	log.Infow("resources created", "commitments", snap.Size, "generation", snap.Generation)

	// spend them, proving membership against the served paths
	base := snap.Size - uint64(len(owned))
	for i, o := range owned {
		path, anchor, err := fetchPath(cli, base+uint64(i))
		if err != nil {
			log.Fatal(err)
		}
		out, err := env.NewOwned("E2E", 0)
		if err != nil {
			log.Fatal(err)
		}
		tx, _, err := env.Spend(o, path, anchor, out)
		if err != nil {
			log.Fatal(err)
		}
		if ids[i], err = cli.SubmitTransaction(tx); err != nil {
			log.Fatal(err)
		}
	}
	if err := waitAccepted(cli, ids, *timeout); err != nil {
		log.Fatal(err)
	}
	for _, o := range owned {
		nf, err := o.Resource.NullifierWithKey(o.NullifierKey)
		if err != nil {
			log.Fatal(err)
		}
		res, err := cli.Nullifier(nf)
		if err != nil {
			log.Fatal(err)
		}
		if !res.Spent || !res.Proof.Verify() {
			log.Fatalf("nullifier %s not spent", nf.String())
		}
	}
	log.Infow("resources spent", "count", len(owned))
}

// fetchPath returns the membership path of the leaf at position and the
// root it opens to.
func fetchPath(cli *client.HTTPclient, position uint64) (*accumulator.Path, fr.Element, error) {
	p, err := cli.Path(position)
	if err != nil {
		return nil, fr.Element{}, err
	}
	siblings := make([][]byte, len(p.Siblings))
	for i, s := range p.Siblings {
		siblings[i] = s
	}
	elements, err := crypto.ElementsFromLE(siblings)
	if err != nil {
		return nil, fr.Element{}, err
	}
	root, err := crypto.ElementFromLE(p.Snapshot.Root)
	if err != nil {
		return nil, fr.Element{}, err
	}
	return &accumulator.Path{Position: p.Position, Siblings: elements}, root, nil
}

// waitAccepted polls the node until every transaction is processed. It
// fails if any is rejected.
func waitAccepted(cli *client.HTTPclient, ids [][]byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for _, id := range ids {
		for {
			status, err := cli.TransactionStatus(id)
			if err != nil {
				return err
			}
			if status.Status == storage.StatusRejected {
				return fmt.Errorf("transaction %x rejected: %s", id, status.Error)
			}
			if status.Status == storage.StatusAccepted {
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("transaction %x still %s after %s", id, status.Status, timeout)
			}
			time.Sleep(200 * time.Millisecond)
		}
	}
	return nil
}
