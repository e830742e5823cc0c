// Command shielded-node runs a shielded ledger node: the transaction queue,
// the batch processor and the HTTP API.
//
// Compliance units are verified with the native proof system. A native proof
// carries its whole witness in clear, including the nullifier key of the
// consumed resource and the delta blind, so the node offers no transaction
// privacy and only suits development and testing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/native"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/snark"
	"github.com/vocdoni/vocdoni-z-shielded/compliance"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/processor"
	"github.com/vocdoni/vocdoni-z-shielded/service"
	"github.com/vocdoni/vocdoni-z-shielded/state"
	"github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func main() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := flag.String("datadir", filepath.Join(home, config.DefaultDataDir), "directory of the node databases")
	host := flag.String("host", config.DefaultHost, "API listen address")
	port := flag.Int("port", config.DefaultPort, "API listen port")
	batchWindow := flag.Duration("batchWindow", config.DefaultBatchTimeWindow, "maximum time a transaction waits for its batch")
	batchSize := flag.Int("batchSize", processor.DefaultBatchSize, "maximum number of transactions verified together")
	logLevel := flag.String("logLevel", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	logOutput := flag.String("logOutput", "stdout", "log output (stdout, stderr or a file path)")
	artifactsDir := flag.String("artifacts", circuits.BaseDir, "directory of the circuit artifacts cache")
	membership := flag.IntSlice("membership", nil, "compliance unit counts to prepare membership logic keys for")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Compliance proofs are native: they reveal nullifier keys and delta blinds")
		fmt.Fprintln(os.Stderr, "in clear. Do not use this node where transaction privacy matters.")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()
	log.Init(*logLevel, *logOutput, nil)

	circuits.BaseDir = *artifactsDir
	queueDB, err := metadb.New(db.TypePebble, filepath.Join(*dataDir, "queue"))
	if err != nil {
		log.Fatal(err)
	}
	stateDB, err := metadb.New(db.TypePebble, filepath.Join(*dataDir, "state"))
	if err != nil {
		log.Fatal(err)
	}
	stg, err := storage.New(queueDB)
	if err != nil {
		log.Fatal(err)
	}
	defer stg.Close()

	params := config.Default()
	st, err := state.New(stateDB, params)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	groth16, err := snark.New()
	if err != nil {
		log.Fatal(err)
	}
	systems := circuits.NewSystems(native.New(params), groth16)
	_, complianceVK := compliance.Keys()
	verifier := transaction.NewVerifier(params, systems, complianceVK)
	log.Warnw("compliance proofs are native and reveal their witness", "backend", circuits.BackendNative)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, units := range *membership {
		start := time.Now()
		_, vk, err := service.MembershipKeys(ctx, units)
		if err != nil {
			log.Fatalf("membership keys for %d units: %v", units, err)
		}
		logic := vk.Compress()
		log.Infow("membership logic ready",
			"units", units,
			"logic", logic.String(),
			"took", time.Since(start).String())
	}

	proc, err := service.NewProcessor(stg, st, verifier, *batchSize, *batchWindow)
	if err != nil {
		log.Fatal(err)
	}
	if err := proc.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer proc.Stop()

	api := service.NewAPI(stg, st, *host, *port)
	if err := api.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer api.Stop()
	h, p := api.HostPort()
	snap := st.Snapshot()
	log.Infow("shielded node started",
		"host", h,
		"port", p,
		"datadir", *dataDir,
		"generation", snap.Generation,
		"commitments", snap.Size)

	<-ctx.Done()
	log.Info("shutting down")
}
