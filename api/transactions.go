package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	stg "github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

// newTransaction decodes a submitted transaction and queues it for the
// processor. The response holds the transaction ID to poll its status with.
func (a *API) newTransaction(w http.ResponseWriter, r *http.Request) {
	req := &Transaction{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	tx, err := transaction.Decode(req.Data)
	if err != nil {
		ErrMalformedTransaction.WithErr(err).Write(w)
		return
	}
	// a transaction without bundles can never execute
	if tx.Shielded == nil && tx.Transparent == nil {
		ErrTransactionRejected.WithErr(transaction.ErrEmptyTransaction).Write(w)
		return
	}
	id := tx.ID()
	if _, err := a.storage.PushTransaction(id, req.Data); err != nil {
		if errors.Is(err, stg.ErrAlreadyExists) {
			ErrTransactionAlreadyExists.Withf("%x", id).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Debugw("transaction queued", "id", hex.EncodeToString(id))
	httpWriteJSON(w, &TransactionResponse{ID: id})
}

// transactionStatus returns the processing status of a transaction.
func (a *API) transactionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := hex.DecodeString(util.TrimHex(chi.URLParam(r, TransactionURLParam)))
	if err != nil || len(id) == 0 {
		ErrMalformedTransactionID.Write(w)
		return
	}
	status, err := a.storage.TransactionStatus(id)
	if err != nil {
		if errors.Is(err, stg.ErrNotFound) {
			ErrTransactionNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, status)
}
