package client

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/api"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction"
)

// endpoint replaces the {param} placeholder of the endpoint with value.
func endpoint(pattern, param, value string) string {
	return strings.Replace(pattern, "{"+param+"}", value, 1)
}

func elementHex(e fr.Element) string {
	b := crypto.ElementToLE(e)
	return hex.EncodeToString(b[:])
}

// get performs a GET request and decodes the JSON response into out.
func (c *HTTPclient) get(out any, urlPath string) error {
	return c.do(HTTPGET, nil, out, urlPath)
}

// do performs the request and decodes the JSON response into out. Error
// responses are returned as api.Error.
func (c *HTTPclient) do(method string, body, out any, urlPath string) error {
	data, status, err := c.Request(method, body, nil, urlPath)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := api.Error{}
		if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Code == 0 {
			return fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
		}
		apiErr.HTTPstatus = status
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SubmitTransaction sends the encoded transaction to the node and returns
// its ID.
func (c *HTTPclient) SubmitTransaction(tx *transaction.Transaction) ([]byte, error) {
	data, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	res := &api.TransactionResponse{}
	if err := c.do(HTTPPOST, &api.Transaction{Data: data}, res, api.TransactionsEndpoint); err != nil {
		return nil, err
	}
	return res.ID, nil
}

// TransactionStatus returns the processing status of a submitted
// transaction.
func (c *HTTPclient) TransactionStatus(id []byte) (*storage.TxStatus, error) {
	status := &storage.TxStatus{}
	if err := c.get(status, endpoint(api.TransactionEndpoint, api.TransactionURLParam, hex.EncodeToString(id))); err != nil {
		return nil, err
	}
	return status, nil
}

// Accumulator returns the current snapshot of the commitment accumulator.
func (c *HTTPclient) Accumulator() (*api.Snapshot, error) {
	snap := &api.Snapshot{}
	if err := c.get(snap, api.AccumulatorEndpoint); err != nil {
		return nil, err
	}
	return snap, nil
}

// Path returns the membership path of the commitment at position.
func (c *HTTPclient) Path(position uint64) (*api.Path, error) {
	path := &api.Path{}
	if err := c.get(path, endpoint(api.PathEndpoint, api.PositionURLParam, strconv.FormatUint(position, 10))); err != nil {
		return nil, err
	}
	return path, nil
}

// Anchor reports whether root is a valid anchor for new transactions.
func (c *HTTPclient) Anchor(root fr.Element) (bool, error) {
	anchor := &api.Anchor{}
	if err := c.get(anchor, endpoint(api.AnchorEndpoint, api.RootURLParam, elementHex(root))); err != nil {
		return false, err
	}
	return anchor.Valid, nil
}

// Nullifier returns the spent status of the nullifier.
func (c *HTTPclient) Nullifier(nf fr.Element) (*api.Nullifier, error) {
	res := &api.Nullifier{}
	if err := c.get(res, endpoint(api.NullifierEndpoint, api.NullifierURLParam, elementHex(nf))); err != nil {
		return nil, err
	}
	return res, nil
}
