package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// urlElement parses the URL parameter as a hex encoded 32 byte little-endian
// field element. On failure it writes the error response and returns false.
func urlElement(w http.ResponseWriter, r *http.Request, param string) (fr.Element, bool) {
	b, err := hex.DecodeString(util.TrimHex(chi.URLParam(r, param)))
	if err != nil {
		ErrMalformedFieldElement.WithErr(err).Write(w)
		return fr.Element{}, false
	}
	e, err := crypto.ElementFromLE(b)
	if err != nil {
		ErrMalformedFieldElement.WithErr(err).Write(w)
		return fr.Element{}, false
	}
	return e, true
}
