//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400 or 404 (or even 204), whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap (say, error code 4010, 4011 and 4013 exist, 4012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status,
// for example the fact that Code 4045 returns HTTP Status 404 Not Found is just a coincidence
var (
	ErrResourceNotFound         = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody            = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedTransaction     = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed transaction")}
	ErrMalformedTransactionID   = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed transaction ID")}
	ErrTransactionNotFound      = Error{Code: 40010, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("transaction not found")}
	ErrTransactionAlreadyExists = Error{Code: 40011, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("transaction already submitted")}
	ErrMalformedFieldElement    = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed field element")}
	ErrMalformedPosition        = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed leaf position")}
	ErrPositionNotFound         = Error{Code: 40014, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("leaf position not in the accumulator")}
	ErrTransactionRejected      = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("transaction rejected")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
