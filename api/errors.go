package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/vocdoni-z-shielded/log"
)

// Error is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

type jsonError struct {
	Err  string `json:"error"`
	Code int    `json:"code"`
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus is ignored.
//
// Example output: {"error":"transaction not found","code":40010}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonError{Err: e.Err.Error(), Code: e.Code})
}

// UnmarshalJSON decodes an error response written by Write. HTTPstatus is
// left for the caller to set.
func (e *Error) UnmarshalJSON(data []byte) error {
	var je jsonError
	if err := json.Unmarshal(data, &je); err != nil {
		return err
	}
	e.Err, e.Code = errors.New(je.Err), je.Code
	return nil
}

// Error returns the Message contained inside the APIerror
func (e Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("api error %d", e.Code)
	}
	return e.Err.Error()
}

// Is reports whether target is an API error with the same code, so the
// errors returned by the client match the definitions in this package.
func (e Error) Is(target error) bool {
	var t Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Write serializes a JSON msg using APIerror.Message and APIerror.Code
// and passes that to ctx.Send()
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("API error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	}
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(msg), e.HTTPstatus)
}

func (e Error) wrap(detail string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, detail),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// Withf returns a copy of APIerror with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return e.wrap(fmt.Sprintf(format, args...))
}

// WithErr returns a copy of APIerror with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	return e.wrap(err.Error())
}
