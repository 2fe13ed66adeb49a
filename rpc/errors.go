package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "rwavault/native/common"
	"rwavault/native/token"
	"rwavault/native/vault"
)

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return http.StatusServiceUnavailable
	}
	switch vault.KindOf(err) {
	case vault.KindAuthorization:
		return http.StatusForbidden
	case vault.KindLifecycle:
		if errors.Is(err, vault.ErrNotInitialized) {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case vault.KindIdempotency:
		return http.StatusConflict
	case vault.KindValidation, vault.KindArithmetic:
		return http.StatusBadRequest
	case vault.KindAccounting:
		return http.StatusUnprocessableEntity
	case vault.KindConfiguration:
		return http.StatusBadRequest
	}
	if errors.Is(err, token.ErrInsufficientBalance) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func codeFor(err error) string {
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return "ModulePaused"
	}
	if errors.Is(err, token.ErrInsufficientBalance) {
		return "InsufficientFunds"
	}
	return vault.CodeOf(err)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Code: codeFor(err), Message: message})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "InvalidRequest", Message: err.Error()})
}
