package http

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/portero/internal/oautherr"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorCode        int    `json:"error_code,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

// WriteError escribe el error OAuth2 estándar con código interno numérico.
func WriteError(w http.ResponseWriter, status int, code, desc string, errCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		ErrorCode:        errCode,
		RequestID:        rid,
	})
}

// WriteJSON: respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOAuthError colapsa un error del core al wire: los *oautherr.Error
// salen con su código y 400 (401 para invalid_client); cualquier otra cosa
// es server_error 500 y el detalle NO se filtra al client.
func WriteOAuthError(w http.ResponseWriter, err error, errCode int) {
	if oe := oautherr.AsError(err); oe != nil {
		status := http.StatusBadRequest
		if oe.Code == oautherr.InvalidClient {
			status = http.StatusUnauthorized
		}
		WriteError(w, status, string(oe.Code), oe.Description, errCode)
		return
	}
	WriteError(w, http.StatusInternalServerError, string(oautherr.ServerError), "internal error", errCode)
}
