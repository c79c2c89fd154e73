// Package oautherr define la taxonomía de errores OAuth2/OIDC del core.
//
// Los errores de negocio (invalid_request, invalid_grant, ...) viajan como
// *Error tipado; las fallas técnicas (store caído, firma rota) se quedan como
// errores planos y la capa HTTP las colapsa en server_error. Nunca mezclar:
// un error técnico NO es culpa del client y no debe loguearse como tal.
package oautherr

import (
	"errors"
	"fmt"
)

// Code es el código de error OAuth2 que va en el campo "error" de la respuesta.
type Code string

const (
	InvalidRequest       Code = "invalid_request"
	InvalidClient        Code = "invalid_client"
	InvalidGrant         Code = "invalid_grant"
	InvalidScope         Code = "invalid_scope"
	InvalidResource      Code = "invalid_target" // RFC 8707 §2.2
	UnsupportedGrantType Code = "unsupported_grant_type"
	UnsupportedTokenType Code = "unsupported_token_type"
	UnauthorizedClient   Code = "unauthorized_client"
	ServerError          Code = "server_error"
)

// MsgAuthReqNotFound es el texto fijo para cualquier falla de auth_req_id en
// CIBA: mismo mensaje para "no existe" y "client equivocado", no filtrar cuál
// de los dos fue (oracle leak).
const MsgAuthReqNotFound = "authentication request not found"

// AuthenticationRequestNotFound construye el error CIBA canónico.
func AuthenticationRequestNotFound() *Error {
	return E(InvalidGrant, MsgAuthReqNotFound)
}

// Error es un error de negocio OAuth2 con código y descripción.
type Error struct {
	Code        Code
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// E construye un *Error.
func E(code Code, desc string) *Error {
	return &Error{Code: code, Description: desc}
}

// Ef construye un *Error con descripción formateada.
func Ef(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// Is reporta si err (o algo en su cadena) es un *Error con el código dado.
func Is(err error, code Code) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}

// AsError extrae el *Error de la cadena, o nil si es una falla técnica.
func AsError(err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return nil
}
