// Package resource implementa las validaciones de resource indicators
// (RFC 8707). Son funciones puras sobre sets en memoria: sin I/O.
package resource

import (
	"github.com/dropDatabas3/portero/internal/oautherr"
)

// ValidateRequested verifica que todo resource pedido esté en el registro de
// protected resources del domain. Vacío = no-op (éxito).
func ValidateRequested(requested, registered []string) error {
	if len(requested) == 0 {
		return nil
	}
	reg := toSet(registered)
	for _, r := range requested {
		if _, ok := reg[r]; !ok {
			return oautherr.Ef(oautherr.InvalidResource, "resource %q is not registered", r)
		}
	}
	return nil
}

// ValidateConsistency verifica que los resources pedidos en el token endpoint
// sean subconjunto de los autorizados en el paso de autorización previo.
//
// enabled=false es el modo legacy documentado: los pedidos pasan sin chequeo
// y se devuelven tal cual. No es un bug, es la escotilla de compatibilidad.
func ValidateConsistency(requested, authorized []string, enabled bool) ([]string, error) {
	if !enabled {
		return requested, nil
	}
	if len(requested) == 0 {
		return nil, nil
	}
	auth := toSet(authorized)
	for _, r := range requested {
		if _, ok := auth[r]; !ok {
			return nil, oautherr.Ef(oautherr.InvalidResource, "resource %q was not authorized", r)
		}
	}
	return requested, nil
}

func toSet(vs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		m[v] = struct{}{}
	}
	return m
}
