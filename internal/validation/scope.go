// Package validation tiene chequeos sintácticos de valores que vienen del
// wire antes de que toquen la lógica de grants.
package validation

import "regexp"

// Reglas de nombre de scope:
// - minúsculas solamente
// - empieza y termina con [a-z0-9]
// - en el medio se permite [a-z0-9:_.-]
// - largo 1..64
// Sin punto y coma ni espacios, explícitamente.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName reporta si el nombre de scope cumple el patrón permitido.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidScopeNames valida una lista y devuelve el primer nombre inválido.
func ValidScopeNames(names []string) (string, bool) {
	for _, n := range names {
		if !ValidScopeName(n) {
			return n, false
		}
	}
	return "", true
}
