// Package introspect son las fachadas RFC 7662 (introspección) y RFC 7009
// (revocación) sobre el Token Service. La validación del token_type_hint
// desconocido NO vive acá: es responsabilidad del borde HTTP.
package introspect

import (
	"context"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

type Service struct {
	svc *tokensvc.Service
}

func New(svc *tokensvc.Service) *Service {
	return &Service{svc: svc}
}

// Inactive es la respuesta RFC 7662 para un token desconocido/vencido.
var Inactive = map[string]any{"active": false}

// Introspect busca con precedencia por hint (access primero por defecto) y
// arma la respuesta RFC 7662. El token encontrado en el "otro" store sale
// tipado como lo que realmente es, no re-etiquetado al hint.
func (s *Service) Introspect(ctx context.Context, value, hint string) (map[string]any, error) {
	tk, err := s.svc.Introspect(ctx, value, hint)
	if err != nil {
		return nil, err
	}
	if tk == nil {
		return Inactive, nil
	}

	resp := map[string]any{
		"active":     true,
		"token_type": tokenTypeName(tk.Kind),
		"client_id":  tk.ClientID,
		"sub":        tk.Subject,
		"exp":        tk.ExpiresAt.Unix(),
	}
	if len(tk.Scope) > 0 {
		resp["scope"] = tk.ScopeString()
	}
	for k, v := range tk.AdditionalInfo {
		if _, dup := resp[k]; !dup {
			resp[k] = v
		}
	}
	return resp, nil
}

func tokenTypeName(k token.Kind) string {
	if k == token.KindRefresh {
		return tokensvc.HintRefreshToken
	}
	return tokensvc.HintAccessToken
}

// Revoke borra el token si existe y pertenece al client. Token desconocido =
// éxito sin mutación (RFC 7009, revocación idempotente); token de otro
// client = InvalidGrant.
func (s *Service) Revoke(ctx context.Context, value, hint string, client *core.Client) error {
	tk, err := s.svc.Introspect(ctx, value, hint)
	if err != nil {
		return err
	}
	if tk == nil {
		return nil
	}
	if tk.ClientID != client.ClientID {
		return oautherr.E(oautherr.InvalidGrant, "token does not belong to client")
	}
	if tk.Kind == token.KindRefresh {
		return s.svc.DeleteRefreshToken(ctx, value)
	}
	return s.svc.DeleteAccessToken(ctx, value)
}
