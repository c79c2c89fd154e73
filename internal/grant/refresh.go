package grant

import (
	"context"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

// refreshHandler delega en el Token Service: validación de pertenencia,
// rotación y narrowing-only de scope viven ahí.
type refreshHandler struct {
	svc *tokensvc.Service
}

func NewRefreshHandler(svc *tokensvc.Service) Handler {
	return &refreshHandler{svc: svc}
}

func (h *refreshHandler) Name() string { return "refresh_token" }

func (h *refreshHandler) CanHandle(grantType string, client *core.Client, _ *core.Domain) bool {
	return grantType == token.GrantRefreshToken && client.AllowsGrant(grantType)
}

func (h *refreshHandler) ParseRequest(_ context.Context, ex *Exchange) error {
	if ex.Request.RefreshToken == "" {
		return oautherr.E(oautherr.InvalidRequest, "refresh_token is required")
	}
	return nil
}

// ResolveOwner: el subject viene del refresh token persistido; lo resuelve
// el Token Service dentro de Refresh.
func (h *refreshHandler) ResolveOwner(context.Context, *Exchange) error { return nil }

func (h *refreshHandler) Grant(ctx context.Context, ex *Exchange) (*token.Token, error) {
	return h.svc.Refresh(ctx, ex.Request.RefreshToken, ex.Request, ex.Domain, ex.Client)
}
