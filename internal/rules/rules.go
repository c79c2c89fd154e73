// Package rules expone los extension points de policy alrededor del mint:
// PRE_TOKEN corre antes de emitir (y puede abortar y/o inyectar atributos);
// POST_TOKEN corre después y es fire-and-observe: sus errores se loguean y
// se tragan, jamás tumban el request.
package rules

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
)

// ExtensionPoint identifica el punto de disparo.
type ExtensionPoint string

const (
	PreToken  ExtensionPoint = "PRE_TOKEN"
	PostToken ExtensionPoint = "POST_TOKEN"
)

// FiredContext es lo que ve (y puede escribir) la policy del tenant.
type FiredContext struct {
	Point   ExtensionPoint
	Request *token.OAuth2Request
	Client  *core.Client
	User    *core.User

	// Token emitido; solo en POST_TOKEN.
	Issued *token.Token

	// Atributos que la policy inyecta; en PRE_TOKEN se mergean de vuelta
	// al execution context del request.
	Attributes map[string]any
}

// Engine es el motor de reglas del tenant (colaborador externo).
type Engine interface {
	Fire(ctx context.Context, fc *FiredContext) error
}

// NoopEngine no hace nada. Default cuando el domain no configuró reglas.
type NoopEngine struct{}

func (NoopEngine) Fire(context.Context, *FiredContext) error { return nil }

// Hook envuelve cada mint con los dos extension points.
type Hook struct {
	engine Engine
	log    *zap.Logger
}

func NewHook(engine Engine) *Hook {
	if engine == nil {
		engine = NoopEngine{}
	}
	return &Hook{engine: engine, log: logger.Named("rules")}
}

// Pre dispara PRE_TOKEN. Si la policy falla, el mint NO procede y el error
// sube como falla del grant. Los atributos inyectados quedan visibles para
// toda la lógica de mint posterior.
func (h *Hook) Pre(ctx context.Context, req *token.OAuth2Request, client *core.Client, user *core.User) error {
	fc := &FiredContext{
		Point:      PreToken,
		Request:    req,
		Client:     client,
		User:       user,
		Attributes: map[string]any{},
	}
	if err := h.engine.Fire(ctx, fc); err != nil {
		return err
	}
	req.MergeAttributes(fc.Attributes)
	return nil
}

// Post dispara POST_TOKEN sobre un token ya emitido. Cualquier error se
// loguea y se descarta: el token ya salió.
func (h *Hook) Post(ctx context.Context, req *token.OAuth2Request, issued *token.Token, client *core.Client, user *core.User) {
	fc := &FiredContext{
		Point:   PostToken,
		Request: req,
		Client:  client,
		User:    user,
		Issued:  issued,
	}
	if err := h.engine.Fire(ctx, fc); err != nil {
		h.log.Warn("post_token hook failed",
			zap.String("client_id", req.ClientID),
			zap.String("grant_type", req.GrantType),
			zap.Error(err))
	}
}
