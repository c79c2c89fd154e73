// Package audit registra eventos de emisión de tokens como un engine de
// reglas enchufado al hook POST_TOKEN. El sink actual es el logger; a futuro
// puede ser DB o un sink externo.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/rules"
	"github.com/dropDatabas3/portero/internal/util"
)

type Engine struct {
	log *zap.Logger
}

func NewEngine() *Engine {
	return &Engine{log: logger.Named("audit")}
}

// Fire loguea POST_TOKEN (token ya emitido). PRE_TOKEN no audita nada: el
// mint puede abortar después y el evento sería mentira.
func (e *Engine) Fire(_ context.Context, fc *rules.FiredContext) error {
	if fc.Point != rules.PostToken || fc.Issued == nil {
		return nil
	}
	sub := fc.Request.Subject
	if fc.User != nil && fc.User.Email != "" {
		sub = util.MaskEmail(fc.User.Email)
	}
	e.log.Info("token issued",
		zap.String("domain_id", fc.Request.DomainID),
		zap.String("client_id", fc.Request.ClientID),
		zap.String("grant_type", fc.Request.GrantType),
		zap.String("kind", string(fc.Issued.Kind)),
		zap.String("sub", sub),
		zap.Time("exp", fc.Issued.ExpiresAt),
	)
	return nil
}
