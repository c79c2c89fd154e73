package app

import (
	"github.com/dropDatabas3/portero/internal/cache"
	"github.com/dropDatabas3/portero/internal/grant"
	"github.com/dropDatabas3/portero/internal/introspect"
	"github.com/dropDatabas3/portero/internal/rate"
	"github.com/dropDatabas3/portero/internal/signing"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

// Container agrupa las dependencias cableadas del servicio.
type Container struct {
	Store      core.Repository
	Cache      cache.Client
	Signers    *signing.StaticRegistry
	TokenSvc   *tokensvc.Service
	Dispatcher *grant.Dispatcher
	Introspect *introspect.Service
	Codes      *grant.Codes

	// Limiter nil = sin rate limit.
	Limiter rate.Limiter
}
