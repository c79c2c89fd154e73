// Package grant implementa el despacho de grants del token endpoint y los
// siete handlers de protocolo.
//
// El despacho es selección de estrategia por predicado, no un switch por
// grant_type: cada handler puede rechazar su propio grant nominal (p.ej.
// token exchange cuando el domain no habilitó RFC 8693). El dispatcher
// recorre los handlers en orden de registro y usa el primero que acepta.
//
// Todos los handlers siguen el mismo contrato de tres etapas, en este orden
// estricto: ParseRequest → ResolveOwner → Grant. Si una etapa falla, las
// siguientes no corren y el error es el resultado del grant.
package grant

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
)

// Exchange es el estado de un token request en vuelo. Cada request tiene el
// suyo: no hay estado mutable compartido entre requests concurrentes.
type Exchange struct {
	Domain  *core.Domain
	Client  *core.Client
	Request *token.TokenRequest

	// Resuelto por ResolveOwner (nil para client_credentials).
	User    *core.User
	Subject string

	// Salidas extra de algunos handlers, que la capa HTTP suma al body.
	IDToken string // id_token pareado (authorization_code, CIBA, híbrido)
	Code    string // authorization code (leg de autorización del híbrido)

	// Resources (o scope, en exchange) autorizados en el paso previo;
	// base del chequeo subset de RFC 8707.
	authorized []string

	// Claims mapeados desde una assertion externa (extension grant).
	mapped map[string]any
}

// Handler es una estrategia de grant: predicado + pipeline de tres etapas.
type Handler interface {
	// Name identifica el handler en logs.
	Name() string

	// CanHandle decide si este handler atiende el request. Puede decir que
	// no incluso para su grant nominal (feature flags por domain).
	CanHandle(grantType string, client *core.Client, domain *core.Domain) bool

	// ParseRequest valida parámetros específicos del grant. Corre antes de
	// cualquier I/O; parámetro faltante = InvalidRequest.
	ParseRequest(ctx context.Context, ex *Exchange) error

	// ResolveOwner determina el subject. Errores de lookup se convierten a
	// errores de negocio acá, nunca se filtran crudos.
	ResolveOwner(ctx context.Context, ex *Exchange) error

	// Grant finaliza el OAuth2Request e invoca el Token Service / ID Token
	// Builder según lo que el grant produce.
	Grant(ctx context.Context, ex *Exchange) (*token.Token, error)
}

// Dispatcher recorre los handlers registrados en orden y corre el pipeline
// del primero cuyo predicado acepta.
type Dispatcher struct {
	handlers []Handler
	log      *zap.Logger
}

func NewDispatcher(handlers ...Handler) *Dispatcher {
	return &Dispatcher{handlers: handlers, log: logger.Named("grant")}
}

// Register agrega un handler al final del orden de evaluación.
func (d *Dispatcher) Register(h Handler) { d.handlers = append(d.handlers, h) }

// Dispatch selecciona y ejecuta. unsupported_grant_type si nadie acepta.
func (d *Dispatcher) Dispatch(ctx context.Context, ex *Exchange) (*token.Token, error) {
	gt := ex.Request.GrantType
	for _, h := range d.handlers {
		if !h.CanHandle(gt, ex.Client, ex.Domain) {
			continue
		}
		d.log.Debug("grant handler selected",
			zap.String("handler", h.Name()),
			logger.GrantType(gt),
			logger.ClientID(ex.Client.ClientID),
			logger.Domain(ex.Domain.Slug))

		if err := h.ParseRequest(ctx, ex); err != nil {
			return nil, err
		}
		if err := h.ResolveOwner(ctx, ex); err != nil {
			return nil, err
		}
		return h.Grant(ctx, ex)
	}
	return nil, oautherr.Ef(oautherr.UnsupportedGrantType, "grant type %q not supported", gt)
}
