// Package endpoints hosts the thin HTTP layer: chi handlers that parse
// requests, delegate to the validators and issuance service, and render
// protocol responses.
package endpoints

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/gatejohn/internal/config"
)

// RouterDeps bundles the handlers mounted by NewRouter. Nil handlers and
// disabled endpoints are simply not mounted.
type RouterDeps struct {
	Options *config.Options
	Metrics prometheus.Registerer

	Authorize     *AuthorizeHandler
	Token         *TokenHandler
	Introspection *IntrospectionHandler
	Revocation    *RevocationHandler
	Device        *DeviceAuthorizationHandler
	EndSession    *EndSessionHandler
	Discovery     *DiscoveryHandler
}

// NewRouter assembles the protocol surface.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(newHTTPMetrics(d.Metrics).middleware)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ep := d.Options.Endpoints
	if d.Discovery != nil {
		d.Discovery.Register(r)
	}
	if ep.EnableAuthorize && d.Authorize != nil {
		d.Authorize.Register(r)
	}
	if ep.EnableToken && d.Token != nil {
		d.Token.Register(r)
	}
	if ep.EnableIntrospection && d.Introspection != nil {
		d.Introspection.Register(r)
	}
	if ep.EnableRevocation && d.Revocation != nil {
		d.Revocation.Register(r)
	}
	if ep.EnableDeviceAuthorization && d.Device != nil {
		d.Device.Register(r)
	}
	if ep.EnableEndSession && d.EndSession != nil {
		d.EndSession.Register(r)
	}
	return r
}
