package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/staywatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/staywatch/internal/httpserver/mw"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg      Registrar
	operator bool
}

var registry []entry

// Register adds public routes (probes).
func Register(reg Registrar) {
	registry = append(registry, entry{reg: reg})
}

// RegisterOperator adds routes guarded by the host and caller allowlists.
func RegisterOperator(reg Registrar) {
	registry = append(registry, entry{reg: reg, operator: true})
}

// RegisterAll is called once from server.New().
func RegisterAll(r chi.Router, d deps.Deps) {
	guarded := r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.AllowOnlyIPs(d.AllowedIPs, d.TrustProxy, d.Logger),
	)
	for _, e := range registry {
		if e.operator {
			e.reg(guarded, d)
			continue
		}
		e.reg(r, d)
	}
}
