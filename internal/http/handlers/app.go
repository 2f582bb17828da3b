package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"rendersync/internal/billing"
	"rendersync/internal/cache"
	"rendersync/internal/domain"
	"rendersync/internal/infra"
	"rendersync/internal/provider"
	"rendersync/internal/reconcile"
)

// App is the handler container. Everything it needs is injected at startup.
type App struct {
	Logger     infra.Logger
	Cfg        *infra.Config
	Jobs       domain.JobRepository
	Wallets    domain.WalletRepository
	Billing    *billing.Service
	Reconciler *reconcile.Reconciler
	Adapters   map[domain.Provider]provider.Adapter
	AdminPerms *cache.AdminCache
	Metrics    *infra.Metrics
	Validate   *validator.Validate
}

func NewApp(cfg *infra.Config, logger infra.Logger) *App {
	return &App{
		Logger:   logger,
		Cfg:      cfg,
		Validate: validator.New(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"error": slug, "message": message})
}

// currentUserID trusts the authenticated user id forwarded by the identity
// gateway. Authentication itself happens upstream.
func (a *App) currentUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// view decorates the client projection with the formatted cost once the
// actual charge is known.
func (a *App) view(job *domain.Job) domain.JobView {
	v := job.View()
	if job.CostActualCents != nil {
		v.CostDisplay = billing.FormatCents(*job.CostActualCents)
	}
	return v
}
