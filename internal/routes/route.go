package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"survey-bknd/internal/auth"
	"survey-bknd/internal/config"
	"survey-bknd/internal/handlers"
	"survey-bknd/internal/logger"
	mdlwr "survey-bknd/internal/middleware"
	"survey-bknd/internal/models"
	"survey-bknd/internal/views"
)

// Dependencies are the services behind the API.
type Dependencies struct {
	Units     handlers.UnitService
	Locations handlers.LocationService
	Finance   handlers.FinanceService
	Views     *views.Manager
	Reference func() models.Month
	// Metrics serves /metrics; nil uses the default prometheus registry
	Metrics http.Handler
}

func NewRouter(deps Dependencies, cfg *config.Config, logr *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// CORS middleware with config
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// bearer auth is optional; tokens are issued by the identity service
	var authMW *mdlwr.AuthMiddleware
	if cfg.JWTPublicKeyPath != "" {
		verifier, err := auth.NewVerifier(cfg.JWTPublicKeyPath, cfg.JWTIssuer)
		if err != nil {
			logr.Fatal("failed to init jwt verifier", zap.Error(err))
		}
		authMW = mdlwr.NewAuthMiddleware(verifier, logr.Logger)
	} else {
		logr.Warn("JWT_PUBLIC_KEY_PATH not set, API is unauthenticated")
	}

	locationHandler := handlers.NewLocationHandler(deps.Locations, logr.Logger)
	unitHandler := handlers.NewUnitHandler(deps.Units, deps.Reference, cfg.DefaultPageSize, cfg.MaxPageSize, logr.Logger)
	financeHandler := handlers.NewFinanceHandler(deps.Finance, logr.Logger)
	viewHandler := handlers.NewViewHandler(deps.Views, logr.Logger)

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if authMW != nil {
			r.Use(authMW.JWTAuth)
		}

		r.Route("/locations", func(r chi.Router) {
			r.Get("/districts", locationHandler.GetDistricts)
			r.Get("/tehsils", locationHandler.GetTehsils)
			r.Get("/areas", locationHandler.GetAreas)
			r.Get("/surveyors", locationHandler.GetSurveyors)
		})

		r.Route("/units", func(r chi.Router) {
			r.Get("/", unitHandler.ListUnits)
			r.Get("/export", unitHandler.ExportUnits)
			r.Get("/{surveyId}/history", unitHandler.GetUnitHistory)
		})

		r.Route("/finance", func(r chi.Router) {
			r.Get("/summary", financeHandler.GetSummary)
			r.Get("/rollup/{dimension}", financeHandler.GetRollup)
			r.Get("/totals", financeHandler.GetTotals)
		})

		r.Route("/views", func(r chi.Router) {
			r.Post("/", viewHandler.CreateList)
			r.Get("/{id}", viewHandler.GetList)
			r.Patch("/{id}/filters", viewHandler.PatchFilters)
			r.Post("/{id}/retry", viewHandler.RetryList)
			r.Delete("/{id}", viewHandler.DeleteList)
		})

		r.Route("/rollups", func(r chi.Router) {
			r.Post("/", viewHandler.CreateRollup)
			r.Get("/{id}", viewHandler.GetRollup)
			r.Put("/{id}/scope", viewHandler.SetScope)
			r.Post("/{id}/retry/{dimension}", viewHandler.RetryRollup)
			r.Delete("/{id}", viewHandler.DeleteRollup)
		})
	})

	return r
}
