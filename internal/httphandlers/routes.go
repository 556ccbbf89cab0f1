package httphandlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"nexdb/internal/metrics"
)

type RouteOptions struct {
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

func Routes(h *ApiHandler, opts RouteOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(opts.Metrics.Middleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", authorizationHeader},
			MaxAge:         300,
		}))
	}

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(rr chi.Router) {
		rr.Get("/h", func(writer http.ResponseWriter, request *http.Request) {
			ok(writer, "Hoi, we're live!", struct{}{})
		})

		rr.Group(func(ar chi.Router) {
			ar.Use(h.Authenticate)

			ar.Post("/projects", h.CreateProject)
			ar.Get("/projects", h.ListProjects)
			ar.Get("/projects/{id}", h.GetProject)
			ar.Put("/projects/{id}", h.UpdateProject)
			ar.Delete("/projects/{id}", h.DeleteProject)

			ar.Post("/servers", h.RegisterServer)
			ar.Get("/servers", h.ListServers)
			ar.Get("/servers/{id}", h.GetServer)
			ar.Delete("/servers/{id}", h.DeleteServer)
			ar.Post("/servers/{id}/test", h.TestServer)
			ar.Put("/servers/{id}/secret", h.RotateSecret)
			ar.Put("/servers/{id}/network-access", h.WhitelistIP)
			ar.Delete("/servers/{id}/network-access", h.BlacklistIP)
			ar.Post("/servers/{id}/databases", h.AddDatabase)
			ar.Get("/servers/{id}/databases", h.ListServerDatabases)
			ar.Get("/servers/{id}/remote-databases", h.ListRemoteDatabases)
			ar.Post("/servers/{id}/remote-databases", h.CreateRemoteDatabase)
			ar.Post("/servers/{id}/users", h.CreateDatabaseUser)

			ar.Get("/databases", h.ListDatabases)
			ar.Delete("/databases/{id}", h.DeleteDatabase)
			ar.Post("/databases/{id}/backups", h.CreateBackup)
			ar.Get("/databases/{id}/events", h.StreamEvents)

			ar.Get("/backups", h.ListBackups)
			ar.Post("/backups/run-due", h.RunAllDue)
			ar.Get("/backups/{id}", h.GetBackup)
			ar.Delete("/backups/{id}", h.DeleteBackup)
			ar.Get("/backups/{id}/download", h.DownloadBackup)

			ar.Post("/schedules", h.CreateSchedule)
			ar.Get("/schedules", h.ListSchedules)
			ar.Get("/schedules/materialized", h.ListMaterialized)
			ar.Post("/schedules/reconcile", h.ReconcileSchedules)
			ar.Put("/schedules/{id}", h.UpdateSchedule)
			ar.Delete("/schedules/{id}", h.DeleteSchedule)

			ar.Post("/storage/test", h.TestStorage)
		})
	})
	return r
}
