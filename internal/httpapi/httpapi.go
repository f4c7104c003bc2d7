// Package httpapi mounts the read-only QueryAPI on a chi router alongside
// operator-facing /healthz and /stats endpoints, following the teacher's
// middleware stack (Logger, Recoverer, RequestID, CORS).
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/geraldfingburke/trendwatch/internal/queryapi"
	"github.com/geraldfingburke/trendwatch/internal/store"
)

// NewRouter builds the complete HTTP handler: GraphQL at /graphql,
// /healthz, and /stats.
func NewRouter(st *store.Store) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	gqlHandler, err := queryapi.Handler(st)
	if err != nil {
		return nil, err
	}
	r.Handle("/graphql", gqlHandler)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		report, err := st.Health(req.Context())
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unhealthy: " + err.Error()))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if !report.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(report)
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := st.Stats(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return r, nil
}
