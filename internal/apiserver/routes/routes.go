package routes

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"synnergy-registrar/internal/apiserver/controllers"
	"synnergy-registrar/internal/apiserver/middleware"
)

// Register mounts the registrar's HTTP surface (spec.md §6) onto r. When reg
// is non-nil, the worker's metric set is additionally exposed at /metrics for
// Prometheus scraping.
func Register(r *mux.Router, rc *controllers.RegistrarController, reg *prometheus.Registry) {
	r.Use(middleware.Logger)
	r.HandleFunc("/api/registrar/state", rc.State).Methods("GET")
	r.HandleFunc("/api/registrar/wallet", rc.SetWallet).Methods("POST")
	r.HandleFunc("/api/registrar/preorder", rc.Preorder).Methods("POST")
	r.HandleFunc("/api/registrar/update", rc.Update).Methods("POST")
	r.HandleFunc("/api/registrar/transfer", rc.Transfer).Methods("POST")
	r.HandleFunc("/api/registrar/renew", rc.Renew).Methods("POST")
	r.HandleFunc("/api/registrar/revoke", rc.Revoke).Methods("POST")
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	}
}
