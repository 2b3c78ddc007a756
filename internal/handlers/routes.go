package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

func RegisterRoutes(r *mux.Router, ch *ChartHandler) {
	r.HandleFunc("/healthz", HandleHealthCheck).Methods("GET")
	r.HandleFunc("/charts/{key}.{format:svg|png}", ch.HandleServeChart).Methods("GET")
	r.HandleFunc("/api/charts", ch.HandleListCharts).Methods("GET")
	r.HandleFunc("/api/charts/{key}", ch.HandleGetChart).Methods("GET")
	r.HandleFunc("/api/charts/{key}", ch.HandleDeleteChart).Methods("DELETE")
	r.HandleFunc("/api/cleanup", ch.HandleCleanup).Methods("POST")
}

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
