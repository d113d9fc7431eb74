package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func addRoutes(r chi.Router, ctrl Controller, checkers map[string]Checker) {
	r.Get("/health", handleHealth(checkers))
	r.Handle("/metrics", promhttp.Handler())

	if ctrl == nil {
		return
	}

	r.Route("/monitoring", func(r chi.Router) {
		r.Get("/", handleStatus(ctrl))
		r.Post("/run", handleRun(ctrl))
		r.Post("/launch", handleLaunch(ctrl))
		r.Post("/break", handleBreak(ctrl))
	})
}
