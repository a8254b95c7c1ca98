package api

import "net/http"

func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/decisions", h.limit(h.Decide))
	mux.HandleFunc("GET /v1/audit", h.ListAudit)
	mux.HandleFunc("GET /healthz", h.Health)
	return mux
}
