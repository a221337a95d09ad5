// Package api exposes a directory session over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/terminally-online/warden/internal/api/respond"
	"github.com/terminally-online/warden/internal/directory"
	"github.com/terminally-online/warden/internal/provider"
	"github.com/terminally-online/warden/internal/session"
)

type QueryRequest struct {
	Query string `json:"query"`
}

type HealthResponse struct {
	Status      string               `json:"status"`
	CacheStatus directory.LoadStatus `json:"cacheStatus"`
	Users       int                  `json:"users"`
	InFlight    int                  `json:"inFlight"`
}

type Handler struct {
	session *session.Session
	timeout time.Duration
	router  *mux.Router
}

func NewHandler(sess *session.Session, gatherer prometheus.Gatherer, timeout time.Duration, log zerolog.Logger) *Handler {
	h := &Handler{
		session: sess,
		timeout: timeout,
	}

	r := mux.NewRouter()
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	}))

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/state", h.handleState).Methods(http.MethodGet)
	r.HandleFunc("/directory/mount", h.handleMount).Methods(http.MethodPost)
	r.HandleFunc("/directory/load", h.handleLoad).Methods(http.MethodPost)
	r.HandleFunc("/directory/query", h.handleQuery).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/ban", h.handleBan(true)).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/ban", h.handleBan(false)).Methods(http.MethodDelete)
	r.HandleFunc("/notifications", h.handleNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{id}", h.handleDismiss).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.WriteNotFound(w, r, "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := h.session.State()
	respond.WriteJSON(w, r, http.StatusOK, HealthResponse{
		Status:      "ok",
		CacheStatus: state.CacheStatus,
		Users:       len(state.Users),
		InFlight:    len(state.InFlight),
	})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, r, http.StatusOK, h.session.State())
}

func (h *Handler) handleMount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.writeLoadResult(w, r, h.session.Mount(ctx))
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.writeLoadResult(w, r, h.session.LoadDirectory(ctx))
}

func (h *Handler) writeLoadResult(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("directory load failed")
		respond.WriteError(w, r, statusFor(err), err.Error())
		return
	}
	respond.WriteJSON(w, r, http.StatusOK, h.session.State())
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, r, "invalid request body")
		return
	}

	h.session.SetSearchQuery(req.Query)
	respond.WriteJSON(w, r, http.StatusOK, h.session.State())
}

func (h *Handler) handleBan(banned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		outcome, err := h.session.ToggleBan(ctx, id, banned)
		if err != nil {
			respond.WriteError(w, r, statusFor(err), err.Error())
			return
		}
		respond.WriteJSON(w, r, http.StatusOK, outcome)
	}
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, r, http.StatusOK, h.session.Notifications())
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if !h.session.Dismiss(mux.Vars(r)["id"]) {
		respond.WriteNotFound(w, r, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	var perr *provider.Error
	switch {
	case errors.Is(err, session.ErrMutationInFlight):
		return http.StatusConflict
	case errors.Is(err, provider.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &perr) && perr.StatusCode == http.StatusBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
