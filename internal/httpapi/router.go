// Package httpapi is the thin HTTP layer over the domain services. Handlers
// delegate to the services and translate the error taxonomy to status codes;
// no business rules live here.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"condosync/internal/condo"
	"condosync/internal/identity"
	"condosync/internal/notify"
	"condosync/internal/views"
	"condosync/pkg/syncerrors"
)

// Services bundles everything the router exposes. Nil members disable their
// routes.
type Services struct {
	Suggestions   *condo.Suggestions
	Packages      *condo.Packages
	Debtors       *condo.Debtors
	Meetings      *condo.Meetings
	Users         *condo.Users
	Notifier      *notify.Notifier
	Inbox         chan<- notify.Notification
	Community     *views.Community
	TokenVerifier *identity.TokenValidator
	Logger        *slog.Logger
	Registry      *prometheus.Registry
}

// NewRouter wires the public endpoints. Everything under /api requires a
// bearer token; /healthz and /metrics stay open.
func NewRouter(s Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(requireAuth(s.TokenVerifier, s.Logger))

		if s.Suggestions != nil {
			h := &suggestionHandler{service: s.Suggestions, logger: s.Logger}
			api.Get("/suggestions", h.list)
			api.Post("/suggestions", h.submit)
			api.Post("/suggestions/{id}/like", h.like)
			api.Delete("/suggestions/{id}/like", h.unlike)
			api.Post("/suggestions/{id}/resolve", h.resolve)
		}
		if s.Packages != nil {
			h := &packageHandler{service: s.Packages, logger: s.Logger}
			api.Get("/packages", h.list)
			api.Post("/packages", h.register)
			api.Post("/packages/{id}/deliver", h.deliver)
		}
		if s.Debtors != nil {
			h := &debtorHandler{service: s.Debtors, logger: s.Logger}
			api.Get("/debtors", h.list)
			api.Post("/debtors", h.open)
			api.Post("/debtors/{id}/status", h.setStatus)
		}
		if s.Meetings != nil {
			h := &meetingHandler{service: s.Meetings, users: s.Users, logger: s.Logger}
			api.Get("/meetings", h.list)
			api.Post("/meetings", h.create)
			api.Post("/meetings/{id}/attendance", h.confirm)
			api.Delete("/meetings/{id}/attendance", h.cancel)
		}
		if s.Notifier != nil {
			h := &notificationHandler{notifier: s.Notifier, inbox: s.Inbox, logger: s.Logger}
			api.Get("/notifications", h.list)
			api.Post("/notifications/{id}/read", h.markRead)
			if s.Inbox != nil {
				api.Post("/notifications/bulk", h.bulk)
			}
		}
		if s.Community != nil {
			api.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
				if err := s.Community.Refresh(r.Context()); err != nil {
					writeError(w, s.Logger, err)
					return
				}
				writeJSON(w, http.StatusOK, s.Community.Stats())
			})
		}
	})

	return r
}

// requireAuth resolves the bearer token into the request identity. Handlers
// and stores downstream read it via identity.FromContext.
func requireAuth(verifier *identity.TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				writeJSON(w, http.StatusUnauthorized, errorBody("authentication is not configured"))
				return
			}
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				writeJSON(w, http.StatusUnauthorized, errorBody("missing bearer token"))
				return
			}
			id, err := verifier.Validate(raw)
			if err != nil {
				if logger != nil {
					logger.Warn("token rejected", "error", err)
				}
				writeJSON(w, http.StatusUnauthorized, errorBody("invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// writeError maps the error taxonomy onto status codes. Transport failures
// surface as 502: the authoritative store, not this service, is unavailable.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch syncerrors.KindOf(err) {
	case syncerrors.KindValidation:
		status = http.StatusBadRequest
	case syncerrors.KindPermission:
		status = http.StatusForbidden
	case syncerrors.KindNotFound:
		status = http.StatusNotFound
	case syncerrors.KindTransport:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}
