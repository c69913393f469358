package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/stakeshare/internal/adapters/security"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/ports"
)

type TokenVerifier interface {
	Verify(raw string) (security.Claims, error)
}

// RequestObserver records per-route latency; the Prometheus adapter implements it.
type RequestObserver interface {
	ObserveHTTP(route, method, code string, elapsed time.Duration)
}

type Options struct {
	WebhookSecret       string
	FallbackRedirectURL string
	CookieDomain        string
	CookieSecure        bool
	Limiter             ports.ClickLimiter
	Verifier            TokenVerifier
	Observer            RequestObserver
	MetricsHandler      http.Handler
	Ready               func() error
}

// Handler is the HTTP adapter entrypoint for referral use-cases.
type Handler struct {
	service *application.Service
	opts    Options
}

func NewHandler(service *application.Service, opts Options) *Handler {
	return &Handler{service: service, opts: opts}
}

// NewRouter registers the public, webhook and authenticated routes.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(handler.loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if handler.opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", handler.opts.MetricsHandler)
	}

	r.Get("/r/{code}", handler.redirect)

	r.Route("/referral/v1", func(r chi.Router) {
		r.Post("/webhooks/conversions", handler.conversionWebhook)
		r.Post("/clicks", handler.recordClick)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/links", handler.generateLink)
			r.Get("/links", handler.listLinks)
			r.Get("/links/{code}", handler.getLink)
			r.Get("/attribution/{client_id}", handler.resolveAttribution)
			r.Get("/settlements/{conversion_id}", handler.getSettlement)
			r.Post("/programs/{program_id}/settlements/recompute", handler.recomputeSettlements)
			r.Post("/terminations", handler.requestTermination)
			r.Get("/terminations/{request_id}", handler.getTermination)
			r.Get("/terminations/{request_id}/audit", handler.terminationAudit)
			r.Post("/terminations/{request_id}/approve", handler.approveTermination)
			r.Post("/terminations/{request_id}/reject", handler.rejectTermination)
			r.Post("/terminations/{request_id}/cancel", handler.cancelTermination)
			r.Get("/operator/payouts", handler.operatorQueue)
			r.Post("/operator/payouts/{payout_id}/requeue", handler.requeuePayout)
			r.Get("/operator/unattributed", handler.listUnattributed)
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		if err := h.opts.Ready(); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", "dependency unavailable", err)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependency unavailable")
			return
		}
	}
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ready"})
}
