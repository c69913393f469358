package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
)

const attributionCookie = "ss_attr"

func (h *Handler) allowClick(r *http.Request) bool {
	if h.opts.Limiter == nil {
		return true
	}
	return h.opts.Limiter.Allow(readIP(r))
}

// redirect records the click, sets the attribution cookie and sends the visitor
// to the link destination.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request) {
	if !h.allowClick(r) {
		writeMappedError(r.Context(), w, "redirect", domain.ErrRateLimited)
		return
	}
	q := r.URL.Query()
	cc := application.ClientContext{
		UTMSource:   q.Get("utm_source"),
		UTMMedium:   q.Get("utm_medium"),
		UTMCampaign: q.Get("utm_campaign"),
		Referrer:    r.Referer(),
		IP:          readIP(r),
		UserAgent:   r.UserAgent(),
	}
	if c, err := r.Cookie(attributionCookie); err == nil {
		cc.ClientID = strings.TrimSpace(c.Value)
	}

	res, err := h.service.RecordClick(r.Context(), chi.URLParam(r, "code"), cc)
	if err != nil {
		writeMappedError(r.Context(), w, "redirect", err)
		return
	}
	if !res.Found {
		if h.opts.FallbackRedirectURL == "" {
			writeMappedError(r.Context(), w, "redirect", domain.ErrNotFound)
			return
		}
		http.Redirect(w, r, h.opts.FallbackRedirectURL, http.StatusFound)
		return
	}
	expires := res.Token.ExpiresAt()
	if res.Token.FirstSeenAt.IsZero() {
		expires = time.Now().UTC().Add(domain.AttributionWindow)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     attributionCookie,
		Value:    res.ClientID,
		Path:     "/",
		Domain:   h.opts.CookieDomain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, res.DestinationURL, http.StatusFound)
}

func (h *Handler) recordClick(w http.ResponseWriter, r *http.Request) {
	if !h.allowClick(r) {
		writeMappedError(r.Context(), w, "record_click", domain.ErrRateLimited)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req contracts.RecordClickRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "record_click", err)
		return
	}
	res, err := h.service.RecordClick(r.Context(), req.Ref, application.ClientContext{
		ClientID:    req.ClientID,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		Referrer:    req.Referrer,
		IP:          readIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		writeMappedError(r.Context(), w, "record_click", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.RecordClickResponse{
		Found:          res.Found,
		ClientID:       res.ClientID,
		DestinationURL: res.DestinationURL,
	})
}

func (h *Handler) resolveAttribution(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	code, ok, err := h.service.ResolveClient(r.Context(), clientID)
	if err != nil {
		writeMappedError(r.Context(), w, "resolve_attribution", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.AttributionResponse{ClientID: clientID, ReferralCode: code, Attributed: ok})
}
