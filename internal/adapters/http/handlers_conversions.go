package http

import (
	"bytes"
	"io"
	"net/http"

	"github.com/viralforge/stakeshare/internal/adapters/security"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
)

// conversionWebhook answers 200 for every structurally valid delivery, including
// ones that cannot be attributed, so the merchant's checkout never retries on them.
func (h *Handler) conversionWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeValidationError(r.Context(), w, "conversion_webhook", err)
		return
	}
	if h.opts.WebhookSecret != "" && !security.VerifyPayloadSignature(h.opts.WebhookSecret, body, r.Header.Get("X-Signature")) {
		writeMappedError(r.Context(), w, "conversion_webhook", domain.ErrUnauthorized)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var req contracts.ConversionWebhookRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "conversion_webhook", err)
		return
	}
	if req.RevenueAmount == nil {
		writeMappedError(r.Context(), w, "conversion_webhook", invalid("revenueAmount is required"))
		return
	}
	occurredAt, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeMappedError(r.Context(), w, "conversion_webhook", invalid(err.Error()))
		return
	}

	res, err := h.service.IngestConversion(r.Context(), application.IngestConversionInput{
		ReferralCode:       req.ReferralCode,
		ClientID:           req.ClientID,
		CompanyID:          req.CompanyID,
		RevenueAmountCents: *req.RevenueAmount,
		Currency:           req.Currency,
		CustomerEmail:      req.CustomerEmail,
		ConversionType:     req.ConversionType,
		OrderID:            req.OrderID,
		OccurredAt:         occurredAt,
		RequestID:          requestIDFromContext(r.Context()),
	})
	if err != nil {
		writeMappedError(r.Context(), w, "conversion_webhook", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.ConversionWebhookResponse{
		Attributed:   res.Attributed,
		Duplicate:    res.Duplicate,
		ConversionID: res.Conversion.ConversionID,
		DedupKey:     res.DedupKey,
	})
}

func (h *Handler) listUnattributed(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListUnattributed(r.Context(), actorFromContext(r.Context()), parseIntDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		writeMappedError(r.Context(), w, "list_unattributed", err)
		return
	}
	out := contracts.UnattributedListResponse{Items: make([]contracts.UnattributedResponse, 0, len(items))}
	for _, n := range items {
		out.Items = append(out.Items, toUnattributedResponse(n))
	}
	writeSuccess(w, http.StatusOK, out)
}
