package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/contracts"
	"github.com/viralforge/stakeshare/internal/domain"
)

func (h *Handler) requestTermination(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req contracts.RequestTerminationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "request_termination", err)
		return
	}
	effective, err := parseTimestamp(req.EffectiveDate)
	if err != nil {
		writeMappedError(r.Context(), w, "request_termination", invalid(err.Error()))
		return
	}
	out, err := h.service.RequestTermination(r.Context(), actorFromContext(r.Context()), application.RequestTerminationInput{
		ContractID:    req.ContractID,
		Reason:        req.Reason,
		EffectiveDate: effective,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "request_termination", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toTerminationResponse(out))
}

func (h *Handler) getTermination(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetTermination(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "request_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_termination", err)
		return
	}
	writeSuccess(w, http.StatusOK, toTerminationResponse(out))
}

func (h *Handler) terminationAudit(w http.ResponseWriter, r *http.Request) {
	trail, err := h.service.ListTerminationAudit(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "request_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "termination_audit", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"items": trail})
}

type decisionFunc func(ctx context.Context, actor application.Actor, requestID, note string) (domain.TerminationRequest, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, operation string, fn decisionFunc) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req contracts.TerminationDecisionRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeValidationError(r.Context(), w, operation, err)
		return
	}
	out, err := fn(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "request_id"), req.Note)
	if err != nil {
		writeMappedError(r.Context(), w, operation, err)
		return
	}
	writeSuccess(w, http.StatusOK, toTerminationResponse(out))
}

func (h *Handler) approveTermination(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "approve_termination", h.service.ApproveTermination)
}

func (h *Handler) rejectTermination(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject_termination", h.service.RejectTermination)
}

func (h *Handler) cancelTermination(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "cancel_termination", h.service.CancelTermination)
}
