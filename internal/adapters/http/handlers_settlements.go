package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/stakeshare/internal/contracts"
)

func (h *Handler) getSettlement(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetSettlement(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "conversion_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_settlement", err)
		return
	}
	writeSuccess(w, http.StatusOK, toSettlementResponse(rec))
}

func (h *Handler) recomputeSettlements(w http.ResponseWriter, r *http.Request) {
	programID := chi.URLParam(r, "program_id")
	n, err := h.service.RecomputeProgramSettlements(r.Context(), actorFromContext(r.Context()), programID)
	if err != nil {
		writeMappedError(r.Context(), w, "recompute_settlements", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.RecomputeResponse{ProgramID: programID, Recomputed: n})
}

func (h *Handler) operatorQueue(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListOperatorQueue(r.Context(), actorFromContext(r.Context()), parseIntDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		writeMappedError(r.Context(), w, "operator_queue", err)
		return
	}
	out := contracts.PayoutListResponse{Items: make([]contracts.PayoutResponse, 0, len(items))}
	for _, p := range items {
		out.Items = append(out.Items, toPayoutResponse(p))
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) requeuePayout(w http.ResponseWriter, r *http.Request) {
	payoutID := chi.URLParam(r, "payout_id")
	if err := h.service.RequeuePayout(r.Context(), actorFromContext(r.Context()), payoutID); err != nil {
		writeMappedError(r.Context(), w, "requeue_payout", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"payout_id": payoutID, "status": "pending"})
}
