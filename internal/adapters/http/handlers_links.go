package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/contracts"
)

func (h *Handler) generateLink(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req contracts.GenerateLinkRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "generate_link", err)
		return
	}
	link, err := h.service.GenerateLink(r.Context(), actorFromContext(r.Context()), application.GenerateLinkInput{
		CreatorID:      req.CreatorID,
		ProgramID:      req.ProgramID,
		DestinationURL: req.DestinationURL,
		CampaignName:   req.CampaignName,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "generate_link", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toLinkResponse(link))
}

func (h *Handler) getLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.GetLinkByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_link", err)
		return
	}
	writeSuccess(w, http.StatusOK, toLinkResponse(link))
}

func (h *Handler) listLinks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	links, err := h.service.ListLinks(r.Context(), actorFromContext(r.Context()), q.Get("creator_id"), q.Get("program_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "list_links", err)
		return
	}
	out := contracts.LinksListResponse{Items: make([]contracts.LinkResponse, 0, len(links))}
	for _, l := range links {
		out.Items = append(out.Items, toLinkResponse(l))
	}
	writeSuccess(w, http.StatusOK, out)
}
