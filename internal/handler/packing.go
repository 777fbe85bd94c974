package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/middleware"
)

// packingListRequest is the request body for PUT /trips/{id}/packing-list.
// The whole list is replaced on each save.
type packingListRequest struct {
	Items []packingItemRequest `json:"items" validate:"dive"`
}

type packingItemRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
	Packed   bool   `json:"packed"`
	Category string `json:"category"`
}

// GetPackingList handles GET /trips/{id}/packing-list.
// A trip with no saved list gets an empty one.
func (s *Server) GetPackingList(w http.ResponseWriter, r *http.Request) {
	list, err := s.packing.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// PutPackingList handles PUT /trips/{id}/packing-list.
func (s *Server) PutPackingList(w http.ResponseWriter, r *http.Request) {
	var req packingListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	items := make([]domain.PackingItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.PackingItem{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Packed:   item.Packed,
			Category: item.Category,
		}
	}

	saved, err := s.packing.Put(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), domain.PackingList{Items: items})
	if err != nil {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
