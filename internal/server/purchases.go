package server

import (
	"net/http"
	"strings"

	"molten/internal/app"
	"molten/pkg/domain"
)

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records, err := s.purchases.ListPurchases(r.Context())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": records, "count": len(records)})
	case http.MethodPost:
		var record domain.PurchaseRecord
		if err := decodeBody(r, &record); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		opts := app.ReceiveOptions{
			AddToInventory:     r.URL.Query().Get("stock") == "true",
			ClearShoppingStore: r.URL.Query().Get("clearShopping"),
		}
		created, err := s.purchases.ReceivePurchase(r.Context(), record, opts)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

// /purchases/{id}
func (s *Server) handlePurchaseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/purchases/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		record, found, err := s.purchases.GetPurchase(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if !found {
			notFound(w, "purchase not found")
			return
		}
		writeJSON(w, http.StatusOK, record)
	case http.MethodDelete:
		if err := s.purchases.DeletePurchase(r.Context(), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}
