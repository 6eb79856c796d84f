package server

import (
	"net/http"
	"strings"

	"molten/pkg/domain"
)

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if itemKey := r.URL.Query().Get("item"); itemKey != "" {
			entries, err := s.inventory.ListEntriesByItem(r.Context(), itemKey)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
			return
		}
		entries, err := s.inventory.ListEntries(r.Context())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
	case http.MethodPost:
		var entry domain.InventoryEntry
		if err := decodeBody(r, &entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := s.inventory.CreateEntry(r.Context(), entry)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

// /inventory/{id} or /inventory/{id}/adjust
func (s *Server) handleInventoryByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/inventory/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		if parts[1] != "adjust" {
			notFound(w, "not found")
			return
		}
		s.handleAdjustInventory(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		entry, found, err := s.inventory.GetEntry(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if !found {
			notFound(w, "entry not found")
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodPut:
		var entry domain.InventoryEntry
		if err := decodeBody(r, &entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		entry.ID = id
		if err := s.inventory.UpdateEntry(r.Context(), entry); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		if err := s.inventory.DeleteEntry(r.Context(), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// POST /inventory/{id}/adjust applies a quantity delta, clamped at zero.
func (s *Server) handleAdjustInventory(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Delta float64 `json:"delta"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	entry, err := s.inventory.AdjustQuantity(r.Context(), id, req.Delta)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
