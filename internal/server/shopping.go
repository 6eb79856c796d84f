package server

import (
	"net/http"
	"net/url"
	"strings"

	"molten/pkg/domain"
)

func (s *Server) handleShopping(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.shopping.ListEntries(r.Context())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
	case http.MethodPut:
		var entry domain.ShoppingListEntry
		if err := decodeBody(r, &entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		saved, err := s.shopping.SetEntry(r.Context(), entry)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

// /shopping/stores, /shopping/{store} or /shopping/{store}/{itemKey}.
// Store names and keys are path-escaped by clients.
func (s *Server) handleShoppingByStore(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/shopping/")
	parts := strings.SplitN(path, "/", 2)
	storeName, err := url.PathUnescape(parts[0])
	if err != nil || storeName == "" {
		notFound(w, "not found")
		return
	}

	if storeName == "stores" && len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		names, err := s.shopping.Stores(r.Context())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stores": names, "count": len(names)})
		return
	}

	if len(parts) == 2 {
		itemKey, err := url.PathUnescape(parts[1])
		if err != nil || itemKey == "" {
			notFound(w, "not found")
			return
		}
		s.handleShoppingEntry(w, r, storeName, itemKey)
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	entries, err := s.shopping.ListByStore(r.Context(), storeName)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleShoppingEntry(w http.ResponseWriter, r *http.Request, storeName, itemKey string) {
	switch r.Method {
	case http.MethodGet:
		entry, found, err := s.shopping.GetEntry(r.Context(), itemKey, storeName)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if !found {
			notFound(w, "entry not found")
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := s.shopping.DeleteEntry(r.Context(), itemKey, storeName); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}
