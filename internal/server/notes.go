package server

import (
	"net/http"
	"strings"

	"molten/pkg/domain"
)

// /notes supports listing, full-text search and bulk delete.
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if q := r.URL.Query().Get("q"); q != "" {
			notes, err := s.catalog.SearchNotes(r.Context(), q)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"notes": notes, "count": len(notes)})
			return
		}
		notes, err := s.catalog.ListNotes(r.Context())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notes": notes, "count": len(notes)})
	case http.MethodDelete:
		if err := s.catalog.DeleteAllNotes(r.Context()); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// /notes/{itemKey}
func (s *Server) handleNoteByKey(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/notes/")
	if key == "" || strings.Contains(key, "/") {
		notFound(w, "not found")
		return
	}
	s.handleItemNote(w, r, key)
}

// Note operations shared by /notes/{itemKey} and /items/{key}/note. POST
// creates and conflicts on duplicates, PUT replaces or creates.
func (s *Server) handleItemNote(w http.ResponseWriter, r *http.Request, key string) {
	switch r.Method {
	case http.MethodGet:
		note, found, err := s.catalog.GetNote(r.Context(), key)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if !found {
			notFound(w, "note not found")
			return
		}
		writeJSON(w, http.StatusOK, note)
	case http.MethodPost:
		note, ok := decodeNote(w, r, key)
		if !ok {
			return
		}
		created, err := s.catalog.CreateNote(r.Context(), note)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodPut:
		note, ok := decodeNote(w, r, key)
		if !ok {
			return
		}
		saved, err := s.catalog.SetNote(r.Context(), note)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	case http.MethodDelete:
		if err := s.catalog.DeleteNote(r.Context(), key); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func decodeNote(w http.ResponseWriter, r *http.Request, key string) (domain.UserNote, bool) {
	var note domain.UserNote
	if err := decodeBody(r, &note); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return domain.UserNote{}, false
	}
	note.ItemKey = key
	return note, true
}
