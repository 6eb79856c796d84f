package server

import (
	"net/http"
	"strings"

	"molten/pkg/domain"
)

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projects, err := s.projects.ListProjects(r.Context())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects, "count": len(projects)})
	case http.MethodPost:
		var project domain.Project
		if err := decodeBody(r, &project); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := s.projects.CreateProject(r.Context(), project)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

// /projects/{id}, /projects/{id}/images or /projects/{id}/images/{refID}
func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/projects/")
	parts := strings.SplitN(path, "/", 3)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) >= 2 {
		if parts[1] != "images" {
			notFound(w, "not found")
			return
		}
		if len(parts) == 3 && parts[2] != "" {
			s.handleProjectImage(w, r, id, parts[2])
			return
		}
		s.handleUploadImage(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		project, found, err := s.projects.GetProject(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if !found {
			notFound(w, "project not found")
			return
		}
		writeJSON(w, http.StatusOK, project)
	case http.MethodPut:
		var project domain.Project
		if err := decodeBody(r, &project); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		project.ID = id
		if err := s.projects.UpdateProject(r.Context(), project); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		if err := s.projects.DeleteProject(r.Context(), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// POST /projects/{id}/images uploads a multipart image (field: file).
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	contentType := header.Header.Get("Content-Type")
	caption := r.FormValue("caption")
	ref, err := s.projects.AttachImage(r.Context(), id, header.Filename, contentType, file, header.Size, caption)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// GET returns a short-lived download URL; DELETE removes binary and metadata.
func (s *Server) handleProjectImage(w http.ResponseWriter, r *http.Request, id, refID string) {
	switch r.Method {
	case http.MethodGet:
		url, err := s.projects.ImageURL(r.Context(), id, refID, s.presignExpiry)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	case http.MethodDelete:
		if err := s.projects.RemoveImage(r.Context(), id, refID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}
