package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"molten/internal/app"
	"molten/pkg/catalog"
	"molten/pkg/domain"
	"molten/pkg/queue"
)

var errInvalidCOE = errors.New("invalid coe value")

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSearchItems(w, r)
	case http.MethodPost:
		s.handleCreateItem(w, r)
	default:
		methodNotAllowed(w)
	}
}

// GET /items?coe=104&mfr=cim&tag=opaque&q=avocado&withInventory=true
func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	constraints, err := constraintsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.URL.Query().Get("withInventory") == "true" {
		summaries, err := s.catalog.SearchWithInventory(r.Context(), constraints)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": summaries,
			"count": len(summaries),
		})
		return
	}
	items, err := s.catalog.Search(r.Context(), constraints)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func constraintsFromQuery(r *http.Request) (catalog.Constraints, error) {
	q := r.URL.Query()
	var constraints catalog.Constraints
	for _, raw := range q["coe"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			coe, err := strconv.Atoi(part)
			if err != nil {
				return catalog.Constraints{}, errInvalidCOE
			}
			constraints.COEs = append(constraints.COEs, coe)
		}
	}
	constraints.Manufacturers = splitParams(q["mfr"])
	constraints.Tags = splitParams(q["tag"])
	constraints.Query = q.Get("q")
	return constraints, nil
}

func splitParams(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var item domain.GlassItem
	if err := decodeBody(r, &item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := s.catalog.CreateItem(r.Context(), item)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// /items/{key}, /items/{key}/inventory, /items/{key}/note
func (s *Server) handleItemByKey(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/items/")
	parts := strings.SplitN(path, "/", 2)
	key := parts[0]
	if key == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "inventory":
			s.handleItemInventory(w, r, key)
		case "note":
			s.handleItemNote(w, r, key)
		default:
			notFound(w, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, found, err := s.catalog.GetItem(r.Context(), key)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if !found {
			notFound(w, "item not found")
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPut:
		var item domain.GlassItem
		if err := decodeBody(r, &item); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		item.NaturalKey = key
		if err := s.catalog.UpdateItem(r.Context(), item); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	default:
		methodNotAllowed(w)
	}
}

// GET /items/{key}/inventory returns the entries plus the aggregate level.
func (s *Server) handleItemInventory(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	entries, err := s.inventory.ListEntriesByItem(r.Context(), key)
	if err != nil {
		writeAppError(w, err)
		return
	}
	level, err := s.inventory.Level(r.Context(), key)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"level":   level,
	})
}

// GET /deeplink/{id} resolves a QR stable ID.
func (s *Server) handleDeepLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/deeplink/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	item, found, err := s.catalog.ResolveDeepLink(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !found {
		notFound(w, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// POST /catalog/import?dryRun=true&mfr=cim&maxItems=50 with the catalog
// payload as the request body.
func (s *Server) handleCatalogImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	q := r.URL.Query()
	opts := app.ImportOptions{
		DryRun: q.Get("dryRun") == "true",
	}
	if mfrs := splitParams(q["mfr"]); len(mfrs) > 0 {
		opts.Manufacturers = mfrs
	}
	if raw := q.Get("maxItems"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid maxItems")
			return
		}
		opts.MaxItems = n
	}
	name := q.Get("filename")
	report, err := s.loader.LoadBytes(r.Context(), name, data, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// POST /catalog/import/jobs enqueues a merge of a server-side catalog file.
func (s *Server) handleImportJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.imports == nil {
		writeError(w, http.StatusServiceUnavailable, "import queue not configured")
		return
	}
	var req queue.ImportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	job, err := s.imports.Enqueue(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// GET /catalog/import/jobs/{id}
func (s *Server) handleImportJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.imports == nil {
		writeError(w, http.StatusServiceUnavailable, "import queue not configured")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/catalog/import/jobs/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	job, found, err := s.imports.GetJob(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !found {
		notFound(w, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}
