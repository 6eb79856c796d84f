package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"molten/internal/app"
	"molten/internal/ratelimit"
	"molten/internal/util"
	"molten/pkg/queue"
	"molten/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Catalog        *app.CatalogService
	Inventory      *app.InventoryService
	Shopping       *app.ShoppingService
	Purchases      *app.PurchaseService
	Projects       *app.ProjectService
	Loader         *app.LoaderService
	Imports        *queue.ImportQueue
	ScanLimiter    *ratelimit.FixedWindowLimiter
	MaxUploadBytes int64
	PresignExpiry  time.Duration
}

// Server exposes the HTTP API.
type Server struct {
	catalog        *app.CatalogService
	inventory      *app.InventoryService
	shopping       *app.ShoppingService
	purchases      *app.PurchaseService
	projects       *app.ProjectService
	loader         *app.LoaderService
	imports        *queue.ImportQueue
	scanLimiter    *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
	maxUploadBytes int64
	presignExpiry  time.Duration
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 * 1024 * 1024
	}
	presignExpiry := cfg.PresignExpiry
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	s := &Server{
		catalog:        cfg.Catalog,
		inventory:      cfg.Inventory,
		shopping:       cfg.Shopping,
		purchases:      cfg.Purchases,
		projects:       cfg.Projects,
		loader:         cfg.Loader,
		imports:        cfg.Imports,
		scanLimiter:    cfg.ScanLimiter,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		presignExpiry:  presignExpiry,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/items", s.handleItems)
	s.mux.HandleFunc("/items/", s.handleItemByKey)
	s.mux.HandleFunc("/deeplink/", s.withScanLimit(s.handleDeepLink))
	s.mux.HandleFunc("/catalog/import", s.handleCatalogImport)
	s.mux.HandleFunc("/catalog/import/jobs", s.handleImportJobs)
	s.mux.HandleFunc("/catalog/import/jobs/", s.handleImportJobByID)

	s.mux.HandleFunc("/inventory", s.handleInventory)
	s.mux.HandleFunc("/inventory/", s.handleInventoryByID)

	s.mux.HandleFunc("/shopping", s.handleShopping)
	s.mux.HandleFunc("/shopping/", s.handleShoppingByStore)

	s.mux.HandleFunc("/purchases", s.handlePurchases)
	s.mux.HandleFunc("/purchases/", s.handlePurchaseByID)

	s.mux.HandleFunc("/projects", s.handleProjects)
	s.mux.HandleFunc("/projects/", s.handleProjectByID)

	s.mux.HandleFunc("/notes", s.handleNotes)
	s.mux.HandleFunc("/notes/", s.handleNoteByKey)
}

// withScanLimit throttles the public QR scan lookups per client address.
// Without a configured limiter requests pass through untouched.
func (s *Server) withScanLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.scanLimiter != nil && !s.scanLimiter.Allow(clientAddr(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func clientAddr(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

// writeAppError maps service and store errors to HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	var vErr *app.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:    "validation failed",
			Code:     "VALIDATION_FAILED",
			Messages: vErr.Result.Messages,
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, app.ErrImageStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "image storage not configured")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

type validationResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Messages []string `json:"messages"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "ALREADY_EXISTS"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
