package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"molten/internal/app"
	"molten/internal/ratelimit"
	"molten/pkg/domain"
	"molten/pkg/queue"
	"molten/pkg/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemoryStore()
	catalogSvc := app.NewCatalogService(st, nil)
	srv := New(Config{
		Catalog:       catalogSvc,
		Inventory:     app.NewInventoryService(st),
		Shopping:      app.NewShoppingService(st),
		Purchases:     app.NewPurchaseService(st),
		Projects:      app.NewProjectService(st, nil),
		Loader:        app.NewLoaderService(catalogSvc),
		PresignExpiry: time.Minute,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestItemLifecycle(t *testing.T) {
	ts := newTestServer(t)

	item := domain.GlassItem{
		Name:         "Avocado",
		Manufacturer: "cim",
		SKU:          "550",
		COE:          104,
		Tags:         []string{"green"},
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/items", item)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created domain.GlassItem
	decodeInto(t, resp, &created)
	if created.NaturalKey != "cim-550-0" {
		t.Fatalf("natural key = %q", created.NaturalKey)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/items", item)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/items/cim-550-0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var fetched domain.GlassItem
	decodeInto(t, resp, &fetched)
	if fetched.Name != "Avocado" {
		t.Fatalf("name = %q", fetched.Name)
	}

	resp, err = http.Get(ts.URL + "/items/nope-1-0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing item status = %d", resp.StatusCode)
	}
}

func TestItemValidationStatus(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/items", domain.GlassItem{Manufacturer: "cim", SKU: "550"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body struct {
		Code     string   `json:"code"`
		Messages []string `json:"messages"`
	}
	decodeInto(t, resp, &body)
	if body.Code != "VALIDATION_FAILED" || len(body.Messages) == 0 {
		t.Fatalf("body = %+v", body)
	}
}

func TestSearchItems(t *testing.T) {
	ts := newTestServer(t)

	for i, name := range []string{"Avocado", "Salsa Verde"} {
		item := domain.GlassItem{
			Name:         name,
			Manufacturer: "cim",
			SKU:          fmt.Sprintf("55%d", i),
			COE:          104,
		}
		resp := doJSON(t, http.MethodPost, ts.URL+"/items", item)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d", resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/items?q=salsa&coe=104")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		Items []domain.GlassItem `json:"items"`
		Count int                `json:"count"`
	}
	decodeInto(t, resp, &body)
	if body.Count != 1 || body.Items[0].Name != "Salsa Verde" {
		t.Fatalf("search = %+v", body)
	}

	resp, err = http.Get(ts.URL + "/items?coe=abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad coe status = %d", resp.StatusCode)
	}
}

func TestDeepLinkEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/items", domain.GlassItem{
		Name: "Avocado", Manufacturer: "cim", SKU: "550", COE: 104, StableID: "A3F9K2",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/deeplink/A3F9K2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var item domain.GlassItem
	decodeInto(t, resp, &item)
	if item.NaturalKey != "cim-550-0" {
		t.Fatalf("resolved %q", item.NaturalKey)
	}

	resp, err = http.Get(ts.URL + "/deeplink/zzzzzz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", resp.StatusCode)
	}
}

func TestNoteEndpoints(t *testing.T) {
	ts := newTestServer(t)

	note := map[string]string{"text": "Strikes darker when reduced."}
	resp := doJSON(t, http.MethodPost, ts.URL+"/notes/cim-550-0", note)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/notes/cim-550-0", note)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, ts.URL+"/notes/cim-550-0", map[string]string{"text": "updated"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/notes?q=updated")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		Notes []domain.UserNote `json:"notes"`
		Count int               `json:"count"`
	}
	decodeInto(t, resp, &body)
	if body.Count != 1 {
		t.Fatalf("search = %+v", body)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/notes", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete all status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/notes/cim-550-0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("note after delete all status = %d", resp.StatusCode)
	}
}

func TestShoppingEndpoints(t *testing.T) {
	ts := newTestServer(t)

	entry := domain.ShoppingListEntry{ItemKey: "cim-550-0", Store: "Frantz", Quantity: 2}
	resp := doJSON(t, http.MethodPut, ts.URL+"/shopping", entry)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/shopping/Frantz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		Entries []domain.ShoppingListEntry `json:"entries"`
		Count   int                        `json:"count"`
	}
	decodeInto(t, resp, &body)
	if body.Count != 1 || body.Entries[0].ItemKey != "cim-550-0" {
		t.Fatalf("list = %+v", body)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/shopping/Frantz/cim-550-0", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/shopping/Frantz/cim-550-0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted entry status = %d", resp.StatusCode)
	}
}

func TestInventoryAdjustEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/inventory", domain.InventoryEntry{
		ItemKey: "cim-550-0", Type: domain.StockRod, Quantity: 5,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created domain.InventoryEntry
	decodeInto(t, resp, &created)

	resp = doJSON(t, http.MethodPost, ts.URL+"/inventory/"+created.ID+"/adjust", map[string]float64{"delta": -2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("adjust status = %d", resp.StatusCode)
	}
	var adjusted domain.InventoryEntry
	decodeInto(t, resp, &adjusted)
	if adjusted.Quantity != 3 {
		t.Fatalf("quantity = %v", adjusted.Quantity)
	}
}

func TestCatalogImportEndpoint(t *testing.T) {
	ts := newTestServer(t)

	payload := `{"glassitems": [{"code": "550", "name": "Avocado", "manufacturer": "cim", "coe": "104"}]}`
	resp, err := http.Post(ts.URL+"/catalog/import", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var report app.LoadReport
	decodeInto(t, resp, &report)
	if report.Stats.New != 1 {
		t.Fatalf("report = %+v", report)
	}

	resp, err = http.Get(ts.URL + "/items/cim-550-0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("imported item status = %d", resp.StatusCode)
	}
}

func TestProjectImageUnavailable(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/projects", domain.Project{Title: "Ocean pendant"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var project domain.Project
	decodeInto(t, resp, &project)

	resp, err := http.Get(ts.URL + "/projects/" + project.ID + "/images/img-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("image url status = %d", resp.StatusCode)
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("nosniff header missing")
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestImportJobsUnconfigured(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/catalog/import/jobs", queue.ImportRequest{Path: "data/glassitems.json"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("enqueue status = %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/catalog/import/jobs/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status lookup status = %d", resp.StatusCode)
	}
}

func TestImportJobsEnqueue(t *testing.T) {
	st := store.NewMemoryStore()
	catalogSvc := app.NewCatalogService(st, nil)
	redisSrv := miniredis.RunT(t)
	imports, err := queue.New(queue.Config{Addr: redisSrv.Addr()})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	srv := New(Config{
		Catalog:   catalogSvc,
		Inventory: app.NewInventoryService(st),
		Shopping:  app.NewShoppingService(st),
		Purchases: app.NewPurchaseService(st),
		Projects:  app.NewProjectService(st, nil),
		Loader:    app.NewLoaderService(catalogSvc),
		Imports:   imports,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	resp := doJSON(t, http.MethodPost, ts.URL+"/catalog/import/jobs", queue.ImportRequest{Path: "data/glassitems.json"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("enqueue status = %d", resp.StatusCode)
	}
	var job queue.JobStatus
	decodeInto(t, resp, &job)
	if job.ID == "" || job.Status != queue.StatusQueued {
		t.Fatalf("unexpected job: %+v", job)
	}

	resp, err = http.Get(ts.URL + "/catalog/import/jobs/" + job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var got queue.JobStatus
	decodeInto(t, resp, &got)
	if got.Request.Path != "data/glassitems.json" {
		t.Fatalf("job path = %q", got.Request.Path)
	}

	resp, err = http.Get(ts.URL + "/catalog/import/jobs/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing job status = %d", resp.StatusCode)
	}
}

func TestScanRateLimit(t *testing.T) {
	st := store.NewMemoryStore()
	catalogSvc := app.NewCatalogService(st, nil)
	redisSrv := miniredis.RunT(t)
	limiter, err := ratelimit.New(redisSrv.Addr(), "", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	srv := New(Config{
		Catalog:     catalogSvc,
		Inventory:   app.NewInventoryService(st),
		Shopping:    app.NewShoppingService(st),
		Purchases:   app.NewPurchaseService(st),
		Projects:    app.NewProjectService(st, nil),
		Loader:      app.NewLoaderService(catalogSvc),
		ScanLimiter: limiter,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/deeplink/zzzzzz")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("request %d status = %d", i, resp.StatusCode)
		}
	}
	resp, err := http.Get(ts.URL + "/deeplink/zzzzzz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("throttled status = %d", resp.StatusCode)
	}

	// Other routes are not throttled.
	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}
