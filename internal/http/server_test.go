package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"subtrackr/internal/blob"
	"subtrackr/internal/hub"
	"subtrackr/internal/log"
	"subtrackr/internal/services"
	"subtrackr/internal/storage"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.DefaultConfig())
	h := hub.New(logger)
	subs := services.NewSubscriptionService(repo, nil, h, "record_changes", logger)
	receipts := services.NewReceiptService(repo, blob.NewMemoryStore(), nil, subs, h, "receipt_jobs", logger)

	srv := NewServer(":0", subs, receipts, h, logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func samplePayload(name string) map[string]any {
	return map[string]any{
		"name":         name,
		"category":     "Entertainment",
		"price":        "12.99",
		"currency":     "EUR",
		"billingCycle": "monthly",
		"nextPayment":  "2025-04-01",
	}
}

func TestSubscriptionCRUDOverHTTP(t *testing.T) {
	_, ts := testServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/subscriptions", samplePayload("Netflix"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	created := decodeBody[subscriptionJSON](t, resp)
	if created.ID == "" || created.Name != "Netflix" || created.PriceCents != 1299 {
		t.Fatalf("created = %+v", created)
	}
	if !created.Active {
		t.Error("active should default to true")
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/subscriptions/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	got := decodeBody[subscriptionJSON](t, resp)
	if got.Name != "Netflix" || got.NextPayment != "2025-04-01" {
		t.Errorf("got = %+v", got)
	}

	update := samplePayload("Netflix Premium")
	update["price"] = "17.99"
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/subscriptions/"+created.ID, update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	updated := decodeBody[subscriptionJSON](t, resp)
	if updated.Name != "Netflix Premium" || updated.PriceCents != 1799 {
		t.Errorf("updated = %+v", updated)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/subscriptions/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/subscriptions/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateValidation(t *testing.T) {
	_, ts := testServer(t)

	payload := samplePayload("")
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/subscriptions", payload)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty name status = %d, want 422", resp.StatusCode)
	}

	payload = samplePayload("Spotify")
	payload["price"] = "12.345"
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/subscriptions", payload)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad price status = %d, want 422", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/subscriptions", strings.NewReader("{broken"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("broken JSON status = %d, want 400", resp.StatusCode)
	}
}

func TestListFiltersAndSort(t *testing.T) {
	_, ts := testServer(t)

	for _, p := range []map[string]any{
		samplePayload("Netflix"),
		samplePayload("Audible"),
	} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/subscriptions", p)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed status = %d", resp.StatusCode)
		}
	}
	paused := samplePayload("Gym App")
	paused["active"] = false
	paused["category"] = "Security"
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/subscriptions", paused)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/subscriptions?status=active&sort=name-asc", nil)
	list := decodeBody[[]subscriptionJSON](t, resp)
	if len(list) != 2 {
		t.Fatalf("active list = %d entries, want 2", len(list))
	}
	if list[0].Name != "Audible" || list[1].Name != "Netflix" {
		t.Errorf("sort order = %q, %q", list[0].Name, list[1].Name)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/subscriptions?category=Security", nil)
	list = decodeBody[[]subscriptionJSON](t, resp)
	if len(list) != 1 || list[0].Name != "Gym App" {
		t.Errorf("category filter = %+v", list)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/subscriptions?q=netf", nil)
	list = decodeBody[[]subscriptionJSON](t, resp)
	if len(list) != 1 || list[0].Name != "Netflix" {
		t.Errorf("search filter = %+v", list)
	}
}

func TestStatsEndpoints(t *testing.T) {
	_, ts := testServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/subscriptions", samplePayload("Netflix"))
	resp.Body.Close()
	yearly := samplePayload("Backup Service")
	yearly["billingCycle"] = "yearly"
	yearly["price"] = "60.00"
	yearly["category"] = "Cloud Storage"
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/subscriptions", yearly)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/stats/summary", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status = %d", resp.StatusCode)
	}
	sum := decodeBody[summaryResponse](t, resp)
	if sum.ActiveCount != 2 {
		t.Errorf("ActiveCount = %d, want 2", sum.ActiveCount)
	}
	// 12.99 monthly + 60.00/12 yearly
	if want := 12.99 + 5.0; sum.MonthlyTotal < want-0.01 || sum.MonthlyTotal > want+0.01 {
		t.Errorf("MonthlyTotal = %v, want ~%v", sum.MonthlyTotal, want)
	}
	if sum.Currency != "EUR" {
		t.Errorf("Currency = %q", sum.Currency)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/stats/categories", nil)
	cats := decodeBody[[]categoryResponse](t, resp)
	if len(cats) != 2 {
		t.Errorf("categories = %+v", cats)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/stats/top?n=1", nil)
	top := decodeBody[[]rankedResponse](t, resp)
	if len(top) != 1 || top[0].Name != "Netflix" {
		t.Errorf("top = %+v", top)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/stats/forecast?months=6", nil)
	buckets := decodeBody[[]forecastBucketResponse](t, resp)
	if len(buckets) != 6 {
		t.Errorf("forecast buckets = %d, want 6", len(buckets))
	}
}

func TestStatsCacheInvalidation(t *testing.T) {
	srv, ts := testServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/stats/summary", nil)
	sum := decodeBody[summaryResponse](t, resp)
	if sum.ActiveCount != 0 {
		t.Fatalf("ActiveCount = %d, want 0", sum.ActiveCount)
	}
	if srv.statsCache.Size() == 0 {
		t.Fatal("stats response was not cached")
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/subscriptions", samplePayload("Netflix"))
	resp.Body.Close()

	// The mutation must purge the cache so the next read sees the record.
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/stats/summary", nil)
	sum = decodeBody[summaryResponse](t, resp)
	if sum.ActiveCount != 1 {
		t.Errorf("ActiveCount after create = %d, want 1", sum.ActiveCount)
	}
}

func TestExportCSV(t *testing.T) {
	_, ts := testServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/subscriptions", samplePayload("Netflix"))
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/subscriptions/export?format=csv", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "Netflix") {
		t.Errorf("CSV body missing record: %q", data)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/subscriptions/export?format=pdf", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", resp.StatusCode)
	}
}

func uploadReceipt(t *testing.T, url, filename string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	_, _ = fw.Write([]byte("fake receipt bytes"))
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, url+"/api/receipts", &buf)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	return resp
}

func TestReceiptUploadAndLifecycle(t *testing.T) {
	_, ts := testServer(t)

	resp := uploadReceipt(t, ts.URL, "invoice.pdf")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d, want 202", resp.StatusCode)
	}
	receipt := decodeBody[receiptJSON](t, resp)
	if receipt.ID == "" || receipt.OriginalFilename != "invoice.pdf" {
		t.Fatalf("receipt = %+v", receipt)
	}
	// No broker in tests, so queueing fails and the receipt lands in error.
	if receipt.Status != storage.ReceiptError {
		t.Fatalf("status = %q, want %q", receipt.Status, storage.ReceiptError)
	}

	// Confirm requires a pending draft; 409 from error state.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/receipts/%s/confirm", ts.URL, receipt.ID), samplePayload("Netflix"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("confirm from error state status = %d, want 409", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/receipts/%s/reject", ts.URL, receipt.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("reject status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/receipts", nil)
	list := decodeBody[[]receiptJSON](t, resp)
	if len(list) != 1 || list[0].Status != storage.ReceiptRejected {
		t.Errorf("list = %+v", list)
	}
}

func TestReceiptsDisabled(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.DefaultConfig())
	h := hub.New(logger)
	subs := services.NewSubscriptionService(repo, nil, h, "record_changes", logger)
	srv := NewServer(":0", subs, nil, h, logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/receipts", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := testServer(t)

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		resp := doJSON(t, http.MethodGet, ts.URL+path, nil)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(body) != want {
			t.Errorf("%s = %d %q, want 200 %q", path, resp.StatusCode, body, want)
		}
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	m := decodeBody[metricsResponse](t, resp)
	if m.TotalRequests < 2 {
		t.Errorf("TotalRequests = %d, want at least the health checks", m.TotalRequests)
	}
}

func TestSecurityHeaders(t *testing.T) {
	_, ts := testServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	resp.Body.Close()
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy header missing")
	}
}
