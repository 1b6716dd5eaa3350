package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/musacelikk/bbsm-garage-sub000/internal/cache"
	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
	"github.com/musacelikk/bbsm-garage-sub000/internal/service"
	"github.com/musacelikk/bbsm-garage-sub000/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopReportCache{}, "main-garage", time.Minute)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginAs(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func fetchCSRFToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	return body["csrf_token"]
}

// doJSON performs an authenticated JSON request with a valid CSRF token.
func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, handler))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrong-password",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleQuotes_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestQuoteCreateAndConvertFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "usta", "usta123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/quotes", token, domain.QuoteCreateRequest{
		CustomerName: "Ahmet Yılmaz",
		Plate:        "34ABC123",
		WorkItems: []domain.WorkItem{
			{PartName: "Yağ Filtresi", UnitCount: 1, UnitPriceCents: 5000, IsFromStock: true, StockID: 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create quote: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var createBody struct {
		Quote domain.Quote `json:"quote"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&createBody); err != nil {
		t.Fatalf("decode quote: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/quotes/convert", token, domain.ConvertRequest{
		QuoteIDs: []string{createBody.Quote.ID},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("convert: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var convertBody domain.ConvertResponse
	if err := json.NewDecoder(rec.Body).Decode(&convertBody); err != nil {
		t.Fatalf("decode convert response: %v", err)
	}
	if len(convertBody.Succeeded) != 1 || convertBody.Succeeded[0] != createBody.Quote.ID {
		t.Fatalf("expected quote converted, got %+v", convertBody)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/cards", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list cards: expected 200, got %d", rec.Code)
	}
	var cardsBody struct {
		Cards []domain.Card `json:"cards"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&cardsBody); err != nil {
		t.Fatalf("decode cards: %v", err)
	}
	if len(cardsBody.Cards) != 1 || cardsBody.Cards[0].CustomerName != "Ahmet Yılmaz" {
		t.Fatalf("expected converted card, got %+v", cardsBody.Cards)
	}
}

func TestConvertAnswers409OnStockViolation(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "usta", "usta123")

	// Seeded entry 10 is Triger Seti with quantity 3.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/quotes", token, domain.QuoteCreateRequest{
		CustomerName: "Stok Yetersiz",
		WorkItems: []domain.WorkItem{
			{PartName: "Triger Seti", UnitCount: 5, UnitPriceCents: 80000, IsFromStock: true, StockID: 10},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create quote: expected 201, got %d", rec.Code)
	}
	var createBody struct {
		Quote domain.Quote `json:"quote"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&createBody); err != nil {
		t.Fatalf("decode quote: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/quotes/convert", token, domain.ConvertRequest{
		QuoteIDs: []string{createBody.Quote.ID},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on violation, got %d (%s)", rec.Code, rec.Body.String())
	}
	var convertBody domain.ConvertResponse
	if err := json.NewDecoder(rec.Body).Decode(&convertBody); err != nil {
		t.Fatalf("decode convert response: %v", err)
	}
	if len(convertBody.Violations) != 1 || convertBody.Violations[0].Requested != 5 {
		t.Fatalf("expected violation detail, got %+v", convertBody)
	}

	// The quote survives a rejected batch.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/quotes/"+createBody.Quote.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected rejected quote to remain, got %d", rec.Code)
	}
}

func TestStockIncrementDecrementEndpoints(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/stock/1/decrement", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("decrement: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Stock domain.StockEntry `json:"stock"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode stock: %v", err)
	}
	if body.Stock.Quantity != 23 {
		t.Fatalf("expected quantity 23 after decrement of seeded 24, got %d", body.Stock.Quantity)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/stock/1/increment", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("increment: expected 200, got %d", rec.Code)
	}
}

func TestRevenueReportRequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "usta", "usta123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/revenue", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for mechanic, got %d", rec.Code)
	}
}

func TestRevenueReportExportFormats(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/cards", token, domain.CardCreateRequest{
		CustomerName:    "Ödedi",
		PaymentReceived: true,
		WorkItems:       []domain.WorkItem{{PartName: "İşçilik", UnitCount: 1, UnitPriceCents: 60000}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create card: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/revenue?format=csv", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv export: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "summary,gross_cents,60000") {
		t.Fatalf("csv missing gross line: %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/revenue?format=xlsx", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx export: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("expected xlsx content type, got %q", ct)
	}
	// xlsx files are zip archives.
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected zip magic in xlsx payload")
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/revenue?format=pdf", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestNotificationSettingsRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "usta", "usta123")

	daily := true
	rec := doJSON(t, handler, http.MethodPatch, "/api/v1/settings/notifications", token, domain.NotificationSettingsUpdateRequest{DailySummary: &daily})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch settings: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/settings/notifications", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get settings: expected 200, got %d", rec.Code)
	}
	var settings domain.NotificationSettings
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if !settings.DailySummary || settings.Username != "usta" {
		t.Fatalf("unexpected settings: %+v", settings)
	}
}
