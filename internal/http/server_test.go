package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"resit/internal/cache"
	"resit/internal/core"
	"resit/internal/dashboard"
	"resit/internal/log"
	"resit/internal/metrics"
	"resit/internal/receipts/memory"
	"resit/internal/services"
)

type testEnv struct {
	srv      *Server
	analysis *services.AnalysisService
}

func newTestServer(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.New()
	analysisSvc := services.NewAnalysisService(store, services.AnalysisOptions{
		Cache:  cache.QueryOptions{Freshness: time.Minute, MaxAge: time.Hour, Size: 16},
		Logger: log.Discard(),
	})
	receiptSvc := services.NewReceiptService(store, analysisSvc, nil, log.Discard())
	if opts.Claims == nil {
		claimSvc := services.NewClaimService(store, log.Discard())
		receiptSvc.CheckTeams(claimSvc)
		opts.Claims = claimSvc
	}

	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	srv := NewServer(receiptSvc, analysisSvc, opts)
	srv.now = func() time.Time { return time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		srv.limiter.Stop()
		analysisSvc.Wait()
	})
	return &testEnv{srv: srv, analysis: analysisSvc}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Code   string          `json:"code"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func receiptBody(merchant, date string, total any) map[string]any {
	return map[string]any{"merchant": merchant, "date": date, "total": total, "currency": "usd"}
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, Options{})
	rr := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthDegraded(t *testing.T) {
	e := newTestServer(t, Options{Checks: map[string]Pinger{"sqlite": failingPinger{}}})
	rr := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "database is locked")
}

func TestReceiptCRUD(t *testing.T) {
	e := newTestServer(t, Options{})

	rr := e.do(t, http.MethodPost, "/api/v1/receipts", map[string]any{
		"merchant":      "Starbucks",
		"date":          "2025-01-15",
		"total":         15.5,
		"currency":      "usd",
		"paymentMethod": "Visa",
		"category":      "Food",
		"fullText":      "LATTE 15.50",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created ReceiptResponse
	env := decode(t, rr, &created)
	assert.Equal(t, StatusSuccess, env.Status)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "15.50", created.Total)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, "Visa", created.PaymentMethod)
	assert.Equal(t, "/api/v1/receipts/"+created.ID, rr.Header().Get("Location"))

	rr = e.do(t, http.MethodGet, "/api/v1/receipts/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got ReceiptResponse
	decode(t, rr, &got)
	assert.Equal(t, "LATTE 15.50", got.FullText)

	rr = e.do(t, http.MethodPut, "/api/v1/receipts/"+created.ID, map[string]any{"total": "20", "date": "2025-01-16"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated ReceiptResponse
	decode(t, rr, &updated)
	assert.Equal(t, "20.00", updated.Total)
	assert.Equal(t, "2025-01-16", updated.Date)
	assert.Equal(t, "Starbucks", updated.Merchant)

	rr = e.do(t, http.MethodDelete, "/api/v1/receipts/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/v1/receipts/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	env = decode(t, rr, nil)
	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, CodeNotFound, env.Code)
}

func TestCreateReceiptValidation(t *testing.T) {
	e := newTestServer(t, Options{})

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"empty body", "", http.StatusBadRequest, "request body is empty"},
		{"malformed json", "{", http.StatusBadRequest, "invalid JSON body"},
		{"missing merchant", map[string]any{"date": "2025-01-15", "total": 1}, http.StatusUnprocessableEntity, "field merchant is required"},
		{"bad date format", receiptBody("A", "15/01/2025", 1), http.StatusUnprocessableEntity, "field date must be a date"},
		{"missing total", map[string]any{"merchant": "A", "date": "2025-01-15"}, http.StatusUnprocessableEntity, "field total is required"},
		{"negative total", receiptBody("A", "2025-01-15", -3), http.StatusUnprocessableEntity, "invalid amount"},
		{"bad currency", map[string]any{"merchant": "A", "date": "2025-01-15", "total": 1, "currency": "US1"}, http.StatusUnprocessableEntity, "field currency"},
		{"blank merchant", receiptBody("   ", "2025-01-15", 1), http.StatusUnprocessableEntity, "empty merchant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, http.MethodPost, "/api/v1/receipts", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			env := decode(t, rr, nil)
			assert.Equal(t, StatusError, env.Status)
			assert.Contains(t, env.Error, tt.wantErr)
		})
	}
}

func TestCreateBatchPartialFailure(t *testing.T) {
	e := newTestServer(t, Options{})

	rr := e.do(t, http.MethodPost, "/api/v1/receipts/batch", map[string]any{
		"receipts": []any{
			receiptBody("A", "2025-01-10", 10),
			receiptBody("", "2025-01-10", 10),
			receiptBody("C", "2025-01-11", -1),
			receiptBody("D", "2025-01-12", "2.5"),
		},
	})
	require.Equal(t, http.StatusMultiStatus, rr.Code, rr.Body.String())

	var resp BatchResponse
	decode(t, rr, &resp)
	require.Len(t, resp.Created, 2)
	assert.Equal(t, "A", resp.Created[0].Merchant)
	assert.Equal(t, "D", resp.Created[1].Merchant)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, 1, resp.Errors[0].Index)
	assert.Equal(t, 2, resp.Errors[1].Index)
	assert.Contains(t, resp.Errors[1].Error, "invalid amount")
}

func TestCreateBatchLimits(t *testing.T) {
	e := newTestServer(t, Options{})

	rr := e.do(t, http.MethodPost, "/api/v1/receipts/batch", map[string]any{"receipts": []any{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	items := make([]any, 101)
	for i := range items {
		items[i] = receiptBody("A", "2025-01-10", 1)
	}
	rr = e.do(t, http.MethodPost, "/api/v1/receipts/batch", map[string]any{"receipts": items})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Error, "field receipts must be at most 100")

	rr = e.do(t, http.MethodPost, "/api/v1/receipts/batch", map[string]any{"receipts": []any{receiptBody("", "x", 1)}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "nothing created")
}

func TestListReceipts(t *testing.T) {
	e := newTestServer(t, Options{})
	for _, b := range []map[string]any{
		receiptBody("Starbucks", "2025-01-10", 5),
		receiptBody("Target", "2025-01-11", 50),
		receiptBody("Starbucks Reserve", "2025-01-12", 7),
	} {
		require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/receipts", b).Code)
	}

	rr := e.do(t, http.MethodGet, "/api/v1/receipts?merchant=starbucks&sort_by=total&sort_order=asc", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var page ListResponse
	decode(t, rr, &page)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Receipts, 2)
	assert.Equal(t, "5.00", page.Receipts[0].Total)

	rr = e.do(t, http.MethodGet, "/api/v1/receipts?start_date=2025-01-11&end_date=2025-01-11", nil)
	decode(t, rr, &page)
	require.Len(t, page.Receipts, 1)
	assert.Equal(t, "Target", page.Receipts[0].Merchant)

	rr = e.do(t, http.MethodGet, "/api/v1/receipts?limit=1", nil)
	decode(t, rr, &page)
	assert.Len(t, page.Receipts, 1)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "2025-01-12", page.Receipts[0].Date, "newest first by default")

	for _, q := range []string{"limit=abc", "offset=-1", "sort_by=color", "sort_order=up", "start_date=yesterday"} {
		rr = e.do(t, http.MethodGet, "/api/v1/receipts?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestAnalysisDailyAndInvalidation(t *testing.T) {
	e := newTestServer(t, Options{})
	for _, b := range []map[string]any{
		receiptBody("Starbucks", "2025-01-15", 10),
		receiptBody("Target", "2025-01-15", 20),
		receiptBody("Cafe", "2025-01-16", 5),
	} {
		require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/receipts", b).Code)
	}

	rr := e.do(t, http.MethodGet, "/api/v1/analysis/daily?from=2025-01-01&to=2025-01-31&sort_by=total&sort_order=desc", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rep services.Report
	decode(t, rr, &rep)
	require.Len(t, rep.Days, 2)
	assert.Equal(t, "2025-01-15", rep.Days[0].Date)
	assert.Equal(t, "Target", rep.Days[0].TopMerchant)
	assert.Equal(t, 3, rep.Metrics.TotalReceiptCount)
	assert.Equal(t, "35", rep.Metrics.TotalSpending.String())

	// A write inside the cached range is visible on the next read.
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/receipts", receiptBody("Late", "2025-01-20", 1)).Code)
	rr = e.do(t, http.MethodGet, "/api/v1/analysis/summary?from=2025-01-01&to=2025-01-31", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary SummaryResponse
	decode(t, rr, &summary)
	assert.Equal(t, 4, summary.Metrics.TotalReceiptCount)
	assert.Equal(t, 3, summary.Metrics.NumberOfDays)
	assert.Equal(t, "2025-01-01", summary.From)
}

func TestAnalysisDefaultsAndBadQueries(t *testing.T) {
	e := newTestServer(t, Options{})

	rr := e.do(t, http.MethodGet, "/api/v1/analysis/daily", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rep services.Report
	decode(t, rr, &rep)
	want := dashboard.DefaultRange(e.srv.now())
	assert.Equal(t, want.From.Key(), rep.From)
	assert.Equal(t, "2025-01-31", rep.To)
	assert.Empty(t, rep.Days)

	for _, q := range []string{"from=2025-13-01", "to=nope", "sort_by=weather", "sort_order=sideways"} {
		rr = e.do(t, http.MethodGet, "/api/v1/analysis/daily?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		assert.Equal(t, CodeBadRequest, decode(t, rr, nil).Code)
	}
}

func TestAnalysisCategories(t *testing.T) {
	e := newTestServer(t, Options{})
	food := receiptBody("A", "2025-01-15", 30)
	food["category"] = "Food"
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/receipts", food).Code)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/receipts", receiptBody("B", "2025-01-15", 10)).Code)

	rr := e.do(t, http.MethodGet, "/api/v1/analysis/categories?from=2025-01-01&to=2025-01-31", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp CategoriesResponse
	decode(t, rr, &resp)
	assert.Equal(t, "2025-01-01", resp.From)
	assert.Equal(t, "40", resp.GrandTotal.String())
	require.Len(t, resp.Categories, 2)
	assert.Equal(t, "Food", resp.Categories[0].Category)
	assert.Equal(t, core.Uncategorized, resp.Categories[1].Category)
}

func TestAnalysisExport(t *testing.T) {
	e := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/receipts", receiptBody("A", "2025-01-15", 30)).Code)

	rr := e.do(t, http.MethodGet, "/api/v1/analysis/export.xlsx?from=2025-01-01&to=2025-01-31", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "receipts_2025-01-01_2025-01-31.xlsx")

	f, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Daily")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

type failingAnalysis struct{ err error }

func (f failingAnalysis) Daily(context.Context, dashboard.Range) (services.Report, error) {
	return services.Report{}, f.err
}

func (f failingAnalysis) Categories(context.Context, dashboard.Range) (core.CategoryBreakdown, error) {
	return core.CategoryBreakdown{}, f.err
}

func TestAnalysisFetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"backend failure is hidden", errors.New("connection refused"), http.StatusInternalServerError, CodeInternal},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(nil, failingAnalysis{err: tt.err}, Options{Logger: log.Discard()})
			t.Cleanup(srv.limiter.Stop)

			for _, path := range []string{"/api/v1/analysis/daily", "/api/v1/analysis/categories", "/api/v1/analysis/export.xlsx"} {
				rr := httptest.NewRecorder()
				srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
				assert.Equal(t, tt.wantCode, rr.Code, path)
				assert.Contains(t, rr.Body.String(), tt.wantBody)
				assert.NotContains(t, rr.Body.String(), "connection refused")
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	e := newTestServer(t, Options{APIKey: "secret"})

	rr := e.do(t, http.MethodGet, "/api/v1/receipts", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, CodeUnauthorized, decode(t, rr, nil).Code)

	rr = e.do(t, http.MethodGet, "/api/v1/receipts", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/v1/receipts", nil, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "health is public")
}

func TestRateLimit(t *testing.T) {
	m := metrics.New()
	e := newTestServer(t, Options{RateLimitRPM: 2, Metrics: m})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/v1/receipts", nil).Code)
	}
	rr := e.do(t, http.MethodGet, "/api/v1/receipts", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, CodeRateLimited, decode(t, rr, nil).Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	rr = e.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "resit_http_rate_limited_total 1")
	assert.True(t, strings.Contains(rr.Body.String(), `resit_http_requests_total{method="GET"`))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	e := newTestServer(t, Options{})

	rr := e.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, StatusError, decode(t, rr, nil).Status)

	rr = e.do(t, http.MethodPatch, "/api/v1/receipts/abc", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestAnalyticsCombinedAndCurrency(t *testing.T) {
	e := newTestServer(t, Options{})
	food := receiptBody("A", "2025-01-15", 30)
	food["category"] = "Food"
	eur := receiptBody("B", "2025-01-16", 90)
	eur["currency"] = "EUR"
	for _, b := range []map[string]any{food, receiptBody("C", "2025-01-15", 10), eur} {
		require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/receipts", b).Code)
	}

	rr := e.do(t, http.MethodGet, "/api/v1/analytics?start_date=2025-01-01&end_date=2025-01-31&currency=usd", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp AnalyticsResponse
	decode(t, rr, &resp)
	assert.Equal(t, "2025-01-01", resp.From)
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, 2, resp.Summary.TotalReceipts)
	assert.Equal(t, "40", resp.Summary.TotalAmount.String())
	assert.Equal(t, "20", resp.Summary.AverageAmount.String())
	require.Len(t, resp.CategoryBreakdown, 2)
	assert.Equal(t, "Food", resp.CategoryBreakdown[0].Category)
	assert.Equal(t, "75", resp.CategoryBreakdown[0].Percentage.String())

	rr = e.do(t, http.MethodGet, "/api/v1/analytics/summary?start_date=2025-01-01&end_date=2025-01-31&currency=EUR", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var summary SummaryResponse
	decode(t, rr, &summary)
	assert.Equal(t, "90", summary.TotalAmount.String())
	assert.Equal(t, 1, summary.Metrics.TotalReceiptCount)

	rr = e.do(t, http.MethodGet, "/api/v1/analysis/summary?from=2025-01-01&to=2025-01-31", nil)
	decode(t, rr, &summary)
	assert.Equal(t, 3, summary.Metrics.TotalReceiptCount, "no currency covers all")

	rr = e.do(t, http.MethodGet, "/api/v1/analytics/categories?from=2025-01-01&to=2025-01-31&currency=eur", nil)
	var cats CategoriesResponse
	decode(t, rr, &cats)
	assert.Equal(t, "EUR", cats.Currency)
	assert.Equal(t, "90", cats.GrandTotal.String())

	rr = e.do(t, http.MethodGet, "/api/v1/receipts?currency=eur", nil)
	var page ListResponse
	decode(t, rr, &page)
	assert.Equal(t, 1, page.Total)

	for _, q := range []string{"currency=euro", "currency=12", "start_date=01/01/2025"} {
		rr = e.do(t, http.MethodGet, "/api/v1/analytics?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestTeamsAndClaims(t *testing.T) {
	e := newTestServer(t, Options{})

	rr := e.do(t, http.MethodPost, "/api/v1/teams", map[string]any{"name": "Finance"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var team TeamResponse
	decode(t, rr, &team)
	assert.Equal(t, "/api/v1/teams/"+team.ID, rr.Header().Get("Location"))

	rr = e.do(t, http.MethodPost, "/api/v1/teams", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/v1/teams", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var teams struct {
		Teams []TeamResponse `json:"teams"`
	}
	decode(t, rr, &teams)
	require.Len(t, teams.Teams, 1)

	rb := receiptBody("Uber", "2025-01-12", 25.5)
	rb["teamId"] = team.ID
	rr = e.do(t, http.MethodPost, "/api/v1/receipts", rb)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var rec ReceiptResponse
	decode(t, rr, &rec)
	assert.Equal(t, team.ID, rec.TeamID)

	rb["teamId"] = "ghost"
	rr = e.do(t, http.MethodPost, "/api/v1/receipts", rb)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodPost, "/api/v1/claims", map[string]any{
		"teamId": team.ID, "title": "Hotel", "amount": 120.456, "description": "Two nights",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var claim ClaimResponse
	decode(t, rr, &claim)
	assert.Equal(t, "120.46", claim.Amount)
	assert.Equal(t, core.DefaultCurrency, claim.Currency)
	assert.Equal(t, core.PriorityMedium, claim.Priority)
	assert.Equal(t, core.ClaimPending, claim.Status)

	for _, body := range []map[string]any{
		{"teamId": team.ID, "title": "x", "amount": 1, "priority": "someday"},
		{"teamId": team.ID, "amount": 1},
		{"teamId": team.ID, "title": "x", "amount": 0},
	} {
		rr = e.do(t, http.MethodPost, "/api/v1/claims", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	}
	rr = e.do(t, http.MethodPost, "/api/v1/claims", map[string]any{"teamId": "ghost", "title": "x", "amount": 1})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodPut, "/api/v1/claims/"+claim.ID+"/status", map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = e.do(t, http.MethodPut, "/api/v1/claims/"+claim.ID+"/status", map[string]any{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, CodeConflict, decode(t, rr, nil).Code)

	rr = e.do(t, http.MethodGet, "/api/v1/claims?team_id="+team.ID+"&status=approved", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var claims ClaimListResponse
	decode(t, rr, &claims)
	assert.Equal(t, 1, claims.Total)
	for _, q := range []string{"status=paid", "priority=asap", "limit=x", "offset=-1"} {
		rr = e.do(t, http.MethodGet, "/api/v1/claims?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}

	rr = e.do(t, http.MethodGet, "/api/v1/claims/"+claim.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = e.do(t, http.MethodGet, "/api/v1/claims/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/v1/teams/"+team.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var stats core.TeamStats
	decode(t, rr, &stats)
	assert.Equal(t, 1, stats.ReceiptCount)
	assert.Equal(t, "25.5", stats.ReceiptTotal.String())
	assert.Equal(t, 1, stats.ClaimsByStatus[core.ClaimApproved])

	rr = e.do(t, http.MethodGet, "/api/v1/teams/ghost/stats", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClaimRoutesDisabledWithoutClaimAPI(t *testing.T) {
	store := memory.New()
	analysisSvc := services.NewAnalysisService(store, services.AnalysisOptions{Logger: log.Discard()})
	srv := NewServer(services.NewReceiptService(store, analysisSvc, nil, log.Discard()), analysisSvc, Options{Logger: log.Discard()})
	t.Cleanup(srv.limiter.Stop)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/teams", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
