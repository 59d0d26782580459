package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeraclesBass/tos-analyzer/internal/application"
	"github.com/HeraclesBass/tos-analyzer/internal/application/analyses"
	"github.com/HeraclesBass/tos-analyzer/internal/application/budget"
	"github.com/HeraclesBass/tos-analyzer/internal/application/engine"
	"github.com/HeraclesBass/tos-analyzer/internal/domain/analysis"
	"github.com/HeraclesBass/tos-analyzer/internal/infra/cache"
	"github.com/HeraclesBass/tos-analyzer/internal/infra/db/sqlite"
	"github.com/HeraclesBass/tos-analyzer/internal/infra/kv"
)

type stubEngine struct {
	result *engine.Result
}

func (s *stubEngine) Analyze(context.Context, string) (*engine.Result, error) {
	return s.result, nil
}

func termsResult() *engine.Result {
	return &engine.Result{
		TokensUsed: 1000,
		Payload: &analysis.Payload{
			DetectedCompany: analysis.DetectedCompany{
				Name:       "Acme Corp",
				Confidence: analysis.ConfidenceHigh,
				Source:     "document_header",
			},
			DocumentValidation: analysis.DocumentValidation{
				IsLegalDocument: true,
				DocumentType:    analysis.DocTypeTerms,
				Confidence:      92,
			},
			Summary: analysis.Summary{
				OverallRisk:  analysis.RiskMedium,
				TotalClauses: 1,
				YellowCount:  1,
			},
			Categories: []analysis.CategoryAnalysis{{
				Name: analysis.CategoryDisputes,
				Clauses: []analysis.Clause{{
					Severity:     analysis.SeverityConcerning,
					OriginalText: "All disputes go to arbitration.",
					Explanation:  "No court access.",
				}},
			}},
		},
	}
}

func poemResult() *engine.Result {
	return &engine.Result{
		TokensUsed: 40,
		Payload: &analysis.Payload{
			DocumentValidation: analysis.DocumentValidation{
				IsLegalDocument: false,
				DocumentType:    analysis.DocTypeNotLegal,
				Confidence:      85,
				RejectionReason: "this reads like a poem",
			},
		},
	}
}

func newTestServer(t *testing.T, eng analyses.Analyzer) (http.Handler, *budget.Guard) {
	t.Helper()
	db, err := sqlite.Connect(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := kv.NewMemoryWithClock(time.Now)
	guard := budget.New(store, application.SystemClock{})
	guard.WriteLimit = 100
	guard.ReadLimit = 100

	svc := &analyses.Service{
		Repo:      sqlite.NewAnalysisRepository(db),
		Analytics: sqlite.NewAnalyticsRepository(db),
		Cache:     cache.New(store),
		Guard:     guard,
		Engine:    eng,
		Clock:     application.SystemClock{},
	}
	return NewRouter(svc, false), guard
}

func analyzeBody() string {
	text := strings.TrimSpace(strings.Repeat("these terms of service govern your use of the product ", 10))
	b, _ := json.Marshal(map[string]any{"text": text, "source_type": "text"})
	return string(b)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.RemoteAddr = "203.0.113.7:51234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), "body: %s", w.Body.String())
	return w, decoded
}

func errCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return e["code"].(string)
}

func TestAnalyzeEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &stubEngine{result: termsResult()})

	w, body := doJSON(t, h, "POST", "/v1/analyze", analyzeBody())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["creator_token"])
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, float64(1000), body["tokens_used"])
	assert.Equal(t, "terms_of_service", body["document_type"])

	// Second submission of the same text is a cache hit with no token.
	w, body = doJSON(t, h, "POST", "/v1/analyze", analyzeBody())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["cached"])
	assert.Empty(t, body["creator_token"])
}

func TestAnalyzeRejectsMalformedBody(t *testing.T) {
	h, _ := newTestServer(t, &stubEngine{result: termsResult()})

	w, body := doJSON(t, h, "POST", "/v1/analyze", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errCode(t, body))
}

func TestAnalyzeRejectsBlockedSourceURL(t *testing.T) {
	h, _ := newTestServer(t, &stubEngine{result: termsResult()})

	b, _ := json.Marshal(map[string]any{
		"text":        strings.Repeat("terms of service content here ", 10),
		"source_type": "url",
		"source_url":  "http://127.0.0.1/metadata",
	})
	w, body := doJSON(t, h, "POST", "/v1/analyze", string(b))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errCode(t, body))
}

func TestAnalyzeNonLegalDocumentEnvelope(t *testing.T) {
	h, _ := newTestServer(t, &stubEngine{result: poemResult()})

	w, body := doJSON(t, h, "POST", "/v1/analyze", analyzeBody())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	e := body["error"].(map[string]any)
	assert.Equal(t, "INVALID_DOCUMENT_TYPE", e["code"])
	assert.Equal(t, "not_legal", e["document_type"])
	assert.Equal(t, float64(85), e["confidence"])
}

func TestGetUnknownAnalysis(t *testing.T) {
	h, _ := newTestServer(t, &stubEngine{result: termsResult()})

	w, body := doJSON(t, h, "GET", "/v1/analyses/no-such-id", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, body))
}

func TestPublishFlow(t *testing.T) {
	h, _ := newTestServer(t, &stubEngine{result: termsResult()})

	_, created := doJSON(t, h, "POST", "/v1/analyze", analyzeBody())
	id := created["id"].(string)
	token := created["creator_token"].(string)

	w, body := doJSON(t, h, "POST", "/v1/analyses/"+id+"/publish", `{"creator_token":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errCode(t, body))

	w, body = doJSON(t, h, "POST", "/v1/analyses/"+id+"/publish", `{"creator_token":"`+token+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["is_public"])

	w, body = doJSON(t, h, "POST", "/v1/analyses/"+id+"/unpublish", `{"creator_token":"`+token+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["is_public"])

	w, body = doJSON(t, h, "POST", "/v1/analyses/"+id+"/publish", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errCode(t, body))
}

func TestLibraryEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &stubEngine{result: termsResult()})

	text := strings.TrimSpace(strings.Repeat("these terms of service govern your use of the product ", 10))
	b, _ := json.Marshal(map[string]any{"text": text, "source_type": "text", "add_to_library": true})
	w, _ := doJSON(t, h, "POST", "/v1/analyze", string(b))
	require.Equal(t, http.StatusOK, w.Code)

	w, body := doJSON(t, h, "GET", "/v1/library", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["totalItems"])

	w, body = doJSON(t, h, "GET", "/v1/library?category=Cookies", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errCode(t, body))
}

func TestRateLimitEnvelope(t *testing.T) {
	h, guard := newTestServer(t, &stubEngine{result: termsResult()})
	guard.WriteLimit = 1

	w, _ := doJSON(t, h, "POST", "/v1/analyze", analyzeBody())
	require.Equal(t, http.StatusOK, w.Code)

	w, body := doJSON(t, h, "POST", "/v1/analyze", analyzeBody())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errCode(t, body))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestStatsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &stubEngine{result: termsResult()})

	w, _ := doJSON(t, h, "POST", "/v1/analyze", analyzeBody())
	require.Equal(t, http.StatusOK, w.Code)

	w, body := doJSON(t, h, "GET", "/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["created"])
	assert.Equal(t, float64(1000), body["tokens_used"])
}
