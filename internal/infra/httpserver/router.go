package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appanalyses "github.com/HeraclesBass/tos-analyzer/internal/application/analyses"
	domain "github.com/HeraclesBass/tos-analyzer/internal/domain/analysis"
	"github.com/HeraclesBass/tos-analyzer/internal/middleware"
)

type Router struct {
	svc   *appanalyses.Service
	debug bool
}

// NewRouter wires the API surface. Health and metrics endpoints are mounted
// by the caller alongside this handler.
func NewRouter(svc *appanalyses.Service, debug bool) http.Handler {
	r := &Router{svc: svc, debug: debug}
	mux := chi.NewRouter()

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Post("/analyses/{id}/publish", r.wrap(r.handlePublish))
		rt.Post("/analyses/{id}/unpublish", r.wrap(r.handleUnpublish))
		rt.Get("/library", r.wrap(r.handleLibrary))
		rt.Get("/stats", r.wrap(r.handleStats))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			r.writeError(w, err)
		}
	}
}

var statusByCode = map[domain.Code]int{
	domain.CodeValidation:      http.StatusBadRequest,
	domain.CodeRateLimit:       http.StatusTooManyRequests,
	domain.CodeBudgetExceeded:  http.StatusServiceUnavailable,
	domain.CodeInvalidDocument: http.StatusUnprocessableEntity,
	domain.CodeUnauthorized:    http.StatusUnauthorized,
	domain.CodeNotFound:        http.StatusNotFound,
	domain.CodeExpired:         http.StatusGone,
	domain.CodeAnalysisFailed:  http.StatusBadGateway,
	domain.CodeInternal:        http.StatusInternalServerError,
}

type errorBody struct {
	Code         domain.Code `json:"code"`
	Message      string      `json:"message"`
	DocumentType string      `json:"document_type,omitempty"`
	Confidence   int         `json:"confidence,omitempty"`
}

func (r *Router) writeError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := errorBody{Code: code, Message: http.StatusText(status)}
	var de *domain.Error
	if errors.As(err, &de) {
		body.Message = de.Message
		body.DocumentType = de.DocumentType
		body.Confidence = de.Confidence
	}
	if code == domain.CodeInternal || code == domain.CodeAnalysisFailed {
		log.Printf("request failed: %v", err)
		if !r.debug {
			body.Message = http.StatusText(status)
		}
	}
	if code == domain.CodeRateLimit {
		w.Header().Set("Retry-After", "60")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/analyze
// Body: {"text": "...", "source_type": "text|url|pdf", ...}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Text         string `json:"text"`
		SourceType   string `json:"source_type"`
		SourceURL    string `json:"source_url"`
		CompanyName  string `json:"company_name"`
		AddToLibrary bool   `json:"add_to_library"`
		ForceRefresh bool   `json:"force_refresh"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.E(domain.CodeValidation, "invalid JSON body")
	}
	if err := middleware.ValidateSourceURL(body.SourceURL); err != nil {
		return domain.Ef(domain.CodeValidation, "source_url: %v", err)
	}
	if err := middleware.ValidateCompanyName(body.CompanyName); err != nil {
		return domain.Ef(domain.CodeValidation, "company_name: %v", err)
	}

	res, err := r.svc.Analyze(req.Context(), appanalyses.AnalyzeCommand{
		Text:         body.Text,
		SourceType:   domain.SourceType(body.SourceType),
		SourceURL:    body.SourceURL,
		CompanyName:  middleware.SanitizeString(body.CompanyName),
		AddToLibrary: body.AddToLibrary,
		ForceRefresh: body.ForceRefresh,
		Identity:     middleware.ClientIP(req),
	})
	if err != nil {
		if domain.CodeOf(err) == domain.CodeInvalidDocument {
			middleware.IncrementAnalysesRejected()
		}
		return err
	}

	if res.Cached {
		middleware.IncrementAnalysesCached()
	} else {
		middleware.IncrementAnalyses()
		middleware.AddTokensSpent(res.TokensUsed)
	}

	rec := res.Record
	return writeJSON(w, http.StatusOK, map[string]any{
		"id":               rec.ID,
		"analysis":         rec.Payload,
		"cached":           res.Cached,
		"creator_token":    res.CreatorToken,
		"company_name":     rec.CompanyName,
		"detected_company": rec.Payload.DetectedCompany,
		"document_type":    rec.Payload.DocumentValidation.DocumentType,
		"is_public":        rec.IsPublic,
		"created_at":       rec.CreatedAt,
		"expires_at":       rec.ExpiresAt,
		"tokens_used":      res.TokensUsed,
	})
}

// GET /v1/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := domain.AnalysisID(chi.URLParam(req, "id"))

	res, err := r.svc.Get(req.Context(), id, middleware.ClientIP(req))
	if err != nil {
		return err
	}

	rec := res.Record
	return writeJSON(w, http.StatusOK, map[string]any{
		"id":           rec.ID,
		"analysis":     rec.Payload,
		"company_name": rec.CompanyName,
		"is_public":    rec.IsPublic,
		"created_at":   rec.CreatedAt,
		"expires_at":   rec.ExpiresAt,
		"view_count":   res.ViewCount,
	})
}

// POST /v1/analyses/{id}/publish
func (r *Router) handlePublish(w http.ResponseWriter, req *http.Request) error {
	return r.handleVisibility(w, req, true)
}

// POST /v1/analyses/{id}/unpublish
func (r *Router) handleUnpublish(w http.ResponseWriter, req *http.Request) error {
	return r.handleVisibility(w, req, false)
}

func (r *Router) handleVisibility(w http.ResponseWriter, req *http.Request, public bool) error {
	id := domain.AnalysisID(chi.URLParam(req, "id"))

	var body struct {
		CreatorToken string `json:"creator_token"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.E(domain.CodeValidation, "invalid JSON body")
	}
	if body.CreatorToken == "" {
		return domain.E(domain.CodeValidation, "creator_token is required")
	}

	rec, err := r.svc.SetVisibility(req.Context(), id, body.CreatorToken, public)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"id":        rec.ID,
		"is_public": rec.IsPublic,
	})
}

// GET /v1/library?search=&category=&risk=&sort=&page=&page_size=
func (r *Router) handleLibrary(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	res, err := r.svc.Library(req.Context(), middleware.ClientIP(req), domain.ListFilter{
		Company:  middleware.SanitizeString(q.Get("search")),
		Category: q.Get("category"),
		Risk:     q.Get("risk"),
		Sort:     q.Get("sort"),
		Page:     page,
		PageSize: middleware.ValidatePageSize(size),
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/stats?days=7
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.svc.Stats(req.Context(), middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summary)
}
