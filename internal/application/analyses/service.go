package analyses

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/HeraclesBass/tos-analyzer/internal/application"
	"github.com/HeraclesBass/tos-analyzer/internal/application/budget"
	"github.com/HeraclesBass/tos-analyzer/internal/application/engine"
	"github.com/HeraclesBass/tos-analyzer/internal/domain/analysis"
	"github.com/HeraclesBass/tos-analyzer/internal/domain/analytics"
	"github.com/HeraclesBass/tos-analyzer/internal/infra/cache"
)

// Input bounds for the analyze pipeline
const (
	MinChars = 50
	MaxChars = 500_000
	MinWords = 10
	MaxWords = 50_000
)

// Analyzer is the engine port as the orchestrator sees it.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*engine.Result, error)
}

// Service implements the request-level pipeline: guard -> validate ->
// budget -> fingerprint -> cache/store lookup -> engine -> persist ->
// analytics. State lives in the store and cache, so the service itself is
// safe for concurrent use.
type Service struct {
	Repo      analysis.Repository
	Analytics analytics.Repository
	Cache     *cache.Cache
	Guard     *budget.Guard
	Engine    Analyzer
	Archive   analysis.DocumentArchive // optional
	Clock     application.Clock
}

// AnalyzeCommand is one analyze request.
type AnalyzeCommand struct {
	Text         string
	SourceType   analysis.SourceType
	SourceURL    string
	CompanyName  string
	AddToLibrary bool
	ForceRefresh bool
	Identity     string // client identity for rate limiting and view sessions
}

// AnalyzeResult is the analyze response. CreatorToken is present exactly
// once, on the call that created or refreshed the record.
type AnalyzeResult struct {
	Record       *analysis.Record `json:"record"`
	Cached       bool             `json:"cached"`
	CreatorToken string           `json:"creator_token,omitempty"`
	TokensUsed   int              `json:"tokens_used,omitempty"`
}

// FetchResult is the fetch-by-id response.
type FetchResult struct {
	Record    *analysis.Record `json:"record"`
	ViewCount int64            `json:"view_count"`
}

// Analyze runs the full pipeline for one document.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*AnalyzeResult, error) {
	if s.Guard.CheckRateLimit(ctx, cmd.Identity) {
		return nil, analysis.E(analysis.CodeRateLimit, "too many requests, try again in a minute")
	}
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if st := s.Guard.CheckDailyBudget(ctx, 0); st.Exceeded {
		return nil, analysis.Ef(analysis.CodeBudgetExceeded,
			"daily analysis budget exhausted (%d/%d tokens), try again tomorrow", st.Used, st.Limit)
	}

	fingerprint := analysis.Fingerprint(cmd.Text)
	now := s.Clock.Now()

	// Dedup: a live record for the same fingerprint short-circuits the
	// engine entirely unless the caller forces a refresh.
	var existing *analysis.Record
	if !cmd.ForceRefresh {
		if rec, ok := s.Cache.GetAnalysis(ctx, fingerprint); ok && !rec.Expired(now) {
			s.recordEvent(ctx, analytics.EventViewed, rec, 0)
			return &AnalyzeResult{Record: rec, Cached: true}, nil
		}
		rec, err := s.Repo.GetByFingerprint(ctx, fingerprint)
		if err != nil && !errors.Is(err, analysis.ErrRecordNotFound) {
			return nil, analysis.Wrap(analysis.CodeInternal, "store lookup failed", err)
		}
		if rec != nil && !rec.Expired(now) {
			s.Cache.PutAnalysis(ctx, fingerprint, rec)
			s.recordEvent(ctx, analytics.EventViewed, rec, 0)
			return &AnalyzeResult{Record: rec, Cached: true}, nil
		}
		existing = rec
	} else {
		rec, err := s.Repo.GetByFingerprint(ctx, fingerprint)
		if err != nil && !errors.Is(err, analysis.ErrRecordNotFound) {
			return nil, analysis.Wrap(analysis.CodeInternal, "store lookup failed", err)
		}
		existing = rec
	}

	res, err := s.Engine.Analyze(ctx, cmd.Text)
	if err != nil {
		return nil, analysis.Wrap(analysis.CodeAnalysisFailed, "analysis failed", err)
	}
	// Budget consumption registers only on an actual engine run.
	s.Guard.CheckDailyBudget(ctx, int64(res.TokensUsed))

	if !res.Payload.DocumentValidation.IsLegalDocument {
		dv := res.Payload.DocumentValidation
		return nil, analysis.InvalidDocument(dv.DocumentType, dv.Confidence, dv.RejectionReason)
	}

	token, digest, err := analysis.NewCreatorToken()
	if err != nil {
		return nil, analysis.Wrap(analysis.CodeInternal, "token generation failed", err)
	}

	// Re-analysis before expiry overwrites the existing record in place.
	id := analysis.AnalysisID(uuid.New().String())
	if existing != nil {
		id = existing.ID
	}
	company := cmd.CompanyName
	if company == "" {
		company = res.Payload.DetectedCompany.Name
	}
	rec := &analysis.Record{
		ID:               id,
		ContentHash:      fingerprint,
		SourceType:       cmd.SourceType,
		SourceURL:        cmd.SourceURL,
		Payload:          *res.Payload,
		WordCount:        analysis.CountWords(cmd.Text),
		CharCount:        len(cmd.Text),
		CompanyName:      company,
		IsPublic:         cmd.AddToLibrary,
		CreatorTokenHash: digest,
		CreatedAt:        now,
		ExpiresAt:        now.Add(analysis.RecordTTL),
	}

	if s.Archive != nil {
		url, err := s.Archive.PutText(ctx, "documents/"+fingerprint+".txt", cmd.Text)
		if err != nil {
			log.Printf("document archive failed for %s: %v", fingerprint, err)
		} else {
			rec.ArchiveURL = url
		}
	}

	if err := s.Repo.Save(ctx, rec); err != nil {
		return nil, analysis.Wrap(analysis.CodeInternal, "persisting analysis failed", err)
	}
	s.Cache.PutAnalysis(ctx, fingerprint, rec)
	if rec.IsPublic {
		s.Cache.Invalidate(ctx, "library:*")
	}
	s.recordEvent(ctx, analytics.EventCreated, rec, res.TokensUsed)

	return &AnalyzeResult{Record: rec, CreatorToken: token, TokensUsed: res.TokensUsed}, nil
}

// Get fetches one analysis by id, incrementing its view count. Returns
// NOT_FOUND for unknown ids and EXPIRED for records past their expiry.
func (s *Service) Get(ctx context.Context, id analysis.AnalysisID, identity string) (*FetchResult, error) {
	if s.Guard.CheckReadRateLimit(ctx, identity) {
		return nil, analysis.E(analysis.CodeRateLimit, "too many requests, try again in a minute")
	}

	rec, ok := s.Cache.GetShareView(ctx, id)
	if !ok {
		var err error
		rec, err = s.Repo.GetByID(ctx, id)
		if errors.Is(err, analysis.ErrRecordNotFound) {
			return nil, analysis.E(analysis.CodeNotFound, "analysis not found")
		}
		if err != nil {
			return nil, analysis.Wrap(analysis.CodeInternal, "store lookup failed", err)
		}
	}
	if rec.Expired(s.Clock.Now()) {
		return nil, analysis.E(analysis.CodeExpired, "this analysis has expired")
	}

	view, err := s.Repo.RecordView(ctx, id, analysis.HashSession(identity))
	if err != nil {
		return nil, analysis.Wrap(analysis.CodeInternal, "recording view failed", err)
	}
	s.Cache.PutShareView(ctx, id, rec)
	s.recordEvent(ctx, analytics.EventViewed, rec, 0)

	return &FetchResult{Record: rec, ViewCount: view.ViewCount}, nil
}

// SetVisibility publishes or unpublishes a record. The caller must present
// the one-time creator token; its salted digest is checked against the
// stored value.
func (s *Service) SetVisibility(ctx context.Context, id analysis.AnalysisID, token string, public bool) (*analysis.Record, error) {
	rec, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, analysis.ErrRecordNotFound) {
		return nil, analysis.E(analysis.CodeNotFound, "analysis not found")
	}
	if err != nil {
		return nil, analysis.Wrap(analysis.CodeInternal, "store lookup failed", err)
	}
	if rec.Expired(s.Clock.Now()) {
		return nil, analysis.E(analysis.CodeExpired, "this analysis has expired")
	}
	if !analysis.VerifyCreatorToken(token, rec.CreatorTokenHash) {
		return nil, analysis.E(analysis.CodeUnauthorized, "creator token does not match")
	}

	if err := s.Repo.SetVisibility(ctx, id, public); err != nil {
		return nil, analysis.Wrap(analysis.CodeInternal, "updating visibility failed", err)
	}
	rec.IsPublic = public
	s.Cache.InvalidateRecord(ctx, id, rec.ContentHash)

	event := analytics.EventPublished
	if !public {
		event = analytics.EventUnpublished
	}
	s.recordEvent(ctx, event, rec, 0)
	return rec, nil
}

// Library lists public analyses with filtering, sorting, and pagination.
// Pages are cached briefly under the filter signature.
func (s *Service) Library(ctx context.Context, identity string, f analysis.ListFilter) (*analysis.PaginatedResult, error) {
	if s.Guard.CheckReadRateLimit(ctx, identity) {
		return nil, analysis.E(analysis.CodeRateLimit, "too many requests, try again in a minute")
	}
	if f.Category != "" && !analysis.ValidCategory(f.Category) {
		return nil, analysis.Ef(analysis.CodeValidation, "unknown category %q", f.Category)
	}

	key := fmt.Sprintf("%s|%s|%s|%s|%d|%d", f.Company, f.Category, f.Risk, f.Sort, f.Page, f.PageSize)
	if page, ok := s.Cache.GetLibrary(ctx, key); ok {
		return page, nil
	}
	page, err := s.Repo.List(ctx, f)
	if err != nil {
		return nil, analysis.Wrap(analysis.CodeInternal, "library listing failed", err)
	}
	s.Cache.PutLibrary(ctx, key, &page)
	return &page, nil
}

// Stats returns the analytics rollup for the last sinceDays days.
func (s *Service) Stats(ctx context.Context, sinceDays int) (analytics.Summary, error) {
	return s.Analytics.Summary(ctx, sinceDays)
}

func (s *Service) recordEvent(ctx context.Context, typ analytics.EventType, rec *analysis.Record, tokens int) {
	if s.Analytics == nil {
		return
	}
	err := s.Analytics.Record(ctx, &analytics.Event{
		Type:        typ,
		AnalysisID:  string(rec.ID),
		ContentHash: rec.ContentHash,
		TokensUsed:  tokens,
		Company:     rec.CompanyName,
		CreatedAt:   s.Clock.Now(),
	})
	if err != nil {
		log.Printf("analytics record failed (%s %s): %v", typ, rec.ID, err)
	}
}

func validateCommand(cmd AnalyzeCommand) error {
	n := len(cmd.Text)
	if n < MinChars || n > MaxChars {
		return analysis.Ef(analysis.CodeValidation,
			"text must be between %d and %d characters, got %d", MinChars, MaxChars, n)
	}
	words := analysis.CountWords(cmd.Text)
	if words < MinWords || words > MaxWords {
		return analysis.Ef(analysis.CodeValidation,
			"text must be between %d and %d words, got %d", MinWords, MaxWords, words)
	}
	switch cmd.SourceType {
	case analysis.SourceText, analysis.SourceURL, analysis.SourcePDF:
	case "":
		return analysis.E(analysis.CodeValidation, "source_type is required")
	default:
		return analysis.Ef(analysis.CodeValidation, "unknown source_type %q", cmd.SourceType)
	}
	return nil
}
