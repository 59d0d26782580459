package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/HeraclesBass/tos-analyzer/internal/domain/analysis"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Connect(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(id, hash string) *domain.Record {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Record{
		ID:          domain.AnalysisID(id),
		ContentHash: hash,
		SourceType:  domain.SourceText,
		CompanyName: "Acme Corp",
		Payload: domain.Payload{
			DetectedCompany: domain.DetectedCompany{
				Name:       "Acme Corp",
				Confidence: domain.ConfidenceHigh,
				Source:     "document_header",
			},
			DocumentValidation: domain.DocumentValidation{
				IsLegalDocument: true,
				DocumentType:    domain.DocTypeTerms,
				Confidence:      90,
			},
			Summary: domain.Summary{
				OverallRisk:  domain.RiskMedium,
				TotalClauses: 1,
				YellowCount:  1,
			},
			Categories: []domain.CategoryAnalysis{{
				Name: domain.CategoryDisputes,
				Clauses: []domain.Clause{{
					Severity:     domain.SeverityConcerning,
					OriginalText: "All disputes go to arbitration.",
					Explanation:  "No court access.",
				}},
			}},
		},
		WordCount:        120,
		CharCount:        800,
		IsPublic:         true,
		CreatorTokenHash: "salt:digest",
		CreatedAt:        now,
		ExpiresAt:        time.Now().UTC().Add(30 * 24 * time.Hour),
	}
}

func TestSaveAndGetRoundtrip(t *testing.T) {
	repo := NewAnalysisRepository(testDB(t))
	ctx := context.Background()
	rec := testRecord("id-1", "hash-1")

	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ContentHash, got.ContentHash)
	assert.Equal(t, rec.CompanyName, got.CompanyName)
	assert.Equal(t, rec.CreatorTokenHash, got.CreatorTokenHash)
	assert.Equal(t, domain.RiskMedium, got.Payload.Summary.OverallRisk)
	require.Len(t, got.Payload.Categories, 1)
	assert.Equal(t, domain.CategoryDisputes, got.Payload.Categories[0].Name)

	byHash, err := repo.GetByFingerprint(ctx, rec.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byHash.ID)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	repo := NewAnalysisRepository(testDB(t))
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	_, err = repo.GetByFingerprint(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestSaveUpsertsById(t *testing.T) {
	repo := NewAnalysisRepository(testDB(t))
	ctx := context.Background()
	rec := testRecord("id-1", "hash-1")
	require.NoError(t, repo.Save(ctx, rec))

	rec.CompanyName = "Acme Holdings"
	rec.CreatorTokenHash = "salt2:digest2"
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", got.CompanyName)
	assert.Equal(t, "salt2:digest2", got.CreatorTokenHash)
}

func TestSetVisibility(t *testing.T) {
	repo := NewAnalysisRepository(testDB(t))
	ctx := context.Background()
	rec := testRecord("id-1", "hash-1")
	require.NoError(t, repo.Save(ctx, rec))

	require.NoError(t, repo.SetVisibility(ctx, rec.ID, false))
	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublic)

	assert.ErrorIs(t, repo.SetVisibility(ctx, "nope", true), domain.ErrRecordNotFound)
}

func TestRecordViewIncrementsCountAndPopularity(t *testing.T) {
	repo := NewAnalysisRepository(testDB(t))
	ctx := context.Background()
	rec := testRecord("id-1", "hash-1")
	require.NoError(t, repo.Save(ctx, rec))

	sv, err := repo.RecordView(ctx, rec.ID, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sv.ViewCount)

	sv, err = repo.RecordView(ctx, rec.ID, "sess-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sv.ViewCount)
	assert.Equal(t, "sess-b", sv.SessionHash)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.PopularityScore)
}

func TestListFiltersAndSorts(t *testing.T) {
	repo := NewAnalysisRepository(testDB(t))
	ctx := context.Background()

	a := testRecord("id-a", "hash-a")
	a.CompanyName = "Acme Corp"
	a.Payload.Summary.OverallRisk = domain.RiskLow
	a.PopularityScore = 5
	require.NoError(t, repo.Save(ctx, a))

	b := testRecord("id-b", "hash-b")
	b.CompanyName = "Borealis Ltd"
	b.Payload.Summary.OverallRisk = domain.RiskHigh
	b.PopularityScore = 1
	require.NoError(t, repo.Save(ctx, b))

	private := testRecord("id-c", "hash-c")
	private.IsPublic = false
	require.NoError(t, repo.Save(ctx, private))

	page, err := repo.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total, "private records stay out of the library")
	require.Len(t, page.Data, 2)
	assert.Equal(t, domain.AnalysisID("id-a"), page.Data[0].ID, "default sort is popularity")

	page, err = repo.List(ctx, domain.ListFilter{Risk: "high"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, domain.AnalysisID("id-b"), page.Data[0].ID)

	page, err = repo.List(ctx, domain.ListFilter{Company: "borealis"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, domain.AnalysisID("id-b"), page.Data[0].ID)

	page, err = repo.List(ctx, domain.ListFilter{Sort: domain.SortRisk})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, domain.AnalysisID("id-b"), page.Data[0].ID, "high risk sorts first")

	page, err = repo.List(ctx, domain.ListFilter{Company: "100%_match"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total, "wildcards in search terms are literal")
}

func TestListPagination(t *testing.T) {
	repo := NewAnalysisRepository(testDB(t))
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p3"} {
		rec := testRecord(id, "hash-"+id)
		require.NoError(t, repo.Save(ctx, rec))
	}

	page, err := repo.List(ctx, domain.ListFilter{Page: 2, PageSize: 2, Sort: domain.SortRecent})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data, 1)
}

func TestListExcludesExpired(t *testing.T) {
	repo := NewAnalysisRepository(testDB(t))
	ctx := context.Background()

	rec := testRecord("id-old", "hash-old")
	rec.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, rec))

	page, err := repo.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
}
