package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumUnmarshalRejectsUnknownTags(t *testing.T) {
	var sev Severity
	assert.NoError(t, json.Unmarshal([]byte(`"concerning"`), &sev))
	assert.Equal(t, SeverityConcerning, sev)
	assert.Error(t, json.Unmarshal([]byte(`"catastrophic"`), &sev))

	var conf Confidence
	assert.NoError(t, json.Unmarshal([]byte(`"medium"`), &conf))
	assert.Error(t, json.Unmarshal([]byte(`"certain"`), &conf))

	var risk Risk
	assert.NoError(t, json.Unmarshal([]byte(`"high"`), &risk))
	assert.Error(t, json.Unmarshal([]byte(`"extreme"`), &risk))

	var cat Category
	assert.NoError(t, json.Unmarshal([]byte(`"Dispute Resolution"`), &cat))
	assert.Error(t, json.Unmarshal([]byte(`"Miscellaneous"`), &cat))
}

func TestValidCategory(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, ValidCategory(string(c)))
	}
	assert.False(t, ValidCategory("Cookies"))
	assert.False(t, ValidCategory(""))
}

func validPayload() Payload {
	return Payload{
		DetectedCompany: DetectedCompany{
			Name:       "Acme Corp",
			Confidence: ConfidenceHigh,
			Source:     "document_header",
		},
		DocumentValidation: DocumentValidation{
			IsLegalDocument: true,
			DocumentType:    DocTypeTerms,
			Confidence:      95,
		},
		Summary: Summary{
			OverallRisk:  RiskMedium,
			TotalClauses: 3,
			GreenCount:   1,
			YellowCount:  1,
			RedCount:     1,
			KeyTakeaways: []string{"Arbitration is mandatory"},
		},
		Categories: []CategoryAnalysis{
			{
				Name: CategoryDisputes,
				Clauses: []Clause{{
					Severity:     SeverityCritical,
					OriginalText: "All disputes shall be resolved by binding arbitration.",
					Explanation:  "You waive your right to sue in court.",
				}},
			},
		},
	}
}

func TestPayloadValidate(t *testing.T) {
	p := validPayload()
	require.NoError(t, p.Validate())

	t.Run("confidence out of range", func(t *testing.T) {
		p := validPayload()
		p.DocumentValidation.Confidence = 101
		assert.Error(t, p.Validate())
	})

	t.Run("missing document type", func(t *testing.T) {
		p := validPayload()
		p.DocumentValidation.DocumentType = ""
		assert.Error(t, p.Validate())
	})

	t.Run("counts must add up", func(t *testing.T) {
		p := validPayload()
		p.Summary.TotalClauses = 5
		assert.Error(t, p.Validate())
	})

	t.Run("missing overall risk", func(t *testing.T) {
		p := validPayload()
		p.Summary.OverallRisk = ""
		assert.Error(t, p.Validate())
	})

	t.Run("clause without text", func(t *testing.T) {
		p := validPayload()
		p.Categories[0].Clauses[0].OriginalText = ""
		assert.Error(t, p.Validate())
	})

	t.Run("non-legal skips analysis checks", func(t *testing.T) {
		p := Payload{
			DocumentValidation: DocumentValidation{
				IsLegalDocument: false,
				DocumentType:    DocTypeNotLegal,
				Confidence:      88,
				RejectionReason: "looks like a recipe",
			},
		}
		assert.NoError(t, p.Validate())
	})

	t.Run("non-legal must not carry categories", func(t *testing.T) {
		p := validPayload()
		p.DocumentValidation.IsLegalDocument = false
		assert.Error(t, p.Validate())
	})
}

func TestCategoryNames(t *testing.T) {
	p := validPayload()
	assert.Equal(t, []string{"Dispute Resolution"}, p.CategoryNames())
}
