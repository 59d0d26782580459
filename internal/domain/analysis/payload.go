package analysis

import (
	"encoding/json"
	"fmt"
)

// Severity enum for a single clause
type Severity string

const (
	SeveritySafe       Severity = "safe"
	SeverityConcerning Severity = "concerning"
	SeverityCritical   Severity = "critical"
)

func (s *Severity) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch Severity(v) {
	case SeveritySafe, SeverityConcerning, SeverityCritical:
		*s = Severity(v)
		return nil
	}
	return fmt.Errorf("unknown clause severity %q", v)
}

// Confidence enum for company detection
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c *Confidence) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch Confidence(v) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		*c = Confidence(v)
		return nil
	}
	return fmt.Errorf("unknown confidence %q", v)
}

// Risk enum for the overall document
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

func (r *Risk) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch Risk(v) {
	case RiskLow, RiskMedium, RiskHigh:
		*r = Risk(v)
		return nil
	}
	return fmt.Errorf("unknown risk level %q", v)
}

// Category is the closed set of clause categories the analysis is
// bucketed into. Anything else from the model is rejected at parse time.
type Category string

const (
	CategoryDataPrivacy   Category = "Data Collection & Privacy"
	CategoryUserRights    Category = "User Rights & Content"
	CategoryLiability     Category = "Liability & Warranties"
	CategoryTermination   Category = "Account Termination"
	CategoryDisputes      Category = "Dispute Resolution"
	CategoryChanges       Category = "Changes to Terms"
	CategoryPayments      Category = "Payments & Renewals"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryDataPrivacy,
	CategoryUserRights,
	CategoryLiability,
	CategoryTermination,
	CategoryDisputes,
	CategoryChanges,
	CategoryPayments,
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	for _, known := range Categories {
		if Category(v) == known {
			*c = Category(v)
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", v)
}

// ValidCategory reports whether v is one of the closed category names.
func ValidCategory(v string) bool {
	for _, known := range Categories {
		if Category(v) == known {
			return true
		}
	}
	return false
}

// Document types reported by validation. Not a closed enum on the wire,
// but these are the values the prompt asks for.
const (
	DocTypeTerms         = "terms_of_service"
	DocTypePrivacyPolicy = "privacy_policy"
	DocTypeEULA          = "eula"
	DocTypeOtherLegal    = "other_legal"
	DocTypeNotLegal      = "not_legal"
)

// DetectedCompany value object
type DetectedCompany struct {
	Name       string     `json:"name"`
	Confidence Confidence `json:"confidence"`
	Source     string     `json:"source"`
}

// DocumentValidation reports whether the input is a legal document at all.
type DocumentValidation struct {
	IsLegalDocument bool   `json:"is_legal_document"`
	DocumentType    string `json:"document_type"`
	Confidence      int    `json:"confidence"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// Summary value object
type Summary struct {
	OverallRisk  Risk     `json:"overall_risk"`
	TotalClauses int      `json:"total_clauses"`
	GreenCount   int      `json:"green_count"`
	YellowCount  int      `json:"yellow_count"`
	RedCount     int      `json:"red_count"`
	KeyTakeaways []string `json:"key_takeaways"`
}

// Clause is one flagged passage of the document.
type Clause struct {
	Severity       Severity `json:"severity"`
	OriginalText   string   `json:"original_text"`
	Explanation    string   `json:"explanation"`
	WhyThisMatters string   `json:"why_this_matters"`
	QuoteReference string   `json:"quote_reference,omitempty"`
}

// CategoryAnalysis groups clauses under one category.
type CategoryAnalysis struct {
	Name    Category `json:"name"`
	Clauses []Clause `json:"clauses"`
}

// Payload is the structured analysis result produced by the model.
type Payload struct {
	DetectedCompany    DetectedCompany    `json:"detected_company"`
	DocumentValidation DocumentValidation `json:"document_validation"`
	Summary            Summary            `json:"summary"`
	Categories         []CategoryAnalysis `json:"categories"`
}

// Validate checks the structural invariants that enum unmarshalling alone
// cannot: required fields, confidence bounds, and count consistency.
// For non-legal documents only the validation and company blocks matter.
func (p *Payload) Validate() error {
	dv := p.DocumentValidation
	if dv.Confidence < 0 || dv.Confidence > 100 {
		return fmt.Errorf("validation confidence %d out of range", dv.Confidence)
	}
	if dv.DocumentType == "" {
		return fmt.Errorf("document_type is required")
	}
	if !dv.IsLegalDocument {
		if len(p.Categories) != 0 {
			return fmt.Errorf("non-legal document must not carry categories")
		}
		return nil
	}
	if p.DetectedCompany.Confidence == "" {
		return fmt.Errorf("detected_company.confidence is required")
	}
	if p.Summary.OverallRisk == "" {
		return fmt.Errorf("summary.overall_risk is required")
	}
	if p.Summary.TotalClauses != p.Summary.GreenCount+p.Summary.YellowCount+p.Summary.RedCount {
		return fmt.Errorf("summary counts do not add up: total=%d green=%d yellow=%d red=%d",
			p.Summary.TotalClauses, p.Summary.GreenCount, p.Summary.YellowCount, p.Summary.RedCount)
	}
	for _, cat := range p.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category name is required")
		}
		for _, cl := range cat.Clauses {
			if cl.Severity == "" {
				return fmt.Errorf("clause severity is required in %q", cat.Name)
			}
			if cl.OriginalText == "" || cl.Explanation == "" {
				return fmt.Errorf("clause in %q is missing text or explanation", cat.Name)
			}
		}
	}
	return nil
}

// CategoryNames returns the category names present in the payload,
// used for the listing index.
func (p *Payload) CategoryNames() []string {
	out := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		out = append(out, string(c.Name))
	}
	return out
}
