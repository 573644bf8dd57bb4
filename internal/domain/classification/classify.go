// Package classification assigns a document type to extracted text by
// keyword density.
package classification

import (
	"math"
	"strings"
)

type Type string

const (
	InsuranceCard    Type = "insurance_card"
	PharmacyBenefits Type = "pharmacy_benefits"
	IDVerification   Type = "id_verification"
	Other            Type = "other"
)

// Result is a type with a confidence in [0, 1].
type Result struct {
	Type       Type    `json:"type"`
	Confidence float64 `json:"confidence"`
}

var (
	insuranceKeywords = []string{"member", "group", "bin", "pcn", "copay", "deductible", "premium", "coverage"}
	idKeywords        = []string{"license", "identification", "expires", "state", "height", "weight", "eyes"}
	pharmacyKeywords  = []string{"pharmacy", "prescription", "rx", "drug", "formulary"}
)

const (
	insuranceMinScore = 3
	pharmacyMinScore  = 2
	idMinScore        = 2

	insuranceWeight = 0.15
	pharmacyWeight  = 0.2
	idWeight        = 0.2

	baseConfidence  = 0.3
	maxConfidence   = 0.9
	otherConfidence = 0.1
)

// Classify scores text against each keyword set and applies the fixed
// priority insurance > pharmacy > id > other.
func Classify(fullText string) Result {
	text := strings.ToLower(fullText)

	insurance := score(text, insuranceKeywords)
	pharmacy := score(text, pharmacyKeywords)
	id := score(text, idKeywords)

	switch {
	case insurance >= insuranceMinScore:
		return Result{Type: InsuranceCard, Confidence: confidence(insurance, insuranceWeight)}
	case pharmacy >= pharmacyMinScore:
		return Result{Type: PharmacyBenefits, Confidence: confidence(pharmacy, pharmacyWeight)}
	case id >= idMinScore:
		return Result{Type: IDVerification, Confidence: confidence(id, idWeight)}
	default:
		return Result{Type: Other, Confidence: otherConfidence}
	}
}

// score counts distinct keywords present as case-insensitive substrings.
func score(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}

func confidence(score int, weight float64) float64 {
	c := math.Min(maxConfidence, baseConfidence+float64(score)*weight)
	// Keep reported values stable at two decimals (0.3+3*0.15 is 0.7499999...).
	return math.Round(c*100) / 100
}

// DocumentType maps a classification to the stored document type.
// Pharmacy benefit cards are stored as insurance cards.
func (t Type) DocumentType() string {
	switch t {
	case InsuranceCard, PharmacyBenefits:
		return "insurance_card"
	case IDVerification:
		return "id_verification"
	default:
		return "other"
	}
}
