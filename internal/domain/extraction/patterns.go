package extraction

import (
	"regexp"

	"github.com/foresight/docintel/internal/domain/classification"
)

// Profile selects which free-text pattern library runs.
type Profile string

const (
	ProfileInsurance Profile = "insurance"
	ProfileIdentity  Profile = "identity"
	// ProfileNone runs the positional strategy only.
	ProfileNone Profile = "none"
)

// ProfileFor picks the pattern library for a classified document. Pharmacy
// benefit cards carry the same identifiers as medical insurance cards.
func ProfileFor(t classification.Type) Profile {
	switch t {
	case classification.InsuranceCard, classification.PharmacyBenefits:
		return ProfileInsurance
	case classification.IDVerification:
		return ProfileIdentity
	default:
		return ProfileNone
	}
}

// rule is an ordered list of alternatives for one category. The first
// alternative that matches wins and later ones are not tried.
type rule struct {
	category     Category
	alternatives []*regexp.Regexp
}

const datePattern = `(\d{1,2}/\d{1,2}/\d{2,4})`

var insuranceRules = []rule{
	{MemberID, []*regexp.Regexp{
		regexp.MustCompile(`(?i)member\s*(?:id|#|number|no)[\s:#]*([A-Z0-9]{8,20})`),
		regexp.MustCompile(`(?i)\bid[\s#:]*([A-Z0-9]{8,20})`),
		regexp.MustCompile(`\b([A-Z0-9]{9,15})\b`),
	}},
	{GroupNumber, []*regexp.Regexp{
		regexp.MustCompile(`(?i)group\s*(?:number|#|no)[\s:#]*([A-Z0-9]{4,15})`),
		regexp.MustCompile(`(?i)\bgrp[\s#:]*([A-Z0-9]{4,15})`),
	}},
	{RxBIN, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:rx\s*)?bin[\s#:]*(\d{6})`),
		regexp.MustCompile(`(?i)\bbin\b[\s:]*(\d{6})`),
	}},
	{RxPCN, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:rx\s*)?pcn[\s#:]*([A-Z0-9]{2,10})`),
		regexp.MustCompile(`(?i)\bpcn\b[\s:]*([A-Z0-9]{2,10})`),
	}},
	{RxGroup, []*regexp.Regexp{
		regexp.MustCompile(`(?i)rx\s*(?:grp|group)[\s#:]*([A-Z0-9]{3,15})`),
	}},
	{PayerID, []*regexp.Regexp{
		regexp.MustCompile(`(?i)payer\s*(?:id|#)[\s:]*([A-Z0-9]{5,15})`),
		regexp.MustCompile(`(?i)plan\s*(?:id|#)[\s:]*([A-Z0-9]{5,15})`),
	}},
	{EffectiveDate, []*regexp.Regexp{
		regexp.MustCompile(`(?i)effective(?:\s*date)?[\s:]*` + datePattern),
		regexp.MustCompile(`(?i)\beff[\s:.]*` + datePattern),
	}},
	{Phone, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:phone|ph|tel)[\s:]*(\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4})`),
		regexp.MustCompile(`(\(?\b\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b)`),
	}},
}

var identityRules = []rule{
	{LicenseNumber, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:license|lic|dl)[\s#:]*([A-Z0-9]{8,20})`),
		regexp.MustCompile(`\b([A-Z]\d{7,12})\b`),
	}},
	{DateOfBirth, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:dob|date\s*of\s*birth|born)[\s:]*` + datePattern),
		regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`),
	}},
	{ExpirationDate, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:exp|expires|expiration)[\s:]*` + datePattern),
	}},
	{State, []*regexp.Regexp{
		regexp.MustCompile(`\b(A[KLRZ]|C[AOT]|D[CE]|FL|GA|HI|I[ADLN]|K[SY]|LA|M[ADEINOST]|N[CDEHJMVY]|O[HKR]|P[AR]|RI|S[CD]|T[NX]|UT|V[AIT]|W[AIVY])\b`),
	}},
}

func rulesFor(p Profile) []rule {
	switch p {
	case ProfileInsurance:
		return insuranceRules
	case ProfileIdentity:
		return identityRules
	default:
		return nil
	}
}
