package extraction

import (
	"sort"
	"strings"
)

// formKeys maps normalised form labels to categories.
var formKeys = map[string]Category{
	"member id":             MemberID,
	"member number":         MemberID,
	"member #":              MemberID,
	"member no":             MemberID,
	"id number":             MemberID,
	"id #":                  MemberID,
	"subscriber id":         MemberID,
	"identification number": MemberID,

	"policy number": PolicyNumber,
	"policy #":      PolicyNumber,
	"policy no":     PolicyNumber,
	"policy id":     PolicyNumber,

	"group":        GroupNumber,
	"group number": GroupNumber,
	"group no":     GroupNumber,
	"group #":      GroupNumber,
	"group id":     GroupNumber,
	"grp":          GroupNumber,

	"bin":            RxBIN,
	"rx bin":         RxBIN,
	"pharmacy bin":   RxBIN,
	"pcn":            RxPCN,
	"rx pcn":         RxPCN,
	"pharmacy pcn":   RxPCN,
	"rx group":       RxGroup,
	"rx grp":         RxGroup,
	"rxgrp":          RxGroup,
	"pharmacy group": RxGroup,

	"payer id": PayerID,
	"plan id":  PayerID,

	"payer":             PayerName,
	"insurance company": PayerName,
	"carrier":           PayerName,
	"insurer":           PayerName,
	"company name":      PayerName,

	"plan":          PlanName,
	"plan name":     PlanName,
	"plan type":     PlanName,
	"coverage type": PlanName,

	"effective":      EffectiveDate,
	"effective date": EffectiveDate,
	"eff date":       EffectiveDate,

	"phone":            Phone,
	"telephone":        Phone,
	"customer service": Phone,
	"member services":  Phone,

	"name":            SubscriberName,
	"member name":     SubscriberName,
	"subscriber name": SubscriberName,
	"subscriber":      SubscriberName,

	"first name":            SubscriberFirstName,
	"subscriber first name": SubscriberFirstName,
	"member first name":     SubscriberFirstName,
	"last name":             SubscriberLastName,
	"subscriber last name":  SubscriberLastName,
	"member last name":      SubscriberLastName,

	"date of birth":  DateOfBirth,
	"dob":            DateOfBirth,
	"birth date":     DateOfBirth,
	"subscriber dob": DateOfBirth,

	"license":        LicenseNumber,
	"license number": LicenseNumber,
	"license no":     LicenseNumber,
	"dl":             LicenseNumber,
	"driver license": LicenseNumber,

	"expires":         ExpirationDate,
	"expiration":      ExpirationDate,
	"expiration date": ExpirationDate,
	"exp":             ExpirationDate,
	"exp date":        ExpirationDate,

	"state": State,

	"pcp":                CopayPCP,
	"pcp copay":          CopayPCP,
	"primary care":       CopayPCP,
	"primary care copay": CopayPCP,
	"office visit":       CopayPCP,

	"specialist":       CopaySpecialist,
	"specialist copay": CopaySpecialist,
	"spec copay":       CopaySpecialist,

	"er":             CopayER,
	"er copay":       CopayER,
	"emergency":      CopayER,
	"emergency room": CopayER,

	"urgent care":       CopayUrgentCare,
	"urgent care copay": CopayUrgentCare,

	"ded":               Deductible,
	"deductible":        Deductible,
	"annual deductible": Deductible,

	"out of pocket":         OutOfPocketMax,
	"out of pocket max":     OutOfPocketMax,
	"oop max":               OutOfPocketMax,
	"maximum out of pocket": OutOfPocketMax,

	// Labels that contain a known label but name something else. They map
	// to no category so the shorter label cannot claim them.
	"group name":     "",
	"employer group": "",
}

// keysByLength is formKeys ordered longest first, then alphabetically, so a
// containment search finds the most specific label.
var keysByLength = func() []string {
	keys := make([]string, 0, len(formKeys))
	for k := range formKeys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

var labelReplacer = strings.NewReplacer(":", " ", ".", " ", ",", " ", ";", " ", "(", " ", ")", " ", "/", " ", "-", " ", "_", " ")

// normalizeLabel lower-cases a form label and reduces punctuation to single
// spaces. '#' is kept because several labels depend on it.
func normalizeLabel(s string) string {
	s = labelReplacer.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// CategoryForLabel maps a form label to a category. An exact match wins;
// otherwise the longest dictionary label found as whole words inside it.
// Labels reserved with an empty category report false.
func CategoryForLabel(label string) (Category, bool) {
	key := normalizeLabel(label)
	if key == "" {
		return "", false
	}
	if c, ok := formKeys[key]; ok {
		return c, c != ""
	}
	padded := " " + key + " "
	for _, k := range keysByLength {
		if strings.Contains(padded, " "+k+" ") {
			c := formKeys[k]
			return c, c != ""
		}
	}
	return "", false
}
