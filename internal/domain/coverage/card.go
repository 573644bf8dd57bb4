package coverage

import (
	"strconv"
	"strings"
	"time"

	"github.com/foresight/docintel/internal/domain/extraction"
)

// CardDataFromFields picks one value per category and maps it onto a card.
// Form-derived values win over text matches. The member id stands in for
// the policy number when the card carries no separate policy number.
func CardDataFromFields(fields []extraction.Field) CardData {
	r := extraction.Resolve(fields)
	v := func(c extraction.Category) string {
		return strings.TrimSpace(r[c].Value)
	}

	card := CardData{
		PolicyNumber:        v(extraction.PolicyNumber),
		MemberID:            v(extraction.MemberID),
		GroupNumber:         v(extraction.GroupNumber),
		PlanName:            v(extraction.PlanName),
		PayerName:           v(extraction.PayerName),
		SubscriberFirstName: v(extraction.SubscriberFirstName),
		SubscriberLastName:  v(extraction.SubscriberLastName),
		SubscriberDOB:       v(extraction.DateOfBirth),
		EffectiveDate:       v(extraction.EffectiveDate),
		RxBIN:               v(extraction.RxBIN),
		RxPCN:               v(extraction.RxPCN),
		RxGroup:             v(extraction.RxGroup),
		CopayPCP:            v(extraction.CopayPCP),
		CopaySpecialist:     v(extraction.CopaySpecialist),
		CopayER:             v(extraction.CopayER),
		CopayUrgentCare:     v(extraction.CopayUrgentCare),
		Deductible:          v(extraction.Deductible),
		OutOfPocketMax:      v(extraction.OutOfPocketMax),
	}
	if card.PolicyNumber == "" {
		card.PolicyNumber = card.MemberID
	}
	if card.SubscriberFirstName == "" && card.SubscriberLastName == "" {
		card.SubscriberFirstName, card.SubscriberLastName = splitName(v(extraction.SubscriberName))
	}
	return card
}

// splitName splits "JANE Q DOE" into first and last name, and
// "DOE, JANE" the other way around.
func splitName(full string) (first, last string) {
	if before, after, ok := strings.Cut(full, ","); ok {
		return strings.TrimSpace(after), strings.TrimSpace(before)
	}
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], parts[len(parts)-1]
	}
}

var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
}

// parseDate accepts the date layouts printed on US cards.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseMoney reads amounts like "$1,250.00" or "25".
func parseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
