package extraction

import "github.com/foresight/docintel/internal/domain/analysis"

// Category is the closed vocabulary of extractable fields.
type Category string

const (
	MemberID            Category = "member_id"
	PolicyNumber        Category = "policy_number"
	GroupNumber         Category = "group_number"
	RxBIN               Category = "rx_bin"
	RxPCN               Category = "rx_pcn"
	RxGroup             Category = "rx_group"
	PayerID             Category = "payer_id"
	PayerName           Category = "payer_name"
	PlanName            Category = "plan_name"
	EffectiveDate       Category = "effective_date"
	Phone               Category = "phone"
	SubscriberName      Category = "subscriber_name"
	SubscriberFirstName Category = "subscriber_first_name"
	SubscriberLastName  Category = "subscriber_last_name"
	DateOfBirth         Category = "date_of_birth"
	LicenseNumber       Category = "license_number"
	ExpirationDate      Category = "expiration_date"
	State               Category = "state"
	CopayPCP            Category = "copay_pcp"
	CopaySpecialist     Category = "copay_specialist"
	CopayER             Category = "copay_er"
	CopayUrgentCare     Category = "copay_urgent_care"
	Deductible          Category = "deductible"
	OutOfPocketMax      Category = "out_of_pocket_max"
)

var allCategories = []Category{
	MemberID, PolicyNumber, GroupNumber, RxBIN, RxPCN, RxGroup, PayerID, PayerName,
	PlanName, EffectiveDate, Phone, SubscriberName, SubscriberFirstName, SubscriberLastName,
	DateOfBirth, LicenseNumber, ExpirationDate, State, CopayPCP, CopaySpecialist, CopayER,
	CopayUrgentCare, Deductible, OutOfPocketMax,
}

// Categories returns every known category.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func (c Category) Valid() bool {
	for _, k := range allCategories {
		if k == c {
			return true
		}
	}
	return false
}

// Source records which strategy produced a field.
type Source string

const (
	// SourceForm is a labeled key/value pair from the form graph.
	SourceForm Source = "form"
	// SourceText is a regex match over the flattened text.
	SourceText Source = "text"
)

// Field is one candidate value for a category.
type Field struct {
	Category    Category              `json:"category"`
	Value       string                `json:"value"`
	Confidence  float64               `json:"confidence"`
	BoundingBox *analysis.BoundingBox `json:"bounding_box,omitempty"`
	Source      Source                `json:"source"`
}
