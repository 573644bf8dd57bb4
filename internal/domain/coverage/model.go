package coverage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrInsufficientExtraction matches every *InsufficientExtractionError.
	ErrInsufficientExtraction = errors.New("insufficient data extracted")
)

// Defaults applied to policies created from a card.
const (
	DefaultCoverageType = "primary"
	DefaultRelationship = "self"
)

// Payer maps to the payers table. Names are unique.
type Payer struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// InsurancePolicy maps to the insurance_policies table, unique on
// (patient_id, policy_number).
type InsurancePolicy struct {
	ID                     uuid.UUID  `db:"id" json:"id"`
	PatientID              uuid.UUID  `db:"patient_id" json:"patient_id"`
	OrganizationID         *uuid.UUID `db:"organization_id" json:"organization_id,omitempty"`
	PayerID                uuid.UUID  `db:"payer_id" json:"payer_id"`
	PolicyNumber           string     `db:"policy_number" json:"policy_number"`
	GroupNumber            *string    `db:"group_number" json:"group_number,omitempty"`
	PlanName               *string    `db:"plan_name" json:"plan_name,omitempty"`
	SubscriberFirstName    *string    `db:"subscriber_first_name" json:"subscriber_first_name,omitempty"`
	SubscriberLastName     *string    `db:"subscriber_last_name" json:"subscriber_last_name,omitempty"`
	SubscriberDOB          *time.Time `db:"subscriber_dob" json:"subscriber_dob,omitempty"`
	EffectiveDate          *time.Time `db:"effective_date" json:"effective_date,omitempty"`
	RxBIN                  *string    `db:"rx_bin" json:"rx_bin,omitempty"`
	RxPCN                  *string    `db:"rx_pcn" json:"rx_pcn,omitempty"`
	RxGroup                *string    `db:"rx_group" json:"rx_group,omitempty"`
	CopayPCP               *float64   `db:"copay_pcp" json:"copay_pcp,omitempty"`
	CopaySpecialist        *float64   `db:"copay_specialist" json:"copay_specialist,omitempty"`
	CopayER                *float64   `db:"copay_er" json:"copay_er,omitempty"`
	CopayUrgentCare        *float64   `db:"copay_urgent_care" json:"copay_urgent_care,omitempty"`
	Deductible             *float64   `db:"deductible" json:"deductible,omitempty"`
	OutOfPocketMax         *float64   `db:"out_of_pocket_max" json:"out_of_pocket_max,omitempty"`
	CoverageType           string     `db:"coverage_type" json:"coverage_type"`
	SubscriberRelationship string     `db:"subscriber_relationship" json:"subscriber_relationship"`
	IsActive               bool       `db:"is_active" json:"is_active"`
	IsVerified             bool       `db:"is_verified" json:"is_verified"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// PolicyPatch holds the non-null values to write onto an existing policy.
// Nil fields leave the stored value untouched.
type PolicyPatch struct {
	PayerID             *uuid.UUID
	GroupNumber         *string
	PlanName            *string
	SubscriberFirstName *string
	SubscriberLastName  *string
	SubscriberDOB       *time.Time
	EffectiveDate       *time.Time
	RxBIN               *string
	RxPCN               *string
	RxGroup             *string
	CopayPCP            *float64
	CopaySpecialist     *float64
	CopayER             *float64
	CopayUrgentCare     *float64
	Deductible          *float64
	OutOfPocketMax      *float64
}

// CardData is the raw text read off an insurance card.
type CardData struct {
	PolicyNumber        string `json:"policy_number,omitempty"`
	MemberID            string `json:"member_id,omitempty"`
	GroupNumber         string `json:"group_number,omitempty"`
	PlanName            string `json:"plan_name,omitempty"`
	PayerName           string `json:"payer_name,omitempty"`
	SubscriberFirstName string `json:"subscriber_first_name,omitempty"`
	SubscriberLastName  string `json:"subscriber_last_name,omitempty"`
	SubscriberDOB       string `json:"subscriber_dob,omitempty"`
	EffectiveDate       string `json:"effective_date,omitempty"`
	RxBIN               string `json:"rx_bin,omitempty"`
	RxPCN               string `json:"rx_pcn,omitempty"`
	RxGroup             string `json:"rx_group,omitempty"`
	CopayPCP            string `json:"copay_pcp,omitempty"`
	CopaySpecialist     string `json:"copay_specialist,omitempty"`
	CopayER             string `json:"copay_er,omitempty"`
	CopayUrgentCare     string `json:"copay_urgent_care,omitempty"`
	Deductible          string `json:"deductible,omitempty"`
	OutOfPocketMax      string `json:"out_of_pocket_max,omitempty"`
}

// UpsertResult reports what UpsertFromCard wrote.
type UpsertResult struct {
	PolicyID uuid.UUID  `json:"policy_id"`
	PayerID  *uuid.UUID `json:"payer_id,omitempty"`
	Created  bool       `json:"created"`
}

// InsufficientExtractionError lists the fields a new policy needs but the
// card did not yield.
type InsufficientExtractionError struct {
	Missing []string
}

func (e *InsufficientExtractionError) Error() string {
	return fmt.Sprintf("insufficient data extracted: missing %s", strings.Join(e.Missing, ", "))
}

func (e *InsufficientExtractionError) Unwrap() error { return ErrInsufficientExtraction }
