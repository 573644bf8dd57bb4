package coverage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	payers   PayerRepository
	policies PolicyRepository
	logger   zerolog.Logger
}

func NewService(payers PayerRepository, policies PolicyRepository, logger zerolog.Logger) *Service {
	return &Service{payers: payers, policies: policies, logger: logger.With().Str("component", "coverage").Logger()}
}

// ResolvePayer finds a payer by exact name or creates it.
func (s *Service) ResolvePayer(ctx context.Context, name string) (*Payer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("payer name is required")
	}
	p, err := s.payers.FindByName(ctx, name)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find payer %q: %w", name, err)
	}
	p, err = s.payers.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create payer %q: %w", name, err)
	}
	s.logger.Info().Str("payer_id", p.ID.String()).Str("payer", name).Msg("payer created")
	return p, nil
}

// UpsertFromCard updates the patient's policy with the same policy number,
// or creates one. Creating requires a policy number and a payer; a card
// lacking either yields an *InsufficientExtractionError.
func (s *Service) UpsertFromCard(ctx context.Context, patientID, organizationID uuid.UUID, card CardData) (*UpsertResult, error) {
	log := s.logger.With().Str("patient_id", patientID.String()).Logger()

	var payerID *uuid.UUID
	if strings.TrimSpace(card.PayerName) != "" {
		p, err := s.ResolvePayer(ctx, card.PayerName)
		if err != nil {
			return nil, err
		}
		payerID = &p.ID
	}

	patch := buildPatch(card, payerID, log)
	policyNumber := strings.TrimSpace(card.PolicyNumber)

	if policyNumber != "" {
		existing, err := s.policies.FindByPolicyNumber(ctx, patientID, policyNumber)
		switch {
		case err == nil:
			if err := s.policies.Patch(ctx, existing.ID, patch); err != nil {
				return nil, fmt.Errorf("update policy %s: %w", existing.ID, err)
			}
			log.Info().Str("policy_id", existing.ID.String()).Msg("insurance policy updated")
			return &UpsertResult{PolicyID: existing.ID, PayerID: payerID}, nil
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("find policy: %w", err)
		}
	}

	var missing []string
	if policyNumber == "" {
		missing = append(missing, "policy_number")
	}
	if payerID == nil {
		missing = append(missing, "payer_name")
	}
	if len(missing) > 0 {
		return nil, &InsufficientExtractionError{Missing: missing}
	}

	orgID := organizationID
	policy := &InsurancePolicy{
		PatientID:              patientID,
		PayerID:                *payerID,
		PolicyNumber:           policyNumber,
		GroupNumber:            patch.GroupNumber,
		PlanName:               patch.PlanName,
		SubscriberFirstName:    patch.SubscriberFirstName,
		SubscriberLastName:     patch.SubscriberLastName,
		SubscriberDOB:          patch.SubscriberDOB,
		EffectiveDate:          patch.EffectiveDate,
		RxBIN:                  patch.RxBIN,
		RxPCN:                  patch.RxPCN,
		RxGroup:                patch.RxGroup,
		CopayPCP:               patch.CopayPCP,
		CopaySpecialist:        patch.CopaySpecialist,
		CopayER:                patch.CopayER,
		CopayUrgentCare:        patch.CopayUrgentCare,
		Deductible:             patch.Deductible,
		OutOfPocketMax:         patch.OutOfPocketMax,
		CoverageType:           DefaultCoverageType,
		SubscriberRelationship: DefaultRelationship,
		IsActive:               true,
		IsVerified:             true,
	}
	if organizationID != uuid.Nil {
		policy.OrganizationID = &orgID
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}
	log.Info().Str("policy_id", policy.ID.String()).Msg("insurance policy created")
	return &UpsertResult{PolicyID: policy.ID, PayerID: payerID, Created: true}, nil
}

// buildPatch converts card text to typed values. Unparseable dates and
// amounts are logged and left out.
func buildPatch(card CardData, payerID *uuid.UUID, log zerolog.Logger) PolicyPatch {
	return PolicyPatch{
		PayerID:             payerID,
		GroupNumber:         optional(card.GroupNumber),
		PlanName:            optional(card.PlanName),
		SubscriberFirstName: optional(card.SubscriberFirstName),
		SubscriberLastName:  optional(card.SubscriberLastName),
		SubscriberDOB:       optionalDate("subscriber_dob", card.SubscriberDOB, log),
		EffectiveDate:       optionalDate("effective_date", card.EffectiveDate, log),
		RxBIN:               optional(card.RxBIN),
		RxPCN:               optional(card.RxPCN),
		RxGroup:             optional(card.RxGroup),
		CopayPCP:            optionalMoney("copay_pcp", card.CopayPCP, log),
		CopaySpecialist:     optionalMoney("copay_specialist", card.CopaySpecialist, log),
		CopayER:             optionalMoney("copay_er", card.CopayER, log),
		CopayUrgentCare:     optionalMoney("copay_urgent_care", card.CopayUrgentCare, log),
		Deductible:          optionalMoney("deductible", card.Deductible, log),
		OutOfPocketMax:      optionalMoney("out_of_pocket_max", card.OutOfPocketMax, log),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalDate(field, raw string, log zerolog.Logger) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, ok := parseDate(raw)
	if !ok {
		log.Warn().Str("field", field).Str("value", raw).Msg("unparseable date omitted")
		return nil
	}
	return &t
}

func optionalMoney(field, raw string, log zerolog.Logger) *float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	f, ok := parseMoney(raw)
	if !ok {
		log.Warn().Str("field", field).Str("value", raw).Msg("unparseable amount omitted")
		return nil
	}
	return &f
}
