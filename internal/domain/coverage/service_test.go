package coverage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repositories --

type mockPayerRepo struct {
	items   map[string]*Payer
	creates int
}

func newMockPayerRepo() *mockPayerRepo {
	return &mockPayerRepo{items: make(map[string]*Payer)}
}

func (m *mockPayerRepo) FindByName(_ context.Context, name string) (*Payer, error) {
	p, ok := m.items[name]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPayerRepo) Create(_ context.Context, name string) (*Payer, error) {
	if p, ok := m.items[name]; ok {
		return p, nil
	}
	m.creates++
	p := &Payer{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	m.items[name] = p
	return p, nil
}

type policyKey struct {
	patient uuid.UUID
	number  string
}

type mockPolicyRepo struct {
	items   map[policyKey]*InsurancePolicy
	patches int
}

func newMockPolicyRepo() *mockPolicyRepo {
	return &mockPolicyRepo{items: make(map[policyKey]*InsurancePolicy)}
}

func (m *mockPolicyRepo) FindByPolicyNumber(_ context.Context, patientID uuid.UUID, policyNumber string) (*InsurancePolicy, error) {
	p, ok := m.items[policyKey{patientID, policyNumber}]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPolicyRepo) Create(_ context.Context, p *InsurancePolicy) error {
	k := policyKey{p.PatientID, p.PolicyNumber}
	if _, ok := m.items[k]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.items[k] = p
	return nil
}

func (m *mockPolicyRepo) Patch(_ context.Context, id uuid.UUID, patch PolicyPatch) error {
	for _, p := range m.items {
		if p.ID != id {
			continue
		}
		m.patches++
		if patch.PayerID != nil {
			p.PayerID = *patch.PayerID
		}
		if patch.GroupNumber != nil {
			p.GroupNumber = patch.GroupNumber
		}
		if patch.PlanName != nil {
			p.PlanName = patch.PlanName
		}
		if patch.EffectiveDate != nil {
			p.EffectiveDate = patch.EffectiveDate
		}
		if patch.CopayPCP != nil {
			p.CopayPCP = patch.CopayPCP
		}
		p.IsVerified = true
		return nil
	}
	return ErrNotFound
}

func newTestService() (*Service, *mockPayerRepo, *mockPolicyRepo) {
	payers := newMockPayerRepo()
	policies := newMockPolicyRepo()
	return NewService(payers, policies, zerolog.Nop()), payers, policies
}

func TestResolvePayer_FindOrCreate(t *testing.T) {
	svc, payers, _ := newTestService()
	ctx := context.Background()

	first, err := svc.ResolvePayer(ctx, "Blue Cross")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.ResolvePayer(ctx, " Blue Cross ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Error("expected the same payer for the same name")
	}
	if payers.creates != 1 {
		t.Errorf("expected one payer row, got %d creates", payers.creates)
	}
}

func TestResolvePayer_EmptyName(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.ResolvePayer(context.Background(), "  "); err == nil {
		t.Error("expected error for empty payer name")
	}
}

func TestUpsertFromCard_CreatesThenUpdates(t *testing.T) {
	svc, payers, policies := newTestService()
	ctx := context.Background()
	patient, org := uuid.New(), uuid.New()
	card := CardData{
		PolicyNumber:  "A1234567B",
		PayerName:     "Aetna",
		GroupNumber:   "55443",
		EffectiveDate: "01/01/2024",
		CopayPCP:      "$25.00",
	}

	first, err := svc.UpsertFromCard(ctx, patient, org, card)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !first.Created {
		t.Error("expected first upsert to create")
	}

	card.PlanName = "Gold PPO"
	second, err := svc.UpsertFromCard(ctx, patient, org, card)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Created {
		t.Error("expected second upsert to update")
	}
	if first.PolicyID != second.PolicyID {
		t.Error("expected the same policy row")
	}
	if len(policies.items) != 1 || payers.creates != 1 {
		t.Errorf("expected one policy and one payer, got %d and %d", len(policies.items), payers.creates)
	}

	p := policies.items[policyKey{patient, "A1234567B"}]
	if p.PlanName == nil || *p.PlanName != "Gold PPO" {
		t.Error("expected plan name to be patched in")
	}
	if p.GroupNumber == nil || *p.GroupNumber != "55443" {
		t.Error("expected group number to survive the patch")
	}
	if p.CoverageType != "primary" || p.SubscriberRelationship != "self" || !p.IsActive || !p.IsVerified {
		t.Errorf("unexpected defaults %+v", p)
	}
	if p.OrganizationID == nil || *p.OrganizationID != org {
		t.Error("expected organization id to be stored")
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if p.EffectiveDate == nil || !p.EffectiveDate.Equal(want) {
		t.Errorf("expected effective date %v, got %v", want, p.EffectiveDate)
	}
	if p.CopayPCP == nil || *p.CopayPCP != 25 {
		t.Errorf("expected copay 25, got %v", p.CopayPCP)
	}
}

func TestUpsertFromCard_PatchNeverNullsOut(t *testing.T) {
	svc, _, policies := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	svc.UpsertFromCard(ctx, patient, uuid.Nil, CardData{PolicyNumber: "P1", PayerName: "Cigna", GroupNumber: "G-77"})
	if _, err := svc.UpsertFromCard(ctx, patient, uuid.Nil, CardData{PolicyNumber: "P1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := policies.items[policyKey{patient, "P1"}]
	if p.GroupNumber == nil || *p.GroupNumber != "G-77" {
		t.Error("expected existing group number to be kept")
	}
	if policies.patches != 1 {
		t.Errorf("expected one patch, got %d", policies.patches)
	}
}

func TestUpsertFromCard_UpdateWithoutPayer(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	patient := uuid.New()
	svc.UpsertFromCard(ctx, patient, uuid.Nil, CardData{PolicyNumber: "P1", PayerName: "Cigna"})

	res, err := svc.UpsertFromCard(ctx, patient, uuid.Nil, CardData{PolicyNumber: "P1", PlanName: "Silver"})
	if err != nil {
		t.Fatalf("an existing policy can be updated without a payer: %v", err)
	}
	if res.Created || res.PayerID != nil {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestUpsertFromCard_Insufficient(t *testing.T) {
	tests := []struct {
		name    string
		card    CardData
		missing []string
	}{
		{"no policy number", CardData{PayerName: "Aetna"}, []string{"policy_number"}},
		{"no payer", CardData{PolicyNumber: "P9"}, []string{"payer_name"}},
		{"nothing", CardData{}, []string{"policy_number", "payer_name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, policies := newTestService()
			_, err := svc.UpsertFromCard(context.Background(), uuid.New(), uuid.New(), tt.card)
			if !errors.Is(err, ErrInsufficientExtraction) {
				t.Fatalf("expected ErrInsufficientExtraction, got %v", err)
			}
			var ie *InsufficientExtractionError
			if !errors.As(err, &ie) {
				t.Fatal("expected *InsufficientExtractionError")
			}
			if len(ie.Missing) != len(tt.missing) {
				t.Fatalf("expected missing %v, got %v", tt.missing, ie.Missing)
			}
			for i := range tt.missing {
				if ie.Missing[i] != tt.missing[i] {
					t.Errorf("expected missing %v, got %v", tt.missing, ie.Missing)
				}
			}
			if len(policies.items) != 0 {
				t.Error("no policy may be created")
			}
		})
	}
}

func TestUpsertFromCard_BadDateOmitted(t *testing.T) {
	svc, _, policies := newTestService()
	patient := uuid.New()
	_, err := svc.UpsertFromCard(context.Background(), patient, uuid.Nil, CardData{
		PolicyNumber:  "P1",
		PayerName:     "Humana",
		EffectiveDate: "13/45/2024",
		SubscriberDOB: "sometime",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := policies.items[policyKey{patient, "P1"}]
	if p.EffectiveDate != nil || p.SubscriberDOB != nil {
		t.Error("expected unparseable dates to be omitted")
	}
}
