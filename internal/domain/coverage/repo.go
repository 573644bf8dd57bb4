package coverage

import (
	"context"

	"github.com/google/uuid"
)

type PayerRepository interface {
	FindByName(ctx context.Context, name string) (*Payer, error)
	// Create inserts a payer or returns the row already holding that name.
	Create(ctx context.Context, name string) (*Payer, error)
}

type PolicyRepository interface {
	FindByPolicyNumber(ctx context.Context, patientID uuid.UUID, policyNumber string) (*InsurancePolicy, error)
	Create(ctx context.Context, p *InsurancePolicy) error
	Patch(ctx context.Context, id uuid.UUID, patch PolicyPatch) error
}
