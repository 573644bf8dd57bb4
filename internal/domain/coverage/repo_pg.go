package coverage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Payer Repository ===========

type payerRepoPG struct{ db queryable }

func NewPayerRepoPG(pool *pgxpool.Pool) PayerRepository { return &payerRepoPG{db: pool} }

func scanPayer(row pgx.Row) (*Payer, error) {
	var p Payer
	err := row.Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *payerRepoPG) FindByName(ctx context.Context, name string) (*Payer, error) {
	return scanPayer(r.db.QueryRow(ctx, `SELECT id, name, created_at FROM payers WHERE name = $1`, name))
}

// Create converges concurrent creators of the same name on one row.
func (r *payerRepoPG) Create(ctx context.Context, name string) (*Payer, error) {
	return scanPayer(r.db.QueryRow(ctx, `
		INSERT INTO payers (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at`, uuid.New(), name))
}

// =========== Policy Repository ===========

type policyRepoPG struct{ db queryable }

func NewPolicyRepoPG(pool *pgxpool.Pool) PolicyRepository { return &policyRepoPG{db: pool} }

const policyCols = `id, patient_id, organization_id, payer_id, policy_number, group_number, plan_name,
	subscriber_first_name, subscriber_last_name, subscriber_dob, effective_date,
	rx_bin, rx_pcn, rx_group, copay_pcp, copay_specialist, copay_er, copay_urgent_care,
	deductible, out_of_pocket_max, coverage_type, subscriber_relationship,
	is_active, is_verified, created_at, updated_at`

func scanPolicy(row pgx.Row) (*InsurancePolicy, error) {
	var p InsurancePolicy
	err := row.Scan(&p.ID, &p.PatientID, &p.OrganizationID, &p.PayerID, &p.PolicyNumber, &p.GroupNumber, &p.PlanName,
		&p.SubscriberFirstName, &p.SubscriberLastName, &p.SubscriberDOB, &p.EffectiveDate,
		&p.RxBIN, &p.RxPCN, &p.RxGroup, &p.CopayPCP, &p.CopaySpecialist, &p.CopayER, &p.CopayUrgentCare,
		&p.Deductible, &p.OutOfPocketMax, &p.CoverageType, &p.SubscriberRelationship,
		&p.IsActive, &p.IsVerified, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *policyRepoPG) FindByPolicyNumber(ctx context.Context, patientID uuid.UUID, policyNumber string) (*InsurancePolicy, error) {
	return scanPolicy(r.db.QueryRow(ctx, `SELECT `+policyCols+` FROM insurance_policies
		WHERE patient_id = $1 AND policy_number = $2`, patientID, policyNumber))
}

func (r *policyRepoPG) Create(ctx context.Context, p *InsurancePolicy) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO insurance_policies (id, patient_id, organization_id, payer_id, policy_number,
			group_number, plan_name, subscriber_first_name, subscriber_last_name, subscriber_dob,
			effective_date, rx_bin, rx_pcn, rx_group, copay_pcp, copay_specialist, copay_er,
			copay_urgent_care, deductible, out_of_pocket_max, coverage_type, subscriber_relationship,
			is_active, is_verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.OrganizationID, p.PayerID, p.PolicyNumber,
		p.GroupNumber, p.PlanName, p.SubscriberFirstName, p.SubscriberLastName, p.SubscriberDOB,
		p.EffectiveDate, p.RxBIN, p.RxPCN, p.RxGroup, p.CopayPCP, p.CopaySpecialist, p.CopayER,
		p.CopayUrgentCare, p.Deductible, p.OutOfPocketMax, p.CoverageType, p.SubscriberRelationship,
		p.IsActive, p.IsVerified).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// Patch writes the non-nil patch values and marks the policy verified.
func (r *policyRepoPG) Patch(ctx context.Context, id uuid.UUID, p PolicyPatch) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE insurance_policies SET
			payer_id = COALESCE($2, payer_id),
			group_number = COALESCE($3, group_number),
			plan_name = COALESCE($4, plan_name),
			subscriber_first_name = COALESCE($5, subscriber_first_name),
			subscriber_last_name = COALESCE($6, subscriber_last_name),
			subscriber_dob = COALESCE($7, subscriber_dob),
			effective_date = COALESCE($8, effective_date),
			rx_bin = COALESCE($9, rx_bin),
			rx_pcn = COALESCE($10, rx_pcn),
			rx_group = COALESCE($11, rx_group),
			copay_pcp = COALESCE($12, copay_pcp),
			copay_specialist = COALESCE($13, copay_specialist),
			copay_er = COALESCE($14, copay_er),
			copay_urgent_care = COALESCE($15, copay_urgent_care),
			deductible = COALESCE($16, deductible),
			out_of_pocket_max = COALESCE($17, out_of_pocket_max),
			is_verified = true,
			updated_at = NOW()
		WHERE id = $1`,
		id, p.PayerID, p.GroupNumber, p.PlanName, p.SubscriberFirstName, p.SubscriberLastName,
		p.SubscriberDOB, p.EffectiveDate, p.RxBIN, p.RxPCN, p.RxGroup,
		p.CopayPCP, p.CopaySpecialist, p.CopayER, p.CopayUrgentCare, p.Deductible, p.OutOfPocketMax)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
