package documents

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

type repoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{db: pool} }

const documentCols = `id, patient_id, organization_id, bucket, object_key, file_name,
	document_type, status, processing, extraction, created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.PatientID, &d.OrganizationID, &d.Bucket, &d.ObjectKey, &d.FileName,
		&d.DocumentType, &d.Status, &d.Processing, &d.Extraction, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.DocumentType == "" {
		d.DocumentType = TypeOther
	}
	if d.Status == "" {
		d.Status = StatusUploaded
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO documents (id, patient_id, organization_id, bucket, object_key, file_name,
			document_type, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		d.ID, d.PatientID, d.OrganizationID, d.Bucket, d.ObjectKey, d.FileName,
		d.DocumentType, d.Status).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	return scanDocument(r.db.QueryRow(ctx, `SELECT `+documentCols+` FROM documents WHERE id = $1`, id))
}

func (r *repoPG) UpdateProcessing(ctx context.Context, id uuid.UUID, status Status, info *ProcessingInfo) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents SET status = $2, processing = $3, updated_at = NOW()
		WHERE id = $1`, id, status, info)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateExtraction replaces the extraction payload and marks the document
// completed.
func (r *repoPG) UpdateExtraction(ctx context.Context, id uuid.UUID, docType Type, info *ProcessingInfo, payload *ExtractionPayload) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents SET status = $2, document_type = $3, processing = $4, extraction = $5,
			updated_at = NOW()
		WHERE id = $1`, id, StatusCompleted, docType, info, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
