package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-go-api/internal/models"
)

// CertificateRepository handles certificate persistence.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// FindByID returns a certificate by its ID.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	const query = `SELECT id, enrollment_id, student_id, course_id, type, certificate_number, issued_at, final_score, course_progress,
        interactive_average, activities_average, file_path, valid, invalidation_reason
        FROM certificates WHERE id = $1`
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, query, id); err != nil {
		return nil, err
	}
	return &certificate, nil
}

// FindValid returns the valid certificate of the given type for an
// enrollment, nil when none exists. Uniqueness of valid rows is enforced
// here by lookup-before-create, not by a database constraint.
func (r *CertificateRepository) FindValid(ctx context.Context, enrollmentID string, certType models.CertificateType) (*models.Certificate, error) {
	const query = `SELECT id, enrollment_id, student_id, course_id, type, certificate_number, issued_at, final_score, course_progress,
        interactive_average, activities_average, file_path, valid, invalidation_reason
        FROM certificates WHERE enrollment_id = $1 AND type = $2 AND valid = TRUE
        ORDER BY issued_at DESC LIMIT 1`
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, query, enrollmentID, certType); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find valid certificate: %w", err)
	}
	return &certificate, nil
}

// ListByEnrollment returns every issuance for an enrollment, newest first.
func (r *CertificateRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Certificate, error) {
	const query = `SELECT id, enrollment_id, student_id, course_id, type, certificate_number, issued_at, final_score, course_progress,
        interactive_average, activities_average, file_path, valid, invalidation_reason
        FROM certificates WHERE enrollment_id = $1 ORDER BY issued_at DESC`
	var certificates []models.Certificate
	if err := r.db.SelectContext(ctx, &certificates, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certificates, nil
}

// Create persists a new certificate row.
func (r *CertificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	if certificate.ID == "" {
		certificate.ID = uuid.NewString()
	}
	if certificate.IssuedAt.IsZero() {
		certificate.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (id, enrollment_id, student_id, course_id, type, certificate_number, issued_at, final_score,
        course_progress, interactive_average, activities_average, file_path, valid, invalidation_reason)
        VALUES (:id, :enrollment_id, :student_id, :course_id, :type, :certificate_number, :issued_at, :final_score,
        :course_progress, :interactive_average, :activities_average, :file_path, :valid, :invalidation_reason)`
	if _, err := r.db.NamedExecContext(ctx, query, certificate); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// UpdateFilePath stores the rendered document's path.
func (r *CertificateRepository) UpdateFilePath(ctx context.Context, id, path string) error {
	const query = `UPDATE certificates SET file_path = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path); err != nil {
		return fmt.Errorf("update certificate file path: %w", err)
	}
	return nil
}

// Invalidate flips the row invalid with a reason; the row is kept.
func (r *CertificateRepository) Invalidate(ctx context.Context, id, reason string) error {
	const query = `UPDATE certificates SET valid = FALSE, invalidation_reason = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, reason); err != nil {
		return fmt.Errorf("invalidate certificate: %w", err)
	}
	return nil
}
