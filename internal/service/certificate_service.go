package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-go-api/internal/models"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
	"github.com/noah-isme/lms-go-api/pkg/render"
)

type certificateRepo interface {
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	FindValid(ctx context.Context, enrollmentID string, certType models.CertificateType) (*models.Certificate, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Certificate, error)
	Create(ctx context.Context, certificate *models.Certificate) error
	UpdateFilePath(ctx context.Context, id, path string) error
	Invalidate(ctx context.Context, id, reason string) error
}

type certificateEnrollmentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type certificateSettings interface {
	VirtualCertificateThreshold(ctx context.Context) float64
	CompleteCertificateThreshold(ctx context.Context) float64
	AutoGenerateCertificates(ctx context.Context) bool
}

type progressCalculator interface {
	Calculate(ctx context.Context, enrollment *models.Enrollment) (*models.ProgressSummary, error)
}

type gradeCalculator interface {
	Breakdown(ctx context.Context, enrollment *models.Enrollment) (*GradeBreakdown, error)
}

type certificateRenderer interface {
	Render(data render.Certificate) ([]byte, error)
}

type certificateStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// Eligibility is the result of evaluating one certificate tier for an
// enrollment.
type Eligibility struct {
	Type       models.CertificateType `json:"type"`
	Eligible   bool                   `json:"eligible"`
	Progress   float64                `json:"progress"`
	FinalScore float64                `json:"final_score"`
	Threshold  float64                `json:"threshold"`
}

// CertificateService evaluates eligibility and issues certificates.
type CertificateService struct {
	certificates certificateRepo
	enrollments  certificateEnrollmentReader
	progress     progressCalculator
	grading      gradeCalculator
	settings     certificateSettings
	renderer     certificateRenderer
	storage      certificateStorage
	logger       *zap.Logger
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(certificates certificateRepo, enrollments certificateEnrollmentReader, progress progressCalculator, grading gradeCalculator, settings certificateSettings, renderer certificateRenderer, storage certificateStorage, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		certificates: certificates,
		enrollments:  enrollments,
		progress:     progress,
		grading:      grading,
		settings:     settings,
		renderer:     renderer,
		storage:      storage,
		logger:       logger,
	}
}

// CheckEligibility evaluates whether an enrollment currently qualifies for
// the given certificate tier. The virtual tier requires overall progress at
// or above the virtual threshold. The complete tier additionally requires
// the final score at or above the complete threshold.
func (s *CertificateService) CheckEligibility(ctx context.Context, enrollmentID string, certType models.CertificateType) (*Eligibility, error) {
	if !certType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown certificate type")
	}
	detail, err := s.enrollmentDetail(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, detail, certType)
}

func (s *CertificateService) evaluate(ctx context.Context, detail *models.EnrollmentDetail, certType models.CertificateType) (*Eligibility, error) {
	enrollment := &detail.Enrollment
	summary, err := s.progress.Calculate(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	progress := summary.Overall
	// A calculated zero usually means progress rows were purged or the
	// course structure changed; the enrollment's cached value is trusted
	// instead so issued standing is not revoked by a transient zero.
	if progress == 0 {
		progress = enrollment.ProgressPercentage
	}
	breakdown, err := s.grading.Breakdown(ctx, enrollment)
	if err != nil {
		return nil, err
	}

	virtualThreshold := s.settings.VirtualCertificateThreshold(ctx)
	eligibility := &Eligibility{
		Type:       certType,
		Progress:   progress,
		FinalScore: breakdown.FinalScore,
		Threshold:  virtualThreshold,
	}
	eligibility.Eligible = progress >= virtualThreshold
	if certType == models.CertificateComplete {
		completeThreshold := s.settings.CompleteCertificateThreshold(ctx)
		eligibility.Threshold = completeThreshold
		eligibility.Eligible = eligibility.Eligible && breakdown.FinalScore >= completeThreshold
	}
	return eligibility, nil
}

// Generate issues a certificate for the enrollment, or returns the existing
// valid one of the same type. Rendering happens after the row is persisted;
// a render failure surfaces as an error while the row remains, so a later
// download can regenerate the file without creating a duplicate.
func (s *CertificateService) Generate(ctx context.Context, enrollmentID string, certType models.CertificateType) (*models.Certificate, error) {
	if !certType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown certificate type")
	}
	detail, err := s.enrollmentDetail(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	existing, err := s.certificates.FindValid(ctx, enrollmentID, certType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up certificate")
	}
	if existing != nil {
		return existing, nil
	}

	eligibility, err := s.evaluate(ctx, detail, certType)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, fmt.Sprintf("enrollment does not meet the %s certificate threshold", certType))
	}

	breakdown, err := s.grading.Breakdown(ctx, &detail.Enrollment)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	certificate := &models.Certificate{
		EnrollmentID:       enrollmentID,
		StudentID:          detail.StudentID,
		CourseID:           detail.CourseID,
		Type:               certType,
		CertificateNumber:  certificateNumber(certType, detail.CourseCode, detail.StudentNumber, now),
		IssuedAt:           now,
		FinalScore:         breakdown.FinalScore,
		CourseProgress:     eligibility.Progress,
		InteractiveAverage: breakdown.InteractiveAverage,
		ActivitiesAverage:  breakdown.ActivitiesAverage,
		Valid:              true,
	}
	if err := s.certificates.Create(ctx, certificate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
	}
	s.logger.Info("certificate issued",
		zap.String("certificate_id", certificate.ID),
		zap.String("enrollment_id", enrollmentID),
		zap.String("type", string(certType)),
		zap.String("number", certificate.CertificateNumber))

	if err := s.renderFile(ctx, certificate, detail); err != nil {
		return nil, err
	}
	return certificate, nil
}

// AutoGenerate opportunistically attempts both tiers after a progress
// change. Ineligibility is a normal outcome; other failures are logged and
// swallowed so they never block the update that triggered them.
func (s *CertificateService) AutoGenerate(ctx context.Context, enrollmentID string) {
	if !s.settings.AutoGenerateCertificates(ctx) {
		return
	}
	for _, certType := range []models.CertificateType{models.CertificateVirtual, models.CertificateComplete} {
		if _, err := s.Generate(ctx, enrollmentID, certType); err != nil {
			if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrNotEligible.Code {
				continue
			}
			s.logger.Warn("certificate auto-generation failed",
				zap.String("enrollment_id", enrollmentID),
				zap.String("type", string(certType)),
				zap.Error(err))
		}
	}
}

// Get returns a certificate by ID.
func (s *CertificateService) Get(ctx context.Context, id string) (*models.Certificate, error) {
	certificate, err := s.certificates.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return certificate, nil
}

// ListByEnrollment returns every issuance for an enrollment, newest first.
func (s *CertificateService) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Certificate, error) {
	certificates, err := s.certificates.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certificates, nil
}

// Download returns the certificate and its rendered document, regenerating
// the file when it is missing or was never produced.
func (s *CertificateService) Download(ctx context.Context, id string) (*models.Certificate, []byte, error) {
	certificate, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !certificate.Valid {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate has been invalidated")
	}
	if certificate.FilePath != nil {
		file, err := s.storage.Open(*certificate.FilePath)
		if err == nil {
			defer file.Close() //nolint:errcheck
			data, readErr := io.ReadAll(file)
			if readErr == nil {
				return certificate, data, nil
			}
			s.logger.Warn("stored certificate file unreadable, regenerating",
				zap.String("certificate_id", certificate.ID), zap.Error(readErr))
		}
	}
	detail, err := s.enrollmentDetail(ctx, certificate.EnrollmentID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.renderFile(ctx, certificate, detail); err != nil {
		return nil, nil, err
	}
	file, err := s.storage.Open(*certificate.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate file")
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read certificate file")
	}
	return certificate, data, nil
}

// Invalidate marks a certificate invalid with a reason. The row is kept.
func (s *CertificateService) Invalidate(ctx context.Context, id, reason string) (*models.Certificate, error) {
	certificate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !certificate.Valid {
		return certificate, nil
	}
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalidation reason is required")
	}
	if err := s.certificates.Invalidate(ctx, id, reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate certificate")
	}
	certificate.Valid = false
	certificate.InvalidationReason = &reason
	// Downloads reject invalidated certificates, so the rendered file is
	// unreachable; a later re-issuance gets a fresh number and file.
	if certificate.FilePath != nil {
		if err := s.storage.Delete(*certificate.FilePath); err != nil {
			s.logger.Warn("failed to remove certificate file",
				zap.String("certificate_id", id), zap.Error(err))
		}
	}
	s.logger.Info("certificate invalidated",
		zap.String("certificate_id", id), zap.String("reason", reason))
	return certificate, nil
}

// InvalidateForEnrollment invalidates every valid certificate of an
// enrollment, used when the enrollment is dropped.
func (s *CertificateService) InvalidateForEnrollment(ctx context.Context, enrollmentID, reason string) error {
	certificates, err := s.certificates.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	for _, certificate := range certificates {
		if !certificate.Valid {
			continue
		}
		if err := s.certificates.Invalidate(ctx, certificate.ID, reason); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate certificate")
		}
	}
	return nil
}

func (s *CertificateService) renderFile(ctx context.Context, certificate *models.Certificate, detail *models.EnrollmentDetail) error {
	data, err := s.renderer.Render(render.Certificate{
		Number:         certificate.CertificateNumber,
		Title:          certificateTitle(certificate.Type),
		StudentName:    detail.StudentName,
		CourseTitle:    detail.CourseTitle,
		FinalScore:     certificate.FinalScore,
		CourseProgress: certificate.CourseProgress,
		IssuedAt:       certificate.IssuedAt,
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrRenderFailed.Code, appErrors.ErrRenderFailed.Status, "failed to render certificate")
	}
	filename := fmt.Sprintf("%s.pdf", certificate.CertificateNumber)
	path, err := s.storage.Save(filename, data)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrRenderFailed.Code, appErrors.ErrRenderFailed.Status, "failed to store certificate file")
	}
	if err := s.certificates.UpdateFilePath(ctx, certificate.ID, path); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record certificate file path")
	}
	certificate.FilePath = &path
	return nil
}

func (s *CertificateService) enrollmentDetail(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

func certificateNumber(certType models.CertificateType, courseCode, studentNumber int, issuedAt time.Time) string {
	return fmt.Sprintf("%s-%04d-%05d-%s", certType.Prefix(), courseCode, studentNumber, issuedAt.Format("20060102150405"))
}

func certificateTitle(certType models.CertificateType) string {
	if certType == models.CertificateComplete {
		return "Certificate of Completion"
	}
	return "Virtual Certificate"
}
