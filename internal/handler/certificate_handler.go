package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-go-api/internal/models"
	"github.com/noah-isme/lms-go-api/internal/service"
	appErrors "github.com/noah-isme/lms-go-api/pkg/errors"
	"github.com/noah-isme/lms-go-api/pkg/response"
	"github.com/noah-isme/lms-go-api/pkg/storage"
)

// CertificateHandler exposes certificate endpoints.
type CertificateHandler struct {
	certificates *service.CertificateService
	signer       *storage.SignedURLSigner
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService, signer *storage.SignedURLSigner) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, signer: signer}
}

type generateCertificateRequest struct {
	Type models.CertificateType `json:"type" binding:"required"`
}

type invalidateCertificateRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Eligibility godoc
// @Summary Evaluate certificate eligibility for an enrollment
// @Tags Certificates
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param type query string true "Certificate type (VIRTUAL or COMPLETE)"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/certificates/eligibility [get]
func (h *CertificateHandler) Eligibility(c *gin.Context) {
	certType := models.CertificateType(strings.ToUpper(c.Query("type")))
	eligibility, err := h.certificates.CheckEligibility(c.Request.Context(), c.Param("id"), certType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, eligibility, nil)
}

// Generate godoc
// @Summary Issue a certificate for an enrollment
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body generateCertificateRequest true "Certificate payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/certificates [post]
func (h *CertificateHandler) Generate(c *gin.Context) {
	var req generateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	certificate, err := h.certificates.Generate(c.Request.Context(), c.Param("id"), req.Type)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, certificate)
}

// List godoc
// @Summary List certificates for an enrollment
// @Tags Certificates
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	certificates, err := h.certificates.ListByEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificates, nil)
}

// Get godoc
// @Summary Get a certificate
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	certificate, err := h.certificates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificate, nil)
}

// SignDownload godoc
// @Summary Create a time-limited download token for a certificate
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Router /certificates/{id}/download-url [post]
func (h *CertificateHandler) SignDownload(c *gin.Context) {
	certificate, err := h.certificates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	path := certificate.CertificateNumber + ".pdf"
	if certificate.FilePath != nil {
		path = *certificate.FilePath
	}
	token, expiresAt, err := h.signer.Generate(certificate.ID, path)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}

// Download godoc
// @Summary Download a certificate document
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /certificates/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	certificateID, _, _, err := h.signer.Parse(c.Query("token"), false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid download token"))
		return
	}
	certificate, data, err := h.certificates.Download(c.Request.Context(), certificateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, certificate.CertificateNumber))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Invalidate godoc
// @Summary Invalidate a certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body invalidateCertificateRequest true "Invalidation payload"
// @Success 200 {object} response.Envelope
// @Router /certificates/{id}/invalidate [put]
func (h *CertificateHandler) Invalidate(c *gin.Context) {
	var req invalidateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	certificate, err := h.certificates.Invalidate(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificate, nil)
}
