package handler

import (
	"context"

	"courseprogress/internal/api/v1/dto"
	"courseprogress/internal/api/v1/operation"
	"courseprogress/internal/service"

	"github.com/rs/zerolog"
)

type CertificateHandler struct {
	certificateService service.CertificateService
	logger             zerolog.Logger
}

func NewCertificateHandler(certificateService service.CertificateService, logger zerolog.Logger) *CertificateHandler {
	return &CertificateHandler{certificateService: certificateService, logger: logger}
}

// GetCertificate returns a signed download URL once the course is completed
func (h *CertificateHandler) GetCertificate(ctx context.Context, input *operation.GetCertificateInput) (*operation.GetCertificateOutput, error) {
	studentID, err := getStudentIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.certificateService.GetCertificateURL(ctx, studentID, input.CourseID)
	if err != nil {
		return nil, toHTTPError(err, "Failed to generate certificate URL")
	}

	return &operation.GetCertificateOutput{
		Body: dto.CertificateResponseDTO{
			URL:         link.URL,
			ExpiresAt:   link.ExpiresAt,
			CompletedAt: link.CompletedAt,
		},
	}, nil
}
