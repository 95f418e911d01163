package dto

import "time"

// CertificateResponseDTO carries a time-limited download link for a course certificate.
type CertificateResponseDTO struct {
	URL         string     `json:"url"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
