package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"courseprogress/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectPresigner is the subset of *s3.PresignClient used here.
type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// CertificateLink points at a rendered certificate in the object store.
type CertificateLink struct {
	URL         string
	ExpiresAt   time.Time
	CompletedAt *time.Time
}

// CertificateService answers certificate eligibility. Rendering happens
// elsewhere; this only hands out a time-limited link to the stored PDF.
type CertificateService interface {
	IsEligible(ctx context.Context, studentID, courseID string) (bool, error)
	GetCertificateURL(ctx context.Context, studentID, courseID string) (*CertificateLink, error)
}

type certificateService struct {
	enrollments repository.EnrollmentRepository
	presigner   ObjectPresigner
	bucketName  string
	prefix      string
	ttl         time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

func NewCertificateService(
	enrollments repository.EnrollmentRepository,
	presigner ObjectPresigner,
	bucketName, prefix string,
	ttl time.Duration,
	logger zerolog.Logger,
) CertificateService {
	return &certificateService{
		enrollments: enrollments,
		presigner:   presigner,
		bucketName:  bucketName,
		prefix:      prefix,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger.With().Str("service", "CertificateService").Logger(),
	}
}

func (s *certificateService) IsEligible(ctx context.Context, studentID, courseID string) (bool, error) {
	e, err := s.enrollments.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, &NotFoundError{Resource: "enrollment", ID: courseID}
	}
	return e.IsCompleted, nil
}

// CertificateKey is the object key of a student's certificate for a course.
func CertificateKey(prefix, courseID, studentID string) string {
	return path.Join(prefix, courseID, studentID+".pdf")
}

func (s *certificateService) GetCertificateURL(ctx context.Context, studentID, courseID string) (*CertificateLink, error) {
	e, err := s.enrollments.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		s.logger.Error().Err(err).Str("course_id", courseID).Msg("Failed to get enrollment")
		return nil, err
	}
	if e == nil {
		return nil, &NotFoundError{Resource: "enrollment", ID: courseID}
	}
	if !e.IsCompleted {
		return nil, ErrNotEligible
	}

	key := CertificateKey(s.prefix, courseID, studentID)
	resp, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to presign certificate URL")
		return nil, fmt.Errorf("presigning certificate %s: %w", key, err)
	}

	return &CertificateLink{
		URL:         resp.URL,
		ExpiresAt:   s.now().Add(s.ttl),
		CompletedAt: e.CompletedAt,
	}, nil
}
