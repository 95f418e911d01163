package router

import (
	"net/http"
	"os"

	"courseprogress/internal/api/v1/handler"
	"courseprogress/internal/config"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SetupHumaAPI creates a Huma API instance on a chi router. The dead-letter
// push endpoint uses Pub/Sub auth; everything else needs a student token.
func SetupHumaAPI(
	cfg *config.Config,
	authMiddleware func(http.Handler) http.Handler,
	pubsubAuthMiddleware func(http.Handler) http.Handler,
	logger zerolog.Logger,
) (*chi.Mux, huma.API) {
	chiRouter := chi.NewRouter()

	chiRouter.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/openapi.json", "/openapi.yaml", "/docs", "/schemas":
				next.ServeHTTP(w, r)
			case "/dlq/record":
				pubsubAuthMiddleware(next).ServeHTTP(w, r)
			default:
				authMiddleware(next).ServeHTTP(w, r)
			}
		})
	})

	version := os.Getenv("GIT_COMMIT_SHA")
	if version == "" {
		version = "development"
	}

	humaConfig := huma.DefaultConfig("Course Progress API v1", version)
	humaConfig.Info.Description = "Lesson progress, course completion and certificates"
	humaConfig.Servers = []*huma.Server{{URL: cfg.APIBaseURL}}

	api := humachi.New(chiRouter, humaConfig)

	logger.Info().Str("version", version).Msg("Huma API initialized for /v1")
	return chiRouter, api
}

// RegisterRoutes registers all Huma operations
func RegisterRoutes(
	api huma.API,
	progressHandler *handler.ProgressHandler,
	certificateHandler *handler.CertificateHandler,
	deadLetterHandler *handler.DeadLetterHandler,
	logger zerolog.Logger,
) {
	// ========== PROGRESS OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "updateLessonProgress",
		Method:      http.MethodPut,
		Path:        "/lessons/{lessonId}/progress",
		Summary:     "Update lesson progress",
		Description: "Records completion and time spent for a lesson, then recomputes the course progress",
		Tags:        []string{"progress"},
	}, progressHandler.UpdateLessonProgress)

	huma.Register(api, huma.Operation{
		OperationID: "recomputeCourseProgress",
		Method:      http.MethodPost,
		Path:        "/courses/{courseId}/progress/recompute",
		Summary:     "Recompute course progress",
		Description: "Rederives the enrollment's progress and completion from stored lesson progress",
		Tags:        []string{"progress"},
	}, progressHandler.RecomputeCourseProgress)

	huma.Register(api, huma.Operation{
		OperationID: "getCourseProgress",
		Method:      http.MethodGet,
		Path:        "/courses/{courseId}/progress",
		Summary:     "Get course progress",
		Description: "Returns course, module and lesson progress for the authenticated student",
		Tags:        []string{"progress"},
	}, progressHandler.GetCourseProgress)

	// ========== CERTIFICATE OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "getCertificate",
		Method:      http.MethodGet,
		Path:        "/courses/{courseId}/certificate",
		Summary:     "Get certificate URL",
		Description: "Generates a signed URL for the course certificate once the course is completed",
		Tags:        []string{"certificates"},
	}, certificateHandler.GetCertificate)

	// ========== DEAD LETTER OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID:   "recordDeadLetter",
		Method:        http.MethodPost,
		Path:          "/dlq/record",
		Summary:       "Record dead-lettered completion",
		Description:   "Stores a completion event Pub/Sub could not deliver so it can be replayed into the notification sink",
		Tags:          []string{"dlq"},
		DefaultStatus: http.StatusNoContent,
	}, deadLetterHandler.RecordDeadLetter)

	logger.Info().Int("total_operations", 5).Msg("All operations registered successfully")
}
