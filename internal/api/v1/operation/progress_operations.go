package operation

import "courseprogress/internal/api/v1/dto"

// Lesson Progress Operations

type UpdateLessonProgressInput struct {
	LessonID string                      `path:"lessonId" doc:"Lesson ID"`
	Body     dto.LessonProgressUpdateDTO `json:"body"`
}

type UpdateLessonProgressOutput struct {
	Body dto.LessonProgressResponseDTO `json:"body"`
}

// Course Progress Operations

type RecomputeCourseProgressInput struct {
	CourseID string `path:"courseId" doc:"Course ID"`
}

type RecomputeCourseProgressOutput struct {
	Body dto.EnrollmentResponseDTO `json:"body"`
}

type GetCourseProgressInput struct {
	CourseID string `path:"courseId" doc:"Course ID"`
}

type GetCourseProgressOutput struct {
	Body dto.CourseProgressResponseDTO `json:"body"`
}

// Certificate Operations

type GetCertificateInput struct {
	CourseID string `path:"courseId" doc:"Course ID"`
}

type GetCertificateOutput struct {
	Body dto.CertificateResponseDTO `json:"body"`
}
