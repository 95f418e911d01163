package dto

import "time"

// LessonProgressUpdateDTO is a partial update. Omitted fields are left as stored.
type LessonProgressUpdateDTO struct {
	IsCompleted *bool `json:"is_completed,omitempty" doc:"Mark the lesson complete or incomplete"`
	TimeSpent   *int  `json:"time_spent,omitempty" minimum:"0" doc:"Cumulative seconds spent on the lesson, replaces the stored value"`
}

type LessonProgressResponseDTO struct {
	LessonID    string     `json:"lesson_id"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at"`
	TimeSpent   int        `json:"time_spent"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type EnrollmentResponseDTO struct {
	CourseID       string     `json:"course_id"`
	Progress       float64    `json:"progress"`
	IsCompleted    bool       `json:"is_completed"`
	CompletedAt    *time.Time `json:"completed_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
}

type LessonStateDTO struct {
	LessonID    string     `json:"lesson_id"`
	Title       string     `json:"title"`
	IsRequired  bool       `json:"is_required"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at"`
	TimeSpent   int        `json:"time_spent"`
}

type ModuleProgressDTO struct {
	ModuleID         string           `json:"module_id"`
	Title            string           `json:"title"`
	TotalLessons     int              `json:"total_lessons"`
	CompletedLessons int              `json:"completed_lessons"`
	Progress         float64          `json:"progress"`
	Lessons          []LessonStateDTO `json:"lessons"`
}

type CourseProgressResponseDTO struct {
	CourseID         string                `json:"course_id"`
	Title            string                `json:"title"`
	TotalLessons     int                   `json:"total_lessons"`
	CompletedLessons int                   `json:"completed_lessons"`
	Enrollment       EnrollmentResponseDTO `json:"enrollment"`
	Modules          []ModuleProgressDTO   `json:"modules"`
}
