package model

import "time"

// CourseEnrollment links a student to a course and carries the aggregate
// progress kept consistent with the student's LessonProgress rows.
type CourseEnrollment struct {
	EnrollmentID   string     `db:"id" json:"enrollment_id"`
	StudentID      string     `db:"student_id" json:"student_id"`
	CourseID       string     `db:"course_id" json:"course_id"`
	Progress       float64    `db:"progress" json:"progress"`
	IsCompleted    bool       `db:"is_completed" json:"is_completed"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at"`
	LastAccessedAt *time.Time `db:"last_accessed_at" json:"last_accessed_at"`
	Version        int64      `db:"version" json:"version"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StaleEnrollment identifies an enrollment whose lesson progress changed after
// its last recompute.
type StaleEnrollment struct {
	StudentID string `db:"student_id"`
	CourseID  string `db:"course_id"`
}
