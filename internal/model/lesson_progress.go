package model

import "time"

// LessonProgress is one student's state for one lesson.
type LessonProgress struct {
	StudentID   string     `db:"student_id" json:"student_id"`
	LessonID    string     `db:"lesson_id" json:"lesson_id"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`
	TimeSpent   int        `db:"time_spent" json:"time_spent"` // cumulative seconds
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// LessonProgressUpdate carries the fields a caller explicitly provided.
// Nil fields are left as they are.
type LessonProgressUpdate struct {
	StudentID   string
	LessonID    string
	IsCompleted *bool
	TimeSpent   *int
}
