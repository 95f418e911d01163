package model

import "time"

// Course represents a course in the catalog. Only the fields the progress
// engine reads are mapped.
type Course struct {
	CourseID  string    `db:"id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Module is an ordered group of lessons inside a course.
type Module struct {
	ModuleID   string   `db:"id" json:"module_id"`
	CourseID   string   `db:"course_id" json:"course_id"`
	Title      string   `db:"title" json:"title"`
	OrderIndex int      `db:"order_index" json:"order_index"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson is the unit of progress tracking.
type Lesson struct {
	LessonID   string `db:"id" json:"lesson_id"`
	ModuleID   string `db:"module_id" json:"module_id"`
	Title      string `db:"title" json:"title"`
	OrderIndex int    `db:"order_index" json:"order_index"`
	IsRequired bool   `db:"is_required" json:"is_required"`
	Duration   *int   `db:"duration" json:"duration,omitempty"` // minutes
}

// CourseTree is a course with its modules and lessons, both ordered by order_index.
type CourseTree struct {
	Course  Course   `json:"course"`
	Modules []Module `json:"modules"`
}

// LessonRef locates a lesson within its course.
type LessonRef struct {
	LessonID string `db:"id"`
	ModuleID string `db:"module_id"`
	CourseID string `db:"course_id"`
}

// LessonIDs returns every lesson ID in the tree.
func (t *CourseTree) LessonIDs() []string {
	var ids []string
	for _, m := range t.Modules {
		for _, l := range m.Lessons {
			ids = append(ids, l.LessonID)
		}
	}
	return ids
}
