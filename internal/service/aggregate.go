package service

import (
	"time"

	"courseprogress/internal/model"
)

// ProgressSummary is the derived completion state of one course for one student.
type ProgressSummary struct {
	TotalLessons     int
	CompletedLessons int
	Progress         float64
	IsCompleted      bool
}

// ModuleSummary is the derived completion state of one module.
type ModuleSummary struct {
	ModuleID         string
	TotalLessons     int
	CompletedLessons int
	Progress         float64
}

// percent keeps the raw float. Multiplying before dividing gives 8 of 12 as
// 66.66666666666667 and n of n as exactly 100.
func percent(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) * 100 / float64(total)
}

// completedSet indexes the completed lessons in rows.
func completedSet(rows []model.LessonProgress) map[string]bool {
	done := make(map[string]bool, len(rows))
	for _, p := range rows {
		if p.IsCompleted {
			done[p.LessonID] = true
		}
	}
	return done
}

// Summarize counts every lesson of the tree, unweighted, and the completed ones
// among them. Rows for lessons outside the tree are ignored.
func Summarize(tree *model.CourseTree, rows []model.LessonProgress) (ProgressSummary, []ModuleSummary) {
	done := completedSet(rows)

	var total, completed int
	modules := make([]ModuleSummary, 0, len(tree.Modules))
	for _, m := range tree.Modules {
		ms := ModuleSummary{ModuleID: m.ModuleID, TotalLessons: len(m.Lessons)}
		for _, l := range m.Lessons {
			if done[l.LessonID] {
				ms.CompletedLessons++
			}
		}
		ms.Progress = percent(ms.CompletedLessons, ms.TotalLessons)
		modules = append(modules, ms)

		total += ms.TotalLessons
		completed += ms.CompletedLessons
	}

	progress := percent(completed, total)
	return ProgressSummary{
		TotalLessons:     total,
		CompletedLessons: completed,
		Progress:         progress,
		IsCompleted:      progress >= 100,
	}, modules
}

// applySummary returns the enrollment state after a recompute and whether it
// is a false->true completion transition. prev is not modified.
func applySummary(prev model.CourseEnrollment, s ProgressSummary, now time.Time) (model.CourseEnrollment, bool) {
	next := prev
	next.Progress = s.Progress
	next.IsCompleted = s.IsCompleted
	accessed := now
	next.LastAccessedAt = &accessed

	transitioned := s.IsCompleted && !prev.IsCompleted
	switch {
	case transitioned:
		completedAt := now
		next.CompletedAt = &completedAt
	case s.IsCompleted:
		// already complete: completed_at stays as first set
	default:
		next.CompletedAt = nil
	}
	return next, transitioned
}
