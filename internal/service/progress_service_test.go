package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"courseprogress/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkLessonSingleLessonCourseCompletes(t *testing.T) {
	tree := courseWithLessons("c1", 1, 5)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()

	p, err := env.svc.MarkLesson(ctx, RecordProgressInput{
		StudentID:   "s1",
		LessonID:    tree.LessonIDs()[0],
		IsCompleted: boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, p.IsCompleted)
	require.NotNil(t, p.CompletedAt)

	e := env.enrollments.get("s1", "c1")
	assert.Equal(t, 100.0, e.Progress)
	assert.True(t, e.IsCompleted)
	require.NotNil(t, e.CompletedAt)
	assert.Equal(t, *env.clock, *e.CompletedAt)

	require.Equal(t, 1, env.publisher.count())
	event := env.publisher.events[0]
	assert.Equal(t, "COURSE_COMPLETION", event.Type)
	assert.Equal(t, "s1", event.StudentID)
	assert.Equal(t, "c1", event.CourseID)
	assert.Equal(t, "Course c1", event.CourseTitle)
	assert.Equal(t, *e.CompletedAt, event.CompletedAt)
}

func TestMarkLessonTwiceIsIdempotent(t *testing.T) {
	tree := courseWithLessons("c1", 1, 5)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()
	in := RecordProgressInput{StudentID: "s1", LessonID: tree.LessonIDs()[0], IsCompleted: boolPtr(true)}

	_, err := env.svc.MarkLesson(ctx, in)
	require.NoError(t, err)
	first := env.enrollments.get("s1", "c1")

	env.advance(time.Hour)
	p, err := env.svc.MarkLesson(ctx, in)
	require.NoError(t, err)
	second := env.enrollments.get("s1", "c1")

	assert.Equal(t, 1, env.publisher.count())
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
	assert.Equal(t, first.CompletedAt, p.CompletedAt, "lesson completed_at is kept on repeat")
	assert.True(t, second.IsCompleted)
}

func TestRecordProgressUnknownLesson(t *testing.T) {
	env := newTestEnv(courseWithLessons("c1", 3, 5))
	env.enrollments.enroll("s1", "c1")
	before := env.enrollments.get("s1", "c1")

	_, err := env.svc.MarkLesson(context.Background(), RecordProgressInput{
		StudentID:   "s1",
		LessonID:    "missing",
		IsCompleted: boolPtr(true),
	})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "lesson", nf.Resource)
	assert.Equal(t, "lesson missing not found", err.Error())
	assert.Equal(t, before, env.enrollments.get("s1", "c1"))
	assert.Equal(t, 0, env.enrollments.writes)
	assert.Empty(t, env.lessons.rows)
}

func TestRecomputeEmptyCourse(t *testing.T) {
	env := newTestEnv(courseWithLessons("c0", 0, 5))
	env.enrollments.enroll("s1", "c0")

	e, err := env.svc.RecomputeCourseProgress(context.Background(), "s1", "c0")
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Progress)
	assert.False(t, e.IsCompleted)
	assert.Nil(t, e.CompletedAt)
	assert.Equal(t, 0, env.publisher.count())
}

func TestRecomputeEightOfTwelve(t *testing.T) {
	tree := courseWithLessons("c1", 12, 4)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()

	for _, id := range tree.LessonIDs()[:8] {
		_, err := env.svc.RecordProgress(ctx, RecordProgressInput{StudentID: "s1", LessonID: id, IsCompleted: boolPtr(true)})
		require.NoError(t, err)
	}
	e, err := env.svc.RecomputeCourseProgress(ctx, "s1", "c1")
	require.NoError(t, err)

	assert.Equal(t, 66.66666666666667, e.Progress)
	assert.False(t, e.IsCompleted)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	tree := courseWithLessons("c1", 5, 2)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()
	for _, id := range tree.LessonIDs()[:3] {
		_, err := env.svc.RecordProgress(ctx, RecordProgressInput{StudentID: "s1", LessonID: id, IsCompleted: boolPtr(true)})
		require.NoError(t, err)
	}

	first, err := env.svc.RecomputeCourseProgress(ctx, "s1", "c1")
	require.NoError(t, err)
	second, err := env.svc.RecomputeCourseProgress(ctx, "s1", "c1")
	require.NoError(t, err)

	// Every recompute writes, so only the version moves.
	assert.Equal(t, first.Version+1, second.Version)
	assert.Equal(t, 2, env.enrollments.writes)
	assert.Equal(t, *first, withVersion(*second, first.Version))
	assert.Equal(t, *second, env.enrollments.get("s1", "c1"))
}

func TestRecomputeStampsLastAccessed(t *testing.T) {
	tree := courseWithLessons("c1", 2, 2)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()

	first, err := env.svc.RecomputeCourseProgress(ctx, "s1", "c1")
	require.NoError(t, err)
	env.advance(time.Hour)
	second, err := env.svc.RecomputeCourseProgress(ctx, "s1", "c1")
	require.NoError(t, err)

	require.NotNil(t, second.LastAccessedAt)
	assert.Equal(t, first.LastAccessedAt.Add(time.Hour), *second.LastAccessedAt)
	assert.Equal(t, first.Progress, second.Progress)
}

func withVersion(e model.CourseEnrollment, v int64) model.CourseEnrollment {
	e.Version = v
	return e
}

func TestRecomputeMonotonicUnderCompletions(t *testing.T) {
	tree := courseWithLessons("c1", 9, 4)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()

	last := -1.0
	for _, id := range tree.LessonIDs() {
		_, err := env.svc.MarkLesson(ctx, RecordProgressInput{StudentID: "s1", LessonID: id, IsCompleted: boolPtr(true)})
		require.NoError(t, err)
		e := env.enrollments.get("s1", "c1")
		assert.GreaterOrEqual(t, e.Progress, last)
		last = e.Progress
	}
	assert.Equal(t, 100.0, last)
	assert.Equal(t, 1, env.publisher.count())
}

func TestRecomputeWhileCompleteFiresOnce(t *testing.T) {
	tree := courseWithLessons("c1", 2, 2)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()
	for _, id := range tree.LessonIDs() {
		_, err := env.svc.MarkLesson(ctx, RecordProgressInput{StudentID: "s1", LessonID: id, IsCompleted: boolPtr(true)})
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		env.advance(time.Minute)
		_, err := env.svc.RecomputeCourseProgress(ctx, "s1", "c1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.publisher.count())
}

func TestUncompleteClearsAndRecompletionFiresAgain(t *testing.T) {
	tree := courseWithLessons("c1", 2, 2)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()
	ids := tree.LessonIDs()
	for _, id := range ids {
		_, err := env.svc.MarkLesson(ctx, RecordProgressInput{StudentID: "s1", LessonID: id, IsCompleted: boolPtr(true)})
		require.NoError(t, err)
	}

	env.advance(time.Hour)
	_, err := env.svc.MarkLesson(ctx, RecordProgressInput{StudentID: "s1", LessonID: ids[1], IsCompleted: boolPtr(false)})
	require.NoError(t, err)
	e := env.enrollments.get("s1", "c1")
	assert.Equal(t, 50.0, e.Progress)
	assert.False(t, e.IsCompleted)
	assert.Nil(t, e.CompletedAt)

	env.advance(time.Hour)
	_, err = env.svc.MarkLesson(ctx, RecordProgressInput{StudentID: "s1", LessonID: ids[1], IsCompleted: boolPtr(true)})
	require.NoError(t, err)

	require.Equal(t, 2, env.publisher.count())
	assert.NotEqual(t, env.publisher.events[0].EventID, env.publisher.events[1].EventID)
}

func TestRecordProgressPartialUpdates(t *testing.T) {
	tree := courseWithLessons("c1", 1, 1)
	env := newTestEnv(tree)
	ctx := context.Background()
	id := tree.LessonIDs()[0]

	p, err := env.svc.RecordProgress(ctx, RecordProgressInput{StudentID: "s1", LessonID: id, TimeSpent: intPtr(120)})
	require.NoError(t, err)
	assert.False(t, p.IsCompleted)
	assert.Nil(t, p.CompletedAt)
	assert.Equal(t, 120, p.TimeSpent)

	p, err = env.svc.RecordProgress(ctx, RecordProgressInput{StudentID: "s1", LessonID: id, IsCompleted: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, p.IsCompleted)
	assert.Equal(t, 120, p.TimeSpent, "time spent untouched when not provided")

	p, err = env.svc.RecordProgress(ctx, RecordProgressInput{StudentID: "s1", LessonID: id, TimeSpent: intPtr(90)})
	require.NoError(t, err)
	assert.Equal(t, 90, p.TimeSpent, "time spent is replaced, not accumulated")
	assert.True(t, p.IsCompleted, "completion untouched when not provided")
}

func TestRecordProgressDoesNotRecompute(t *testing.T) {
	tree := courseWithLessons("c1", 1, 1)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")

	_, err := env.svc.RecordProgress(context.Background(), RecordProgressInput{
		StudentID: "s1", LessonID: tree.LessonIDs()[0], IsCompleted: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, env.enrollments.writes)
	assert.Equal(t, 0, env.publisher.count())
}

func TestRecordProgressValidation(t *testing.T) {
	tree := courseWithLessons("c1", 1, 1)
	env := newTestEnv(tree)

	tests := []struct {
		name      string
		in        RecordProgressInput
		wantField string
	}{
		{"negative time spent", RecordProgressInput{StudentID: "s1", LessonID: tree.LessonIDs()[0], TimeSpent: intPtr(-1)}, "time_spent"},
		{"missing student", RecordProgressInput{LessonID: tree.LessonIDs()[0]}, "student_id"},
		{"missing lesson", RecordProgressInput{StudentID: "s1"}, "lesson_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.RecordProgress(context.Background(), tt.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.True(t, IsValidation(err))
		})
	}
	assert.Empty(t, env.lessons.rows)
}

func TestRecomputeNotEnrolled(t *testing.T) {
	env := newTestEnv(courseWithLessons("c1", 2, 2))

	_, err := env.svc.RecomputeCourseProgress(context.Background(), "s1", "c1")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "enrollment", nf.Resource)
	assert.Equal(t, "not enrolled in course c1", err.Error())
}

func TestRecomputeUnknownCourse(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.RecomputeCourseProgress(context.Background(), "s1", "nope")

	require.True(t, IsNotFound(err))
}

func TestRecomputeRetriesOnVersionConflict(t *testing.T) {
	tree := courseWithLessons("c1", 1, 1)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()
	_, err := env.svc.RecordProgress(ctx, RecordProgressInput{StudentID: "s1", LessonID: tree.LessonIDs()[0], IsCompleted: boolPtr(true)})
	require.NoError(t, err)

	env.enrollments.conflicts = 2
	e, err := env.svc.RecomputeCourseProgress(ctx, "s1", "c1")
	require.NoError(t, err)

	assert.True(t, e.IsCompleted)
	assert.Equal(t, 1, env.enrollments.writes)
	assert.Equal(t, 1, env.publisher.count())
}

func TestRecomputeGivesUpAfterAttempts(t *testing.T) {
	tree := courseWithLessons("c1", 1, 1)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	env.enrollments.conflicts = 3

	_, err := env.svc.RecomputeCourseProgress(context.Background(), "s1", "c1")

	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 0, env.publisher.count())
}

func TestPublishFailureDoesNotFailProgress(t *testing.T) {
	tree := courseWithLessons("c1", 1, 1)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	env.publisher.err = errors.New("queue unavailable")

	p, err := env.svc.MarkLesson(context.Background(), RecordProgressInput{
		StudentID: "s1", LessonID: tree.LessonIDs()[0], IsCompleted: boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, p.IsCompleted)

	e := env.enrollments.get("s1", "c1")
	assert.True(t, e.IsCompleted)
	assert.NotNil(t, e.CompletedAt)
}

func TestMarkLessonSurfacesRecomputeFailure(t *testing.T) {
	tree := courseWithLessons("c1", 1, 1)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	env.enrollments.err = errBoom

	_, err := env.svc.MarkLesson(context.Background(), RecordProgressInput{
		StudentID: "s1", LessonID: tree.LessonIDs()[0], IsCompleted: boolPtr(true),
	})

	require.ErrorIs(t, err, errBoom)
	// the lesson write already happened; the next recompute catches up
	assert.Len(t, env.lessons.rows, 1)
}

func TestGetCourseProgress(t *testing.T) {
	tree := courseWithLessons("c1", 4, 2)
	env := newTestEnv(tree)
	env.enrollments.enroll("s1", "c1")
	ctx := context.Background()
	ids := tree.LessonIDs()

	_, err := env.svc.MarkLesson(ctx, RecordProgressInput{StudentID: "s1", LessonID: ids[0], IsCompleted: boolPtr(true), TimeSpent: intPtr(300)})
	require.NoError(t, err)
	_, err = env.svc.MarkLesson(ctx, RecordProgressInput{StudentID: "s1", LessonID: ids[2], TimeSpent: intPtr(45)})
	require.NoError(t, err)

	view, err := env.svc.GetCourseProgress(ctx, "s1", "c1")
	require.NoError(t, err)

	assert.Equal(t, 25.0, view.Enrollment.Progress)
	assert.Equal(t, 1, view.Summary.CompletedLessons)
	require.Len(t, view.Modules, 2)
	assert.Equal(t, 50.0, view.Modules[0].Summary.Progress)
	assert.Equal(t, 0.0, view.Modules[1].Summary.Progress)
	require.Len(t, view.Modules[0].Lessons, 2)
	assert.True(t, view.Modules[0].Lessons[0].IsCompleted)
	assert.Equal(t, 300, view.Modules[0].Lessons[0].TimeSpent)
	assert.False(t, view.Modules[1].Lessons[0].IsCompleted)
	assert.Equal(t, 45, view.Modules[1].Lessons[0].TimeSpent)
	assert.Equal(t, 0, view.Modules[1].Lessons[1].TimeSpent)
}
