package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"courseprogress/internal/model"

	"github.com/rs/zerolog"
)

// fakeCatalog implements repository.CatalogRepository over fixed trees.
type fakeCatalog struct {
	trees map[string]*model.CourseTree
	err   error
}

func (f *fakeCatalog) GetCourseTree(_ context.Context, courseID string) (*model.CourseTree, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.trees[courseID]
	if !ok {
		return nil, nil
	}
	return t, nil
}

func (f *fakeCatalog) GetLessonRef(_ context.Context, lessonID string) (*model.LessonRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	for courseID, t := range f.trees {
		for _, m := range t.Modules {
			for _, l := range m.Lessons {
				if l.LessonID == lessonID {
					return &model.LessonRef{LessonID: lessonID, ModuleID: m.ModuleID, CourseID: courseID}, nil
				}
			}
		}
	}
	return nil, nil
}

// fakeLessonProgress mirrors the upsert semantics of the SQL repository.
type fakeLessonProgress struct {
	mu      sync.Mutex
	rows    map[[2]string]*model.LessonProgress
	catalog *fakeCatalog
	err     error
}

func newFakeLessonProgress(catalog *fakeCatalog) *fakeLessonProgress {
	return &fakeLessonProgress{rows: map[[2]string]*model.LessonProgress{}, catalog: catalog}
}

func (f *fakeLessonProgress) Upsert(_ context.Context, u model.LessonProgressUpdate, now time.Time) (*model.LessonProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := [2]string{u.StudentID, u.LessonID}
	p, ok := f.rows[key]
	if !ok {
		p = &model.LessonProgress{StudentID: u.StudentID, LessonID: u.LessonID, CreatedAt: now}
		if u.IsCompleted != nil && *u.IsCompleted {
			p.IsCompleted = true
			at := now
			p.CompletedAt = &at
		}
		if u.TimeSpent != nil {
			p.TimeSpent = *u.TimeSpent
		}
		p.UpdatedAt = now
		f.rows[key] = p
		cp := *p
		return &cp, nil
	}
	if u.IsCompleted != nil {
		switch {
		case *u.IsCompleted && p.IsCompleted:
		case *u.IsCompleted:
			at := now
			p.CompletedAt = &at
		default:
			p.CompletedAt = nil
		}
		p.IsCompleted = *u.IsCompleted
	}
	if u.TimeSpent != nil {
		p.TimeSpent = *u.TimeSpent
	}
	p.UpdatedAt = now
	cp := *p
	return &cp, nil
}

func (f *fakeLessonProgress) ListForCourse(_ context.Context, studentID, courseID string) ([]model.LessonProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	inCourse := map[string]bool{}
	if t := f.catalog.trees[courseID]; t != nil {
		for _, id := range t.LessonIDs() {
			inCourse[id] = true
		}
	}
	out := []model.LessonProgress{}
	for key, p := range f.rows {
		if key[0] == studentID && inCourse[key[1]] {
			out = append(out, *p)
		}
	}
	return out, nil
}

// fakeEnrollments implements compare-and-set on Version. conflicts makes the
// next N writes lose the race.
type fakeEnrollments struct {
	mu        sync.Mutex
	rows      map[[2]string]*model.CourseEnrollment
	conflicts int
	writes    int
	err       error
}

func newFakeEnrollments() *fakeEnrollments {
	return &fakeEnrollments{rows: map[[2]string]*model.CourseEnrollment{}}
}

func (f *fakeEnrollments) enroll(studentID, courseID string) {
	f.rows[[2]string{studentID, courseID}] = &model.CourseEnrollment{
		EnrollmentID: studentID + "-" + courseID,
		StudentID:    studentID,
		CourseID:     courseID,
	}
}

func (f *fakeEnrollments) get(studentID, courseID string) model.CourseEnrollment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[[2]string{studentID, courseID}]
}

func (f *fakeEnrollments) GetEnrollment(_ context.Context, studentID, courseID string) (*model.CourseEnrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.rows[[2]string{studentID, courseID}]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEnrollments) UpdateProgress(_ context.Context, e *model.CourseEnrollment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rows[[2]string{e.StudentID, e.CourseID}]
	if !ok {
		return false, nil
	}
	if f.conflicts > 0 {
		f.conflicts--
		stored.Version++
		return false, nil
	}
	if stored.Version != e.Version {
		return false, nil
	}
	f.writes++
	e.Version = stored.Version + 1
	cp := *e
	f.rows[[2]string{e.StudentID, e.CourseID}] = &cp
	return true, nil
}

func (f *fakeEnrollments) ListStale(_ context.Context, _ int) ([]model.StaleEnrollment, error) {
	return nil, nil
}

// recordingPublisher captures published completion events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.CompletionEvent
	err    error
}

func (p *recordingPublisher) PublishCompletion(_ context.Context, event model.CompletionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

var errBoom = errors.New("boom")

// courseWithLessons builds a course tree with n lessons spread over modules of
// at most perModule lessons each.
func courseWithLessons(courseID string, n, perModule int) *model.CourseTree {
	tree := &model.CourseTree{Course: model.Course{CourseID: courseID, Title: "Course " + courseID}}
	for i := 0; i < n; i++ {
		if i%perModule == 0 {
			tree.Modules = append(tree.Modules, model.Module{
				ModuleID:   courseID + "-m" + strconv.Itoa(len(tree.Modules)),
				CourseID:   courseID,
				OrderIndex: len(tree.Modules),
			})
		}
		m := &tree.Modules[len(tree.Modules)-1]
		m.Lessons = append(m.Lessons, model.Lesson{
			LessonID:   courseID + "-l" + strconv.Itoa(i),
			ModuleID:   m.ModuleID,
			OrderIndex: len(m.Lessons),
			IsRequired: true,
		})
	}
	return tree
}

type testEnv struct {
	svc         *progressService
	catalog     *fakeCatalog
	lessons     *fakeLessonProgress
	enrollments *fakeEnrollments
	publisher   *recordingPublisher
	clock       *time.Time
}

func newTestEnv(trees ...*model.CourseTree) *testEnv {
	catalog := &fakeCatalog{trees: map[string]*model.CourseTree{}}
	for _, t := range trees {
		catalog.trees[t.Course.CourseID] = t
	}
	lessons := newFakeLessonProgress(catalog)
	enrollments := newFakeEnrollments()
	publisher := &recordingPublisher{}
	trigger := NewCompletionTrigger(publisher, zerolog.Nop())

	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	env := &testEnv{
		catalog:     catalog,
		lessons:     lessons,
		enrollments: enrollments,
		publisher:   publisher,
		clock:       &clock,
	}
	svc := NewProgressService(catalog, lessons, enrollments, trigger,
		NewValidator(), 3, zerolog.Nop()).(*progressService)
	svc.now = func() time.Time { return *env.clock }
	env.svc = svc
	return env
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
