package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"courseprogress/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDeadLetters keeps at most one row per event ID, like the unique column.
type fakeDeadLetters struct {
	rows      []*model.DeadLetteredCompletion
	recordErr error
	markErr   error
}

func (r *fakeDeadLetters) Record(_ context.Context, d *model.DeadLetteredCompletion) (bool, error) {
	if r.recordErr != nil {
		return false, r.recordErr
	}
	for _, existing := range r.rows {
		if d.EventID != nil && existing.EventID != nil && *existing.EventID == *d.EventID {
			return false, nil
		}
	}
	cp := *d
	cp.ID = fmt.Sprintf("dl-%d", len(r.rows)+1)
	r.rows = append(r.rows, &cp)
	return true, nil
}

func (r *fakeDeadLetters) ListPending(_ context.Context, limit int) ([]model.DeadLetteredCompletion, error) {
	var out []model.DeadLetteredCompletion
	for _, d := range r.rows {
		if d.Status == model.DeadLetterPending && len(out) < limit {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDeadLetters) MarkReplayed(_ context.Context, id string, at time.Time) error {
	if r.markErr != nil {
		return r.markErr
	}
	for _, d := range r.rows {
		if d.ID == id {
			d.Status = model.DeadLetterReplayed
			d.ReplayedAt = &at
		}
	}
	return nil
}

type fakeSink struct {
	rows map[string]*model.Notification
	err  error
}

func (s *fakeSink) Create(_ context.Context, n *model.Notification) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.rows == nil {
		s.rows = map[string]*model.Notification{}
	}
	if _, ok := s.rows[n.EventID]; ok {
		return false, nil
	}
	s.rows[n.EventID] = n
	return true, nil
}

func completionPayload(eventID string) []byte {
	return []byte(`{"event_id":"` + eventID + `","type":"COURSE_COMPLETION","student_id":"s1","course_id":"c1","course_title":"Go Basics","completed_at":"2026-03-01T10:00:00Z"}`)
}

func newDeadLetterEnv() (*deadLetterService, *fakeDeadLetters, *fakeSink) {
	repo := &fakeDeadLetters{}
	sink := &fakeSink{}
	svc := NewDeadLetterService(repo, sink, zerolog.Nop()).(*deadLetterService)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return svc, repo, sink
}

func TestRecordCompletionEvent(t *testing.T) {
	svc, repo, _ := newDeadLetterEnv()

	err := svc.Record(context.Background(), model.UndeliveredCompletion{
		Source:           "projects/p/subscriptions/course-completion-sub",
		MessageID:        "m1",
		DeliveryAttempts: 5,
		Data:             completionPayload("e1"),
		Attributes:       map[string]string{"event_id": "e1"},
	})
	require.NoError(t, err)

	require.Len(t, repo.rows, 1)
	d := repo.rows[0]
	assert.Equal(t, model.DeadLetterPending, d.Status)
	require.NotNil(t, d.EventID)
	assert.Equal(t, "e1", *d.EventID)
	assert.Equal(t, "s1", *d.StudentID)
	assert.Equal(t, "c1", *d.CourseID)
	assert.Equal(t, 5, d.DeliveryAttempts)
	assert.Equal(t, "projects/p/subscriptions/course-completion-sub", d.Source)
	assert.JSONEq(t, `{"event_id":"e1"}`, string(d.Attributes))
}

func TestRecordDedupesOnEventID(t *testing.T) {
	svc, repo, _ := newDeadLetterEnv()
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, model.UndeliveredCompletion{Source: "completion_queue", MessageID: "1", Data: completionPayload("e1")}))
	require.NoError(t, svc.Record(ctx, model.UndeliveredCompletion{Source: "completion_queue", MessageID: "2", Data: completionPayload("e1")}))

	assert.Len(t, repo.rows, 1)
}

func TestRecordKeepsMalformedMessages(t *testing.T) {
	svc, repo, _ := newDeadLetterEnv()
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, model.UndeliveredCompletion{Source: "completion_queue", MessageID: "1", Data: []byte("oops")}))
	require.NoError(t, svc.Record(ctx, model.UndeliveredCompletion{Source: "completion_queue", MessageID: "2", Data: []byte(`{"type":"COURSE_COMPLETION"}`)}))

	require.Len(t, repo.rows, 2)
	assert.Equal(t, model.DeadLetterMalformed, repo.rows[0].Status)
	assert.Nil(t, repo.rows[0].EventID)
	assert.JSONEq(t, `{"raw":"oops"}`, string(repo.rows[0].Payload))
	assert.JSONEq(t, `{"type":"COURSE_COMPLETION"}`, string(repo.rows[1].Payload))
	assert.Empty(t, repo.rows[1].Attributes)
}

func TestRecordRepoError(t *testing.T) {
	svc, repo, _ := newDeadLetterEnv()
	repo.recordErr = errBoom

	err := svc.Record(context.Background(), model.UndeliveredCompletion{Data: completionPayload("e1")})
	assert.ErrorIs(t, err, errBoom)
}

func TestReplayWritesSinkAndMarksRows(t *testing.T) {
	svc, repo, sink := newDeadLetterEnv()
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, model.UndeliveredCompletion{Source: "q", MessageID: "1", Data: completionPayload("e1")}))
	require.NoError(t, svc.Record(ctx, model.UndeliveredCompletion{Source: "q", MessageID: "2", Data: completionPayload("e2")}))
	require.NoError(t, svc.Record(ctx, model.UndeliveredCompletion{Source: "q", MessageID: "3", Data: []byte("oops")}))
	// e2 reached the sink through a late redelivery.
	sink.rows = map[string]*model.Notification{"e2": {EventID: "e2"}}

	res, err := svc.Replay(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, ReplayResult{Replayed: 1, AlreadyDelivered: 1}, res)
	require.Contains(t, sink.rows, "e1")
	assert.Equal(t, "s1", sink.rows["e1"].UserID)
	assert.Equal(t, "Course completed: Go Basics", sink.rows["e1"].Title)
	assert.Equal(t, model.DeadLetterReplayed, repo.rows[0].Status)
	require.NotNil(t, repo.rows[0].ReplayedAt)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), *repo.rows[0].ReplayedAt)
	assert.Equal(t, model.DeadLetterMalformed, repo.rows[2].Status)

	res, err = svc.Replay(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ReplayResult{}, res)
}

func TestReplayLeavesRowsPendingOnSinkFailure(t *testing.T) {
	svc, repo, sink := newDeadLetterEnv()
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, model.UndeliveredCompletion{Source: "q", MessageID: "1", Data: completionPayload("e1")}))
	sink.err = errBoom

	res, err := svc.Replay(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, ReplayResult{Failed: 1}, res)
	assert.Equal(t, model.DeadLetterPending, repo.rows[0].Status)
}
