package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	"github.com/Haole1945/drl-platform-sub001/internal/logging"
)

type captureClient struct {
	tasks []*asynq.Task
	err   error
}

func (c *captureClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

type stubAdvisor struct {
	sug *advisor.Suggestion
	err error
}

func (a stubAdvisor) Suggest(context.Context, advisor.Request) (*advisor.Suggestion, error) {
	return a.sug, a.err
}

type suggestionSink struct{ got []*advisor.Suggestion }

func (s *suggestionSink) Create(_ context.Context, sug *advisor.Suggestion) error {
	s.got = append(s.got, sug)
	return nil
}

type noticeSink struct{ got []db.Notification }

func (s *noticeSink) Create(_ context.Context, n *db.Notification) error {
	s.got = append(s.got, *n)
	return nil
}

func TestEnqueuer(t *testing.T) {
	c := &captureClient{}
	e := NewEnqueuer(c)
	ctx := context.Background()

	id, err := e.Suggest(ctx, advisor.Request{EvaluationID: 1, CriteriaID: 2, EvidenceFileIDs: []int64{5}})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	require.NoError(t, e.Notify(ctx, evaluation.Event{EvaluationID: 1, Action: evaluation.ActionSubmit}))
	require.NoError(t, e.NotifyAppeal(ctx, appeal.Event{AppealID: 3, Action: appeal.ActionOpen}))

	require.Len(t, c.tasks, 3)
	assert.Equal(t, TypeSuggest, c.tasks[0].Type())
	assert.Equal(t, TypeEvaluationEvent, c.tasks[1].Type())
	assert.Equal(t, TypeAppealEvent, c.tasks[2].Type())

	var req advisor.Request
	require.NoError(t, json.Unmarshal(c.tasks[0].Payload(), &req))
	assert.Equal(t, []int64{5}, req.EvidenceFileIDs)
}

func TestEnqueuerRejectsRequestWithoutFiles(t *testing.T) {
	c := &captureClient{}
	_, err := NewEnqueuer(c).Suggest(context.Background(), advisor.Request{EvaluationID: 1, CriteriaID: 2})
	assert.Error(t, err)
	assert.Empty(t, c.tasks)
}

func TestEnqueuerClientError(t *testing.T) {
	e := NewEnqueuer(&captureClient{err: errors.New("redis down")})
	err := e.Notify(context.Background(), evaluation.Event{})
	assert.ErrorContains(t, err, "redis down")
}

func payload(t *testing.T, v interface{}) []byte {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleSuggest(t *testing.T) {
	req := advisor.Request{EvaluationID: 1, CriteriaID: 2, EvidenceFileIDs: []int64{5}}
	tests := []struct {
		name      string
		advisor   stubAdvisor
		body      []byte
		wantErr   bool
		skipRetry bool
		stored    int
	}{
		{
			name:    "stored",
			advisor: stubAdvisor{sug: &advisor.Suggestion{EvaluationID: 1, SuggestedScore: 8, Status: advisor.Acceptable}},
			body:    payload(t, req),
			stored:  1,
		},
		{
			name:      "advisor failure is not retried",
			advisor:   stubAdvisor{err: &advisor.Error{Reason: "empty reply"}},
			body:      payload(t, req),
			wantErr:   true,
			skipRetry: true,
		},
		{
			name:    "other failure is retried",
			advisor: stubAdvisor{err: errors.New("connection reset")},
			body:    payload(t, req),
			wantErr: true,
		},
		{
			name:      "bad payload",
			body:      []byte("{"),
			wantErr:   true,
			skipRetry: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &suggestionSink{}
			s := &Server{Advisor: tt.advisor, Suggestions: sink, Log: logging.Discard()}
			err := s.handleSuggest(context.Background(), asynq.NewTask(TypeSuggest, tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("handleSuggest() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
			assert.Len(t, sink.got, tt.stored)
		})
	}
}

func TestHandleEvents(t *testing.T) {
	sink := &noticeSink{}
	s := &Server{Notifications: sink, Log: logging.Discard()}
	ctx := context.Background()

	ev := evaluation.Event{
		EvaluationID: 7, StudentCode: "N21DCCN001", Semester: "2024-2025-HK1",
		Action: evaluation.ActionReject, Level: evaluation.LevelClass, Comment: "thiếu minh chứng",
	}
	require.NoError(t, s.handleEvaluationEvent(ctx, asynq.NewTask(TypeEvaluationEvent, payload(t, ev))))

	ap := appeal.Event{AppealID: 3, EvaluationID: 7, StudentCode: "N21DCCN001", Action: appeal.ActionAccept}
	require.NoError(t, s.handleAppealEvent(ctx, asynq.NewTask(TypeAppealEvent, payload(t, ap))))

	require.Len(t, sink.got, 2)
	assert.Equal(t, "N21DCCN001", sink.got[0].Recipient)
	assert.Equal(t, "EVALUATION_REJECTED", sink.got[0].Kind)
	assert.Contains(t, sink.got[0].Message, "thiếu minh chứng")
	assert.Contains(t, sink.got[0].Message, "lớp")
	assert.Equal(t, int64(7), *sink.got[0].EvaluationID)

	assert.Equal(t, "APPEAL_ACCEPTED", sink.got[1].Kind)
	assert.Equal(t, int64(3), *sink.got[1].AppealID)
}

type fakeFiles []db.EvidenceFile

func (f fakeFiles) List(context.Context, []int64) ([]db.EvidenceFile, error) { return f, nil }

type fakeBlobs map[string][]byte

func (b fakeBlobs) Read(_ context.Context, ref string, _ int64) ([]byte, string, error) {
	data, ok := b[ref]
	if !ok {
		return nil, "", errors.New("no such object")
	}
	return data, "image/png", nil
}

func TestEvidenceLoader(t *testing.T) {
	l := &EvidenceLoader{
		Files: fakeFiles{
			{ID: 1, FileName: "a.jpg", ObjectRef: "s3://evidence/a", ContentType: "image/jpeg", SubCriteriaID: "1.1"},
			{ID: 2, FileName: "b.png", ObjectRef: "s3://evidence/b"},
		},
		Blobs: fakeBlobs{"s3://evidence/a": []byte("A"), "s3://evidence/b": []byte("B")},
		Limit: 1 << 20,
	}
	files, err := l.Load(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "image/jpeg", files[0].ContentType)
	assert.Equal(t, "1.1", files[0].SubCriteriaID)
	assert.Equal(t, "image/png", files[1].ContentType)
	assert.Equal(t, []byte("B"), files[1].Data)

	l.Blobs = fakeBlobs{}
	_, err = l.Load(context.Background(), []int64{1})
	assert.Error(t, err)
}

type stubPeriods []db.Period

func (p stubPeriods) Active(context.Context) ([]db.Period, error) { return p, nil }

type stubTargets map[string][]string

func (t stubTargets) StudentsToRemind(_ context.Context, semester string) ([]string, error) {
	return t[semester], nil
}

// onceSink keeps one reminder per recipient, period and day count.
type onceSink struct{ got []db.Notification }

func (s *onceSink) CreateOnce(_ context.Context, n *db.Notification) (bool, error) {
	for _, g := range s.got {
		if g.Recipient == n.Recipient && *g.PeriodID == *n.PeriodID && *g.DaysLeft == *n.DaysLeft {
			return false, nil
		}
	}
	s.got = append(s.got, *n)
	return true, nil
}

func TestReminders(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	day := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	periods := stubPeriods{
		{ID: 1, Semester: "HK1", EndDate: day(2025, 1, 22)},
		{ID: 2, Semester: "HK2", EndDate: day(2025, 1, 18)},
		{ID: 3, Semester: "HK3", EndDate: day(2025, 1, 20)},
		{ID: 4, Semester: "HK4"},
	}
	sink := &onceSink{}
	r := &Reminders{
		Periods:  periods,
		Students: stubTargets{"HK1": {"B21DCCN001", "B21DCCN002"}, "HK2": {"B21DCCN003"}, "HK3": {"B21DCCN004"}},
		Store:    sink,
		Location: loc,
		// 23:30 UTC on the 14th is already the 15th in Hanoi
		Now: func() time.Time { return time.Date(2025, 1, 14, 23, 30, 0, 0, time.UTC) },
	}
	ctx := context.Background()

	sent, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	require.Len(t, sink.got, 3)
	assert.Equal(t, "B21DCCN001", sink.got[0].Recipient)
	assert.Equal(t, 7, *sink.got[0].DaysLeft)
	assert.Equal(t, "PERIOD_REMINDER", sink.got[0].Kind)
	assert.Contains(t, sink.got[0].Title, "7 ngày")
	assert.Contains(t, sink.got[0].Message, "22/01/2025")
	assert.Equal(t, "B21DCCN003", sink.got[2].Recipient)
	assert.Equal(t, 3, *sink.got[2].DaysLeft)

	sent, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "reminders are sent once")
}

func TestPeriodReminderTask(t *testing.T) {
	sink := &onceSink{}
	end := time.Date(2025, 1, 18, 0, 0, 0, 0, time.UTC)
	s := &Server{
		Reminders: &Reminders{
			Periods:  stubPeriods{{ID: 2, Semester: "HK2", EndDate: &end}},
			Students: stubTargets{"HK2": {"B21DCCN003"}},
			Store:    sink,
			Location: time.UTC,
			Now:      func() time.Time { return time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC) },
		},
		Log: logging.Discard(),
	}
	err := s.mux().ProcessTask(context.Background(), asynq.NewTask(TypePeriodReminder, nil))
	require.NoError(t, err)
	assert.Len(t, sink.got, 1)
}
