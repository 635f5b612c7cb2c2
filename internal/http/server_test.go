package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/auth"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	"github.com/Haole1945/drl-platform-sub001/internal/evidence"
	"github.com/Haole1945/drl-platform-sub001/internal/logging"
	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
)

const testToken = "gateway-secret"

type fakeEvaluations struct {
	ev       *evaluation.Evaluation
	err      error
	actor    auth.Actor
	input    evaluation.CreateInput
	scores   map[string]float64
	level    evaluation.Level
	code     string
	semester string
	deleted  int64
}

func (f *fakeEvaluations) result(actor auth.Actor) (*evaluation.Evaluation, error) {
	f.actor = actor
	return f.ev, f.err
}

func (f *fakeEvaluations) Create(_ context.Context, actor auth.Actor, in evaluation.CreateInput) (*evaluation.Evaluation, error) {
	f.input = in
	return f.result(actor)
}
func (f *fakeEvaluations) Get(_ context.Context, actor auth.Actor, _ int64) (*evaluation.Evaluation, error) {
	return f.result(actor)
}
func (f *fakeEvaluations) Update(_ context.Context, actor auth.Actor, _ int64, _ []evaluation.Detail, _ bool) (*evaluation.Evaluation, error) {
	return f.result(actor)
}
func (f *fakeEvaluations) Submit(_ context.Context, actor auth.Actor, _ int64) (*evaluation.Evaluation, error) {
	return f.result(actor)
}
func (f *fakeEvaluations) Approve(_ context.Context, actor auth.Actor, _ int64, _ evaluation.ApproveInput) (*evaluation.Evaluation, error) {
	return f.result(actor)
}
func (f *fakeEvaluations) Reject(_ context.Context, actor auth.Actor, _ int64, _ string) (*evaluation.Evaluation, error) {
	return f.result(actor)
}
func (f *fakeEvaluations) Resubmit(_ context.Context, actor auth.Actor, _ int64, _ []evaluation.Detail, _ string) (*evaluation.Evaluation, error) {
	return f.result(actor)
}
func (f *fakeEvaluations) History(_ context.Context, actor auth.Actor, _ int64) ([]evaluation.Event, error) {
	f.actor = actor
	return nil, f.err
}
func (f *fakeEvaluations) WorkingScores(_ context.Context, actor auth.Actor, _ int64, _ string) (*evaluation.WorkingScores, error) {
	f.actor = actor
	return &evaluation.WorkingScores{Level: evaluation.LevelClass}, f.err
}
func (f *fakeEvaluations) SaveDraft(_ context.Context, actor auth.Actor, _ int64, _ string, scores map[string]float64) error {
	f.actor = actor
	f.scores = scores
	return f.err
}
func (f *fakeEvaluations) ClearDraft(_ context.Context, actor auth.Actor, _ int64, _ string) error {
	f.actor = actor
	return f.err
}
func (f *fakeEvaluations) Delete(_ context.Context, actor auth.Actor, id int64) error {
	f.actor = actor
	if f.err == nil {
		f.deleted = id
	}
	return f.err
}
func (f *fakeEvaluations) Pending(_ context.Context, actor auth.Actor, level evaluation.Level) ([]evaluation.Evaluation, error) {
	f.actor = actor
	f.level = level
	if f.err != nil {
		return nil, f.err
	}
	return []evaluation.Evaluation{*f.ev}, nil
}
func (f *fakeEvaluations) ByStudent(_ context.Context, actor auth.Actor, code, semester string) ([]evaluation.Evaluation, error) {
	f.actor = actor
	f.code, f.semester = code, semester
	return nil, f.err
}

type fakeAppeals struct {
	a   *appeal.Appeal
	can bool
	err error
}

func (f *fakeAppeals) Create(context.Context, auth.Actor, appeal.Request) (*appeal.Appeal, error) {
	return f.a, f.err
}
func (f *fakeAppeals) Get(context.Context, auth.Actor, int64) (*appeal.Appeal, error) { return f.a, f.err }
func (f *fakeAppeals) CanAppeal(context.Context, auth.Actor, int64) (bool, error)     { return f.can, f.err }
func (f *fakeAppeals) StartReview(context.Context, auth.Actor, int64) (*appeal.Appeal, error) {
	return f.a, f.err
}
func (f *fakeAppeals) Review(context.Context, auth.Actor, int64, appeal.Decision, string) (*appeal.Appeal, error) {
	return f.a, f.err
}
func (f *fakeAppeals) ListPending(context.Context, auth.Actor) ([]appeal.Appeal, error) {
	return nil, f.err
}
func (f *fakeAppeals) ListByStudent(context.Context, auth.Actor, string) ([]appeal.Appeal, error) {
	return nil, f.err
}
func (f *fakeAppeals) CountByStudent(context.Context, auth.Actor, string) (int, error) { return 2, f.err }

type fakeCriteria map[int64]rubric.Criterion

func (f fakeCriteria) Criterion(_ context.Context, id int64) (*rubric.Criterion, error) {
	c, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("criterion", id)
	}
	return &c, nil
}

type fakeQueue struct{ got []advisor.Request }

func (q *fakeQueue) Suggest(_ context.Context, req advisor.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	q.got = append(q.got, req)
	return "task-9", nil
}

type memFiles struct{ files map[int64]*db.EvidenceFile }

func (m *memFiles) Create(_ context.Context, f *db.EvidenceFile) error {
	f.ID = int64(len(m.files) + 1)
	m.files[f.ID] = f
	return nil
}

func (m *memFiles) Get(_ context.Context, id int64) (*db.EvidenceFile, error) {
	f, ok := m.files[id]
	if !ok {
		return nil, apperr.NotFound("evidence file", id)
	}
	return f, nil
}

type memBlobs map[string][]byte

func (b memBlobs) PutEvidence(_ context.Context, name, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	ref := "s3://evidence/evidence/x/" + name
	b[ref] = data
	return ref, nil
}

func (b memBlobs) Open(_ context.Context, ref string) (io.ReadCloser, string, error) {
	data, ok := b[ref]
	if !ok {
		return nil, "", errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), "", nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type fixture struct {
	evals *fakeEvaluations
	queue *fakeQueue
	files *memFiles
	blobs memBlobs
	h     http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		evals: &fakeEvaluations{ev: &evaluation.Evaluation{ID: 1, RubricID: 1, StudentCode: "N21DCCN001"}},
		queue: &fakeQueue{},
		files: &memFiles{files: map[int64]*db.EvidenceFile{}},
		blobs: memBlobs{},
	}
	srv := NewServer(Deps{
		APIToken:       testToken,
		UploadMaxBytes: 1 << 20,
		Evaluations:    f.evals,
		Appeals:        &fakeAppeals{can: true},
		Criteria: fakeCriteria{
			10: {ID: 10, RubricID: 1, MaxPoints: 20, Description: "Bao gồm:\n1.1. Thái độ: 3 điểm\n1.2. Kết quả: 10 điểm"},
			99: {ID: 99, RubricID: 2, MaxPoints: 5},
		},
		Files:  f.files,
		Blobs:  f.blobs,
		Queue:  f.queue,
		Health: okPinger{},
		Log:    logging.Discard(),
	})
	f.h = srv.Handler
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("X-User-Id", "7")
	req.Header.Set("X-User-Name", "Nguyễn Văn A")
	req.Header.Set("X-User-Roles", "ROLE_STUDENT")
	req.Header.Set("X-Student-Code", "N21DCCN001")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/healthz", nil, map[string]string{"Authorization": ""})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{name: "ok", want: http.StatusOK},
		{name: "no token", headers: map[string]string{"Authorization": ""}, want: http.StatusUnauthorized},
		{name: "wrong token", headers: map[string]string{"Authorization": "Bearer nope"}, want: http.StatusUnauthorized},
		{name: "no identity", headers: map[string]string{"X-User-Id": ""}, want: http.StatusUnauthorized},
		{name: "bad identity", headers: map[string]string{"X-User-Id": "abc"}, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec := f.do(t, http.MethodGet, "/evaluations/1", nil, tt.headers)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIdentityReachesService(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/evaluations/1/submit", nil, map[string]string{"X-User-Roles": "ROLE_STUDENT, class_monitor"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), f.evals.actor.ID)
	assert.Equal(t, "N21DCCN001", f.evals.actor.StudentCode)
	assert.Equal(t, []auth.Role{auth.Student, auth.ClassMonitor}, f.evals.actor.Roles)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: apperr.Required("reason"), want: http.StatusBadRequest},
		{name: "forbidden", err: errors.Wrap(apperr.Forbidden("not yours"), "submitting"), want: http.StatusForbidden},
		{name: "not found", err: apperr.NotFound("evaluation", 1), want: http.StatusNotFound},
		{name: "transition", err: apperr.Transition("evaluation", "DRAFT", "approve", "not submitted"), want: http.StatusConflict},
		{name: "other", err: errors.New("db gone"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.evals.err = tt.err
			rec := f.do(t, http.MethodPost, "/evaluations/1/submit", nil, nil)
			assert.Equal(t, tt.want, rec.Code)
			var body errResp
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body.Error)
			}
		})
	}
}

func TestCreateEvaluation(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/evaluations", `{"semester":" "}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	fields := map[string]string{}
	for _, fe := range body.Fields {
		fields[fe.Field] = fe.Error
	}
	assert.Contains(t, fields, "rubric_id")
	assert.Contains(t, fields, "semester")

	rec = f.do(t, http.MethodPost, "/evaluations", map[string]interface{}{
		"rubric_id": 1,
		"semester":  "2024-2025-HK1",
		"details": []map[string]interface{}{{
			"criteria_id": 10,
			"entries":     []map[string]interface{}{{"sub_criteria_id": "1.1", "score": 3, "file_urls": []string{"/files/evidence/4/a.jpg"}}},
		}},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.evals.input.Details, 1)
	entries := evidence.Decode(f.evals.input.Details[0].Evidence)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Score)
	assert.Equal(t, 3.0, *entries[0].Score)
	assert.Equal(t, []string{"/files/evidence/4/a.jpg"}, entries[0].FileURLs)

	rec = f.do(t, http.MethodPost, "/evaluations", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrafts(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPut, "/evaluations/1/drafts/CLASS_MONITOR", map[string]interface{}{"scores": map[string]float64{"1.1": 2}}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, map[string]float64{"1.1": 2}, f.evals.scores)

	rec = f.do(t, http.MethodDelete, "/evaluations/1/drafts/CLASS_MONITOR", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/evaluations/1/working-scores?role=CLASS_MONITOR", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/evaluations/x/drafts/CLASS_MONITOR", map[string]interface{}{"scores": map[string]float64{}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGrades(t *testing.T) {
	tests := []struct {
		query     string
		wantCode  int
		wantLevel string
	}{
		{query: "score=85", wantCode: http.StatusOK, wantLevel: "GOOD"},
		{query: "score=90", wantCode: http.StatusOK, wantLevel: "EXCELLENT"},
		{query: "score=120", wantCode: http.StatusOK, wantLevel: "EXCELLENT"},
		{query: "score=-5", wantCode: http.StatusOK},
		{query: "score=abc", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := newFixture()
			rec := f.do(t, http.MethodGet, "/grades?"+tt.query, nil, map[string]string{"X-User-Id": ""})
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var body struct {
				Grade *struct {
					Level string `json:"level"`
				} `json:"grade"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantLevel == "" {
				assert.Nil(t, body.Grade)
				return
			}
			require.NotNil(t, body.Grade)
			assert.Equal(t, tt.wantLevel, body.Grade.Level)
		})
	}
}

func TestSubCriteria(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/rubrics/sub-criteria/parse", map[string]interface{}{
		"description": "Bao gồm:\n1.1. Thái độ: 3 điểm\n1.2. Kết quả: 10 điểm",
		"max_points":  10,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		SubCriteria []rubric.SubCriterion `json:"sub_criteria"`
		Mismatch    *rubric.CapMismatch   `json:"cap_mismatch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.SubCriteria, 2)
	require.NotNil(t, body.Mismatch)
	assert.Equal(t, 13.0, body.Mismatch.SubTotal)

	rec = f.do(t, http.MethodGet, "/criteria/10/sub-criteria", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body.Mismatch = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1.2", body.SubCriteria[1].ID)
	assert.Nil(t, body.Mismatch)

	rec = f.do(t, http.MethodGet, "/criteria/5/sub-criteria", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestSuggestion(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/evaluations/1/ai-suggestions", map[string]interface{}{
		"criteria_id": 10, "sub_criteria_id": "1.1", "evidence_file_ids": []int64{4},
	}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.queue.got, 1)
	assert.Equal(t, 3.0, f.queue.got[0].MaxScore)
	assert.Len(t, f.queue.got[0].SubCriteria, 2)

	rec = f.do(t, http.MethodPost, "/evaluations/1/ai-suggestions", map[string]interface{}{
		"criteria_id": 99, "evidence_file_ids": []int64{4},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/evaluations/1/ai-suggestions", map[string]interface{}{"criteria_id": 10}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCanAppeal(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/evaluations/1/can-appeal", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"can_appeal":true}`, rec.Body.String())
}

func TestAppeals(t *testing.T) {
	f := newFixture()
	f.h = NewServer(Deps{
		APIToken:    testToken,
		Evaluations: f.evals,
		Appeals:     &fakeAppeals{a: &appeal.Appeal{ID: 3, Status: appeal.Pending}},
		Log:         logging.Discard(),
	}).Handler

	rec := f.do(t, http.MethodPost, "/appeals", map[string]interface{}{"evaluation_id": 1, "reason": "chấm thiếu"}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/appeals", map[string]interface{}{"evaluation_id": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/appeals/3/review", map[string]interface{}{"decision": "MAYBE", "comment": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/appeals/3/review", map[string]interface{}{"decision": "ACCEPT", "comment": "đúng"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/appeals/pending", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/students/N21DCCN001/appeals/count", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())
}

func TestEvidenceUploadAndDownload(t *testing.T) {
	f := newFixture()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "giay khen.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("jpeg bytes"))
	require.NoError(t, mw.WriteField("evaluation_id", "1"))
	require.NoError(t, mw.WriteField("sub_criteria_id", "1.1"))
	require.NoError(t, mw.Close())

	rec := f.do(t, http.MethodPost, "/files/evidence", buf.String(), map[string]string{"Content-Type": mw.FormDataContentType()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var up struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.Equal(t, int64(1), up.ID)
	assert.Equal(t, "/files/evidence/1/giay%20khen.jpg", up.URL)
	assert.Equal(t, "1.1", f.files.files[1].SubCriteriaID)
	assert.Equal(t, int64(7), f.files.files[1].UploadedBy)

	rec = f.do(t, http.MethodGet, up.URL, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg bytes", rec.Body.String())

	f.evals.err = apperr.Forbidden("not yours")
	rec = f.do(t, http.MethodGet, up.URL, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/files/evidence", "", map[string]string{"Content-Type": "text/plain"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadUnlinkedEvidence(t *testing.T) {
	f := newFixture()
	f.files.files[1] = &db.EvidenceFile{ID: 1, FileName: "a.pdf", ObjectRef: "s3://evidence/a", UploadedBy: 8}
	f.blobs["s3://evidence/a"] = []byte("pdf")

	rec := f.do(t, http.MethodGet, "/files/evidence/1/a.pdf", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/files/evidence/1/a.pdf", nil, map[string]string{"X-User-Id": "8"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
}

func TestEvaluationLists(t *testing.T) {
	f := newFixture()
	monitor := map[string]string{"X-User-Roles": "CLASS_MONITOR", "X-Student-Code": "N21DCCN002"}

	rec := f.do(t, http.MethodGet, "/evaluations/pending?level=class", nil, monitor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, evaluation.LevelClass, f.evals.level)
	var pending []evaluation.Evaluation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].ID)

	rec = f.do(t, http.MethodGet, "/evaluations/pending", nil, monitor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, evaluation.Level(""), f.evals.level)

	rec = f.do(t, http.MethodGet, "/students/N21DCCN001/evaluations?semester=2024-2025-HK1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, "N21DCCN001", f.evals.code)
	assert.Equal(t, "2024-2025-HK1", f.evals.semester)

	f.evals.err = apperr.Forbidden("no")
	rec = f.do(t, http.MethodGet, "/evaluations/pending?level=FACULTY", nil, monitor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteEvaluation(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodDelete, "/evaluations/3", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(3), f.evals.deleted)

	f.evals.err = apperr.Transition("evaluation", "SUBMITTED", "delete", "only drafts can be deleted")
	rec = f.do(t, http.MethodDelete, "/evaluations/4", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
