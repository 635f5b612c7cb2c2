package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	verr, ok := err.(*apperr.ValidationError)
	require.True(t, ok, "got %T", err)
	out := make(map[string]string)
	for _, f := range verr.Fields {
		out[f.Field] = f.Error
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		in         interface{}
		wantFields []string
	}{
		{name: "valid reject", in: Reject{Reason: "Thiếu minh chứng"}},
		{name: "blank reason", in: Reject{Reason: "   "}, wantFields: []string{"reason"}},
		{name: "missing reason", in: Reject{}, wantFields: []string{"reason"}},
		{name: "bad decision", in: ReviewAppeal{Decision: "MAYBE", Comment: "x"}, wantFields: []string{"decision"}},
		{
			name: "nested detail",
			in: CreateEvaluation{RubricID: 1, Semester: "HK1", Details: []DetailInput{
				{CriteriaID: 1, Entries: []EntryInput{{SubCriteriaID: "1.x"}}},
			}},
			wantFields: []string{"details[0].entries[0].sub_criteria_id"},
		},
		{name: "no files to suggest on", in: Suggest{CriteriaID: 1}, wantFields: []string{"evidence_file_ids"}},
		{name: "optional sub id", in: Suggest{CriteriaID: 1, EvidenceFileIDs: []int64{3}}},
		{
			name:       "score key",
			in:         Approve{Scores: []CriterionScores{{CriteriaID: 1, Scores: map[string]float64{"one": 1}}}},
			wantFields: []string{"scores[0].scores[one]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			got := fieldErrors(t, err)
			for _, f := range tt.wantFields {
				assert.Contains(t, got, f)
			}
		})
	}
}

func TestRequiredText(t *testing.T) {
	got := fieldErrors(t, Validate(CreateAppeal{Reason: "x"}))
	assert.Equal(t, "this field is required", got["evaluation_id"])
}

func TestDetailEncodesEntries(t *testing.T) {
	five := 5.0
	d := DetailInput{CriteriaID: 2, Note: "n", Entries: []EntryInput{
		{SubCriteriaID: "2.2", Name: "Giấy khen", FileURLs: []string{"/files/evidence/9/a.jpg"}},
		{SubCriteriaID: "2.1", Score: &five},
	}}.Detail()
	assert.Equal(t, int64(2), d.CriterionID)
	assert.Equal(t, "SCORES:2.1=5|EVIDENCE:2.2. Giấy khen: /files/evidence/9/a.jpg", d.Evidence)

	raw := DetailInput{CriteriaID: 3, Evidence: "legacy text"}.Detail()
	assert.Equal(t, "legacy text", raw.Evidence)
}

func TestApproveInput(t *testing.T) {
	in := Approve{Comment: "ok", Scores: []CriterionScores{{CriteriaID: 1, Scores: map[string]float64{"1.1": 2}}}}.Input()
	assert.Equal(t, map[string]float64{"1.1": 2}, in.Scores[1])
	assert.Nil(t, Approve{}.Input().Scores)
}
