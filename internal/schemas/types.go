// Package schemas holds the request and response bodies of the HTTP API.
package schemas

import (
	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	"github.com/Haole1945/drl-platform-sub001/internal/evidence"
	"github.com/Haole1945/drl-platform-sub001/internal/grading"
	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
)

// EntryInput is one sub-criterion of a criterion detail.
type EntryInput struct {
	SubCriteriaID string   `json:"sub_criteria_id" validate:"required,subid"`
	Name          string   `json:"name"`
	FileURLs      []string `json:"file_urls" validate:"dive,startswith=/files/evidence/"`
	Score         *float64 `json:"score"`
}

type DetailInput struct {
	CriteriaID int64        `json:"criteria_id" validate:"required,gt=0"`
	Entries    []EntryInput `json:"entries" validate:"dive"`
	// Evidence is the stored text form; used as is when Entries is empty.
	Evidence string `json:"evidence"`
	Note     string `json:"note" validate:"max=2000"`
}

func (d DetailInput) Detail() evaluation.Detail {
	text := d.Evidence
	if len(d.Entries) > 0 {
		entries := make([]evidence.Entry, 0, len(d.Entries))
		for _, e := range d.Entries {
			entries = append(entries, evidence.Entry{
				SubCriteriaID: e.SubCriteriaID,
				Name:          e.Name,
				FileURLs:      e.FileURLs,
				Score:         e.Score,
			})
		}
		text = evidence.Encode(entries)
	}
	return evaluation.Detail{CriterionID: d.CriteriaID, Evidence: text, Note: d.Note}
}

func Details(in []DetailInput) []evaluation.Detail {
	out := make([]evaluation.Detail, 0, len(in))
	for _, d := range in {
		out = append(out, d.Detail())
	}
	return out
}

type CreateEvaluation struct {
	StudentCode  string        `json:"student_code"`
	RubricID     int64         `json:"rubric_id" validate:"required,gt=0"`
	Semester     string        `json:"semester" validate:"required,notblank"`
	AcademicYear string        `json:"academic_year"`
	Details      []DetailInput `json:"details" validate:"dive"`
	AsDraft      bool          `json:"as_draft"`
}

type UpdateEvaluation struct {
	Details []DetailInput `json:"details" validate:"dive"`
	AsDraft bool          `json:"as_draft"`
}

type CriterionScores struct {
	CriteriaID int64              `json:"criteria_id" validate:"required,gt=0"`
	Scores     map[string]float64 `json:"scores" validate:"dive,keys,subid,endkeys"`
}

type Approve struct {
	Comment string            `json:"comment" validate:"max=2000"`
	Scores  []CriterionScores `json:"scores" validate:"dive"`
}

func (a Approve) Input() evaluation.ApproveInput {
	in := evaluation.ApproveInput{Comment: a.Comment}
	if len(a.Scores) > 0 {
		in.Scores = make(map[int64]map[string]float64, len(a.Scores))
		for _, c := range a.Scores {
			in.Scores[c.CriteriaID] = c.Scores
		}
	}
	return in
}

type Reject struct {
	Reason string `json:"reason" validate:"required,notblank,max=2000"`
}

type Resubmit struct {
	Details []DetailInput `json:"details" validate:"required,min=1,dive"`
	Comment string        `json:"comment" validate:"max=2000"`
}

type Draft struct {
	Scores map[string]float64 `json:"scores" validate:"required"`
}

type CreateAppeal struct {
	EvaluationID int64   `json:"evaluation_id" validate:"required,gt=0"`
	CriteriaIDs  []int64 `json:"criteria_ids" validate:"dive,gt=0"`
	FileIDs      []int64 `json:"file_ids" validate:"dive,gt=0"`
	Reason       string  `json:"reason" validate:"required,notblank,max=2000"`
}

func (c CreateAppeal) Request() appeal.Request {
	return appeal.Request{EvaluationID: c.EvaluationID, CriteriaIDs: c.CriteriaIDs, FileIDs: c.FileIDs, Reason: c.Reason}
}

type ReviewAppeal struct {
	Decision string `json:"decision" validate:"required,oneof=ACCEPT REJECT"`
	Comment  string `json:"comment" validate:"required,notblank,max=2000"`
}

type Suggest struct {
	CriteriaID      int64   `json:"criteria_id" validate:"required,gt=0"`
	SubCriteriaID   string  `json:"sub_criteria_id" validate:"omitempty,subid"`
	EvidenceFileIDs []int64 `json:"evidence_file_ids" validate:"required,min=1,dive,gt=0"`
	MaxScore        float64 `json:"max_score" validate:"gte=0"`
}

type ParseSubCriteria struct {
	Description string  `json:"description" validate:"required"`
	MaxPoints   float64 `json:"max_points" validate:"gte=0"`
}

type SubCriteria struct {
	SubCriteria []rubric.SubCriterion `json:"sub_criteria"`
	Mismatch    *rubric.CapMismatch   `json:"cap_mismatch,omitempty"`
}

type Grade struct {
	Score float64        `json:"score"`
	Grade *grading.Grade `json:"grade"`
}

type CanAppeal struct {
	CanAppeal bool `json:"can_appeal"`
}

type Upload struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type Queued struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}
