package db

import (
	"encoding/json"
	"time"

	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
)

type evaluationRow struct {
	ID                 int64      `db:"id"`
	StudentCode        string     `db:"student_code"`
	RubricID           int64      `db:"rubric_id"`
	Semester           string     `db:"semester"`
	AcademicYear       string     `db:"academic_year"`
	Status             string     `db:"status"`
	ResubmissionCount  int        `db:"resubmission_count"`
	LastRejectionLevel string     `db:"last_rejection_level"`
	RejectionReason    string     `db:"rejection_reason"`
	CreatedBy          int64      `db:"created_by"`
	SubmittedAt        *time.Time `db:"submitted_at"`
	ApprovedAt         *time.Time `db:"approved_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

type detailRow struct {
	EvaluationID int64  `db:"evaluation_id"`
	CriteriaID   int64  `db:"criteria_id"`
	Evidence     string `db:"evidence"`
	Note         string `db:"note"`
}

type levelScoreRow struct {
	EvaluationID int64  `db:"evaluation_id"`
	CriteriaID   int64  `db:"criteria_id"`
	Level        string `db:"level"`
	Scores       string `db:"scores"`
}

type approvalRow struct {
	EvaluationID int64     `db:"evaluation_id"`
	Level        string    `db:"level"`
	ApproverID   int64     `db:"approver_id"`
	ApproverName string    `db:"approver_name"`
	Comment      string    `db:"comment"`
	CreatedAt    time.Time `db:"created_at"`
}

type historyRow struct {
	ID           int64     `db:"id"`
	EvaluationID int64     `db:"evaluation_id"`
	Action       string    `db:"action"`
	FromStatus   string    `db:"from_status"`
	ToStatus     string    `db:"to_status"`
	Level        string    `db:"level"`
	ActorID      int64     `db:"actor_id"`
	ActorName    string    `db:"actor_name"`
	Comment      string    `db:"comment"`
	CreatedAt    time.Time `db:"created_at"`
}

// evaluationParts is an evaluation split into its table rows.
type evaluationParts struct {
	row       evaluationRow
	details   []detailRow
	scores    []levelScoreRow
	approvals []approvalRow
}

func split(ev *evaluation.Evaluation) evaluationParts {
	p := evaluationParts{row: evaluationRow{
		ID:                 ev.ID,
		StudentCode:        ev.StudentCode,
		RubricID:           ev.RubricID,
		Semester:           ev.Semester,
		AcademicYear:       ev.AcademicYear,
		Status:             string(ev.Status),
		ResubmissionCount:  ev.ResubmissionCount,
		LastRejectionLevel: string(ev.LastRejectionLevel),
		RejectionReason:    ev.RejectionReason,
		CreatedBy:          ev.CreatedBy,
		SubmittedAt:        ev.SubmittedAt,
		ApprovedAt:         ev.ApprovedAt,
		CreatedAt:          ev.CreatedAt,
		UpdatedAt:          ev.UpdatedAt,
	}}
	for _, d := range ev.Details {
		p.details = append(p.details, detailRow{EvaluationID: ev.ID, CriteriaID: d.CriterionID, Evidence: d.Evidence, Note: d.Note})
		for _, l := range evaluation.Levels {
			if s, ok := d.Scores[l]; ok {
				p.scores = append(p.scores, levelScoreRow{EvaluationID: ev.ID, CriteriaID: d.CriterionID, Level: string(l), Scores: s})
			}
		}
	}
	for _, a := range ev.Approvals {
		p.approvals = append(p.approvals, approvalRow{
			EvaluationID: ev.ID,
			Level:        string(a.Level),
			ApproverID:   a.ApproverID,
			ApproverName: a.ApproverName,
			Comment:      a.Comment,
			CreatedAt:    a.At,
		})
	}
	return p
}

func (p evaluationParts) join() *evaluation.Evaluation {
	r := p.row
	ev := &evaluation.Evaluation{
		ID:                 r.ID,
		StudentCode:        r.StudentCode,
		RubricID:           r.RubricID,
		Semester:           r.Semester,
		AcademicYear:       r.AcademicYear,
		Status:             evaluation.Status(r.Status),
		ResubmissionCount:  r.ResubmissionCount,
		LastRejectionLevel: evaluation.Level(r.LastRejectionLevel),
		RejectionReason:    r.RejectionReason,
		CreatedBy:          r.CreatedBy,
		SubmittedAt:        r.SubmittedAt,
		ApprovedAt:         r.ApprovedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	index := make(map[int64]int, len(p.details))
	for _, d := range p.details {
		index[d.CriteriaID] = len(ev.Details)
		ev.Details = append(ev.Details, evaluation.Detail{CriterionID: d.CriteriaID, Evidence: d.Evidence, Note: d.Note})
	}
	for _, s := range p.scores {
		i, ok := index[s.CriteriaID]
		if !ok {
			continue
		}
		if ev.Details[i].Scores == nil {
			ev.Details[i].Scores = make(map[evaluation.Level]string)
		}
		ev.Details[i].Scores[evaluation.Level(s.Level)] = s.Scores
	}
	for _, a := range p.approvals {
		ev.Approvals = append(ev.Approvals, evaluation.Approval{
			Level:        evaluation.Level(a.Level),
			ApproverID:   a.ApproverID,
			ApproverName: a.ApproverName,
			Comment:      a.Comment,
			At:           a.CreatedAt,
		})
	}
	return ev
}

func historyFromEvent(e evaluation.Event) historyRow {
	return historyRow{
		EvaluationID: e.EvaluationID,
		Action:       string(e.Action),
		FromStatus:   string(e.From),
		ToStatus:     string(e.To),
		Level:        string(e.Level),
		ActorID:      e.ActorID,
		ActorName:    e.ActorName,
		Comment:      e.Comment,
		CreatedAt:    e.At,
	}
}

func (h historyRow) event(studentCode, semester string) evaluation.Event {
	return evaluation.Event{
		EvaluationID: h.EvaluationID,
		StudentCode:  studentCode,
		Semester:     semester,
		Action:       evaluation.Action(h.Action),
		From:         evaluation.Status(h.FromStatus),
		To:           evaluation.Status(h.ToStatus),
		Level:        evaluation.Level(h.Level),
		ActorID:      h.ActorID,
		ActorName:    h.ActorName,
		Comment:      h.Comment,
		At:           h.CreatedAt,
	}
}

type appealRow struct {
	appeal.Appeal
	CriteriaJSON []byte `db:"criteria_ids"`
	FilesJSON    []byte `db:"file_ids"`
}

func appealToRow(a *appeal.Appeal) (appealRow, error) {
	r := appealRow{Appeal: *a}
	var err error
	if r.CriteriaJSON, err = json.Marshal(nonNil(a.CriteriaIDs)); err != nil {
		return r, err
	}
	if r.FilesJSON, err = json.Marshal(nonNil(a.FileIDs)); err != nil {
		return r, err
	}
	return r, nil
}

func (r appealRow) appeal() (appeal.Appeal, error) {
	a := r.Appeal
	if len(r.CriteriaJSON) > 0 {
		if err := json.Unmarshal(r.CriteriaJSON, &a.CriteriaIDs); err != nil {
			return a, err
		}
	}
	if len(r.FilesJSON) > 0 {
		if err := json.Unmarshal(r.FilesJSON, &a.FileIDs); err != nil {
			return a, err
		}
	}
	if len(a.CriteriaIDs) == 0 {
		a.CriteriaIDs = nil
	}
	if len(a.FileIDs) == 0 {
		a.FileIDs = nil
	}
	return a, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// EvidenceFile is an uploaded evidence object.
type EvidenceFile struct {
	ID            int64     `db:"id" json:"id"`
	EvaluationID  *int64    `db:"evaluation_id" json:"evaluation_id,omitempty"`
	CriteriaID    *int64    `db:"criteria_id" json:"criteria_id,omitempty"`
	SubCriteriaID string    `db:"sub_criteria_id" json:"sub_criteria_id,omitempty"`
	FileName      string    `db:"file_name" json:"file_name"`
	ObjectRef     string    `db:"object_ref" json:"-"`
	ContentType   string    `db:"content_type" json:"content_type"`
	Size          int64     `db:"size" json:"size"`
	UploadedBy    int64     `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Notification struct {
	ID           int64     `db:"id" json:"id"`
	Recipient    string    `db:"recipient" json:"recipient"`
	EvaluationID *int64    `db:"evaluation_id" json:"evaluation_id,omitempty"`
	AppealID     *int64    `db:"appeal_id" json:"appeal_id,omitempty"`
	PeriodID     *int64    `db:"period_id" json:"period_id,omitempty"`
	DaysLeft     *int      `db:"days_left" json:"days_left,omitempty"`
	Kind         string    `db:"kind" json:"kind"`
	Title        string    `db:"title" json:"title"`
	Message      string    `db:"message" json:"message"`
	Read         bool      `db:"read" json:"read"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Period struct {
	ID             int64      `db:"id" yaml:"-"`
	Semester       string     `db:"semester" yaml:"semester"`
	AcademicYear   string     `db:"academic_year" yaml:"academic_year"`
	RubricID       *int64     `db:"rubric_id" yaml:"-"`
	StartDate      *time.Time `db:"start_date" yaml:"start_date"`
	EndDate        *time.Time `db:"end_date" yaml:"end_date"`
	AppealDeadline *time.Time `db:"appeal_deadline" yaml:"appeal_deadline"`
	Active         bool       `db:"active" yaml:"active"`
}
