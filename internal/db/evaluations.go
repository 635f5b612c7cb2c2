package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
)

type Evaluations struct {
	DB *sqlx.DB
}

var _ evaluation.Repository = (*Evaluations)(nil)

const evaluationColumns = `id, student_code, rubric_id, semester, academic_year, status, resubmission_count,
	last_rejection_level, rejection_reason, created_by, submitted_at, approved_at, created_at, updated_at`

func (r *Evaluations) Get(ctx context.Context, id int64) (*evaluation.Evaluation, error) {
	var p evaluationParts
	if err := r.DB.GetContext(ctx, &p.row, `select `+evaluationColumns+` from evaluations where id=$1`, id); err != nil {
		return nil, notFound(err, "evaluation", id)
	}
	if err := r.DB.SelectContext(ctx, &p.details,
		`select evaluation_id, criteria_id, evidence, note from evaluation_details where evaluation_id=$1 order by criteria_id`, id); err != nil {
		return nil, errors.Wrapf(err, "loading details of evaluation %d", id)
	}
	if err := r.DB.SelectContext(ctx, &p.scores,
		`select evaluation_id, criteria_id, level, scores from evaluation_level_scores where evaluation_id=$1`, id); err != nil {
		return nil, errors.Wrapf(err, "loading level scores of evaluation %d", id)
	}
	if err := r.DB.SelectContext(ctx, &p.approvals,
		`select evaluation_id, level, approver_id, approver_name, comment, created_at from evaluation_approvals where evaluation_id=$1 order by id`, id); err != nil {
		return nil, errors.Wrapf(err, "loading approvals of evaluation %d", id)
	}
	return p.join(), nil
}

func (r *Evaluations) Create(ctx context.Context, ev *evaluation.Evaluation, events ...evaluation.Event) error {
	return WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		p := split(ev)
		rows, err := sqlx.NamedQueryContext(ctx, tx, `insert into evaluations(student_code, rubric_id, semester, academic_year, status,
			resubmission_count, last_rejection_level, rejection_reason, created_by, submitted_at, approved_at, created_at, updated_at)
			values(:student_code, :rubric_id, :semester, :academic_year, :status, :resubmission_count, :last_rejection_level,
			:rejection_reason, :created_by, :submitted_at, :approved_at, :created_at, :updated_at) returning id`, p.row)
		if err != nil {
			return errors.Wrap(err, "inserting evaluation")
		}
		if err := scanOne(rows, "inserting evaluation", &ev.ID); err != nil {
			return err
		}
		return writeChildren(ctx, tx, ev, events)
	})
}

func (r *Evaluations) Save(ctx context.Context, ev *evaluation.Evaluation, events ...evaluation.Event) error {
	return WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		p := split(ev)
		res, err := tx.NamedExecContext(ctx, `update evaluations set status=:status, resubmission_count=:resubmission_count,
			last_rejection_level=:last_rejection_level, rejection_reason=:rejection_reason, submitted_at=:submitted_at,
			approved_at=:approved_at, updated_at=:updated_at where id=:id`, p.row)
		if err != nil {
			return errors.Wrapf(err, "updating evaluation %d", ev.ID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("evaluation", ev.ID)
		}
		for _, table := range []string{"evaluation_details", "evaluation_level_scores", "evaluation_approvals"} {
			if _, err := tx.ExecContext(ctx, `delete from `+table+` where evaluation_id=$1`, ev.ID); err != nil {
				return errors.Wrapf(err, "clearing %s", table)
			}
		}
		return writeChildren(ctx, tx, ev, events)
	})
}

// writeChildren inserts the detail, score, approval and history rows of ev.
func writeChildren(ctx context.Context, tx *sqlx.Tx, ev *evaluation.Evaluation, events []evaluation.Event) error {
	p := split(ev)
	for _, d := range p.details {
		if _, err := tx.NamedExecContext(ctx, `insert into evaluation_details(evaluation_id, criteria_id, evidence, note)
			values(:evaluation_id, :criteria_id, :evidence, :note)`, d); err != nil {
			return errors.Wrapf(err, "inserting detail %d", d.CriteriaID)
		}
	}
	for _, s := range p.scores {
		if _, err := tx.NamedExecContext(ctx, `insert into evaluation_level_scores(evaluation_id, criteria_id, level, scores)
			values(:evaluation_id, :criteria_id, :level, :scores)`, s); err != nil {
			return errors.Wrapf(err, "inserting %s scores of %d", s.Level, s.CriteriaID)
		}
	}
	for _, a := range p.approvals {
		if _, err := tx.NamedExecContext(ctx, `insert into evaluation_approvals(evaluation_id, level, approver_id, approver_name, comment, created_at)
			values(:evaluation_id, :level, :approver_id, :approver_name, :comment, :created_at)`, a); err != nil {
			return errors.Wrapf(err, "inserting %s approval", a.Level)
		}
	}
	for _, e := range events {
		e.EvaluationID = ev.ID
		if _, err := tx.NamedExecContext(ctx, `insert into evaluation_history(evaluation_id, action, from_status, to_status, level,
			actor_id, actor_name, comment, created_at) values(:evaluation_id, :action, :from_status, :to_status, :level,
			:actor_id, :actor_name, :comment, :created_at)`, historyFromEvent(e)); err != nil {
			return errors.Wrapf(err, "recording %s", e.Action)
		}
	}
	return nil
}

func (r *Evaluations) History(ctx context.Context, id int64) ([]evaluation.Event, error) {
	var head struct {
		StudentCode string `db:"student_code"`
		Semester    string `db:"semester"`
	}
	if err := r.DB.GetContext(ctx, &head, `select student_code, semester from evaluations where id=$1`, id); err != nil {
		return nil, notFound(err, "evaluation", id)
	}
	var rows []historyRow
	if err := r.DB.SelectContext(ctx, &rows, `select * from evaluation_history where evaluation_id=$1 order by id`, id); err != nil {
		return nil, errors.Wrapf(err, "loading history of evaluation %d", id)
	}
	out := make([]evaluation.Event, 0, len(rows))
	for _, h := range rows {
		out = append(out, h.event(head.StudentCode, head.Semester))
	}
	return out, nil
}

func (r *Evaluations) ListBySemester(ctx context.Context, semester string) ([]evaluation.Evaluation, error) {
	return r.list(ctx, `select id from evaluations where semester=$1 order by student_code`, semester)
}

func (r *Evaluations) ListByStatus(ctx context.Context, statuses ...evaluation.Status) ([]evaluation.Evaluation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	q, args, err := sqlx.In(`select id from evaluations where status in (?) order by submitted_at nulls last, id`, names)
	if err != nil {
		return nil, errors.Wrap(err, "building status query")
	}
	return r.list(ctx, r.DB.Rebind(q), args...)
}

func (r *Evaluations) ListByStudent(ctx context.Context, studentCode, semester string) ([]evaluation.Evaluation, error) {
	if semester == "" {
		return r.list(ctx, `select id from evaluations where student_code=$1 order by created_at desc, id desc`, studentCode)
	}
	return r.list(ctx, `select id from evaluations where student_code=$1 and semester=$2 order by created_at desc, id desc`,
		studentCode, semester)
}

// list loads every evaluation whose id q selects.
func (r *Evaluations) list(ctx context.Context, q string, args ...interface{}) ([]evaluation.Evaluation, error) {
	var ids []int64
	if err := r.DB.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, errors.Wrap(err, "listing evaluations")
	}
	out := make([]evaluation.Evaluation, 0, len(ids))
	for _, id := range ids {
		ev, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, nil
}

// Delete removes an evaluation; details, scores and history go with it.
func (r *Evaluations) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `delete from evaluations where id=$1`, id)
	if err != nil {
		return errors.Wrapf(err, "deleting evaluation %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("evaluation", id)
	}
	return nil
}

// StudentsToRemind lists the known students without a submitted evaluation
// for semester: those whose record there is missing, a draft or rejected.
func (r *Evaluations) StudentsToRemind(ctx context.Context, semester string) ([]string, error) {
	var codes []string
	err := r.DB.SelectContext(ctx, &codes, `select distinct e.student_code from evaluations e
		where not exists (select 1 from evaluations s where s.student_code=e.student_code and s.semester=$1
		and s.status not in ('DRAFT', 'REJECTED')) order by e.student_code`, semester)
	if err != nil {
		return nil, errors.Wrapf(err, "listing students to remind for %s", semester)
	}
	return codes, nil
}
