package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type Periods struct {
	DB *sqlx.DB
}

// AppealDeadline returns nil when the semester has no period or the period
// sets no deadline.
func (r *Periods) AppealDeadline(ctx context.Context, semester string) (*time.Time, error) {
	var deadline *time.Time
	err := r.DB.GetContext(ctx, &deadline, `select appeal_deadline from evaluation_periods where semester=$1`, semester)
	if errors.Cause(err) == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading period %s", semester)
	}
	return deadline, nil
}

// Upsert creates or replaces the period of p.Semester.
func (r *Periods) Upsert(ctx context.Context, p *Period) error {
	rows, err := sqlx.NamedQueryContext(ctx, r.DB, `insert into evaluation_periods(semester, academic_year, rubric_id,
		start_date, end_date, appeal_deadline, active) values(:semester, :academic_year, :rubric_id, :start_date, :end_date,
		:appeal_deadline, :active) on conflict (semester) do update set academic_year=excluded.academic_year,
		rubric_id=excluded.rubric_id, start_date=excluded.start_date, end_date=excluded.end_date,
		appeal_deadline=excluded.appeal_deadline, active=excluded.active returning id`, p)
	if err != nil {
		return errors.Wrapf(err, "saving period %s", p.Semester)
	}
	return scanOne(rows, "saving period "+p.Semester, &p.ID)
}

// Active lists the active periods that have an end date.
func (r *Periods) Active(ctx context.Context) ([]Period, error) {
	var out []Period
	err := r.DB.SelectContext(ctx, &out, `select id, semester, academic_year, rubric_id, start_date, end_date, appeal_deadline, active
		from evaluation_periods where active and end_date is not null order by end_date`)
	return out, errors.Wrap(err, "listing active periods")
}
