package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
)

type Appeals struct {
	DB *sqlx.DB
}

var _ appeal.Repository = (*Appeals)(nil)

const appealColumns = `id, evaluation_id, student_code, semester, criteria_ids, file_ids, reason, status,
	reviewer_id, reviewer_name, review_comment, reviewed_at, created_at, updated_at`

func (r *Appeals) Create(ctx context.Context, a *appeal.Appeal) error {
	row, err := appealToRow(a)
	if err != nil {
		return errors.Wrap(err, "encoding appeal")
	}
	rows, err := sqlx.NamedQueryContext(ctx, r.DB, `insert into appeals(evaluation_id, student_code, semester, criteria_ids,
		file_ids, reason, status, created_at, updated_at) values(:evaluation_id, :student_code, :semester, :criteria_ids,
		:file_ids, :reason, :status, :created_at, :updated_at) returning id`, row)
	if err != nil {
		return errors.Wrap(err, "inserting appeal")
	}
	return scanOne(rows, "inserting appeal", &a.ID)
}

func (r *Appeals) Get(ctx context.Context, id int64) (*appeal.Appeal, error) {
	var row appealRow
	if err := r.DB.GetContext(ctx, &row, `select `+appealColumns+` from appeals where id=$1`, id); err != nil {
		return nil, notFound(err, "appeal", id)
	}
	a, err := row.appeal()
	if err != nil {
		return nil, errors.Wrapf(err, "decoding appeal %d", id)
	}
	return &a, nil
}

func (r *Appeals) Update(ctx context.Context, a *appeal.Appeal) error {
	row, err := appealToRow(a)
	if err != nil {
		return errors.Wrap(err, "encoding appeal")
	}
	res, err := r.DB.NamedExecContext(ctx, `update appeals set status=:status, reviewer_id=:reviewer_id,
		reviewer_name=:reviewer_name, review_comment=:review_comment, reviewed_at=:reviewed_at, updated_at=:updated_at
		where id=:id`, row)
	if err != nil {
		return errors.Wrapf(err, "updating appeal %d", a.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("appeal", a.ID)
	}
	return nil
}

func (r *Appeals) list(ctx context.Context, where string, args ...interface{}) ([]appeal.Appeal, error) {
	var rows []appealRow
	if err := r.DB.SelectContext(ctx, &rows, `select `+appealColumns+` from appeals where `+where+` order by created_at desc`, args...); err != nil {
		return nil, errors.Wrap(err, "listing appeals")
	}
	out := make([]appeal.Appeal, 0, len(rows))
	for _, row := range rows {
		a, err := row.appeal()
		if err != nil {
			return nil, errors.Wrapf(err, "decoding appeal %d", row.ID)
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Appeals) ListPending(ctx context.Context) ([]appeal.Appeal, error) {
	return r.list(ctx, `status=$1`, appeal.Pending)
}

func (r *Appeals) ListByStudent(ctx context.Context, studentCode string) ([]appeal.Appeal, error) {
	return r.list(ctx, `student_code=$1`, studentCode)
}

func (r *Appeals) CountByStudent(ctx context.Context, studentCode string) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, `select count(1) from appeals where student_code=$1`, studentCode); err != nil {
		return 0, errors.Wrap(err, "counting appeals")
	}
	return n, nil
}
