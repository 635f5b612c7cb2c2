package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
)

type Rubrics struct {
	DB *sqlx.DB
}

func (r *Rubrics) Rubric(ctx context.Context, id int64) (*rubric.Rubric, error) {
	var out rubric.Rubric
	if err := r.DB.GetContext(ctx, &out, `select id, name, academic_year, max_score, active from rubrics where id=$1`, id); err != nil {
		return nil, notFound(err, "rubric", id)
	}
	if err := r.DB.SelectContext(ctx, &out.Criteria,
		`select id, rubric_id, name, description, max_points, order_index from criteria where rubric_id=$1 order by order_index, id`, id); err != nil {
		return nil, errors.Wrapf(err, "loading criteria of rubric %d", id)
	}
	return &out, nil
}

// Active returns the rubric currently marked active.
func (r *Rubrics) Active(ctx context.Context) (*rubric.Rubric, error) {
	var id int64
	if err := r.DB.GetContext(ctx, &id, `select id from rubrics where active order by id desc limit 1`); err != nil {
		return nil, notFound(err, "rubric", "active")
	}
	return r.Rubric(ctx, id)
}

func (r *Rubrics) Criterion(ctx context.Context, id int64) (*rubric.Criterion, error) {
	var c rubric.Criterion
	if err := r.DB.GetContext(ctx, &c,
		`select id, rubric_id, name, description, max_points, order_index from criteria where id=$1`, id); err != nil {
		return nil, notFound(err, "criterion", id)
	}
	return &c, nil
}

// Create stores a rubric with its criteria and fills in the new ids. An
// active rubric deactivates the others.
func (r *Rubrics) Create(ctx context.Context, rb *rubric.Rubric) error {
	return WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		if rb.Active {
			if _, err := tx.ExecContext(ctx, `update rubrics set active=false where active`); err != nil {
				return errors.Wrap(err, "deactivating rubrics")
			}
		}
		if err := tx.GetContext(ctx, &rb.ID,
			`insert into rubrics(name, academic_year, max_score, active) values($1,$2,$3,$4) returning id`,
			rb.Name, rb.AcademicYear, rb.MaxScore, rb.Active); err != nil {
			return errors.Wrap(err, "inserting rubric")
		}
		for i := range rb.Criteria {
			c := &rb.Criteria[i]
			c.RubricID = rb.ID
			if c.OrderIndex == 0 {
				c.OrderIndex = i + 1
			}
			if err := tx.GetContext(ctx, &c.ID,
				`insert into criteria(rubric_id, name, description, max_points, order_index) values($1,$2,$3,$4,$5) returning id`,
				c.RubricID, c.Name, c.Description, c.MaxPoints, c.OrderIndex); err != nil {
				return errors.Wrapf(err, "inserting criterion %q", c.Name)
			}
		}
		return nil
	})
}
