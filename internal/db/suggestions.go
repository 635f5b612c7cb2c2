package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
)

type Suggestions struct {
	DB *sqlx.DB
}

func (r *Suggestions) Create(ctx context.Context, s *advisor.Suggestion) error {
	rows, err := sqlx.NamedQueryContext(ctx, r.DB, `insert into ai_suggestions(evaluation_id, criteria_id, sub_criteria_id,
		suggested_score, max_score, confidence, status, reason, processing_time_ms) values(:evaluation_id, :criteria_id,
		:sub_criteria_id, :suggested_score, :max_score, :confidence, :status, :reason, :processing_time_ms)
		returning id, created_at`, s)
	if err != nil {
		return errors.Wrap(err, "inserting suggestion")
	}
	return scanOne(rows, "inserting suggestion", &s.ID, &s.CreatedAt)
}

func (r *Suggestions) List(ctx context.Context, evaluationID int64) ([]advisor.Suggestion, error) {
	var out []advisor.Suggestion
	if err := r.DB.SelectContext(ctx, &out, `select * from ai_suggestions where evaluation_id=$1 order by id desc`, evaluationID); err != nil {
		return nil, errors.Wrapf(err, "listing suggestions of evaluation %d", evaluationID)
	}
	return out, nil
}
