package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type Files struct {
	DB *sqlx.DB
}

func (r *Files) Create(ctx context.Context, f *EvidenceFile) error {
	rows, err := sqlx.NamedQueryContext(ctx, r.DB, `insert into evidence_files(evaluation_id, criteria_id, sub_criteria_id,
		file_name, object_ref, content_type, size, uploaded_by) values(:evaluation_id, :criteria_id, :sub_criteria_id,
		:file_name, :object_ref, :content_type, :size, :uploaded_by) returning id, created_at`, f)
	if err != nil {
		return errors.Wrap(err, "inserting evidence file")
	}
	return scanOne(rows, "inserting evidence file", &f.ID, &f.CreatedAt)
}

func (r *Files) Get(ctx context.Context, id int64) (*EvidenceFile, error) {
	var f EvidenceFile
	if err := r.DB.GetContext(ctx, &f, `select * from evidence_files where id=$1`, id); err != nil {
		return nil, notFound(err, "evidence file", id)
	}
	return &f, nil
}

// List returns the files with the given ids; unknown ids are skipped.
func (r *Files) List(ctx context.Context, ids []int64) ([]EvidenceFile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`select * from evidence_files where id in (?) order by id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building file query")
	}
	var out []EvidenceFile
	if err := r.DB.SelectContext(ctx, &out, r.DB.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing evidence files")
	}
	return out, nil
}
