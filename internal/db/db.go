package db

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
)

func MustOpen(dsn string) *sqlx.DB {
	db := sqlx.MustConnect("pgx", dsn)
	return db
}

func WithTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// notFound turns sql.ErrNoRows into an apperr not-found error.
func notFound(err error, resource string, id any) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return apperr.NotFound(resource, id)
	}
	return errors.Wrapf(err, "loading %s %v", resource, id)
}

// scanOne reads the single row of an insert ... returning statement.
func scanOne(rows *sqlx.Rows, what string, dest ...interface{}) error {
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, what)
		}
		return errors.Errorf("%s returned no row", what)
	}
	return errors.Wrap(rows.Scan(dest...), what)
}
