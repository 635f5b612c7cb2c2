package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
)

type Notifications struct {
	DB *sqlx.DB
}

func (r *Notifications) Create(ctx context.Context, n *Notification) error {
	_, err := r.DB.NamedExecContext(ctx, `insert into notifications(recipient, evaluation_id, appeal_id, kind, title, message)
		values(:recipient, :evaluation_id, :appeal_id, :kind, :title, :message)`, n)
	return errors.Wrapf(err, "inserting notification for %s", n.Recipient)
}

// CreateOnce stores a period reminder unless the recipient already has the
// one for the same period and day count. It reports whether a row was added.
func (r *Notifications) CreateOnce(ctx context.Context, n *Notification) (bool, error) {
	res, err := r.DB.NamedExecContext(ctx, `insert into notifications(recipient, evaluation_id, appeal_id, period_id, days_left,
		kind, title, message) values(:recipient, :evaluation_id, :appeal_id, :period_id, :days_left, :kind, :title, :message)
		on conflict do nothing`, n)
	if err != nil {
		return false, errors.Wrapf(err, "inserting reminder for %s", n.Recipient)
	}
	added, _ := res.RowsAffected()
	return added > 0, nil
}

func (r *Notifications) List(ctx context.Context, recipient string, unreadOnly bool) ([]Notification, error) {
	q := `select * from notifications where recipient=$1`
	if unreadOnly {
		q += ` and not read`
	}
	var out []Notification
	if err := r.DB.SelectContext(ctx, &out, q+` order by created_at desc limit 100`, recipient); err != nil {
		return nil, errors.Wrapf(err, "listing notifications of %s", recipient)
	}
	return out, nil
}

func (r *Notifications) MarkRead(ctx context.Context, recipient string, id int64) error {
	res, err := r.DB.ExecContext(ctx, `update notifications set read=true where id=$1 and recipient=$2`, id, recipient)
	if err != nil {
		return errors.Wrapf(err, "marking notification %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("notification", id)
	}
	return nil
}
