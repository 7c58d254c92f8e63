package store

import (
	"context"
	"database/sql"
	"time"
)

type SubscriptionRepo struct{ DB *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{DB: db} }

const insertSubscription = `
insert into subscriptions(user_id, plan_type, status, start_date, end_date, auto_renew)
values ($1,$2,'active',$3,$4,$5)
returning id`

// Activate inserts an active subscription covering [start, start+days).
func (r *SubscriptionRepo) Activate(ctx context.Context, userID int64, plan string, start time.Time, days int, autoRenew bool) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, insertSubscription, userID, plan, start, start.AddDate(0, 0, days), autoRenew).Scan(&id)
	return id, err
}

// CancelAutoRenew returns ErrNotFound when the user has no active subscription.
func (r *SubscriptionRepo) CancelAutoRenew(ctx context.Context, userID int64) (int64, error) {
	const q = `
update subscriptions
set auto_renew=false, updated_at=now()
where user_id=$1 and status='active'
returning id`
	var id int64
	err := r.DB.QueryRowContext(ctx, q, userID).Scan(&id)
	return id, err
}

// ExpireOverdue marks active subscriptions that ended before now as expired.
func (r *SubscriptionRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	const q = `
update subscriptions
set status='expired', updated_at=now()
where status='active' and end_date < $1`
	res, err := r.DB.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
