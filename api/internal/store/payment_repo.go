package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PaymentRepo struct{ DB *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{DB: db} }

func (r *PaymentRepo) CreatePending(ctx context.Context, userID int64, amount float64, method, yookassaID string) (int64, error) {
	const q = `
insert into payments(user_id, amount, currency, payment_method, yookassa_payment_id, status)
values ($1,$2,'RUB',$3,$4,'pending')
returning id`
	var id int64
	err := r.DB.QueryRowContext(ctx, q, userID, amount, method, yookassaID).Scan(&id)
	return id, err
}

// Completion describes a succeeded YooKassa payment.
type Completion struct {
	YooKassaID string
	ReceiptURL string
	UserID     int64
	Plan       string
	Days       int
	AutoRenew  bool
	At         time.Time
}

// CompleteWithSubscription marks the payment succeeded, activates the plan and
// links both rows in one transaction. ErrNotFound means the payment is unknown.
func (r *PaymentRepo) CompleteWithSubscription(ctx context.Context, c Completion) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	const markPaid = `
update payments
set status='succeeded', receipt_url=$1, updated_at=now()
where yookassa_payment_id=$2
returning id`
	var paymentID int64
	if err := tx.QueryRowContext(ctx, markPaid, sql.NullString{String: c.ReceiptURL, Valid: c.ReceiptURL != ""}, c.YooKassaID).Scan(&paymentID); err != nil {
		return 0, err
	}

	var subID int64
	if err := tx.QueryRowContext(ctx, insertSubscription, c.UserID, c.Plan, c.At, c.At.AddDate(0, 0, c.Days), c.AutoRenew).Scan(&subID); err != nil {
		return 0, fmt.Errorf("insert subscription: %w", err)
	}

	const link = `update payments set subscription_id=$1 where id=$2`
	if _, err := tx.ExecContext(ctx, link, subID, paymentID); err != nil {
		return 0, fmt.Errorf("link subscription: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return subID, nil
}
