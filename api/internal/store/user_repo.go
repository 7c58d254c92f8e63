package store

import (
	"context"
	"database/sql"
	"time"
)

type User struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
}

// ActiveSubscription is the subscription part of a profile.
type ActiveSubscription struct {
	Plan      string
	Status    string
	EndDate   time.Time
	AutoRenew bool
}

type Profile struct {
	User         User
	Subscription *ActiveSubscription
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	const q = `select exists(select 1 from users where email=$1)`
	var ok bool
	err := r.DB.QueryRowContext(ctx, q, email).Scan(&ok)
	return ok, err
}

func (r *UserRepo) Create(ctx context.Context, email, passwordHash, name string) (int64, error) {
	const q = `insert into users(email, password_hash, name) values ($1,$2,$3) returning id`
	var id int64
	err := r.DB.QueryRowContext(ctx, q, email, passwordHash, name).Scan(&id)
	return id, err
}

// Authenticate returns ErrNotFound when the email/hash pair does not match.
func (r *UserRepo) Authenticate(ctx context.Context, email, passwordHash string) (User, error) {
	const q = `select id, email, coalesce(name, '') from users where email=$1 and password_hash=$2`
	var u User
	err := r.DB.QueryRowContext(ctx, q, email, passwordHash).Scan(&u.ID, &u.Email, &u.Name)
	return u, err
}

func (r *UserRepo) TouchLogin(ctx context.Context, id int64) error {
	const q = `update users set last_login=now() where id=$1`
	_, err := r.DB.ExecContext(ctx, q, id)
	return err
}

func (r *UserRepo) Profile(ctx context.Context, id int64) (Profile, error) {
	const q = `
select u.id, u.email, coalesce(u.name, ''), u.created_at,
       s.plan_type, s.status, s.end_date, s.auto_renew
from users u
left join subscriptions s on u.id = s.user_id and s.status = 'active'
where u.id = $1
order by s.end_date desc nulls last
limit 1`
	var (
		p         Profile
		plan      sql.NullString
		status    sql.NullString
		endDate   sql.NullTime
		autoRenew sql.NullBool
	)
	err := r.DB.QueryRowContext(ctx, q, id).Scan(
		&p.User.ID, &p.User.Email, &p.User.Name, &p.User.CreatedAt,
		&plan, &status, &endDate, &autoRenew,
	)
	if err != nil {
		return Profile{}, err
	}
	if plan.Valid {
		p.Subscription = &ActiveSubscription{
			Plan:      plan.String,
			Status:    status.String,
			EndDate:   endDate.Time,
			AutoRenew: autoRenew.Bool,
		}
	}
	return p, nil
}
