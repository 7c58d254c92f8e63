package store

import (
	"context"
	"database/sql"
)

// Generation is one provider task started through the proxy.
type Generation struct {
	UserID   int64 // 0 when anonymous
	Function string
	Provider string
	Kind     string
	TaskID   string
	Status   string
	URL      string
	Prompt   string
}

type GenerationRepo struct{ DB *sql.DB }

func NewGenerationRepo(db *sql.DB) *GenerationRepo { return &GenerationRepo{DB: db} }

func (r *GenerationRepo) Record(ctx context.Context, g Generation) error {
	const q = `
insert into generations(user_id, function_name, provider, kind, task_id, status, result_url, prompt)
values ($1,$2,$3,$4,$5,$6,$7,$8)
on conflict (provider, task_id)
do update set status=excluded.status, result_url=excluded.result_url, updated_at=now()`
	_, err := r.DB.ExecContext(ctx, q,
		sql.NullInt64{Int64: g.UserID, Valid: g.UserID > 0},
		g.Function, g.Provider, g.Kind, g.TaskID, g.Status,
		sql.NullString{String: g.URL, Valid: g.URL != ""},
		g.Prompt,
	)
	return err
}

// UpdateStatus returns ErrNotFound when the task was never recorded.
func (r *GenerationRepo) UpdateStatus(ctx context.Context, provider, taskID, status, url string) error {
	const q = `
update generations
set status=$1, result_url=coalesce($2, result_url), updated_at=now()
where provider=$3 and task_id=$4`
	res, err := r.DB.ExecContext(ctx, q, status, sql.NullString{String: url, Valid: url != ""}, provider, taskID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
